//go:build !amd64

package portal

// Detect always reports no support off amd64
func Detect() Capabilities {
	return Capabilities{}
}
