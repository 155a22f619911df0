//go:build !amd64

package portal

func cpuRelax() {}
