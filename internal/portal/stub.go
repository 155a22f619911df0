//go:build !linux || !amd64

package portal

import (
	"github.com/ehrlich-b/go-dsa/internal/dsaerr"
	"github.com/ehrlich-b/go-dsa/internal/uapi"
)

// MMIO is unavailable off linux/amd64
type MMIO struct{}

// Map always fails off linux/amd64
func Map(path string) (*MMIO, error) {
	return nil, dsaerr.New("map", dsaerr.CodePlatformNotSupported, "hardware portals require linux/amd64")
}

func (m *MMIO) Path() string                            { return "" }
func (m *MMIO) SubmitPosted(d *uapi.Descriptor)         {}
func (m *MMIO) SubmitNonPosted(d *uapi.Descriptor) bool { return false }
func (m *MMIO) Close() error                            { return nil }
