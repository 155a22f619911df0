//go:build linux && amd64

package portal

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/go-dsa/internal/constants"
	"github.com/ehrlich-b/go-dsa/internal/dsaerr"
	"github.com/ehrlich-b/go-dsa/internal/uapi"
)

// MMIO is a portal page mapped from a work queue character device
type MMIO struct {
	path string
	file *os.File
	mem  []byte
	base unsafe.Pointer

	closeOnce sync.Once
	closeErr  error
}

// Map opens the work queue device at path and maps its portal page
func Map(path string) (*MMIO, error) {
	if !Supported() {
		return nil, dsaerr.New("map", dsaerr.CodePlatformNotSupported, "CPU lacks MOVDIR64B/ENQCMD")
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, dsaerr.Wrap("open", err)
	}

	// The portal is write-only from the CPU's point of view
	mem, err := unix.Mmap(int(f.Fd()), 0, constants.PortalSize,
		unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		f.Close()
		return nil, dsaerr.WrapCode("mmap", dsaerr.CodeMappingFailed, fmt.Errorf("%s: %w", path, err))
	}

	return &MMIO{
		path: path,
		file: f,
		mem:  mem,
		base: unsafe.Pointer(&mem[0]),
	}, nil
}

// Path returns the device node the portal was mapped from
func (m *MMIO) Path() string {
	return m.path
}

// SubmitPosted writes d to the portal with MOVDIR64B
func (m *MMIO) SubmitPosted(d *uapi.Descriptor) {
	movdir64b(m.base, unsafe.Pointer(d))
}

// SubmitNonPosted writes d to the portal with ENQCMD
func (m *MMIO) SubmitNonPosted(d *uapi.Descriptor) bool {
	return enqcmd(m.base, unsafe.Pointer(d))
}

// Close unmaps the portal and closes the device exactly once
func (m *MMIO) Close() error {
	m.closeOnce.Do(func() {
		if err := unix.Munmap(m.mem); err != nil {
			m.closeErr = dsaerr.WrapCode("munmap", dsaerr.CodeMappingFailed, err)
		}
		m.mem = nil
		m.base = nil
		if err := m.file.Close(); err != nil && m.closeErr == nil {
			m.closeErr = dsaerr.Wrap("close", err)
		}
	})
	return m.closeErr
}
