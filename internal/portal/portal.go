// Package portal submits descriptors to DSA work queue portals
package portal

import (
	"github.com/ehrlich-b/go-dsa/internal/uapi"
)

// Portal is the write-only window a work queue exposes to user space
type Portal interface {
	// SubmitPosted writes d with MOVDIR64B. The device gives no acceptance
	// signal, so only dedicated queues may use it.
	SubmitPosted(d *uapi.Descriptor)

	// SubmitNonPosted writes d with ENQCMD and reports whether the device
	// accepted it. A false return means the queue was full.
	SubmitNonPosted(d *uapi.Descriptor) bool

	// Close unmaps the portal. It is safe to call more than once.
	Close() error
}

// Capabilities describes the CPU support for the submission instructions
type Capabilities struct {
	MOVDIR64B bool
	ENQCMD    bool
}

// Supported reports whether the host CPU can drive a hardware portal
func Supported() bool {
	c := Detect()
	return c.MOVDIR64B && c.ENQCMD
}
