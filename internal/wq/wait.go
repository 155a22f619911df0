package wq

import (
	"github.com/ehrlich-b/go-dsa/internal/dsaerr"
	"github.com/ehrlich-b/go-dsa/internal/portal"
	"github.com/ehrlich-b/go-dsa/internal/uapi"
)

// wait polls cr until the device writes a terminal status or spins polls
// have been made. At least one poll is always made.
//
// Success returns nil. A page fault returns a PageFault error carrying the
// faulting address and the bytes completed before it. Any other status
// returns OperationFailed with the raw status and result. Running out of
// polls returns OperationFailed with zero status, marked as a timeout.
func wait(cr *uapi.CompletionRecord, spins int) *dsaerr.Error {
	if spins < 1 {
		spins = 1
	}

	var b portal.Backoff
	for i := 0; i < spins; i++ {
		status := cr.LoadStatus()
		if status != uapi.StatusNone {
			return translate(cr, status)
		}
		b.Relax()
	}
	return dsaerr.Timeout("", "")
}

// translate maps a terminal record onto the error taxonomy. Only fields
// written before the status are read, and only after the status was seen.
func translate(cr *uapi.CompletionRecord, status uint8) *dsaerr.Error {
	switch uapi.ClassifyStatus(status).Kind {
	case uapi.KindSuccess:
		return nil
	case uapi.KindPageFault:
		return dsaerr.PageFault("", "", cr.FaultAddr, cr.BytesCompleted)
	default:
		_, result, _ := cr.LoadHeader()
		return dsaerr.OperationFailed("", "", status, result)
	}
}
