package dsa

import (
	"sync"

	"github.com/ehrlich-b/go-dsa/internal/uapi"
)

// RecordingObserver is an Observer that keeps every event for inspection.
// It is useful for testing code that drives an Engine.
type RecordingObserver struct {
	mu sync.RWMutex

	ops        []OpEvent
	retries    int
	rejected   int
	timeouts   int
	pageFaults []uint64
}

// OpEvent is one operation seen by a RecordingObserver
type OpEvent struct {
	Op        string // lowercase opcode name, e.g. "crc_gen"
	Bytes     uint64
	LatencyNs uint64
	Success   bool
}

// NewRecordingObserver creates an empty recording observer
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

// ObserveOp implements the Observer interface
func (r *RecordingObserver) ObserveOp(op uapi.Opcode, bytes uint64, latencyNs uint64, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, OpEvent{Op: opName(op), Bytes: bytes, LatencyNs: latencyNs, Success: success})
}

// ObserveSubmit implements the Observer interface
func (r *RecordingObserver) ObserveSubmit(retries int, accepted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries += retries
	if !accepted {
		r.rejected++
	}
}

// ObserveTimeout implements the Observer interface
func (r *RecordingObserver) ObserveTimeout(uapi.Opcode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeouts++
}

// ObservePageFault implements the Observer interface
func (r *RecordingObserver) ObservePageFault(_ uapi.Opcode, addr uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pageFaults = append(r.pageFaults, addr)
}

// Testing utility methods

// Ops returns a copy of the recorded operations in order
func (r *RecordingObserver) Ops() []OpEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]OpEvent(nil), r.ops...)
}

// FaultAddrs returns the faulting addresses reported so far
func (r *RecordingObserver) FaultAddrs() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]uint64(nil), r.pageFaults...)
}

// CallCounts returns how many events of each kind were seen
func (r *RecordingObserver) CallCounts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[string]int{
		"retries":     r.retries,
		"rejected":    r.rejected,
		"timeouts":    r.timeouts,
		"page_faults": len(r.pageFaults),
		"failures":    0,
	}
	for _, ev := range r.ops {
		counts[ev.Op]++
		if !ev.Success {
			counts["failures"]++
		}
	}
	return counts
}

// Reset clears everything recorded
func (r *RecordingObserver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
	r.retries = 0
	r.rejected = 0
	r.timeouts = 0
	r.pageFaults = nil
}

func opName(op uapi.Opcode) string {
	switch op {
	case uapi.OpCRCGen:
		return "crc_gen"
	case uapi.OpMemMove:
		return "memmove"
	case uapi.OpMemFill:
		return "memfill"
	case uapi.OpCompare:
		return "compare"
	case uapi.OpNoop:
		return "noop"
	}
	return "unknown"
}

// Compile-time interface check
var _ Observer = (*RecordingObserver)(nil)
