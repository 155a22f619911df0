package interfaces

import "github.com/ehrlich-b/go-dsa/internal/uapi"

// Queue defines the operations every execution backend provides. The
// hardware work queue and the software engine both implement it and must
// return identical results for identical inputs.
type Queue interface {
	// Checksum computes the 32-bit CRC of data continuing from seed.
	// Empty data returns seed unchanged.
	Checksum(data []byte, seed uint32) (uint32, error)

	// Copy copies src into the front of dst, which must be at least as
	// long as src. An empty src succeeds without doing anything.
	Copy(dst, src []byte) error

	// Fill writes the 8-byte little-endian pattern repeatedly across dst.
	// A trailing partial repetition is truncated.
	Fill(dst []byte, pattern uint64) error

	// Compare reports whether a and b are byte-for-byte equal.
	// The lengths must be equal; two empty buffers are equal.
	Compare(a, b []byte) (bool, error)

	// Noop round-trips an empty operation. It is used to check liveness.
	Noop() error

	// Close releases the queue. Operations after Close fail.
	Close() error
}

// TunableQueue is an optional interface for queues whose submission and
// completion budgets can be changed while in use.
type TunableQueue interface {
	Queue

	// SetMaxRetries sets how many times a rejected submission is retried.
	SetMaxRetries(n int)

	// SetSpinIterations sets how many times the completion record is polled.
	SetSpinIterations(n int)
}

// Observer receives per-operation events from a queue
type Observer interface {
	// ObserveOp is called once per completed operation
	ObserveOp(op uapi.Opcode, bytes uint64, latencyNs uint64, success bool)

	// ObserveSubmit is called with the number of retries a submission needed
	ObserveSubmit(retries int, accepted bool)

	// ObserveTimeout is called when a completion record never left pending
	ObserveTimeout(op uapi.Opcode)

	// ObservePageFault is called when the device reports a fault
	ObservePageFault(op uapi.Opcode, addr uint64)
}

// NoOpObserver is an Observer that discards every event
type NoOpObserver struct{}

func (NoOpObserver) ObserveOp(uapi.Opcode, uint64, uint64, bool) {}
func (NoOpObserver) ObserveSubmit(int, bool)                     {}
func (NoOpObserver) ObserveTimeout(uapi.Opcode)                  {}
func (NoOpObserver) ObservePageFault(uapi.Opcode, uint64)        {}

var _ Observer = NoOpObserver{}
