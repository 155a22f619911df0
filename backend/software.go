// Package backend provides the software execution engine used when no DSA
// work queue is available
package backend

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/go-dsa/internal/constants"
	"github.com/ehrlich-b/go-dsa/internal/dsaerr"
	"github.com/ehrlich-b/go-dsa/internal/interfaces"
	"github.com/ehrlich-b/go-dsa/internal/uapi"
)

// castagnoli is the CRC-32C table; DSA's CRC generation uses the same
// polynomial
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Software executes every operation on the CPU with the same contract as
// the hardware work queue. It never reports PageFault, QueueFull or
// OperationFailed.
type Software struct {
	observer interfaces.Observer
	closed   atomic.Bool

	ops   atomic.Uint64
	bytes atomic.Uint64
}

// NewSoftware creates a software engine. A nil observer discards events.
func NewSoftware(observer interfaces.Observer) *Software {
	if observer == nil {
		observer = interfaces.NoOpObserver{}
	}
	return &Software{observer: observer}
}

// Checksum implements the Queue interface
func (s *Software) Checksum(data []byte, seed uint32) (uint32, error) {
	if len(data) == 0 {
		return seed, nil
	}
	if err := s.check(uapi.OpCRCGen, len(data)); err != nil {
		return 0, err
	}

	start := time.Now()
	crc := crc32.Update(seed, castagnoli, data)
	s.record(uapi.OpCRCGen, len(data), start)
	return crc, nil
}

// Copy implements the Queue interface
func (s *Software) Copy(dst, src []byte) error {
	if len(dst) < len(src) {
		return dsaerr.SizeMismatch(opName(uapi.OpMemMove), len(src), len(dst))
	}
	if len(src) == 0 {
		return nil
	}
	if err := s.check(uapi.OpMemMove, len(src)); err != nil {
		return err
	}

	start := time.Now()
	copy(dst, src)
	s.record(uapi.OpMemMove, len(src), start)
	return nil
}

// Fill implements the Queue interface
func (s *Software) Fill(dst []byte, pattern uint64) error {
	if len(dst) == 0 {
		return nil
	}
	if err := s.check(uapi.OpMemFill, len(dst)); err != nil {
		return err
	}

	start := time.Now()
	fill(dst, pattern)
	s.record(uapi.OpMemFill, len(dst), start)
	return nil
}

// Compare implements the Queue interface
func (s *Software) Compare(a, b []byte) (bool, error) {
	if len(a) != len(b) {
		return false, dsaerr.SizeMismatch(opName(uapi.OpCompare), len(a), len(b))
	}
	if len(a) == 0 {
		return true, nil
	}
	if err := s.check(uapi.OpCompare, len(a)); err != nil {
		return false, err
	}

	start := time.Now()
	equal := bytes.Equal(a, b)
	s.record(uapi.OpCompare, len(a), start)
	return equal, nil
}

// Noop implements the Queue interface
func (s *Software) Noop() error {
	if err := s.check(uapi.OpNoop, 0); err != nil {
		return err
	}
	s.record(uapi.OpNoop, 0, time.Now())
	return nil
}

// Close implements the Queue interface
func (s *Software) Close() error {
	s.closed.Store(true)
	return nil
}

// Stats returns engine counters
func (s *Software) Stats() map[string]interface{} {
	return map[string]interface{}{
		"type":  "software",
		"ops":   s.ops.Load(),
		"bytes": s.bytes.Load(),
	}
}

func (s *Software) check(op uapi.Opcode, n int) error {
	if s.closed.Load() {
		return dsaerr.QueueClosed(opName(op), "software")
	}
	if uint64(n) > constants.MaxTransferSize {
		return dsaerr.Newf(opName(op), dsaerr.CodeInvalidArgument,
			"transfer of %d bytes exceeds %d", n, uint64(constants.MaxTransferSize))
	}
	return nil
}

func (s *Software) record(op uapi.Opcode, n int, start time.Time) {
	s.ops.Add(1)
	s.bytes.Add(uint64(n))
	s.observer.ObserveOp(op, uint64(n), uint64(time.Since(start).Nanoseconds()), true)
}

// fill writes the little-endian pattern across dst, doubling the written
// prefix each pass
func fill(dst []byte, pattern uint64) {
	var pat [8]byte
	binary.LittleEndian.PutUint64(pat[:], pattern)
	n := copy(dst, pat[:])
	for n < len(dst) {
		n += copy(dst[n:], dst[:n])
	}
}

func opName(op uapi.Opcode) string {
	return strings.ToLower(op.Name())
}

// Compile-time interface check
var _ interfaces.Queue = (*Software)(nil)
