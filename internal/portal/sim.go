package portal

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ehrlich-b/go-dsa/internal/constants"
	"github.com/ehrlich-b/go-dsa/internal/uapi"
)

// SimConfig configures a Simulator
type SimConfig struct {
	// Mode selects the accepted submission path. Dedicated queues lose
	// descriptors beyond Depth; shared queues reject them.
	Mode  uapi.WQMode
	Depth int // maximum descriptors in flight

	// MaxTransferSize rejects larger descriptors with a transfer size error.
	// Zero means unlimited.
	MaxTransferSize uint32
}

var simCRCTable = crc32.MakeTable(crc32.Castagnoli)

// Simulator is a Portal that executes descriptors in software the way the
// device would. It reads and writes the raw addresses a descriptor carries,
// so callers must keep those buffers pinned until the record completes.
type Simulator struct {
	cfg SimConfig

	mu       sync.Mutex
	cond     *sync.Cond
	paused   bool
	inFlight int
	closed   bool
	wg       sync.WaitGroup

	hang     atomic.Bool
	failNext atomic.Uint32 // status+1 to force on the next descriptor, 0 for none

	submitted atomic.Uint64
	rejected  atomic.Uint64
	dropped   atomic.Uint64
	completed atomic.Uint64
}

// NewSimulator creates a simulated work queue portal
func NewSimulator(cfg SimConfig) *Simulator {
	if cfg.Depth <= 0 {
		cfg.Depth = 1
	}
	s := &Simulator{cfg: cfg}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Mode returns the simulated queue mode
func (s *Simulator) Mode() uapi.WQMode {
	return s.cfg.Mode
}

// Depth returns the simulated queue depth
func (s *Simulator) Depth() int {
	return s.cfg.Depth
}

// SubmitPosted accepts d on a dedicated queue with room for it. Anything
// else is silently lost, as MOVDIR64B has no failure signal.
func (s *Simulator) SubmitPosted(d *uapi.Descriptor) {
	if s.cfg.Mode != uapi.WQDedicated || !s.admit(d) {
		s.dropped.Add(1)
	}
}

// SubmitNonPosted accepts d on a shared queue with room for it
func (s *Simulator) SubmitNonPosted(d *uapi.Descriptor) bool {
	if s.cfg.Mode != uapi.WQShared || !s.admit(d) {
		s.rejected.Add(1)
		return false
	}
	return true
}

// admit reserves a slot and starts executing d. The descriptor is captured
// as its 64-byte wire image at submission, just as the device reads all 64
// bytes in one transaction.
func (s *Simulator) admit(d *uapi.Descriptor) bool {
	s.mu.Lock()
	if s.closed || s.inFlight >= s.cfg.Depth {
		s.mu.Unlock()
		return false
	}
	s.inFlight++
	s.wg.Add(1)
	s.mu.Unlock()

	var wire [constants.DescriptorSize]byte
	uapi.PutDescriptor(wire[:], d)

	s.submitted.Add(1)
	go s.run(wire)
	return true
}

func (s *Simulator) run(wire [constants.DescriptorSize]byte) {
	defer s.wg.Done()

	// wire always holds a full record
	var desc uapi.Descriptor
	_ = uapi.UnmarshalDescriptor(wire[:], &desc)

	s.mu.Lock()
	for s.paused {
		s.cond.Wait()
	}
	s.mu.Unlock()

	if !s.hang.Load() {
		s.execute(&desc)
		s.completed.Add(1)
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
}

// execute performs desc and writes its completion record
func (s *Simulator) execute(d *uapi.Descriptor) {
	flags := d.Flags()
	if flags&uapi.FlagCompletionAddrValid == 0 || d.CompletionAddr == 0 {
		return
	}
	if d.CompletionAddr%32 != 0 {
		// A misaligned record cannot be written
		return
	}
	cr := simRecord(d.CompletionAddr)

	if forced := s.failNext.Swap(0); forced != 0 {
		s.fail(d, cr, uint8(forced-1))
		return
	}

	if s.cfg.MaxTransferSize != 0 && d.XferSize > s.cfg.MaxTransferSize {
		cr.Complete(uapi.StatusXferErr, 0, 0)
		return
	}

	n := int(d.XferSize)
	switch d.Opcode() {
	case uapi.OpNoop:
		cr.Complete(uapi.StatusSuccess, 0, 0)

	case uapi.OpMemMove:
		copy(simBytes(d.Dst, n), simBytes(d.Src, n))
		cr.BytesCompleted = d.XferSize
		cr.Complete(uapi.StatusSuccess, 0, 0)

	case uapi.OpMemFill:
		simFill(simBytes(d.Dst, n), d.Src)
		cr.BytesCompleted = d.XferSize
		cr.Complete(uapi.StatusSuccess, 0, 0)

	case uapi.OpCompare:
		a, b := simBytes(d.Src, n), simBytes(d.Dst, n)
		if bytes.Equal(a, b) {
			cr.Complete(uapi.StatusSuccess, uapi.CompareEqual, 0)
			return
		}
		cr.BytesCompleted = uint32(firstMismatch(a, b))
		cr.Complete(uapi.StatusSuccess, uapi.CompareNotEqual, 0)

	case uapi.OpCRCGen:
		cr.ResultValue = uint64(crc32.Update(uint32(d.Seed), simCRCTable, simBytes(d.Src, n)))
		cr.BytesCompleted = d.XferSize
		cr.Complete(uapi.StatusSuccess, 0, 0)

	default:
		cr.Complete(uapi.StatusBadOpcode, 0, 0)
	}
}

// fail completes d with a forced status. Page faults report the midpoint of
// the transfer as the faulting address.
func (s *Simulator) fail(d *uapi.Descriptor, cr *uapi.CompletionRecord, status uint8) {
	code := status & uapi.StatusMask
	if code == uapi.StatusPageFaultNoBOF || code == uapi.StatusPageFaultIR {
		half := d.XferSize / 2
		base := d.Src
		var info uint8
		switch d.Opcode() {
		case uapi.OpMemMove, uapi.OpMemFill:
			base = d.Dst
			status |= uapi.StatusWriteFault
			info = uapi.FaultInfoWrite
		}
		cr.FaultAddr = base + uint64(half)
		cr.BytesCompleted = half
		cr.Complete(status, 0, info)
		return
	}
	cr.Complete(status, 0, 0)
}

// Pause holds admitted descriptors until Resume. Submissions still count
// against the depth, which lets tests fill the queue deterministically.
func (s *Simulator) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume releases paused descriptors
func (s *Simulator) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.cond.Broadcast()
}

// SetHang makes admitted descriptors never write their completion record
func (s *Simulator) SetHang(hang bool) {
	s.hang.Store(hang)
}

// FailNext forces the next executed descriptor to complete with status
func (s *Simulator) FailNext(status uint8) {
	s.failNext.Store(uint32(status) + 1)
}

// InFlight returns the number of admitted descriptors not yet finished
func (s *Simulator) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// SimStats is a point-in-time view of simulator counters
type SimStats struct {
	Submitted uint64
	Rejected  uint64
	Dropped   uint64
	Completed uint64
}

// Stats returns the simulator counters
func (s *Simulator) Stats() SimStats {
	return SimStats{
		Submitted: s.submitted.Load(),
		Rejected:  s.rejected.Load(),
		Dropped:   s.dropped.Load(),
		Completed: s.completed.Load(),
	}
}

// Close stops admitting descriptors and waits for in-flight ones to finish
func (s *Simulator) Close() error {
	s.mu.Lock()
	s.closed = true
	s.paused = false
	s.mu.Unlock()
	s.cond.Broadcast()
	s.wg.Wait()
	return nil
}

// Descriptors carry raw addresses of pinned caller memory. These helpers are
// the only places they become pointers again.

//go:nocheckptr
func simRecord(addr uint64) *uapi.CompletionRecord {
	return (*uapi.CompletionRecord)(unsafe.Pointer(uintptr(addr)))
}

//go:nocheckptr
func simBytes(addr uint64, n int) []byte {
	if n == 0 || addr == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), n)
}

func simFill(dst []byte, pattern uint64) {
	var pat [8]byte
	binary.LittleEndian.PutUint64(pat[:], pattern)
	for i := 0; i < len(dst); i += 8 {
		copy(dst[i:], pat[:])
	}
}

func firstMismatch(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			return i
		}
	}
	return len(a)
}
