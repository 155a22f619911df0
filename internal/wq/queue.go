// Package wq drives a DSA work queue: it builds descriptors for caller
// buffers, submits them through a portal and waits for the device to
// complete them.
package wq

import (
	"encoding/hex"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/rs/xid"

	"github.com/ehrlich-b/go-dsa/internal/constants"
	"github.com/ehrlich-b/go-dsa/internal/dsaerr"
	"github.com/ehrlich-b/go-dsa/internal/interfaces"
	"github.com/ehrlich-b/go-dsa/internal/logging"
	"github.com/ehrlich-b/go-dsa/internal/portal"
	"github.com/ehrlich-b/go-dsa/internal/uapi"
)

// Config configures a WorkQueue
type Config struct {
	Portal portal.Portal
	Name   string // e.g. "wq0.0"
	Mode   uapi.WQMode

	// MaxRetries bounds ENQCMD retries on a shared queue. Negative means none.
	MaxRetries int

	// SpinIterations bounds completion polling. Zero or negative selects
	// constants.DefaultSpinIterations.
	SpinIterations int

	// BlockOnFault asks the device to wait for page faults to be resolved
	// instead of reporting them. The queue must have block_on_fault enabled.
	BlockOnFault bool

	Logger   *logging.Logger
	Observer interfaces.Observer
}

// DefaultConfig returns a configuration with the default retry and spin budgets
func DefaultConfig(p portal.Portal, name string, mode uapi.WQMode) Config {
	return Config{
		Portal:         p,
		Name:           name,
		Mode:           mode,
		MaxRetries:     constants.DefaultMaxRetries,
		SpinIterations: constants.DefaultSpinIterations,
	}
}

// WorkQueue is a hardware-backed queue. It is safe for concurrent use; every
// operation owns its descriptor and completion record while the portal is
// shared.
type WorkQueue struct {
	portal       portal.Portal
	name         string
	blockOnFault bool
	logger       *logging.Logger
	observer     interfaces.Observer

	mode       atomic.Int32
	maxRetries atomic.Int64
	spins      atomic.Int64

	// mu is held shared by operations and exclusively by Close
	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	closeErr  error

	// abandoned holds slots and buffers of timed-out operations. The device
	// may still write them, so they stay pinned until the portal is closed.
	abandonMu sync.Mutex
	abandoned []*abandonedOp
}

type abandonedOp struct {
	slot *slot
	pin  *runtime.Pinner
}

var _ interfaces.TunableQueue = (*WorkQueue)(nil)

// New creates a work queue over cfg.Portal. The queue owns the portal and
// closes it in Close.
func New(cfg Config) (*WorkQueue, error) {
	if cfg.Portal == nil {
		return nil, dsaerr.InvalidArgument("open", "work queue requires a portal")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = interfaces.NoOpObserver{}
	}

	q := &WorkQueue{
		portal:       cfg.Portal,
		name:         cfg.Name,
		blockOnFault: cfg.BlockOnFault,
		logger:       cfg.Logger.WithQueue(cfg.Name),
		observer:     cfg.Observer,
	}
	q.SetMode(cfg.Mode)
	q.SetMaxRetries(cfg.MaxRetries)
	q.SetSpinIterations(cfg.SpinIterations)

	q.logger.Debug("work queue ready", "mode", cfg.Mode.String(),
		"max_retries", q.MaxRetries(), "spin_iterations", q.SpinIterations())
	return q, nil
}

// Name returns the work queue name
func (q *WorkQueue) Name() string {
	return q.name
}

// Mode returns the submission discipline in use
func (q *WorkQueue) Mode() uapi.WQMode {
	return uapi.WQMode(q.mode.Load())
}

// SetMode changes the submission discipline
func (q *WorkQueue) SetMode(m uapi.WQMode) {
	q.mode.Store(int32(m))
}

// MaxRetries returns the ENQCMD retry budget
func (q *WorkQueue) MaxRetries() int {
	return int(q.maxRetries.Load())
}

// SetMaxRetries sets the ENQCMD retry budget. Negative values mean no retries.
func (q *WorkQueue) SetMaxRetries(n int) {
	if n < 0 {
		n = 0
	}
	q.maxRetries.Store(int64(n))
}

// SpinIterations returns the completion poll budget
func (q *WorkQueue) SpinIterations() int {
	return int(q.spins.Load())
}

// SetSpinIterations sets the completion poll budget
func (q *WorkQueue) SetSpinIterations(n int) {
	if n <= 0 {
		n = constants.DefaultSpinIterations
	}
	q.spins.Store(int64(n))
}

// Checksum computes the CRC-32C of data continuing from seed
func (q *WorkQueue) Checksum(data []byte, seed uint32) (uint32, error) {
	if len(data) == 0 {
		return seed, nil
	}
	if err := checkSize(uapi.OpCRCGen, len(data)); err != nil {
		return 0, err
	}

	var crc uint32
	err := q.execute(uapi.OpCRCGen, len(data),
		func(d *uapi.Descriptor, cr *uapi.CompletionRecord) {
			*d = uapi.NewCRCGen(addrOf(data), uint32(len(data)), seed, cr)
		},
		func(cr *uapi.CompletionRecord) { crc = cr.CRC32() },
		data, nil)
	return crc, err
}

// Copy copies src into the front of dst
func (q *WorkQueue) Copy(dst, src []byte) error {
	if len(dst) < len(src) {
		return dsaerr.SizeMismatch(opName(uapi.OpMemMove), len(src), len(dst))
	}
	if len(src) == 0 {
		return nil
	}
	if err := checkSize(uapi.OpMemMove, len(src)); err != nil {
		return err
	}

	return q.execute(uapi.OpMemMove, len(src),
		func(d *uapi.Descriptor, cr *uapi.CompletionRecord) {
			*d = uapi.NewMemMove(addrOf(dst), addrOf(src), uint32(len(src)), cr)
		},
		nil, dst, src)
}

// Fill repeats the little-endian pattern across dst
func (q *WorkQueue) Fill(dst []byte, pattern uint64) error {
	if len(dst) == 0 {
		return nil
	}
	if err := checkSize(uapi.OpMemFill, len(dst)); err != nil {
		return err
	}

	return q.execute(uapi.OpMemFill, len(dst),
		func(d *uapi.Descriptor, cr *uapi.CompletionRecord) {
			*d = uapi.NewMemFill(addrOf(dst), pattern, uint32(len(dst)), cr)
		},
		nil, dst, nil)
}

// Compare reports whether a and b hold the same bytes
func (q *WorkQueue) Compare(a, b []byte) (bool, error) {
	if len(a) != len(b) {
		return false, dsaerr.SizeMismatch(opName(uapi.OpCompare), len(a), len(b))
	}
	if len(a) == 0 {
		return true, nil
	}
	if err := checkSize(uapi.OpCompare, len(a)); err != nil {
		return false, err
	}

	var equal bool
	err := q.execute(uapi.OpCompare, len(a),
		func(d *uapi.Descriptor, cr *uapi.CompletionRecord) {
			*d = uapi.NewCompare(addrOf(a), addrOf(b), uint32(len(a)), cr)
		},
		func(cr *uapi.CompletionRecord) { equal = cr.Equal() },
		a, b)
	return equal, err
}

// Noop submits a descriptor that only writes its completion record
func (q *WorkQueue) Noop() error {
	return q.execute(uapi.OpNoop, 0,
		func(d *uapi.Descriptor, cr *uapi.CompletionRecord) {
			*d = uapi.NewNoop(cr)
		},
		nil, nil, nil)
}

// execute runs one operation: take a slot, pin the buffers, build and
// submit the descriptor, wait, then hand the record to read on success.
func (q *WorkQueue) execute(op uapi.Opcode, n int,
	build func(d *uapi.Descriptor, cr *uapi.CompletionRecord),
	read func(cr *uapi.CompletionRecord),
	buf1, buf2 []byte) error {

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return dsaerr.QueueClosed(opName(op), q.name)
	}

	start := time.Now()
	spins, maxRetries := q.SpinIterations(), q.MaxRetries()
	s := getSlot()

	pin := new(runtime.Pinner)
	pin.Pin(&s.buf[0])
	if len(buf1) > 0 {
		pin.Pin(&buf1[0])
	}
	if len(buf2) > 0 {
		pin.Pin(&buf2[0])
	}

	build(s.desc, s.cr)
	if q.blockOnFault {
		s.desc.AddFlags(uapi.FlagBlockOnFault)
	}

	var log *logging.Logger
	if q.logger.DebugEnabled() {
		log = q.logger.WithOp(xid.New().String(), op.Name())
		log.Debug("submitting descriptor", "bytes", n, "desc", s.desc.String())
	}

	// Descriptor and zeroed record must be visible before the portal write
	portal.Sfence()

	var err *dsaerr.Error
	if q.Mode() == uapi.WQDedicated {
		q.portal.SubmitPosted(s.desc)
		q.observer.ObserveSubmit(0, true)
	} else {
		accepted, retries := portal.SubmitWithRetry(q.portal, s.desc, maxRetries)
		q.observer.ObserveSubmit(retries, accepted)
		if log != nil {
			log.Debug("enqcmd finished", "accepted", accepted, "retries", retries)
		}
		if !accepted {
			err = dsaerr.QueueFull("", q.name, retries+1)
		}
	}

	if err == nil {
		err = wait(s.cr, spins)
	}

	var record []byte
	if err != nil && err.Timeout {
		// The device may still write the record and buffers
		q.abandon(s, pin)
	} else {
		if err == nil && read != nil {
			read(s.cr)
		}
		if err != nil && log != nil {
			record = uapi.MarshalCompletionRecord(s.cr)
		}
		pin.Unpin()
		putSlot(s)
	}
	runtime.KeepAlive(buf1)
	runtime.KeepAlive(buf2)

	q.observer.ObserveOp(op, uint64(n), uint64(time.Since(start).Nanoseconds()), err == nil)
	if err == nil {
		if log != nil {
			log.Debug("operation complete", "latency", time.Since(start))
		}
		return nil
	}

	err.Op = opName(op)
	err.Queue = q.name
	switch {
	case err.Timeout:
		q.observer.ObserveTimeout(op)
	case err.Code == dsaerr.CodePageFault:
		q.observer.ObservePageFault(op, err.FaultAddr)
	}
	if log != nil {
		log.WithError(err).Debug("operation failed", "record", hex.EncodeToString(record))
	}
	return err
}

func (q *WorkQueue) abandon(s *slot, pin *runtime.Pinner) {
	q.abandonMu.Lock()
	q.abandoned = append(q.abandoned, &abandonedOp{slot: s, pin: pin})
	count := len(q.abandoned)
	q.abandonMu.Unlock()
	q.logger.Warn("completion timed out; record retired", "abandoned", count)
}

// Abandoned returns how many timed-out operations are holding memory
func (q *WorkQueue) Abandoned() int {
	q.abandonMu.Lock()
	defer q.abandonMu.Unlock()
	return len(q.abandoned)
}

// Close waits for in-flight operations, then releases the portal exactly
// once. Later operations fail with QueueClosed.
func (q *WorkQueue) Close() error {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()

		q.closeErr = q.portal.Close()

		// With the device handle gone nothing can write retired memory
		q.abandonMu.Lock()
		for _, a := range q.abandoned {
			a.pin.Unpin()
		}
		q.abandoned = nil
		q.abandonMu.Unlock()

		q.logger.Debug("work queue closed")
	})
	return q.closeErr
}

func checkSize(op uapi.Opcode, n int) error {
	if uint64(n) > constants.MaxTransferSize {
		return dsaerr.Newf(opName(op), dsaerr.CodeInvalidArgument,
			"transfer of %d bytes exceeds %d", n, uint64(constants.MaxTransferSize))
	}
	return nil
}

func opName(op uapi.Opcode) string {
	return strings.ToLower(op.Name())
}

func addrOf(b []byte) uint64 {
	return uint64(uintptr(unsafe.Pointer(&b[0])))
}
