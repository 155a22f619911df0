// Package dsa offloads checksum, copy, fill and compare to an Intel Data
// Streaming Accelerator work queue, with a software engine that gives the
// same results when no usable queue exists.
package dsa

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/ehrlich-b/go-dsa/backend"
	"github.com/ehrlich-b/go-dsa/internal/dsaerr"
	"github.com/ehrlich-b/go-dsa/internal/idxd"
	"github.com/ehrlich-b/go-dsa/internal/interfaces"
	"github.com/ehrlich-b/go-dsa/internal/logging"
	"github.com/ehrlich-b/go-dsa/internal/portal"
	"github.com/ehrlich-b/go-dsa/internal/uapi"
	"github.com/ehrlich-b/go-dsa/internal/wq"
)

// Simulator is a software model of a hardware work queue portal
type Simulator = portal.Simulator

// Engine runs DSA operations on a hardware work queue or in software.
// It is safe for concurrent use.
type Engine struct {
	queue     interfaces.Queue
	hw        *wq.WorkQueue // nil for the software engine
	sim       *portal.Simulator
	execution ExecutionMode
	wqInfo    idxd.WorkQueueInfo

	metrics *Metrics
	logger  *logging.Logger

	closeOnce sync.Once
	closeErr  error
}

// Info describes an open engine
type Info struct {
	Execution      ExecutionMode `json:"execution"`
	WorkQueue      string        `json:"work_queue,omitempty"`
	Device         string        `json:"device,omitempty"`
	DevicePath     string        `json:"device_path,omitempty"`
	Mode           string        `json:"mode,omitempty"`
	MaxRetries     int           `json:"max_retries"`
	SpinIterations int           `json:"spin_iterations"`
	BlockOnFault   bool          `json:"block_on_fault"`
	Abandoned      int           `json:"abandoned"`
}

// Open opens an engine on the work queue params selects. When no hardware
// queue can be used it returns the detection error, or a software engine if
// params.AllowSoftwareFallback is set.
//
// Example:
//
//	engine, err := dsa.Open(dsa.DefaultParams(), nil)
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//	crc, err := engine.Checksum(data, 0)
func Open(params Params, options *Options) (*Engine, error) {
	options = resolveOptions(options)

	e, err := openHardware(params, options)
	if err == nil {
		return e, nil
	}
	if !params.AllowSoftwareFallback {
		return nil, err
	}

	options.Logger.Info("hardware work queue unavailable, using software engine", "reason", err.Error())
	return OpenSoftware(options), nil
}

// OpenFirst opens the first enabled work queue with default parameters
func OpenFirst(options *Options) (*Engine, error) {
	return Open(DefaultParams(), options)
}

// OpenSoftware returns an engine that runs every operation on the CPU
func OpenSoftware(options *Options) *Engine {
	options = resolveOptions(options)
	metrics := NewMetrics()

	return &Engine{
		queue:     backend.NewSoftware(observerFor(metrics, options)),
		execution: ExecutionSoftware,
		metrics:   metrics,
		logger:    options.Logger,
	}
}

// OpenSimulated returns an engine whose hardware work queue drives a
// simulated device. Every hardware code path runs except the portal write.
func OpenSimulated(sp SimParams, options *Options) (*Engine, error) {
	options = resolveOptions(options)
	if sp.Mode == ModeAuto {
		sp.Mode = ModeShared
	}

	sim := portal.NewSimulator(portal.SimConfig{
		Mode:            sp.Mode,
		Depth:           sp.Depth,
		MaxTransferSize: sp.MaxTransferSize,
	})
	info := idxd.WorkQueueInfo{
		Name:            "sim0.0",
		Device:          "sim0",
		State:           idxd.StateEnabled,
		Mode:            sp.Mode,
		Type:            idxd.TypeUser,
		Size:            uint32(sim.Depth()),
		MaxTransferSize: uint64(sp.MaxTransferSize),
	}

	e, err := newHardwareEngine(sim, info, sp.MaxRetries, sp.SpinIterations, false, options)
	if err != nil {
		sim.Close()
		return nil, err
	}
	e.sim = sim
	e.execution = ExecutionSimulated
	return e, nil
}

func openHardware(params Params, options *Options) (*Engine, error) {
	if !portal.Supported() {
		return nil, dsaerr.New("open", dsaerr.CodePlatformNotSupported,
			"CPU lacks MOVDIR64B/ENQCMD")
	}

	info, err := resolveQueue(params.WorkQueue, options.Discoverer)
	if err != nil {
		return nil, err
	}
	if params.Mode != ModeAuto {
		info.Mode = params.Mode
	}
	if params.BlockOnFault && !info.BlockOnFault {
		options.Logger.Warn("block on fault requested but not enabled on the queue", "wq", info.Name)
	}

	p, err := portal.Map(info.DevicePath)
	if err != nil {
		return nil, err
	}

	e, err := newHardwareEngine(p, *info, params.MaxRetries, params.SpinIterations,
		params.BlockOnFault, options)
	if err != nil {
		p.Close()
		return nil, err
	}
	return e, nil
}

func newHardwareEngine(p portal.Portal, info idxd.WorkQueueInfo, maxRetries, spins int,
	blockOnFault bool, options *Options) (*Engine, error) {

	metrics := NewMetrics()
	logger := options.Logger
	if info.Device != "" {
		logger = logger.WithDevice(info.Device)
	}

	cfg := wq.DefaultConfig(p, info.Name, info.Mode)
	cfg.MaxRetries = maxRetries
	cfg.SpinIterations = spins
	cfg.BlockOnFault = blockOnFault
	cfg.Logger = logger
	cfg.Observer = observerFor(metrics, options)

	q, err := wq.New(cfg)
	if err != nil {
		return nil, err
	}

	info.BlockOnFault = blockOnFault
	logger.Info("work queue opened", "wq", info.Name, "mode", info.Mode.String(), "path", info.DevicePath)
	return &Engine{
		queue:     q,
		hw:        q,
		execution: ExecutionHardware,
		wqInfo:    info,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// resolveQueue maps a queue name, device path or "" onto a usable queue
func resolveQueue(name string, disc *idxd.Discoverer) (*idxd.WorkQueueInfo, error) {
	switch {
	case name == "":
		return disc.FirstEnabled()

	case strings.ContainsRune(name, '/'):
		base := filepath.Base(name)
		info, err := disc.Lookup(base)
		if err != nil {
			// A node outside the idxd layout has no sysfs attributes
			info = &idxd.WorkQueueInfo{Name: base, State: idxd.StateEnabled, Mode: uapi.WQShared}
		}
		info.DevicePath = name
		return info, nil

	default:
		info, err := disc.Lookup(name)
		if err != nil {
			return nil, err
		}
		if !info.Enabled() {
			return nil, dsaerr.New("open", dsaerr.CodeDeviceNotEnabled,
				"work queue "+name+" is not enabled")
		}
		return info, nil
	}
}

func resolveOptions(options *Options) *Options {
	out := Options{}
	if options != nil {
		out = *options
	}
	if out.Logger == nil {
		out.Logger = logging.Default()
	}
	if out.Discoverer == nil {
		out.Discoverer = idxd.NewDiscoverer()
		out.Discoverer.Logger = out.Logger
	}
	return &out
}

func observerFor(metrics *Metrics, options *Options) Observer {
	mo := NewMetricsObserver(metrics)
	if options.Observer == nil {
		return mo
	}
	return multiObserver{mo, options.Observer}
}

// Checksum computes the CRC-32C of data continuing from seed. Empty data
// returns seed.
func (e *Engine) Checksum(data []byte, seed uint32) (uint32, error) {
	return e.queue.Checksum(data, seed)
}

// CRC32 computes the CRC-32C of data with a zero seed
func (e *Engine) CRC32(data []byte) (uint32, error) {
	return e.queue.Checksum(data, 0)
}

// Copy copies src into the front of dst. dst must be at least len(src).
func (e *Engine) Copy(dst, src []byte) error {
	return e.queue.Copy(dst, src)
}

// Fill writes the little-endian pattern repeatedly across dst
func (e *Engine) Fill(dst []byte, pattern uint64) error {
	return e.queue.Fill(dst, pattern)
}

// Compare reports whether a and b hold identical bytes. Lengths must match.
func (e *Engine) Compare(a, b []byte) (bool, error) {
	return e.queue.Compare(a, b)
}

// Noop round-trips an empty descriptor, probing that the queue is live
func (e *Engine) Noop() error {
	return e.queue.Noop()
}

// Mode returns where operations execute
func (e *Engine) Mode() ExecutionMode {
	return e.execution
}

// IsHardware reports whether operations go through a work queue portal,
// real or simulated
func (e *Engine) IsHardware() bool {
	return e.hw != nil
}

// SetMaxRetries sets the ENQCMD retry budget. The software engine ignores it.
func (e *Engine) SetMaxRetries(n int) {
	if tq, ok := e.queue.(interfaces.TunableQueue); ok {
		tq.SetMaxRetries(n)
	}
}

// SetSpinIterations sets the completion poll budget. The software engine
// ignores it.
func (e *Engine) SetSpinIterations(n int) {
	if tq, ok := e.queue.(interfaces.TunableQueue); ok {
		tq.SetSpinIterations(n)
	}
}

// SetSubmissionMode switches between MOVDIR64B and ENQCMD submission. It
// must match how the queue is configured.
func (e *Engine) SetSubmissionMode(m WQMode) {
	if e.hw != nil && m != ModeAuto {
		e.hw.SetMode(m)
	}
}

// Info returns a description of the engine
func (e *Engine) Info() Info {
	info := Info{Execution: e.execution}
	if e.hw == nil {
		return info
	}

	info.WorkQueue = e.wqInfo.Name
	info.Device = e.wqInfo.Device
	info.DevicePath = e.wqInfo.DevicePath
	info.Mode = e.hw.Mode().String()
	info.MaxRetries = e.hw.MaxRetries()
	info.SpinIterations = e.hw.SpinIterations()
	info.BlockOnFault = e.wqInfo.BlockOnFault
	info.Abandoned = e.hw.Abandoned()
	return info
}

// Simulator returns the simulated device behind an OpenSimulated engine,
// or nil
func (e *Engine) Simulator() *Simulator {
	return e.sim
}

// Metrics returns the live metrics of the engine
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsSnapshot returns a point-in-time snapshot of engine metrics
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

// Close waits for in-flight operations and releases the work queue. It is
// safe to call more than once; operations after Close fail with
// ErrQueueClosed.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.metrics.Stop()
		e.closeErr = e.queue.Close()
		e.logger.Debug("engine closed", "execution", string(e.execution))
	})
	return e.closeErr
}
