package dsa

import (
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/go-dsa/internal/interfaces"
	"github.com/ehrlich-b/go-dsa/internal/uapi"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds.
// Buckets cover 100ns to 1s; a DSA operation on a small buffer completes in
// a few microseconds.
var LatencyBuckets = []uint64{
	100,           // 100ns
	1_000,         // 1us
	10_000,        // 10us
	100_000,       // 100us
	1_000_000,     // 1ms
	10_000_000,    // 10ms
	100_000_000,   // 100ms
	1_000_000_000, // 1s
}

const numLatencyBuckets = 8

// OpCounters holds the counters for one operation kind
type OpCounters struct {
	Ops    atomic.Uint64
	Bytes  atomic.Uint64 // bytes processed by successful operations
	Errors atomic.Uint64
}

// Metrics tracks operation and submission statistics for an engine
type Metrics struct {
	Checksum OpCounters
	Copy     OpCounters
	Fill     OpCounters
	Compare  OpCounters
	Noop     OpCounters

	// Submission statistics (hardware shared queues)
	Submissions atomic.Uint64
	Retries     atomic.Uint64 // ENQCMD retries across all submissions
	Rejected    atomic.Uint64 // submissions that exhausted their retries
	MaxRetries  atomic.Uint32 // most retries a single accepted submission needed

	Timeouts   atomic.Uint64
	PageFaults atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	// Each bucket[i] counts operations with latency <= LatencyBuckets[i]
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64 // UnixNano
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) counters(op uapi.Opcode) *OpCounters {
	switch op {
	case uapi.OpCRCGen:
		return &m.Checksum
	case uapi.OpMemMove:
		return &m.Copy
	case uapi.OpMemFill:
		return &m.Fill
	case uapi.OpCompare:
		return &m.Compare
	}
	return &m.Noop
}

// RecordOp records one completed or failed operation
func (m *Metrics) RecordOp(op uapi.Opcode, bytes uint64, latencyNs uint64, success bool) {
	c := m.counters(op)
	c.Ops.Add(1)
	if success {
		c.Bytes.Add(bytes)
	} else {
		c.Errors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordSubmit records the outcome of one portal submission
func (m *Metrics) RecordSubmit(retries int, accepted bool) {
	m.Submissions.Add(1)
	m.Retries.Add(uint64(retries))
	if !accepted {
		m.Rejected.Add(1)
		return
	}

	r := uint32(retries)
	for {
		current := m.MaxRetries.Load()
		if r <= current {
			break
		}
		if m.MaxRetries.CompareAndSwap(current, r) {
			break
		}
	}
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the engine as stopped
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// OpSnapshot is a point-in-time copy of OpCounters
type OpSnapshot struct {
	Ops    uint64
	Bytes  uint64
	Errors uint64
}

func (c *OpCounters) snapshot() OpSnapshot {
	return OpSnapshot{Ops: c.Ops.Load(), Bytes: c.Bytes.Load(), Errors: c.Errors.Load()}
}

// MetricsSnapshot is a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	Checksum OpSnapshot
	Copy     OpSnapshot
	Fill     OpSnapshot
	Compare  OpSnapshot
	Noop     OpSnapshot

	Submissions uint64
	Retries     uint64
	Rejected    uint64
	MaxRetries  uint32
	Timeouts    uint64
	PageFaults  uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	// Cumulative histogram bucket counts
	LatencyHistogram [numLatencyBuckets]uint64

	TotalOps   uint64
	TotalBytes uint64
	OpsPerSec  float64
	Bandwidth  float64 // bytes per second
	ErrorRate  float64 // percentage of failed operations
	AvgRetries float64 // retries per submission
}

// Snapshot creates a point-in-time snapshot of metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Checksum:    m.Checksum.snapshot(),
		Copy:        m.Copy.snapshot(),
		Fill:        m.Fill.snapshot(),
		Compare:     m.Compare.snapshot(),
		Noop:        m.Noop.snapshot(),
		Submissions: m.Submissions.Load(),
		Retries:     m.Retries.Load(),
		Rejected:    m.Rejected.Load(),
		MaxRetries:  m.MaxRetries.Load(),
		Timeouts:    m.Timeouts.Load(),
		PageFaults:  m.PageFaults.Load(),
	}

	var failed uint64
	for _, op := range []OpSnapshot{snap.Checksum, snap.Copy, snap.Fill, snap.Compare, snap.Noop} {
		snap.TotalOps += op.Ops
		snap.TotalBytes += op.Bytes
		failed += op.Errors
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.OpsPerSec = float64(snap.TotalOps) / uptimeSeconds
		snap.Bandwidth = float64(snap.TotalBytes) / uptimeSeconds
	}
	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(failed) / float64(snap.TotalOps) * 100.0
	}
	if snap.Submissions > 0 {
		snap.AvgRetries = float64(snap.Retries) / float64(snap.Submissions)
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// by linear interpolation between histogram buckets
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset clears all counters
func (m *Metrics) Reset() {
	for _, c := range []*OpCounters{&m.Checksum, &m.Copy, &m.Fill, &m.Compare, &m.Noop} {
		c.Ops.Store(0)
		c.Bytes.Store(0)
		c.Errors.Store(0)
	}
	m.Submissions.Store(0)
	m.Retries.Store(0)
	m.Rejected.Store(0)
	m.MaxRetries.Store(0)
	m.Timeouts.Store(0)
	m.PageFaults.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer receives operation events from a queue
type Observer = interfaces.Observer

// NoOpObserver discards all events
type NoOpObserver = interfaces.NoOpObserver

// MetricsObserver implements Observer using the built-in Metrics
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveOp(op uapi.Opcode, bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordOp(op, bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveSubmit(retries int, accepted bool) {
	o.metrics.RecordSubmit(retries, accepted)
}

func (o *MetricsObserver) ObserveTimeout(uapi.Opcode) {
	o.metrics.Timeouts.Add(1)
}

func (o *MetricsObserver) ObservePageFault(uapi.Opcode, uint64) {
	o.metrics.PageFaults.Add(1)
}

// multiObserver fans events out to several observers
type multiObserver []Observer

func (m multiObserver) ObserveOp(op uapi.Opcode, bytes uint64, latencyNs uint64, success bool) {
	for _, o := range m {
		o.ObserveOp(op, bytes, latencyNs, success)
	}
}

func (m multiObserver) ObserveSubmit(retries int, accepted bool) {
	for _, o := range m {
		o.ObserveSubmit(retries, accepted)
	}
}

func (m multiObserver) ObserveTimeout(op uapi.Opcode) {
	for _, o := range m {
		o.ObserveTimeout(op)
	}
}

func (m multiObserver) ObservePageFault(op uapi.Opcode, addr uint64) {
	for _, o := range m {
		o.ObservePageFault(op, addr)
	}
}

// Compile-time interface check
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = multiObserver(nil)
