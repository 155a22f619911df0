package dsa

import (
	"testing"
	"time"

	"github.com/ehrlich-b/go-dsa/internal/uapi"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.TotalOps != 0 {
		t.Errorf("Expected 0 initial ops, got %d", snap.TotalOps)
	}

	m.RecordOp(uapi.OpCRCGen, 1024, 1000000, true)  // 1KB checksum, 1ms
	m.RecordOp(uapi.OpMemMove, 2048, 2000000, true) // 2KB copy, 2ms
	m.RecordOp(uapi.OpCRCGen, 512, 500000, false)   // failed checksum

	snap = m.Snapshot()

	if snap.Checksum.Ops != 2 {
		t.Errorf("Expected 2 checksum ops, got %d", snap.Checksum.Ops)
	}
	if snap.Copy.Ops != 1 {
		t.Errorf("Expected 1 copy op, got %d", snap.Copy.Ops)
	}

	// Only successful operations count bytes
	if snap.Checksum.Bytes != 1024 {
		t.Errorf("Expected 1024 checksum bytes, got %d", snap.Checksum.Bytes)
	}
	if snap.TotalBytes != 3072 {
		t.Errorf("Expected 3072 total bytes, got %d", snap.TotalBytes)
	}

	if snap.Checksum.Errors != 1 {
		t.Errorf("Expected 1 checksum error, got %d", snap.Checksum.Errors)
	}
	if snap.Copy.Errors != 0 {
		t.Errorf("Expected 0 copy errors, got %d", snap.Copy.Errors)
	}

	expectedErrorRate := float64(1) / float64(3) * 100.0
	if snap.ErrorRate < expectedErrorRate-0.1 || snap.ErrorRate > expectedErrorRate+0.1 {
		t.Errorf("Expected error rate ~%.1f%%, got %.1f%%", expectedErrorRate, snap.ErrorRate)
	}
}

func TestMetricsOpKinds(t *testing.T) {
	m := NewMetrics()
	m.RecordOp(uapi.OpMemFill, 64, 10, true)
	m.RecordOp(uapi.OpCompare, 64, 10, true)
	m.RecordOp(uapi.OpNoop, 0, 10, true)

	snap := m.Snapshot()
	if snap.Fill.Ops != 1 || snap.Compare.Ops != 1 || snap.Noop.Ops != 1 {
		t.Errorf("op kinds not separated: fill=%d compare=%d noop=%d",
			snap.Fill.Ops, snap.Compare.Ops, snap.Noop.Ops)
	}
	if snap.TotalOps != 3 {
		t.Errorf("Expected 3 total ops, got %d", snap.TotalOps)
	}
}

func TestMetricsSubmissions(t *testing.T) {
	m := NewMetrics()

	m.RecordSubmit(0, true)
	m.RecordSubmit(12, true)
	m.RecordSubmit(5, true)
	m.RecordSubmit(100, false)

	snap := m.Snapshot()
	if snap.Submissions != 4 {
		t.Errorf("Expected 4 submissions, got %d", snap.Submissions)
	}
	if snap.Retries != 117 {
		t.Errorf("Expected 117 retries, got %d", snap.Retries)
	}
	if snap.Rejected != 1 {
		t.Errorf("Expected 1 rejected submission, got %d", snap.Rejected)
	}
	// Rejected submissions do not move the accepted maximum
	if snap.MaxRetries != 12 {
		t.Errorf("Expected max retries 12, got %d", snap.MaxRetries)
	}
	if snap.AvgRetries < 29.2 || snap.AvgRetries > 29.3 {
		t.Errorf("Expected avg retries 29.25, got %.2f", snap.AvgRetries)
	}
}

func TestMetricsLatency(t *testing.T) {
	m := NewMetrics()

	m.RecordOp(uapi.OpCRCGen, 1024, 1000000, true)
	m.RecordOp(uapi.OpMemMove, 1024, 2000000, true)

	snap := m.Snapshot()
	if snap.AvgLatencyNs != 1500000 {
		t.Errorf("Expected avg latency 1500000 ns, got %d ns", snap.AvgLatencyNs)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()
	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()
	if snap.UptimeNs < 10*1000000 {
		t.Errorf("Expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()
	if snap2.UptimeNs > snap.UptimeNs+2*1000000 {
		t.Errorf("Uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordOp(uapi.OpCRCGen, 1024, 1000000, true)
	m.RecordSubmit(7, true)
	m.Timeouts.Add(1)

	if m.Snapshot().TotalOps == 0 {
		t.Error("Expected some operations before reset")
	}

	m.Reset()

	snap := m.Snapshot()
	if snap.TotalOps != 0 {
		t.Errorf("Expected 0 ops after reset, got %d", snap.TotalOps)
	}
	if snap.TotalBytes != 0 {
		t.Errorf("Expected 0 bytes after reset, got %d", snap.TotalBytes)
	}
	if snap.MaxRetries != 0 || snap.Timeouts != 0 {
		t.Errorf("Expected cleared submission stats, got max=%d timeouts=%d", snap.MaxRetries, snap.Timeouts)
	}
}

func TestObserver(t *testing.T) {
	// NoOpObserver must not panic
	var observer Observer = NoOpObserver{}
	observer.ObserveOp(uapi.OpCRCGen, 1024, 1000000, true)
	observer.ObserveSubmit(3, true)
	observer.ObserveTimeout(uapi.OpMemMove)
	observer.ObservePageFault(uapi.OpMemMove, 0x1000)

	m := NewMetrics()
	metricsObserver := NewMetricsObserver(m)

	metricsObserver.ObserveOp(uapi.OpCRCGen, 1024, 1000000, true)
	metricsObserver.ObserveOp(uapi.OpMemFill, 2048, 2000000, false)
	metricsObserver.ObserveSubmit(4, true)
	metricsObserver.ObserveTimeout(uapi.OpMemFill)
	metricsObserver.ObservePageFault(uapi.OpMemMove, 0x1000)

	snap := m.Snapshot()
	if snap.Checksum.Ops != 1 || snap.Checksum.Bytes != 1024 {
		t.Errorf("checksum from observer = %+v", snap.Checksum)
	}
	if snap.Fill.Errors != 1 {
		t.Errorf("Expected 1 fill error from observer, got %d", snap.Fill.Errors)
	}
	if snap.Retries != 4 || snap.Timeouts != 1 || snap.PageFaults != 1 {
		t.Errorf("submission stats = retries %d timeouts %d faults %d",
			snap.Retries, snap.Timeouts, snap.PageFaults)
	}
}

func TestMultiObserver(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	obs := multiObserver{NewMetricsObserver(a), NewMetricsObserver(b)}

	obs.ObserveOp(uapi.OpNoop, 0, 100, true)
	obs.ObserveSubmit(1, true)

	for i, m := range []*Metrics{a, b} {
		snap := m.Snapshot()
		if snap.Noop.Ops != 1 || snap.Retries != 1 {
			t.Errorf("observer %d missed events: %+v", i, snap)
		}
	}
}

func TestMetricsRates(t *testing.T) {
	m := NewMetrics()

	startTime := time.Now()
	m.StartTime.Store(startTime.UnixNano())

	m.RecordOp(uapi.OpCRCGen, 1024, 1000000, true)
	m.RecordOp(uapi.OpMemMove, 2048, 2000000, true)

	m.StopTime.Store(startTime.Add(1 * time.Second).UnixNano())

	snap := m.Snapshot()
	if snap.OpsPerSec < 1.9 || snap.OpsPerSec > 2.1 {
		t.Errorf("Expected OpsPerSec ~2.0, got %.2f", snap.OpsPerSec)
	}
	if snap.Bandwidth < 3000 || snap.Bandwidth > 3100 {
		t.Errorf("Expected Bandwidth ~3072, got %.2f", snap.Bandwidth)
	}
}

func TestMetricsHistogram(t *testing.T) {
	m := NewMetrics()

	// 50 ops at 500us, 49 at 5ms, 1 at 50ms
	for i := 0; i < 50; i++ {
		m.RecordOp(uapi.OpCRCGen, 1024, 500_000, true)
	}
	for i := 0; i < 49; i++ {
		m.RecordOp(uapi.OpMemMove, 1024, 5_000_000, true)
	}
	m.RecordOp(uapi.OpMemMove, 1024, 50_000_000, true)

	snap := m.Snapshot()
	if snap.TotalOps != 100 {
		t.Errorf("Expected 100 total ops, got %d", snap.TotalOps)
	}

	if snap.LatencyP50Ns < 100_000 || snap.LatencyP50Ns > 1_000_000 {
		t.Errorf("Expected P50 in 100us-1ms range, got %d ns", snap.LatencyP50Ns)
	}
	if snap.LatencyP99Ns < 5_000_000 || snap.LatencyP99Ns > 100_000_000 {
		t.Errorf("Expected P99 in 5ms-100ms range, got %d ns", snap.LatencyP99Ns)
	}

	// The 1s bucket is cumulative over everything
	if snap.LatencyHistogram[numLatencyBuckets-1] != 100 {
		t.Errorf("Expected last bucket to hold all ops, got %d", snap.LatencyHistogram[numLatencyBuckets-1])
	}
}
