//go:build !integration

package unit

import (
	"errors"
	"hash/crc32"
	"testing"

	"github.com/ehrlich-b/go-dsa"
	"github.com/ehrlich-b/go-dsa/internal/interfaces"
	"github.com/ehrlich-b/go-dsa/internal/logging"
	"github.com/ehrlich-b/go-dsa/internal/uapi"
)

// These tests run without a DSA device

func TestUAPIConstants(t *testing.T) {
	if uapi.OpMemMove != 0x04 {
		t.Errorf("OpMemMove = %#x, want 0x04", uint8(uapi.OpMemMove))
	}
	if uapi.OpCRCGen != 0x10 {
		t.Errorf("OpCRCGen = %#x, want 0x10", uint8(uapi.OpCRCGen))
	}
	if uapi.CompletionFlags != 0x000C {
		t.Errorf("CompletionFlags = %#x, want 0xc", uapi.CompletionFlags)
	}
	if uapi.StatusPageFaultNoBOF|uapi.StatusWriteFault != 0x83 {
		t.Error("write fault bit does not combine with the fault status")
	}
}

func TestQueueInterface(t *testing.T) {
	engine := dsa.OpenSoftware(nil)
	defer engine.Close()

	// Engines are usable wherever a queue is
	var q interfaces.Queue = engine

	data := []byte("the quick brown fox")
	got, err := q.Checksum(data, 0)
	if err != nil {
		t.Fatalf("Checksum failed: %v", err)
	}
	if want := crc32.Checksum(data, crc32.MakeTable(crc32.Castagnoli)); got != want {
		t.Errorf("Checksum = %#08x, want %#08x", got, want)
	}

	dst := make([]byte, len(data))
	if err := q.Copy(dst, data); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	equal, err := q.Compare(dst, data)
	if err != nil || !equal {
		t.Errorf("Compare after Copy = %v, %v", equal, err)
	}
}

func TestSimulatedMatchesSoftware(t *testing.T) {
	sim, err := dsa.OpenSimulated(dsa.DefaultSimParams(), &dsa.Options{Logger: logging.Nop()})
	if err != nil {
		t.Fatalf("OpenSimulated failed: %v", err)
	}
	defer sim.Close()

	sw := dsa.OpenSoftware(nil)
	defer sw.Close()

	buf := make([]byte, 12345)
	for i := range buf {
		buf[i] = byte(i * 31)
	}
	hw, err := sim.Checksum(buf, 0xFFFFFFFF)
	if err != nil {
		t.Fatalf("simulated Checksum failed: %v", err)
	}
	want, _ := sw.Checksum(buf, 0xFFFFFFFF)
	if hw != want {
		t.Errorf("simulated checksum %#08x, software %#08x", hw, want)
	}

	a, b := make([]byte, 999), make([]byte, 999)
	if err := sim.Fill(a, 0x1122334455667788); err != nil {
		t.Fatalf("simulated Fill failed: %v", err)
	}
	if err := sw.Fill(b, 0x1122334455667788); err != nil {
		t.Fatalf("software Fill failed: %v", err)
	}
	if equal, _ := sw.Compare(a, b); !equal {
		t.Error("simulated and software fills differ")
	}
}

func TestDefaultParams(t *testing.T) {
	params := dsa.DefaultParams()

	if params.MaxRetries <= 0 {
		t.Error("MaxRetries should be positive")
	}
	if params.SpinIterations <= 0 {
		t.Error("SpinIterations should be positive")
	}
	if params.Mode != dsa.ModeAuto {
		t.Errorf("Mode = %v, want auto", params.Mode)
	}
	if params.AllowSoftwareFallback {
		t.Error("software fallback should be opt-in")
	}
}

func TestErrorTypes(t *testing.T) {
	var _ error = dsa.ErrQueueFull
	var _ error = dsa.ErrPageFault
	var _ error = dsa.ErrPlatformNotSupported

	if dsa.ErrPageFault.Error() != "dsa: page fault" {
		t.Errorf("ErrPageFault message = %q", dsa.ErrPageFault.Error())
	}

	engine := dsa.OpenSoftware(nil)
	engine.Close()
	if err := engine.Noop(); !errors.Is(err, dsa.ErrQueueClosed) {
		t.Errorf("Noop after Close = %v, want ErrQueueClosed", err)
	}
}

func TestDevicePaths(t *testing.T) {
	if dsa.SysfsDSAPath != "/sys/bus/dsa/devices" {
		t.Errorf("SysfsDSAPath = %s", dsa.SysfsDSAPath)
	}
	if dsa.DevDSAPath != "/dev/dsa" {
		t.Errorf("DevDSAPath = %s", dsa.DevDSAPath)
	}
}
