package portal

import (
	"runtime"

	"github.com/ehrlich-b/go-dsa/internal/constants"
	"github.com/ehrlich-b/go-dsa/internal/uapi"
)

// Backoff spins with PAUSE and yields the processor every
// RelaxYieldInterval spins.
type Backoff struct {
	spins int
}

// Relax spends one spin
func (b *Backoff) Relax() {
	b.spins++
	if b.spins%constants.RelaxYieldInterval == 0 {
		runtime.Gosched()
		return
	}
	cpuRelax()
}

// Spins returns how many times Relax was called
func (b *Backoff) Spins() int {
	return b.spins
}

// SubmitWithRetry makes one ENQCMD attempt plus up to maxRetries retries.
// It returns whether the device accepted d and how many retries were used.
func SubmitWithRetry(p Portal, d *uapi.Descriptor, maxRetries int) (accepted bool, retries int) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	var b Backoff
	for {
		if p.SubmitNonPosted(d) {
			return true, retries
		}
		if retries == maxRetries {
			return false, retries
		}
		retries++
		b.Relax()
	}
}
