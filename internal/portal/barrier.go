package portal

import "sync/atomic"

var barrierDummy int64

// Sfence orders prior stores before the portal write.
// atomic.AddInt64 compiles to LOCK XADD on x86-64, which is a full fence.
// Descriptors and zeroed completion records must be visible to the device
// before it can read them.
func Sfence() {
	atomic.AddInt64(&barrierDummy, 0)
}
