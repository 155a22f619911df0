package dsa

import "github.com/ehrlich-b/go-dsa/internal/idxd"

// Discoverer finds DSA devices and work queues in sysfs
type Discoverer = idxd.Discoverer

// Device is a DSA instance and its work queues
type Device = idxd.Device

// WorkQueueInfo describes one work queue from sysfs
type WorkQueueInfo = idxd.WorkQueueInfo

// NewDiscoverer returns a Discoverer for /sys/bus/dsa/devices and /dev/dsa
func NewDiscoverer() *Discoverer {
	return idxd.NewDiscoverer()
}

// Devices lists the DSA devices on this system
func Devices() ([]Device, error) {
	return idxd.NewDiscoverer().Devices()
}

// Available reports whether the idxd driver is loaded
func Available() bool {
	return idxd.NewDiscoverer().Available()
}

// Configured reports whether any work queue device nodes exist
func Configured() bool {
	return idxd.NewDiscoverer().Configured()
}
