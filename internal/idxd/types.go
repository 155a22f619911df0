package idxd

import (
	"fmt"

	"github.com/ehrlich-b/go-dsa/internal/uapi"
)

// Work queue states and types as published by the idxd driver
const (
	StateEnabled  = "enabled"
	StateDisabled = "disabled"

	TypeUser   = "user"
	TypeKernel = "kernel"
)

// WorkQueueInfo describes one work queue from sysfs
type WorkQueueInfo struct {
	Name      string // e.g. "wq0.0"
	Device    string // e.g. "dsa0"
	State     string
	Mode      uapi.WQMode
	Type      string
	Size      uint32
	Threshold uint32

	MaxTransferSize uint64
	BlockOnFault    bool

	// DevicePath is the character device for the queue, empty when the
	// node does not exist
	DevicePath string
}

// Enabled reports whether the queue is enabled and can be opened from user
// space
func (w *WorkQueueInfo) Enabled() bool {
	if w.State != StateEnabled || w.DevicePath == "" {
		return false
	}
	return w.Type == "" || w.Type == TypeUser
}

func (w *WorkQueueInfo) String() string {
	return fmt.Sprintf("%s (%s, %s, size=%d, threshold=%d)",
		w.Name, w.State, w.Mode, w.Size, w.Threshold)
}

// Device is a DSA instance and its work queues
type Device struct {
	Name       string
	SysfsPath  string
	WorkQueues []WorkQueueInfo
}

// EnabledCount returns how many of the device's queues are usable
func (d *Device) EnabledCount() int {
	n := 0
	for i := range d.WorkQueues {
		if d.WorkQueues[i].Enabled() {
			n++
		}
	}
	return n
}
