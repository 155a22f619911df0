package uapi

import "strings"

// WQMode is the submission discipline of a work queue, as reported by the
// idxd sysfs "mode" attribute
type WQMode int

const (
	// WQShared queues take ENQCMD and may reject a submission when full
	WQShared WQMode = iota
	// WQDedicated queues take MOVDIR64B and are owned by one client
	WQDedicated
)

func (m WQMode) String() string {
	switch m {
	case WQDedicated:
		return "dedicated"
	case WQShared:
		return "shared"
	}
	return "unknown"
}

// ParseWQMode parses a sysfs mode value. Anything unrecognised is treated as
// shared, whose non-posted submission is safe on either kind of queue.
func ParseWQMode(s string) (WQMode, bool) {
	switch strings.TrimSpace(s) {
	case "dedicated":
		return WQDedicated, true
	case "shared":
		return WQShared, true
	}
	return WQShared, false
}
