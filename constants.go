package dsa

import (
	"github.com/ehrlich-b/go-dsa/internal/constants"
	"github.com/ehrlich-b/go-dsa/internal/uapi"
)

// Re-export constants for public API
const (
	DefaultMaxRetries         = constants.DefaultMaxRetries
	DefaultSpinIterations     = constants.DefaultSpinIterations
	DefaultSimulatedQueueSize = constants.DefaultSimulatedQueueSize
	MaxTransferSize           = constants.MaxTransferSize
	SysfsDSAPath              = constants.SysfsDSAPath
	DevDSAPath                = constants.DevDSAPath
)

// WQMode is the submission discipline of a hardware work queue
type WQMode = uapi.WQMode

const (
	ModeShared    = uapi.WQShared
	ModeDedicated = uapi.WQDedicated

	// ModeAuto takes the mode from the queue's sysfs "mode" attribute
	ModeAuto WQMode = -1
)

// ExecutionMode names the path an engine runs operations on
type ExecutionMode string

const (
	ExecutionHardware  ExecutionMode = "hardware"
	ExecutionSoftware  ExecutionMode = "software"
	ExecutionSimulated ExecutionMode = "simulated"
)
