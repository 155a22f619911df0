package dsa

import (
	"os"
	"strconv"
	"strings"

	"github.com/ehrlich-b/go-dsa/internal/constants"
	"github.com/ehrlich-b/go-dsa/internal/dsaerr"
	"github.com/ehrlich-b/go-dsa/internal/logging"
	"github.com/ehrlich-b/go-dsa/internal/uapi"
)

// Environment variables read by ParamsFromEnv
const (
	EnvWorkQueue        = "GO_DSA_WQ"
	EnvMode             = "GO_DSA_MODE"
	EnvMaxRetries       = "GO_DSA_MAX_RETRIES"
	EnvSpinIterations   = "GO_DSA_SPIN_ITERATIONS"
	EnvSoftwareFallback = "GO_DSA_SOFTWARE_FALLBACK"
	EnvBlockOnFault     = "GO_DSA_BLOCK_ON_FAULT"
)

// Params selects and tunes the queue an engine runs on
type Params struct {
	// WorkQueue is a queue name ("wq0.1") or device path ("/dev/dsa/wq0.1").
	// Empty picks the first enabled queue.
	WorkQueue string

	// Mode overrides the submission discipline. ModeAuto reads it from sysfs.
	Mode WQMode

	MaxRetries     int // ENQCMD retries after a rejected attempt
	SpinIterations int // completion poll budget per operation

	// BlockOnFault asks the device to resolve page faults instead of
	// reporting them
	BlockOnFault bool

	// AllowSoftwareFallback opens the software engine when no hardware queue
	// can be used instead of returning the detection error
	AllowSoftwareFallback bool
}

// DefaultParams returns default engine parameters
func DefaultParams() Params {
	return Params{
		Mode:           ModeAuto,
		MaxRetries:     constants.DefaultMaxRetries,
		SpinIterations: constants.DefaultSpinIterations,
	}
}

// ParamsFromEnv returns DefaultParams overridden by GO_DSA_* variables
func ParamsFromEnv() (Params, error) {
	p := DefaultParams()

	if v := os.Getenv(EnvWorkQueue); v != "" {
		p.WorkQueue = strings.TrimSpace(v)
	}
	if v := os.Getenv(EnvMode); v != "" && v != "auto" {
		mode, ok := uapi.ParseWQMode(v)
		if !ok {
			return p, envError(EnvMode, v)
		}
		p.Mode = mode
	}
	if v := os.Getenv(EnvMaxRetries); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return p, envError(EnvMaxRetries, v)
		}
		p.MaxRetries = n
	}
	if v := os.Getenv(EnvSpinIterations); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			return p, envError(EnvSpinIterations, v)
		}
		p.SpinIterations = n
	}
	if v := os.Getenv(EnvSoftwareFallback); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return p, envError(EnvSoftwareFallback, v)
		}
		p.AllowSoftwareFallback = b
	}
	if v := os.Getenv(EnvBlockOnFault); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return p, envError(EnvBlockOnFault, v)
		}
		p.BlockOnFault = b
	}
	return p, nil
}

func envError(name, value string) error {
	return dsaerr.Newf("config", dsaerr.CodeInvalidArgument, "invalid %s=%q", name, value)
}

// SimParams configures a simulated hardware queue
type SimParams struct {
	Mode  WQMode // ModeAuto selects shared
	Depth int    // descriptors in flight before the queue is full

	// MaxTransferSize makes larger descriptors fail like the device would.
	// Zero means unlimited.
	MaxTransferSize uint32

	MaxRetries     int
	SpinIterations int
}

// DefaultSimParams returns a shared simulated queue with default budgets
func DefaultSimParams() SimParams {
	return SimParams{
		Mode:           ModeShared,
		Depth:          constants.DefaultSimulatedQueueSize,
		MaxRetries:     constants.DefaultMaxRetries,
		SpinIterations: constants.DefaultSpinIterations,
	}
}

// Logger is the structured logger engines write to
type Logger = logging.Logger

// LogConfig configures NewLogger
type LogConfig = logging.Config

// LogLevel selects which events a Logger writes
type LogLevel = logging.LogLevel

const (
	LogLevelDebug = logging.LevelDebug
	LogLevelInfo  = logging.LevelInfo
	LogLevelWarn  = logging.LevelWarn
	LogLevelError = logging.LevelError
)

// NewLogger creates a structured logger
func NewLogger(cfg *LogConfig) *Logger {
	return logging.NewLogger(cfg)
}

// Options contains additional options for opening an engine
type Options struct {
	// Logger for debug/info messages (if nil, uses the package default)
	Logger *Logger

	// Observer receives per-operation events in addition to the engine's
	// own Metrics
	Observer Observer

	// Discoverer overrides the sysfs and /dev locations used to find queues
	Discoverer *Discoverer
}
