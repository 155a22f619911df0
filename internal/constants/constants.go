package constants

// Default work queue tuning
const (
	// DefaultMaxRetries is the number of ENQCMD retries after the first
	// rejected attempt before a submission reports queue full
	DefaultMaxRetries = 1000

	// DefaultSpinIterations is the completion poll budget per operation
	DefaultSpinIterations = 1_000_000

	// RelaxYieldInterval is how many PAUSE spins pass between scheduler yields
	RelaxYieldInterval = 64
)

// Portal and record geometry
const (
	// PortalSize is the mmap length of a work queue portal (one page)
	PortalSize = 4096

	// DescriptorSize is the size of a hardware descriptor in bytes
	DescriptorSize = 64

	// DescriptorAlign is the required alignment of a descriptor
	DescriptorAlign = 64

	// CompletionRecordSize is the size of a completion record in bytes
	CompletionRecordSize = 64

	// CompletionRecordAlign is the required alignment of a completion record
	CompletionRecordAlign = 32

	// MaxTransferSize is the largest length the 32-bit transfer size field holds
	MaxTransferSize = 1<<32 - 1
)

// Device registry locations
const (
	// SysfsDSAPath is where the idxd driver publishes devices and queues
	SysfsDSAPath = "/sys/bus/dsa/devices"

	// DevDSAPath is where user-type work queue character devices appear
	DevDSAPath = "/dev/dsa"
)

// Simulator defaults
const (
	// DefaultSimulatedQueueSize is the depth of a simulated shared queue
	DefaultSimulatedQueueSize = 128
)
