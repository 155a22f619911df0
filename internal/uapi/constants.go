package uapi

// Descriptor flags (bits 0-23 of the flags/opcode word), from idxd.h IDXD_OP_FLAG_*
const (
	FlagFence               uint32 = 0x0001
	FlagBlockOnFault        uint32 = 0x0002
	FlagCompletionAddrValid uint32 = 0x0004
	FlagRequestCompletion   uint32 = 0x0008
	FlagCompletionInterrupt uint32 = 0x0010
	FlagCompletionStatus    uint32 = 0x0020
	FlagCacheControl        uint32 = 0x0100
	FlagAddr1TCS            uint32 = 0x0200
	FlagAddr2TCS            uint32 = 0x0400
	FlagAddr3TCS            uint32 = 0x0800
	FlagCompletionTCS       uint32 = 0x1000
	FlagStrictOrdering      uint32 = 0x2000
	FlagDestReadback        uint32 = 0x4000
	FlagDestSteering        uint32 = 0x8000

	// FlagsMask covers the 24 flag bits shared with the opcode
	FlagsMask uint32 = 0x00FFFFFF

	// CompletionFlags is what every builder sets so the device writes the record
	CompletionFlags = FlagRequestCompletion | FlagCompletionAddrValid
)

// Completion status codes written to byte 0 of the completion record, from idxd.h DSA_COMP_*
const (
	StatusNone             uint8 = 0x00
	StatusSuccess          uint8 = 0x01
	StatusSuccessPred      uint8 = 0x02
	StatusPageFaultNoBOF   uint8 = 0x03
	StatusPageFaultIR      uint8 = 0x04
	StatusBatchFail        uint8 = 0x05
	StatusBadOpcode        uint8 = 0x10
	StatusInvalidFlags     uint8 = 0x11
	StatusNoZeroReserve    uint8 = 0x12
	StatusXferErr          uint8 = 0x13
	StatusIntHandleInvalid uint8 = 0x19
	StatusCRAXlat          uint8 = 0x1a
	StatusCRAAlign         uint8 = 0x1b
	StatusAddrAlign        uint8 = 0x1c
	StatusHwErr1           uint8 = 0x20
	StatusHwErrDRB         uint8 = 0x21

	// StatusMask strips the fault-on-write bit from the status byte
	StatusMask uint8 = 0x7f

	// StatusWriteFault is set alongside a page fault status when the faulting access was a write
	StatusWriteFault uint8 = 0x80
)

// Compare result codes (completion record byte 1)
const (
	CompareEqual    uint8 = 0
	CompareNotEqual uint8 = 1
)

// Fault info bits (completion record byte 2)
const (
	FaultInfoWrite uint8 = 0x01
	FaultInfoUser  uint8 = 0x02
	FaultInfoBatch uint8 = 0x04
)

// PASID word layout
const (
	PASIDMask    uint32 = 0x000FFFFF
	PrivilegeBit uint32 = 1 << 31
)
