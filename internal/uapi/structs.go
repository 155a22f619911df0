package uapi

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Descriptor is the 64-byte DSA work descriptor written verbatim to a portal.
// Layout matches struct dsa_hw_desc in idxd.h; it must sit on a 64-byte
// boundary when handed to MOVDIR64B/ENQCMD.
//
//	struct dsa_hw_desc {
//	  u32 pasid:20, rsvd:11, priv:1;
//	  u32 flags:24, opcode:8;
//	  u64 completion_addr;
//	  u64 src_addr;           // fill pattern for MEMFILL
//	  u64 dst_addr;           // second source for COMPARE
//	  u32 xfer_size;
//	  u16 int_handle;
//	  u16 rsvd1;
//	  u64 src2_addr;
//	  u64 crc_seed;           // low 32 bits
//	  u64 rsvd2;
//	};
type Descriptor struct {
	PASID          uint32 // pasid bits 0-19, privilege bit 31
	FlagsOpcode    uint32 // flags bits 0-23, opcode bits 24-31
	CompletionAddr uint64 // completion record address (32-byte aligned)
	Src            uint64 // source address or fill pattern
	Dst            uint64 // destination or second source address
	XferSize       uint32 // transfer length in bytes
	IntHandle      uint16 // completion interrupt handle
	Reserved1      uint16
	Src2           uint64 // secondary address
	Seed           uint64 // CRC seed (bits 0-31) or delta size
	Reserved2      uint64
}

// Compile-time size check - descriptors are exactly one cache line
var _ [64]byte = [unsafe.Sizeof(Descriptor{})]byte{}

// Opcode returns the opcode stored in bits 24-31
func (d *Descriptor) Opcode() Opcode {
	return Opcode(d.FlagsOpcode >> 24)
}

// SetOpcode stores op in bits 24-31 leaving the flags untouched
func (d *Descriptor) SetOpcode(op Opcode) {
	d.FlagsOpcode = (d.FlagsOpcode & FlagsMask) | uint32(op)<<24
}

// Flags returns the 24 flag bits
func (d *Descriptor) Flags() uint32 {
	return d.FlagsOpcode & FlagsMask
}

// SetFlags replaces the flag bits leaving the opcode untouched
func (d *Descriptor) SetFlags(flags uint32) {
	d.FlagsOpcode = (d.FlagsOpcode &^ FlagsMask) | (flags & FlagsMask)
}

// AddFlags ORs flags into the flag bits
func (d *Descriptor) AddFlags(flags uint32) {
	d.FlagsOpcode |= flags & FlagsMask
}

// Reset zeroes the descriptor
func (d *Descriptor) Reset() {
	*d = Descriptor{}
}

// SetCompletion points the descriptor at cr and requests a completion write
func (d *Descriptor) SetCompletion(cr *CompletionRecord) {
	d.CompletionAddr = uint64(uintptr(unsafe.Pointer(cr)))
	d.AddFlags(CompletionFlags)
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s flags=%#06x xfer=%d src=%#x dst=%#x cr=%#x",
		d.Opcode(), d.Flags(), d.XferSize, d.Src, d.Dst, d.CompletionAddr)
}

// CompletionRecord is the 64-byte record the device writes when an
// operation finishes. Layout matches struct dsa_completion_record in idxd.h.
// The device writes it asynchronously, so Status must only be read through
// LoadStatus.
type CompletionRecord struct {
	Status         uint8  // 0 while pending; bit 7 flags a write fault
	Result         uint8  // operation result (compare: 0 equal, 1 not equal)
	FaultInfo      uint8  // fault details
	Reserved       uint8
	BytesCompleted uint32 // bytes processed before a fault, or first mismatch offset
	FaultAddr      uint64 // faulting address
	ResultValue    uint64 // CRC value in bits 0-31
	ResultValue2   uint64 // extended result
	OpSpecific     [32]byte
}

// Compile-time size check
var _ [64]byte = [unsafe.Sizeof(CompletionRecord{})]byte{}

// Reset zeroes the record before it is attached to a new descriptor
func (c *CompletionRecord) Reset() {
	*c = CompletionRecord{}
}

// word0 aliases bytes 0-3 (status, result, fault info, reserved) so they can be
// loaded atomically; sync/atomic has no byte-sized load.
func (c *CompletionRecord) word0() *uint32 {
	return (*uint32)(unsafe.Pointer(c))
}

// LoadStatus performs the volatile read of the status byte
func (c *CompletionRecord) LoadStatus() uint8 {
	return uint8(atomic.LoadUint32(c.word0()))
}

// Done reports whether the device has written a terminal status
func (c *CompletionRecord) Done() bool {
	return c.LoadStatus() != StatusNone
}

// LoadHeader atomically reads status, result and fault info together
func (c *CompletionRecord) LoadHeader() (status, result, faultInfo uint8) {
	w := atomic.LoadUint32(c.word0())
	return uint8(w), uint8(w >> 8), uint8(w >> 16)
}

// Complete publishes status, result and fault info in one atomic store.
// Everything else in the record must be written before calling it.
func (c *CompletionRecord) Complete(status, result, faultInfo uint8) {
	atomic.StoreUint32(c.word0(), uint32(status)|uint32(result)<<8|uint32(faultInfo)<<16)
}

// CompletionStatus returns the classified status
func (c *CompletionRecord) CompletionStatus() CompletionStatus {
	return ClassifyStatus(c.LoadStatus())
}

// CRC32 returns the CRC generated by a CRC_GEN operation
func (c *CompletionRecord) CRC32() uint32 {
	return uint32(c.ResultValue)
}

// Equal returns the outcome of a COMPARE operation
func (c *CompletionRecord) Equal() bool {
	return c.Result == CompareEqual
}

// CompletionStatus is the closed set of terminal states a record reports
type CompletionStatus struct {
	Kind StatusKind
	Code uint8 // raw status byte with the write-fault bit stripped
}

// StatusKind enumerates completion states
type StatusKind int

const (
	KindPending StatusKind = iota
	KindSuccess
	KindPageFault
	KindInvalidFlags
	KindUnsupportedOp
	KindInvalidSize
	KindInvalidCompletionAddr
	KindHardwareError
	KindUnknown
)

var statusKindNames = [...]string{
	KindPending:               "pending",
	KindSuccess:               "success",
	KindPageFault:             "page fault",
	KindInvalidFlags:          "invalid flags",
	KindUnsupportedOp:         "unsupported operation",
	KindInvalidSize:           "invalid transfer size",
	KindInvalidCompletionAddr: "invalid completion record address",
	KindHardwareError:         "hardware error",
	KindUnknown:               "unknown",
}

func (k StatusKind) String() string {
	if int(k) >= 0 && int(k) < len(statusKindNames) {
		return statusKindNames[k]
	}
	return "unknown"
}

// ClassifyStatus maps a raw status byte onto the closed status set.
// Unrecognised codes become KindUnknown rather than an error.
func ClassifyStatus(raw uint8) CompletionStatus {
	code := raw & StatusMask
	var kind StatusKind
	switch code {
	case StatusNone:
		kind = KindPending
	case StatusSuccess:
		kind = KindSuccess
	case StatusPageFaultNoBOF, StatusPageFaultIR:
		kind = KindPageFault
	case StatusInvalidFlags:
		kind = KindInvalidFlags
	case StatusBadOpcode:
		kind = KindUnsupportedOp
	case StatusXferErr:
		kind = KindInvalidSize
	case StatusCRAXlat, StatusCRAAlign:
		kind = KindInvalidCompletionAddr
	case StatusHwErr1, StatusHwErrDRB:
		kind = KindHardwareError
	default:
		kind = KindUnknown
	}
	return CompletionStatus{Kind: kind, Code: code}
}

// IsSuccess reports a successful completion
func (s CompletionStatus) IsSuccess() bool { return s.Kind == KindSuccess }

// IsPending reports that the device has not written the record yet
func (s CompletionStatus) IsPending() bool { return s.Kind == KindPending }

// IsError reports any terminal non-success state
func (s CompletionStatus) IsError() bool {
	return s.Kind != KindPending && s.Kind != KindSuccess
}

func (s CompletionStatus) String() string {
	if s.Kind == KindUnknown {
		return fmt.Sprintf("unknown(%#02x)", s.Code)
	}
	return s.Kind.String()
}

// NewNoop builds a NOOP descriptor that only writes its completion record
func NewNoop(cr *CompletionRecord) Descriptor {
	var d Descriptor
	d.SetOpcode(OpNoop)
	d.SetCompletion(cr)
	return d
}

// NewCRCGen builds a CRC_GEN descriptor over size bytes at src
func NewCRCGen(src uint64, size uint32, seed uint32, cr *CompletionRecord) Descriptor {
	var d Descriptor
	d.SetOpcode(OpCRCGen)
	d.Src = src
	d.XferSize = size
	d.Seed = uint64(seed)
	d.SetCompletion(cr)
	return d
}

// NewMemMove builds a MEMMOVE descriptor copying size bytes from src to dst
func NewMemMove(dst, src uint64, size uint32, cr *CompletionRecord) Descriptor {
	var d Descriptor
	d.SetOpcode(OpMemMove)
	d.Src = src
	d.Dst = dst
	d.XferSize = size
	d.SetCompletion(cr)
	return d
}

// NewMemFill builds a MEMFILL descriptor. The 8-byte pattern travels in the
// source address field and repeats little-endian across dst.
func NewMemFill(dst uint64, pattern uint64, size uint32, cr *CompletionRecord) Descriptor {
	var d Descriptor
	d.SetOpcode(OpMemFill)
	d.Src = pattern
	d.Dst = dst
	d.XferSize = size
	d.SetCompletion(cr)
	return d
}

// NewCompare builds a COMPARE descriptor. The second source travels in the
// destination address field.
func NewCompare(src1, src2 uint64, size uint32, cr *CompletionRecord) Descriptor {
	var d Descriptor
	d.SetOpcode(OpCompare)
	d.Src = src1
	d.Dst = src2
	d.XferSize = size
	d.SetCompletion(cr)
	return d
}
