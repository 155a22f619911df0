package uapi

import "fmt"

// Opcode is the 8-bit DSA operation code placed in descriptor bits 24-31.
// Values match linux include/uapi/linux/idxd.h.
type Opcode uint8

const (
	OpNoop        Opcode = 0x00
	OpBatch       Opcode = 0x01
	OpDrain       Opcode = 0x03
	OpMemMove     Opcode = 0x04
	OpMemFill     Opcode = 0x05
	OpCompare     Opcode = 0x06
	OpCompareImm  Opcode = 0x07
	OpCreateDelta Opcode = 0x08
	OpApplyDelta  Opcode = 0x09
	OpDualcast    Opcode = 0x0A
	OpTranslFetch Opcode = 0x0D
	OpCRCGen      Opcode = 0x10
	OpCopyCRC     Opcode = 0x12
	OpDIFCheck    Opcode = 0x13
	OpDIFInsert   Opcode = 0x14
	OpDIFStrip    Opcode = 0x15
	OpDIFUpdate   Opcode = 0x16
	OpDIXGen      Opcode = 0x17
	OpCacheFlush  Opcode = 0x20
)

var opcodeNames = map[Opcode]string{
	OpNoop:        "NOOP",
	OpBatch:       "BATCH",
	OpDrain:       "DRAIN",
	OpMemMove:     "MEMMOVE",
	OpMemFill:     "MEMFILL",
	OpCompare:     "COMPARE",
	OpCompareImm:  "COMPARE_IMM",
	OpCreateDelta: "CREATE_DELTA",
	OpApplyDelta:  "APPLY_DELTA",
	OpDualcast:    "DUALCAST",
	OpTranslFetch: "TRANSL_FETCH",
	OpCRCGen:      "CRC_GEN",
	OpCopyCRC:     "COPY_CRC",
	OpDIFCheck:    "DIF_CHECK",
	OpDIFInsert:   "DIF_INSERT",
	OpDIFStrip:    "DIF_STRIP",
	OpDIFUpdate:   "DIF_UPDATE",
	OpDIXGen:      "DIX_GEN",
	OpCacheFlush:  "CACHE_FLUSH",
}

// Name returns the idxd name of the opcode, or "UNKNOWN"
func (o Opcode) Name() string {
	if n, ok := opcodeNames[o]; ok {
		return n
	}
	return "UNKNOWN"
}

// Known reports whether o is a recognised DSA opcode
func (o Opcode) Known() bool {
	_, ok := opcodeNames[o]
	return ok
}

// Implemented reports whether the work queue can build descriptors for o
func (o Opcode) Implemented() bool {
	switch o {
	case OpNoop, OpMemMove, OpMemFill, OpCompare, OpCRCGen:
		return true
	}
	return false
}

func (o Opcode) String() string {
	return fmt.Sprintf("%s (%#02x)", o.Name(), uint8(o))
}
