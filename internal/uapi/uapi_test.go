package uapi

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"
)

// Test structure sizes match the hardware layout
func TestStructSizes(t *testing.T) {
	tests := []struct {
		name     string
		size     uintptr
		expected int
	}{
		{"Descriptor", unsafe.Sizeof(Descriptor{}), 64},
		{"CompletionRecord", unsafe.Sizeof(CompletionRecord{}), 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if int(tt.size) != tt.expected {
				t.Errorf("%s size = %d, want %d", tt.name, tt.size, tt.expected)
			}
		})
	}
}

func TestDescriptorOffsets(t *testing.T) {
	var d Descriptor
	tests := []struct {
		name   string
		offset uintptr
		want   uintptr
	}{
		{"PASID", unsafe.Offsetof(d.PASID), 0},
		{"FlagsOpcode", unsafe.Offsetof(d.FlagsOpcode), 4},
		{"CompletionAddr", unsafe.Offsetof(d.CompletionAddr), 8},
		{"Src", unsafe.Offsetof(d.Src), 16},
		{"Dst", unsafe.Offsetof(d.Dst), 24},
		{"XferSize", unsafe.Offsetof(d.XferSize), 32},
		{"IntHandle", unsafe.Offsetof(d.IntHandle), 36},
		{"Src2", unsafe.Offsetof(d.Src2), 40},
		{"Seed", unsafe.Offsetof(d.Seed), 48},
		{"Reserved2", unsafe.Offsetof(d.Reserved2), 56},
	}
	for _, tt := range tests {
		if tt.offset != tt.want {
			t.Errorf("%s offset = %d, want %d", tt.name, tt.offset, tt.want)
		}
	}
}

func TestCompletionRecordOffsets(t *testing.T) {
	var c CompletionRecord
	tests := []struct {
		name   string
		offset uintptr
		want   uintptr
	}{
		{"Status", unsafe.Offsetof(c.Status), 0},
		{"Result", unsafe.Offsetof(c.Result), 1},
		{"FaultInfo", unsafe.Offsetof(c.FaultInfo), 2},
		{"BytesCompleted", unsafe.Offsetof(c.BytesCompleted), 4},
		{"FaultAddr", unsafe.Offsetof(c.FaultAddr), 8},
		{"ResultValue", unsafe.Offsetof(c.ResultValue), 16},
		{"ResultValue2", unsafe.Offsetof(c.ResultValue2), 24},
		{"OpSpecific", unsafe.Offsetof(c.OpSpecific), 32},
	}
	for _, tt := range tests {
		if tt.offset != tt.want {
			t.Errorf("%s offset = %d, want %d", tt.name, tt.offset, tt.want)
		}
	}
}

func TestOpcodeAndFlags(t *testing.T) {
	var d Descriptor
	d.SetFlags(FlagBlockOnFault | FlagFence)
	d.SetOpcode(OpMemFill)

	if d.Opcode() != OpMemFill {
		t.Errorf("Opcode() = %v, want %v", d.Opcode(), OpMemFill)
	}
	if d.Flags() != FlagBlockOnFault|FlagFence {
		t.Errorf("Flags() = %#x, want %#x", d.Flags(), FlagBlockOnFault|FlagFence)
	}

	// Changing the opcode must not disturb flags
	d.SetOpcode(OpCompare)
	if d.Flags() != FlagBlockOnFault|FlagFence {
		t.Errorf("Flags() after SetOpcode = %#x", d.Flags())
	}

	// Flags never spill into the opcode byte
	d.SetFlags(0xFFFFFFFF)
	if d.Opcode() != OpCompare {
		t.Errorf("Opcode() after SetFlags = %v, want %v", d.Opcode(), OpCompare)
	}
	if d.FlagsOpcode != 0x06FFFFFF {
		t.Errorf("FlagsOpcode = %#x, want 0x06ffffff", d.FlagsOpcode)
	}
}

func TestBuilders(t *testing.T) {
	cr := &CompletionRecord{}
	crAddr := uint64(uintptr(unsafe.Pointer(cr)))

	tests := []struct {
		name string
		got  Descriptor
		want Descriptor
	}{
		{
			name: "noop",
			got:  NewNoop(cr),
			want: Descriptor{FlagsOpcode: CompletionFlags, CompletionAddr: crAddr},
		},
		{
			name: "crc",
			got:  NewCRCGen(0x1000, 512, 0xFFFFFFFF, cr),
			want: Descriptor{
				FlagsOpcode:    uint32(OpCRCGen)<<24 | CompletionFlags,
				CompletionAddr: crAddr,
				Src:            0x1000,
				XferSize:       512,
				Seed:           0xFFFFFFFF,
			},
		},
		{
			name: "memmove",
			got:  NewMemMove(0x2000, 0x1000, 4096, cr),
			want: Descriptor{
				FlagsOpcode:    uint32(OpMemMove)<<24 | CompletionFlags,
				CompletionAddr: crAddr,
				Src:            0x1000,
				Dst:            0x2000,
				XferSize:       4096,
			},
		},
		{
			name: "memfill",
			got:  NewMemFill(0x2000, 0xDEADBEEFCAFEBABE, 64, cr),
			want: Descriptor{
				FlagsOpcode:    uint32(OpMemFill)<<24 | CompletionFlags,
				CompletionAddr: crAddr,
				Src:            0xDEADBEEFCAFEBABE,
				Dst:            0x2000,
				XferSize:       64,
			},
		},
		{
			name: "compare",
			got:  NewCompare(0x1000, 0x3000, 128, cr),
			want: Descriptor{
				FlagsOpcode:    uint32(OpCompare)<<24 | CompletionFlags,
				CompletionAddr: crAddr,
				Src:            0x1000,
				Dst:            0x3000,
				XferSize:       128,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.got); diff != "" {
				t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompletionFlagValues(t *testing.T) {
	// Values are fixed by the idxd ABI
	if FlagRequestCompletion != 0x8 || FlagCompletionAddrValid != 0x4 {
		t.Errorf("completion flags = %#x/%#x", FlagRequestCompletion, FlagCompletionAddrValid)
	}
	if FlagBlockOnFault != 0x2 {
		t.Errorf("FlagBlockOnFault = %#x, want 0x2", FlagBlockOnFault)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		raw  uint8
		kind StatusKind
	}{
		{0x00, KindPending},
		{0x01, KindSuccess},
		{0x03, KindPageFault},
		{0x04, KindPageFault},
		{0x83, KindPageFault}, // write fault bit set
		{0x10, KindUnsupportedOp},
		{0x11, KindInvalidFlags},
		{0x13, KindInvalidSize},
		{0x1a, KindInvalidCompletionAddr},
		{0x1b, KindInvalidCompletionAddr},
		{0x20, KindHardwareError},
		{0x21, KindHardwareError},
		{0x7e, KindUnknown},
		{0x05, KindUnknown},
	}

	for _, tt := range tests {
		s := ClassifyStatus(tt.raw)
		if s.Kind != tt.kind {
			t.Errorf("ClassifyStatus(%#x) = %v, want %v", tt.raw, s.Kind, tt.kind)
		}
		if s.Code != tt.raw&StatusMask {
			t.Errorf("ClassifyStatus(%#x).Code = %#x", tt.raw, s.Code)
		}
	}

	for raw, want := range map[uint8]string{0x7e: "unknown(0x7e)", 0x05: "unknown(0x05)", 0x85: "unknown(0x05)"} {
		if got := ClassifyStatus(raw).String(); got != want {
			t.Errorf("ClassifyStatus(%#x).String() = %q, want %q", raw, got, want)
		}
	}
	if !ClassifyStatus(0x20).IsError() || ClassifyStatus(0x00).IsError() || ClassifyStatus(0x01).IsError() {
		t.Error("IsError() misclassified")
	}
}

func TestCompletionRecordHeader(t *testing.T) {
	cr := &CompletionRecord{}
	if cr.Done() {
		t.Fatal("fresh record reports done")
	}

	cr.ResultValue = 0x12345678
	cr.Complete(StatusSuccess, CompareNotEqual, 0)

	if !cr.Done() {
		t.Fatal("record not done after Complete")
	}
	status, result, fault := cr.LoadHeader()
	if status != StatusSuccess || result != CompareNotEqual || fault != 0 {
		t.Errorf("LoadHeader() = %#x %#x %#x", status, result, fault)
	}
	if cr.Equal() {
		t.Error("Equal() = true, want false")
	}
	if cr.CRC32() != 0x12345678 {
		t.Errorf("CRC32() = %#x", cr.CRC32())
	}

	cr.Reset()
	if cr.LoadStatus() != StatusNone {
		t.Error("Reset did not clear status")
	}
}

func TestMarshalDescriptor(t *testing.T) {
	cr := &CompletionRecord{}
	original := NewMemFill(0x2000, 0xDEADBEEFCAFEBABE, 64, cr)

	data := MarshalDescriptor(&original)
	if len(data) != 64 {
		t.Fatalf("MarshalDescriptor length = %d, want 64", len(data))
	}
	// Opcode lives in the high byte of the second word
	if data[7] != byte(OpMemFill) {
		t.Errorf("opcode byte = %#x, want %#x", data[7], byte(OpMemFill))
	}
	// Pattern is stored little-endian in the source field
	if data[16] != 0xBE || data[23] != 0xDE {
		t.Errorf("pattern bytes = %#x..%#x", data[16], data[23])
	}

	// Wire image matches in-memory layout
	raw := (*[64]byte)(unsafe.Pointer(&original))
	if diff := cmp.Diff(raw[:], data); diff != "" {
		t.Errorf("wire image differs from memory layout:\n%s", diff)
	}

	var decoded Descriptor
	if err := UnmarshalDescriptor(data, &decoded); err != nil {
		t.Fatalf("UnmarshalDescriptor failed: %v", err)
	}
	if diff := cmp.Diff(original, decoded); diff != "" {
		t.Errorf("decoded descriptor mismatch:\n%s", diff)
	}

	if err := UnmarshalDescriptor(data[:32], &decoded); err != ErrInsufficientData {
		t.Errorf("short buffer error = %v, want ErrInsufficientData", err)
	}
}

func TestMarshalCompletionRecord(t *testing.T) {
	original := &CompletionRecord{
		BytesCompleted: 2048,
		FaultAddr:      0xDEAD0000,
	}
	original.Complete(StatusPageFaultNoBOF|StatusWriteFault, 0, FaultInfoWrite)

	data := MarshalCompletionRecord(original)
	if len(data) != 64 {
		t.Fatalf("MarshalCompletionRecord length = %d, want 64", len(data))
	}
	if data[0] != 0x83 || data[1] != 0 || data[2] != FaultInfoWrite {
		t.Errorf("header = % x, want 83 00 01", data[0:3])
	}
	if got := binary.LittleEndian.Uint32(data[4:8]); got != 2048 {
		t.Errorf("bytes completed = %d, want 2048", got)
	}
	if got := binary.LittleEndian.Uint64(data[8:16]); got != 0xDEAD0000 {
		t.Errorf("fault addr = %#x, want 0xdead0000", got)
	}
	if ClassifyStatus(data[0]).Kind != KindPageFault {
		t.Errorf("status kind = %v, want page fault", ClassifyStatus(data[0]).Kind)
	}
}

func TestOpcodeNames(t *testing.T) {
	names := map[Opcode]string{
		OpNoop:       "NOOP (0x00)",
		OpMemFill:    "MEMFILL (0x05)",
		OpCRCGen:     "CRC_GEN (0x10)",
		OpCacheFlush: "CACHE_FLUSH (0x20)",
	}
	for op, want := range names {
		if got := op.String(); got != want {
			t.Errorf("Opcode(%d).String() = %q, want %q", uint8(op), got, want)
		}
	}
	if Opcode(0xFF).Known() {
		t.Error("0xff reported as known")
	}
	if !OpMemMove.Implemented() || OpBatch.Implemented() {
		t.Error("Implemented() misreports")
	}
}

func BenchmarkMarshalDescriptor(b *testing.B) {
	cr := &CompletionRecord{}
	d := NewMemMove(0x2000, 0x1000, 4096, cr)
	buf := make([]byte, 64)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PutDescriptor(buf, &d)
	}
}

func TestParseWQMode(t *testing.T) {
	tests := []struct {
		in   string
		mode WQMode
		ok   bool
	}{
		{"dedicated\n", WQDedicated, true},
		{"shared", WQShared, true},
		{"", WQShared, false},
		{"bogus", WQShared, false},
	}
	for _, tt := range tests {
		mode, ok := ParseWQMode(tt.in)
		if mode != tt.mode || ok != tt.ok {
			t.Errorf("ParseWQMode(%q) = %v, %v; want %v, %v", tt.in, mode, ok, tt.mode, tt.ok)
		}
	}
}
