package wq

import (
	"sync"
	"unsafe"

	"github.com/ehrlich-b/go-dsa/internal/constants"
	"github.com/ehrlich-b/go-dsa/internal/uapi"
)

// slot is one descriptor and its completion record carved from a single
// allocation. The descriptor sits on a 64-byte boundary and the record
// directly after it, which also satisfies the record's 32-byte alignment.
//
// Slots are pooled per the *T pattern to keep sync.Pool allocation-free.
type slot struct {
	buf  []byte
	desc *uapi.Descriptor
	cr   *uapi.CompletionRecord
}

const slotBytes = constants.DescriptorSize + constants.CompletionRecordSize

var slotPool = sync.Pool{New: func() any { return newSlot() }}

func newSlot() *slot {
	buf := make([]byte, slotBytes+constants.DescriptorAlign)
	off := alignOffset(unsafe.Pointer(&buf[0]), constants.DescriptorAlign)
	return &slot{
		buf:  buf,
		desc: (*uapi.Descriptor)(unsafe.Pointer(&buf[off])),
		cr:   (*uapi.CompletionRecord)(unsafe.Pointer(&buf[off+constants.DescriptorSize])),
	}
}

// alignOffset returns how far p must advance to reach the next multiple of align
func alignOffset(p unsafe.Pointer, align uintptr) uintptr {
	return (align - uintptr(p)%align) % align
}

// getSlot returns a slot with a zeroed descriptor and completion record
func getSlot() *slot {
	s := slotPool.Get().(*slot)
	s.desc.Reset()
	s.cr.Reset()
	return s
}

// putSlot recycles s. Callers must never recycle a slot the device may still
// write, i.e. one whose operation timed out.
func putSlot(s *slot) {
	slotPool.Put(s)
}
