package uapi

import (
	"encoding/binary"
	"errors"
)

// ErrInsufficientData is returned when a buffer is shorter than the record it should hold
var ErrInsufficientData = errors.New("insufficient data for unmarshaling")

// MarshalDescriptor encodes d into the 64-byte little-endian wire image
func MarshalDescriptor(d *Descriptor) []byte {
	buf := make([]byte, 64)
	PutDescriptor(buf, d)
	return buf
}

// PutDescriptor encodes d into buf, which must hold at least 64 bytes
func PutDescriptor(buf []byte, d *Descriptor) {
	_ = buf[63]
	binary.LittleEndian.PutUint32(buf[0:4], d.PASID)
	binary.LittleEndian.PutUint32(buf[4:8], d.FlagsOpcode)
	binary.LittleEndian.PutUint64(buf[8:16], d.CompletionAddr)
	binary.LittleEndian.PutUint64(buf[16:24], d.Src)
	binary.LittleEndian.PutUint64(buf[24:32], d.Dst)
	binary.LittleEndian.PutUint32(buf[32:36], d.XferSize)
	binary.LittleEndian.PutUint16(buf[36:38], d.IntHandle)
	binary.LittleEndian.PutUint16(buf[38:40], d.Reserved1)
	binary.LittleEndian.PutUint64(buf[40:48], d.Src2)
	binary.LittleEndian.PutUint64(buf[48:56], d.Seed)
	binary.LittleEndian.PutUint64(buf[56:64], d.Reserved2)
}

// UnmarshalDescriptor decodes a 64-byte wire image into d
func UnmarshalDescriptor(data []byte, d *Descriptor) error {
	if len(data) < 64 {
		return ErrInsufficientData
	}

	d.PASID = binary.LittleEndian.Uint32(data[0:4])
	d.FlagsOpcode = binary.LittleEndian.Uint32(data[4:8])
	d.CompletionAddr = binary.LittleEndian.Uint64(data[8:16])
	d.Src = binary.LittleEndian.Uint64(data[16:24])
	d.Dst = binary.LittleEndian.Uint64(data[24:32])
	d.XferSize = binary.LittleEndian.Uint32(data[32:36])
	d.IntHandle = binary.LittleEndian.Uint16(data[36:38])
	d.Reserved1 = binary.LittleEndian.Uint16(data[38:40])
	d.Src2 = binary.LittleEndian.Uint64(data[40:48])
	d.Seed = binary.LittleEndian.Uint64(data[48:56])
	d.Reserved2 = binary.LittleEndian.Uint64(data[56:64])

	return nil
}

// MarshalCompletionRecord encodes c into its 64-byte wire image for
// diagnostics. The header is captured with a single atomic load.
func MarshalCompletionRecord(c *CompletionRecord) []byte {
	buf := make([]byte, 64)
	status, result, fault := c.LoadHeader()
	buf[0] = status
	buf[1] = result
	buf[2] = fault
	buf[3] = c.Reserved
	binary.LittleEndian.PutUint32(buf[4:8], c.BytesCompleted)
	binary.LittleEndian.PutUint64(buf[8:16], c.FaultAddr)
	binary.LittleEndian.PutUint64(buf[16:24], c.ResultValue)
	binary.LittleEndian.PutUint64(buf[24:32], c.ResultValue2)
	copy(buf[32:64], c.OpSpecific[:])
	return buf
}
