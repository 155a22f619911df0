package portal

import "unsafe"

// movdir64b copies the 64 bytes at src to the portal at dst as one posted write
//
//go:noescape
func movdir64b(dst, src unsafe.Pointer)

// enqcmd copies the 64 bytes at src to the portal at dst and returns the
// device's acceptance
//
//go:noescape
func enqcmd(dst, src unsafe.Pointer) bool
