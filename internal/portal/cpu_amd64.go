package portal

const (
	cpuidMOVDIR64B = 1 << 28 // CPUID.(EAX=07H, ECX=0H):ECX[bit 28]
	cpuidENQCMD    = 1 << 29 // CPUID.(EAX=07H, ECX=0H):ECX[bit 29]
)

//go:noescape
func cpuid(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32)

// Detect queries CPUID for MOVDIR64B and ENQCMD
func Detect() Capabilities {
	// CPUID.(EAX=0H, ECX=0H) >= 7
	maxLeaf, _, _, _ := cpuid(0, 0)
	if maxLeaf < 7 {
		return Capabilities{}
	}

	_, _, ecx, _ := cpuid(7, 0)
	return Capabilities{
		MOVDIR64B: ecx&cpuidMOVDIR64B != 0,
		ENQCMD:    ecx&cpuidENQCMD != 0,
	}
}
