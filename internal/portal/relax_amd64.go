package portal

// cpuRelax executes PAUSE
//
//go:noescape
func cpuRelax()
