package platform

import "runtime"

// Family identifies the OS family to compiled code.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyMacOS
	FamilyIOS
	FamilyLinux
	FamilyWindows
	FamilyAndroid
	FamilyWasm
)

// CPU identifies the CPU architecture to compiled code.
type CPU int

const (
	CPUUnknown CPU = iota
	CPUArm32
	CPUArm64
	CPUX86
	CPUX64
	CPUMips
	CPUMipsel
	CPUWasm
)

// OSFamily returns the running OS family.
func OSFamily() Family {
	switch runtime.GOOS {
	case "darwin":
		return FamilyMacOS
	case "ios":
		return FamilyIOS
	case "linux":
		return FamilyLinux
	case "windows":
		return FamilyWindows
	case "android":
		return FamilyAndroid
	case "js", "wasip1":
		return FamilyWasm
	default:
		return FamilyUnknown
	}
}

// CPUArch returns the running CPU architecture.
func CPUArch() CPU {
	switch runtime.GOARCH {
	case "arm":
		return CPUArm32
	case "arm64":
		return CPUArm64
	case "386":
		return CPUX86
	case "amd64":
		return CPUX64
	case "mips", "mips64":
		return CPUMips
	case "mipsle", "mips64le":
		return CPUMipsel
	case "wasm":
		return CPUWasm
	default:
		return CPUUnknown
	}
}

// LittleEndian reports whether the target stores multi-byte values least
// significant byte first.
func LittleEndian() bool {
	switch runtime.GOARCH {
	case "s390x", "mips", "mips64", "ppc64":
		return false
	default:
		return true
	}
}

// UnalignedAccess reports whether the target tolerates unaligned loads and
// stores.
func UnalignedAccess() bool {
	switch runtime.GOARCH {
	case "arm", "mips", "mipsle":
		return false
	default:
		return true
	}
}
