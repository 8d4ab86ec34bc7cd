package ramdisk

import "github.com/harryfoxfox/safe-sub000/internal/kernel"

// ctlCode reproduces the NT CTL_CODE macro so the IOCTLs below are the
// actual numeric values spec.md §6 specifies (device type 0x8373, function
// 0x800/0x801, METHOD_BUFFERED, FILE_ANY_ACCESS), not placeholders.
func ctlCode(deviceType, function, method, access uint32) kernel.DeviceControlCode {
	return kernel.DeviceControlCode((deviceType << 16) | (access << 14) | (function << 2) | method)
}

const (
	methodBuffered  = 0
	fileAnyAccess   = 0
	fileReadAccess  = 1
	ioctlDiskBase   = 0x00000007
	ctlDeviceType   = 0x8373 // spec.md §6: "Control IOCTLs (device type 0x8373 ...)"
)

// Control-device IOCTLs, spec.md §6.
var (
	IOCTLEngage    = ctlCode(ctlDeviceType, 0x800, methodBuffered, fileAnyAccess)
	IOCTLDisengage = ctlCode(ctlDeviceType, 0x801, methodBuffered, fileAnyAccess)
)

// Standard disk IOCTLs the disk device handles inline, spec.md §4.4/§6.
var (
	IOCTLDiskCheckVerify      = ctlCode(ioctlDiskBase, 0x0200, methodBuffered, fileAnyAccess)
	IOCTLDiskGetDriveGeometry = ctlCode(ioctlDiskBase, 0x0000, methodBuffered, fileAnyAccess)
	IOCTLDiskIsWritable       = ctlCode(ioctlDiskBase, 0x0023, methodBuffered, fileReadAccess)
)
