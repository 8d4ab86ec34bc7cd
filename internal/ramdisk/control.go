package ramdisk

import (
	"sync"

	"github.com/harryfoxfox/safe-sub000/internal/kernel"
	"github.com/harryfoxfox/safe-sub000/internal/logger"
)

// ControlName is the control device's name, spec.md §4.6/§6.
const ControlName = `\Device\SafeRamDiskCtl`

// DosAlias returns the DOS symlink name the control device is advertised
// under, spec.md §4.6: 64-bit builds use the `Global??` object directory so
// the alias is visible across terminal server sessions, 32-bit builds use
// the per-session `DosDevices` directory. A pure function of is64Bit rather
// than a runtime.GOARCH check at the call site, so it's testable without a
// real symlink, grounded on ostafen-digler/internal/disk/volume.go's
// GOOS-conditioned NormalizeVolumePath.
func DosAlias(is64Bit bool) string {
	if is64Bit {
		return `\DosDevices\Global\SafeDos`
	}
	return `\DosDevices\SafeDos`
}

// FileContext is the per-handle state a Create dispatch attaches to an IRP's
// file object, replacing the kernel's opaque FsContext slot. engaged tracks
// whether this particular handle currently holds an engagement, per
// spec.md §4.6 ("engaged is a property of the handle, not the device").
type FileContext struct {
	mu      sync.Mutex
	engaged bool
}

// Engaged reports this handle's current engagement state. Used by tests; the
// worker's Cleanup servicing reads the same flag to decide whether an
// implicit disengage is owed.
func (fc *FileContext) Engaged() bool {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.engaged
}

// ControlDevice is the thin FDO that fields ENGAGE/DISENGAGE IOCTLs and
// forwards them to the disk device's worker, spec.md §4.6. It carries no
// state of its own: every IOCTL it receives is just handed to disk via the
// shared work queue, with the calling handle's FileContext attached.
type ControlDevice struct {
	disk *DiskDevice
	log  *logger.Logger
}

// NewControlDevice wires a ControlDevice to the disk device it controls.
// internal/driver creates this immediately after the disk device's
// AddDevice succeeds and calls disk.AttachControl with it.
func NewControlDevice(disk *DiskDevice, log *logger.Logger) *ControlDevice {
	return &ControlDevice{disk: disk, log: log}
}

// DispatchCreate delegates to the disk device's own Create handler, spec.md
// §4.6 ("Create/Close delegate to the disk device so the same PnP-state
// gating applies") — a handle opened against the control device is rejected
// before Started exactly like one opened against the disk device itself.
func (c *ControlDevice) DispatchCreate(irp *kernel.IRP) {
	c.disk.DispatchCreate(irp)
}

// DispatchClose delegates to the disk device's Close handler, same rationale
// as DispatchCreate.
func (c *ControlDevice) DispatchClose(irp *kernel.IRP) {
	c.disk.DispatchClose(irp)
}

// DispatchCleanup hands the IRP to the disk device's worker, which
// synthesizes a disengage if this handle is currently engaged, matching
// spec.md §4.3's Cleanup rule. The IRP always completes success once
// serviced.
func (c *ControlDevice) DispatchCleanup(irp *kernel.IRP) {
	irp.Major = kernel.MjCleanup
	c.disk.enqueueCleanup(irp)
}

// DispatchDeviceControl is the control device's sole interesting entry
// point: validate the IOCTL is one of ENGAGE/DISENGAGE and hand the IRP to
// the disk device's worker queue, spec.md §4.6.
func (c *ControlDevice) DispatchDeviceControl(irp *kernel.IRP) {
	switch irp.IOCTL {
	case IOCTLEngage, IOCTLDisengage:
		irp.Major = kernel.MjDeviceControl
		c.disk.enqueueOrComplete(irp)
	default:
		irp.Complete(kernel.StatusInvalidDeviceRequest, 0)
	}
}
