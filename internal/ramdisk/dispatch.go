package ramdisk

import (
	"encoding/binary"

	"github.com/go-restruct/restruct"

	"github.com/harryfoxfox/safe-sub000/internal/kernel"
	"github.com/harryfoxfox/safe-sub000/internal/pnp"
)

// enqueueOrComplete implements spec.md §4.4's common gate for every IRP
// that must reach the worker: reject outright unless the device is Started,
// otherwise take a remove-lock reference (so REMOVE_DEVICE waits for this
// IRP to finish) and hand it to the queue.
func (d *DiskDevice) enqueueOrComplete(irp *kernel.IRP) {
	if d.state() != pnp.Started {
		irp.Complete(kernel.StatusInvalidDeviceState, 0)
		return
	}

	if status := d.removeLock.Acquire(); status != kernel.StatusSuccess {
		irp.Complete(status, 0)
		return
	}

	d.queue.Enqueue(irp)
}

// enqueueCleanup implements Cleanup's IRP path: it still only runs while
// the device is at least past creation, but per spec.md §4.4 it does not
// acquire the remove-lock, since Cleanup must be able to run during
// teardown to release an engaged handle.
func (d *DiskDevice) enqueueCleanup(irp *kernel.IRP) {
	d.queue.Enqueue(irp)
}

// DispatchCreate implements the disk device's Create handler: reject while
// not Started, and reject any file name beyond the device's own name (a RAM
// disk has no namespace inside itself at create time), per spec.md §4.4.
func (d *DiskDevice) DispatchCreate(irp *kernel.IRP) {
	if d.state() != pnp.Started {
		irp.Complete(kernel.StatusInvalidDeviceState, 0)
		return
	}
	if irp.FileName != "" {
		irp.Complete(kernel.StatusInvalidParameter, 0)
		return
	}
	irp.FileContext = &FileContext{}
	irp.Complete(kernel.StatusSuccess, 0)
}

// DispatchClose completes unconditionally; any owed disengage for this
// handle already happened during DispatchCleanup.
func (d *DiskDevice) DispatchClose(irp *kernel.IRP) {
	irp.Complete(kernel.StatusSuccess, 0)
}

// DispatchCleanup hands the IRP to the worker so an engaged handle can be
// implicitly disengaged, without the remove-lock gate (see enqueueCleanup).
func (d *DiskDevice) DispatchCleanup(irp *kernel.IRP) {
	d.enqueueCleanup(irp)
}

// DispatchRead and DispatchWrite both just enqueue; the worker computes the
// legal transfer length against image bounds.
func (d *DiskDevice) DispatchRead(irp *kernel.IRP)  { d.enqueueOrComplete(irp) }
func (d *DiskDevice) DispatchWrite(irp *kernel.IRP) { d.enqueueOrComplete(irp) }

// DispatchDeviceControl handles the disk device's inline-answerable IOCTLs
// itself and enqueues the control-surface ones (reachable here too, since a
// handle opened directly against the disk device can still ENGAGE/DISENGAGE
// per spec.md §4.4) to the worker. The inline IOCTLs still only answer while
// the device is Started, same gate enqueueOrComplete applies, per spec.md
// §4.4/§8 scenario 5 (a pre-START_DEVICE geometry query must fail, not
// report success against a device that isn't ready yet).
func (d *DiskDevice) DispatchDeviceControl(irp *kernel.IRP) {
	switch irp.IOCTL {
	case IOCTLEngage, IOCTLDisengage:
		d.enqueueOrComplete(irp)
	case IOCTLDiskCheckVerify, IOCTLDiskGetDriveGeometry, IOCTLDiskIsWritable:
		if d.state() != pnp.Started {
			irp.Complete(kernel.StatusInvalidDeviceState, 0)
			return
		}
		d.completeInlineIOCTL(irp)
	default:
		irp.Complete(kernel.StatusInvalidDeviceRequest, 0)
	}
}

// completeInlineIOCTL answers the three standard DISK_* IOCTLs the disk
// device never needs the worker for. DISK_GET_DRIVE_GEOMETRY copies the
// packed DISK_GEOMETRY-equivalent into the caller's output buffer, spec.md
// §4.4 ("verify output buffer size >= geometry struct; copy geometry") and
// §7/§8 (BufferTooSmall on a short buffer).
func (d *DiskDevice) completeInlineIOCTL(irp *kernel.IRP) {
	switch irp.IOCTL {
	case IOCTLDiskGetDriveGeometry:
		packed, err := restruct.Pack(binary.LittleEndian, &d.geometry)
		if err != nil {
			irp.Complete(kernel.StatusDriverInternalError, 0)
			return
		}
		if len(irp.OutputBuffer) < len(packed) {
			irp.Complete(kernel.StatusBufferTooSmall, 0)
			return
		}
		copy(irp.OutputBuffer, packed)
		irp.Complete(kernel.StatusSuccess, int64(len(packed)))
	default:
		irp.Complete(kernel.StatusSuccess, 0)
	}
}

// DispatchPnP acquires the remove-lock, drives the state machine in
// internal/pnp, and applies the resulting Action, spec.md §4.4/§4.5. Every
// other action releases its own reference once the IRP is handled;
// REMOVE_DEVICE instead transfers its reference into a release-and-wait, so
// it cannot return until every other outstanding reference (every in-flight
// Read/Write/DeviceControl) has drained.
func (d *DiskDevice) DispatchPnP(irp *kernel.IRP) {
	if status := d.removeLock.Acquire(); status != kernel.StatusSuccess {
		irp.Complete(status, 0)
		return
	}

	next, action := pnp.Transition(d.state(), irp.Minor)
	if action != pnp.ActionPassDownSync {
		d.setState(next)
	}

	switch action {
	case pnp.ActionReleaseAndWaitThenPassDown:
		d.removeLock.ReleaseAndWait()
		d.Shutdown()
		d.passDown(irp)
	case pnp.ActionPassDownSync:
		// Wait for the lower device to finish with the IRP and move to the
		// new state only if it succeeded.
		d.passDown(irp)
		if status, _ := irp.Wait(); status == kernel.StatusSuccess {
			d.setState(next)
		}
		d.removeLock.Release()
	case pnp.ActionPassDownAsync:
		d.removeLock.Release()
		d.passDown(irp)
	case pnp.ActionCompleteHere:
		d.removeLock.Release()
		irp.Complete(kernel.StatusSuccess, 0)
	default:
		d.removeLock.Release()
		d.passDown(irp)
	}
}

// DispatchPower forwards unconditionally; the RAM disk has no power-managed
// hardware of its own and the teacher's PnP/Power pass-through pattern
// applies unchanged.
func (d *DiskDevice) DispatchPower(irp *kernel.IRP) {
	d.passDown(irp)
}

// DispatchSystemControl forwards unconditionally, same rationale as Power.
func (d *DiskDevice) DispatchSystemControl(irp *kernel.IRP) {
	d.passDown(irp)
}

func (d *DiskDevice) passDown(irp *kernel.IRP) {
	d.lower.Dispatch(irp)
}
