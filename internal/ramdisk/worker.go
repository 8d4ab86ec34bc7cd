package ramdisk

import (
	"io"
	"time"

	"github.com/xaionaro-go/bytesextra"

	"github.com/harryfoxfox/safe-sub000/internal/kernel"
	"github.com/harryfoxfox/safe-sub000/internal/reparse"
)

// runWorker is the disk device's single dedicated worker goroutine,
// spec.md §4.3. engageCount and reparseHandle are locals, never fields of
// DiskDevice — spec.md §3's ReparseState is owned by the worker thread, not
// the device, which is exactly what keeps the reparse protocol lock-free.
func (d *DiskDevice) runWorker() {
	defer close(d.workerDone)

	var engageCount int
	var reparseHandle *reparse.Handle

	for {
		irp, ok := d.queue.Dequeue()
		if !ok {
			break
		}
		d.service(irp, &engageCount, &reparseHandle)
	}

	if engageCount != 0 || reparseHandle != nil {
		panic("ramdisk: worker exiting with outstanding engage state")
	}
}

// service dispatches one dequeued IRP to its handler and completes it,
// releasing the remove-lock reference the dispatch routine acquired —
// except for Cleanup, which dispatch never acquired one for (spec.md §4.4).
func (d *DiskDevice) service(irp *kernel.IRP, engageCount *int, reparseHandle **reparse.Handle) {
	if irp.Major != kernel.MjCleanup {
		defer d.removeLock.Release()
	}

	switch irp.Major {
	case kernel.MjRead, kernel.MjWrite:
		d.serviceReadWrite(irp)
	case kernel.MjDeviceControl:
		d.serviceDeviceControl(irp, engageCount, reparseHandle)
	case kernel.MjCleanup:
		d.serviceCleanup(irp, engageCount, reparseHandle)
	default:
		d.log.Errorf("ramdisk: worker received unexpected major function %s", irp.Major)
		irp.Complete(kernel.StatusDriverInternalError, 0)
	}

	status, information := irp.Wait()
	d.trace.Record(time.Now(), irp, status, information)
}

// serviceReadWrite implements spec.md §4.3's Read/Write dispatch: locate the
// MDL's system-mapped address, compute the legal transfer length, and copy
// between the caller's buffer and the image at the requested offset. A
// short transfer at end-of-disk is legal and expected.
func (d *DiskDevice) serviceReadWrite(irp *kernel.IRP) {
	buf, status := irp.Mdl.SystemAddress()
	if status != kernel.StatusSuccess {
		irp.Complete(status, 0)
		return
	}

	var toTransfer int64
	if irp.Offset < d.imageSize {
		toTransfer = irp.Length
		if remain := d.imageSize - irp.Offset; toTransfer > remain {
			toTransfer = remain
		}
	}

	if toTransfer > 0 {
		image := bytesextra.NewReadWriteSeeker(d.image)
		if _, err := image.Seek(irp.Offset, io.SeekStart); err != nil {
			irp.Complete(kernel.StatusInsufficientResources, 0)
			return
		}

		var err error
		if irp.Major == kernel.MjRead {
			_, err = io.ReadFull(image, buf[:toTransfer])
		} else {
			_, err = image.Write(buf[:toTransfer])
		}
		if err != nil {
			irp.Complete(kernel.StatusInsufficientResources, 0)
			return
		}
	}

	irp.Complete(kernel.StatusSuccess, toTransfer)
}

// serviceDeviceControl handles the two async IOCTLs, ENGAGE and DISENGAGE.
// Anything else reaching the worker by this path is a dispatch bug.
func (d *DiskDevice) serviceDeviceControl(irp *kernel.IRP, engageCount *int, reparseHandle **reparse.Handle) {
	switch irp.IOCTL {
	case IOCTLEngage:
		d.serviceEngage(irp, engageCount, reparseHandle)
	case IOCTLDisengage:
		status := d.disengageLocked(irp, engageCount, reparseHandle)
		irp.Complete(status, 0)
	default:
		irp.Complete(kernel.StatusDriverInternalError, 0)
	}
}

func fileContextOf(irp *kernel.IRP) *FileContext {
	fc, _ := irp.FileContext.(*FileContext)
	return fc
}

// serviceEngage implements spec.md §4.3's ENGAGE rule: reject if this
// handle is already engaged; establish the reparse point the first time
// engage_count transitions from 0, otherwise just bump the count.
func (d *DiskDevice) serviceEngage(irp *kernel.IRP, engageCount *int, reparseHandle **reparse.Handle) {
	fc := fileContextOf(irp)
	if fc == nil {
		irp.Complete(kernel.StatusInvalidParameter, 0)
		return
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.engaged {
		irp.Complete(kernel.StatusInvalidDeviceState, 0)
		return
	}

	if *engageCount == 0 {
		h, err := d.engager.Engage(irp.Context)
		if err != nil {
			d.log.Warnf("ramdisk: engage failed: %v", err)
			irp.Complete(kernel.StatusFileSystemError, 0)
			return
		}
		*reparseHandle = h
	}

	*engageCount++
	fc.engaged = true
	irp.Complete(kernel.StatusSuccess, 0)
}

// disengageLocked implements spec.md §4.3's DISENGAGE rule and is shared
// between the explicit DISENGAGE IOCTL and Cleanup's implicit disengage. It
// never completes irp itself, since Cleanup always completes success
// regardless of this outcome.
func (d *DiskDevice) disengageLocked(irp *kernel.IRP, engageCount *int, reparseHandle **reparse.Handle) kernel.Status {
	fc := fileContextOf(irp)
	if fc == nil {
		return kernel.StatusInvalidParameter
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	if !fc.engaged {
		return kernel.StatusInvalidDeviceState
	}

	if *engageCount == 1 {
		if err := (*reparseHandle).Disengage(irp.Context); err != nil {
			// Per spec.md §4.3: a failure here leaves engage_count,
			// reparse_handle and the per-handle engaged flag unchanged.
			d.log.Warnf("ramdisk: disengage failed: %v", err)
			return kernel.StatusFileSystemError
		}
		*reparseHandle = nil
	}

	*engageCount--
	fc.engaged = false
	return kernel.StatusSuccess
}

// serviceCleanup implements spec.md §4.3's Cleanup rule: synthesize a
// disengage if this handle is currently engaged, then always complete
// success — Cleanup must never fail a handle close.
func (d *DiskDevice) serviceCleanup(irp *kernel.IRP, engageCount *int, reparseHandle **reparse.Handle) {
	if fc := fileContextOf(irp); fc != nil && fc.engaged {
		if status := d.disengageLocked(irp, engageCount, reparseHandle); status != kernel.StatusSuccess {
			d.log.Warnf("ramdisk: implicit disengage on cleanup reported %s", status)
		}
	}
	irp.Complete(kernel.StatusSuccess, 0)
}
