// Package driver is the in-process harness that plays the role of the
// Windows I/O manager, PnP manager and installer for this repo's simulated
// driver core: it builds a DiskDevice and its sibling ControlDevice, drives
// START_DEVICE through the PnP state machine, and tears both down again on
// REMOVE_DEVICE, rolling back partial initialization the way the original
// driver's AddDevice does.
package driver

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/harryfoxfox/safe-sub000/internal/fat32"
	"github.com/harryfoxfox/safe-sub000/internal/kernel"
	"github.com/harryfoxfox/safe-sub000/internal/logger"
	"github.com/harryfoxfox/safe-sub000/internal/ramdisk"
	"github.com/harryfoxfox/safe-sub000/internal/reparse"
)

// Harness owns one loaded disk device plus its control device and is the
// unit CLI commands and tests load/remove as a whole.
type Harness struct {
	Disk    *ramdisk.DiskDevice
	Control *ramdisk.ControlDevice
	log     *logger.Logger
}

// Load builds a DiskDevice of imageSize bytes, attaches a ControlDevice to
// it, and drives IRP_MN_START_DEVICE so the pair is ready to accept
// Create/Read/Write/DeviceControl. If any step fails, every step already
// completed is unwound in reverse order (a scope-guard rollback stack, the
// same shape the original driver's AddDevice failure path uses) before the
// error is returned.
func Load(imageSize int64, engager reparse.Engager, log *logger.Logger) (*Harness, error) {
	var rollback []func() error

	unwind := func(cause error) error {
		var result *multierror.Error
		result = multierror.Append(result, cause)
		for i := len(rollback) - 1; i >= 0; i-- {
			if err := rollback[i](); err != nil {
				result = multierror.Append(result, err)
			}
		}
		return result.ErrorOrNil()
	}

	disk, err := ramdisk.New(imageSize, kernel.NopPDO{}, log, engager)
	if err != nil {
		return nil, fmt.Errorf("driver: loading disk device: %w", err)
	}
	rollback = append(rollback, func() error {
		disk.Shutdown()
		return nil
	})

	control := ramdisk.NewControlDevice(disk, log)
	disk.AttachControl(control)

	start := kernel.NewIRP(context.Background(), kernel.MjPnP)
	start.Minor = kernel.MnStartDevice
	disk.DispatchPnP(start)
	if status, _ := start.Wait(); status != kernel.StatusSuccess {
		return nil, unwind(fmt.Errorf("driver: START_DEVICE failed: %s", status))
	}

	log.Infof("driver: loaded %s (%d bytes, %d cylinders)", ramdisk.DeviceName, imageSize, disk.Geometry().Cylinders)

	return &Harness{Disk: disk, Control: control, log: log}, nil
}

// DefaultImageSize is the image size Load uses when the caller has no
// specific requirement, mirroring fat32.DefaultImageSize.
const DefaultImageSize = fat32.DefaultImageSize

// Remove drives IRP_MN_REMOVE_DEVICE through the PnP state machine,
// quiescing new IRPs, draining in-flight ones via the remove-lock, and
// joining the worker goroutine. Per Design Note §9, the control device is
// logically retired first — it has already been routing every IOCTL
// through the disk device's own queue and remove-lock, so no separate
// drain is needed for it — then the disk device itself is torn down.
func (h *Harness) Remove(ctx context.Context) error {
	h.Control = nil

	remove := kernel.NewIRP(ctx, kernel.MjPnP)
	remove.Minor = kernel.MnRemoveDevice
	h.Disk.DispatchPnP(remove)
	status, _ := remove.Wait()
	if status != kernel.StatusSuccess {
		return fmt.Errorf("driver: REMOVE_DEVICE failed: %s", status)
	}

	h.log.Infof("driver: removed %s", ramdisk.DeviceName)
	return nil
}
