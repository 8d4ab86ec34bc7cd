// Package ramdisk implements the functional device object (FDO) that is the
// bulk of the driver core: the DiskDevice from spec.md §3/§4.3/§4.4, its
// dedicated worker goroutine, and the sibling ControlDevice from §4.6.
package ramdisk

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/harryfoxfox/safe-sub000/internal/diag"
	"github.com/harryfoxfox/safe-sub000/internal/fat32"
	"github.com/harryfoxfox/safe-sub000/internal/kernel"
	"github.com/harryfoxfox/safe-sub000/internal/logger"
	"github.com/harryfoxfox/safe-sub000/internal/pnp"
	"github.com/harryfoxfox/safe-sub000/internal/reparse"
	"github.com/harryfoxfox/safe-sub000/internal/workqueue"
)

// diskMagic sanity-checks that a device extension really is a DiskDevice,
// mirroring spec.md §3's "magic: fixed tag word".
const diskMagic = 0x52414D44 // "RAMD"

// DeviceName is the disk FDO's device name, spec.md §6.
const DeviceName = `\Device\SafeRamDisk`

// DiskDevice is the FDO that presents the fixed-size, paged-memory-backed
// FAT32 image as a block device. One is created per driver load; see
// internal/driver for the load/remove sequencing.
type DiskDevice struct {
	magic uint32
	lower kernel.PDO
	log   *logger.Logger

	image         []byte
	imageSize     int64
	geometry      fat32.Geometry
	partitionType byte

	queue      *workqueue.Queue
	removeLock *kernel.RemoveLock
	workerDone chan struct{}
	engager    reparse.Engager

	pnpMu    sync.Mutex
	pnpState pnp.State

	control *ControlDevice
	trace   *diag.Trace
}

// New allocates the image buffer, formats it as an empty FAT32 volume, and
// starts the worker goroutine. It does not attach to any device stack or
// start accepting Create/Read/Write — that happens on IRP_MN_START_DEVICE,
// per spec.md §4.5.
func New(imageSize int64, lower kernel.PDO, log *logger.Logger, engager reparse.Engager) (*DiskDevice, error) {
	image := make([]byte, imageSize)

	geometry, partType, err := fat32.Format(image, imageSize)
	if err != nil {
		return nil, fmt.Errorf("ramdisk: formatting %s image: %w", humanize.Bytes(uint64(imageSize)), err)
	}

	d := &DiskDevice{
		magic:         diskMagic,
		lower:         lower,
		log:           log,
		image:         image,
		imageSize:     imageSize,
		geometry:      geometry,
		partitionType: partType,
		queue:         workqueue.New(),
		removeLock:    kernel.NewRemoveLock(),
		workerDone:    make(chan struct{}),
		engager:       engager,
		pnpState:      pnp.NotStarted,
		trace:         diag.New(),
	}

	log.Infof("ramdisk: formatted %s FAT32 image (%d sectors, %d cylinders)",
		humanize.Bytes(uint64(imageSize)), imageSize/fat32.BytesPerSector, geometry.Cylinders)

	go d.runWorker()

	return d, nil
}

// Valid reports whether the device extension still carries the expected
// magic tag, mirroring a defensive check the original driver performs
// before trusting a device extension pointer.
func (d *DiskDevice) Valid() bool { return d != nil && d.magic == diskMagic }

func (d *DiskDevice) state() pnp.State {
	d.pnpMu.Lock()
	defer d.pnpMu.Unlock()
	return d.pnpState
}

func (d *DiskDevice) setState(s pnp.State) {
	d.pnpMu.Lock()
	d.pnpState = s
	d.pnpMu.Unlock()
}

// ImageReaderAt exposes the live image buffer for read-only, out-of-band
// inspection (internal/diskview's debug FUSE view). It is never used by the
// dispatch path itself.
func (d *DiskDevice) ImageReaderAt() io.ReaderAt { return bytes.NewReader(d.image) }

// ImageSize returns the formatted image's size in bytes.
func (d *DiskDevice) ImageSize() int64 { return d.imageSize }

// Geometry returns the geometry fat32.Format computed at load time.
func (d *DiskDevice) Geometry() fat32.Geometry { return d.geometry }

// State reports the device's current PnP state, for CLI/debug reporting.
func (d *DiskDevice) State() pnp.State { return d.state() }

// Trace returns the device's IRP completion trace, for exporting via
// internal/diag's CSV writer.
func (d *DiskDevice) Trace() *diag.Trace { return d.trace }

// AttachControl wires the sibling ControlDevice, created by internal/driver
// just after the DiskDevice's AddDevice succeeds, per spec.md §3.
func (d *DiskDevice) AttachControl(c *ControlDevice) { d.control = c }

// Shutdown stops the worker goroutine and waits for it to exit. It must
// only be called after REMOVE_DEVICE's remove-lock has drained, per
// spec.md §3 ("the destructor joins the worker before freeing").
func (d *DiskDevice) Shutdown() {
	d.queue.Terminate()
	<-d.workerDone
}
