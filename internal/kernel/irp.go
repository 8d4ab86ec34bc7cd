package kernel

import "context"

// MajorFunction mirrors the handful of IRP_MJ_* codes the dispatch routines
// in internal/ramdisk care about.
type MajorFunction int

const (
	MjCreate MajorFunction = iota
	MjClose
	MjCleanup
	MjRead
	MjWrite
	MjDeviceControl
	MjPnP
	MjPower
	MjSystemControl
)

func (m MajorFunction) String() string {
	switch m {
	case MjCreate:
		return "CREATE"
	case MjClose:
		return "CLOSE"
	case MjCleanup:
		return "CLEANUP"
	case MjRead:
		return "READ"
	case MjWrite:
		return "WRITE"
	case MjDeviceControl:
		return "DEVICE_CONTROL"
	case MjPnP:
		return "PNP"
	case MjPower:
		return "POWER"
	case MjSystemControl:
		return "SYSTEM_CONTROL"
	default:
		return "UNKNOWN"
	}
}

// PnPMinorFunction mirrors the IRP_MN_* minor codes spec.md's PnP state
// machine (§4.5) reacts to.
type PnPMinorFunction int

const (
	MnStartDevice PnPMinorFunction = iota
	MnQueryStopDevice
	MnCancelStopDevice
	MnStopDevice
	MnQueryRemoveDevice
	MnCancelRemoveDevice
	MnSurpriseRemoval
	MnRemoveDevice
	MnOther
)

// Mdl is a minimal stand-in for a memory-descriptor list: the system-mapped
// buffer a Read/Write IRP carries. Real MDL mapping can fail
// (insufficient resources); Buffer is nil to model that failure mode.
type Mdl struct {
	Buffer []byte
}

func (m *Mdl) SystemAddress() ([]byte, Status) {
	if m == nil || m.Buffer == nil {
		return nil, StatusInsufficientResources
	}
	return m.Buffer, StatusSuccess
}

// DeviceControlCode identifies an IOCTL by its full control code (device
// type, access, function and method packed the way CTL_CODE packs them),
// built from the numbering in spec.md §6 (e.g. ENGAGE=function 0x800 on
// device type 0x8373, or the standard DISK_* codes handled inline by the
// disk device).
type DeviceControlCode uint32

// IRP is the unit of work dispatched to a device and, when pending, handed
// off to a worker queue. It plays the role of a real PIRP: callers build one,
// dispatch routines either complete it inline or enqueue it, and exactly one
// completion call is expected per IRP.
type IRP struct {
	Context context.Context

	Major MajorFunction
	Minor PnPMinorFunction
	IOCTL DeviceControlCode

	// Read/Write parameters.
	Offset int64
	Length int64
	Mdl    *Mdl

	// DeviceControl parameters.
	InputBuffer  []byte
	OutputBuffer []byte

	// Create parameters. FileName is whatever the caller asked to open
	// relative to the device; a RAM disk has no namespace inside itself,
	// so dispatch rejects anything but the empty string.
	FileName string

	// FileContext identifies the simulated file-object handle this IRP was
	// issued against, used by ENGAGE/DISENGAGE/Cleanup to find the
	// per-handle "engaged" flag.
	FileContext any

	next *IRP

	done         chan struct{}
	status       Status
	information  int64
}

// NewIRP allocates an IRP ready to be dispatched. ctx defaults to
// context.Background() if nil.
func NewIRP(ctx context.Context, major MajorFunction) *IRP {
	if ctx == nil {
		ctx = context.Background()
	}
	return &IRP{Context: ctx, Major: major, done: make(chan struct{}), status: StatusPending}
}

// Complete marks the IRP finished with the given status and transferred byte
// count (Information, in NT terms). It may be called exactly once; calling
// it twice indicates a dispatch bug and panics, matching the invariant in
// spec.md §8 ("the worker eventually completes it exactly once").
func (irp *IRP) Complete(status Status, information int64) {
	select {
	case <-irp.done:
		panic("kernel: IRP completed more than once")
	default:
	}
	irp.status = status
	irp.information = information
	close(irp.done)
}

// Wait blocks until the IRP is completed and returns its final status and
// transferred byte count.
func (irp *IRP) Wait() (Status, int64) {
	<-irp.done
	return irp.status, irp.information
}

// Done reports whether the IRP has already been completed.
func (irp *IRP) Done() bool {
	select {
	case <-irp.done:
		return true
	default:
		return false
	}
}

// Next returns the queue-linkage successor set by a workqueue.Queue. It is
// exported only so that package lives outside kernel without needing a
// second IRP-wrapping type, matching spec.md §3's "QueuedRequest: an IRP
// plus its queue linkage" — here the linkage is a field on the IRP itself.
func (irp *IRP) Next() *IRP { return irp.next }

// SetNext sets the queue-linkage successor.
func (irp *IRP) SetNext(n *IRP) { irp.next = n }
