// Package pnp implements the disk device's PnP state machine (spec.md
// §4.5) as a pure transition function, per Design Note §9's preference for
// a tagged variant over a class hierarchy: the table itself is testable
// without any device object at all.
package pnp

import "github.com/harryfoxfox/safe-sub000/internal/kernel"

// State is one of the values a DiskDevice's pnp_state can hold.
type State int

const (
	NotStarted State = iota
	Started
	StopPending
	Stopped
	RemovePending
	SurpriseRemovePending
	Deleted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case Started:
		return "Started"
	case StopPending:
		return "StopPending"
	case Stopped:
		return "Stopped"
	case RemovePending:
		return "RemovePending"
	case SurpriseRemovePending:
		return "SurpriseRemovePending"
	case Deleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// Action tells the caller what to do with the IRP in addition to moving to
// the next state: whether to wait for START_DEVICE completion, pass the IRP
// down synchronously or asynchronously, or release-and-wait the remove lock.
type Action int

const (
	// ActionPassDownSync completes the IRP only after the lower device has
	// completed its copy (START_DEVICE's local completion-event wait).
	ActionPassDownSync Action = iota
	// ActionPassDownAsync sends the IRP down without waiting for the result.
	ActionPassDownAsync
	// ActionCompleteHere means the current dispatch routine completes the
	// IRP itself with success instead of passing it down. No row of the
	// Transition table returns it.
	ActionCompleteHere
	// ActionReleaseAndWaitThenPassDown is REMOVE_DEVICE's special case:
	// mark Deleted, release-and-wait the remove lock, then pass the IRP
	// down.
	ActionReleaseAndWaitThenPassDown
)

// Transition implements the table in spec.md §4.5. It never touches a
// device object; the caller (internal/ramdisk) is responsible for actually
// waiting on events, passing IRPs to the PDO, and driving the remove lock
// per the returned Action.
func Transition(current State, minor kernel.PnPMinorFunction) (next State, action Action) {
	switch minor {
	case kernel.MnStartDevice:
		if current == NotStarted {
			return Started, ActionPassDownSync
		}
	case kernel.MnQueryStopDevice:
		if current == Started {
			return StopPending, ActionPassDownAsync
		}
	case kernel.MnCancelStopDevice:
		if current == StopPending {
			return Started, ActionPassDownAsync
		}
	case kernel.MnStopDevice:
		if current == StopPending {
			return Stopped, ActionPassDownAsync
		}
	case kernel.MnQueryRemoveDevice:
		if current == Started {
			return RemovePending, ActionPassDownAsync
		}
	case kernel.MnCancelRemoveDevice:
		if current == RemovePending {
			return Started, ActionPassDownAsync
		}
	case kernel.MnSurpriseRemoval:
		return SurpriseRemovePending, ActionPassDownAsync
	case kernel.MnRemoveDevice:
		return Deleted, ActionReleaseAndWaitThenPassDown
	}
	// Any other minor function, or a minor function that doesn't apply to
	// the current state, passes through with the state unchanged.
	return current, ActionPassDownAsync
}
