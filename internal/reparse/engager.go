// Package reparse implements the engage/disengage protocol of spec.md §4.7:
// redirecting the well-known Tfs_DAV mount point under the running system's
// SystemRoot onto the RAM disk's volume device object via an NTFS mount-point
// reparse point, and restoring whatever was there before on disengage.
//
// The protocol (grounded on
// original_source/dependencies/tfs_dav_filter/tfs_dav_reparse_engage.cpp)
// reads SystemRoot from the registry, checks for an already-installed,
// matching reparse point (idempotent re-engage), renames any other existing
// directory or reparse point aside, creates a fresh delete-on-close reparse
// directory, and stamps it with a mount-point reparse buffer pointing at the
// RAM disk device. Engager abstracts that behind an interface so
// internal/ramdisk's worker never depends on the platform-specific
// mechanics, and so the protocol's state machine can be tested without a
// real filesystem.
package reparse

import (
	"context"
	"errors"
)

// ErrUnsupportedPlatform is returned by engagers that have no real
// implementation for the current GOOS.
var ErrUnsupportedPlatform = errors.New("reparse: engage/disengage is not supported on this platform")

// ErrNotFound is returned when a registry value, or a path the protocol
// expects to rename or restore, does not exist. The protocol treats this as
// tolerable in specific steps (spec.md §4.7 step 4/disengage step 2:
// "tolerate not found").
var ErrNotFound = errors.New("reparse: value not found")

// ErrAlreadyExists is returned by Rename when newPath already exists. The
// protocol tolerates this at the rename-aside step, leaving any older
// backup alone (spec.md §4.7 step 4: "ignoring ObjectNameCollision").
var ErrAlreadyExists = errors.New("reparse: target path already exists")

// Handle is the per-engagement token returned by Engage and consumed by a
// matching Disengage. Its zero value is never valid; callers only ever hold
// one returned by a successful Engage. A Handle remembers the Engager that
// produced it so internal/ramdisk's worker can call Disengage directly on
// the Handle without holding a separate Engager reference. FSHandle is the
// opaque, platform-specific open handle to the delete-on-close reparse
// directory (a windows.Handle on Windows); only the Engager that produced
// it ever looks inside.
type Handle struct {
	Engager  Engager
	FSHandle any
}

// NewHandle builds a Handle bound to engager, for use by Engager
// implementations (including fakes in other packages' tests) when
// constructing the value Engage returns.
func NewHandle(engager Engager, fsHandle any) *Handle {
	return &Handle{Engager: engager, FSHandle: fsHandle}
}

// Disengage reverses this handle's engagement through the Engager that
// produced it.
func (h *Handle) Disengage(ctx context.Context) error {
	return h.Engager.Disengage(ctx, h)
}

// Engager installs and removes the reparse-point redirection. Exactly one
// Handle is live per DiskDevice at a time; internal/ramdisk's worker is
// solely responsible for serializing Engage/Disengage calls against it.
type Engager interface {
	Engage(ctx context.Context) (*Handle, error)
	Disengage(ctx context.Context, h *Handle) error
}

// RegistryReader abstracts the single registry read the protocol needs: the
// running system's SystemRoot value, spec.md §4.7 step 1/§6. Injected so
// TfsDavEngager is testable without a real registry.
type RegistryReader interface {
	ReadString(keyPath, valueName string) (string, error)
}
