package reparse

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Fixed locations the protocol reads and writes, spec.md §4.7/§6. None of
// these are configurable: the service always redirects the same WebDAV mount
// point onto the same RAM disk device.
const (
	systemRootKey   = `SOFTWARE\Microsoft\Windows NT\CurrentVersion`
	systemRootValue = "SystemRoot"
	tfsStoreDirName = "TfsStore"
	tfsDavDirName   = "Tfs_DAV"
	backupSuffix    = "-SafeBackup"
)

// ReparseTarget is the fixed NT device path every successful engage installs
// as the Tfs_DAV mount point's substitute name, spec.md §4.7 step 2/§8.
const ReparseTarget = `\Device\SafeRamDisk\`

// ReparseFS abstracts the directory and reparse-point operations the
// protocol performs, spec.md §4.7. FSHandle values it hands back are opaque
// to callers outside this package; they are only ever passed back into
// another ReparseFS method.
type ReparseFS interface {
	// OpenExisting opens path as a reparse-point directory if one exists
	// there. ok is false, with a nil handle, if nothing exists at path.
	// When ok is true and the existing object is a mount-point reparse
	// point, substituteName holds its substitute name; otherwise it's
	// empty.
	OpenExisting(path string) (h any, substituteName string, ok bool, err error)
	// MarkDeleteOnClose arms delete-on-close on an already-open handle,
	// for the idempotent re-engage path (step 3).
	MarkDeleteOnClose(h any) error
	// Rename renames oldPath to newPath. Implementations report
	// ErrNotFound when oldPath does not exist and ErrAlreadyExists when
	// newPath already does; callers tolerate both at the rename-aside
	// step.
	Rename(oldPath, newPath string) error
	// EnsureDir creates dir if it does not already exist (step 5).
	EnsureDir(dir string) error
	// CreateReparseDirectory creates path as a fresh delete-on-close
	// reparse-point directory and returns its open handle (step 6).
	CreateReparseDirectory(path string) (any, error)
	// SetReparsePoint issues FSCTL_SET_REPARSE_POINT against h, installing
	// a mount-point reparse buffer whose substitute name is target
	// (step 7).
	SetReparsePoint(h any, target string) error
	// Close closes h. If h was opened delete-on-close, closing it deletes
	// the underlying directory (disengage step 1).
	Close(h any) error
}

// TfsDavEngager implements Engager by driving a RegistryReader and a
// ReparseFS through the seven-step engage / two-step disengage protocol of
// spec.md §4.7. It holds no engagement state of its own between calls —
// spec.md §3/§9 require engage_count and the live Handle to be owned by
// internal/ramdisk's worker goroutine, not by the engager.
type TfsDavEngager struct {
	registry RegistryReader
	fs       ReparseFS
}

// NewTfsDavEngager builds an Engager that redirects the well-known Tfs_DAV
// mount point under the running system's SystemRoot onto ReparseTarget.
func NewTfsDavEngager(registry RegistryReader, fs ReparseFS) *TfsDavEngager {
	return &TfsDavEngager{registry: registry, fs: fs}
}

// paths resolves the two NT paths the protocol needs from the live
// SystemRoot value: the TfsStore directory (step 5's parent) and the
// Tfs_DAV mount point beneath it.
func (e *TfsDavEngager) paths() (tfsStoreDir, tfsDavPath string, err error) {
	systemRoot, err := e.registry.ReadString(systemRootKey, systemRootValue)
	if err != nil {
		return "", "", fmt.Errorf("reparse: reading %s: %w", systemRootValue, err)
	}
	tfsStoreDir = fmt.Sprintf(`\??\%s\ServiceProfiles\LocalService\AppData\Local\Temp\%s`, systemRoot, tfsStoreDirName)
	tfsDavPath = tfsStoreDir + `\` + tfsDavDirName
	return tfsStoreDir, tfsDavPath, nil
}

// Engage runs the seven steps of spec.md §4.7:
//  1. read SystemRoot and derive the TfsStore/Tfs_DAV paths
//  2. (ReparseTarget is fixed, nothing to compute)
//  3. if Tfs_DAV already exists as a reparse point matching ReparseTarget,
//     this is a no-op re-engage: just mark it delete-on-close and return
//  4. otherwise rename whatever is at Tfs_DAV aside, tolerating "not found"
//     and "already exists"
//  5. ensure TfsStore exists
//  6. create a fresh delete-on-close directory at Tfs_DAV
//  7. stamp it with a mount-point reparse point pointing at ReparseTarget
func (e *TfsDavEngager) Engage(ctx context.Context) (*Handle, error) {
	tfsStoreDir, tfsDavPath, err := e.paths()
	if err != nil {
		return nil, err
	}

	h, substituteName, ok, err := e.fs.OpenExisting(tfsDavPath)
	if err != nil {
		return nil, fmt.Errorf("reparse: opening %s: %w", tfsDavPath, err)
	}
	if ok {
		if strings.EqualFold(substituteName, ReparseTarget) {
			if err := e.fs.MarkDeleteOnClose(h); err != nil {
				return nil, fmt.Errorf("reparse: marking %s delete-on-close: %w", tfsDavPath, err)
			}
			return NewHandle(e, h), nil
		}
		if err := e.fs.Close(h); err != nil {
			return nil, fmt.Errorf("reparse: closing mismatched %s: %w", tfsDavPath, err)
		}
	}

	backupPath := tfsDavPath + backupSuffix
	if err := e.fs.Rename(tfsDavPath, backupPath); err != nil &&
		!errors.Is(err, ErrNotFound) && !errors.Is(err, ErrAlreadyExists) {
		return nil, fmt.Errorf("reparse: renaming aside %s: %w", tfsDavPath, err)
	}

	if err := e.fs.EnsureDir(tfsStoreDir); err != nil {
		return nil, fmt.Errorf("reparse: ensuring %s exists: %w", tfsStoreDir, err)
	}

	h, err = e.fs.CreateReparseDirectory(tfsDavPath)
	if err != nil {
		return nil, fmt.Errorf("reparse: creating %s: %w", tfsDavPath, err)
	}

	if err := e.fs.SetReparsePoint(h, ReparseTarget); err != nil {
		_ = e.fs.Close(h)
		return nil, fmt.Errorf("reparse: setting reparse point at %s: %w", tfsDavPath, err)
	}

	return NewHandle(e, h), nil
}

// Disengage runs the disengage half of spec.md §4.7: close the delete-on-close
// handle, which deletes the Tfs_DAV directory, then try to restore whatever
// was renamed aside during Engage. Per spec.md §7, once the handle is
// closed the engagement is considered gone even if the restore below fails;
// the caller surfaces the error but must not retry Disengage against the
// same Handle.
func (e *TfsDavEngager) Disengage(ctx context.Context, h *Handle) error {
	if err := e.fs.Close(h.FSHandle); err != nil {
		return fmt.Errorf("reparse: closing reparse handle: %w", err)
	}

	_, tfsDavPath, err := e.paths()
	if err != nil {
		return err
	}

	backupPath := tfsDavPath + backupSuffix
	if err := e.fs.Rename(backupPath, tfsDavPath); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("reparse: restoring backup at %s: %w", tfsDavPath, err)
	}
	return nil
}
