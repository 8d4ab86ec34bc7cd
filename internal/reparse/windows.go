//go:build windows

package reparse

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

// winRegistry implements RegistryReader against the real Windows registry.
type winRegistry struct {
	root registry.Key
}

func (r winRegistry) ReadString(keyPath, valueName string) (string, error) {
	key, err := registry.OpenKey(r.root, keyPath, registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	defer key.Close()

	value, _, err := key.GetStringValue(valueName)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// winReparseFS implements ReparseFS against the real NTFS reparse-point
// surface, per
// original_source/dependencies/tfs_dav_filter/tfs_dav_reparse_engage.cpp.
type winReparseFS struct{}

const (
	fsctlGetReparsePoint = 0x900A8
	fsctlSetReparsePoint = 0x900A4
	maxReparseBuffer     = 16 * 1024
	mountPointReparseTag = 0xA0000003
)

func (winReparseFS) OpenExisting(path string) (any, string, bool, error) {
	h, err := openReparseDirectory(path, windows.OPEN_EXISTING, 0)
	if err != nil {
		if errors.Is(err, windows.ERROR_FILE_NOT_FOUND) || errors.Is(err, windows.ERROR_PATH_NOT_FOUND) {
			return nil, "", false, nil
		}
		return nil, "", false, err
	}

	buf := make([]byte, maxReparseBuffer)
	var returned uint32
	err = windows.DeviceIoControl(h, fsctlGetReparsePoint, nil, 0, &buf[0], uint32(len(buf)), &returned, nil)
	if err != nil {
		if err == windows.ERROR_NOT_A_REPARSE_POINT {
			return h, "", true, nil
		}
		windows.CloseHandle(h)
		return nil, "", false, err
	}

	name, err := parseMountPointSubstituteName(buf[:returned])
	if err != nil {
		windows.CloseHandle(h)
		return nil, "", false, err
	}
	return h, name, true, nil
}

func (winReparseFS) MarkDeleteOnClose(h any) error {
	return setDeleteDisposition(h.(windows.Handle), true)
}

func (winReparseFS) Rename(oldPath, newPath string) error {
	oldP, err := windows.UTF16PtrFromString(oldPath)
	if err != nil {
		return err
	}
	newP, err := windows.UTF16PtrFromString(newPath)
	if err != nil {
		return err
	}

	err = windows.MoveFileEx(oldP, newP, 0)
	if err == nil {
		return nil
	}
	if errors.Is(err, windows.ERROR_FILE_NOT_FOUND) || errors.Is(err, windows.ERROR_PATH_NOT_FOUND) {
		return ErrNotFound
	}
	if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		return ErrAlreadyExists
	}
	return err
}

func (winReparseFS) EnsureDir(dir string) error {
	p, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return err
	}
	err = windows.CreateDirectory(p, nil)
	if err != nil && !errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		return err
	}
	return nil
}

func (winReparseFS) CreateReparseDirectory(path string) (any, error) {
	return openReparseDirectory(path, windows.CREATE_NEW, windows.FILE_FLAG_DELETE_ON_CLOSE)
}

func (winReparseFS) SetReparsePoint(h any, target string) error {
	buf, err := buildMountPointReparseBuffer(target)
	if err != nil {
		return err
	}

	var returned uint32
	return windows.DeviceIoControl(h.(windows.Handle), fsctlSetReparsePoint, &buf[0], uint32(len(buf)), nil, 0, &returned, nil)
}

func (winReparseFS) Close(h any) error {
	return windows.CloseHandle(h.(windows.Handle))
}

// openReparseDirectory opens path with the access rights and flags the
// engage/disengage protocol needs on a reparse-point directory: DELETE so it
// can later be marked delete-on-close, GENERIC_ALL so FSCTLs against it
// succeed, backup semantics and open-reparse-point so the open itself
// traverses the reparse point rather than following it.
func openReparseDirectory(path string, creation uint32, extraFlags uint32) (windows.Handle, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	return windows.CreateFile(
		p,
		windows.DELETE|windows.GENERIC_ALL|windows.SYNCHRONIZE,
		0,
		nil,
		creation,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OPEN_REPARSE_POINT|extraFlags|windows.FILE_ATTRIBUTE_DIRECTORY,
		0,
	)
}

// setDeleteDisposition arms or disarms delete-on-close on an already-open
// handle via FileDispositionInfo, spec.md §4.7 step 3.
func setDeleteDisposition(h windows.Handle, deleteFile bool) error {
	var info struct {
		DeleteFile uint8
	}
	if deleteFile {
		info.DeleteFile = 1
	}
	return windows.SetFileInformationByHandle(h, windows.FileDispositionInfo, (*byte)(unsafe.Pointer(&info)), uint32(unsafe.Sizeof(info)))
}

// parseMountPointSubstituteName extracts the SubstituteName field from a
// REPARSE_DATA_BUFFER previously returned by FSCTL_GET_REPARSE_POINT, so
// Engage can compare it case-insensitively against ReparseTarget.
func parseMountPointSubstituteName(buf []byte) (string, error) {
	if len(buf) < 16 {
		return "", fmt.Errorf("reparse: reparse data too short (%d bytes)", len(buf))
	}
	tag := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	if tag != mountPointReparseTag {
		return "", fmt.Errorf("reparse: unexpected reparse tag %#x", tag)
	}

	substituteOffset := int(buf[8]) | int(buf[9])<<8
	substituteLength := int(buf[10]) | int(buf[11])<<8
	start := 16 + substituteOffset
	end := start + substituteLength
	if start < 0 || end > len(buf) {
		return "", errors.New("reparse: substitute name out of range")
	}
	return utf16BytesToString(buf[start:end]), nil
}

func utf16BytesToString(b []byte) string {
	u16 := make([]uint16, len(b)/2)
	for i := range u16 {
		u16[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return windows.UTF16ToString(u16)
}

// buildMountPointReparseBuffer constructs a REPARSE_DATA_BUFFER for
// IO_REPARSE_TAG_MOUNT_POINT redirecting to target (an NT device path such
// as ReparseTarget), with an empty PrintName.
func buildMountPointReparseBuffer(target string) ([]byte, error) {
	name, err := windows.UTF16FromString(target)
	if err != nil {
		return nil, fmt.Errorf("reparse: encoding target path: %w", err)
	}
	// Strip the trailing NUL UTF16FromString appends; the reparse buffer
	// carries an explicit length instead.
	name = name[:len(name)-1]

	nameBytes := make([]byte, 2*len(name))
	for i, c := range name {
		nameBytes[2*i] = byte(c)
		nameBytes[2*i+1] = byte(c >> 8)
	}

	pathBufferLen := len(nameBytes) + 2 // +2 for the mandatory trailing NUL
	dataLen := 8 + pathBufferLen
	buf := make([]byte, 8+dataLen)

	putU32(buf[0:4], mountPointReparseTag)
	putU16(buf[4:6], uint16(dataLen))
	// buf[6:8] reserved
	putU16(buf[8:10], 0)                        // SubstituteNameOffset
	putU16(buf[10:12], uint16(len(nameBytes)))   // SubstituteNameLength
	putU16(buf[12:14], uint16(len(nameBytes)+2)) // PrintNameOffset
	putU16(buf[14:16], 0)                        // PrintNameLength
	copy(buf[16:], nameBytes)

	return buf, nil
}

func putU16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// NewPlatformEngager builds the real Windows TfsDavEngager. The protocol
// takes no configuration: the mount point, registry key, and redirection
// target are all fixed by spec.md §4.7/§6.
func NewPlatformEngager() *TfsDavEngager {
	return NewTfsDavEngager(winRegistry{root: registry.LOCAL_MACHINE}, winReparseFS{})
}
