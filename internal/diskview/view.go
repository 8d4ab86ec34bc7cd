// Package diskview is a side door into a running *ramdisk.DiskDevice's
// image buffer: a read-only debug view, not part of the dispatch path, for
// inspecting the formatted FAT32 image without a real kernel driver
// loaded. The real mount is Linux-only (mount_linux.go); elsewhere Mount
// reports ErrUnsupported.
package diskview

import (
	"errors"
	"io"
)

// ErrUnsupported is returned by Mount on platforms with no FUSE support
// wired in.
var ErrUnsupported = errors.New("diskview: mounting the debug view is not supported on this platform")

// Image is the minimal view of a disk device diskview needs: its backing
// bytes and their length. *ramdisk.DiskDevice satisfies this via
// ImageReaderAt/ImageSize.
type Image interface {
	ImageReaderAt() io.ReaderAt
	ImageSize() int64
}
