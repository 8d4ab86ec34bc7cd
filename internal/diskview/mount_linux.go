//go:build linux

package diskview

import (
	"context"
	"io"
	"os"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
)

// diskFS serves a single fixed-size read-only file, "disk.img", backed by a
// running disk device's image buffer. Adapted from the teacher's
// internal/fuse.RecoverFS, generalized from "one entry per recovered file"
// to "one entry, the whole disk".
type diskFS struct {
	r    io.ReaderAt
	size int64
}

func (d *diskFS) Root() (fs.Node, error) {
	return &rootDir{fs: d}, nil
}

type rootDir struct {
	fs *diskFS
}

func (*rootDir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0555
	return nil
}

const imageFileName = "disk.img"

func (d *rootDir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	if name != imageFileName {
		return nil, fuse.ENOENT
	}
	return &imageFile{r: d.fs.r, size: d.fs.size}, nil
}

func (d *rootDir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	return []fuse.Dirent{{Inode: 1, Name: imageFileName, Type: fuse.DT_File}}, nil
}

// imageFile implements fs.Node and fs.HandleReader the same way the
// teacher's File does: Attr reports size, Read clamps at EOF, and there is
// no write path — this view never feeds back into the RAM disk.
type imageFile struct {
	r    io.ReaderAt
	size int64
}

func (f *imageFile) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = 0444
	a.Size = uint64(f.size)
	a.Mtime = time.Now()
	return nil
}

func (f *imageFile) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	size := int64(req.Size)
	offset := req.Offset

	if offset >= f.size {
		resp.Data = []byte{}
		return nil
	}
	if offset+size > f.size {
		size = f.size - offset
	}

	buf := make([]byte, size)
	n, err := f.r.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return err
	}
	resp.Data = buf[:n]
	return nil
}

// Mount serves image read-only at mountpoint until the filesystem is
// unmounted (e.g. by `fusermount -u`), blocking the calling goroutine. The
// caller (cmd/saferamdiskctl's `view` subcommand) runs it in its own
// goroutine or as the final step of a long-lived process.
func Mount(mountpoint string, image Image) error {
	conn, err := fuse.Mount(mountpoint, fuse.ReadOnly(), fuse.FSName("saferamdisk"), fuse.Subtype("diskview"))
	if err != nil {
		return err
	}
	defer conn.Close()

	<-conn.Ready
	if err := conn.MountError; err != nil {
		return err
	}

	filesys := &diskFS{r: image.ImageReaderAt(), size: image.ImageSize()}
	return fs.Serve(conn, filesys)
}
