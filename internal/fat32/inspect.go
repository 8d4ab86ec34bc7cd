package fat32

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-restruct/restruct"
)

// Header is the subset of an on-disk boot sector an inspector cares about,
// unpacked back out of an already-formatted image rather than written to
// one. Field names mirror bootSector/fsInfoSector.
type Header struct {
	OEMName         string
	VolumeLabel     string
	FSType          string
	VolumeID        uint32
	TotalSectors32  uint32
	FATSize32       uint32
	SectorsPerTrack uint16
	NumHeads        uint16
	FreeCount       uint32
	NextFree        uint32
}

// ReadHeader reads the boot sector and FS-information sector from r (read
// at absolute offsets 0 and 512, so r must present an image produced by
// Format starting at offset 0) and unpacks their fields. It performs no validation beyond what
// restruct.Unpack requires to decode the fixed-size structs.
func ReadHeader(r io.ReaderAt) (Header, error) {
	bsBuf := make([]byte, BytesPerSector)
	if _, err := r.ReadAt(bsBuf, bootSectorOffset); err != nil {
		return Header{}, fmt.Errorf("fat32: reading boot sector: %w", err)
	}
	var bs bootSector
	if err := restruct.Unpack(bsBuf, binary.LittleEndian, &bs); err != nil {
		return Header{}, fmt.Errorf("fat32: unpacking boot sector: %w", err)
	}

	infoBuf := make([]byte, BytesPerSector)
	if _, err := r.ReadAt(infoBuf, fsInfoSectorOffset); err != nil {
		return Header{}, fmt.Errorf("fat32: reading FS-info sector: %w", err)
	}
	var info fsInfoSector
	if err := restruct.Unpack(infoBuf, binary.LittleEndian, &info); err != nil {
		return Header{}, fmt.Errorf("fat32: unpacking FS-info sector: %w", err)
	}

	return Header{
		OEMName:         trimmed(bs.OEMName[:]),
		VolumeLabel:     trimmed(bs.VolumeLabel[:]),
		FSType:          trimmed(bs.FSType[:]),
		VolumeID:        bs.VolumeID,
		TotalSectors32:  bs.TotalSectors32,
		FATSize32:       bs.FATSize32,
		SectorsPerTrack: bs.SectorsPerTrack,
		NumHeads:        bs.NumHeads,
		FreeCount:       info.FreeCount,
		NextFree:        info.NextFree,
	}, nil
}

// GeometryFromHeader derives the same Geometry Format would have returned,
// from a Header read back out of an existing image.
func GeometryFromHeader(h Header) Geometry {
	totalSectors := int64(h.TotalSectors32)
	cylinders := totalSectors / (int64(h.SectorsPerTrack) * int64(h.NumHeads))
	return Geometry{
		Cylinders:         cylinders,
		TracksPerCylinder: uint32(h.NumHeads),
		SectorsPerTrack:   uint32(h.SectorsPerTrack),
		BytesPerSector:    BytesPerSector,
	}
}

func trimmed(b []byte) string {
	i := len(b)
	for i > 0 && (b[i-1] == ' ' || b[i-1] == 0) {
		i--
	}
	return string(b[:i])
}
