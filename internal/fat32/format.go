// Package fat32 formats a fixed-geometry, empty FAT32 image into a
// caller-supplied byte buffer, per spec.md §4.1 and the bit-exact layout in
// §6. It has no knowledge of the disk device or the worker queue that
// eventually serves reads/writes against the buffer it fills in.
package fat32

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
	"github.com/noxer/bytewriter"
)

// Fixed geometry constants from spec.md §4.1.
const (
	BytesPerSector    = 512
	SectorsPerTrack   = 32
	TracksPerCylinder = 2
	ReservedSectors   = 2
	SectorsPerCluster = 8
	FATEntrySize      = 4
	MediaDescriptor   = 0xF8

	bootSectorOffset  = 0
	fsInfoSectorOffset = BytesPerSector
	firstFATOffset    = 2 * BytesPerSector

	rootDirCluster = 2
	oemName        = "SAFERAMD"
	volumeLabel    = "SAFERAMDISK"
	fsTypeLabel    = "FAT32   "
	volumeID       = 0x02051986
)

// minImageSize is the smallest buffer for which sectorsPerFAT32 yields at
// least one FAT sector: the reserved sectors, one FAT sector, and the
// clusters that one FAT sector's 128 entries describe (8 sectors each).
// spec.md §9 flags the original as asserting this instead of checking it;
// here it is a real returned error.
const minImageSize = (ReservedSectors + 1 + SectorsPerCluster*(BytesPerSector/FATEntrySize)) * BytesPerSector

// ErrImageTooSmall is returned by Format when size cannot hold the reserved
// sectors, one FAT sector, and the data clusters that FAT sector describes.
var ErrImageTooSmall = fmt.Errorf("fat32: image size must be at least %d bytes", minImageSize)

// Geometry describes the disk geometry the formatter derived for a given
// image size, mirroring DISK_GEOMETRY as read by DISK_GET_DRIVE_GEOMETRY.
type Geometry struct {
	Cylinders         int64
	TracksPerCylinder uint32
	SectorsPerTrack   uint32
	BytesPerSector    uint32
}

// bootSector is the on-disk FAT32 boot sector / BIOS parameter block, laid
// out field-for-field per spec.md §6. Field order, not Go memory layout,
// determines the wire format: both encoding/binary and restruct walk fields
// in declaration order.
type bootSector struct {
	JumpBoot          [3]byte
	OEMName           [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntries       uint16
	TotalSectors16    uint16
	Media             uint8
	FATSize16         uint16
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	TotalSectors32    uint32
	FATSize32         uint32
	ExtFlags          uint16
	FSVersion         uint16
	RootCluster       uint32
	FSInfoSector      uint16
	BackupBootSector  uint16
	Reserved          [12]byte
	DriveNumber       uint8
	Reserved1         uint8
	BootSignature     uint8
	VolumeID          uint32
	VolumeLabel       [11]byte
	FSType            [8]byte
	BootCode          [420]byte
	Signature         [2]byte
}

// fsInfoSector is the FAT32 FS-information sector, spec.md §6.
type fsInfoSector struct {
	LeadSignature   uint32
	Reserved1       [480]byte
	StructSignature uint32
	FreeCount       uint32
	NextFree        uint32
	Reserved2       [12]byte
	TrailSignature  uint32
}

const (
	leadSignature   = 0x41615252
	structSignature = 0x61417272
	trailSignature  = 0xAA550000
	unknownCluster  = 0xFFFFFFFF
)

// Format writes a boot sector, FS-information sector, and first FAT sector
// into buf (sized size bytes) and returns the derived geometry and fixed
// partition type byte. buf must be at least size bytes and is expected to
// already be zero-initialized; Format only writes the three structured
// sectors, leaving the rest of the image (the blank root directory and free
// clusters) untouched.
func Format(buf []byte, size int64) (Geometry, byte, error) {
	if size < minImageSize {
		return Geometry{}, 0, ErrImageTooSmall
	}
	if int64(len(buf)) < size {
		return Geometry{}, 0, fmt.Errorf("fat32: buffer shorter than declared size %d", size)
	}

	totalSectors := uint32(size / BytesPerSector)
	cylinders := int64(totalSectors) / (SectorsPerTrack * TracksPerCylinder)
	sectorsPerFAT := sectorsPerFAT32(totalSectors)

	bs := bootSector{
		JumpBoot:          [3]byte{0xEB, 0x76, 0x90},
		BytesPerSector:    BytesPerSector,
		SectorsPerCluster: SectorsPerCluster,
		ReservedSectors:   ReservedSectors,
		NumFATs:           1,
		Media:             MediaDescriptor,
		SectorsPerTrack:   SectorsPerTrack,
		NumHeads:          TracksPerCylinder,
		TotalSectors32:    totalSectors,
		FATSize32:         sectorsPerFAT,
		RootCluster:       rootDirCluster,
		FSInfoSector:      1,
		BootSignature:     0x29,
		VolumeID:          volumeID,
		Signature:         [2]byte{0x55, 0xAA},
	}
	copy(bs.OEMName[:], oemName)
	copy(bs.VolumeLabel[:], volumeLabel)
	copy(bs.FSType[:], fsTypeLabel)

	if err := writePacked(buf[bootSectorOffset:bootSectorOffset+BytesPerSector], &bs); err != nil {
		return Geometry{}, 0, fmt.Errorf("fat32: packing boot sector: %w", err)
	}

	info := fsInfoSector{
		LeadSignature:   leadSignature,
		StructSignature: structSignature,
		FreeCount:       unknownCluster,
		NextFree:        unknownCluster,
		TrailSignature:  trailSignature,
	}
	if err := writePacked(buf[fsInfoSectorOffset:fsInfoSectorOffset+BytesPerSector], &info); err != nil {
		return Geometry{}, 0, fmt.Errorf("fat32: packing FS-info sector: %w", err)
	}

	fat := [3]uint32{0xFFFFFF00 | MediaDescriptor, 0xFFFFFFFF, 0xFFFFFFFF}
	fatBuf := make([]byte, len(fat)*4)
	for i, v := range fat {
		binary.LittleEndian.PutUint32(fatBuf[i*4:], v)
	}
	w := bytewriter.New(buf[firstFATOffset : firstFATOffset+BytesPerSector])
	if _, err := w.Write(fatBuf); err != nil {
		return Geometry{}, 0, fmt.Errorf("fat32: writing first FAT sector: %w", err)
	}

	geom := Geometry{
		Cylinders:         cylinders,
		TracksPerCylinder: TracksPerCylinder,
		SectorsPerTrack:   SectorsPerTrack,
		BytesPerSector:    BytesPerSector,
	}
	return geom, PartitionTypeFAT32, nil
}

// sectorsPerFAT32 computes the largest FAT size (in sectors) that leaves
// room for both the FAT itself and at least the reserved data clusters, per
// spec.md §4.1's derived-quantity formula.
func sectorsPerFAT32(totalSectors uint32) uint32 {
	entriesPerFATSector := uint32(BytesPerSector / FATEntrySize) // ceil(512/4) == 128 exactly
	denom := SectorsPerCluster*entriesPerFATSector + 1
	return (totalSectors - ReservedSectors) / denom
}

func writePacked(dst []byte, v any) error {
	packed, err := restruct.Pack(binary.LittleEndian, v)
	if err != nil {
		return err
	}
	w := bytewriter.New(dst)
	_, err = w.Write(packed)
	return err
}
