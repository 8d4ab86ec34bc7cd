package fat32

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_BootSectorShape(t *testing.T) {
	const size = 209715200 // 200 MiB, the worked example in spec.md §8 scenario 1
	buf := make([]byte, size)

	geom, partType, err := Format(buf, size)
	require.NoError(t, err)
	assert.Equal(t, PartitionTypeFAT32, partType)
	assert.Equal(t, uint32(BytesPerSector), geom.BytesPerSector)

	assert.Equal(t, []byte{0x55, 0xAA}, buf[510:512])
	assert.Equal(t, uint16(512), binary.LittleEndian.Uint16(buf[11:13]))
	assert.Equal(t, byte(8), buf[13])
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(buf[14:16]))
	assert.Equal(t, byte(0xF8), buf[21])
	assert.Equal(t, uint32(size/BytesPerSector), binary.LittleEndian.Uint32(buf[32:36]))
	assert.Equal(t, uint32(409600), binary.LittleEndian.Uint32(buf[32:36]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(buf[44:48]))
}

func TestFormat_FirstFATSector(t *testing.T) {
	const size = DefaultImageSize
	buf := make([]byte, size)

	_, _, err := Format(buf, size)
	require.NoError(t, err)

	assert.Equal(t, uint32(0xFFFFFFF8), binary.LittleEndian.Uint32(buf[1024:1028]))
	assert.Equal(t, uint32(0xFFFFFFFF), binary.LittleEndian.Uint32(buf[1028:1032]))
	assert.Equal(t, uint32(0xFFFFFFFF), binary.LittleEndian.Uint32(buf[1032:1036]))
}

func TestFormat_FSInfoSector(t *testing.T) {
	const size = DefaultImageSize
	buf := make([]byte, size)

	_, _, err := Format(buf, size)
	require.NoError(t, err)

	fsInfo := buf[BytesPerSector : 2*BytesPerSector]
	assert.Equal(t, uint32(leadSignature), binary.LittleEndian.Uint32(fsInfo[0:4]))
	assert.Equal(t, uint32(structSignature), binary.LittleEndian.Uint32(fsInfo[484:488]))
	assert.Equal(t, uint32(unknownCluster), binary.LittleEndian.Uint32(fsInfo[488:492]))
	assert.Equal(t, uint32(unknownCluster), binary.LittleEndian.Uint32(fsInfo[492:496]))
	assert.Equal(t, uint32(trailSignature), binary.LittleEndian.Uint32(fsInfo[508:512]))
}

func TestFormat_RejectsTooSmallImage(t *testing.T) {
	buf := make([]byte, minImageSize-1)
	_, _, err := Format(buf, minImageSize-1)
	assert.ErrorIs(t, err, ErrImageTooSmall)
}

func TestClusterBitmap_RootClusterAllocated(t *testing.T) {
	cb := NewClusterBitmap(100)
	assert.Equal(t, 99, cb.FreeClusters())
	assert.Equal(t, 100, cb.TotalClusters())
}
