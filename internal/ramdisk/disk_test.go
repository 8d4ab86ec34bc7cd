package ramdisk

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harryfoxfox/safe-sub000/internal/fat32"
	"github.com/harryfoxfox/safe-sub000/internal/kernel"
	"github.com/harryfoxfox/safe-sub000/internal/logger"
	"github.com/harryfoxfox/safe-sub000/internal/pnp"
	"github.com/harryfoxfox/safe-sub000/internal/reparse"
)

// fakeEngager is a minimal Engager for exercising the disk device's worker
// without a real reparse-point implementation.
type fakeEngager struct {
	engageErr    error
	disengageErr error
	engaged      int
}

func (f *fakeEngager) Engage(ctx context.Context) (*reparse.Handle, error) {
	if f.engageErr != nil {
		return nil, f.engageErr
	}
	f.engaged++
	return reparse.NewHandle(f, nil), nil
}

func (f *fakeEngager) Disengage(ctx context.Context, h *reparse.Handle) error {
	if f.disengageErr != nil {
		return f.disengageErr
	}
	f.engaged--
	return nil
}

const testImageSize = fat32.DefaultImageSize

func newTestDevice(t *testing.T, engager reparse.Engager) *DiskDevice {
	t.Helper()
	log := logger.New(io.Discard, logger.ErrorLevel)
	d, err := New(testImageSize, kernel.NopPDO{}, log, engager)
	require.NoError(t, err)
	d.setState(pnp.Started)
	t.Cleanup(d.Shutdown)
	return d
}

func TestDiskDevice_NewFormatsImage(t *testing.T) {
	d := newTestDevice(t, &fakeEngager{})
	assert.True(t, d.Valid())
	assert.Equal(t, []byte{0x55, 0xAA}, d.image[510:512])
}

func TestDiskDevice_ReadWriteRoundTrip(t *testing.T) {
	d := newTestDevice(t, &fakeEngager{})

	payload := []byte("hello safe ram disk")
	writeIRP := kernel.NewIRP(context.Background(), kernel.MjWrite)
	writeIRP.Offset = 1024 * 1024
	writeIRP.Length = int64(len(payload))
	writeIRP.Mdl = &kernel.Mdl{Buffer: append([]byte(nil), payload...)}
	d.DispatchWrite(writeIRP)
	status, info := writeIRP.Wait()
	require.Equal(t, kernel.StatusSuccess, status)
	require.Equal(t, int64(len(payload)), info)

	readBuf := make([]byte, len(payload))
	readIRP := kernel.NewIRP(context.Background(), kernel.MjRead)
	readIRP.Offset = 1024 * 1024
	readIRP.Length = int64(len(payload))
	readIRP.Mdl = &kernel.Mdl{Buffer: readBuf}
	d.DispatchRead(readIRP)
	status, info = readIRP.Wait()
	require.Equal(t, kernel.StatusSuccess, status)
	require.Equal(t, int64(len(payload)), info)
	assert.Equal(t, payload, readBuf)
}

func TestDiskDevice_ShortTransferAtEndOfDisk(t *testing.T) {
	d := newTestDevice(t, &fakeEngager{})

	buf := make([]byte, 4096)
	irp := kernel.NewIRP(context.Background(), kernel.MjRead)
	irp.Offset = testImageSize - 100
	irp.Length = int64(len(buf))
	irp.Mdl = &kernel.Mdl{Buffer: buf}
	d.DispatchRead(irp)
	status, info := irp.Wait()
	require.Equal(t, kernel.StatusSuccess, status)
	assert.Equal(t, int64(100), info)
}

func TestDiskDevice_ReadRejectedBeforeStarted(t *testing.T) {
	log := logger.New(io.Discard, logger.ErrorLevel)
	d, err := New(testImageSize, kernel.NopPDO{}, log, &fakeEngager{})
	require.NoError(t, err)
	t.Cleanup(d.Shutdown)

	irp := kernel.NewIRP(context.Background(), kernel.MjRead)
	irp.Length = 512
	irp.Mdl = &kernel.Mdl{Buffer: make([]byte, 512)}
	d.DispatchRead(irp)
	status, _ := irp.Wait()
	assert.Equal(t, kernel.StatusInvalidDeviceState, status)
}

func TestDiskDevice_CreateRejectedBeforeStarted(t *testing.T) {
	log := logger.New(io.Discard, logger.ErrorLevel)
	d, err := New(testImageSize, kernel.NopPDO{}, log, &fakeEngager{})
	require.NoError(t, err)
	t.Cleanup(d.Shutdown)

	irp := kernel.NewIRP(context.Background(), kernel.MjCreate)
	d.DispatchCreate(irp)
	status, _ := irp.Wait()
	assert.Equal(t, kernel.StatusInvalidDeviceState, status)
}

func TestDiskDevice_GetDriveGeometryCopiesGeometryIntoOutputBuffer(t *testing.T) {
	d := newTestDevice(t, &fakeEngager{})

	irp := kernel.NewIRP(context.Background(), kernel.MjDeviceControl)
	irp.IOCTL = IOCTLDiskGetDriveGeometry
	irp.OutputBuffer = make([]byte, 64)
	d.DispatchDeviceControl(irp)
	status, info := irp.Wait()
	require.Equal(t, kernel.StatusSuccess, status)
	assert.Greater(t, info, int64(0))

	var cylinders int64
	for i := int64(0); i < 8; i++ {
		cylinders |= int64(irp.OutputBuffer[i]) << (8 * i)
	}
	assert.Equal(t, d.Geometry().Cylinders, cylinders)
}

func TestDiskDevice_GetDriveGeometryRejectsShortOutputBuffer(t *testing.T) {
	d := newTestDevice(t, &fakeEngager{})

	irp := kernel.NewIRP(context.Background(), kernel.MjDeviceControl)
	irp.IOCTL = IOCTLDiskGetDriveGeometry
	irp.OutputBuffer = make([]byte, 1)
	d.DispatchDeviceControl(irp)
	status, info := irp.Wait()
	assert.Equal(t, kernel.StatusBufferTooSmall, status)
	assert.Equal(t, int64(0), info)
}

func TestDiskDevice_InlineIOCTLsRejectedBeforeStarted(t *testing.T) {
	log := logger.New(io.Discard, logger.ErrorLevel)
	d, err := New(testImageSize, kernel.NopPDO{}, log, &fakeEngager{})
	require.NoError(t, err)
	t.Cleanup(d.Shutdown)

	irp := kernel.NewIRP(context.Background(), kernel.MjDeviceControl)
	irp.IOCTL = IOCTLDiskGetDriveGeometry
	irp.OutputBuffer = make([]byte, 64)
	d.DispatchDeviceControl(irp)
	status, info := irp.Wait()
	assert.Equal(t, kernel.StatusInvalidDeviceState, status)
	assert.Equal(t, int64(0), info)
}

func TestDiskDevice_RemoveDeviceDrainsWithoutPanicking(t *testing.T) {
	d := newTestDevice(t, &fakeEngager{})

	remove := kernel.NewIRP(context.Background(), kernel.MjPnP)
	remove.Minor = kernel.MnRemoveDevice
	d.DispatchPnP(remove)
	status, _ := remove.Wait()
	assert.Equal(t, kernel.StatusSuccess, status)
	assert.Equal(t, 0, d.removeLock.Outstanding())
}
