package ramdisk

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harryfoxfox/safe-sub000/internal/kernel"
	"github.com/harryfoxfox/safe-sub000/internal/logger"
)

func newTestControl(t *testing.T, engager *fakeEngager) (*DiskDevice, *ControlDevice) {
	t.Helper()
	d := newTestDevice(t, engager)
	log := logger.New(io.Discard, logger.ErrorLevel)
	c := NewControlDevice(d, log)
	d.AttachControl(c)
	return d, c
}

func TestDosAlias(t *testing.T) {
	assert.Equal(t, `\DosDevices\Global\SafeDos`, DosAlias(true))
	assert.Equal(t, `\DosDevices\SafeDos`, DosAlias(false))
}

func TestControlDevice_CreateAllocatesFileContext(t *testing.T) {
	_, c := newTestControl(t, &fakeEngager{})

	irp := kernel.NewIRP(context.Background(), kernel.MjCreate)
	c.DispatchCreate(irp)
	status, _ := irp.Wait()
	require.Equal(t, kernel.StatusSuccess, status)
	require.NotNil(t, irp.FileContext)
	assert.False(t, irp.FileContext.(*FileContext).Engaged())
}

func TestControlDevice_EngageDisengageThroughControl(t *testing.T) {
	engager := &fakeEngager{}
	_, c := newTestControl(t, engager)

	createIRP := kernel.NewIRP(context.Background(), kernel.MjCreate)
	c.DispatchCreate(createIRP)
	_, _ = createIRP.Wait()
	fc := createIRP.FileContext.(*FileContext)

	engage := kernel.NewIRP(context.Background(), kernel.MjDeviceControl)
	engage.IOCTL = IOCTLEngage
	engage.FileContext = fc
	c.DispatchDeviceControl(engage)
	status, _ := engage.Wait()
	require.Equal(t, kernel.StatusSuccess, status)
	assert.True(t, fc.Engaged())

	disengage := kernel.NewIRP(context.Background(), kernel.MjDeviceControl)
	disengage.IOCTL = IOCTLDisengage
	disengage.FileContext = fc
	c.DispatchDeviceControl(disengage)
	status, _ = disengage.Wait()
	require.Equal(t, kernel.StatusSuccess, status)
	assert.False(t, fc.Engaged())
}

func TestControlDevice_UnknownIOCTLRejected(t *testing.T) {
	_, c := newTestControl(t, &fakeEngager{})

	irp := kernel.NewIRP(context.Background(), kernel.MjDeviceControl)
	irp.IOCTL = kernel.DeviceControlCode(0xDEADBEEF)
	c.DispatchDeviceControl(irp)
	status, _ := irp.Wait()
	assert.Equal(t, kernel.StatusInvalidDeviceRequest, status)
}

func TestControlDevice_CleanupDisengagesHeldHandle(t *testing.T) {
	engager := &fakeEngager{}
	_, c := newTestControl(t, engager)

	createIRP := kernel.NewIRP(context.Background(), kernel.MjCreate)
	c.DispatchCreate(createIRP)
	_, _ = createIRP.Wait()
	fc := createIRP.FileContext.(*FileContext)

	engage := kernel.NewIRP(context.Background(), kernel.MjDeviceControl)
	engage.IOCTL = IOCTLEngage
	engage.FileContext = fc
	c.DispatchDeviceControl(engage)
	_, _ = engage.Wait()

	cleanup := kernel.NewIRP(context.Background(), kernel.MjCleanup)
	cleanup.FileContext = fc
	c.DispatchCleanup(cleanup)
	status, _ := cleanup.Wait()
	assert.Equal(t, kernel.StatusSuccess, status)
	assert.Equal(t, 0, engager.engaged)
}
