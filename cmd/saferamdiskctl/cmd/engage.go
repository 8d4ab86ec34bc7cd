package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harryfoxfox/safe-sub000/internal/kernel"
	"github.com/harryfoxfox/safe-sub000/internal/ramdisk"
)

func DefineEngageCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "engage",
		Short:        "Open a handle on the control device and issue ENGAGE",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunEngage,
	}
}

func DefineDisengageCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "disengage",
		Short:        "Open a handle on the control device and issue DISENGAGE",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunDisengage,
	}
}

// openControlHandle simulates a Create against the control device, returning
// the completed create IRP; its FileContext is what a real file object's
// FsContext slot would carry.
func openControlHandle(ctrl *ramdisk.ControlDevice) (*kernel.IRP, error) {
	create := kernel.NewIRP(context.Background(), kernel.MjCreate)
	ctrl.DispatchCreate(create)
	if status, _ := create.Wait(); status != kernel.StatusSuccess {
		return nil, fmt.Errorf("control device CREATE failed: %s", status)
	}
	return create, nil
}

func RunEngage(cmd *cobra.Command, args []string) error {
	h, err := loadHarness(cmd)
	if err != nil {
		return err
	}
	defer h.Remove(context.Background())

	handle, err := openControlHandle(h.Control)
	if err != nil {
		return err
	}

	irp := kernel.NewIRP(context.Background(), kernel.MjDeviceControl)
	irp.IOCTL = ramdisk.IOCTLEngage
	irp.FileContext = handle.FileContext
	h.Control.DispatchDeviceControl(irp)

	status, _ := irp.Wait()
	if status != kernel.StatusSuccess {
		return fmt.Errorf("ENGAGE failed: %s", status)
	}
	fmt.Println("engaged")
	return nil
}

func RunDisengage(cmd *cobra.Command, args []string) error {
	h, err := loadHarness(cmd)
	if err != nil {
		return err
	}
	defer h.Remove(context.Background())

	handle, err := openControlHandle(h.Control)
	if err != nil {
		return err
	}

	engage := kernel.NewIRP(context.Background(), kernel.MjDeviceControl)
	engage.IOCTL = ramdisk.IOCTLEngage
	engage.FileContext = handle.FileContext
	h.Control.DispatchDeviceControl(engage)
	if status, _ := engage.Wait(); status != kernel.StatusSuccess {
		return fmt.Errorf("ENGAGE (precondition) failed: %s", status)
	}

	irp := kernel.NewIRP(context.Background(), kernel.MjDeviceControl)
	irp.IOCTL = ramdisk.IOCTLDisengage
	irp.FileContext = handle.FileContext
	h.Control.DispatchDeviceControl(irp)

	status, _ := irp.Wait()
	if status != kernel.StatusSuccess {
		return fmt.Errorf("DISENGAGE failed: %s", status)
	}
	fmt.Println("disengaged")
	return nil
}
