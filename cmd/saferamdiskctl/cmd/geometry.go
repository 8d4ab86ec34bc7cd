package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harryfoxfox/safe-sub000/internal/kernel"
	"github.com/harryfoxfox/safe-sub000/internal/ramdisk"
)

func DefineGeometryCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "geometry",
		Short:        "Load the device and issue IOCTL_DISK_GET_DRIVE_GEOMETRY",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunGeometry,
	}
}

func RunGeometry(cmd *cobra.Command, args []string) error {
	h, err := loadHarness(cmd)
	if err != nil {
		return err
	}
	defer h.Remove(context.Background())

	irp := kernel.NewIRP(context.Background(), kernel.MjDeviceControl)
	irp.IOCTL = ramdisk.IOCTLDiskGetDriveGeometry
	h.Disk.DispatchDeviceControl(irp)

	status, _ := irp.Wait()
	if status != kernel.StatusSuccess {
		return fmt.Errorf("IOCTL_DISK_GET_DRIVE_GEOMETRY failed: %s", status)
	}

	geom := h.Disk.Geometry()
	fmt.Printf("cylinders: %d\ntracks per cylinder: %d\nsectors per track: %d\nbytes per sector: %d\n",
		geom.Cylinders, geom.TracksPerCylinder, geom.SectorsPerTrack, geom.BytesPerSector)
	return nil
}
