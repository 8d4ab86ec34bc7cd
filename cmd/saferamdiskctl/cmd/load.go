package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/harryfoxfox/safe-sub000/internal/driver"
	"github.com/harryfoxfox/safe-sub000/internal/fat32"
	"github.com/harryfoxfox/safe-sub000/internal/reparse"
)

func DefineLoadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "load",
		Short:        "Format a fresh image, start the worker, and bring the device to Started",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunLoad,
	}
	return cmd
}

func engagerFromFlags(cmd *cobra.Command) reparse.Engager {
	return reparse.NewPlatformEngager()
}

func sizeOrDefault(cmd *cobra.Command) int64 {
	if size := imageSize(cmd); size != 0 {
		return size
	}
	return driver.DefaultImageSize
}

func RunLoad(cmd *cobra.Command, args []string) error {
	log := newLogger(cmd)
	size := sizeOrDefault(cmd)

	h, err := driver.Load(size, engagerFromFlags(cmd), log)
	if err != nil {
		return err
	}
	defer h.Remove(cmd.Context())

	geom := h.Disk.Geometry()
	fmt.Printf("loaded %s image (%s): %d cylinders, %d heads, %d sectors/track\n",
		humanize.Bytes(uint64(size)), fat32.VolumeLabel(), geom.Cylinders, geom.TracksPerCylinder, geom.SectorsPerTrack)
	fmt.Printf("state: %s\n", h.Disk.State())
	return nil
}
