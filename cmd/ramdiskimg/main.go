// Command ramdiskimg is a standalone inspector for exported .img files: it
// opens an image file (such as a copy of the disk.img that saferamdiskctl's
// view subcommand exposes) and prints the
// geometry and FAT header fields the formatter wrote into it, without
// bringing up a disk device or worker queue. Modeled on
// dargueta-disko/cmd/main.go's urfave/cli App/Command structure.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/harryfoxfox/safe-sub000/internal/fat32"
)

func main() {
	app := cli.App{
		Name:  "ramdiskimg",
		Usage: "Inspect a formatted safe RAM disk image file",
		Commands: []*cli.Command{
			{
				Name:      "header",
				Usage:     "Print the boot sector and FS-information sector fields",
				Action:    printHeader,
				ArgsUsage: "IMAGE_FILE",
			},
			{
				Name:      "geometry",
				Usage:     "Print the disk geometry derived from the image header",
				Action:    printGeometry,
				ArgsUsage: "IMAGE_FILE",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("ramdiskimg: %s", err)
	}
}

func openImage(c *cli.Context) (*os.File, error) {
	path := c.Args().First()
	if path == "" {
		return nil, fmt.Errorf("missing IMAGE_FILE argument")
	}
	return os.Open(path)
}

func printHeader(c *cli.Context) error {
	f, err := openImage(c)
	if err != nil {
		return err
	}
	defer f.Close()

	h, err := fat32.ReadHeader(f)
	if err != nil {
		return err
	}

	fmt.Printf("OEM name:       %s\n", h.OEMName)
	fmt.Printf("volume label:   %s\n", h.VolumeLabel)
	fmt.Printf("FS type:        %s\n", h.FSType)
	fmt.Printf("volume ID:      %08X\n", h.VolumeID)
	fmt.Printf("total sectors:  %d\n", h.TotalSectors32)
	fmt.Printf("FAT size:       %d sectors\n", h.FATSize32)
	fmt.Printf("free clusters:  %d (hint, next free %d)\n", h.FreeCount, h.NextFree)
	return nil
}

func printGeometry(c *cli.Context) error {
	f, err := openImage(c)
	if err != nil {
		return err
	}
	defer f.Close()

	h, err := fat32.ReadHeader(f)
	if err != nil {
		return err
	}

	geom := fat32.GeometryFromHeader(h)
	fmt.Printf("cylinders: %d\ntracks per cylinder: %d\nsectors per track: %d\nbytes per sector: %d\n",
		geom.Cylinders, geom.TracksPerCylinder, geom.SectorsPerTrack, geom.BytesPerSector)
	return nil
}
