package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harryfoxfox/safe-sub000/internal/diskview"
)

func DefineViewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "view <mountpoint>",
		Short:        "Load the device and FUSE-mount its image read-only for inspection (Linux only)",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunView,
	}
	return cmd
}

func RunView(cmd *cobra.Command, args []string) error {
	h, err := loadHarness(cmd)
	if err != nil {
		return err
	}
	defer h.Remove(context.Background())

	fmt.Printf("mounting debug view of %s at %s (ctrl-c to unmount)\n", ramDiskImageName, args[0])
	if err := diskview.Mount(args[0], h.Disk); err != nil {
		if err == diskview.ErrUnsupported {
			return fmt.Errorf("view: %w (build on linux to use this subcommand)", err)
		}
		return fmt.Errorf("view: %w", err)
	}
	return nil
}

const ramDiskImageName = "disk.img"
