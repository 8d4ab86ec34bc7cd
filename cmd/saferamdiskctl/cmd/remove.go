package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func DefineRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "remove",
		Short:        "Load the device then immediately drive IRP_MN_REMOVE_DEVICE through it",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunRemove,
	}
}

// RunRemove exists mainly to exercise the remove-lock/teardown path on
// demand rather than only as the deferred cleanup of the other subcommands.
func RunRemove(cmd *cobra.Command, args []string) error {
	h, err := loadHarness(cmd)
	if err != nil {
		return err
	}

	if err := h.Remove(context.Background()); err != nil {
		return fmt.Errorf("removing device: %w", err)
	}
	fmt.Println("removed")
	return nil
}
