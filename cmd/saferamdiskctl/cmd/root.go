// Package cmd defines the saferamdiskctl subcommands: each one drives the
// in-process driver harness (internal/driver) through one simulated IRP,
// prints the outcome, and tears the harness down before exiting, since
// there is no real kernel device persisting the state between process
// invocations. Modeled on ostafen-digler/cmd/cmd's per-command cobra.Command
// registration style.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/harryfoxfox/safe-sub000/internal/logger"
)

const AppName = "saferamdiskctl"

func Execute() error {
	rootCmd := &cobra.Command{
		Use:   AppName,
		Short: AppName + " - drive the safe RAM disk I/O core for one simulated operation",
	}

	rootCmd.PersistentFlags().String("log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR")
	rootCmd.PersistentFlags().Int64("size", 0, "image size in bytes (0 = default)")

	rootCmd.AddCommand(
		DefineLoadCommand(),
		DefineReadCommand(),
		DefineWriteCommand(),
		DefineEngageCommand(),
		DefineDisengageCommand(),
		DefineGeometryCommand(),
		DefineRemoveCommand(),
		DefineViewCommand(),
	)

	return rootCmd.Execute()
}

func newLogger(cmd *cobra.Command) *logger.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return logger.New(os.Stderr, logger.ParseLevel(level))
}

func imageSize(cmd *cobra.Command) int64 {
	size, _ := cmd.Flags().GetInt64("size")
	return size
}
