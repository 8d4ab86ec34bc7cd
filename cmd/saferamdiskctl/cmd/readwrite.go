package cmd

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harryfoxfox/safe-sub000/internal/driver"
	"github.com/harryfoxfox/safe-sub000/internal/kernel"
)

func DefineReadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "read",
		Short:        "Load the device, issue one Read IRP, print the bytes as hex",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunRead,
	}
	cmd.Flags().Int64("offset", 0, "byte offset to read from")
	cmd.Flags().Int64("length", 512, "number of bytes to read")
	return cmd
}

func DefineWriteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "write",
		Short:        "Load the device, issue one Write IRP with the given hex payload",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunWrite,
	}
	cmd.Flags().Int64("offset", 0, "byte offset to write to")
	cmd.Flags().String("hex", "", "payload to write, hex-encoded")
	return cmd
}

func loadHarness(cmd *cobra.Command) (*driver.Harness, error) {
	log := newLogger(cmd)
	return driver.Load(sizeOrDefault(cmd), engagerFromFlags(cmd), log)
}

func RunRead(cmd *cobra.Command, args []string) error {
	h, err := loadHarness(cmd)
	if err != nil {
		return err
	}
	defer h.Remove(context.Background())

	offset, _ := cmd.Flags().GetInt64("offset")
	length, _ := cmd.Flags().GetInt64("length")

	irp := kernel.NewIRP(context.Background(), kernel.MjRead)
	irp.Offset = offset
	irp.Length = length
	irp.Mdl = &kernel.Mdl{Buffer: make([]byte, length)}

	h.Disk.DispatchRead(irp)
	status, info := irp.Wait()
	if status != kernel.StatusSuccess {
		return fmt.Errorf("read failed: %s", status)
	}

	fmt.Printf("read %d bytes at offset %d:\n%s\n", info, offset, hex.Dump(irp.Mdl.Buffer[:info]))
	return nil
}

func RunWrite(cmd *cobra.Command, args []string) error {
	h, err := loadHarness(cmd)
	if err != nil {
		return err
	}
	defer h.Remove(context.Background())

	offset, _ := cmd.Flags().GetInt64("offset")
	payloadHex, _ := cmd.Flags().GetString("hex")

	payload, err := hex.DecodeString(payloadHex)
	if err != nil {
		return fmt.Errorf("decoding --hex payload: %w", err)
	}

	irp := kernel.NewIRP(context.Background(), kernel.MjWrite)
	irp.Offset = offset
	irp.Length = int64(len(payload))
	irp.Mdl = &kernel.Mdl{Buffer: payload}

	h.Disk.DispatchWrite(irp)
	status, info := irp.Wait()
	if status != kernel.StatusSuccess {
		return fmt.Errorf("write failed: %s", status)
	}

	fmt.Printf("wrote %d bytes at offset %d\n", info, offset)
	return nil
}
