package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check the block structure of a pcapng file",
	Long: `Scan a pcapng file without modifying it and print an inventory: blocks
per kind, the number of Enhanced Packet blocks and how many carry a comment.

The command fails when the scan stops before the end of the file, on a
malformed block or on a block out of order.

Examples:
  pcapnote validate capture.pcapng -f text`,
	Args: cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, s *session, args []string) error {
		return runValidate(ctx, s, args[0])
	}),
}

func runValidate(ctx context.Context, s *session, path string) error {
	if err := checkInput(path); err != nil {
		return err
	}
	inv, err := s.scanner.ValidateFile(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to validate %s: %w", path, err)
	}
	if err := s.report(ctx, inv.Record()); err != nil {
		return err
	}
	if inv.Stop != nil {
		return fmt.Errorf("INVALID: %s: %w", path, inv.Stop)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
