package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var readPacket int

var readCmd = &cobra.Command{
	Use:   "read <file>",
	Short: "Print the comment of one packet",
	Long: `Print the comment stored on an Enhanced Packet block.

The record carries the packet number as a string and the comment, or null
when the packet has none. When the file holds fewer packets the record is
flagged out of range.

Examples:
  pcapnote read capture.pcapng -p 3             # JSON record on stdout
  pcapnote read capture.pcapng -p 3 -f text     # human readable`,
	Args: cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, s *session, args []string) error {
		return runRead(ctx, s, args[0], readPacket)
	}),
}

func runRead(ctx context.Context, s *session, path string, packet int) error {
	if err := checkInput(path); err != nil {
		return err
	}
	res, err := s.scanner.ReadFile(ctx, path, packet)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return s.report(ctx, res.Record())
}

func init() {
	readCmd.Flags().IntVarP(&readPacket, "packet", "p", 0, "packet number, starting at 1 (required)")
	readCmd.MarkFlagRequired("packet")
	rootCmd.AddCommand(readCmd)
}
