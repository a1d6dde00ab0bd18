package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"firestige.xyz/pcapnote/internal/comment"
)

var (
	addPacket  int
	addComment string
	addOutput  string
)

var addCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Set the comment of one packet and save a copy",
	Long: `Set the comment of an Enhanced Packet block and write the result to a
new file. An existing comment is replaced; every other block is copied byte
for byte.

Without --output the copy is written next to the input with the extension
replaced by output.suffix (default comment_added.pcapng).

Examples:
  pcapnote add capture.pcapng -p 3 -m "retransmit"     # capture.comment_added.pcapng
  pcapnote add capture.pcapng -p 3 -m "x" -o out.pcapng`,
	Args: cobra.ExactArgs(1),
	RunE: withSession(func(ctx context.Context, s *session, args []string) error {
		return runAdd(ctx, s, args[0], addPacket, addComment, addOutput)
	}),
}

func runAdd(ctx context.Context, s *session, path string, packet int, text, output string) error {
	if err := checkInput(path); err != nil {
		return err
	}
	if output == "" {
		output = comment.DefaultOutputPath(path, s.cfg.Output.Suffix)
	}
	if same, err := samePath(path, output); err != nil {
		return err
	} else if same {
		return fmt.Errorf("output %s would overwrite the input", output)
	}

	res, err := s.scanner.AddFile(ctx, path, output, packet, text)
	if err != nil {
		return fmt.Errorf("failed to add comment to %s: %w", path, err)
	}
	return s.report(ctx, res.Record())
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return absA == absB, nil
}

func init() {
	addCmd.Flags().IntVarP(&addPacket, "packet", "p", 0, "packet number, starting at 1 (required)")
	addCmd.Flags().StringVarP(&addComment, "comment", "m", "", "comment text (required)")
	addCmd.Flags().StringVarP(&addOutput, "output", "o", "", "output file (default derived from the input name)")
	addCmd.MarkFlagRequired("packet")
	addCmd.MarkFlagRequired("comment")
	rootCmd.AddCommand(addCmd)
}
