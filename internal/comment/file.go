package comment

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultOutputPath names the add-mode output next to input: the extension
// is replaced by suffix, so a.pcapng becomes a.comment_added.pcapng.
func DefaultOutputPath(input, suffix string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + "." + strings.TrimPrefix(suffix, ".")
}

// ReadFile runs Read over the file at path.
func (s *Scanner) ReadFile(ctx context.Context, path string, target int) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return s.Read(ctx, f, target)
}

// ValidateFile runs Validate over the file at path.
func (s *Scanner) ValidateFile(ctx context.Context, path string) (*Inventory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return s.Validate(ctx, f)
}

// AddFile runs Add from input into output. The stream is written to a
// temporary file in the output directory and renamed into place once the
// scan has finished, so an interrupted run leaves no partial output.
func (s *Scanner) AddFile(ctx context.Context, input, output string, target int, comment string) (res *AddResult, err error) {
	in, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".*")
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	buf := bufio.NewWriter(tmp)
	res, err = s.Add(ctx, in, buf, target, comment)
	if err != nil {
		return nil, err
	}
	if err = buf.Flush(); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return nil, fmt.Errorf("close output: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return nil, fmt.Errorf("chmod output: %w", err)
	}
	if err = os.Rename(tmp.Name(), output); err != nil {
		return nil, fmt.Errorf("rename output: %w", err)
	}
	res.Output = output
	s.logger.WithField("output", output).Debug("output renamed into place")
	return res, nil
}
