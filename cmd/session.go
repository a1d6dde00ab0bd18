package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/pcapnote/internal/comment"
	"firestige.xyz/pcapnote/internal/config"
	"firestige.xyz/pcapnote/internal/log"
	"firestige.xyz/pcapnote/internal/metrics"
	"firestige.xyz/pcapnote/internal/report"
)

// session holds what one command run needs: configuration, the result sink,
// the metrics of the run and the scanner wired to both.
type session struct {
	cfg      *config.Config
	reporter report.Reporter
	metrics  *metrics.Recorder
	scanner  *comment.Scanner
}

// loadConfig merges the config file, environment and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("report") {
		cfg.Report.Sink = reportSink
	}
	if flags.Changed("format") {
		cfg.Report.Format = reportFormat
	}
	if flags.Changed("metrics-textfile") {
		cfg.Metrics.Textfile = metricsTextfile
	}

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// openSession initializes logging before anything that captures the logger.
func openSession(cfg *config.Config, stdout io.Writer) (*session, error) {
	if err := log.Init(&cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	rep, err := report.New(cfg.Report, stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to create reporter: %w", err)
	}
	rec := metrics.NewRecorder()
	return &session{
		cfg:      cfg,
		reporter: rep,
		metrics:  rec,
		scanner:  comment.NewScanner(rec, cfg.Decode.Summary),
	}, nil
}

// Close flushes the reporter and writes the metrics text file.
func (s *session) Close() error {
	var errs []error
	if err := s.reporter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s reporter: %w", s.reporter.Name(), err))
	}
	if err := s.metrics.WriteTextfile(s.cfg.Metrics.Textfile); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *session) report(ctx context.Context, rec *report.Record) error {
	if err := s.reporter.Report(ctx, rec); err != nil {
		return fmt.Errorf("failed to report result: %w", err)
	}
	return nil
}

// withSession adapts a run function to cobra's RunE.
func withSession(run func(ctx context.Context, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		s, err := openSession(cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, s.Close())
		}()
		return run(cmd.Context(), s, args)
	}
}

// checkInput fails early for inputs that cannot be scanned.
func checkInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input file: %s is a directory", path)
	}
	return nil
}
