// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile      string
	logLevel        string
	reportSink      string
	reportFormat    string
	metricsTextfile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pcapnote",
	Short: "pcapnote - read and write packet comments in pcapng captures",
	Long: `pcapnote reads and writes the comment option of Enhanced Packet blocks
in pcapng capture files.

Packets are numbered from 1 in file order, counting Enhanced Packet blocks
only. Files are streamed one block at a time; add mode writes a new file and
never touches the input.

Results are printed to stdout as json, yaml or text, or published to Kafka.
Logs go to stderr.`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it. Interrupts
// cancel the running scan between blocks.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags, each overriding its config file key
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&reportSink, "report", "r", "",
		"result sink: console or kafka")
	rootCmd.PersistentFlags().StringVarP(&reportFormat, "format", "f", "",
		"console format: json, yaml or text")
	rootCmd.PersistentFlags().StringVar(&metricsTextfile, "metrics-textfile", "",
		"write Prometheus metrics to this file when the command finishes")
}
