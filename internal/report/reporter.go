// Package report delivers scan results to a sink.
package report

import (
	"context"
	"fmt"
	"io"

	"firestige.xyz/pcapnote/internal/config"
	"firestige.xyz/pcapnote/internal/packet"
)

// Operation names the mode a record came from.
type Operation string

const (
	OpRead     Operation = "read"
	OpAdd      Operation = "add"
	OpValidate Operation = "validate"
)

// Record is one result of a run. For read mode its JSON form keeps the
// {"packet_number": "<n>", "comment": <text|null>} shape.
type Record struct {
	Op           Operation       `json:"op" yaml:"op"`
	PacketNumber string          `json:"packet_number" yaml:"packet_number"`
	Comment      *string         `json:"comment" yaml:"comment"`
	Packet       *packet.Summary `json:"packet,omitempty" yaml:"packet,omitempty"`
	Output       string          `json:"output,omitempty" yaml:"output,omitempty"`
	Success      *bool           `json:"success,omitempty" yaml:"success,omitempty"`
	OutOfRange   bool            `json:"out_of_range,omitempty" yaml:"out_of_range,omitempty"`
	PacketsSeen  int             `json:"packets_seen" yaml:"packets_seen"`
	Stopped      string          `json:"stopped,omitempty" yaml:"stopped,omitempty"`
	Error        string          `json:"error,omitempty" yaml:"error,omitempty"`

	// Blocks is the per-kind inventory of a validate run.
	Blocks map[string]int `json:"blocks,omitempty" yaml:"blocks,omitempty"`
	// Comments counts enhanced packets carrying a comment (validate only).
	Comments int `json:"comments,omitempty" yaml:"comments,omitempty"`
}

// Reporter delivers records to a sink.
type Reporter interface {
	Name() string
	Report(ctx context.Context, rec *Record) error
	Close() error
}

// New builds the reporter selected by cfg. Console output goes to stdout.
func New(cfg config.ReportConfig, stdout io.Writer) (Reporter, error) {
	switch cfg.Sink {
	case "", "console":
		r, err := NewConsoleReporter(stdout, cfg.Format)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "kafka":
		r, err := NewKafkaReporter(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown report sink: %s", cfg.Sink)
	}
}

// Succeeded returns a *bool for Record.Success.
func Succeeded(ok bool) *bool { return &ok }
