package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// OutOfRangeMessage is printed when the requested packet does not exist.
const OutOfRangeMessage = "Out of range packet number"

// ConsoleReporter writes records to a terminal or pipe.
type ConsoleReporter struct {
	w             io.Writer
	format        string // "json", "yaml" or "text"
	reportedCount int
}

// NewConsoleReporter creates a console reporter. An empty format means json.
func NewConsoleReporter(w io.Writer, format string) (*ConsoleReporter, error) {
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "yaml" && format != "text" {
		return nil, fmt.Errorf("invalid format %q, must be json, yaml or text", format)
	}
	return &ConsoleReporter{w: w, format: format}, nil
}

// Name returns the sink name.
func (r *ConsoleReporter) Name() string {
	return "console"
}

// Report writes one record.
func (r *ConsoleReporter) Report(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("nil record")
	}
	var err error
	switch r.format {
	case "json":
		enc := json.NewEncoder(r.w)
		enc.SetEscapeHTML(false)
		err = enc.Encode(rec)
	case "yaml":
		if _, err = io.WriteString(r.w, "---\n"); err == nil {
			enc := yaml.NewEncoder(r.w)
			enc.SetIndent(2)
			if err = enc.Encode(rec); err == nil {
				err = enc.Close()
			}
		}
	default:
		_, err = io.WriteString(r.w, formatText(rec))
	}
	if err != nil {
		return fmt.Errorf("console report: %w", err)
	}
	r.reportedCount++
	return nil
}

// Close implements Reporter.
func (r *ConsoleReporter) Close() error {
	return nil
}

func formatText(rec *Record) string {
	var b strings.Builder
	switch rec.Op {
	case OpRead:
		switch {
		case rec.OutOfRange:
		case rec.Error != "":
			fmt.Fprintf(&b, "packet %s: error: %s\n", rec.PacketNumber, rec.Error)
		case rec.Comment == nil:
			fmt.Fprintf(&b, "packet %s: no comment\n", rec.PacketNumber)
		default:
			fmt.Fprintf(&b, "packet %s: %s\n", rec.PacketNumber, *rec.Comment)
		}
		if rec.Packet != nil {
			fmt.Fprintf(&b, "  link: %s layers: %s\n", rec.Packet.LinkType, strings.Join(rec.Packet.Layers, "/"))
		}
	case OpAdd:
		if rec.Error != "" {
			fmt.Fprintf(&b, "packet %s: error: %s\n", rec.PacketNumber, rec.Error)
		}
		if rec.Output != "" {
			fmt.Fprintf(&b, "File is saved as %s\n", rec.Output)
		}
	case OpValidate:
		kinds := make([]string, 0, len(rec.Blocks))
		for kind := range rec.Blocks {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Fprintf(&b, "%-24s %d\n", kind, rec.Blocks[kind])
		}
		fmt.Fprintf(&b, "%-24s %d\n", "packets", rec.PacketsSeen)
		fmt.Fprintf(&b, "%-24s %d\n", "comments", rec.Comments)
	}
	if rec.Stopped != "" {
		fmt.Fprintf(&b, "scan stopped early: %s\n", rec.Stopped)
	}
	if rec.OutOfRange {
		b.WriteString(OutOfRangeMessage + "\n")
	}
	return b.String()
}
