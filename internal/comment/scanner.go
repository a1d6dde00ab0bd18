package comment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"firestige.xyz/pcapnote/internal/log"
	"firestige.xyz/pcapnote/internal/metrics"
	"firestige.xyz/pcapnote/internal/packet"
	"firestige.xyz/pcapnote/internal/pcapng"
	"firestige.xyz/pcapnote/internal/report"
)

// ErrInvalidTarget is returned for packet numbers below 1.
var ErrInvalidTarget = errors.New("packet number must be at least 1")

// Scanner streams a pcapng file block by block through the ordering rules.
// A Scanner is not safe for concurrent use.
type Scanner struct {
	// Metrics receives counters for the scan. Nil disables them.
	Metrics *metrics.Recorder
	// Summarize decodes the layers of the target packet in read mode.
	Summarize bool

	logger log.Logger
	editor pcapng.Editor
}

// NewScanner creates a Scanner that logs through the global logger.
func NewScanner(rec *metrics.Recorder, summarize bool) *Scanner {
	s := &Scanner{
		Metrics:   rec,
		Summarize: summarize,
		logger:    log.GetLogger(),
	}
	s.editor = pcapng.Editor{OnAnomaly: s.anomaly}
	return s
}

// Outcome describes how a scan ended.
type Outcome struct {
	// Packets is the number of enhanced packet blocks accepted.
	Packets int
	Blocks  map[pcapng.Kind]int
	// Stop is the structural or ordering error that ended the scan before
	// the end of the stream. It is nil after a clean end.
	Stop error
}

func (o *Outcome) stopText() string {
	if o.Stop == nil {
		return ""
	}
	return o.Stop.Error()
}

// visitFunc sees every accepted block. ordinal is set for enhanced packets;
// links holds the link type of each interface of the current section.
type visitFunc func(b *pcapng.Block, ordinal int, links []uint16) error

// scan drives the state machine over r. Structural and ordering failures end
// the scan and land in Outcome.Stop; the returned error is reserved for
// cancellation and failures of visit.
func (s *Scanner) scan(ctx context.Context, r io.Reader, visit visitFunc) (Outcome, error) {
	out := Outcome{Blocks: make(map[pcapng.Kind]int)}
	reader := pcapng.NewReader(r)
	reader.OnAnomaly = s.anomaly

	var (
		state State
		links []uint16
	)
	for {
		if err := ctx.Err(); err != nil {
			s.Metrics.ObserveStop("canceled")
			return out, err
		}

		b, err := reader.Next()
		if err == io.EOF {
			s.Metrics.ObserveStop("eof")
			break
		}
		if err != nil {
			out.Stop = err
			s.Metrics.ObserveStop("structural")
			s.logger.WithError(err).Warn("scan stopped on malformed block")
			break
		}

		next, ordinal, err := Step(state, b.Kind)
		if err != nil {
			var oe *OrderingError
			if errors.As(err, &oe) {
				oe.Offset = b.Offset
			}
			out.Stop = err
			s.Metrics.ObserveStop("ordering")
			s.logger.WithError(err).Warn("scan stopped on misplaced block")
			break
		}
		state = next

		out.Blocks[b.Kind]++
		s.Metrics.ObserveBlock(b.Kind.String())
		switch b.Kind {
		case pcapng.KindSectionHeader:
			links = links[:0]
		case pcapng.KindInterfaceDescription:
			idb, err := b.InterfaceDescription()
			if err != nil {
				s.anomaly(pcapng.Anomaly{Offset: b.Offset, Reason: err.Error()})
			}
			// Keep the slot even for a short body so interface IDs stay aligned.
			links = append(links, idb.LinkType)
		case pcapng.KindEnhancedPacket:
			s.Metrics.ObservePacket()
		}

		if s.logger.IsTraceEnabled() {
			s.logger.WithFields(map[string]interface{}{
				"offset": b.Offset,
				"kind":   b.Kind.String(),
				"length": b.Length,
			}).Trace("block")
		}

		if err := visit(b, ordinal, links); err != nil {
			return out, err
		}
	}

	state = state.Finish()
	out.Packets = state.Packets
	return out, nil
}

func (s *Scanner) anomaly(a pcapng.Anomaly) {
	s.Metrics.ObserveAnomaly()
	s.logger.WithField("offset", a.Offset).Warn(a.Reason)
}

// ReadResult is the outcome of a read scan.
type ReadResult struct {
	Outcome
	Target int
	// Comment is nil when the target packet has no comment.
	Comment *string
	Packet  *packet.Summary
	// Err is set when the target's comment could not be decoded.
	Err error
}

// OutOfRange reports whether the scan ended before the target packet.
func (r *ReadResult) OutOfRange() bool {
	return r.Packets < r.Target
}

// Record converts r into a report record.
func (r *ReadResult) Record() *report.Record {
	rec := &report.Record{
		Op:           report.OpRead,
		PacketNumber: strconv.Itoa(r.Target),
		Comment:      r.Comment,
		Packet:       r.Packet,
		OutOfRange:   r.OutOfRange(),
		PacketsSeen:  r.Packets,
		Stopped:      r.stopText(),
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}

// Read scans r and extracts the comment of enhanced packet number target.
func (s *Scanner) Read(ctx context.Context, r io.Reader, target int) (*ReadResult, error) {
	if target < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTarget, target)
	}
	res := &ReadResult{Target: target}
	out, err := s.scan(ctx, r, func(b *pcapng.Block, ordinal int, links []uint16) error {
		if ordinal != target {
			return nil
		}
		s.inspect(res, b, links)
		return nil
	})
	res.Outcome = out
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Scanner) inspect(res *ReadResult, b *pcapng.Block, links []uint16) {
	text, found, err := s.editor.FindComment(b)
	switch {
	case err != nil:
		res.Err = err
		s.Metrics.ObserveComment("failed")
		s.logger.WithError(err).WithField("packet", res.Target).Warn("cannot read comment")
	case found:
		res.Comment = &text
		s.Metrics.ObserveComment("found")
	default:
		s.Metrics.ObserveComment("absent")
	}

	if !s.Summarize {
		return
	}
	pkt, err := b.EnhancedPacket()
	if err != nil {
		return
	}
	if int(pkt.InterfaceID) >= len(links) {
		s.logger.WithField("packet", res.Target).Debugf("interface %d has no description, skipping decode", pkt.InterfaceID)
		return
	}
	sum := packet.Summarize(pkt.Data, links[pkt.InterfaceID])
	res.Packet = &sum
}

// AddResult is the outcome of an add scan.
type AddResult struct {
	Outcome
	Target  int
	Comment string
	// Output is the path the rewritten stream was saved to, when known.
	Output string
	// Replaced is true when the target already carried a comment.
	Replaced bool
	// Edited is true when the target block was rewritten.
	Edited bool
	// Err is set when the target block could not be edited.
	Err error
}

// OutOfRange reports whether the scan ended before the target packet.
func (r *AddResult) OutOfRange() bool {
	return r.Packets < r.Target
}

// Record converts r into a report record.
func (r *AddResult) Record() *report.Record {
	comment := r.Comment
	rec := &report.Record{
		Op:           report.OpAdd,
		PacketNumber: strconv.Itoa(r.Target),
		Comment:      &comment,
		Output:       r.Output,
		Success:      report.Succeeded(r.Edited),
		OutOfRange:   r.OutOfRange(),
		PacketsSeen:  r.Packets,
		Stopped:      r.stopText(),
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}

// Add copies r to w, setting the comment of enhanced packet number target.
// Every other block is written unchanged. Blocks accepted before a
// structural or ordering failure are still written.
func (s *Scanner) Add(ctx context.Context, r io.Reader, w io.Writer, target int, comment string) (*AddResult, error) {
	if target < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTarget, target)
	}
	if err := pcapng.ValidateComment(comment); err != nil {
		return nil, err
	}

	res := &AddResult{Target: target, Comment: comment}
	pw := pcapng.NewWriter(w)
	out, err := s.scan(ctx, r, func(b *pcapng.Block, ordinal int, _ []uint16) error {
		if ordinal == target {
			b = s.edit(res, b)
		}
		return pw.WriteBlock(b)
	})
	res.Outcome = out
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(map[string]interface{}{
		"packet":  target,
		"edited":  res.Edited,
		"written": pw.Written(),
	}).Debug("add scan finished")
	return res, nil
}

// edit returns the block to write in place of b.
func (s *Scanner) edit(res *AddResult, b *pcapng.Block) *pcapng.Block {
	_, found, err := s.editor.FindComment(b)
	res.Replaced = found || errors.Is(err, pcapng.ErrInvalidUTF8)
	edited, err := s.editor.UpsertComment(b, res.Comment)
	if err != nil {
		res.Err = err
		s.Metrics.ObserveComment("failed")
		s.logger.WithError(err).WithField("packet", res.Target).Warn("cannot set comment, block copied unchanged")
		return b
	}
	res.Edited = true
	if res.Replaced {
		s.Metrics.ObserveComment("replaced")
	} else {
		s.Metrics.ObserveComment("inserted")
	}
	return edited
}

// Inventory is the outcome of a validate scan.
type Inventory struct {
	Outcome
	// Comments counts enhanced packets carrying a readable comment.
	Comments int
	// Undecodable counts comments that are not valid UTF-8.
	Undecodable int
}

// Record converts inv into a report record.
func (inv *Inventory) Record() *report.Record {
	blocks := make(map[string]int, len(inv.Blocks))
	for kind, n := range inv.Blocks {
		blocks[kind.String()] = n
	}
	rec := &report.Record{
		Op:          report.OpValidate,
		PacketsSeen: inv.Packets,
		Stopped:     inv.stopText(),
		Blocks:      blocks,
		Comments:    inv.Comments,
	}
	if inv.Undecodable > 0 {
		rec.Error = fmt.Sprintf("%d comments are not valid utf-8", inv.Undecodable)
	}
	return rec
}

// Validate scans r without modifying anything and counts what it finds.
func (s *Scanner) Validate(ctx context.Context, r io.Reader) (*Inventory, error) {
	inv := &Inventory{}
	out, err := s.scan(ctx, r, func(b *pcapng.Block, ordinal int, _ []uint16) error {
		if ordinal == 0 {
			return nil
		}
		_, found, err := s.editor.FindComment(b)
		switch {
		case errors.Is(err, pcapng.ErrInvalidUTF8):
			inv.Undecodable++
		case err != nil:
			s.anomaly(pcapng.Anomaly{Offset: b.Offset, Reason: err.Error()})
		case found:
			inv.Comments++
		}
		return nil
	})
	inv.Outcome = out
	if err != nil {
		return nil, err
	}
	return inv, nil
}
