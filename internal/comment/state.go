// Package comment drives a pcapng scan: it enforces block ordering, numbers
// enhanced packets and hands the targeted one to the option editor.
package comment

import (
	"errors"
	"fmt"

	"firestige.xyz/pcapnote/internal/pcapng"
)

// Phase is the position of a scan in its lifecycle.
type Phase int

const (
	PhaseAwaitingSection Phase = iota
	PhaseScanning
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingSection:
		return "awaiting_section"
	case PhaseScanning:
		return "scanning"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

var (
	sectionStart = []pcapng.Kind{pcapng.KindSectionHeader}
	sectionBody  = []pcapng.Kind{
		pcapng.KindSectionHeader,
		pcapng.KindInterfaceDescription,
		pcapng.KindPacket,
		pcapng.KindSimplePacket,
		pcapng.KindNameResolution,
		pcapng.KindInterfaceStatistics,
		pcapng.KindEnhancedPacket,
		pcapng.KindTimestampExt,
		pcapng.KindInfoExt,
	}
)

// Accepts lists the block kinds allowed next in phase p.
func (p Phase) Accepts() []pcapng.Kind {
	switch p {
	case PhaseAwaitingSection:
		return sectionStart
	case PhaseScanning:
		return sectionBody
	default:
		return nil
	}
}

// State is the driver state carried from one block to the next.
type State struct {
	Phase Phase
	// Packets counts the enhanced packet blocks accepted so far.
	Packets int
}

// ErrScanDone is returned by Step once the scan has ended.
var ErrScanDone = errors.New("scan already finished")

// OrderingError reports a block that is not allowed where it appears.
type OrderingError struct {
	Offset int64
	Kind   pcapng.Kind
	Phase  Phase
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("at offset %d: %s block not allowed while %s", e.Offset, e.Kind, e.Phase)
}

// Step advances s by one block of the given kind. ordinal is the 1-based
// number of the block when it is an enhanced packet and 0 otherwise. A
// rejected block moves the scan to PhaseDone and yields an *OrderingError
// whose Offset the caller fills in.
func Step(s State, kind pcapng.Kind) (next State, ordinal int, err error) {
	if s.Phase == PhaseDone {
		return s, 0, ErrScanDone
	}
	if !kind.In(s.Phase.Accepts()) {
		return State{Phase: PhaseDone, Packets: s.Packets}, 0, &OrderingError{Kind: kind, Phase: s.Phase}
	}
	next = State{Phase: PhaseScanning, Packets: s.Packets}
	if kind == pcapng.KindEnhancedPacket {
		next.Packets++
		ordinal = next.Packets
	}
	return next, ordinal, nil
}

// Finish ends the scan.
func (s State) Finish() State {
	return State{Phase: PhaseDone, Packets: s.Packets}
}
