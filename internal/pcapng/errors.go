package pcapng

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownBlockType is returned for a type tag outside the known set.
	ErrUnknownBlockType = errors.New("unknown block type")
	// ErrBadLength is returned when a total length is below 12 or not 32-bit aligned.
	ErrBadLength = errors.New("invalid block length")
	// ErrTruncated is returned when the stream ends inside a block.
	ErrTruncated = errors.New("truncated block")

	// ErrNotEnhancedPacket is returned by option operations on other block kinds.
	ErrNotEnhancedPacket = errors.New("not an enhanced packet block")
	// ErrMalformedPacket is returned when an enhanced packet body cannot hold
	// its fixed header and captured data.
	ErrMalformedPacket = errors.New("malformed enhanced packet block")
	// ErrCommentTooLong is returned when a comment does not fit a 16-bit option length.
	ErrCommentTooLong = errors.New("comment too long")
	// ErrInvalidUTF8 is returned for comment text that is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid utf-8")
)

// StructuralError reports the stream position where a block failed to parse.
type StructuralError struct {
	Offset int64
	Type   BlockType
	Err    error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("at offset %d (type 0x%08x): %s", e.Offset, uint32(e.Type), e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// DecodeError reports comment bytes that are not valid UTF-8.
type DecodeError struct {
	Offset int64
	Raw    []byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("comment in block at offset %d: %s", e.Offset, ErrInvalidUTF8)
}

func (e *DecodeError) Unwrap() error {
	return ErrInvalidUTF8
}

// Anomaly is a non-fatal irregularity found while parsing. Parsing continues
// permissively after an anomaly is reported.
type Anomaly struct {
	Offset int64
	Reason string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("at offset %d: %s", a.Offset, a.Reason)
}

// AnomalyFunc receives anomalies as they are found.
type AnomalyFunc func(Anomaly)

func (f AnomalyFunc) report(offset int64, format string, args ...interface{}) {
	if f == nil {
		return
	}
	f(Anomaly{Offset: offset, Reason: fmt.Sprintf(format, args...)})
}
