package pcapng

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Reader pulls blocks one at a time from a pcapng stream. Only the current
// block's body is held in memory.
type Reader struct {
	r   *bufio.Reader
	off int64

	// OnAnomaly, when set, is told about irregularities the reader tolerates,
	// such as a trailing length that does not repeat the leading one.
	OnAnomaly AnomalyFunc
}

// NewReader returns a Reader reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Offset returns the stream position of the next block.
func (r *Reader) Offset() int64 {
	return r.off
}

// Next reads the next block. It returns io.EOF when the stream ends cleanly
// on a block boundary, and a *StructuralError when the next block cannot be
// parsed. After an error the Reader must not be used again.
func (r *Reader) Next() (*Block, error) {
	start := r.off
	var word [4]byte

	n, err := io.ReadFull(r.r, word[:])
	r.off += int64(n)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, r.fail(start, 0, ErrTruncated)
	}
	t := BlockType(binary.LittleEndian.Uint32(word[:]))
	kind := Classify(t)
	if kind == KindUnknown {
		return nil, r.fail(start, t, ErrUnknownBlockType)
	}

	n, err = io.ReadFull(r.r, word[:])
	r.off += int64(n)
	if err != nil {
		return nil, r.fail(start, t, ErrTruncated)
	}
	length := int32(binary.LittleEndian.Uint32(word[:]))
	if length < MinBlockLength || length%4 != 0 {
		return nil, r.fail(start, t, fmt.Errorf("%w: %d", ErrBadLength, length))
	}

	body, err := r.readBody(int64(length) - blockOverhead)
	if err != nil {
		return nil, r.fail(start, t, ErrTruncated)
	}

	n, err = io.ReadFull(r.r, word[:])
	r.off += int64(n)
	if err != nil {
		return nil, r.fail(start, t, ErrTruncated)
	}
	if trailer := binary.LittleEndian.Uint32(word[:]); trailer != uint32(length) {
		r.OnAnomaly.report(start, "trailing length %d differs from leading length %d", trailer, length)
	}

	return &Block{
		Type:   t,
		Kind:   kind,
		Length: uint32(length),
		Body:   body,
		Offset: start,
	}, nil
}

// readBody reads exactly n bytes. The buffer grows with the data actually
// read, so a bogus length on a short stream does not allocate up front.
func (r *Reader) readBody(n int64) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	var buf bytes.Buffer
	copied, err := io.CopyN(&buf, r.r, n)
	r.off += copied
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Reader) fail(offset int64, t BlockType, err error) error {
	return &StructuralError{Offset: offset, Type: t, Err: err}
}
