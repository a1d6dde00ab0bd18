package pcapng

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Writer emits blocks in their on-disk layout.
type Writer struct {
	w io.Writer
	n int64
}

// NewWriter returns a Writer writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Written returns the number of bytes written so far.
func (w *Writer) Written() int64 {
	return w.n
}

// WriteBlock writes b as type, length, body, length. The length written is
// recomputed from the body so both occurrences always agree with it.
func (w *Writer) WriteBlock(b *Block) error {
	length := uint32(len(b.Body) + blockOverhead)
	if b.Length != length {
		return fmt.Errorf("block at offset %d: declared length %d, body needs %d", b.Offset, b.Length, length)
	}

	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(b.Type))
	binary.LittleEndian.PutUint32(hdr[4:8], length)
	if err := w.write(hdr[:]); err != nil {
		return err
	}
	if err := w.write(b.Body); err != nil {
		return err
	}
	return w.write(hdr[4:8])
}

func (w *Writer) write(p []byte) error {
	n, err := w.w.Write(p)
	w.n += int64(n)
	if err != nil {
		return fmt.Errorf("write block: %w", err)
	}
	return nil
}
