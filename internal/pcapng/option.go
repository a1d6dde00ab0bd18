package pcapng

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

const (
	// OptionCodeEnd terminates an option list.
	OptionCodeEnd uint16 = 0
	// OptionCodeComment carries a UTF-8 comment.
	OptionCodeComment uint16 = 1

	optionHeaderLen = 4
	maxOptionValue  = math.MaxUint16
)

// endOfOptions is the 4-byte opt_endofopt record.
var endOfOptions = []byte{0, 0, 0, 0}

// Option is one record of an option list.
type Option struct {
	Code   uint16
	Length uint16
	// Value holds Length bytes, or fewer if the record overruns the block.
	Value []byte
}

// rawOption is a view of one record as it sits in the body, padding included.
type rawOption struct {
	code    uint16
	length  uint16
	offset  int
	raw     []byte
	overrun bool
}

func (o rawOption) value() []byte {
	v := o.raw[optionHeaderLen:]
	if int(o.length) < len(v) {
		v = v[:o.length]
	}
	return v
}

// optionIter walks an option area without copying. Fewer than 4 bytes left
// ends the walk.
type optionIter struct {
	body []byte
	pos  int
}

func (it *optionIter) next() (rawOption, bool) {
	if len(it.body)-it.pos < optionHeaderLen {
		return rawOption{}, false
	}
	o := rawOption{
		code:   binary.LittleEndian.Uint16(it.body[it.pos:]),
		length: binary.LittleEndian.Uint16(it.body[it.pos+2:]),
		offset: it.pos,
	}
	end := it.pos + optionHeaderLen + int(align4(int64(o.length)))
	if end > len(it.body) {
		o.overrun = true
		end = len(it.body)
	}
	o.raw = it.body[it.pos:end]
	it.pos = end
	return o, true
}

// Editor reads and rewrites options of Enhanced Packet blocks.
type Editor struct {
	// OnAnomaly, when set, is told about option records whose declared
	// length runs past the end of the block. Such records are kept verbatim.
	OnAnomaly AnomalyFunc
}

// UpsertComment returns a copy of b whose option list carries comment as its
// comment option. Existing comment options are replaced in place; when there
// is none, the comment goes in front of the end-of-options record, or is
// appended together with one when the list is empty. Every other option is
// copied byte for byte. b itself is not modified.
func (e Editor) UpsertComment(b *Block, comment string) (*Block, error) {
	pkt, err := b.EnhancedPacket()
	if err != nil {
		return nil, err
	}
	opt, err := commentOption(comment)
	if err != nil {
		return nil, err
	}

	body := make([]byte, 0, len(b.Body)+len(opt)+len(endOfOptions))
	body = append(body, b.Body[:pkt.optionStart]...)

	handled := false
	it := optionIter{body: b.Body, pos: pkt.optionStart}
	for {
		o, ok := it.next()
		if !ok {
			break
		}
		e.checkOverrun(b, o)
		switch {
		case o.code == OptionCodeComment:
			body = append(body, opt...)
			handled = true
		case o.code == OptionCodeEnd && !handled:
			body = append(body, opt...)
			body = append(body, o.raw...)
			handled = true
		default:
			body = append(body, o.raw...)
		}
	}
	if !handled {
		body = append(body, opt...)
		body = append(body, endOfOptions...)
	}

	if len(body)+blockOverhead > math.MaxInt32 {
		return nil, fmt.Errorf("block at offset %d: %w: block would exceed maximum length", b.Offset, ErrCommentTooLong)
	}
	return b.withBody(body), nil
}

// FindComment returns the text of the first comment option of b with
// trailing NUL bytes removed. The walk stops at the end-of-options record.
// A comment that is not valid UTF-8 yields a *DecodeError.
func (e Editor) FindComment(b *Block) (string, bool, error) {
	pkt, err := b.EnhancedPacket()
	if err != nil {
		return "", false, err
	}
	it := optionIter{body: b.Body, pos: pkt.optionStart}
	for {
		o, ok := it.next()
		if !ok || o.code == OptionCodeEnd {
			return "", false, nil
		}
		e.checkOverrun(b, o)
		if o.code != OptionCodeComment {
			continue
		}
		// Some writers store the padded size as the length, so take the whole
		// padded value and strip the NULs.
		text := bytes.TrimRight(o.raw[optionHeaderLen:], "\x00")
		if !utf8.Valid(text) {
			return "", false, &DecodeError{Offset: b.Offset, Raw: append([]byte(nil), text...)}
		}
		return string(text), true, nil
	}
}

// Options lists the option records of b up to the end-of-options record.
func (e Editor) Options(b *Block) ([]Option, error) {
	pkt, err := b.EnhancedPacket()
	if err != nil {
		return nil, err
	}
	var opts []Option
	it := optionIter{body: b.Body, pos: pkt.optionStart}
	for {
		o, ok := it.next()
		if !ok || o.code == OptionCodeEnd {
			return opts, nil
		}
		e.checkOverrun(b, o)
		opts = append(opts, Option{Code: o.code, Length: o.length, Value: o.value()})
	}
}

func (e Editor) checkOverrun(b *Block, o rawOption) {
	if o.overrun {
		e.OnAnomaly.report(b.Offset, "option code %d at body offset %d declares %d bytes, only %d present",
			o.code, o.offset, o.length, len(o.raw)-optionHeaderLen)
	}
}

// UpsertComment is Editor.UpsertComment without anomaly reporting.
func UpsertComment(b *Block, comment string) (*Block, error) {
	return Editor{}.UpsertComment(b, comment)
}

// FindComment is Editor.FindComment without anomaly reporting.
func FindComment(b *Block) (string, bool, error) {
	return Editor{}.FindComment(b)
}

// ValidateComment reports whether comment can be stored in a comment option.
func ValidateComment(comment string) error {
	if !utf8.ValidString(comment) {
		return fmt.Errorf("comment: %w", ErrInvalidUTF8)
	}
	if len(comment) > maxOptionValue {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrCommentTooLong, len(comment), maxOptionValue)
	}
	return nil
}

// commentOption encodes comment as a code 1 record. The length field holds
// the unpadded byte count; the value is zero padded to 32 bits.
func commentOption(comment string) ([]byte, error) {
	if err := ValidateComment(comment); err != nil {
		return nil, err
	}
	padded := int(align4(int64(len(comment))))
	opt := make([]byte, optionHeaderLen+padded)
	binary.LittleEndian.PutUint16(opt[0:2], OptionCodeComment)
	binary.LittleEndian.PutUint16(opt[2:4], uint16(len(comment)))
	copy(opt[optionHeaderLen:], comment)
	return opt, nil
}
