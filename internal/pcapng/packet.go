package pcapng

import (
	"encoding/binary"
	"fmt"
)

// enhancedPacketHeaderLen covers interface id, timestamp (high, low),
// captured length and original length.
const enhancedPacketHeaderLen = 20

// EnhancedPacket is the decoded fixed part of an Enhanced Packet block.
type EnhancedPacket struct {
	InterfaceID   uint32
	TimestampHigh uint32
	TimestampLow  uint32
	CapturedLen   uint32
	OriginalLen   uint32
	// Data is the captured packet, without padding. It aliases the block body.
	Data []byte

	optionStart int
}

// EnhancedPacket decodes the fixed header of an EPB and locates its option area.
func (b *Block) EnhancedPacket() (*EnhancedPacket, error) {
	if b.Kind != KindEnhancedPacket {
		return nil, fmt.Errorf("block at offset %d is %s: %w", b.Offset, b.Kind, ErrNotEnhancedPacket)
	}
	body := b.Body
	if len(body) < enhancedPacketHeaderLen {
		return nil, fmt.Errorf("block at offset %d: body of %d bytes has no room for packet header: %w",
			b.Offset, len(body), ErrMalformedPacket)
	}
	p := &EnhancedPacket{
		InterfaceID:   binary.LittleEndian.Uint32(body[0:4]),
		TimestampHigh: binary.LittleEndian.Uint32(body[4:8]),
		TimestampLow:  binary.LittleEndian.Uint32(body[8:12]),
		CapturedLen:   binary.LittleEndian.Uint32(body[12:16]),
		OriginalLen:   binary.LittleEndian.Uint32(body[16:20]),
	}
	start := int64(enhancedPacketHeaderLen) + align4(int64(p.CapturedLen))
	if start > int64(len(body)) {
		return nil, fmt.Errorf("block at offset %d: captured length %d overruns body of %d bytes: %w",
			b.Offset, p.CapturedLen, len(body), ErrMalformedPacket)
	}
	p.optionStart = int(start)
	p.Data = body[enhancedPacketHeaderLen : enhancedPacketHeaderLen+int(p.CapturedLen)]
	return p, nil
}

// Timestamp returns the raw 64-bit timestamp in interface resolution units.
func (p *EnhancedPacket) Timestamp() uint64 {
	return uint64(p.TimestampHigh)<<32 | uint64(p.TimestampLow)
}

func align4(n int64) int64 {
	return (n + 3) &^ 3
}
