// Package pcapngtest builds raw pcapng byte streams for tests.
package pcapngtest

import (
	"bytes"
	"encoding/binary"
)

// Block encodes a block with the given little-endian type and body.
// The body is used as is, so callers control alignment.
func Block(blockType uint32, body []byte) []byte {
	length := uint32(len(body) + 12)
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, blockType)
	binary.Write(buf, binary.LittleEndian, length)
	buf.Write(body)
	binary.Write(buf, binary.LittleEndian, length)
	return buf.Bytes()
}

// SectionHeader encodes a minimal version 1.0 section header without options.
func SectionHeader() []byte {
	body := new(bytes.Buffer)
	binary.Write(body, binary.LittleEndian, uint32(0x1A2B3C4D))
	binary.Write(body, binary.LittleEndian, uint16(1))
	binary.Write(body, binary.LittleEndian, uint16(0))
	binary.Write(body, binary.LittleEndian, int64(-1))
	return Block(0x0A0D0D0A, body.Bytes())
}

// InterfaceDescription encodes an IDB for the given link type.
func InterfaceDescription(linkType uint16) []byte {
	body := new(bytes.Buffer)
	binary.Write(body, binary.LittleEndian, linkType)
	binary.Write(body, binary.LittleEndian, uint16(0))
	binary.Write(body, binary.LittleEndian, uint32(65535))
	return Block(1, body.Bytes())
}

// EnhancedPacketBody encodes an EPB body: header, padded data and the raw
// option bytes appended verbatim.
func EnhancedPacketBody(ifaceID uint32, data []byte, options ...[]byte) []byte {
	body := new(bytes.Buffer)
	binary.Write(body, binary.LittleEndian, ifaceID)
	binary.Write(body, binary.LittleEndian, uint32(0x0005A1B2))
	binary.Write(body, binary.LittleEndian, uint32(0x3C4D5E6F))
	binary.Write(body, binary.LittleEndian, uint32(len(data)))
	binary.Write(body, binary.LittleEndian, uint32(len(data)))
	body.Write(data)
	body.Write(make([]byte, Pad(len(data))))
	for _, opt := range options {
		body.Write(opt)
	}
	return body.Bytes()
}

// EnhancedPacket encodes a complete EPB on interface 0.
func EnhancedPacket(data []byte, options ...[]byte) []byte {
	return Block(6, EnhancedPacketBody(0, data, options...))
}

// Option encodes an option record with the true value length and zero padding.
func Option(code uint16, value []byte) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, code)
	binary.Write(buf, binary.LittleEndian, uint16(len(value)))
	buf.Write(value)
	buf.Write(make([]byte, Pad(len(value))))
	return buf.Bytes()
}

// Comment encodes a comment option.
func Comment(text string) []byte {
	return Option(1, []byte(text))
}

// EndOfOptions encodes the terminator record.
func EndOfOptions() []byte {
	return []byte{0, 0, 0, 0}
}

// File concatenates blocks.
func File(blocks ...[]byte) []byte {
	return bytes.Join(blocks, nil)
}

// Pad returns the number of zero bytes that align n to 32 bits.
func Pad(n int) int {
	return (4 - n%4) % 4
}
