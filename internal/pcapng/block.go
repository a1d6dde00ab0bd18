// Package pcapng implements a streaming codec for pcapng blocks and the
// option lists carried by Enhanced Packet blocks.
package pcapng

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// BlockType is the raw 4-byte block type tag, read little-endian.
// The Section Header tag is a byte palindrome (\n\r\r\n), so it reads the
// same in either byte order.
type BlockType uint32

const (
	SectionHeaderBlockType        BlockType = 0x0A0D0D0A
	InterfaceDescriptionBlockType BlockType = 0x00000001
	PacketBlockType               BlockType = 0x00000002 // obsolete
	SimplePacketBlockType         BlockType = 0x00000003
	NameResolutionBlockType       BlockType = 0x00000004
	InterfaceStatisticsBlockType  BlockType = 0x00000005
	EnhancedPacketBlockType       BlockType = 0x00000006
	TimestampExtBlockType         BlockType = 0x00000007
	InfoExtBlockType              BlockType = 0x00000008
)

const (
	// blockOverhead is type + leading length + trailing length.
	blockOverhead = 12
	// MinBlockLength is the smallest legal total block length.
	MinBlockLength = blockOverhead
)

// Kind is the closed classification of a block type tag.
type Kind int

const (
	KindUnknown Kind = iota
	KindSectionHeader
	KindInterfaceDescription
	KindPacket
	KindSimplePacket
	KindNameResolution
	KindInterfaceStatistics
	KindEnhancedPacket
	KindTimestampExt
	KindInfoExt
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown",
	KindSectionHeader:        "section_header",
	KindInterfaceDescription: "interface_description",
	KindPacket:               "packet",
	KindSimplePacket:         "simple_packet",
	KindNameResolution:       "name_resolution",
	KindInterfaceStatistics:  "interface_statistics",
	KindEnhancedPacket:       "enhanced_packet",
	KindTimestampExt:         "timestamp_ext",
	KindInfoExt:              "info_ext",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// In reports whether k is one of the given kinds.
func (k Kind) In(kinds []Kind) bool {
	for _, allowed := range kinds {
		if k == allowed {
			return true
		}
	}
	return false
}

// Classify maps a type tag to its Kind. Unrecognised tags yield KindUnknown.
func Classify(t BlockType) Kind {
	switch t {
	case SectionHeaderBlockType:
		return KindSectionHeader
	case InterfaceDescriptionBlockType:
		return KindInterfaceDescription
	case PacketBlockType:
		return KindPacket
	case SimplePacketBlockType:
		return KindSimplePacket
	case NameResolutionBlockType:
		return KindNameResolution
	case InterfaceStatisticsBlockType:
		return KindInterfaceStatistics
	case EnhancedPacketBlockType:
		return KindEnhancedPacket
	case TimestampExtBlockType:
		return KindTimestampExt
	case InfoExtBlockType:
		return KindInfoExt
	default:
		return KindUnknown
	}
}

// Block is one length-delimited unit of a pcapng stream.
type Block struct {
	Type BlockType
	Kind Kind
	// Length is the total block length, 12 + len(Body).
	Length uint32
	Body   []byte
	// Offset is the stream position of the block's first byte.
	Offset int64
}

// NewBlock builds a block of the given type around body.
func NewBlock(t BlockType, body []byte) *Block {
	return &Block{
		Type:   t,
		Kind:   Classify(t),
		Length: uint32(len(body) + blockOverhead),
		Body:   body,
	}
}

// withBody returns a copy of b carrying body and a recomputed length.
func (b *Block) withBody(body []byte) *Block {
	return &Block{
		Type:   b.Type,
		Kind:   b.Kind,
		Length: uint32(len(body) + blockOverhead),
		Body:   body,
		Offset: b.Offset,
	}
}

// MarshalBinary encodes the block in its on-disk layout. The trailing length
// always repeats the leading one.
func (b *Block) MarshalBinary() ([]byte, error) {
	if int(b.Length) != len(b.Body)+blockOverhead {
		return nil, fmt.Errorf("block length %d does not match body size %d", b.Length, len(b.Body))
	}
	buf := bytes.NewBuffer(make([]byte, 0, b.Length))
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], uint32(b.Type))
	buf.Write(word[:])
	binary.LittleEndian.PutUint32(word[:], b.Length)
	buf.Write(word[:])
	buf.Write(b.Body)
	buf.Write(word[:])
	return buf.Bytes(), nil
}

// InterfaceDescription is the fixed prefix of an Interface Description block.
type InterfaceDescription struct {
	LinkType uint16
	SnapLen  uint32
}

// InterfaceDescription decodes the fixed fields of an IDB body.
func (b *Block) InterfaceDescription() (InterfaceDescription, error) {
	if b.Kind != KindInterfaceDescription {
		return InterfaceDescription{}, fmt.Errorf("block is %s, not interface_description", b.Kind)
	}
	if len(b.Body) < 8 {
		return InterfaceDescription{}, fmt.Errorf("interface description body too short: %d bytes", len(b.Body))
	}
	return InterfaceDescription{
		LinkType: binary.LittleEndian.Uint16(b.Body[0:2]),
		SnapLen:  binary.LittleEndian.Uint32(b.Body[4:8]),
	}, nil
}
