// Package packet decodes the captured bytes of a single packet for display.
package packet

import (
	"fmt"
	"math"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Summary describes the decoded layers of one captured frame.
type Summary struct {
	LinkType string   `json:"link_type" yaml:"link_type"`
	Layers   []string `json:"layers" yaml:"layers"`
	// Error is set when decoding stopped on a layer gopacket could not parse.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summarize decodes data as a frame of the given pcapng link type.
// Link types outside gopacket's 8-bit range are reported without layers.
func Summarize(data []byte, linkType uint16) Summary {
	if linkType > math.MaxUint8 {
		return Summary{
			LinkType: fmt.Sprintf("LinkType(%d)", linkType),
			Error:    "link type not supported by decoder",
		}
	}
	lt := layers.LinkType(linkType)
	s := Summary{LinkType: lt.String()}

	p := gopacket.NewPacket(data, lt, gopacket.DecodeOptions{Lazy: false, NoCopy: true})
	for _, layer := range p.Layers() {
		s.Layers = append(s.Layers, layer.LayerType().String())
	}
	if fail := p.ErrorLayer(); fail != nil {
		s.Error = fail.Error().Error()
	}
	return s
}
