package comment

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pcapnote/internal/metrics"
	"firestige.xyz/pcapnote/internal/pcapng"
	"firestige.xyz/pcapnote/internal/pcapng/pcapngtest"
)

var (
	frame1 = []byte{0xde, 0xad, 0xbe, 0xef}
	frame2 = []byte{0x01, 0x02, 0x03, 0x04, 0x05}
)

// twoPackets is SHB, IDB, EPB(no options), EPB(comment "hello").
func twoPackets() []byte {
	return pcapngtest.File(
		pcapngtest.SectionHeader(),
		pcapngtest.InterfaceDescription(1),
		pcapngtest.EnhancedPacket(frame1),
		pcapngtest.EnhancedPacket(frame2, pcapngtest.Comment("hello"), pcapngtest.EndOfOptions()),
	)
}

func newTestScanner() (*Scanner, *metrics.Recorder) {
	rec := metrics.NewRecorder()
	return NewScanner(rec, true), rec
}

func TestScanner_ReadComment(t *testing.T) {
	s, rec := newTestScanner()

	res, err := s.Read(context.Background(), bytes.NewReader(twoPackets()), 2)
	require.NoError(t, err)
	require.NotNil(t, res.Comment)
	assert.Equal(t, "hello", *res.Comment)
	assert.Equal(t, 2, res.Packets)
	assert.False(t, res.OutOfRange())
	assert.NoError(t, res.Stop)
	assert.Equal(t, 1, res.Blocks[pcapng.KindSectionHeader])
	assert.Equal(t, 2, res.Blocks[pcapng.KindEnhancedPacket])

	r := res.Record()
	assert.Equal(t, "2", r.PacketNumber)
	assert.Equal(t, "hello", *r.Comment)

	assert.Equal(t, float64(2), testutil.ToFloat64(rec.PacketsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.CommentsTotal.WithLabelValues("found")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.ScanStopsTotal.WithLabelValues("eof")))
}

func TestScanner_ReadNoComment(t *testing.T) {
	s, _ := newTestScanner()

	res, err := s.Read(context.Background(), bytes.NewReader(twoPackets()), 1)
	require.NoError(t, err)
	assert.Nil(t, res.Comment)
	assert.Nil(t, res.Record().Comment)
	assert.NoError(t, res.Err)
}

func TestScanner_ReadSummary(t *testing.T) {
	eth := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55,
		0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb,
		0x88, 0xb5,
		0x01, 0x02,
	}
	file := pcapngtest.File(
		pcapngtest.SectionHeader(),
		pcapngtest.InterfaceDescription(1),
		pcapngtest.EnhancedPacket(eth),
	)
	s, _ := newTestScanner()

	res, err := s.Read(context.Background(), bytes.NewReader(file), 1)
	require.NoError(t, err)
	require.NotNil(t, res.Packet)
	assert.Equal(t, "Ethernet", res.Packet.LinkType)
	require.NotEmpty(t, res.Packet.Layers)
	assert.Equal(t, "Ethernet", res.Packet.Layers[0])
}

func TestScanner_ReadSummaryWithoutInterface(t *testing.T) {
	// Interface IDs are per section, so the IDB of the first section does
	// not describe packets of the second.
	file := pcapngtest.File(
		pcapngtest.SectionHeader(),
		pcapngtest.InterfaceDescription(1),
		pcapngtest.SectionHeader(),
		pcapngtest.EnhancedPacket(frame1),
	)
	s, _ := newTestScanner()

	res, err := s.Read(context.Background(), bytes.NewReader(file), 1)
	require.NoError(t, err)
	assert.Nil(t, res.Packet)
}

func TestScanner_ReadSummaryDisabled(t *testing.T) {
	s := NewScanner(nil, false)
	res, err := s.Read(context.Background(), bytes.NewReader(twoPackets()), 2)
	require.NoError(t, err)
	assert.Nil(t, res.Packet)
}

func TestScanner_ReadOutOfRange(t *testing.T) {
	s, _ := newTestScanner()

	res, err := s.Read(context.Background(), bytes.NewReader(twoPackets()), 5)
	require.NoError(t, err)
	assert.True(t, res.OutOfRange())
	assert.Equal(t, 2, res.Packets)
	assert.Nil(t, res.Comment)

	r := res.Record()
	assert.True(t, r.OutOfRange)
	assert.Equal(t, "5", r.PacketNumber)
}

func TestScanner_ReadInvalidUTF8(t *testing.T) {
	file := pcapngtest.File(
		pcapngtest.SectionHeader(),
		pcapngtest.EnhancedPacket(frame1, pcapngtest.Option(1, []byte{0xff, 0xfe}), pcapngtest.EndOfOptions()),
	)
	s, _ := newTestScanner()

	res, err := s.Read(context.Background(), bytes.NewReader(file), 1)
	require.NoError(t, err)
	var de *pcapng.DecodeError
	require.ErrorAs(t, res.Err, &de)
	assert.Nil(t, res.Comment)
	assert.NotEmpty(t, res.Record().Error)
}

func TestScanner_ReadInvalidTarget(t *testing.T) {
	s, _ := newTestScanner()
	_, err := s.Read(context.Background(), bytes.NewReader(twoPackets()), 0)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestScanner_OrderingStop(t *testing.T) {
	file := pcapngtest.File(
		pcapngtest.EnhancedPacket(frame1),
		pcapngtest.SectionHeader(),
	)
	s, rec := newTestScanner()

	res, err := s.Read(context.Background(), bytes.NewReader(file), 1)
	require.NoError(t, err)
	var oe *OrderingError
	require.ErrorAs(t, res.Stop, &oe)
	assert.Equal(t, int64(0), oe.Offset)
	assert.Equal(t, pcapng.KindEnhancedPacket, oe.Kind)
	assert.True(t, res.OutOfRange())
	assert.Equal(t, 0, res.Packets)
	assert.NotEmpty(t, res.Record().Stopped)
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.ScanStopsTotal.WithLabelValues("ordering")))
}

func TestScanner_StructuralStop(t *testing.T) {
	// SHB is 28 bytes and the EPB 48, so the bad block starts at 76.
	file := pcapngtest.File(
		pcapngtest.SectionHeader(),
		pcapngtest.EnhancedPacket(frame1, pcapngtest.Comment("kept"), pcapngtest.EndOfOptions()),
		pcapngtest.Block(0x99, make([]byte, 4)),
		pcapngtest.EnhancedPacket(frame2),
	)
	s, rec := newTestScanner()

	res, err := s.Read(context.Background(), bytes.NewReader(file), 1)
	require.NoError(t, err)
	require.NotNil(t, res.Comment)
	assert.Equal(t, "kept", *res.Comment)
	assert.Equal(t, 1, res.Packets)

	var se *pcapng.StructuralError
	require.ErrorAs(t, res.Stop, &se)
	assert.Equal(t, int64(76), se.Offset)
	assert.ErrorIs(t, res.Stop, pcapng.ErrUnknownBlockType)
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.ScanStopsTotal.WithLabelValues("structural")))
}

func TestScanner_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, _ := newTestScanner()

	_, err := s.Read(ctx, bytes.NewReader(twoPackets()), 1)
	assert.ErrorIs(t, err, context.Canceled)

	var out bytes.Buffer
	_, err = s.Add(ctx, bytes.NewReader(twoPackets()), &out, 1, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanner_AddInsertsComment(t *testing.T) {
	s, rec := newTestScanner()
	var out bytes.Buffer

	res, err := s.Add(context.Background(), bytes.NewReader(twoPackets()), &out, 1, "note")
	require.NoError(t, err)
	assert.True(t, res.Edited)
	assert.False(t, res.Replaced)
	assert.False(t, res.OutOfRange())

	want := pcapngtest.File(
		pcapngtest.SectionHeader(),
		pcapngtest.InterfaceDescription(1),
		pcapngtest.EnhancedPacket(frame1, pcapngtest.Comment("note"), pcapngtest.EndOfOptions()),
		pcapngtest.EnhancedPacket(frame2, pcapngtest.Comment("hello"), pcapngtest.EndOfOptions()),
	)
	assert.Equal(t, want, out.Bytes())
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.CommentsTotal.WithLabelValues("inserted")))

	r := res.Record()
	assert.Equal(t, "note", *r.Comment)
	require.NotNil(t, r.Success)
	assert.True(t, *r.Success)
}

func TestScanner_AddReplacesComment(t *testing.T) {
	s, rec := newTestScanner()
	var out bytes.Buffer

	res, err := s.Add(context.Background(), bytes.NewReader(twoPackets()), &out, 2, "a longer replacement")
	require.NoError(t, err)
	assert.True(t, res.Edited)
	assert.True(t, res.Replaced)

	want := pcapngtest.File(
		pcapngtest.SectionHeader(),
		pcapngtest.InterfaceDescription(1),
		pcapngtest.EnhancedPacket(frame1),
		pcapngtest.EnhancedPacket(frame2, pcapngtest.Comment("a longer replacement"), pcapngtest.EndOfOptions()),
	)
	assert.Equal(t, want, out.Bytes())
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.CommentsTotal.WithLabelValues("replaced")))

	// Reading the rewritten stream returns the new comment.
	back, err := s.Read(context.Background(), bytes.NewReader(out.Bytes()), 2)
	require.NoError(t, err)
	require.NotNil(t, back.Comment)
	assert.Equal(t, "a longer replacement", *back.Comment)
}

func TestScanner_AddOutOfRange(t *testing.T) {
	s, _ := newTestScanner()
	in := twoPackets()
	var out bytes.Buffer

	res, err := s.Add(context.Background(), bytes.NewReader(in), &out, 3, "note")
	require.NoError(t, err)
	assert.True(t, res.OutOfRange())
	assert.False(t, res.Edited)
	assert.Equal(t, in, out.Bytes())

	r := res.Record()
	assert.True(t, r.OutOfRange)
	require.NotNil(t, r.Success)
	assert.False(t, *r.Success)
}

func TestScanner_AddStructuralStopKeepsEarlierBlocks(t *testing.T) {
	head := pcapngtest.File(
		pcapngtest.SectionHeader(),
		pcapngtest.EnhancedPacket(frame1),
	)
	file := pcapngtest.File(head, pcapngtest.EnhancedPacket(frame2)[:20])
	s, _ := newTestScanner()
	var out bytes.Buffer

	res, err := s.Add(context.Background(), bytes.NewReader(file), &out, 2, "note")
	require.NoError(t, err)
	assert.ErrorIs(t, res.Stop, pcapng.ErrTruncated)
	assert.True(t, res.OutOfRange())
	assert.Equal(t, head, out.Bytes())
}

func TestScanner_AddMalformedTarget(t *testing.T) {
	// An EPB body shorter than its fixed header is copied unchanged.
	bad := pcapngtest.Block(6, make([]byte, 8))
	file := pcapngtest.File(pcapngtest.SectionHeader(), bad)
	s, rec := newTestScanner()
	var out bytes.Buffer

	res, err := s.Add(context.Background(), bytes.NewReader(file), &out, 1, "note")
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, pcapng.ErrMalformedPacket)
	assert.False(t, res.Edited)
	assert.Equal(t, file, out.Bytes())
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.CommentsTotal.WithLabelValues("failed")))
}

func TestScanner_AddRejectsBadInput(t *testing.T) {
	s, _ := newTestScanner()
	var out bytes.Buffer

	_, err := s.Add(context.Background(), bytes.NewReader(twoPackets()), &out, -1, "note")
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = s.Add(context.Background(), bytes.NewReader(twoPackets()), &out, 1, string([]byte{0xc3, 0x28}))
	assert.ErrorIs(t, err, pcapng.ErrInvalidUTF8)

	assert.Zero(t, out.Len())
}

func TestScanner_Validate(t *testing.T) {
	file := pcapngtest.File(
		twoPackets(),
		pcapngtest.Block(3, make([]byte, 8)),
		pcapngtest.EnhancedPacket(frame1, pcapngtest.Option(1, []byte{0xff}), pcapngtest.EndOfOptions()),
	)
	s, _ := newTestScanner()

	inv, err := s.Validate(context.Background(), bytes.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, 3, inv.Packets)
	assert.Equal(t, 1, inv.Comments)
	assert.Equal(t, 1, inv.Undecodable)
	assert.NoError(t, inv.Stop)

	r := inv.Record()
	assert.Equal(t, map[string]int{
		"section_header":        1,
		"interface_description": 1,
		"enhanced_packet":       3,
		"simple_packet":         1,
	}, r.Blocks)
	assert.Equal(t, 3, r.PacketsSeen)
	assert.Equal(t, 1, r.Comments)
	assert.Contains(t, r.Error, "1 comments")
}

func TestDefaultOutputPath(t *testing.T) {
	tests := []struct {
		input  string
		suffix string
		want   string
	}{
		{"a.pcapng", "comment_added.pcapng", "a.comment_added.pcapng"},
		{"/data/trace.v2.pcapng", "comment_added.pcapng", "/data/trace.v2.comment_added.pcapng"},
		{"capture", "comment_added.pcapng", "capture.comment_added.pcapng"},
		{"a.pcapng", ".annotated.pcapng", "a.annotated.pcapng"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultOutputPath(tt.input, tt.suffix))
		})
	}
}

func TestScanner_AddFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "a.pcapng")
	require.NoError(t, os.WriteFile(input, twoPackets(), 0644))
	output := DefaultOutputPath(input, "comment_added.pcapng")
	s, _ := newTestScanner()

	res, err := s.AddFile(context.Background(), input, output, 1, "note")
	require.NoError(t, err)
	assert.Equal(t, output, res.Output)
	assert.Equal(t, output, res.Record().Output)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	back, err := s.Read(context.Background(), bytes.NewReader(data), 1)
	require.NoError(t, err)
	require.NotNil(t, back.Comment)
	assert.Equal(t, "note", *back.Comment)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temporary file left behind")

	// The input is untouched.
	orig, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, twoPackets(), orig)
}

func TestScanner_AddFileMissingInput(t *testing.T) {
	dir := t.TempDir()
	s, _ := newTestScanner()

	_, err := s.AddFile(context.Background(), filepath.Join(dir, "absent.pcapng"), filepath.Join(dir, "out.pcapng"), 1, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open input")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScanner_FileHelpers(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "a.pcapng")
	require.NoError(t, os.WriteFile(input, twoPackets(), 0644))
	s, _ := newTestScanner()

	res, err := s.ReadFile(context.Background(), input, 2)
	require.NoError(t, err)
	assert.Equal(t, "hello", *res.Comment)

	inv, err := s.ValidateFile(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 2, inv.Packets)

	_, err = s.ReadFile(context.Background(), filepath.Join(dir, "absent"), 1)
	assert.Error(t, err)
}
