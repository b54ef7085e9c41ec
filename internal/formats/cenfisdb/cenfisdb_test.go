package cenfisdb

import (
	"bytes"
	"testing"

	"loggertoolsgo/internal/domain"
	"loggertoolsgo/internal/geo"
	"loggertoolsgo/internal/pipeline"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	lat := geo.NewLatitude(geo.NewAngleDMS(1, 50, 12, 30))
	lon := geo.NewLongitude(geo.NewAngleDMS(1, 8, 23, 30))
	alt := geo.NewAltitude(500, geo.AltitudeUnitMeters, geo.AltitudeRefMSL)

	tps := []domain.TurnPoint{
		{
			FullName:    "Zulu Field",
			Description: "a glider site",
			Type:        domain.TurnPointTypeGliderSite,
			Position:    geo.NewPosition(lat, lon, alt),
			Frequency:   geo.NewFrequencyMHzKHz(123, 500),
			Runway:      domain.Runway{Direction: 90},
		},
		{
			FullName: "Alpha Field",
			Type:     domain.TurnPointTypeAirfield,
			Position: geo.NewPosition(lat, lon, alt),
		},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, tp := range tps {
		if err := w.Write(tp); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	out, err := pipeline.ReadAll[domain.TurnPoint](r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d turnpoints, want 2", len(out))
	}

	// The writer sorts by title, so "Alpha Field" precedes "Zulu Field"
	// regardless of write order.
	if out[0].FullName != "Alpha Field" {
		t.Errorf("out[0].FullName = %q, want Alpha Field", out[0].FullName)
	}
	if out[1].FullName != "Zulu Field" {
		t.Errorf("out[1].FullName = %q, want Zulu Field", out[1].FullName)
	}
	if out[1].Type != domain.TurnPointTypeGliderSite {
		t.Errorf("out[1].Type = %v, want GliderSite", out[1].Type)
	}
	if !out[1].Frequency.Defined() || out[1].Frequency.MegaHertz() != 123 {
		t.Errorf("out[1].Frequency = %+v, want 123MHz", out[1].Frequency)
	}
	if out[1].Runway.Direction != 90 {
		t.Errorf("out[1].Runway.Direction = %d, want 90", out[1].Runway.Direction)
	}
	if !out[0].Position.Defined() || !out[1].Position.Defined() {
		t.Fatal("expected both positions to round-trip as defined")
	}
}

func TestBadMagicRejected(t *testing.T) {
	data := make([]byte, headerSize)
	if _, err := NewReader(bytes.NewReader(data)); err == nil {
		t.Fatal("expected an error for a zeroed, non-matching header")
	}
}

// rawHeader builds a 512-byte Cenfis DAB header byte-for-byte from the
// documented field offsets (cenfis-db.h / spec.md), independent of this
// package's own header struct and writeHeader — so a regression that
// shrinks the header (e.g. dropping a reserved region) is caught even if
// the writer and reader still happen to agree with each other.
func rawHeader(overallCount uint16, afterTPOffset uint32) []byte {
	buf := make([]byte, 0, 512)
	put16 := func(v uint16) { buf = append(buf, byte(v>>8), byte(v)) }
	put32 := func(v uint32) { buf = append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v)) }
	zeros := func(n int) { buf = append(buf, make([]byte, n)...) }

	put16(0x4610) // magic1
	zeros(6)      // reserved1
	put16(0x4131) // magic2
	zeros(54)     // reserved2
	for i := 0; i < 4; i++ {
		put32(0) // offset
		put16(3) // three
		put16(0) // count
	}
	zeros(224)           // reserved3
	put32(512)           // header_size
	put16(0x30)          // thirty1
	put16(overallCount)  // overall_count
	put16(0x07)          // seven1
	put16(0)             // zero1
	put32(0)             // zero2
	put32(afterTPOffset) // after_tp_offset
	put16(0x21)          // twentyOne1
	put16(0x0a)          // a1
	zeros(168)           // reserved4

	if len(buf) != 512 {
		panic("rawHeader: built wrong length")
	}
	return buf
}

func rawTurnPointRecord(title string) []byte {
	buf := make([]byte, 0, turnPointSize)
	put32 := func(v uint32) { buf = append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v)) }
	put16 := func(v uint16) { buf = append(buf, byte(v>>8), byte(v)) }

	put32(1000 * 600)                   // latitude: 1000 minutes * 1/600 deg units
	put32(500 * 600)                    // longitude
	put16(300)                          // altitude meters
	buf = append(buf, 1)                // type: airfield
	buf = append(buf, 0)                // foo1
	buf = append(buf, 0x01, 0x2c, 0x20) // frequency (kHz, 24-bit BE)
	titleBytes := [14]byte{}
	copy(titleBytes[:], title)
	for i := len(title); i < 14; i++ {
		titleBytes[i] = ' '
	}
	buf = append(buf, titleBytes[:]...)
	descBytes := [14]byte{}
	for i := range descBytes {
		descBytes[i] = ' '
	}
	buf = append(buf, descBytes[:]...)
	buf = append(buf, 9, 0) // rwy1 (=90/10), rwy2
	buf = append(buf, 0, 0, 0)

	if len(buf) != turnPointSize {
		panic("rawTurnPointRecord: built wrong length")
	}
	return buf
}

func TestReadsRealistic512ByteHeader(t *testing.T) {
	const title = "Realistic Fld"

	data := rawHeader(1, 512+turnPointSize)
	data = append(data, rawTurnPointRecord(title)...)

	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	out, err := pipeline.ReadAll[domain.TurnPoint](r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d turnpoints, want 1", len(out))
	}
	if out[0].FullName != title {
		t.Errorf("FullName = %q, want %q", out[0].FullName, title)
	}
	if out[0].Type != domain.TurnPointTypeAirfield {
		t.Errorf("Type = %v, want Airfield", out[0].Type)
	}
	if !out[0].Position.Defined() {
		t.Fatal("expected a defined position")
	}
}
