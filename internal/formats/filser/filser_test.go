package filser

import (
	"bytes"
	"testing"

	"loggertoolsgo/internal/domain"
	"loggertoolsgo/internal/geo"
	"loggertoolsgo/internal/pipeline"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	lat := geo.NewLatitude(geo.NewAngleDMS(1, 50, 12, 0))
	lon := geo.NewLongitude(geo.NewAngleDMS(1, 8, 24, 0))
	alt := geo.NewAltitude(1500, geo.AltitudeUnitFeet, geo.AltitudeRefMSL)

	tp := domain.TurnPoint{
		Code:      "EDXX",
		Type:      domain.TurnPointTypeAirfield,
		Position:  geo.NewPosition(lat, lon, alt),
		Frequency: geo.NewFrequencyMHzKHz(123, 500),
		Runway:    domain.Runway{Type: domain.RunwayTypeGrass, Direction: 27, Length: 800},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Write(tp); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if got, want := buf.Len(), recordSize*maxRecords+trailerBytes; got != want {
		t.Fatalf("buffer length = %d, want %d", got, want)
	}

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
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
	got := out[0]
	if got.ShortName != "EDXX" {
		t.Errorf("ShortName = %q, want EDXX", got.ShortName)
	}
	if got.Runway.Type != domain.RunwayTypeGrass || got.Runway.Direction != 27 {
		t.Errorf("Runway = %+v, want Grass/27", got.Runway)
	}
	if !got.Frequency.Defined() || got.Frequency.MegaHertz() != 123 {
		t.Errorf("Frequency = %+v, want 123MHz", got.Frequency)
	}
	if !got.Position.Defined() {
		t.Fatal("expected a defined position")
	}
}

func TestReaderSkipsInvalidRecords(t *testing.T) {
	data := make([]byte, recordSize*2)
	data[recordSize] = 1 // second record marked valid, all zero fields
	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	out, err := pipeline.ReadAll[domain.TurnPoint](r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d turnpoints, want 1 (the invalid first record should be skipped)", len(out))
	}
}
