package zander

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

	tp := domain.TurnPoint{
		Code:     "EDXX",
		Country:  "DE",
		Type:     domain.TurnPointTypeAirfield,
		Position: geo.NewPosition(lat, lon, alt),
		Runway:   domain.Runway{Type: domain.RunwayTypeAsphalt},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Write(tp); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r := NewReader(&buf)
	out, err := pipeline.ReadAll[domain.TurnPoint](r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d turnpoints, want 1; raw:\n%q", len(out), buf.String())
	}
	got := out[0]
	if got.FullName != "EDXX" {
		t.Errorf("FullName = %q, want %q", got.FullName, "EDXX")
	}
	if got.Country != "DE" {
		t.Errorf("Country = %q, want DE", got.Country)
	}
	if got.Type != domain.TurnPointTypeAirfield || got.Runway.Type != domain.RunwayTypeAsphalt {
		t.Errorf("type/runway = %v/%v, want Airfield/Asphalt", got.Type, got.Runway.Type)
	}
	if !got.Position.Defined() {
		t.Fatal("expected a defined position")
	}
}

func TestReaderStopsAtSub26Marker(t *testing.T) {
	input := "\x1a\r\nAAA          \r\n"
	r := NewReader(bytes.NewBufferString(input))
	out, err := pipeline.ReadAll[domain.TurnPoint](r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("got %d turnpoints, want 0", len(out))
	}
}
