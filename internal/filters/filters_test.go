package filters

import (
	"testing"

	"loggertoolsgo/internal/domain"
	"loggertoolsgo/internal/geo"
	"loggertoolsgo/internal/pipeline"
)

type tpSliceReader struct {
	values []domain.TurnPoint
	pos    int
}

func (r *tpSliceReader) Read() (*domain.TurnPoint, error) {
	if r.pos >= len(r.values) {
		return nil, nil
	}
	v := r.values[r.pos]
	r.pos++
	return &v, nil
}

func (r *tpSliceReader) Close() error { return nil }

func degPosition(latDeg, lonDeg float64) geo.Position {
	lat := geo.NewLatitude(geo.NewAngleRadians(latDeg * 3.141592653589793 / 180))
	lon := geo.NewLongitude(geo.NewAngleRadians(lonDeg * 3.141592653589793 / 180))
	return geo.NewPosition(lat, lon, geo.Altitude{})
}

func TestAirfieldFilter(t *testing.T) {
	src := &tpSliceReader{values: []domain.TurnPoint{
		{Code: "A", Type: domain.TurnPointTypeAirfield},
		{Code: "B", Type: domain.TurnPointTypeChurch},
		{Code: "C", Type: domain.TurnPointTypeGliderSite},
	}}
	out, err := pipeline.ReadAll[domain.TurnPoint](Airfield(src))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(out) != 2 || out[0].Code != "A" || out[1].Code != "C" {
		t.Errorf("Airfield filter = %v, want [A C]", out)
	}
}

func TestNameFilterEmptyNameErrors(t *testing.T) {
	src := &tpSliceReader{}
	if _, err := Name(src, ""); err == nil {
		t.Fatal("Name(..., \"\") should error")
	}
}

func TestNameFilterMatchesAnyField(t *testing.T) {
	src := &tpSliceReader{values: []domain.TurnPoint{
		{Code: "AAA", ShortName: "Alpha", FullName: "Alpha Field"},
		{Code: "BBB", ShortName: "Bravo", FullName: "Bravo Field"},
		{Code: "CCC", ShortName: "CCC", FullName: "Charlie Field"},
	}}
	r, err := Name(src, "Bravo")
	if err != nil {
		t.Fatalf("Name: %v", err)
	}
	out, err := pipeline.ReadAll[domain.TurnPoint](r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(out) != 1 || out[0].Code != "BBB" {
		t.Errorf("Name filter = %v, want [BBB]", out)
	}
}

// TestDistanceFilterByReferenceName exercises the Scenario 6 form:
// stream [A, B, C, D] where C.name = "REF"; DistanceFilter(stream,
// "REF:1km") yields every point within 1km of C's position, including
// points that precede C in the stream.
func TestDistanceFilterByReferenceName(t *testing.T) {
	center := degPosition(50.0, 8.0)
	near := degPosition(50.001, 8.0)  // well within 1km
	far := degPosition(51.0, 8.0)     // far away

	a := domain.TurnPoint{Code: "A", Position: near}
	b := domain.TurnPoint{Code: "B", Position: far}
	c := domain.TurnPoint{Code: "C", ShortName: "REF", Position: center}
	d := domain.TurnPoint{Code: "D", Position: near}

	src := &tpSliceReader{values: []domain.TurnPoint{a, b, c, d}}
	r, err := Distance(src, "REF:1km")
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	out, err := pipeline.ReadAll[domain.TurnPoint](r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	gotCodes := make(map[string]bool)
	for _, tp := range out {
		gotCodes[tp.Code] = true
	}
	for _, want := range []string{"A", "C", "D"} {
		if !gotCodes[want] {
			t.Errorf("Distance filter missing expected point %q, got %v", want, out)
		}
	}
	if gotCodes["B"] {
		t.Errorf("Distance filter should have excluded B, got %v", out)
	}
}

func TestDistanceFilterUnknownReferenceErrors(t *testing.T) {
	src := &tpSliceReader{values: []domain.TurnPoint{
		{Code: "A", Position: degPosition(50, 8)},
	}}
	r, err := Distance(src, "NOPE:1km")
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if _, err := pipeline.ReadAll[domain.TurnPoint](r); err == nil {
		t.Fatal("expected an error for an unmatched reference name")
	}
}

func TestParseDistanceLiterals(t *testing.T) {
	tests := []struct {
		in        string
		wantUnit  geo.DistanceUnit
		wantValue float64
	}{
		{"1km", geo.DistanceUnitMeters, 1000},
		{"500m", geo.DistanceUnitMeters, 500},
		{"3NM", geo.DistanceUnitNauticalMiles, 3},
		{"2000ft", geo.DistanceUnitFeet, 2000},
	}
	for _, tt := range tests {
		d, err := ParseDistance(tt.in)
		if err != nil {
			t.Fatalf("ParseDistance(%q): %v", tt.in, err)
		}
		if d.Unit() != tt.wantUnit || d.Value() != tt.wantValue {
			t.Errorf("ParseDistance(%q) = (%v, %v), want (%v, %v)", tt.in, d.Unit(), d.Value(), tt.wantUnit, tt.wantValue)
		}
	}
}

// TestParseDistanceNauticalMilesIsCaseSensitive locks in earth-parser.cc's
// exact-match grammar: "NM" (nautical miles) is uppercase only, unlike
// "km"/"m"/"ft" which are lowercase only. A lowercase "nm" is not a unit
// the original recognizes.
func TestParseDistanceNauticalMilesIsCaseSensitive(t *testing.T) {
	if _, err := ParseDistance("3nm"); err == nil {
		t.Fatal("expected an error for lowercase \"nm\", which the original does not accept")
	}
}
