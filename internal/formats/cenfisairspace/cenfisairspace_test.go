package cenfisairspace

import (
	"bytes"
	"testing"

	"loggertoolsgo/internal/domain"
	"loggertoolsgo/internal/geo"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plain := bytes.Repeat([]byte{0x01}, 0xe2)
	plain[0] = 0x00

	ct := encrypt(plain, configWindow)
	got := decrypt(ct, configWindow)
	if !bytes.Equal(got, plain) {
		t.Fatalf("decrypt(encrypt(x)) = %x, want %x", got, plain)
	}
}

func TestWriteProducesFileHeaderAndRegions(t *testing.T) {
	a := domain.NewVertexEdge(geo.NewSurfacePosition(
		geo.NewLatitude(geo.NewAngleDMS(1, 50, 30, 0)),
		geo.NewLongitude(geo.NewAngleDMS(1, 8, 15, 0)),
	))
	b := domain.NewVertexEdge(geo.NewSurfacePosition(
		geo.NewLatitude(geo.NewAngleDMS(1, 50, 45, 0)),
		geo.NewLongitude(geo.NewAngleDMS(1, 8, 30, 0)),
	))

	as := domain.Airspace{
		Name:   "TEST CTR",
		Type:   domain.AirspaceTypeCTR,
		Bottom: geo.NewAltitude(0, geo.AltitudeUnitFeet, geo.AltitudeRefGND),
		Top:    geo.NewAltitude(3500, geo.AltitudeUnitFeet, geo.AltitudeRefMSL),
		Edges:  []domain.Edge{a, b},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Write(as); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if buf.Len() < fileHeaderSize+bankSize {
		t.Fatalf("output too short: %d bytes, want at least %d (file header + one bank)", buf.Len(), fileHeaderSize+bankSize)
	}

	out := buf.Bytes()
	asAsp := uint32(out[0x40])<<24 | uint32(out[0x41])<<16 | uint32(out[0x42])<<8 | uint32(out[0x43])
	if asAsp != 0x60000+fileHeaderSize {
		t.Errorf("asp.offset = %#x, want %#x", asAsp, 0x60000+fileHeaderSize)
	}
}

func TestFlushTwiceErrors(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Flush(); err != nil {
		t.Fatalf("first Flush: %v", err)
	}
	if err := w.Flush(); err == nil {
		t.Fatal("expected an error flushing twice")
	}
}
