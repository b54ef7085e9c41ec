package hexfile

import (
	"bytes"
	"testing"
)

func TestWriteThenDecodeRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 10000) // spans multiple banks

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("decoded %d bytes, want %d bytes matching the original payload", len(got), len(payload))
	}
}

func TestDecodeRejectsMissingEOF(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte(":00000000FF\r\n")))
	if err == nil {
		t.Fatal("expected an error for a stream with no EOF record")
	}
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte(":0000000100\r\n"))) // checksum should be FF
	if err == nil {
		t.Fatal("expected a checksum error")
	}
}

func TestDecodeAcceptsEOF(t *testing.T) {
	got, err := Decode(bytes.NewReader([]byte(":00000001FF\r\n")))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d bytes, want 0", len(got))
	}
}
