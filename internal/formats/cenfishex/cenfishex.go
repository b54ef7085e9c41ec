// Package cenfishex implements the "dab" turnpoint database format as
// carried over the device's Intel-HEX transfer protocol: writes pass
// through a cenfisdb writer into a hexfile.Writer, and reads decode the
// entire hex stream into memory first, then hand the resulting byte
// image to a cenfisdb reader.
//
// Grounded on original_source/tp-cenfis-hex-writer.cc (CenfisHexWriter,
// a thin pass-through wrapping a "dab" writer in a HexfileOutputFilter)
// and tp-cenfis-hex-reader.cc (CenfisHexReader, which decodes the whole
// hexfile up front via decode_hexfile() before constructing the "dab"
// reader over the decoded bytes).
package cenfishex

import (
	"bytes"
	"io"

	"loggertoolsgo/internal/domain"
	"loggertoolsgo/internal/formats/cenfisdb"
	"loggertoolsgo/internal/hexfile"
	"loggertoolsgo/internal/pipeline"
)

// Token is this format's registry token.
const Token = "cenfishex"

// Register adds the Cenfis hex-transport format to reg.
func Register(reg *pipeline.Registry[domain.TurnPoint]) {
	reg.Register(&pipeline.Format[domain.TurnPoint]{
		Tokens:    []string{Token, "hex"},
		NewReader: func(r io.Reader) (pipeline.Reader[domain.TurnPoint], error) { return NewReader(r) },
		NewWriter: func(w io.Writer) (pipeline.Writer[domain.TurnPoint], error) { return NewWriter(w), nil },
	})
}

// Reader decodes a complete hexfile stream into memory, then delegates
// to a cenfisdb.Reader over the decoded image.
type Reader struct {
	inner *cenfisdb.Reader
}

// NewReader decodes r's entire hexfile stream and constructs a dab
// reader over the result.
func NewReader(r io.Reader) (*Reader, error) {
	data, err := hexfile.Decode(r)
	if err != nil {
		return nil, err
	}

	inner, err := cenfisdb.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	return &Reader{inner: inner}, nil
}

// Read returns the next turnpoint, or (nil, nil) when exhausted.
func (r *Reader) Read() (*domain.TurnPoint, error) {
	return r.inner.Read()
}

// Writer writes turnpoints through a cenfisdb.Writer into a
// hexfile.Writer.
type Writer struct {
	hex   *hexfile.Writer
	inner *cenfisdb.Writer
}

// NewWriter wraps w as a hex-transported dab writer.
func NewWriter(w io.Writer) *Writer {
	hex := hexfile.NewWriter(w)
	return &Writer{hex: hex, inner: cenfisdb.NewWriter(hex)}
}

// Write buffers tp for the next Flush.
func (w *Writer) Write(tp domain.TurnPoint) error {
	return w.inner.Write(tp)
}

// Flush writes the buffered dab database, then terminates the hexfile
// stream with its EOF record.
func (w *Writer) Flush() error {
	if err := w.inner.Flush(); err != nil {
		return err
	}
	return w.hex.Close()
}
