// Package hexfile implements the reference's narrowed, bank-oriented
// Intel-HEX dialect: a textual wrapper around an arbitrary binary byte
// stream, used to carry a Cenfis DAB turnpoint database (which can exceed
// a single 0x8000-byte "bank") over the device's hex-file transfer
// protocol. This is not general Intel-HEX: the bank-select record type
// (0x10+N) replaces the standard extended-address record types, and the
// only other record types emitted/accepted are 0x00 (data) and 0x01
// (EOF).
//
// Grounded on original_source/hexfile-writer.hh/.cc (the record framing
// and bank-select emission) and hexfile-decoder.h/.c (the record parser
// and checksum rule).
package hexfile

import (
	"bufio"
	"io"

	"loggertoolsgo/internal/pipeline"
)

const (
	bankSize       = 0x8000
	maxRecordBytes = 0x10

	recordData       = 0x00
	recordEOF        = 0x01
	recordBankSelect = 0x10
)

const hexDigits = "0123456789ABCDEF"

func writeHexByte(dst []byte, v byte) {
	dst[0] = hexDigits[v>>4]
	dst[1] = hexDigits[v&0xf]
}

// Writer wraps an underlying io.Writer, encoding every byte written to it
// as Intel-HEX-style data records, auto-emitting a bank-select record
// whenever a write would cross a 0x8000-byte boundary, and appending a
// terminal EOF record on Close.
type Writer struct {
	next    io.Writer
	offset  int
	segment int
	closed  bool
}

// NewWriter wraps next as a hexfile encoder.
func NewWriter(next io.Writer) *Writer {
	return &Writer{next: next}
}

// Write encodes p as a sequence of data records, each carrying at most
// 0x10 bytes, auto-splitting at bank boundaries.
func (w *Writer) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := len(p)
		if n > maxRecordBytes {
			n = maxRecordBytes
		}

		if w.offset >= bankSize {
			w.segment++
			w.offset = 0
			if err := w.writeRecord(0, 0, recordBankSelect+w.segment, nil); err != nil {
				return written, err
			}
		}

		if w.offset+n > bankSize {
			n = bankSize - w.offset
		}

		if err := w.writeRecord(n, w.offset, recordData, p[:n]); err != nil {
			return written, err
		}

		p = p[n:]
		written += n
		w.offset += n
	}
	return written, nil
}

// Close emits the terminal EOF record. It does not close the underlying
// stream.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.writeRecord(0, 0, recordEOF, nil)
}

func (w *Writer) writeRecord(length, address, recordType int, data []byte) error {
	buf := make([]byte, 1+(4+maxRecordBytes+1)*2+2)
	p := 0
	buf[p] = ':'
	p++

	writeHexByte(buf[p:], byte(length))
	p += 2
	writeHexByte(buf[p:], byte(address>>8))
	p += 2
	writeHexByte(buf[p:], byte(address))
	p += 2
	writeHexByte(buf[p:], byte(recordType))
	p += 2

	checksum := byte(-(length + address/256 + address%256 + recordType))
	for _, b := range data {
		writeHexByte(buf[p:], b)
		p += 2
		checksum -= b
	}

	writeHexByte(buf[p:], checksum)
	p += 2
	buf[p] = '\r'
	p++
	buf[p] = '\n'
	p++

	_, err := w.next.Write(buf[:p])
	return err
}

// Decoder parses a hexfile byte stream into the flat binary image it
// encodes, resolving bank-select records against the running base
// offset.
type Decoder struct {
	data []byte
	base int
	eof  bool
}

// Decode reads every record from stream and returns the reconstructed
// binary image. It returns a MalformedInputError if the stream ends
// before an EOF record, or if any record fails its checksum or uses an
// unrecognized type.
func Decode(stream io.Reader) ([]byte, error) {
	d := &Decoder{}
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if d.eof {
			return nil, pipeline.NewMalformedInput("hexfile: record after EOF record")
		}
		if line[0] != ':' {
			return nil, pipeline.NewMalformedInput("hexfile: record does not start with ':'")
		}
		if err := d.decodeLine(line[1:]); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !d.eof {
		return nil, pipeline.NewMalformedInput("hexfile: missing EOF record")
	}
	return d.data, nil
}

func (d *Decoder) decodeLine(hexDigitsLine []byte) error {
	raw, err := decodeHex(hexDigitsLine)
	if err != nil {
		return err
	}
	if len(raw) < 5 {
		return pipeline.NewMalformedInput("hexfile: record too short")
	}

	length := int(raw[0])
	if len(raw) != 4+length+1 {
		return pipeline.NewMalformedInput("hexfile: record length field mismatch")
	}

	var sum byte
	for _, b := range raw {
		sum += b
	}
	if sum != 0 {
		return pipeline.NewMalformedInput("hexfile: checksum mismatch")
	}

	recordType := raw[3]
	offset := int(raw[1])*0x100 | int(raw[2])
	payload := raw[4 : 4+length]

	switch {
	case recordType == recordData:
		d.writeData(d.base+offset, payload)
	case recordType == recordEOF:
		d.eof = true
	case recordType >= recordBankSelect:
		d.base = int(recordType-recordBankSelect) * bankSize
	default:
		return pipeline.NewMalformedInput("hexfile: unknown record type")
	}
	return nil
}

func (d *Decoder) writeData(offset int, p []byte) {
	end := offset + len(p)
	if end > len(d.data) {
		grown := make([]byte, end)
		copy(grown, d.data)
		d.data = grown
	}
	copy(d.data[offset:end], p)
}

func decodeHexDigit(ch byte) (int, error) {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0'), nil
	case ch >= 'a' && ch <= 'z':
		return 10 + int(ch-'a'), nil
	case ch >= 'A' && ch <= 'Z':
		return 10 + int(ch-'A'), nil
	default:
		return 0, pipeline.NewMalformedInput("hexfile: invalid hex digit")
	}
}

func decodeHex(s []byte) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, pipeline.NewMalformedInput("hexfile: odd number of hex digits")
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, err := decodeHexDigit(s[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := decodeHexDigit(s[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = byte(hi*0x10 + lo)
	}
	return out, nil
}
