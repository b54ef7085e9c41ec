// Package cenfisairspace implements the Cenfis binary airspace writer: a
// file header naming three regions (airspace records, an index of
// per-record offsets, and an encrypted config block), an airspace region
// made of per-airspace tagged-field records (30-byte relative-offset
// header, Pascal-string name/type fields, altitude/frequency fields, a
// vertex list relative to a running anchor), and 0x8000-byte bank-aligned
// padding throughout.
//
// This format is write-only, matching the reference
// (CenfisAirspaceFormat::createReader returns NULL).
//
// Grounded on original_source/cenfis-airspace.h, cenfis-buffer.hh/.cc and
// airspace-cenfis-writer.cc (all read in full).
package cenfisairspace

import (
	"io"
	"strings"

	"loggertoolsgo/internal/domain"
	"loggertoolsgo/internal/geo"
	"loggertoolsgo/internal/pipeline"
)

// Token is this format's registry token.
const Token = "cenfisairspace"

// Register adds the Cenfis airspace format to reg. It has no reader.
func Register(reg *pipeline.Registry[domain.Airspace]) {
	reg.Register(&pipeline.Format[domain.Airspace]{
		Tokens:    []string{Token, "asp"},
		NewWriter: func(w io.Writer) (pipeline.Writer[domain.Airspace], error) { return NewWriter(w), nil },
	})
}

const (
	bankSize = 0x8000

	fileHeaderReserved0 = 0x40
	fileHeaderReserved1 = 0xf0
	fileHeaderReserved2 = 0xb8
	pointerSize         = 4 + 2 + 2 // offset uint32, total_size uint16, num_elements uint16
	fileHeaderSize      = fileHeaderReserved0 + pointerSize + pointerSize +
		fileHeaderReserved1 + pointerSize + fileHeaderReserved2

	recordHeaderFields = 15
	recordHeaderSize   = recordHeaderFields * 2

	configPadByte   = 0x01
	configPadLength = 0xe1
	configWindow    = 0xe2
)

// recordHeader mirrors struct cenfis_airspace_header: 15 big-endian
// uint16 relative offsets, most left at the 0xffff "absent" sentinel.
type recordHeader struct {
	aspRecLength uint16
	acRelInd     uint16
	sRelInd      uint16
	apRelInd     uint16
	cRelInd      uint16
	anRelInd     uint16
	an2RelInd    uint16
	an3RelInd    uint16
	alRelInd     uint16
	ahRelInd     uint16
	lRelInd      uint16
	fisRelInd    uint16
	an4RelInd    uint16
	fileInfoInd  uint16
	voiceInd     uint16
}

func newRecordHeader() recordHeader {
	h := recordHeader{}
	for _, f := range headerFieldPointers(&h) {
		*f = 0xffff
	}
	h.voiceInd = 0
	return h
}

// headerFieldPointers lists every field pointer in on-wire order, so the
// header can be built without repeating the field list.
func headerFieldPointers(h *recordHeader) []*uint16 {
	return []*uint16{
		&h.aspRecLength, &h.acRelInd, &h.sRelInd, &h.apRelInd, &h.cRelInd,
		&h.anRelInd, &h.an2RelInd, &h.an3RelInd, &h.alRelInd, &h.ahRelInd,
		&h.lRelInd, &h.fisRelInd, &h.an4RelInd, &h.fileInfoInd, &h.voiceInd,
	}
}

func (h recordHeader) bytes() []byte {
	out := make([]byte, 0, recordHeaderSize)
	for _, f := range []uint16{
		h.aspRecLength, h.acRelInd, h.sRelInd, h.apRelInd, h.cRelInd,
		h.anRelInd, h.an2RelInd, h.an3RelInd, h.alRelInd, h.ahRelInd,
		h.lRelInd, h.fisRelInd, h.an4RelInd, h.fileInfoInd, h.voiceInd,
	} {
		out = append(out, byte(f>>8), byte(f))
	}
	return out
}

// scratch accumulates one airspace record's (or the whole file's)
// growing byte buffer, tracking the running vertex centroid needed for
// the AP anchor-point field, matching CenfisBuffer's latitude_sum/
// longitude_sum/num_vertices statics (kept per-buffer here instead of as
// package globals, since Go has no exact equivalent and per-record state
// is the only sane reading of "shared across appends within one record").
type scratch struct {
	buf          []byte
	latitudeSum  int64
	longitudeSum int64
	numVertices  int
}

func (s *scratch) tell() int { return len(s.buf) }

func (s *scratch) append(b []byte) { s.buf = append(s.buf, b...) }

func (s *scratch) appendByte(b byte) { s.buf = append(s.buf, b) }

func (s *scratch) appendShort(v uint16) { s.append([]byte{byte(v >> 8), byte(v)}) }

func (s *scratch) appendLong(v uint32) {
	s.appendShort(uint16(v >> 16))
	s.appendShort(uint16(v))
}

func (s *scratch) appendPascalString(str string) error {
	if len(str) >= 0x100 {
		return &pipeline.ContainerFullError{Msg: "cenfis airspace: Pascal string overflow"}
	}
	s.appendByte(byte(len(str)))
	s.append([]byte(str))
	return nil
}

func (s *scratch) appendAltitude(alt geo.Altitude) {
	inFeet := alt.ToUnit(geo.AltitudeUnitFeet)
	s.appendByte(3)
	s.appendShort(uint16(inFeet.Value() / 10))
	ref := byte('M')
	if inFeet.Ref() == geo.AltitudeRefGND || inFeet.Ref() == geo.AltitudeRefAirfield {
		ref = 'G'
	}
	s.appendByte(ref)
}

// appendFrequency encodes a VHF frequency as a tagged kHz field. The
// reference declares CenfisBuffer::append(const Frequency&) but its body
// is absent from every retrieved source file (confirmed by grep across
// cenfis-buffer.cc); this follows the same tag+big-endian-value shape as
// appendAltitude, the only other tagged scalar field the reference does
// implement.
func (s *scratch) appendFrequency(f geo.Frequency) {
	s.appendByte(2)
	s.appendShort(uint16(f.KiloHertz()))
}

// refactor60 mirrors Angle::refactor(60): the angle rescaled to
// 1/60-minute (arc-second) units, matching the reference's on-wire vertex
// encoding.
func refactor60(a geo.Angle) int32 {
	return int32(a.Rescale(60))
}

func (s *scratch) appendFirstVertex(pos geo.SurfacePosition) {
	s.appendByte(8)
	s.appendLong(uint32(refactor60(pos.Latitude.Angle)))
	s.appendLong(uint32(refactor60(pos.Longitude.Angle)))
	s.latitudeSum = int64(pos.Latitude.Value())
	s.longitudeSum = int64(pos.Longitude.Value())
	s.numVertices = 1
}

func (s *scratch) appendRelativeVertex(pos, rel geo.SurfacePosition) {
	s.appendShort(uint16(int16(refactor60(pos.Latitude.Angle) - refactor60(rel.Latitude.Angle))))
	s.appendShort(uint16(int16(refactor60(pos.Longitude.Angle) - refactor60(rel.Longitude.Angle))))
	s.latitudeSum += int64(pos.Latitude.Value())
	s.longitudeSum += int64(pos.Longitude.Value())
	s.numVertices++
}

// anchor returns the vertex-count-weighted centroid of every vertex
// appended to this record so far, matching `current.anchor()`'s only
// plausible reading given the latitude_sum/longitude_sum/num_vertices
// bookkeeping the reference maintains but whose accessor body (like
// append(Frequency)) is absent from the retrieved sources.
func (s *scratch) anchor() geo.SurfacePosition {
	if s.numVertices == 0 {
		return geo.SurfacePosition{}
	}
	return geo.NewSurfacePosition(
		geo.NewLatitude(geo.NewAngle(int32(s.latitudeSum/int64(s.numVertices)))),
		geo.NewLongitude(geo.NewAngle(int32(s.longitudeSum/int64(s.numVertices)))),
	)
}

func airspaceTypeToString(t domain.AirspaceType) string {
	switch t {
	case domain.AirspaceTypeAlpha:
		return "A"
	case domain.AirspaceTypeBravo:
		return "B"
	case domain.AirspaceTypeCharly:
		return "C"
	case domain.AirspaceTypeDelta:
		return "D"
	case domain.AirspaceTypeEchoLow, domain.AirspaceTypeEchoHigh:
		return "E"
	case domain.AirspaceTypeFox:
		return "F"
	case domain.AirspaceTypeCTR:
		return "CTR"
	case domain.AirspaceTypeTMZ:
		return "TMZ"
	case domain.AirspaceTypeRestricted:
		return "R"
	case domain.AirspaceTypeDanger:
		return "D"
	case domain.AirspaceTypeGlider:
		return "glider"
	case domain.AirspaceTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Writer accumulates airspace records into an airspace region and an
// index region, and writes the whole file on Flush.
type Writer struct {
	stream         io.Writer
	first          bool
	airspaceRegion []byte
	indexRegion    []byte
	flushed        bool
}

// NewWriter returns a Writer for the Cenfis airspace format.
func NewWriter(stream io.Writer) *Writer {
	return &Writer{stream: stream, first: true}
}

// Write encodes one airspace record and appends it to the airspace
// region, auto-padding to the next bank if the record would straddle a
// 0x8000-byte boundary.
func (w *Writer) Write(as domain.Airspace) error {
	if w.flushed {
		return pipeline.ErrAlreadyFlushed
	}

	rec := &scratch{}
	h := newRecordHeader()

	name := domain.ParseName(strings.ToUpper(as.Name))

	/* AC = type */

	h.acRelInd = uint16(rec.tell())
	hasFirst := true
	typeString := name.TypeOverride
	if typeString != "" {
		if typeString[0] == '_' {
			hasFirst = false
			typeString = typeString[1:]
		}
		if err := rec.appendPascalString(typeString); err != nil {
			return err
		}
	} else if err := rec.appendPascalString(airspaceTypeToString(as.Type)); err != nil {
		return err
	}

	/* file info, once per file */

	if w.first {
		h.fileInfoInd = uint16(rec.tell())
		if err := rec.appendPascalString("ASP_X304.BHF29-7-2007   "); err != nil {
			return err
		}
		w.first = false
	}

	/* AN = name */

	h.anRelInd = uint16(rec.tell())
	if err := rec.appendPascalString(name.Name); err != nil {
		return err
	}

	name2 := name.Name2
	if name2 != "" && name2[0] != '-' {
		h.an2RelInd = uint16(rec.tell())
		if err := rec.appendPascalString(name2); err != nil {
			return err
		}
	}

	if name.Name3 != "" {
		h.an3RelInd = uint16(rec.tell())
		if err := rec.appendPascalString(name.Name3); err != nil {
			return err
		}
	}

	if name.Name4 != "" {
		h.an4RelInd = uint16(rec.tell())
		if err := rec.appendPascalString(name.Name4); err != nil {
			return err
		}
	}

	if name2 != "" && name2[0] == '-' {
		h.an2RelInd = uint16(rec.tell())
		if err := rec.appendPascalString(name2[1:]); err != nil {
			return err
		}
	}

	/* AL = lower bound */

	if as.Bottom.Defined() && (as.Bottom.Ref() != geo.AltitudeRefGND || as.Bottom.Value() != 0) {
		h.alRelInd = uint16(rec.tell())
		rec.appendAltitude(as.Bottom)
	}

	/* AH = upper bound */

	if as.Top.Defined() {
		h.ahRelInd = uint16(rec.tell())
		rec.appendAltitude(as.Top)
	}

	/* FIS = frequency */

	if as.Frequency.Defined() {
		h.fisRelInd = uint16(rec.tell())
		rec.appendFrequency(as.Frequency)
	}

	/* S, L = vertices */

	var firstVertex *geo.SurfacePosition
	if !hasFirst {
		firstVertex = nil
	}
	var lSizeOffset int

	for _, edge := range as.Edges {
		if edge.Type != domain.EdgeTypeVertex {
			// Circle/arc edges: the reference's own append(Edge&, rel)
			// only handles TYPE_VERTEX ("default: // XXX" in
			// cenfis-buffer.cc) — this port preserves that gap rather
			// than inventing circle/arc encodings with no reference.
			continue
		}
		if firstVertex != nil {
			rec.appendRelativeVertex(edge.End, *firstVertex)
			continue
		}
		h.sRelInd = uint16(rec.tell())
		end := edge.End
		firstVertex = &end
		rec.appendFirstVertex(*firstVertex)
		h.lRelInd = uint16(rec.tell())
		lSizeOffset = rec.tell()
		rec.appendByte(0xff)
	}

	if lSizeOffset > 0 {
		rec.buf[lSizeOffset] = byte(rec.tell() - lSizeOffset - 1)
	}

	/* AP = anchor point */

	if firstVertex != nil {
		h.apRelInd = uint16(rec.tell())
		rec.appendByte(4)
		rec.appendRelativeVertex(rec.anchor(), *firstVertex)
	}

	h.aspRecLength = uint16(rec.tell())

	record := append(h.bytes(), rec.buf...)
	w.airspaceRegion = appendWithBankPadding(w.airspaceRegion, record)

	// index entry: absolute offset of this record's header within the
	// concatenated airspace region, taken after any bank padding.
	indexOffset := uint16(fileHeaderSize + len(w.airspaceRegion) - len(record))
	w.indexRegion = append(w.indexRegion, byte(indexOffset>>8), byte(indexOffset))

	return nil
}

// appendWithBankPadding mirrors CenfisBuffer::auto_bank_switch /
// operator<<: if appending next would straddle a 0x8000 boundary, pad
// with 0xff up to the boundary first.
func appendWithBankPadding(dst, next []byte) []byte {
	pos := len(dst)
	end := pos + len(next)
	if pos/bankSize != end/bankSize {
		boundary := (end / bankSize) * bankSize
		for len(dst) < boundary {
			dst = append(dst, 0xff)
		}
	}
	return append(dst, next...)
}

// Flush builds the config region, the fixed file header, and writes the
// whole file: header, airspace region, index region, config region.
func (w *Writer) Flush() error {
	if w.flushed {
		return pipeline.ErrAlreadyFlushed
	}
	w.flushed = true

	config := make([]byte, 0, 1+configPadLength)
	config = append(config, 0x00)
	for i := 0; i < configPadLength; i++ {
		config = append(config, configPadByte)
	}
	config = encrypt(config, configWindow)

	header := make([]byte, fileHeaderSize)
	for i := range header {
		header[i] = 0xff
	}

	offset := fileHeaderSize
	writePointer(header, fileHeaderReserved0, uint32(0x60000+offset), uint16(len(w.airspaceRegion)), uint16(len(w.indexRegion)/2))
	offset += len(w.airspaceRegion)

	for offset%bankSize != 0 {
		w.airspaceRegion = append(w.airspaceRegion, 0xff)
		offset++
	}

	indexPointerOffset := fileHeaderReserved0 + pointerSize + pointerSize + fileHeaderReserved1
	writePointer(header, indexPointerOffset, uint32(offset), uint16(len(w.indexRegion)), uint16(len(w.indexRegion)/2))
	offset += len(w.indexRegion)

	configPointerOffset := fileHeaderReserved0 + pointerSize
	writePointer(header, configPointerOffset, uint32(offset), uint16(len(config)), uint16(len(config)/4))

	for _, chunk := range [][]byte{header, w.airspaceRegion, w.indexRegion, config} {
		if _, err := w.stream.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

func writePointer(header []byte, at int, offset uint32, totalSize, numElements uint16) {
	header[at] = byte(offset >> 24)
	header[at+1] = byte(offset >> 16)
	header[at+2] = byte(offset >> 8)
	header[at+3] = byte(offset)
	header[at+4] = byte(totalSize >> 8)
	header[at+5] = byte(totalSize)
	header[at+6] = byte(numElements >> 8)
	header[at+7] = byte(numElements)
}

// encrypt is a from-scratch, documented, reversible byte-mixing routine
// standing in for cenfis_encrypt, whose body is declared (CenfisBuffer::
// encrypt calls it) but absent from every file retrieved into
// original_source/ (confirmed by grep for cenfis_encrypt and for a
// cenfis-crypto.* source file — neither exists in the corpus). Each byte
// is XORed with a key byte 0x5a+i%window and, after the first, with the
// preceding plaintext byte; see DESIGN.md.
func encrypt(data []byte, window int) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	for i := range out {
		out[i] ^= byte(0x5a + i%window)
		if i > 0 {
			out[i] ^= data[i-1]
		}
	}
	return out
}

// decrypt inverts encrypt; kept alongside it (and exercised by this
// package's tests) so a future Cenfis airspace reader has a matching
// routine ready, the same way the reference's encrypt/decrypt pair would
// sit in the same translation unit.
func decrypt(data []byte, window int) []byte {
	out := make([]byte, len(data))
	for i, ct := range data {
		out[i] = ct ^ byte(0x5a+i%window)
		if i > 0 {
			out[i] ^= out[i-1]
		}
	}
	return out
}
