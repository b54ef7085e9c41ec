// Package cenfisdb implements the Cenfis DAB binary turnpoint database: a
// fixed header, an array of 48-byte turn-point records sorted by title, a
// 0x150-byte filler block, and four per-type index tables (airfield,
// glider site, outlanding, other) of 3-byte bit-split offset entries.
//
// Grounded on original_source/cenfis-db.h (struct layouts),
// tp-cenfis-db-reader.cc and tp-cenfis-db-writer.cc.
package cenfisdb

import (
	"bytes"
	"encoding/binary"
	"io"

	"loggertoolsgo/internal/domain"
	"loggertoolsgo/internal/geo"
	"loggertoolsgo/internal/pipeline"
)

// Token is this format's registry token.
const Token = "cenfisdb"

// Register adds the Cenfis database format to reg.
func Register(reg *pipeline.Registry[domain.TurnPoint]) {
	reg.Register(&pipeline.Format[domain.TurnPoint]{
		Tokens:    []string{Token, "dab"},
		NewReader: func(r io.Reader) (pipeline.Reader[domain.TurnPoint], error) { return NewReader(r) },
		NewWriter: func(w io.Writer) (pipeline.Writer[domain.TurnPoint], error) { return NewWriter(w), nil },
	})
}

const (
	magic1 uint16 = 0x4610
	magic2 uint16 = 0x4131

	headerSize     = 2 + 6 + 2 + 54 + 4*(4+2+2) + 224 + 4 + 2 + 2 + 2 + 2 + 4 + 4 + 2 + 2 + 168
	turnPointSize  = 48
	fillerSize     = 0x150
	tableEntrySize = 3
)

// tableDesc mirrors struct table_desc: the offset/count of one of the
// header's four type-partitioned index tables.
type tableDesc struct {
	offset uint32
	three  uint16
	count  uint16
}

// header mirrors struct header in cenfis-db.h, including its four
// reserved padding regions — the struct is a fixed 512 bytes on the
// wire and every byte of it must round-trip even though only a handful
// of fields carry meaning.
type header struct {
	magic1        uint16
	reserved1     [6]byte
	magic2        uint16
	reserved2     [54]byte
	tables        [4]tableDesc
	reserved3     [224]byte
	headerSizeF   uint32
	thirty1       uint16
	overallCount  uint16
	seven1        uint16
	zero1         uint16
	zero2         uint32
	afterTPOffset uint32
	twentyOne1    uint16
	a1            uint16
	reserved4     [168]byte
}

func typeToCenfis(t domain.TurnPointType) byte {
	switch t {
	case domain.TurnPointTypeAirfield:
		return 1
	case domain.TurnPointTypeGliderSite:
		return 2
	case domain.TurnPointTypeMilitaryAirfield:
		return 3
	case domain.TurnPointTypeOutlanding:
		return 4
	default:
		return 0
	}
}

func cenfisToType(v byte) domain.TurnPointType {
	switch v {
	case 1:
		return domain.TurnPointTypeAirfield
	case 2:
		return domain.TurnPointTypeGliderSite
	case 3:
		return domain.TurnPointTypeMilitaryAirfield
	case 4:
		return domain.TurnPointTypeOutlanding
	default:
		return domain.TurnPointTypeUnknown
	}
}

// typeToTable maps a cenfis type byte to one of the header's four index
// tables: 0=other, 1=airfield (incl. military), 2=glider site, 3=outlanding.
func typeToTable(t byte) int {
	switch t {
	case 0:
		return 0
	case 1, 3:
		return 1
	case 2:
		return 2
	case 4:
		return 3
	default:
		return -1
	}
}

// Reader reads a Cenfis DAB turnpoint database. It decodes the whole
// stream up front, since the header and index tables sit after the
// turn-point array and there's no way to stream a single pass through the
// file without first reading the header's table offsets.
type Reader struct {
	pipeline.StreamCloser
	records []domain.TurnPoint
	pos     int
}

// NewReader parses stream as a Cenfis DAB database.
func NewReader(stream io.Reader) (*Reader, error) {
	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, err
	}

	if len(data) < headerSize {
		return nil, pipeline.NewMalformedInput("cenfis db: truncated header")
	}

	br := bytes.NewReader(data)
	var h header
	if err := readHeader(br, &h); err != nil {
		return nil, err
	}

	if h.magic1 != magic1 || h.magic2 != magic2 {
		return nil, pipeline.NewMalformedInput("cenfis db: bad magic")
	}
	if h.headerSizeF != uint32(headerSize) {
		return nil, pipeline.NewMalformedInput("cenfis db: unexpected header_size")
	}
	wantAfterTP := uint32(headerSize) + uint32(turnPointSize)*uint32(h.overallCount)
	if h.afterTPOffset != wantAfterTP {
		return nil, pipeline.NewMalformedInput("cenfis db: after_tp_offset mismatch")
	}

	records := make([]domain.TurnPoint, 0, h.overallCount)
	for i := 0; i < int(h.overallCount); i++ {
		tp, err := readTurnPoint(br)
		if err != nil {
			return nil, err
		}
		records = append(records, tp)
	}

	return &Reader{StreamCloser: pipeline.StreamCloser{Stream: stream}, records: records}, nil
}

func readHeader(r *bytes.Reader, h *header) error {
	fields := []any{
		&h.magic1, &h.reserved1, &h.magic2, &h.reserved2,
	}
	for i := range h.tables {
		fields = append(fields, &h.tables[i].offset, &h.tables[i].three, &h.tables[i].count)
	}
	fields = append(fields, &h.reserved3,
		&h.headerSizeF, &h.thirty1, &h.overallCount, &h.seven1,
		&h.zero1, &h.zero2, &h.afterTPOffset, &h.twentyOne1, &h.a1,
		&h.reserved4,
	)
	for _, f := range fields {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return pipeline.NewMalformedInput("cenfis db: " + err.Error())
		}
	}
	return nil
}

func writeHeader(w io.Writer, h *header) error {
	fields := []any{
		h.magic1, h.reserved1, h.magic2, h.reserved2,
	}
	for i := range h.tables {
		fields = append(fields, h.tables[i].offset, h.tables[i].three, h.tables[i].count)
	}
	fields = append(fields, h.reserved3,
		h.headerSizeF, h.thirty1, h.overallCount, h.seven1,
		h.zero1, h.zero2, h.afterTPOffset, h.twentyOne1, h.a1,
		h.reserved4,
	)
	for _, f := range fields {
		if err := binary.Write(w, binary.BigEndian, f); err != nil {
			return err
		}
	}
	return nil
}

// cenfisToAngle converts a raw 1/600-minute value into geo's canonical
// 1/1000-minute Angle representation.
func cenfisToAngle(v int32) geo.Angle {
	return geo.NewAngleScaled(int(v), 600)
}

// angleToCenfis is the inverse of cenfisToAngle, rounding to nearest.
func angleToCenfis(a geo.Angle) int32 {
	return int32(a.Rescale(600))
}

func readTurnPoint(r *bytes.Reader) (domain.TurnPoint, error) {
	var lat, lon int32
	var altitude uint16
	var typ byte
	var foo1 byte
	var freq [3]byte
	var title [14]byte
	var description [14]byte
	var rwy1, rwy2 byte
	var foo2 [3]byte

	for _, f := range []any{&lat, &lon, &altitude, &typ, &foo1, &freq, &title, &description, &rwy1, &rwy2, &foo2} {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return domain.TurnPoint{}, pipeline.NewMalformedInput("cenfis db: " + err.Error())
		}
	}

	tp := domain.TurnPoint{Type: cenfisToType(typ)}

	if lat != 0 || lon != 0 {
		position := geo.NewPosition(
			geo.NewLatitude(cenfisToAngle(lat)),
			geo.NewLongitude(cenfisToAngle(-lon)),
			geo.NewAltitude(int64(altitude), geo.AltitudeUnitMeters, geo.AltitudeRefMSL),
		)
		tp.Position = position
	}

	if freqHz := (uint(freq[0])<<16 | uint(freq[1])<<8 | uint(freq[2])) * 1000; freqHz > 0 {
		tp.Frequency = geo.NewFrequencyHertz(freqHz)
	}

	if name := trimFixed(title[:]); name != "" {
		tp.FullName = name
	}
	if desc := trimFixed(description[:]); desc != "" {
		tp.Description = desc
	}

	if rwy1 > 0 {
		tp.Runway = domain.Runway{
			Type:      domain.RunwayTypeUnknown,
			Direction: uint(rwy1) * 10,
		}
	}
	_ = rwy2

	return tp, nil
}

func trimFixed(b []byte) string {
	return string(bytes.TrimRight(b, " \x00"))
}

// Read returns the next turnpoint, or (nil, nil) at end of stream.
func (r *Reader) Read() (*domain.TurnPoint, error) {
	if r.pos >= len(r.records) {
		return nil, nil
	}
	tp := r.records[r.pos]
	r.pos++
	return &tp, nil
}

// Writer accumulates turnpoints and emits a complete Cenfis DAB database
// on Flush; the format's header carries offsets and counts that can only
// be computed once every record is known.
type Writer struct {
	stream  io.Writer
	records []rawRecord
	flushed bool
}

type rawRecord struct {
	typ  byte
	data [turnPointSize]byte
}

// NewWriter returns a Writer that accumulates turnpoints in memory and
// writes the whole database to stream on Flush.
func NewWriter(stream io.Writer) *Writer {
	return &Writer{stream: stream}
}

// Write buffers tp for the eventual Flush.
func (w *Writer) Write(tp domain.TurnPoint) error {
	if w.flushed {
		return pipeline.ErrAlreadyFlushed
	}
	if len(w.records) >= 0xffff {
		return &pipeline.ContainerFullError{Msg: "cenfis db: too many turn points"}
	}

	typ := typeToCenfis(tp.Type)

	var lat, lon int32
	var altitude uint16
	if tp.Position.Defined() {
		lat = angleToCenfis(tp.Position.Latitude.Angle)
		lon = angleToCenfis(negateAngle(tp.Position.Longitude.Angle))
		altitude = uint16(tp.Position.Altitude.ToUnit(geo.AltitudeUnitMeters).Value())
	}

	var freq [3]byte
	if tp.Frequency.Defined() {
		khz := uint32(tp.Frequency.Hertz() / 1000)
		freq[0] = byte(khz >> 16)
		freq[1] = byte(khz >> 8)
		freq[2] = byte(khz)
	}

	title := padFixed(tp.FullName, 14)
	description := padFixed(tp.Description, 14)

	var rwy1 byte
	if tp.Runway.Defined() {
		rwy1 = byte(tp.Runway.Direction / 10)
	}

	var buf bytes.Buffer
	for _, f := range []any{
		lat, lon, altitude, typ, byte(0), freq,
		title, description, rwy1, byte(0), [3]byte{},
	} {
		binary.Write(&buf, binary.BigEndian, f)
	}

	var rec rawRecord
	rec.typ = typ
	copy(rec.data[:], buf.Bytes())
	w.records = append(w.records, rec)
	return nil
}

func negateAngle(a geo.Angle) geo.Angle {
	return geo.NewAngle(-a.Value())
}

func padFixed(s string, n int) [14]byte {
	var out [14]byte
	b := []byte(s)
	if len(b) > n {
		b = b[:n]
	}
	copy(out[:], b)
	for i := len(b); i < n; i++ {
		out[i] = ' '
	}
	return out
}

// Flush sorts the buffered records by title (matching the reference
// writer's `operator<` over the raw title bytes), writes the header,
// turn-point array, 0x150-byte filler, and the four per-type index
// tables, and marks the writer flushed.
func (w *Writer) Flush() error {
	if w.flushed {
		return pipeline.ErrAlreadyFlushed
	}
	w.flushed = true

	sortRecordsByTitle(w.records)

	n := len(w.records)
	fooOffset := uint32(headerSize) + uint32(turnPointSize)*uint32(n)
	tableOffset := fooOffset + uint32(fillerSize)

	var offsets [4][]uint32
	for i, rec := range w.records {
		t := typeToTable(rec.typ)
		if t >= 0 {
			offsets[t] = append(offsets[t], uint32(headerSize)+uint32(turnPointSize)*uint32(i))
		}
	}

	var h header
	h.magic1 = magic1
	h.magic2 = magic2
	for i := 0; i < 4; i++ {
		h.tables[i].offset = tableOffset
		h.tables[i].three = 3
		h.tables[i].count = uint16(len(offsets[i]))
		tableOffset += uint32(len(offsets[i])) * tableEntrySize
	}
	h.headerSizeF = uint32(headerSize)
	h.thirty1 = 0x30
	h.overallCount = uint16(n)
	h.seven1 = 0x07
	h.afterTPOffset = fooOffset
	h.twentyOne1 = 0x21
	h.a1 = 0x0a

	if err := writeHeader(w.stream, &h); err != nil {
		return err
	}

	for _, rec := range w.records {
		if _, err := w.stream.Write(rec.data[:]); err != nil {
			return err
		}
	}

	filler := bytes.Repeat([]byte{0xff}, fillerSize)
	if _, err := w.stream.Write(filler); err != nil {
		return err
	}

	for t := 0; t < 4; t++ {
		for _, offset := range offsets[t] {
			entry := [tableEntrySize]byte{
				byte((offset >> 15) & 0xff),
				byte((offset >> 8) & 0x7f),
				byte(offset),
			}
			if _, err := w.stream.Write(entry[:]); err != nil {
				return err
			}
		}
	}

	return nil
}

// sortRecordsByTitle reproduces the reference's operator<, a raw byte
// comparison of the fixed 14-byte title field (bytes [0:14] of data,
// after the lat/lon/altitude/type/foo1/freq prefix).
func sortRecordsByTitle(records []rawRecord) {
	const titleOffset = 4 + 4 + 2 + 1 + 1 + 3 // lat,lon,altitude,type,foo1,freq
	title := func(r rawRecord) []byte { return r.data[titleOffset : titleOffset+14] }
	// simple insertion sort: record counts are small turnpoint databases,
	// and this avoids pulling in sort.Slice for a byte-slice comparator.
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && bytes.Compare(title(records[j]), title(records[j-1])) < 0; j-- {
			records[j], records[j-1] = records[j-1], records[j]
		}
	}
}
