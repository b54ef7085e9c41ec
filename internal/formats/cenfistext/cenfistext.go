// Package cenfistext implements the Cenfis multi-line text turnpoint
// format: each turnpoint is a group of fixed-column lines starting with a
// "11 " header line, followed by indented field lines ("N" name, "T" type
// and description, "C"/"K" position, "F" frequency, "R" runway).
//
// Grounded on original_source/tp-cenfis-reader.cc and
// tp-cenfis-writer.cc.
package cenfistext

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"loggertoolsgo/internal/domain"
	"loggertoolsgo/internal/geo"
	"loggertoolsgo/internal/pipeline"
)

// Token is this format's registry token.
const Token = "cenfis"

// Register adds the Cenfis text turnpoint format to reg.
func Register(reg *pipeline.Registry[domain.TurnPoint]) {
	reg.Register(&pipeline.Format[domain.TurnPoint]{
		Tokens:    []string{Token},
		NewReader: func(r io.Reader) (pipeline.Reader[domain.TurnPoint], error) { return NewReader(r), nil },
		NewWriter: func(w io.Writer) (pipeline.Writer[domain.TurnPoint], error) { return NewWriter(w), nil },
	})
}

// Reader reads a Cenfis multi-line text turnpoint stream.
type Reader struct {
	pipeline.StreamCloser
	scanner *bufio.Scanner
	pending *domain.TurnPoint
}

// NewReader returns a Reader over stream.
func NewReader(stream io.Reader) *Reader {
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 1024), 1<<16)
	return &Reader{StreamCloser: pipeline.StreamCloser{Stream: stream}, scanner: scanner}
}

// Read implements pipeline.Reader[domain.TurnPoint].
func (r *Reader) Read() (*domain.TurnPoint, error) {
	for r.scanner.Scan() {
		if ret := r.handleLine(r.scanner.Text()); ret != nil {
			return ret, nil
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	if r.pending != nil {
		ret := r.pending
		r.pending = nil
		return ret, nil
	}
	return nil, nil
}

// handleLine feeds one raw input line into the in-progress record,
// returning the just-completed turnpoint when a new "11 " header (or a
// line not belonging to this format) starts the next one.
func (r *Reader) handleLine(line string) *domain.TurnPoint {
	if semi := strings.IndexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}
	line = strings.TrimRight(line, "\x00\x01\x02\x03\x04\x05\x06\x07\x08\x09\x0b\x0c\x0d\x0e\x0f\x10\x11\x12\x13\x14\x15\x16\x17\x18\x19\x1a\x1b\x1c\x1d\x1e\x1f")

	var completed *domain.TurnPoint

	switch {
	case strings.HasPrefix(line, "11 "):
		completed = r.pending
		tp := domain.TurnPoint{}
		r.pending = &tp
	case strings.HasPrefix(line, "   "):
		// continuation line, falls through to field parsing below
	case line == "" || strings.HasPrefix(line, " "):
		return nil
	default:
		completed = r.pending
		r.pending = nil
		return completed
	}

	if r.pending == nil || len(line) < 3 {
		return completed
	}
	body := line[3:]
	if len(body) == 0 || len(body) < 2 || body[1] != ' ' {
		return completed
	}

	switch body[0] {
	case 'N':
		name := body[2:]
		if name != "" {
			r.pending.FullName = name
		}
	case 'T':
		rest := body[2:]
		switch {
		case strings.HasPrefix(rest, " # "):
			r.pending.Type = domain.TurnPointTypeAirfield
		case strings.HasPrefix(rest, " #M"):
			r.pending.Type = domain.TurnPointTypeMilitaryAirfield
		case strings.HasPrefix(rest, " #S"):
			r.pending.Type = domain.TurnPointTypeGliderSite
		case strings.HasPrefix(rest, "LW "):
			r.pending.Type = domain.TurnPointTypeOutlanding
		case strings.HasPrefix(rest, "TQ "):
			r.pending.Type = domain.TurnPointTypeThermals
		default:
			r.pending.Type = domain.TurnPointTypeUnknown
		}
		if len(rest) > 4 {
			desc := rest[4:]
			if desc != "" && desc != "Waypoint" {
				r.pending.Description = desc
			}
		}
	case 'C':
		parsePosition(r.pending, body[2:], parseAngle60)
	case 'K':
		parsePosition(r.pending, body[2:], parseAngle)
	case 'F':
		r.pending.Frequency = parseFrequency(body[2:])
	case 'R':
		r.pending.Runway = parseRunway(body[2:])
	}

	return completed
}

func parsePosition(tp *domain.TurnPoint, s string, angleParser func(*string, byte, byte) (geo.Angle, bool)) {
	lat, ok := angleParser(&s, 'S', 'N')
	if !ok {
		return
	}
	lon, ok := angleParser(&s, 'W', 'E')
	if !ok {
		return
	}
	alt := parseAltitude(strings.TrimPrefix(s, " "))
	tp.Position = geo.NewPosition(geo.NewLatitude(lat), geo.NewLongitude(lon), alt)
}

// parseAngle parses " D DD MM SSS" (milli-arcminute seconds), consuming
// the matched prefix of *s.
func parseAngle(s *string, negLetter, posLetter byte) (geo.Angle, bool) {
	t := strings.TrimPrefix(*s, " ")
	if t == "" {
		return geo.Angle{}, false
	}
	letter := t[0]
	var sign int
	switch letter {
	case negLetter:
		sign = -1
	case posLetter:
		sign = 1
	default:
		return geo.Angle{}, false
	}
	t = strings.TrimPrefix(t[1:], " ")

	n1, t1, ok := takeUint(t)
	if !ok || n1 > 180 {
		return geo.Angle{}, false
	}
	t = strings.TrimPrefix(t1, " ")
	n2, t2, ok := takeUint(t)
	if !ok || n2 >= 60 {
		return geo.Angle{}, false
	}
	t = strings.TrimPrefix(t2, " ")
	n3, t3, ok := takeUint(t)
	if !ok {
		return geo.Angle{}, false
	}

	*s = t3
	value := sign * int((n1*60+n2)*1000 + n3)
	return geo.NewAngle(int32(value)), true
}

// parseAngle60 parses the same textual shape but treats the third field
// as whole arc-seconds (factor 60) rather than milli-minutes.
func parseAngle60(s *string, negLetter, posLetter byte) (geo.Angle, bool) {
	t := strings.TrimPrefix(*s, " ")
	if t == "" {
		return geo.Angle{}, false
	}
	letter := t[0]
	var sign int
	switch letter {
	case negLetter:
		sign = -1
	case posLetter:
		sign = 1
	default:
		return geo.Angle{}, false
	}
	t = strings.TrimPrefix(t[1:], " ")

	n1, t1, ok := takeUint(t)
	if !ok || n1 > 180 {
		return geo.Angle{}, false
	}
	t = strings.TrimPrefix(t1, " ")
	n2, t2, ok := takeUint(t)
	if !ok || n2 >= 60 {
		return geo.Angle{}, false
	}
	t = strings.TrimPrefix(t2, " ")
	n3, t3, ok := takeUint(t)
	if !ok || n3 >= 60 {
		return geo.Angle{}, false
	}

	*s = t3
	seconds := sign * int((n1*60+n2)*60+n3)
	return geo.NewAngleScaled(seconds, 60), true
}

func takeUint(s string) (uint64, string, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, s, false
	}
	n, err := strconv.ParseUint(s[:i], 10, 64)
	if err != nil {
		return 0, s, false
	}
	return n, s[i:], true
}

func parseAltitude(s string) geo.Altitude {
	if len(s) < 2 {
		return geo.Altitude{}
	}
	var unit geo.AltitudeUnit
	switch s[0] {
	case 'M':
		unit = geo.AltitudeUnitMeters
	case 'F':
		unit = geo.AltitudeUnitFeet
	case 'U':
		return geo.Altitude{}
	default:
		return geo.Altitude{}
	}
	value, err := strconv.ParseInt(s[1:], 10, 64)
	if err != nil {
		return geo.Altitude{}
	}
	return geo.NewAltitude(value, unit, geo.AltitudeRefMSL)
}

func parseFrequency(s string) geo.Frequency {
	s = strings.TrimSpace(s)
	idx := strings.IndexAny(s, " .")
	if idx < 0 {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return geo.Frequency{}
		}
		return geo.NewFrequencyMHzKHz(uint(n), 0)
	}
	mhz, err := strconv.ParseUint(s[:idx], 10, 64)
	if err != nil {
		return geo.Frequency{}
	}
	khz, _ := strconv.ParseUint(strings.TrimSpace(s[idx+1:]), 10, 64)
	return geo.NewFrequencyMHzKHz(uint(mhz), uint(khz))
}

func parseRunway(s string) domain.Runway {
	rwy := domain.Runway{Type: domain.RunwayTypeUnknown, Direction: domain.RunwayDirectionUndefined, Length: domain.RunwayLengthUndefined}
	for _, word := range strings.Fields(s) {
		if n, err := strconv.ParseUint(word, 10, 64); err == nil {
			switch {
			case n >= 100:
				rwy.Length = uint(n)
			case n > 0 && n <= 36 && rwy.Direction == domain.RunwayDirectionUndefined:
				rwy.Direction = uint(n)
			}
			continue
		}
		upper := strings.ToUpper(word)
		switch {
		case strings.HasPrefix(upper, "GR"):
			rwy.Type = domain.RunwayTypeGrass
		case strings.HasPrefix(upper, "AS"), strings.HasPrefix(upper, "SO"):
			rwy.Type = domain.RunwayTypeAsphalt
		}
	}
	return rwy
}

// Writer writes a Cenfis multi-line text turnpoint stream.
type Writer struct {
	w       *bufio.Writer
	flushed bool
}

// NewWriter returns a Writer that has already emitted the file header.
func NewWriter(stream io.Writer) *Writer {
	w := bufio.NewWriter(stream)
	fmt.Fprint(w, "0 created by loggertools\n")
	return &Writer{w: w}
}

func formatType(t domain.TurnPointType) string {
	switch t {
	case domain.TurnPointTypeAirfield:
		return " # "
	case domain.TurnPointTypeMilitaryAirfield:
		return " #M"
	case domain.TurnPointTypeGliderSite:
		return " #S"
	case domain.TurnPointTypeOutlanding:
		return "LW "
	default:
		return "   "
	}
}

func formatAngleWriter(a geo.Angle, neg, pos byte) string {
	value := int(a.Value())
	abs := value
	if abs < 0 {
		abs = -abs
	}
	letter := pos
	if value < 0 {
		letter = neg
	}
	return fmt.Sprintf("%c %02d %02d %03d", letter, abs/60000, (abs/1000)%60, abs%1000)
}

// Write implements pipeline.Writer[domain.TurnPoint].
func (w *Writer) Write(tp domain.TurnPoint) error {
	if w.flushed {
		return pipeline.ErrAlreadyFlushed
	}

	name := tp.Code
	if name == "" {
		name = tp.FullName
	}
	if name == "" {
		name = "unknown"
	}
	fmt.Fprintf(w.w, "11 N %s\n", name)

	fmt.Fprintf(w.w, "   T %s", formatType(tp.Type))
	if tp.FullName != "" {
		fmt.Fprintf(w.w, " %s", tp.FullName)
	}
	w.w.WriteByte('\n')

	if tp.Position.Defined() {
		latitude := formatAngleWriter(tp.Position.Latitude.Angle, 'S', 'N')
		longitude := formatAngleWriter(tp.Position.Longitude.Angle, 'W', 'E')
		fmt.Fprintf(w.w, "   K %s %s", latitude, longitude)

		if tp.Position.Altitude.Defined() {
			var letter byte
			switch tp.Position.Altitude.Unit() {
			case geo.AltitudeUnitMeters:
				letter = 'M'
			case geo.AltitudeUnitFeet:
				letter = 'F'
			default:
				letter = 'U'
			}
			fmt.Fprintf(w.w, " %c%d", letter, tp.Position.Altitude.Value())
		} else {
			fmt.Fprint(w.w, " U     0")
		}
		w.w.WriteByte('\n')
	}

	if tp.Frequency.Defined() {
		fmt.Fprintf(w.w, "  F %d.%03d\n", tp.Frequency.MegaHertz(), tp.Frequency.KiloHertzPart())
	}

	if tp.Runway.Defined() {
		fmt.Fprintf(w.w, "   R %02d", tp.Runway.Direction/10)
		if tp.Runway.Length > 0 {
			fmt.Fprintf(w.w, " %04d", tp.Runway.Length)
		}
		switch tp.Runway.Type {
		case domain.RunwayTypeGrass:
			fmt.Fprint(w.w, " GR")
		case domain.RunwayTypeAsphalt:
			fmt.Fprint(w.w, " AS")
		}
		w.w.WriteByte('\n')
	}

	return w.w.Flush()
}

// Flush writes the trailing end-of-file line and flushes the underlying
// writer.
func (w *Writer) Flush() error {
	if w.flushed {
		return pipeline.ErrAlreadyFlushed
	}
	w.flushed = true
	fmt.Fprint(w.w, "0 End of File, created by loggertools\n")
	return w.w.Flush()
}
