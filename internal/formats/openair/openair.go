// Package openair implements the OpenAir plain-text airspace format: one
// blank-line-separated record per airspace, AC/AN/AL/AH header lines
// followed by DP vertex lines. The reader parses only those lines: the V,
// DC and DB lines of circles and arcs are rejected as malformed input.
//
// Grounded on original_source/airspace-openair-reader.cc and
// airspace-openair-writer.cc.
package openair

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
const Token = "openair"

// Register adds the OpenAir format to reg.
func Register(reg *pipeline.Registry[domain.Airspace]) {
	reg.Register(&pipeline.Format[domain.Airspace]{
		Tokens:    []string{Token, "air"},
		NewReader: func(r io.Reader) (pipeline.Reader[domain.Airspace], error) { return NewReader(r), nil },
		NewWriter: func(w io.Writer) (pipeline.Writer[domain.Airspace], error) { return NewWriter(w), nil },
	})
}

// Reader reads an OpenAir airspace stream.
type Reader struct {
	pipeline.StreamCloser
	scanner *bufio.Scanner
}

// NewReader returns a Reader over stream.
func NewReader(stream io.Reader) *Reader {
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 512), 1<<16)
	return &Reader{StreamCloser: pipeline.StreamCloser{Stream: stream}, scanner: scanner}
}

// Read implements pipeline.Reader[domain.Airspace].
func (r *Reader) Read() (*domain.Airspace, error) {
	var as domain.Airspace

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if strings.HasPrefix(line, "*") {
			continue
		}
		line = strings.TrimRight(line, " \t\r\n")
		if line == "" {
			if len(as.Edges) == 0 {
				continue
			}
			return &as, nil
		}

		switch {
		case strings.HasPrefix(line, "A") && len(line) >= 3 && line[2] == ' ':
			rest := line[3:]
			switch line[1] {
			case 'C':
				as.Type = parseType(rest)
			case 'N':
				as.Name = rest
			case 'L':
				alt, err := parseAltitude(rest)
				if err != nil {
					return nil, err
				}
				as.Bottom = alt
			case 'H':
				alt, err := parseAltitude(rest)
				if err != nil {
					return nil, err
				}
				as.Top = alt
			default:
				return nil, pipeline.NewMalformedInput("invalid command")
			}
		case strings.HasPrefix(line, "DP "):
			pos, err := parseVertex(line[3:])
			if err != nil {
				return nil, err
			}
			as.Edges = append(as.Edges, domain.NewVertexEdge(pos))
		default:
			return nil, pipeline.NewMalformedInput("invalid command")
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	if len(as.Edges) > 0 {
		return &as, nil
	}
	return nil, nil
}

func parseType(s string) domain.AirspaceType {
	switch s {
	case "A":
		return domain.AirspaceTypeAlpha
	case "B":
		return domain.AirspaceTypeBravo
	case "C":
		return domain.AirspaceTypeCharly
	case "D":
		return domain.AirspaceTypeDelta
	case "E":
		return domain.AirspaceTypeEchoLow
	case "W":
		return domain.AirspaceTypeEchoHigh
	case "F":
		return domain.AirspaceTypeFox
	case "CTR":
		return domain.AirspaceTypeCTR
	case "TMZ":
		return domain.AirspaceTypeTMZ
	case "R", "TRA", "GP":
		return domain.AirspaceTypeRestricted
	case "Q":
		return domain.AirspaceTypeDanger
	case "GSEC":
		return domain.AirspaceTypeGlider
	default:
		return domain.AirspaceTypeUnknown
	}
}

func parseAltitude(s string) (geo.Altitude, error) {
	if strings.HasPrefix(s, "FL") {
		n, err := strconv.ParseInt(strings.TrimSpace(s[2:]), 10, 64)
		if err != nil {
			return geo.Altitude{}, nil
		}
		return geo.NewAltitude(n*1000, geo.AltitudeUnitFeet, geo.AltitudeRef1013), nil
	}

	i := 0
	for i < len(s) && (s[i] == '-' || (s[i] >= '0' && s[i] <= '9')) {
		i++
	}
	var value int64
	if i > 0 {
		value, _ = strconv.ParseInt(s[:i], 10, 64)
	}
	rest := strings.TrimSpace(s[i:])
	var ref geo.AltitudeRef
	switch rest {
	case "GND":
		ref = geo.AltitudeRefGND
	case "MSL":
		ref = geo.AltitudeRefMSL
	default:
		ref = geo.AltitudeRefUnknown
	}
	return geo.NewAltitude(value, geo.AltitudeUnitFeet, ref), nil
}

func parseVertex(s string) (geo.SurfacePosition, error) {
	var lat1, lat2, lat3, lon1, lon2, lon3 int
	var latSN, lonWE string
	n, err := fmt.Sscanf(s, "%d:%d:%d %s %d:%d:%d %s", &lat1, &lat2, &lat3, &latSN, &lon1, &lon2, &lon3, &lonWE)
	if err != nil || n != 8 {
		return geo.SurfacePosition{}, pipeline.NewMalformedInput("malformed DP line")
	}
	latSN = strings.TrimSpace(latSN)
	lonWE = strings.TrimSpace(lonWE)

	latitude := (lat1*60+lat2)*1000 + (lat3*1000+499)/60
	longitude := (lon1*60+lon2)*1000 + (lon3*1000+499)/60

	switch latSN {
	case "S":
		latitude = -latitude
	case "N":
	default:
		return geo.SurfacePosition{}, pipeline.NewMalformedInput("expected 'S' or 'N'")
	}
	switch lonWE {
	case "W":
		longitude = -longitude
	case "E":
	default:
		return geo.SurfacePosition{}, pipeline.NewMalformedInput("expected 'W' or 'E'")
	}

	return geo.NewSurfacePosition(geo.NewLatitude(geo.NewAngle(int32(latitude))), geo.NewLongitude(geo.NewAngle(int32(longitude)))), nil
}

// Writer writes an OpenAir airspace stream.
type Writer struct {
	w       *bufio.Writer
	flushed bool
}

// NewWriter returns a Writer that has already emitted the file header.
func NewWriter(stream io.Writer) *Writer {
	w := bufio.NewWriter(stream)
	fmt.Fprint(w, "* Written by loggertools\n\n")
	return &Writer{w: w}
}

func typeToString(t domain.AirspaceType) string {
	switch t {
	case domain.AirspaceTypeUnknown:
		return "UNKNOWN"
	case domain.AirspaceTypeAlpha:
		return "A"
	case domain.AirspaceTypeBravo:
		return "B"
	case domain.AirspaceTypeCharly:
		return "C"
	case domain.AirspaceTypeDelta:
		return "D"
	case domain.AirspaceTypeEchoLow:
		return "E"
	case domain.AirspaceTypeEchoHigh:
		return "W"
	case domain.AirspaceTypeFox:
		return "F"
	case domain.AirspaceTypeCTR:
		return "CTR"
	case domain.AirspaceTypeTMZ:
		return "TMZ"
	case domain.AirspaceTypeRestricted:
		return "R"
	case domain.AirspaceTypeDanger:
		return "Q"
	case domain.AirspaceTypeGlider:
		return "GSEC"
	default:
		return "INVALID"
	}
}

func formatAltitude(alt geo.Altitude) string {
	if !alt.Defined() {
		return "UNKNOWN"
	}

	value := alt.Value()
	ref := alt.Ref()
	if value == 0 && ref == geo.AltitudeRefGND {
		return "GND"
	}

	switch alt.Unit() {
	case geo.AltitudeUnitMeters:
		value = (value * 10) / 3
	case geo.AltitudeUnitFeet:
	default:
		return "UNKNOWN"
	}

	var refStr string
	switch ref {
	case geo.AltitudeRefMSL:
		refStr = "MSL"
	case geo.AltitudeRefGND, geo.AltitudeRefAirfield:
		refStr = "GND"
	case geo.AltitudeRef1013:
		refStr = "FL"
	default:
		refStr = "UNKNOWN"
	}

	if ref == geo.AltitudeRef1013 {
		return fmt.Sprintf("%s%d", refStr, (value+499)/1000)
	}
	return fmt.Sprintf("%04d%s", value, refStr)
}

func formatVertex(pos geo.SurfacePosition) string {
	latitude := pos.Latitude.Rescale(60)
	absLat := latitude
	if absLat < 0 {
		absLat = -absLat
	}
	longitude := pos.Longitude.Rescale(60)
	absLon := longitude
	if absLon < 0 {
		absLon = -absLon
	}

	latLetter := byte('N')
	if latitude < 0 {
		latLetter = 'S'
	}
	lonLetter := byte('E')
	if longitude < 0 {
		lonLetter = 'W'
	}

	return fmt.Sprintf("%02d:%02d:%02d %c %03d:%02d:%02d %c",
		absLat/3600, (absLat/60)%60, absLat%60, latLetter,
		absLon/3600, (absLon/60)%60, absLon%60, lonLetter)
}

// Write implements pipeline.Writer[domain.Airspace].
func (w *Writer) Write(as domain.Airspace) error {
	if w.flushed {
		return pipeline.ErrAlreadyFlushed
	}

	fmt.Fprintf(w.w, "AC %s\n", typeToString(as.Type))
	fmt.Fprintf(w.w, "AN %s\n", as.Name)
	fmt.Fprintf(w.w, "AL %s\n", formatAltitude(as.Bottom))
	fmt.Fprintf(w.w, "AH %s\n", formatAltitude(as.Top))

	for i, edge := range as.Edges {
		switch edge.Type {
		case domain.EdgeTypeVertex:
			fmt.Fprintf(w.w, "DP %s\n", formatVertex(edge.End))
		case domain.EdgeTypeCircle:
			fmt.Fprintf(w.w, "V X=%s\n", formatVertex(edge.Center))
			fmt.Fprintf(w.w, "DC %s\n", formatDistanceNM(edge.Radius))
		case domain.EdgeTypeArc:
			if i > 0 && as.Edges[i-1].Type == domain.EdgeTypeVertex {
				if edge.Sign < 0 {
					fmt.Fprint(w.w, "V D=-\n")
				}
				fmt.Fprintf(w.w, "V X=%s\n", formatVertex(edge.Center))
				fmt.Fprintf(w.w, "DB %s,%s\n", formatVertex(as.Edges[i-1].End), formatVertex(edge.End))
			}
		}
	}

	fmt.Fprint(w.w, "\n")
	return w.w.Flush()
}

func formatDistanceNM(d geo.Distance) string {
	if !d.Defined() {
		return "UNKNOWN"
	}
	nm := d.ToUnit(geo.DistanceUnitNauticalMiles)
	return strconv.FormatFloat(nm.Value(), 'f', -1, 64)
}

// Flush implements pipeline.Writer[domain.Airspace].
func (w *Writer) Flush() error {
	if w.flushed {
		return pipeline.ErrAlreadyFlushed
	}
	w.flushed = true
	return w.w.Flush()
}
