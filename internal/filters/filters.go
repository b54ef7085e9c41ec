// Package filters implements the turnpoint reader-to-reader adapters:
// Airfield, Name and Distance, grounded in the reference implementation's
// tp-name.cc and tp-distance.cc.
package filters

import (
	"strconv"
	"strings"

	"loggertoolsgo/internal/domain"
	"loggertoolsgo/internal/geo"
	"loggertoolsgo/internal/pipeline"
)

// predicateReader admits only TurnPoints for which keep returns true.
type predicateReader struct {
	inner pipeline.Reader[domain.TurnPoint]
	keep  func(domain.TurnPoint) bool
}

func (r *predicateReader) Read() (*domain.TurnPoint, error) {
	for {
		v, err := r.inner.Read()
		if err != nil || v == nil {
			return v, err
		}
		if r.keep(*v) {
			return v, nil
		}
	}
}

func (r *predicateReader) Close() error { return r.inner.Close() }

// Airfield admits only turnpoints whose type is in the airfield-like
// subset (airfield, military airfield, glider site, ultralight field,
// outlanding).
func Airfield(inner pipeline.Reader[domain.TurnPoint]) pipeline.Reader[domain.TurnPoint] {
	return &predicateReader{inner: inner, keep: func(tp domain.TurnPoint) bool {
		return domain.AirfieldLike[tp.Type]
	}}
}

// Name admits only turnpoints whose code, short name, or full name equals
// name exactly.
func Name(inner pipeline.Reader[domain.TurnPoint], name string) (pipeline.Reader[domain.TurnPoint], error) {
	if name == "" {
		return nil, pipeline.NewMalformedInput("no name provided")
	}
	return &predicateReader{inner: inner, keep: func(tp domain.TurnPoint) bool {
		return tp.MatchesName(name)
	}}, nil
}

// Distance admits turnpoints within a given great-circle distance of a
// reference point. args is either a position literal followed by a
// distance (parsed by parsePositionAndDistance), or "NAME:DISTANCE", in which
// case the reference point is the position of the unique upstream
// turnpoint matching NAME — located by buffering the upstream sequence
// with a RewindReader and rewinding once found.
func Distance(inner pipeline.Reader[domain.TurnPoint], args string) (pipeline.Reader[domain.TurnPoint], error) {
	if args == "" {
		return nil, pipeline.NewMalformedInput("no maximum distance provided")
	}

	if center, radius, ok := parsePositionAndDistance(args); ok {
		return &predicateReader{inner: inner, keep: func(tp domain.TurnPoint) bool {
			if !tp.Position.Defined() {
				return false
			}
			d := geo.GreatCircleDistance(center, tp.Position.SurfacePosition)
			return d.LessOrEqual(radius)
		}}, nil
	}

	colon := strings.IndexByte(args, ':')
	if colon < 0 {
		return nil, pipeline.NewMalformedInput("radius is missing")
	}
	name := args[:colon]
	radius, err := ParseDistance(args[colon+1:])
	if err != nil {
		return nil, err
	}

	rr := pipeline.NewRewindReader(inner, 0)
	return newNameDistanceReader(rr, name, radius), nil
}

// nameDistanceReader first locates the unique turnpoint matching name by
// consuming rr, then rewinds and re-emits every turnpoint (including those
// consumed before the match) within radius of the match's position.
type nameDistanceReader struct {
	rr     *pipeline.RewindReader[domain.TurnPoint]
	name   string
	radius geo.Distance
	center *geo.SurfacePosition
}

func newNameDistanceReader(rr *pipeline.RewindReader[domain.TurnPoint], name string, radius geo.Distance) *nameDistanceReader {
	return &nameDistanceReader{rr: rr, name: name, radius: radius}
}

func (r *nameDistanceReader) Read() (*domain.TurnPoint, error) {
	if r.center == nil {
		for {
			v, err := r.rr.Read()
			if err != nil {
				return nil, err
			}
			if v == nil {
				return nil, pipeline.NewMalformedInput("no turnpoint matches the reference name '" + r.name + "'")
			}
			if v.MatchesName(r.name) {
				pos := v.Position.SurfacePosition
				r.center = &pos
				r.rr.Rewind()
				break
			}
		}
	}

	for {
		v, err := r.rr.Read()
		if err != nil || v == nil {
			return v, err
		}
		if !v.Position.Defined() {
			continue
		}
		d := geo.GreatCircleDistance(*r.center, v.Position.SurfacePosition)
		if d.LessOrEqual(r.radius) {
			return v, nil
		}
	}
}

func (r *nameDistanceReader) Close() error { return r.rr.Close() }

// parsePositionAndDistance attempts to parse args as "<position> <distance>".
// It returns ok=false (not an error) if args doesn't look like a position
// literal, so the caller can fall through to the NAME:DISTANCE form.
func parsePositionAndDistance(args string) (geo.SurfacePosition, geo.Distance, bool) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return geo.SurfacePosition{}, geo.Distance{}, false
	}
	lat, lon, ok := parsePositionLiteral(fields[0])
	if !ok {
		return geo.SurfacePosition{}, geo.Distance{}, false
	}
	radius, err := ParseDistance(strings.Join(fields[1:], ""))
	if err != nil {
		return geo.SurfacePosition{}, geo.Distance{}, false
	}
	return geo.NewSurfacePosition(lat, lon), radius, true
}

// parsePositionLiteral parses "DDMMSS[N|S],DDDMMSS[E|W]" (comma separated,
// no spaces inside each half).
func parsePositionLiteral(s string) (geo.Latitude, geo.Longitude, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.Latitude{}, geo.Longitude{}, false
	}
	lat, ok1 := parseHemisphereAngle(parts[0], 'S', 'N')
	lon, ok2 := parseHemisphereAngle(parts[1], 'W', 'E')
	if !ok1 || !ok2 {
		return geo.Latitude{}, geo.Longitude{}, false
	}
	return geo.NewLatitude(lat), geo.NewLongitude(lon), true
}

func parseHemisphereAngle(s string, neg, pos byte) (geo.Angle, bool) {
	if len(s) < 2 {
		return geo.Angle{}, false
	}
	last := s[len(s)-1]
	sign := 1
	switch last {
	case neg:
		sign = -1
	case pos:
		sign = 1
	default:
		return geo.Angle{}, false
	}
	digits := s[:len(s)-1]
	n, err := strconv.Atoi(digits)
	if err != nil {
		return geo.Angle{}, false
	}
	seconds := n % 100
	n /= 100
	minutes := n % 100
	n /= 100
	degrees := n
	return geo.NewAngleDMS(sign, uint(degrees), uint(minutes), uint(seconds)), true
}

// ParseDistance parses a distance literal such as "1km", "500m", "3ft",
// "1.5NM". Units are matched exactly as the original earth-parser.cc does
// ("NM" for nautical miles is uppercase only; "m"/"km"/"ft" are lowercase
// only), not as a case-insensitive or loosely-matched suffix.
func ParseDistance(s string) (geo.Distance, error) {
	s = strings.TrimSpace(s)
	for _, u := range []struct {
		suffix string
		unit   geo.DistanceUnit
		scale  float64
	}{
		{"km", geo.DistanceUnitMeters, 1000},
		{"ft", geo.DistanceUnitFeet, 1},
		{"NM", geo.DistanceUnitNauticalMiles, 1},
		{"m", geo.DistanceUnitMeters, 1},
	} {
		if strings.HasSuffix(s, u.suffix) {
			numeric := strings.TrimSuffix(s, u.suffix)
			v, err := strconv.ParseFloat(numeric, 64)
			if err != nil {
				return geo.Distance{}, pipeline.NewMalformedInput("malformed distance: " + s)
			}
			return geo.NewDistance(u.unit, v*u.scale), nil
		}
	}
	return geo.Distance{}, pipeline.NewMalformedInput("malformed distance: " + s)
}
