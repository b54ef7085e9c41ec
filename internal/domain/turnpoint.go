// Package domain holds the TurnPoint and Airspace record types shared by
// every format reader and writer.
package domain

import "loggertoolsgo/internal/geo"

// RunwayType identifies a runway's surface.
type RunwayType int

const (
	RunwayTypeUnknown RunwayType = iota
	RunwayTypeGrass
	RunwayTypeAsphalt
)

const (
	// RunwayDirectionUndefined marks a Runway with no known heading.
	RunwayDirectionUndefined = 0
	// RunwayLengthUndefined marks a Runway with no known length.
	RunwayLengthUndefined = 0
)

// Runway describes one airfield's landing surface.
type Runway struct {
	Type      RunwayType
	Direction uint // 1..36, or RunwayDirectionUndefined
	Length    uint // meters, or RunwayLengthUndefined
}

// Defined reports whether the runway carries any information at all.
func (r Runway) Defined() bool {
	return r.Type != RunwayTypeUnknown || r.Direction != RunwayDirectionUndefined || r.Length != RunwayLengthUndefined
}

// TurnPointType tags the semantic role of a TurnPoint.
type TurnPointType int

const (
	TurnPointTypeUnknown TurnPointType = iota
	TurnPointTypeAirfield
	TurnPointTypeMilitaryAirfield
	TurnPointTypeGliderSite
	TurnPointTypeUltralightField
	TurnPointTypeOutlanding
	TurnPointTypeMountainPass
	TurnPointTypeMountainTop
	TurnPointTypeRopeway
	TurnPointTypeSender
	TurnPointTypeVOR
	TurnPointTypeNDB
	TurnPointTypeCoolTower
	TurnPointTypeChimney
	TurnPointTypeLake
	TurnPointTypeDam
	TurnPointTypeTunnel
	TurnPointTypeBridge
	TurnPointTypePowerPlant
	TurnPointTypeCastle
	TurnPointTypeChurch
	TurnPointTypeRuin
	TurnPointTypeBuilding
	TurnPointTypeHighwayIntersection
	TurnPointTypeHighwayExit
	TurnPointTypeGarage
	TurnPointTypeRailwayIntersection
	TurnPointTypeRailwayStation
	TurnPointTypeMountainWave
	TurnPointTypeThermals
)

// AirfieldLike is the subset of types the Airfield filter admits.
var AirfieldLike = map[TurnPointType]bool{
	TurnPointTypeAirfield:         true,
	TurnPointTypeMilitaryAirfield: true,
	TurnPointTypeGliderSite:       true,
	TurnPointTypeUltralightField:  true,
	TurnPointTypeOutlanding:       true,
}

// TurnPoint is a named point of navigational interest.
type TurnPoint struct {
	FullName    string
	ShortName   string
	Code        string
	Country     string
	Position    geo.Position
	Type        TurnPointType
	Runway      Runway
	Frequency   geo.Frequency
	Description string
}

// MatchesName reports whether name equals this turnpoint's code, short
// name, or full name exactly — the match rule shared by the Name and
// Distance filters.
func (tp TurnPoint) MatchesName(name string) bool {
	return tp.Code == name || tp.ShortName == name || tp.FullName == name
}
