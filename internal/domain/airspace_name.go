package domain

import "strings"

// AirspaceName is the decomposed form of an Airspace.Name: up to four
// pipe-separated sub-components plus a trailing type-override string, used
// to round-trip the Cenfis device's multi-line AN/AN2/AN3/AN4 names.
//
// Two bug-compatibility markers survive the round-trip unchanged (see
// DESIGN.md, "Open questions, resolved" — "Airspace name-packing
// markers"): a leading '-' on
// Name2 means "the device emitted AN4 before AN2", and a leading '_' on
// TypeOverride means "the device had no explicit starting vertex".
type AirspaceName struct {
	Name         string
	Name2        string
	Name3        string
	Name4        string
	TypeOverride string
}

// ParseName splits a packed Airspace.Name into its components.
func ParseName(packed string) AirspaceName {
	parts := strings.SplitN(packed, "|", 5)
	var n AirspaceName
	if len(parts) > 0 {
		n.Name = parts[0]
	}
	if len(parts) > 1 {
		n.Name2 = parts[1]
	}
	if len(parts) > 2 {
		n.Name3 = parts[2]
	}
	if len(parts) > 3 {
		n.Name4 = parts[3]
	}
	if len(parts) > 4 {
		n.TypeOverride = parts[4]
	}
	return n
}

// Pack reassembles the decomposed name into Airspace.Name's packed form,
// omitting trailing empty components.
func (n AirspaceName) Pack() string {
	fields := []string{n.Name, n.Name2, n.Name3, n.Name4, n.TypeOverride}
	last := 0
	for i, f := range fields {
		if f != "" {
			last = i
		}
	}
	return strings.Join(fields[:last+1], "|")
}
