package domain

import "testing"

func TestParseAndPackRoundTrip(t *testing.T) {
	cases := []string{
		"Foo",
		"Foo|Bar",
		"Foo|-Bar|Baz",
		"Foo|Bar|Baz|Quux|_R",
	}
	for _, packed := range cases {
		n := ParseName(packed)
		if got := n.Pack(); got != packed {
			t.Errorf("ParseName(%q).Pack() = %q, want %q", packed, got, packed)
		}
	}
}

func TestParseNameMarkers(t *testing.T) {
	n := ParseName("Foo|-Bar")
	if n.Name2 != "-Bar" {
		t.Errorf("expected the dash marker to survive parsing, got %q", n.Name2)
	}

	n2 := ParseName("Foo||||_R")
	if n2.TypeOverride != "_R" {
		t.Errorf("expected the underscore marker to survive parsing, got %q", n2.TypeOverride)
	}
}
