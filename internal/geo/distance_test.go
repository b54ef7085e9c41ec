package geo

import "testing"

func TestDistanceMeters(t *testing.T) {
	cases := []struct {
		name string
		d    Distance
		want float64
	}{
		{"meters", NewDistance(DistanceUnitMeters, 1000), 1000},
		{"feet", NewDistance(DistanceUnitFeet, 3280.8399), 1000},
		{"nautical miles", NewDistance(DistanceUnitNauticalMiles, 1), 1852},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := c.d.Meters()
			if diff := got - c.want; diff > 0.01 || diff < -0.01 {
				t.Errorf("Meters() = %v, want ~%v", got, c.want)
			}
		})
	}
}

func TestDistanceLess(t *testing.T) {
	a := NewDistance(DistanceUnitMeters, 500)
	b := NewDistance(DistanceUnitNauticalMiles, 1)
	if !a.Less(b) {
		t.Fatal("500m should be less than 1nm (1852m)")
	}
	if !a.LessOrEqual(b) {
		t.Fatal("500m should be <= 1nm")
	}
}

func TestDistanceUndefined(t *testing.T) {
	var d Distance
	if d.Defined() {
		t.Fatal("zero-value Distance should be undefined")
	}
}
