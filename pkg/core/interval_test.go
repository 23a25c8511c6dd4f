package core

import (
	"math"
	"testing"
)

func TestInterval(t *testing.T) {
	i := NewInterval(0.001, 10)

	tests := []struct {
		name          string
		x             float64
		wantContains  bool
		wantSurrounds bool
	}{
		{"inside", 5, true, true},
		{"at min", 0.001, true, false},
		{"at max", 10, true, false},
		{"below", 0, false, false},
		{"above", 11, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := i.Contains(tt.x); got != tt.wantContains {
				t.Errorf("Contains(%f) = %t, want %t", tt.x, got, tt.wantContains)
			}
			if got := i.Surrounds(tt.x); got != tt.wantSurrounds {
				t.Errorf("Surrounds(%f) = %t, want %t", tt.x, got, tt.wantSurrounds)
			}
		})
	}
}

func TestInterval_Clamp(t *testing.T) {
	i := NewInterval(0, 0.999)
	if got := i.Clamp(-1); got != 0 {
		t.Errorf("Expected 0, got %f", got)
	}
	if got := i.Clamp(2); got != 0.999 {
		t.Errorf("Expected 0.999, got %f", got)
	}
	if got := i.Clamp(0.5); got != 0.5 {
		t.Errorf("Expected 0.5, got %f", got)
	}
}

func TestInterval_EmptyAndUniverse(t *testing.T) {
	for _, x := range []float64{-1e300, 0, 1e300} {
		if EmptyInterval.Contains(x) {
			t.Errorf("Empty interval contains %f", x)
		}
		if !UniverseInterval.Surrounds(x) {
			t.Errorf("Universe interval does not surround %f", x)
		}
	}
	if !math.IsInf(UniverseInterval.Size(), 1) {
		t.Errorf("Universe size should be +Inf, got %f", UniverseInterval.Size())
	}
}

func TestRay_At(t *testing.T) {
	r := NewRayAtTime(NewVec3(1, 0, 0), NewVec3(0, 2, 0), 0.25)
	if got := r.At(1.5); !got.Equals(NewVec3(1, 3, 0)) {
		t.Errorf("Expected (1,3,0), got %v", got)
	}
	if got := r.At(-1); !got.Equals(NewVec3(1, -2, 0)) {
		t.Errorf("Expected (1,-2,0), got %v", got)
	}
	if r.Time != 0.25 {
		t.Errorf("Expected time 0.25, got %f", r.Time)
	}
}
