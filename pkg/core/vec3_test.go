package core

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestVec3_Arithmetic(t *testing.T) {
	a := NewVec3(1, 2, 3)
	b := NewVec3(4, -5, 6)

	tests := []struct {
		name string
		got  Vec3
		want Vec3
	}{
		{"Add", a.Add(b), NewVec3(5, -3, 9)},
		{"Subtract", a.Subtract(b), NewVec3(-3, 7, -3)},
		{"Multiply", a.Multiply(2), NewVec3(2, 4, 6)},
		{"Divide", b.Divide(2), NewVec3(2, -2.5, 3)},
		{"MultiplyVec", a.MultiplyVec(b), NewVec3(4, -10, 18)},
		{"Negate", a.Negate(), NewVec3(-1, -2, -3)},
		{"Cross", NewVec3(1, 0, 0).Cross(NewVec3(0, 1, 0)), NewVec3(0, 0, 1)},
		{"Lerp", NewVec3(1, 1, 1).Lerp(NewVec3(0.5, 0.7, 1.0), 0.5), NewVec3(0.75, 0.85, 1.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.got, tt.want, approx); diff != "" {
				t.Errorf("Bad result; diff (-got +want)\n%s", diff)
			}
		})
	}

	if got := a.Dot(b); got != 12 {
		t.Errorf("Dot: expected 12, got %f", got)
	}
	if got := NewVec3(3, 4, 0).Length(); got != 5 {
		t.Errorf("Length: expected 5, got %f", got)
	}
	if got := NewVec3(3, 4, 0).LengthSquared(); got != 25 {
		t.Errorf("LengthSquared: expected 25, got %f", got)
	}
}

func TestVec3_NormalizeHasUnitLength(t *testing.T) {
	sampler := NewSeededSampler(7)
	for i := 0; i < 1000; i++ {
		v := RandomVec3Range(sampler, -100, 100)
		if v.NearZero() {
			continue
		}
		if l := v.Normalize().Length(); math.Abs(l-1) > 1e-12 {
			t.Fatalf("Normalize(%v) has length %f", v, l)
		}
	}
}

func TestVec3_NearZero(t *testing.T) {
	tests := []struct {
		name string
		v    Vec3
		want bool
	}{
		{"zero", NewVec3(0, 0, 0), true},
		{"tiny", NewVec3(1e-9, -1e-9, 5e-9), true},
		{"one component large", NewVec3(1e-9, 1e-7, 0), false},
		{"at threshold", NewVec3(1e-8, 0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.NearZero(); got != tt.want {
				t.Errorf("NearZero(%v) = %t, want %t", tt.v, got, tt.want)
			}
		})
	}
}

func TestReflect_NegatesNormalComponent(t *testing.T) {
	sampler := NewSeededSampler(11)
	for i := 0; i < 200; i++ {
		v := RandomVec3Range(sampler, -1, 1)
		n := RandomUnitVector(sampler)
		r := Reflect(v, n)

		if math.Abs(r.Dot(n)+v.Dot(n)) > 1e-12 {
			t.Fatalf("dot(reflect(v,n), n) = %f, want %f", r.Dot(n), -v.Dot(n))
		}
		if math.Abs(r.Length()-v.Length()) > 1e-12 {
			t.Fatalf("Reflection changed length: %f vs %f", r.Length(), v.Length())
		}
		// Reflecting twice returns the original vector
		if diff := cmp.Diff(Reflect(r, n), v, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
			t.Fatalf("Double reflection; diff (-got +want)\n%s", diff)
		}
	}
}

func TestRefract(t *testing.T) {
	n := NewVec3(0, 1, 0)

	// Normal incidence passes straight through regardless of the ratio
	straight := Refract(NewVec3(0, -1, 0), n, 1.0/1.5)
	if diff := cmp.Diff(straight, NewVec3(0, -1, 0), approx); diff != "" {
		t.Errorf("Normal incidence; diff (-got +want)\n%s", diff)
	}

	// Snell's law: eta_i sin(theta_i) = eta_t sin(theta_t)
	in := NewVec3(1, -1, 0).Normalize()
	ratio := 1.0 / 1.5
	out := Refract(in, n, ratio)
	sinIn := math.Abs(in.X)
	sinOut := math.Abs(out.Normalize().X)
	if math.Abs(sinIn*ratio-sinOut) > 1e-9 {
		t.Errorf("Snell's law violated: sinIn*ratio=%f sinOut=%f", sinIn*ratio, sinOut)
	}
	if out.Y >= 0 {
		t.Errorf("Refracted ray should continue below the surface, got %v", out)
	}

	// Ratio of one leaves unit directions unchanged
	same := Refract(in, n, 1.0)
	if diff := cmp.Diff(same, in, approx); diff != "" {
		t.Errorf("Index-matched refraction; diff (-got +want)\n%s", diff)
	}
}

func TestDegreesToRadians(t *testing.T) {
	if got := DegreesToRadians(180); math.Abs(got-math.Pi) > 1e-12 {
		t.Errorf("Expected pi, got %f", got)
	}
}
