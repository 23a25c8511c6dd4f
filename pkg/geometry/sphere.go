package geometry

import (
	"math"

	"github.com/df07/go-sphere-pathtracer/pkg/core"
	"github.com/df07/go-sphere-pathtracer/pkg/material"
)

// Sphere represents a sphere shape, optionally moving linearly between two
// centers over the shutter interval [0, 1]
type Sphere struct {
	Center   core.Point3 // Center at time 0
	Radius   float64     // Negative radii flip the normals, for hollow shells
	Material material.Material

	isMoving     bool
	centerVector core.Vec3 // Displacement from time 0 to time 1
}

// NewSphere creates a new stationary sphere
func NewSphere(center core.Point3, radius float64, material material.Material) *Sphere {
	return &Sphere{
		Center:   center,
		Radius:   radius,
		Material: material,
	}
}

// NewMovingSphere creates a sphere whose center travels from center1 at time 0 to center2 at time 1
func NewMovingSphere(center1, center2 core.Point3, radius float64, material material.Material) *Sphere {
	return &Sphere{
		Center:       center1,
		Radius:       radius,
		Material:     material,
		isMoving:     true,
		centerVector: center2.Subtract(center1),
	}
}

// IsMoving reports whether the sphere was constructed with two centers
func (s *Sphere) IsMoving() bool {
	return s.isMoving
}

// CenterAt returns the center of the sphere at the given ray time
func (s *Sphere) CenterAt(time float64) core.Point3 {
	if !s.isMoving {
		return s.Center
	}
	return s.Center.Add(s.centerVector.Multiply(time))
}

// Hit tests if a ray intersects with the sphere
func (s *Sphere) Hit(ray core.Ray, rayT core.Interval) (*material.HitRecord, bool) {
	center := s.CenterAt(ray.Time)

	// Vector from sphere center to ray origin
	oc := ray.Origin.Subtract(center)

	// Quadratic equation coefficients: at² + 2·halfB·t + c = 0
	a := ray.Direction.LengthSquared()
	halfB := oc.Dot(ray.Direction)
	c := oc.LengthSquared() - s.Radius*s.Radius

	discriminant := halfB*halfB - a*c
	if discriminant < 0 {
		return nil, false
	}

	sqrtD := math.Sqrt(discriminant)

	// Try the closer intersection point first
	root := (-halfB - sqrtD) / a
	if !rayT.Surrounds(root) {
		root = (-halfB + sqrtD) / a
		if !rayT.Surrounds(root) {
			return nil, false
		}
	}

	hitRecord := &material.HitRecord{
		T:        root,
		Point:    ray.At(root),
		Material: s.Material,
	}

	// Outward normal is taken from the center at the ray's time
	outwardNormal := hitRecord.Point.Subtract(center).Divide(s.Radius)
	hitRecord.SetFaceNormal(ray, outwardNormal)

	return hitRecord, true
}
