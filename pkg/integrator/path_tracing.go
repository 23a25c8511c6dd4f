package integrator

import (
	"math"

	"github.com/df07/go-sphere-pathtracer/pkg/core"
	"github.com/df07/go-sphere-pathtracer/pkg/geometry"
)

// HitEpsilon is the lower bound of the hit interval, to avoid shadow acne
// from scattered rays re-hitting their own surface
const HitEpsilon = 0.001

// PathTracingIntegrator implements unidirectional path tracing against a sky gradient
type PathTracingIntegrator struct {
	maxDepth int
	top      core.Color // Sky color straight up
	bottom   core.Color // Sky color at and below the horizon
}

// NewPathTracingIntegrator creates a new path tracing integrator with the default sky
func NewPathTracingIntegrator(config core.SamplingConfig) *PathTracingIntegrator {
	return &PathTracingIntegrator{
		maxDepth: config.MaxDepth,
		top:      core.NewVec3(0.5, 0.7, 1.0),
		bottom:   core.NewVec3(1.0, 1.0, 1.0),
	}
}

// WithSky returns a copy of the integrator using a different sky gradient
func (pt *PathTracingIntegrator) WithSky(top, bottom core.Color) *PathTracingIntegrator {
	c := *pt
	c.top = top
	c.bottom = bottom
	return &c
}

// MaxDepth returns the configured bounce limit
func (pt *PathTracingIntegrator) MaxDepth() int {
	return pt.maxDepth
}

// RayColor computes the color for a single camera ray
func (pt *PathTracingIntegrator) RayColor(ray core.Ray, world geometry.Shape, sampler core.Sampler) core.Color {
	return pt.rayColor(ray, pt.maxDepth, world, sampler)
}

func (pt *PathTracingIntegrator) rayColor(ray core.Ray, depth int, world geometry.Shape, sampler core.Sampler) core.Color {
	// If we've exceeded the ray bounce limit, no more light is gathered
	if depth <= 0 {
		return core.Color{}
	}

	hit, isHit := world.Hit(ray, core.NewInterval(HitEpsilon, math.Inf(1)))
	if !isHit {
		return pt.backgroundGradient(ray)
	}

	scatter, didScatter := hit.Material.Scatter(ray, hit, sampler)
	if !didScatter {
		return core.Color{}
	}

	return scatter.Attenuation.MultiplyVec(pt.rayColor(scatter.Scattered, depth-1, world, sampler))
}

// backgroundGradient blends bottom to top by the ray's vertical direction
func (pt *PathTracingIntegrator) backgroundGradient(ray core.Ray) core.Color {
	unitDirection := ray.Direction.Normalize()
	a := 0.5 * (unitDirection.Y + 1.0)
	return pt.bottom.Lerp(pt.top, a)
}
