package renderer

import (
	"github.com/df07/go-sphere-pathtracer/pkg/core"
	"github.com/df07/go-sphere-pathtracer/pkg/geometry"
	"github.com/df07/go-sphere-pathtracer/pkg/material"
)

// testScene implements Scene for renderer tests
type testScene struct {
	camera      *Camera
	world       geometry.Shape
	top, bottom core.Color
	config      core.SamplingConfig
}

func (s *testScene) GetCamera() *Camera { return s.camera }
func (s *testScene) GetWorld() geometry.Shape { return s.world }
func (s *testScene) GetBackgroundColors() (core.Color, core.Color) { return s.top, s.bottom }
func (s *testScene) GetSamplingConfig() core.SamplingConfig { return s.config }

// newUniformSkyScene creates an empty world lit by a constant sky color
func newUniformSkyScene(width int, sky core.Color, samples int) *testScene {
	config := DefaultCameraConfig()
	config.Width = width
	return &testScene{
		camera: NewCamera(config),
		world:  geometry.NewShapeList(),
		top:    sky,
		bottom: sky,
		config: core.SamplingConfig{SamplesPerPixel: samples, MaxDepth: 10},
	}
}

// newSpheresScene creates a small scene with every material kind
func newSpheresScene(width int) *testScene {
	config := DefaultCameraConfig()
	config.Width = width
	config.LookFrom = core.NewVec3(0, 0.5, 1)
	config.DefocusAngle = 2
	return &testScene{
		camera: NewCamera(config),
		world: geometry.NewShapeList(
			geometry.NewSphere(core.NewVec3(0, -100.5, -1), 100, material.NewLambertian(core.NewVec3(0.8, 0.8, 0.0))),
			geometry.NewMovingSphere(core.NewVec3(0, 0, -1.2), core.NewVec3(0, 0.2, -1.2), 0.5, material.NewLambertian(core.NewVec3(0.1, 0.2, 0.5))),
			geometry.NewSphere(core.NewVec3(-1, 0, -1), 0.5, material.NewDielectric(1.5)),
			geometry.NewSphere(core.NewVec3(1, 0, -1), 0.5, material.NewMetal(core.NewVec3(0.8, 0.6, 0.2), 0.3)),
		),
		top:    core.NewVec3(0.5, 0.7, 1.0),
		bottom: core.NewVec3(1, 1, 1),
		config: core.SamplingConfig{SamplesPerPixel: 4, MaxDepth: 10},
	}
}
