package renderer

import (
	"image"

	"github.com/df07/go-sphere-pathtracer/pkg/core"
	"github.com/df07/go-sphere-pathtracer/pkg/geometry"
	"github.com/df07/go-sphere-pathtracer/pkg/integrator"
)

// Scene interface to avoid circular imports
type Scene interface {
	GetCamera() *Camera
	GetWorld() geometry.Shape
	GetBackgroundColors() (topColor, bottomColor core.Color)
	GetSamplingConfig() core.SamplingConfig
}

// newIntegrator builds the path tracer for a scene under the given sampling limits
func newIntegrator(scene Scene, config core.SamplingConfig) *integrator.PathTracingIntegrator {
	top, bottom := scene.GetBackgroundColors()
	return integrator.NewPathTracingIntegrator(config).WithSky(top, bottom)
}

// Raytracer renders a whole image sequentially, one scanline at a time
type Raytracer struct {
	scene      Scene
	width      int
	height     int
	config     core.SamplingConfig
	integrator integrator.Integrator
	progress   ProgressReporter

	// singleSample takes one sample per pixel and writes it without averaging or gamma
	singleSample bool
}

// NewRaytracer creates a new raytracer using the scene's camera dimensions and sampling config
func NewRaytracer(scene Scene) *Raytracer {
	camera := scene.GetCamera()
	config := scene.GetSamplingConfig()
	return &Raytracer{
		scene:      scene,
		width:      camera.ImageWidth(),
		height:     camera.ImageHeight(),
		config:     config,
		integrator: newIntegrator(scene, config),
		progress:   nopProgress{},
	}
}

// SetSamplingConfig updates the sampling configuration
func (rt *Raytracer) SetSamplingConfig(config core.SamplingConfig) {
	rt.config = config
	rt.integrator = newIntegrator(rt.scene, config)
}

// SetProgressReporter sets where scanline progress is reported
func (rt *Raytracer) SetProgressReporter(progress ProgressReporter) {
	if progress == nil {
		progress = nopProgress{}
	}
	rt.progress = progress
}

// SetMultisample chooses between averaging SamplesPerPixel gamma-corrected
// samples (the default) and writing a single raw sample per pixel with EncodeColor
func (rt *Raytracer) SetMultisample(enabled bool) {
	rt.singleSample = !enabled
}

// RenderPass renders every pixel with the configured samples per pixel, in
// row-major order from the top row, drawing all randomness from sampler
func (rt *Raytracer) RenderPass(sampler core.Sampler) (*image.RGBA, RenderStats) {
	img := image.NewRGBA(image.Rect(0, 0, rt.width, rt.height))
	camera := rt.scene.GetCamera()
	world := rt.scene.GetWorld()
	samples := rt.config.SamplesPerPixel
	if rt.singleSample {
		samples = min(samples, 1)
	}

	stats := newRenderStats(rt.width*rt.height, samples)

	for j := 0; j < rt.height; j++ {
		rt.progress.ScanlinesRemaining(rt.height-j, rt.height)
		for i := 0; i < rt.width; i++ {
			var pixel PixelStats
			for sample := 0; sample < samples; sample++ {
				ray := camera.GetRay(i, j, sampler)
				pixel.AddSample(rt.integrator.RayColor(ray, world, sampler))
			}
			if rt.singleSample {
				img.SetRGBA(i, j, EncodeColor(pixel.ColorAccum))
			} else {
				img.SetRGBA(i, j, pixel.Encode())
			}
			stats.updateStats(pixel.SampleCount)
		}
	}
	rt.progress.ScanlinesRemaining(0, rt.height)

	stats.finalizeStats()
	return img, stats
}
