package renderer

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/df07/go-sphere-pathtracer/pkg/core"
)

// recordingProgress remembers every report it receives
type recordingProgress struct {
	remaining []int
}

func (r *recordingProgress) ScanlinesRemaining(remaining, total int) {
	r.remaining = append(r.remaining, remaining)
}

func TestRaytracer_UniformSky(t *testing.T) {
	scene := newUniformSkyScene(16, core.NewVec3(0.3, 0.3, 0.3), 3)
	rt := NewRaytracer(scene)

	img, stats := rt.RenderPass(core.NewSeededSampler(1))

	bounds := img.Bounds()
	if bounds.Dx() != 16 || bounds.Dy() != 9 {
		t.Fatalf("Expected 16x9 image, got %dx%d", bounds.Dx(), bounds.Dy())
	}

	// floor(256 * sqrt(0.3))
	want := color.RGBA{140, 140, 140, 255}
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			if got := img.RGBAAt(x, y); got != want {
				t.Fatalf("Pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}

	if stats.TotalPixels != 144 || stats.TotalSamples != 432 || stats.AverageSamples != 3 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if stats.MinSamples != 3 || stats.MaxSamplesUsed != 3 {
		t.Errorf("Every pixel should take exactly 3 samples, got %+v", stats)
	}
}

func TestRaytracer_ZeroSamplesIsBlack(t *testing.T) {
	scene := newUniformSkyScene(8, core.NewVec3(1, 1, 1), 0)
	img, _ := NewRaytracer(scene).RenderPass(core.NewSeededSampler(1))

	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 || img.Pix[i+1] != 0 || img.Pix[i+2] != 0 || img.Pix[i+3] != 255 {
			t.Fatalf("Expected opaque black pixels, found %v at offset %d", img.Pix[i:i+4], i)
		}
	}
}

func TestRaytracer_SkyGradientTopToBottom(t *testing.T) {
	scene := newUniformSkyScene(32, core.Color{}, 1)
	scene.top = core.NewVec3(0, 0, 1)
	scene.bottom = core.NewVec3(1, 0, 0)

	img, _ := NewRaytracer(scene).RenderPass(core.NewSeededSampler(3))

	// Rows are written top row first, so the top of the image is the bluest
	top := img.RGBAAt(16, 0)
	bottom := img.RGBAAt(16, img.Bounds().Dy()-1)
	if top.B <= bottom.B || top.R >= bottom.R {
		t.Errorf("Expected blue at the top and red at the bottom, got top=%v bottom=%v", top, bottom)
	}
}

func TestRaytracer_ReportsScanlines(t *testing.T) {
	scene := newUniformSkyScene(8, core.NewVec3(0.5, 0.5, 0.5), 1)
	rt := NewRaytracer(scene)
	progress := &recordingProgress{}
	rt.SetProgressReporter(progress)

	rt.RenderPass(core.NewSeededSampler(1))

	want := []int{4, 3, 2, 1, 0}
	if len(progress.remaining) != len(want) {
		t.Fatalf("Expected reports %v, got %v", want, progress.remaining)
	}
	for i := range want {
		if progress.remaining[i] != want[i] {
			t.Errorf("Report %d: expected %d remaining, got %d", i, want[i], progress.remaining[i])
		}
	}
}

func TestRaytracer_DeterministicForSeed(t *testing.T) {
	scene := newSpheresScene(24)

	render := func(seed int64) []byte {
		img, _ := NewRaytracer(scene).RenderPass(core.NewSeededSampler(seed))
		return img.Pix
	}

	if !bytes.Equal(render(5), render(5)) {
		t.Error("Same seed produced different images")
	}
	if bytes.Equal(render(5), render(6)) {
		t.Error("Different seeds produced identical images")
	}
}

func TestRaytracer_SetSamplingConfig(t *testing.T) {
	scene := newUniformSkyScene(8, core.NewVec3(0.25, 0.25, 0.25), 1)
	rt := NewRaytracer(scene)
	rt.SetSamplingConfig(core.SamplingConfig{SamplesPerPixel: 5, MaxDepth: 0})

	img, stats := rt.RenderPass(core.NewSeededSampler(1))

	if stats.TotalSamples != 5*stats.TotalPixels {
		t.Errorf("Expected 5 samples per pixel, got %+v", stats)
	}
	// Depth 0 gathers no light at all
	if got := img.RGBAAt(0, 0); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("Expected black with zero depth, got %v", got)
	}
}

func TestRaytracer_SingleSampleWritesRawColor(t *testing.T) {
	scene := newUniformSkyScene(8, core.NewVec3(0.3, 0.3, 0.3), 5)
	rt := NewRaytracer(scene)
	rt.SetMultisample(false)

	img, stats := rt.RenderPass(core.NewSeededSampler(1))

	// floor(255.999 * 0.3), no gamma
	want := color.RGBA{76, 76, 76, 255}
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			if got := img.RGBAAt(x, y); got != want {
				t.Fatalf("Pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
	if stats.MaxSamplesUsed != 1 || stats.MinSamples != 1 {
		t.Errorf("Expected one sample per pixel, got %+v", stats)
	}
}
