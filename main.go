// pathtracer renders sphere scenes with a progressive Monte Carlo path tracer.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/df07/go-sphere-pathtracer/pkg/core"
	"github.com/df07/go-sphere-pathtracer/pkg/renderer"
	"github.com/df07/go-sphere-pathtracer/pkg/scene"
)

// progressInterval bounds how often sequential renders report progress
const progressInterval = 250 * time.Millisecond

var cmdRoot = &cobra.Command{
	Use:           "pathtracer",
	Short:         "Progressive sphere path tracer",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var scenesDir string

func init() {
	cmdRoot.PersistentFlags().StringVar(&scenesDir, "scenes-dir", "scenes", "Directory searched for YAML scene files")
}

var (
	renderScene   string
	renderWidth   int
	renderSamples int
	renderDepth   int
	renderPasses  int
	renderWorkers int
	renderSeed    int64
	renderFormat  string
	renderOutput  string

	renderSeqFlag bool
	renderMSAA    bool
)

var cmdRender = &cobra.Command{
	Use:   "render",
	Short: "Render a scene to an image file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		opts := renderOptions{
			Scene:   renderScene,
			Width:   renderWidth,
			Samples: renderSamples,
			Depth:   renderDepth,
			Passes:  renderPasses,
			Workers: renderWorkers,
			Seed:    renderSeed,
			Format:  renderFormat,
			Output:  renderOutput,

			Sequential:   renderSeqFlag,
			SingleSample: !renderMSAA,
		}
		path, err := runRender(ctx, opts)
		if err != nil {
			return err
		}

		glog.Infof("Render saved as %s", path)
		return nil
	},
}

func init() {
	f := cmdRender.Flags()
	f.StringVar(&renderScene, "scene", "default", "Scene: a built-in name, yaml:<name> from --scenes-dir, or a .yaml path")
	f.IntVar(&renderWidth, "width", 0, "Image width in pixels (0 keeps the scene's width)")
	f.IntVar(&renderSamples, "samples", 0, "Samples per pixel (0 keeps the scene's setting)")
	f.IntVar(&renderDepth, "depth", 0, "Maximum bounces per path (0 keeps the scene's setting)")
	f.IntVar(&renderPasses, "passes", 7, "Number of progressive passes")
	f.IntVar(&renderWorkers, "workers", 0, "Parallel tile workers (0 = one per CPU)")
	f.Int64Var(&renderSeed, "seed", 42, "Seed for scene generation and sampling")
	f.StringVar(&renderFormat, "format", "png", "Output format: png or ppm")
	f.StringVar(&renderOutput, "output", "", "Output file (default output/<scene>/render_<timestamp>.<format>)")
	f.BoolVar(&renderSeqFlag, "sequential", false, "Render scanline by scanline on one goroutine instead of in progressive passes")
	f.BoolVar(&renderMSAA, "msaa", true, "Average gamma-corrected samples per pixel; false writes one raw sample per pixel (requires --sequential)")
}

var cmdScenes = &cobra.Command{
	Use:   "scenes",
	Short: "List available scenes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listScenes(cmd.OutOrStdout(), scenesDir)
	},
}

// renderOptions carries the render command's flags
type renderOptions struct {
	Scene   string
	Width   int
	Samples int
	Depth   int
	Passes  int
	Workers int
	Seed    int64
	Format  string
	Output  string

	Sequential   bool // Use the single-threaded scanline renderer
	SingleSample bool // Write one unaveraged sample per pixel; sequential only
}

// createScene resolves a scene name and applies command-line overrides
func createScene(opts renderOptions) (*scene.Scene, error) {
	if opts.Scene == "" {
		return nil, fmt.Errorf("no scene given")
	}
	if opts.Width < 0 {
		return nil, fmt.Errorf("width must not be negative, got %d", opts.Width)
	}

	s, err := scene.Create(opts.Scene, scenesDir, opts.Seed, renderer.CameraConfig{Width: opts.Width})
	if err != nil {
		return nil, fmt.Errorf("while creating scene %q: %w", opts.Scene, err)
	}

	if opts.Samples > 0 {
		s.SamplingConfig.SamplesPerPixel = opts.Samples
	}
	if opts.Depth > 0 {
		s.SamplingConfig.MaxDepth = opts.Depth
	}
	return s, nil
}

// runRender renders the scene and writes the image, returning the path written
func runRender(ctx context.Context, opts renderOptions) (string, error) {
	if opts.Format != "png" && opts.Format != "ppm" {
		return "", fmt.Errorf("unknown format %q, want png or ppm", opts.Format)
	}
	if opts.SingleSample && !opts.Sequential {
		return "", fmt.Errorf("--msaa=false requires --sequential")
	}

	s, err := createScene(opts)
	if err != nil {
		return "", err
	}

	camera := s.GetCamera()
	glog.Infof("Rendering %s: %dx%d, %d primitives, %d samples/pixel, depth %d",
		opts.Scene, camera.ImageWidth(), camera.ImageHeight(), s.GetPrimitiveCount(),
		s.SamplingConfig.SamplesPerPixel, s.SamplingConfig.MaxDepth)

	startTime := time.Now()
	var final *image.RGBA
	if opts.Sequential {
		final, err = renderSequential(ctx, s, opts)
	} else {
		final, err = renderProgressive(ctx, s, opts)
	}
	if err != nil {
		return "", fmt.Errorf("while rendering: %w", err)
	}
	glog.Infof("Render completed in %v", time.Since(startTime))

	path := opts.Output
	if path == "" {
		name := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(opts.Scene)
		timestamp := time.Now().Format("20060102_150405")
		path = filepath.Join("output", name, fmt.Sprintf("render_%s.%s", timestamp, opts.Format))
	}
	if err := saveImage(path, final, opts.Format); err != nil {
		return "", err
	}
	return path, nil
}

// renderProgressive renders in tiled passes and returns the final pass
func renderProgressive(ctx context.Context, s *scene.Scene, opts renderOptions) (*image.RGBA, error) {
	config := renderer.DefaultProgressiveConfig()
	config.MaxSamplesPerPixel = s.SamplingConfig.SamplesPerPixel
	config.MaxPasses = opts.Passes
	config.NumWorkers = opts.Workers
	config.Seed = opts.Seed

	pr := renderer.NewProgressiveRaytracer(s, config, renderer.NewGlogLogger())

	var final *image.RGBA
	err := pr.RenderProgressive(ctx, renderer.RenderOptions{
		OnPass: func(result renderer.PassResult) error {
			final = result.Image
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return final, nil
}

// renderSequential renders every scanline in order from a single seeded
// sampler, reporting the remaining lines as it goes. Cancellation is only
// checked before the render starts.
func renderSequential(ctx context.Context, s *scene.Scene, opts renderOptions) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rt := renderer.NewRaytracer(s)
	rt.SetMultisample(!opts.SingleSample)
	rt.SetProgressReporter(renderer.NewLogProgress(progressInterval))

	img, stats := rt.RenderPass(core.NewSeededSampler(opts.Seed))
	glog.Infof("Rendered %d pixels with %.1f samples/pixel", stats.TotalPixels, stats.AverageSamples)
	return img, nil
}

// saveImage writes img to path, creating parent directories as needed
func saveImage(path string, img image.Image, format string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("while creating output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("while creating output file: %w", err)
	}

	if err := encodeImage(file, img, format); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("while closing output file: %w", err)
	}
	return nil
}

func encodeImage(w io.Writer, img image.Image, format string) error {
	switch format {
	case "png":
		if err := png.Encode(w, img); err != nil {
			return fmt.Errorf("while encoding PNG: %w", err)
		}
		return nil
	case "ppm":
		return renderer.WritePPM(w, img)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func listScenes(w io.Writer, dir string) error {
	response, err := scene.ListAllScenes(dir)
	if err != nil {
		return fmt.Errorf("while listing scenes: %w", err)
	}

	for _, group := range response.Groups {
		fmt.Fprintf(w, "%s:\n", group.Name)
		for _, s := range group.Scenes {
			if s.Description != "" {
				fmt.Fprintf(w, "  %-20s %s - %s\n", s.ID, s.DisplayName, s.Description)
			} else {
				fmt.Fprintf(w, "  %-20s %s\n", s.ID, s.DisplayName)
			}
		}
	}
	return nil
}

func main() {
	cmdRoot.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	// Mark the go flags parsed so glog does not complain; cobra sets their values
	flag.CommandLine.Parse(nil)
	cmdRoot.AddCommand(cmdRender, cmdScenes)

	err := cmdRoot.Execute()
	glog.Flush()
	if err != nil {
		glog.Exitf("%v", err)
	}
}
