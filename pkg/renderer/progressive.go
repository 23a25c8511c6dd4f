package renderer

import (
	"context"
	"fmt"
	"image"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/df07/go-sphere-pathtracer/pkg/core"
)

// ProgressiveConfig contains configuration for progressive rendering
type ProgressiveConfig struct {
	TileSize           int   // Size of each tile (64x64 recommended)
	InitialSamples     int   // Samples for first pass (1 recommended)
	MaxSamplesPerPixel int   // Maximum total samples per pixel
	MaxPasses          int   // Maximum number of passes
	NumWorkers         int   // Number of parallel workers (0 = use CPU count)
	Seed               int64 // Base seed; tile generators derive from it
}

// DefaultProgressiveConfig returns sensible default values
func DefaultProgressiveConfig() ProgressiveConfig {
	return ProgressiveConfig{
		TileSize:           64,
		InitialSamples:     1,
		MaxSamplesPerPixel: 50,
		MaxPasses:          7,
		NumWorkers:         0,
		Seed:               42,
	}
}

// normalize fixes up settings that would otherwise stall or skip passes
func (c ProgressiveConfig) normalize() ProgressiveConfig {
	if c.TileSize <= 0 {
		c.TileSize = 64
	}
	if c.MaxPasses <= 0 {
		c.MaxPasses = 1
	}
	if c.MaxSamplesPerPixel < 0 {
		c.MaxSamplesPerPixel = 0
	}
	if c.InitialSamples <= 0 {
		c.InitialSamples = 1
	}
	c.InitialSamples = min(c.InitialSamples, c.MaxSamplesPerPixel)
	return c
}

// ProgressiveRaytracer renders in passes of increasing sample count, each pass
// splitting the image into tiles rendered in parallel
type ProgressiveRaytracer struct {
	scene         Scene
	width, height int
	config        ProgressiveConfig
	tiles         []*Tile
	currentPass   int
	pixelStats    [][]PixelStats // Indexed [y][x]; each tile owns a disjoint region
	tileRenderer  *TileRenderer
	workerPool    *WorkerPool
	logger        core.Logger
}

// NewProgressiveRaytracer creates a new progressive raytracer
func NewProgressiveRaytracer(scene Scene, config ProgressiveConfig, logger core.Logger) *ProgressiveRaytracer {
	config = config.normalize()
	camera := scene.GetCamera()
	width, height := camera.ImageWidth(), camera.ImageHeight()

	pixelStats := make([][]PixelStats, height)
	for y := range pixelStats {
		pixelStats[y] = make([]PixelStats, width)
	}

	samplingConfig := scene.GetSamplingConfig()
	samplingConfig.SamplesPerPixel = config.MaxSamplesPerPixel

	return &ProgressiveRaytracer{
		scene:        scene,
		width:        width,
		height:       height,
		config:       config,
		tiles:        NewTileGrid(width, height, config.TileSize, config.Seed),
		pixelStats:   pixelStats,
		tileRenderer: NewTileRenderer(scene, newIntegrator(scene, samplingConfig)),
		workerPool:   NewWorkerPool(config.NumWorkers),
		logger:       logger,
	}
}

// getSamplesForPass calculates the target total samples for a given pass
func (pr *ProgressiveRaytracer) getSamplesForPass(passNumber int) int {
	if pr.config.MaxPasses == 1 {
		return pr.config.MaxSamplesPerPixel
	}

	// First pass is a quick preview
	if passNumber == 1 {
		return pr.config.InitialSamples
	}

	// The final pass always reaches the maximum
	if passNumber >= pr.config.MaxPasses {
		return pr.config.MaxSamplesPerPixel
	}

	// Divide remaining samples evenly across remaining passes
	remainingSamples := pr.config.MaxSamplesPerPixel - pr.config.InitialSamples
	remainingPasses := pr.config.MaxPasses - 1
	samplesPerPass := remainingSamples / remainingPasses

	return pr.config.InitialSamples + (passNumber-1)*samplesPerPass
}

// RenderPass renders a single progressive pass using parallel processing.
// tileCallback, if non-nil, is invoked once per finished tile, never concurrently.
func (pr *ProgressiveRaytracer) RenderPass(ctx context.Context, passNumber int, tileCallback func(TileCompletionResult)) (*image.RGBA, RenderStats, error) {
	pr.currentPass = passNumber
	targetSamples := pr.getSamplesForPass(passNumber)

	tracer := otel.Tracer("go-sphere-pathtracer/renderer")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "ProgressiveRaytracer.RenderPass", trace.WithAttributes(
		attribute.Int("pass", passNumber),
		attribute.Int("target_samples", targetSamples),
		attribute.Int("tiles", len(pr.tiles)),
	))
	defer span.End()

	pr.logger.Printf("Pass %d: Target %d samples per pixel (using %d workers)...",
		passNumber, targetSamples, pr.workerPool.GetNumWorkers())

	var mu sync.Mutex
	completed := 0

	err := pr.workerPool.Run(ctx, pr.tiles, func(ctx context.Context, tile *Tile) error {
		pr.tileRenderer.RenderTileBounds(tile.Bounds, pr.pixelStats, tile.Sampler, targetSamples)

		mu.Lock()
		defer mu.Unlock()
		tile.PassesCompleted++
		completed++
		if tileCallback != nil {
			tileCallback(TileCompletionResult{
				TileX:       tile.Bounds.Min.X / pr.config.TileSize,
				TileY:       tile.Bounds.Min.Y / pr.config.TileSize,
				TileImage:   pr.extractTileImage(tile),
				PassNumber:  passNumber,
				TileNumber:  completed,
				TotalTiles:  len(pr.tiles),
				TotalPasses: pr.config.MaxPasses,
			})
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, RenderStats{}, fmt.Errorf("while rendering pass %d: %w", passNumber, err)
	}

	img, stats := pr.assembleCurrentImage(targetSamples)
	span.SetAttributes(attribute.Int("total_samples", stats.TotalSamples))
	return img, stats, nil
}

// extractTileImage copies one tile's current pixels out of the shared pixel stats
func (pr *ProgressiveRaytracer) extractTileImage(tile *Tile) *image.RGBA {
	bounds := tile.Bounds
	tileImage := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			tileImage.SetRGBA(x-bounds.Min.X, y-bounds.Min.Y, pr.pixelStats[y][x].Encode())
		}
	}

	return tileImage
}

// PassResult contains the result of a single pass
type PassResult struct {
	PassNumber int
	Image      *image.RGBA
	Stats      RenderStats
	Elapsed    time.Duration
	IsLast     bool
}

// TileCompletionResult contains information about a completed tile for callbacks
type TileCompletionResult struct {
	TileX      int // Tile coordinates (not pixel coordinates)
	TileY      int
	TileImage  *image.RGBA // Image data for just this tile
	PassNumber int         // Which pass this tile was rendered in

	// Progress information
	TileNumber  int // Order in which this tile finished within its pass (1-based)
	TotalTiles  int // Total number of tiles in the image
	TotalPasses int // Total number of passes planned
}

// RenderOptions configures progressive rendering callbacks
type RenderOptions struct {
	OnPass func(PassResult) error     // Called after each pass; an error stops rendering
	OnTile func(TileCompletionResult) // Optional per-tile updates
}

// RenderProgressive renders passes until the sample budget is reached. It
// returns ctx.Err() if the context is cancelled between or during passes.
func (pr *ProgressiveRaytracer) RenderProgressive(ctx context.Context, options RenderOptions) error {
	pr.logger.Printf("Starting progressive rendering with %d passes...", pr.config.MaxPasses)

	for pass := 1; pass <= pr.config.MaxPasses; pass++ {
		if err := ctx.Err(); err != nil {
			pr.logger.Printf("Rendering cancelled before pass %d", pass)
			return err
		}

		startTime := time.Now()
		img, stats, err := pr.RenderPass(ctx, pass, options.OnTile)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				pr.logger.Printf("Rendering cancelled during pass %d", pass)
				return ctxErr
			}
			return err
		}
		elapsed := time.Since(startTime)

		pr.logger.Printf("Pass %d completed in %v (actual: %.1f samples/pixel, luminance %.3f)",
			pass, elapsed, stats.AverageSamples, CalculateAverageLuminance(img))

		isLast := pass == pr.config.MaxPasses || stats.MinSamples >= pr.config.MaxSamplesPerPixel
		if options.OnPass != nil {
			result := PassResult{
				PassNumber: pass,
				Image:      img,
				Stats:      stats,
				Elapsed:    elapsed,
				IsLast:     isLast,
			}
			if err := options.OnPass(result); err != nil {
				return fmt.Errorf("while handling result of pass %d: %w", pass, err)
			}
		}

		if isLast {
			break
		}
	}

	return nil
}

// assembleCurrentImage creates an image from the current state of the shared pixel stats
// and calculates render statistics in a single pass
func (pr *ProgressiveRaytracer) assembleCurrentImage(targetSamples int) (*image.RGBA, RenderStats) {
	img := image.NewRGBA(image.Rect(0, 0, pr.width, pr.height))
	stats := newRenderStats(pr.width*pr.height, targetSamples)

	for y := 0; y < pr.height; y++ {
		for x := 0; x < pr.width; x++ {
			pixel := &pr.pixelStats[y][x]
			img.SetRGBA(x, y, pixel.Encode())
			stats.updateStats(pixel.SampleCount)
		}
	}

	stats.finalizeStats()
	return img, stats
}

// Tile represents a rectangular region of the image to be rendered
type Tile struct {
	ID              int             // Unique tile identifier
	Bounds          image.Rectangle // Pixel bounds (x0,y0,x1,y1)
	PassesCompleted int             // Number of passes completed for this tile
	Sampler         core.Sampler    // Tile-owned random source, reused across passes
}

// NewTile creates a new tile whose sampler is seeded from seed and the tile ID
func NewTile(id int, bounds image.Rectangle, seed int64) *Tile {
	return &Tile{
		ID:      id,
		Bounds:  bounds,
		Sampler: core.NewRandomSampler(rand.New(rand.NewSource(seed + int64(id)))),
	}
}

// NewTileGrid creates a grid of tiles covering the entire image
func NewTileGrid(width, height, tileSize int, seed int64) []*Tile {
	var tiles []*Tile
	tileID := 0

	tilesX := (width + tileSize - 1) / tileSize
	tilesY := (height + tileSize - 1) / tileSize

	for tileY := 0; tileY < tilesY; tileY++ {
		for tileX := 0; tileX < tilesX; tileX++ {
			x0 := tileX * tileSize
			y0 := tileY * tileSize
			x1 := min(x0+tileSize, width)
			y1 := min(y0+tileSize, height)

			tiles = append(tiles, NewTile(tileID, image.Rect(x0, y0, x1, y1), seed))
			tileID++
		}
	}

	return tiles
}
