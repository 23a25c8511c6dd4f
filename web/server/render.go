package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/df07/go-sphere-pathtracer/pkg/renderer"
	"github.com/df07/go-sphere-pathtracer/pkg/scene"
)

// DefaultTileSize is the tile edge used for web renders
const DefaultTileSize = 32

// TileUpdate represents a single tile update sent via SSE
type TileUpdate struct {
	TileX       int    `json:"tileX"`
	TileY       int    `json:"tileY"`
	ImageData   string `json:"imageData"` // Base64 encoded PNG of just this tile
	PassNumber  int    `json:"passNumber"`
	TileNumber  int    `json:"tileNumber"`  // Current tile number in this pass (1-based)
	TotalTiles  int    `json:"totalTiles"`  // Total number of tiles in the image
	TotalPasses int    `json:"totalPasses"` // Total number of passes planned
}

// PassUpdate is sent after every pass with the full image so far
type PassUpdate struct {
	PassNumber     int     `json:"passNumber"`
	TotalPasses    int     `json:"totalPasses"`
	ImageData      string  `json:"imageData"` // Base64 encoded PNG
	IsComplete     bool    `json:"isComplete"`
	ElapsedMs      int64   `json:"elapsedMs"`
	TotalPixels    int     `json:"totalPixels"`
	TotalSamples   int     `json:"totalSamples"`
	AverageSamples float64 `json:"averageSamples"`
	MaxSamples     int     `json:"maxSamples"`
	MinSamples     int     `json:"minSamples"`
	MaxSamplesUsed int     `json:"maxSamplesUsed"`
	PrimitiveCount int     `json:"primitiveCount"`
}

// SSEEvent is one Server-Sent Event waiting to be written
type SSEEvent struct {
	Type string `json:"type"` // "console", "tile", "passComplete", "error", "complete"
	Data string `json:"data"` // JSON-encoded data, or plain text for errors
}

// eventStream funnels events from any goroutine to the single writer
type eventStream struct {
	ctx    context.Context
	events chan SSEEvent
}

// send queues an event, giving up if the client has gone away
func (es eventStream) send(eventType string, data string) {
	select {
	case es.events <- SSEEvent{Type: eventType, Data: data}:
	case <-es.ctx.Done():
	}
}

// sendJSON queues v as a JSON-encoded event
func (es eventStream) sendJSON(eventType string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		glog.Errorf("Marshaling %s event: %v", eventType, err)
		return
	}
	es.send(eventType, string(data))
}

// handleRender streams a progressive render as Server-Sent Events. The render
// stops when the client disconnects.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	setSSEHeaders(w)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	stream := eventStream{ctx: ctx, events: make(chan SSEEvent, 100)}

	var writers sync.WaitGroup
	writers.Add(1)
	go func() {
		defer writers.Done()
		writeSSEEvents(ctx, w, stream.events, cancel)
	}()

	s.streamRender(ctx, r, stream)

	close(stream.events)
	writers.Wait()
}

// streamRender parses the request, renders, and queues every event. It
// returns only once nothing else will be sent on stream.
func (s *Server) streamRender(ctx context.Context, r *http.Request, stream eventStream) {
	req, err := s.parseRenderRequest(r)
	if err != nil {
		stream.send("error", fmt.Sprintf("Invalid request: %v", err))
		return
	}

	sceneObj, err := s.createScene(req.Scene, req.Width, int64(req.Seed))
	if err != nil {
		stream.send("error", err.Error())
		return
	}
	if req.MaxDepth > 0 {
		sceneObj.SamplingConfig.MaxDepth = req.MaxDepth
	}

	if err := renderToStream(ctx, req, sceneObj, stream); err != nil {
		if ctx.Err() != nil {
			glog.Infof("Render of %s cancelled: %v", req.Scene, err)
			return
		}
		stream.send("error", fmt.Sprintf("Rendering failed: %v", err))
		return
	}

	stream.send("complete", "Rendering completed")
}

// renderToStream runs the progressive render, queueing console, tile and pass
// events. Console output is fully forwarded before it returns.
func renderToStream(ctx context.Context, req *RenderRequest, sceneObj *scene.Scene, stream eventStream) error {
	consoleChan := make(chan ConsoleMessage, 50)
	logger := NewWebLogger(fmt.Sprintf("render-%d", time.Now().UnixNano()), consoleChan)

	var forwarders sync.WaitGroup
	forwarders.Add(1)
	go func() {
		defer forwarders.Done()
		streamConsoleMessages(consoleChan, stream)
	}()
	defer func() {
		close(consoleChan)
		forwarders.Wait()
	}()

	raytracer := renderer.NewProgressiveRaytracer(sceneObj, renderer.ProgressiveConfig{
		TileSize:           DefaultTileSize,
		InitialSamples:     1,
		MaxSamplesPerPixel: req.MaxSamples,
		MaxPasses:          req.MaxPasses,
		NumWorkers:         0,
		Seed:               int64(req.Seed),
	}, logger)

	startTime := time.Now()
	return raytracer.RenderProgressive(ctx, renderer.RenderOptions{
		OnPass: func(result renderer.PassResult) error {
			return sendPassComplete(stream, result, req, sceneObj, startTime)
		},
		OnTile: func(result renderer.TileCompletionResult) {
			sendTileUpdate(stream, result)
		},
	})
}

// setSSEHeaders sets the required headers for Server-Sent Events
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// writeSSEEvents writes events until the channel is closed. It is the only
// goroutine that touches w. A failed write means the client is gone, so it
// calls cancel and discards the remaining events.
func writeSSEEvents(ctx context.Context, w http.ResponseWriter, events <-chan SSEEvent, cancel context.CancelFunc) {
	flusher, _ := w.(http.Flusher)

	for event := range events {
		if ctx.Err() != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
			glog.V(1).Infof("SSE client went away: %v", err)
			cancel()
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// streamConsoleMessages forwards logger output until consoleChan is closed
func streamConsoleMessages(consoleChan <-chan ConsoleMessage, stream eventStream) {
	for msg := range consoleChan {
		stream.sendJSON("console", msg)
	}
}

// sendPassComplete queues the full image and statistics for a finished pass
func sendPassComplete(stream eventStream, result renderer.PassResult, req *RenderRequest, sceneObj *scene.Scene, startTime time.Time) error {
	imageData, err := imageToBase64PNG(result.Image)
	if err != nil {
		return fmt.Errorf("while encoding pass image: %w", err)
	}

	stream.sendJSON("passComplete", PassUpdate{
		PassNumber:     result.PassNumber,
		TotalPasses:    req.MaxPasses,
		ImageData:      imageData,
		IsComplete:     result.IsLast,
		ElapsedMs:      time.Since(startTime).Milliseconds(),
		TotalPixels:    result.Stats.TotalPixels,
		TotalSamples:   result.Stats.TotalSamples,
		AverageSamples: result.Stats.AverageSamples,
		MaxSamples:     result.Stats.MaxSamples,
		MinSamples:     result.Stats.MinSamples,
		MaxSamplesUsed: result.Stats.MaxSamplesUsed,
		PrimitiveCount: sceneObj.GetPrimitiveCount(),
	})
	return nil
}

// sendTileUpdate queues one finished tile
func sendTileUpdate(stream eventStream, result renderer.TileCompletionResult) {
	tileData, err := imageToBase64PNG(result.TileImage)
	if err != nil {
		glog.Errorf("Encoding tile image (%d, %d): %v", result.TileX, result.TileY, err)
		return
	}

	stream.sendJSON("tile", TileUpdate{
		TileX:       result.TileX,
		TileY:       result.TileY,
		ImageData:   tileData,
		PassNumber:  result.PassNumber,
		TileNumber:  result.TileNumber,
		TotalTiles:  result.TotalTiles,
		TotalPasses: result.TotalPasses,
	})
}

// imageToBase64PNG converts an image to base64-encoded PNG
func imageToBase64PNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
