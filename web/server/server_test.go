package server

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	scene := `# Scene: Single Ball
# Group: Test Scenes
camera:
  width: 32
materials:
  red: {type: lambertian, albedo: [0.8, 0.1, 0.1]}
spheres:
  - {center: [0, 0, -1], radius: 0.5, material: red}
`
	if err := os.WriteFile(filepath.Join(dir, "ball.yaml"), []byte(scene), 0o644); err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(NewServer(0, dir).Handler())
	t.Cleanup(ts.Close)
	return ts, dir
}

func getJSON(t *testing.T, url string, wantStatus int, v interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding %s: %v", url, err)
	}
}

type sseEvent struct {
	Type string
	Data string
}

// readEvents collects every event in an SSE response body
func readEvents(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = strings.TrimPrefix(line, "data: ")
		case line == "":
			events = append(events, current)
			current = sseEvent{}
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("reading SSE stream: %v", err)
	}
	return events
}

func TestHandleHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	var body map[string]string
	getJSON(t, ts.URL+"/api/health", http.StatusOK, &body)
	if diff := cmp.Diff(map[string]string{"status": "ok"}, body); diff != "" {
		t.Errorf("health mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleScenes(t *testing.T) {
	ts, _ := newTestServer(t)

	var body struct {
		Groups []struct {
			Name   string `json:"name"`
			Scenes []struct {
				ID string `json:"id"`
			} `json:"scenes"`
		} `json:"groups"`
	}
	getJSON(t, ts.URL+"/api/scenes", http.StatusOK, &body)

	var ids []string
	for _, g := range body.Groups {
		for _, s := range g.Scenes {
			ids = append(ids, g.Name+"/"+s.ID)
		}
	}
	want := []string{
		"Built-in Scenes/default",
		"Built-in Scenes/random",
		"Built-in Scenes/sphere-grid",
		"Test Scenes/yaml:ball",
	}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("scenes mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleSceneConfig(t *testing.T) {
	ts, _ := newTestServer(t)

	var body struct {
		Scene    string         `json:"scene"`
		Defaults map[string]int `json:"defaults"`
	}
	getJSON(t, ts.URL+"/api/scene-config?scene=yaml:ball", http.StatusOK, &body)

	want := map[string]int{
		"width":           32,
		"height":          18,
		"samplesPerPixel": 100,
		"maxDepth":        50,
		"primitiveCount":  1,
	}
	if diff := cmp.Diff(want, body.Defaults); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}

	var errBody map[string]string
	getJSON(t, ts.URL+"/api/scene-config?scene=cornell-box", http.StatusBadRequest, &errBody)
	if errBody["error"] == "" {
		t.Error("expected an error message for an unknown scene")
	}
}

func TestCreateScene_RejectsPaths(t *testing.T) {
	_, dir := newTestServer(t)
	s := NewServer(0, dir)

	for _, id := range []string{
		filepath.Join(dir, "ball.yaml"),
		"yaml:../ball",
		"yaml:sub/ball",
		"yaml:",
	} {
		if _, err := s.createScene(id, 32, 1); err == nil {
			t.Errorf("createScene(%q) should fail", id)
		}
	}

	if _, err := s.createScene("yaml:ball", 32, 1); err != nil {
		t.Errorf("createScene(yaml:ball) error: %v", err)
	}
}

func TestParseRenderRequest(t *testing.T) {
	s := NewServer(0, "")

	req, err := s.parseRenderRequest(httptest.NewRequest("GET", "/api/render", nil))
	if err != nil {
		t.Fatalf("parseRenderRequest() error: %v", err)
	}
	want := &RenderRequest{Scene: "default", Width: 400, MaxSamples: 50, MaxPasses: 7, Seed: 42}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}

	for _, query := range []string{"width=8", "width=abc", "maxSamples=0", "maxPasses=101", "maxDepth=-1", "seed=-5"} {
		if _, err := s.parseRenderRequest(httptest.NewRequest("GET", "/api/render?"+query, nil)); err == nil {
			t.Errorf("parseRenderRequest(%q) should fail", query)
		}
	}
}

func TestHandleInspect(t *testing.T) {
	ts, _ := newTestServer(t)

	// The ball sits straight ahead of the default camera
	var hit InspectResponse
	getJSON(t, ts.URL+"/api/inspect?scene=yaml:ball&width=32&x=16&y=9", http.StatusOK, &hit)
	if !hit.Hit {
		t.Fatal("expected the center pixel to hit the ball")
	}
	if hit.MaterialType != "lambertian" || hit.GeometryType != "sphere" {
		t.Errorf("hit %s %s, want lambertian sphere", hit.MaterialType, hit.GeometryType)
	}
	if !hit.FrontFace || hit.Distance < 0.4 || hit.Distance > 0.6 {
		t.Errorf("unexpected hit: %+v", hit)
	}

	var miss InspectResponse
	getJSON(t, ts.URL+"/api/inspect?scene=yaml:ball&width=32&x=0&y=0", http.StatusOK, &miss)
	if miss.Hit {
		t.Errorf("expected the corner pixel to see sky, got %+v", miss)
	}

	var errBody map[string]string
	getJSON(t, ts.URL+"/api/inspect?scene=yaml:ball&width=32&x=32&y=0", http.StatusBadRequest, &errBody)
	getJSON(t, ts.URL+"/api/inspect?scene=yaml:ball&x=abc&y=0", http.StatusBadRequest, &errBody)
}

func TestHandleRender(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/render?scene=yaml:ball&width=32&maxSamples=4&maxPasses=2&maxDepth=5")
	if err != nil {
		t.Fatalf("GET /api/render: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", got)
	}

	events := readEvents(t, resp)
	counts := map[string]int{}
	var passes []PassUpdate
	for _, e := range events {
		counts[e.Type]++
		if e.Type == "passComplete" {
			var update PassUpdate
			if err := json.Unmarshal([]byte(e.Data), &update); err != nil {
				t.Fatalf("decoding pass update: %v", err)
			}
			passes = append(passes, update)
		}
	}

	if counts["error"] != 0 {
		t.Fatalf("unexpected error events: %+v", events)
	}
	if len(passes) != 2 {
		t.Fatalf("got %d passComplete events, want 2", len(passes))
	}
	// 32x18 in 32px tiles is one row of one tile per pass
	if counts["tile"] != 2 {
		t.Errorf("got %d tile events, want 2", counts["tile"])
	}
	if counts["complete"] != 1 || events[len(events)-1].Type != "complete" {
		t.Errorf("stream should end with a single complete event, got %v", counts)
	}

	last := passes[len(passes)-1]
	if !last.IsComplete || last.MinSamples != 4 || last.PrimitiveCount != 1 {
		t.Errorf("unexpected final pass: %+v", last)
	}

	raw, err := base64.StdEncoding.DecodeString(last.ImageData)
	if err != nil {
		t.Fatalf("decoding base64 image: %v", err)
	}
	img, err := png.Decode(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("decoding PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 18 {
		t.Errorf("image is %dx%d, want 32x18", b.Dx(), b.Dy())
	}
}

func TestHandleRender_InvalidRequest(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, query := range []string{"scene=nope", "width=1"} {
		resp, err := http.Get(ts.URL + "/api/render?" + query)
		if err != nil {
			t.Fatalf("GET /api/render?%s: %v", query, err)
		}
		events := readEvents(t, resp)
		resp.Body.Close()

		if len(events) != 1 || events[0].Type != "error" {
			t.Errorf("query %q: events = %+v, want a single error", query, events)
		}
	}
}

func TestHandleRender_ClientDisconnect(t *testing.T) {
	ts, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/render?scene=default&width=200&maxSamples=10000&maxPasses=100", nil)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/render: %v", err)
	}

	// Wait for the first event so the render is under way, then hang up
	reader := bufio.NewReader(resp.Body)
	if _, err := reader.ReadString('\n'); err != nil {
		t.Fatalf("reading first event: %v", err)
	}
	cancel()
	resp.Body.Close()

	// Closing the test server waits for the handler; it must return promptly
	done := make(chan struct{})
	go func() {
		ts.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("render handler did not stop after the client disconnected")
	}
}
