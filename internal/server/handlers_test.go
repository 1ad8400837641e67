package server

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/smart-trapper/internal/artwork"
	"github.com/ironsheep/smart-trapper/internal/config"
	"github.com/ironsheep/smart-trapper/internal/engine"
	"github.com/ironsheep/smart-trapper/internal/host"
	pimaging "github.com/ironsheep/smart-trapper/internal/imaging"
	"github.com/ironsheep/smart-trapper/internal/manifest"
	"github.com/ironsheep/smart-trapper/internal/workflow"
)

func fill(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// createTestBundle saves a KEY / Cyan / Magenta / PAPER artwork.
func createTestBundle(t *testing.T) string {
	t.Helper()
	doc := artwork.NewDocument("card.psd", 60, 40, 600)
	key := artwork.NewPixelLayer("KEY", doc.Canvas())
	fill(key.Pixels, image.Rect(30, 5, 50, 35), color.NRGBA{A: 255})
	magenta := artwork.NewPixelLayer("Magenta", doc.Canvas())
	fill(magenta.Pixels, image.Rect(20, 10, 40, 30), color.NRGBA{R: 230, B: 140, A: 255})
	magenta.BlendMode = artwork.BlendMultiply
	cyan := artwork.NewPixelLayer("Cyan", doc.Canvas())
	fill(cyan.Pixels, image.Rect(2, 2, 34, 20), color.NRGBA{G: 170, B: 230, A: 255})
	paper := artwork.NewPixelLayer("PAPER", doc.Canvas())
	fill(paper.Pixels, doc.Canvas(), color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	doc.Layers = []*artwork.Layer{key, magenta, cyan, paper}

	dir := t.TempDir()
	if err := artwork.Save(doc, dir); err != nil {
		t.Fatalf("save bundle: %v", err)
	}
	return dir
}

// stubEngine writes a single Cyan over KEY trap.
type stubEngine struct {
	width int
	mode  string
}

func (e *stubEngine) Run(_ context.Context, jobDir string, width int, mode string) (*engine.Result, error) {
	e.width, e.mode = width, mode
	job, err := manifest.ReadJob(jobDir)
	if err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, job.WidthPx, job.HeightPx))
	fill(img, image.Rect(30, 5, 34, 20), color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	if err := pimaging.Save(img, filepath.Join(jobDir, "traps", "Cyan_over_KEY.png")); err != nil {
		return nil, err
	}
	err = manifest.WriteTraps(jobDir, &manifest.Traps{Traps: []manifest.Trap{
		{Source: "Cyan", Target: "KEY", PNG: "traps/Cyan_over_KEY.png"},
	}})
	return &engine.Result{LogPath: filepath.Join(jobDir, engine.LogFile)}, err
}

func newTestServer(t *testing.T, eng workflow.EngineRunner) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.JobsDir = t.TempDir()
	cfg.Debug.ImportOverlays = false
	factory := func(op workflow.Operator) *workflow.Controller {
		return workflow.New(host.NewSession(nil), &cfg, eng, op, nil)
	}
	return New(&cfg, factory, nil, "test")
}

// callTool runs a tools/call and returns the decoded text payload.
func callTool(t *testing.T, s *Server, name string, args interface{}) (map[string]interface{}, *MCPError) {
	t.Helper()
	paramsJSON, _ := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content %v", content)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	return payload, nil
}

func TestHandleTrapWidth(t *testing.T) {
	s := newTestServer(t, nil)
	tests := []struct {
		resolution float64
		want       float64
	}{
		{300, 5},
		{600, 10},
		{1200, 20},
		{72, 1},
	}
	for _, tt := range tests {
		got, rpcErr := callTool(t, s, "trap_width", map[string]interface{}{"resolution": tt.resolution})
		if rpcErr != nil {
			t.Fatalf("trap_width(%g): %v", tt.resolution, rpcErr)
		}
		if got["width"] != tt.want {
			t.Errorf("trap_width(%g) = %v, want %v", tt.resolution, got["width"], tt.want)
		}
	}

	if _, rpcErr := callTool(t, s, "trap_width", map[string]interface{}{"resolution": 0}); rpcErr == nil {
		t.Error("zero resolution accepted")
	}
}

func TestHandleTrapPlates(t *testing.T) {
	s := newTestServer(t, nil)
	dir := createTestBundle(t)

	got, rpcErr := callTool(t, s, "trap_plates", map[string]interface{}{"bundle": dir})
	if rpcErr != nil {
		t.Fatalf("trap_plates: %v", rpcErr)
	}
	if got["key"] != "KEY" || got["paper"] != "PAPER" {
		t.Errorf("key/paper = %v/%v", got["key"], got["paper"])
	}
	colors := got["colors"].([]interface{})
	if len(colors) != 2 || colors[0] != "Cyan" || colors[1] != "Magenta" {
		t.Errorf("colors = %v, want [Cyan Magenta] (bottom to top)", colors)
	}
	overlaps := got["overlaps"].([]interface{})
	if len(overlaps) != 1 || overlaps[0] != "Magenta" {
		t.Errorf("overlaps = %v", overlaps)
	}
}

func TestHandleTrapRun(t *testing.T) {
	eng := &stubEngine{}
	s := newTestServer(t, eng)
	dir := createTestBundle(t)

	got, rpcErr := callTool(t, s, "trap_run", map[string]interface{}{
		"bundle": dir,
		"mode":   "overprint",
		"width":  3.4,
	})
	if rpcErr != nil {
		t.Fatalf("trap_run: %v (%v)", rpcErr.Message, rpcErr.Data)
	}
	if eng.width != 3 || eng.mode != "overprint" {
		t.Errorf("engine saw width=%d mode=%s", eng.width, eng.mode)
	}
	if got["mode"] != "overprint" || got["trapWidth"] != float64(3) {
		t.Errorf("report mode/width = %v/%v", got["mode"], got["trapWidth"])
	}
	imp := got["import"].(map[string]interface{})
	if imp["imported"] != float64(1) {
		t.Errorf("imported = %v, want 1", imp["imported"])
	}

	job, rpcErr := callTool(t, s, "trap_job", map[string]interface{}{"job_dir": got["jobDir"]})
	if rpcErr != nil {
		t.Fatalf("trap_job: %v (%v)", rpcErr.Message, rpcErr.Data)
	}
	if job["trapped"] != true || job["problems"] != float64(0) {
		t.Errorf("trap_job = trapped %v problems %v", job["trapped"], job["problems"])
	}
	// KEY, Cyan and Magenta masks plus the one trap.
	if files := job["files"].([]interface{}); len(files) != 4 {
		t.Errorf("trap_job listed %d files, want 4", len(files))
	}

	doc, err := artwork.Load(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	found := doc.FindAll("TRAP__Cyan_over_KEY", nil)
	if len(found) != 1 {
		t.Fatalf("found %d trap layers, want 1", len(found))
	}
	if found[0].Parent == nil || found[0].Parent.Name != "COLOR__Cyan" {
		t.Errorf("trap layer not inside COLOR__Cyan")
	}
}

func TestHandleToolErrors(t *testing.T) {
	s := newTestServer(t, &stubEngine{})
	tests := []struct {
		name string
		tool string
		args interface{}
		want string
	}{
		{"unknown tool", "trap_nope", map[string]interface{}{}, "unknown tool"},
		{"run without bundle", "trap_run", map[string]interface{}{}, "bundle is required"},
		{"bad mode", "trap_export", map[string]interface{}{"bundle": "/x", "mode": "knockout"}, "unknown trapping mode"},
		{"import without job", "trap_import", map[string]interface{}{"bundle": "/x"}, "job_dir is required"},
		{"missing bundle", "trap_plates", map[string]interface{}{"bundle": filepath.Join(t.TempDir(), "none")}, "artwork"},
		{"bad arguments", "trap_width", "not an object", "invalid arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rpcErr := callTool(t, s, tt.tool, tt.args)
			if rpcErr == nil {
				t.Fatal("expected an error")
			}
			if rpcErr.Code != -32000 {
				t.Errorf("code = %d, want -32000", rpcErr.Code)
			}
			if data, _ := rpcErr.Data.(string); !strings.Contains(data, tt.want) {
				t.Errorf("error data %q does not mention %q", data, tt.want)
			}
		})
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      7,
		Method:  "tools/call",
		Params:  json.RawMessage(`[1,2]`),
	})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("got %+v, want -32602", resp.Error)
	}
}
