package server

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/segment-tools-mcp/internal/config"
	"github.com/ironsheep/segment-tools-mcp/internal/controller"
	"github.com/ironsheep/segment-tools-mcp/internal/raster"
	"github.com/ironsheep/segment-tools-mcp/internal/segment"
)

const (
	mockModel = "test-mock"
	redModel  = "test-red"
)

func init() {
	segment.Register(mockModel, "paints everything background", func(ctx context.Context, cfg config.Config) (segment.Provider, error) {
		return segment.NewMock(), nil
	})
	segment.Register(redModel, "paints everything as a red thing", func(ctx context.Context, cfg config.Config) (segment.Provider, error) {
		m := segment.NewMock()
		m.SegmentFunc = func(ctx context.Context, in *raster.Raster) (*segment.Result, error) {
			out, err := raster.New(in.Width, in.Height, raster.RGBA)
			if err != nil {
				return nil, err
			}
			for i := 0; i < len(out.Pix); i += raster.RGBA {
				out.Pix[i], out.Pix[i+3] = 0xff, 0xff
			}
			return &segment.Result{Raster: out, Legend: segment.Legend{"thing": segment.RGB(255, 0, 0)}}, nil
		}
		return m, nil
	})
}

// createTestImageFile writes a solid PNG into a temp dir and returns its path.
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "handler-test.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeResult unpacks the JSON text content of a successful tool call.
func decodeResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("Result is %T", resp.Result)
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("unexpected content: %v", result["content"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("decode result: %v\n%s", err, text)
	}
}

func expectToolError(t *testing.T, resp *MCPResponse, contains string) {
	t.Helper()

	if resp.Error == nil {
		t.Fatal("Expected an error response")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("Error code: got %d, want -32000", resp.Error.Code)
	}
	data, _ := resp.Error.Data.(string)
	if !strings.Contains(data, contains) {
		t.Errorf("Error data %q should contain %q", data, contains)
	}
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := New(config.Default())
	imgPath := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	var info raster.Info
	decodeResult(t, callTool(t, s, "image_load", map[string]interface{}{"path": imgPath}), &info)

	if info.Width != 100 || info.Height != 80 {
		t.Errorf("size: got %dx%d, want 100x80", info.Width, info.Height)
	}
	if info.Format != "png" || info.MimeType != "image/png" {
		t.Errorf("format: got %s %s", info.Format, info.MimeType)
	}
	if info.FileSizeBytes <= 0 {
		t.Error("file size should be positive")
	}
}

func TestHandleToolsCall_ImageDimensions(t *testing.T) {
	s := New(config.Default())
	imgPath := createTestImageFile(t, 200, 150, color.RGBA{0, 255, 0, 255})

	var dims DimensionsResult
	decodeResult(t, callTool(t, s, "image_dimensions", map[string]interface{}{"path": imgPath}), &dims)

	if dims.Width != 200 || dims.Height != 150 {
		t.Errorf("got %dx%d, want 200x150", dims.Width, dims.Height)
	}
}

func TestHandleToolsCall_FileErrors(t *testing.T) {
	s := New(config.Default())

	missing := filepath.Join(t.TempDir(), "nonexistent.png")
	expectToolError(t, callTool(t, s, "image_load", map[string]interface{}{"path": missing}), "failed to open image")

	text := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(text, []byte("definitely not pixels"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	expectToolError(t, callTool(t, s, "image_dimensions", map[string]interface{}{"path": text}), "not an image")
	expectToolError(t, callTool(t, s, "segment_load_image", map[string]interface{}{"path": text}), "not an image")
}

func TestHandleToolsCall_UnknownTool(t *testing.T) {
	s := New(config.Default())
	expectToolError(t, callTool(t, s, "image_crop", nil), "unknown tool")
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New(config.Default())
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  json.RawMessage(`"segment_run"`),
	})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("got %+v, want code -32602", resp.Error)
	}
}

func TestHandleToolsCall_MissingArguments(t *testing.T) {
	s := New(config.Default())

	expectToolError(t, callTool(t, s, "segment_load_model", nil), "model is required")
	expectToolError(t, callTool(t, s, "segment_load_image", map[string]interface{}{}), "path is required")
	expectToolError(t, callTool(t, s, "segment_compare_models", map[string]interface{}{"path": "x.png"}), "at least one model")
}

func TestListModels(t *testing.T) {
	s := New(config.Default())

	var out struct {
		Models []ModelInfo `json:"models"`
	}
	decodeResult(t, callTool(t, s, "segment_list_models", nil), &out)

	byName := make(map[string]ModelInfo)
	for _, m := range out.Models {
		byName[m.Name] = m
	}

	pascal, ok := byName["pascal"]
	if !ok {
		t.Fatal("pascal should be listed")
	}
	if !pascal.Default {
		t.Error("pascal is the default model")
	}
	if len(pascal.Classes) != 21 || pascal.Classes[15] != "person" {
		t.Errorf("pascal classes: got %d, want 21 with person at 15", len(pascal.Classes))
	}

	mock, ok := byName[mockModel]
	if !ok {
		t.Fatalf("%s should be listed", mockModel)
	}
	if mock.Default || len(mock.Classes) != 0 {
		t.Errorf("unexpected mock entry: %+v", mock)
	}
}

func TestSession_ModelThenImage(t *testing.T) {
	s := New(config.Default())
	imgPath := createTestImageFile(t, 12, 8, color.RGBA{10, 20, 30, 255})

	var loaded SessionResult
	decodeResult(t, callTool(t, s, "segment_load_model", map[string]interface{}{"model": mockModel}), &loaded)
	if loaded.Result != nil {
		t.Error("no segmentation should run without an image")
	}
	if !loaded.Session.ModelReady || loaded.Session.Model != mockModel {
		t.Errorf("unexpected session: %+v", loaded.Session)
	}
	if loaded.Session.Status.State != controller.StateReady {
		t.Errorf("state: got %s, want ready", loaded.Session.Status.State)
	}

	var ran SessionResult
	decodeResult(t, callTool(t, s, "segment_load_image", map[string]interface{}{"path": imgPath}), &ran)
	res := ran.Result
	if res == nil {
		t.Fatal("loading an image with a model ready should segment")
	}
	if res.Model != mockModel || res.Width != 12 || res.Height != 8 || res.RequestID == "" {
		t.Errorf("unexpected result header: %+v", res)
	}
	if len(res.Legend) != 1 || res.Legend[0].Label != "background" || res.Legend[0].Hex != "#000000" {
		t.Errorf("unexpected legend: %+v", res.Legend)
	}
	if res.Coverage == nil || len(res.Coverage.Classes) != 1 || res.Coverage.Classes[0].Percentage != 100 {
		t.Errorf("unexpected coverage: %+v", res.Coverage)
	}
	if res.Overlay == nil || res.Overlay.Width != 12 || res.Overlay.MimeType != "image/png" || res.Overlay.ImageBase64 == "" {
		t.Errorf("unexpected overlay: %+v", res.Overlay)
	}
	if res.Mask != nil {
		t.Error("mask should only be returned on request")
	}
	if ran.Session.Status.State != controller.StateComplete {
		t.Errorf("state: got %s, want complete", ran.Session.Status.State)
	}
}

func TestSession_ImageThenModel(t *testing.T) {
	s := New(config.Default())
	imgPath := createTestImageFile(t, 4, 4, color.White)

	var loaded SessionResult
	decodeResult(t, callTool(t, s, "segment_load_image", map[string]interface{}{"path": imgPath}), &loaded)
	if loaded.Result != nil || !loaded.Session.ImageLoaded || loaded.Session.ImagePath != imgPath {
		t.Errorf("unexpected session after image load: %+v", loaded)
	}

	var ran SessionResult
	decodeResult(t, callTool(t, s, "segment_load_model", map[string]interface{}{"model": redModel}), &ran)
	if ran.Result == nil || ran.Result.Legend[0].Label != "thing" {
		t.Fatalf("loading a model with an image loaded should segment, got %+v", ran.Result)
	}
}

func TestSegmentRun(t *testing.T) {
	s := New(config.Default())
	imgPath := createTestImageFile(t, 6, 6, color.White)

	expectToolError(t, callTool(t, s, "segment_run", nil), "provider not ready")

	callTool(t, s, "segment_load_model", map[string]interface{}{"model": mockModel})
	expectToolError(t, callTool(t, s, "segment_run", nil), "no image loaded")

	callTool(t, s, "segment_load_image", map[string]interface{}{"path": imgPath})
	expectToolError(t, callTool(t, s, "segment_run", map[string]interface{}{"opacity": 1.5}), "outside [0,1]")

	var res SegmentationResult
	decodeResult(t, callTool(t, s, "segment_run", map[string]interface{}{"opacity": 0.25, "include_mask": true}), &res)
	if res.Mask == nil || res.Mask.Width != 6 || res.Mask.Height != 6 {
		t.Errorf("unexpected mask: %+v", res.Mask)
	}

	var snap controller.Snapshot
	decodeResult(t, callTool(t, s, "segment_status", nil), &snap)
	if !snap.HasResult || snap.Generation != 2 || snap.Model != mockModel {
		t.Errorf("unexpected status: %+v", snap)
	}
}

func TestSegmentLegend(t *testing.T) {
	s := New(config.Default())
	expectToolError(t, callTool(t, s, "segment_legend", nil), "no segmentation yet")

	callTool(t, s, "segment_load_model", map[string]interface{}{"model": redModel})
	callTool(t, s, "segment_load_image", map[string]interface{}{"path": createTestImageFile(t, 3, 3, color.Black)})

	var legend LegendResult
	decodeResult(t, callTool(t, s, "segment_legend", nil), &legend)
	if legend.Model != redModel || len(legend.Entries) != 1 || legend.Entries[0].Hex != "#ff0000" {
		t.Errorf("unexpected legend: %+v", legend)
	}
	if legend.Image == nil || legend.Image.Width == 0 || legend.Image.ImageBase64 == "" {
		t.Errorf("legend image missing: %+v", legend.Image)
	}
}

func TestSegmentImage_LeavesSessionUntouched(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultModel = mockModel
	s := New(cfg)
	imgPath := createTestImageFile(t, 10, 5, color.White)

	var res SegmentationResult
	decodeResult(t, callTool(t, s, "segment_image", map[string]interface{}{"path": imgPath, "model": redModel}), &res)
	if res.Model != redModel || res.Width != 10 || res.Height != 5 {
		t.Errorf("unexpected result: %+v", res)
	}

	var def SegmentationResult
	decodeResult(t, callTool(t, s, "segment_image", map[string]interface{}{"path": imgPath, "include_mask": true}), &def)
	if def.Model != mockModel || def.Mask == nil {
		t.Errorf("default model result: %+v", def)
	}

	snap := s.Controller().Snapshot()
	if snap.ImageLoaded || snap.HasResult || snap.Model != "" {
		t.Errorf("segment_image must not change the session: %+v", snap)
	}

	expectToolError(t, callTool(t, s, "segment_image", map[string]interface{}{"path": imgPath, "model": "nope"}), "unknown model")
}

func TestCompareModels(t *testing.T) {
	s := New(config.Default())
	imgPath := createTestImageFile(t, 8, 4, color.White)

	var out struct {
		Width   int               `json:"width"`
		Height  int               `json:"height"`
		Results []ModelComparison `json:"results"`
	}
	decodeResult(t, callTool(t, s, "segment_compare_models", map[string]interface{}{
		"path":   imgPath,
		"models": []string{redModel, mockModel},
	}), &out)

	if out.Width != 8 || out.Height != 4 {
		t.Errorf("size: got %dx%d, want 8x4", out.Width, out.Height)
	}
	if len(out.Results) != 2 {
		t.Fatalf("results: got %d, want 2", len(out.Results))
	}
	if out.Results[0].Model != redModel || out.Results[0].Legend[0].Label != "thing" {
		t.Errorf("first result: %+v", out.Results[0])
	}
	if out.Results[1].Model != mockModel || out.Results[1].Coverage.Classes[0].Label != "background" {
		t.Errorf("second result: %+v", out.Results[1])
	}

	expectToolError(t, callTool(t, s, "segment_compare_models", map[string]interface{}{
		"path":   imgPath,
		"models": []string{mockModel, "nope"},
	}), "unknown model")
}
