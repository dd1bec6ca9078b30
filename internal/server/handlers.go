package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/segment-tools-mcp/internal/controller"
	"github.com/ironsheep/segment-tools-mcp/internal/logger"
	"github.com/ironsheep/segment-tools-mcp/internal/provider/deeplab"
	"github.com/ironsheep/segment-tools-mcp/internal/raster"
	"github.com/ironsheep/segment-tools-mcp/internal/render"
	"github.com/ironsheep/segment-tools-mcp/internal/segment"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "segment_run", "image_load").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	ctx = logger.WithEntry(ctx, logger.Entry(ctx).WithField("tool", params.Name))
	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		logger.Entry(ctx).WithError(err).Debug("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	// Session
	case "segment_list_models":
		return s.handleListModels()
	case "segment_load_model":
		return s.handleLoadModel(ctx, args)
	case "segment_load_image":
		return s.handleLoadImage(ctx, args)
	case "segment_run":
		return s.handleRun(ctx, args)
	case "segment_status":
		return s.ctl.Snapshot(), nil
	case "segment_legend":
		return s.handleLegend()

	// One-shot
	case "segment_image":
		return s.handleSegmentImage(ctx, args)
	case "segment_compare_models":
		return s.handleCompareModels(ctx, args)

	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Result Rendering ===

// SegmentationResult is what segment_run, segment_image and the load tools
// return for a finished run.
type SegmentationResult struct {
	// Model is the registry name of the model that produced the result.
	Model string `json:"model"`

	// RequestID identifies a session run in the server logs. It is empty for
	// segment_image.
	RequestID string `json:"request_id,omitempty"`

	// Width and Height are the size of the segmentation, which always
	// matches the input image.
	Width  int `json:"width"`
	Height int `json:"height"`

	// ElapsedMS is the time spent in the model, in milliseconds.
	ElapsedMS int64 `json:"elapsed_ms"`

	// Legend lists the classes present, ordered by label.
	Legend []segment.LegendEntry `json:"legend"`

	// Coverage is the share of the image each class covers, largest first.
	Coverage *render.CoverageReport `json:"coverage"`

	// Overlay is the segmentation blended over the input as a base64 PNG.
	Overlay *raster.Encoded `json:"overlay,omitempty"`

	// Mask is the bare segmentation as a base64 PNG. Only set when the
	// caller passes include_mask.
	Mask *raster.Encoded `json:"mask,omitempty"`
}

type renderOptions struct {
	Opacity     *float64 `json:"opacity"`
	IncludeMask bool     `json:"include_mask"`
}

func (o renderOptions) opacity(def float64) (float64, error) {
	if o.Opacity == nil {
		return def, nil
	}
	if *o.Opacity < 0 || *o.Opacity > 1 {
		return 0, fmt.Errorf("opacity %v outside [0,1]", *o.Opacity)
	}
	return *o.Opacity, nil
}

func (s *Server) renderResult(model, requestID string, in *raster.Raster, res *segment.Result, elapsed time.Duration, opts renderOptions) (*SegmentationResult, error) {
	opacity, err := opts.opacity(s.cfg.OverlayOpacity)
	if err != nil {
		return nil, err
	}

	coverage, err := render.Coverage(res)
	if err != nil {
		return nil, err
	}

	base, err := in.Image()
	if err != nil {
		return nil, err
	}
	overlay, err := render.Overlay(base, res, opacity)
	if err != nil {
		return nil, err
	}
	encoded, err := raster.EncodePNG(overlay)
	if err != nil {
		return nil, err
	}

	out := &SegmentationResult{
		Model:     model,
		RequestID: requestID,
		Width:     res.Raster.Width,
		Height:    res.Raster.Height,
		ElapsedMS: elapsed.Milliseconds(),
		Legend:    res.Legend.Entries(),
		Coverage:  coverage,
		Overlay:   encoded,
	}

	if opts.IncludeMask {
		mask, err := render.Mask(res)
		if err != nil {
			return nil, err
		}
		if out.Mask, err = raster.EncodePNG(mask); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Server) renderOutcome(o *controller.Outcome, opts renderOptions) (*SegmentationResult, error) {
	return s.renderResult(o.Model, o.RequestID, o.Input, o.Result, o.Elapsed, opts)
}

// === Session Handlers ===

// ModelInfo describes a loadable model in segment_list_models.
type ModelInfo struct {
	// Name is the value to pass as "model".
	Name string `json:"name"`

	Description string `json:"description"`

	// Default marks the model loaded at startup.
	Default bool `json:"default,omitempty"`

	// Classes lists the labels a model can emit, by class id. Empty for
	// models whose classes depend on the image (kmeans).
	Classes []string `json:"classes,omitempty"`
}

func (s *Server) handleListModels() (interface{}, error) {
	regs := segment.Registrations()
	models := make([]ModelInfo, 0, len(regs))
	for _, r := range regs {
		info := ModelInfo{
			Name:        r.Name,
			Description: r.Description,
			Default:     r.Name == s.cfg.DefaultModel,
		}
		if table, ok := deeplab.Classes(deeplab.Variant(r.Name)); ok {
			info.Classes = table.Names()
		}
		models = append(models, info)
	}
	return map[string]interface{}{"models": models}, nil
}

// SessionResult reports the session after a load, with the segmentation it
// triggered, if any.
type SessionResult struct {
	// Session is the state after the command.
	Session controller.Snapshot `json:"session"`

	// Result is set when the load completed the model and image pair and a
	// segmentation ran. Nil otherwise.
	Result *SegmentationResult `json:"result,omitempty"`
}

// dispatch runs cmd and renders the run it triggered, if any.
func (s *Server) dispatch(ctx context.Context, cmd controller.Command, opts renderOptions) (*SessionResult, error) {
	var before uint64
	if o := s.ctl.Latest(); o != nil {
		before = o.Generation
	}

	if err := s.ctl.Dispatch(ctx, cmd); err != nil {
		return nil, err
	}

	out := &SessionResult{Session: s.ctl.Snapshot()}
	if o := s.ctl.Latest(); o != nil && o.Generation > before {
		res, err := s.renderOutcome(o, opts)
		if err != nil {
			return nil, err
		}
		out.Result = res
	}
	return out, nil
}

type loadModelArgs struct {
	Model string `json:"model"`
}

func (s *Server) handleLoadModel(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a loadModelArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	return s.dispatch(ctx, controller.LoadModel{Name: a.Model}, renderOptions{})
}

type imagePathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleLoadImage(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imagePathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	return s.dispatch(ctx, controller.LoadImagePath{Path: a.Path}, renderOptions{})
}

func (s *Server) handleRun(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a renderOptions
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if _, err := a.opacity(s.cfg.OverlayOpacity); err != nil {
		return nil, err
	}
	if err := s.ctl.Dispatch(ctx, controller.Segment{}); err != nil {
		return nil, err
	}
	return s.renderOutcome(s.ctl.Latest(), a)
}

// LegendResult is the rendered legend of the latest segmentation.
type LegendResult struct {
	Model string `json:"model"`

	// Entries are the legend rows in the order they are drawn.
	Entries []segment.LegendEntry `json:"entries"`

	// Image is a base64 PNG with one 20x20 swatch and label per entry.
	Image *raster.Encoded `json:"image"`
}

func (s *Server) handleLegend() (interface{}, error) {
	o := s.ctl.Latest()
	if o == nil {
		return nil, fmt.Errorf("no segmentation yet: load a model and an image first")
	}
	img, err := render.LegendImage(o.Result.Legend)
	if err != nil {
		return nil, err
	}
	encoded, err := raster.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	return &LegendResult{Model: o.Model, Entries: o.Result.Legend.Entries(), Image: encoded}, nil
}

// === One-shot Handlers ===

type segmentImageArgs struct {
	Path  string `json:"path"`
	Model string `json:"model"`
	renderOptions
}

func (s *Server) handleSegmentImage(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a segmentImageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Model == "" {
		a.Model = s.cfg.DefaultModel
	}

	in, err := s.loader.Load(a.Path)
	if err != nil {
		return nil, err
	}
	p, err := s.ctl.Provider(ctx, a.Model)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := segment.Run(ctx, in, p)
	if err != nil {
		return nil, err
	}
	return s.renderResult(a.Model, "", in, res, time.Since(start), a.renderOptions)
}

type compareModelsArgs struct {
	Path   string   `json:"path"`
	Models []string `json:"models"`
}

// ModelComparison is one model's share of a segment_compare_models result.
// Results are returned in the order the models were requested. No images
// are included; use segment_image for a single model's overlay.
type ModelComparison struct {
	Model     string                 `json:"model"`
	ElapsedMS int64                  `json:"elapsed_ms"`
	Legend    []segment.LegendEntry  `json:"legend"`
	Coverage  *render.CoverageReport `json:"coverage"`
}

func (s *Server) handleCompareModels(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a compareModelsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if len(a.Models) == 0 {
		return nil, fmt.Errorf("at least one model is required")
	}

	in, err := s.loader.Load(a.Path)
	if err != nil {
		return nil, err
	}

	results := make([]ModelComparison, len(a.Models))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range a.Models {
		i, name := i, name
		g.Go(func() error {
			p, err := s.ctl.Provider(gctx, name)
			if err != nil {
				return err
			}
			start := time.Now()
			res, err := segment.Run(gctx, in, p)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			coverage, err := render.Coverage(res)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			results[i] = ModelComparison{
				Model:     name,
				ElapsedMS: time.Since(start).Milliseconds(),
				Legend:    res.Legend.Entries(),
				Coverage:  coverage,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"width":   in.Width,
		"height":  in.Height,
		"results": results,
	}, nil
}

// === Basic Image Information Handlers ===

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imagePathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return s.loader.LoadInfo(a.Path)
}

// DimensionsResult holds an image's size, as returned by image_dimensions.
type DimensionsResult struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imagePathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	info, err := s.loader.LoadInfo(a.Path)
	if err != nil {
		return nil, err
	}
	return &DimensionsResult{Width: info.Width, Height: info.Height}, nil
}
