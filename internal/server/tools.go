package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func opacityProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": "Weight of the segmentation colors in the overlay, 0 to 1. Defaults to the server setting (0.5).",
		"minimum":     0,
		"maximum":     1,
	}
}

func includeMaskProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "boolean",
		"description": "Also return the bare segmentation mask as PNG. Default false",
		"default":     false,
	}
}

func noArguments() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Session
		{
			Name:        "segment_list_models",
			Description: "List the segmentation models this server can load, with their class labels when known.",
			InputSchema: noArguments(),
		},
		{
			Name:        "segment_load_model",
			Description: "Select and load a segmentation model. If an image is already loaded, segmentation runs immediately and the result is returned.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"model": map[string]interface{}{
						"type":        "string",
						"description": "Model name from segment_list_models (e.g. pascal, cityscapes, ade20k, kmeans, text)",
					},
				},
				"required": []string{"model"},
			},
		},
		{
			Name:        "segment_load_image",
			Description: "Load the image to segment. Non-image files are rejected. If a model is already loaded, segmentation runs immediately and the result is returned.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "segment_run",
			Description: "Run the loaded model on the loaded image. Returns the legend, per-class coverage and a base64 PNG overlay.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"opacity":      opacityProperty(),
					"include_mask": includeMaskProperty(),
				},
			},
		},
		{
			Name:        "segment_status",
			Description: "Report the session state: selected model, loaded image and the last status message.",
			InputSchema: noArguments(),
		},
		{
			Name:        "segment_legend",
			Description: "Render the legend of the latest segmentation as a PNG, with the label to color mapping.",
			InputSchema: noArguments(),
		},

		// One-shot
		{
			Name:        "segment_image",
			Description: "Segment an image file with a model in one call, without changing the session. Returns the legend, coverage and overlay.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"model": map[string]interface{}{
						"type":        "string",
						"description": "Model name. Defaults to the server's default model",
					},
					"opacity":      opacityProperty(),
					"include_mask": includeMaskProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "segment_compare_models",
			Description: "Segment one image with several models concurrently and report each model's legend and coverage. Fails if any model fails.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"models": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"minItems":    1,
						"description": "Model names to compare",
					},
				},
				"required": []string{"path", "models"},
			},
		},

		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Read an image file's metadata: dimensions, format, MIME type and size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
