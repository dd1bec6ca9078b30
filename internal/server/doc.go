// Package server implements the MCP (Model Context Protocol) server for image
// segmentation tools.
//
// This package provides a JSON-RPC 2.0 server that exposes an interactive
// segmentation session through the MCP protocol. A client selects a model,
// loads an image, and receives a color-coded overlay, a legend mapping class
// labels to colors, and per-class coverage.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// Session progress (loading, ready, running, complete, error) is pushed to
// the client as notifications/message frames while a tool call is running.
// Work registered with WithInitHook starts after the client sends
// notifications/initialized. Canceling the context passed to Run stops the
// server even while stdin is idle.
//
// # Available Tools
//
// Session:
//   - segment_list_models: Models that can be loaded, with class labels
//   - segment_load_model: Select a model; segments if an image is loaded
//   - segment_load_image: Load an image; segments if a model is loaded
//   - segment_run: Segment the loaded image with the selected model
//   - segment_status: Current model, image and status message
//   - segment_legend: Legend of the latest result as a PNG
//
// One-shot:
//   - segment_image: Segment a file without touching the session
//   - segment_compare_models: Run several models on one file concurrently
//
// Basic Image Information:
//   - image_load: Image metadata
//   - image_dimensions: Width and height
//
// # Image Caching
//
// Encoded image files are kept in a size-bounded LRU cache keyed by path, so
// repeated tool calls on the same file skip the disk. Every call decodes a
// fresh raster from the cached bytes.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	srv := server.New(cfg, server.WithVersion(Version))
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
