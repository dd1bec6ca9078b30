package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ironsheep/segment-tools-mcp/internal/config"
	"github.com/ironsheep/segment-tools-mcp/internal/controller"
	"github.com/ironsheep/segment-tools-mcp/internal/logger"
	"github.com/ironsheep/segment-tools-mcp/internal/raster"
)

// Server handles MCP protocol communication
type Server struct {
	cfg     config.Config
	version string
	loader  *raster.Loader
	ctl     *controller.Controller

	in  io.Reader
	out io.Writer

	mu      sync.Mutex
	encoder *json.Encoder

	onInit   func(ctx context.Context)
	initOnce sync.Once
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Option configures a Server.
type Option func(*Server)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		s.in = in
		s.out = out
	}
}

// WithVersion sets the version reported by initialize.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithController replaces the session controller.
func WithController(c *controller.Controller) Option {
	return func(s *Server) { s.ctl = c }
}

// WithInitHook registers fn to run on its own goroutine once the client
// acknowledges the handshake with notifications/initialized. Notifications
// sent from fn reach the client after the initialize response.
func WithInitHook(fn func(ctx context.Context)) Option {
	return func(s *Server) { s.onInit = fn }
}

// New creates a new MCP server instance
func New(cfg config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		version: "0.1.0",
		loader:  raster.NewLoader(cfg.CacheBytes),
		in:      os.Stdin,
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ctl == nil {
		reporter := controller.MultiReporter(
			controller.LogReporter{Entry: logger.Entry(context.Background())},
			statusNotifier{s},
		)
		s.ctl = controller.New(cfg, controller.WithLoader(s.loader), controller.WithReporter(reporter))
	}
	return s
}

// Controller returns the session controller.
func (s *Server) Controller() *controller.Controller {
	return s.ctl
}

// Run reads requests until the input ends or ctx is canceled. Cancellation
// returns ctx.Err() promptly even while stdin is idle.
func (s *Server) Run(ctx context.Context) error {
	log := logger.Entry(ctx)

	s.mu.Lock()
	s.encoder = json.NewEncoder(s.out)
	s.mu.Unlock()

	lines, scanErr := s.readLines(ctx)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var line []byte
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return fmt.Errorf("scanner error: %w", err)
				}
				return ctx.Err()
			}
			line = l
		}

		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			log.WithError(err).Warn("failed to parse request")
			continue
		}

		reqCtx := logger.WithEntry(ctx, log.WithField("method", req.Method))
		if resp := s.handleRequest(reqCtx, &req); resp != nil {
			if err := s.write(resp); err != nil {
				log.WithError(err).Warn("failed to encode response")
			}
		}
	}
}

// readLines scans the input on its own goroutine. The error channel receives
// exactly one value before lines is closed.
func (s *Server) readLines(ctx context.Context) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(s.in)
		// Image paths are small but tool arguments may carry large payloads.
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)

		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

// write serializes v onto the output. Notifications from the controller may
// race with responses, so frames are written under a lock.
func (s *Server) write(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.encoder == nil {
		return nil
	}
	return s.encoder.Encode(v)
}

// notify sends an MCP notification.
func (s *Server) notify(method string, params interface{}) error {
	return s.write(MCPNotification{JSONRPC: "2.0", Method: method, Params: params})
}

// statusNotifier forwards controller statuses to the client as MCP log
// messages.
type statusNotifier struct {
	s *Server
}

func (n statusNotifier) Report(st controller.Status) {
	level := "info"
	if st.State == controller.StateError {
		level = "error"
	}
	_ = n.s.notify("notifications/message", map[string]interface{}{
		"level":  level,
		"logger": "segment",
		"data":   st,
	})
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		if s.onInit != nil {
			s.initOnce.Do(func() { go s.onInit(ctx) })
		}
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools":   map[string]interface{}{},
				"logging": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "segment-tools-mcp",
				"version": s.version,
			},
		},
	}
}
