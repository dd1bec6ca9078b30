// Package controller drives an interactive segmentation session.
//
// A session holds at most one selected model and one loaded image. Commands
// change them and the controller reacts: whenever both are present after a
// model or image is loaded, segmentation runs automatically. The latest
// request always wins; a run that finishes after a newer one was started is
// discarded.
//
// Every step is reported to a Reporter as a Status so a user can follow
// progress (loading, ready, image_loaded, running, complete, error).
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ironsheep/segment-tools-mcp/internal/config"
	"github.com/ironsheep/segment-tools-mcp/internal/logger"
	"github.com/ironsheep/segment-tools-mcp/internal/raster"
	"github.com/ironsheep/segment-tools-mcp/internal/segment"
)

var (
	// ErrNoImage is returned by Segment when no image has been loaded.
	ErrNoImage = errors.New("controller: no image loaded")

	// ErrNotAnImage is returned for uploads whose content is not an image.
	ErrNotAnImage = raster.ErrNotAnImage

	// ErrUnknownModel is returned when no provider is registered under the
	// requested name.
	ErrUnknownModel = errors.New("controller: unknown model")

	// ErrSuperseded is returned by a run whose result was discarded because
	// a newer run started while it was in flight.
	ErrSuperseded = errors.New("controller: superseded by a newer request")
)

// Command is an instruction for Dispatch.
type Command interface {
	command()
}

// LoadModel selects and loads a registered provider.
type LoadModel struct {
	Name string
}

// LoadImage loads an image from encoded bytes.
type LoadImage struct {
	Data []byte
}

// LoadImagePath loads an image from a file.
type LoadImagePath struct {
	Path string
}

// Segment runs the selected model on the loaded image.
type Segment struct{}

func (LoadModel) command()     {}
func (LoadImage) command()     {}
func (LoadImagePath) command() {}
func (Segment) command()       {}

// Outcome is a completed segmentation.
type Outcome struct {
	RequestID  string
	Generation uint64
	Model      string
	Input      *raster.Raster
	Result     *segment.Result
	Elapsed    time.Duration
}

// Snapshot describes the session at one point in time.
type Snapshot struct {
	Model       string   `json:"model,omitempty"`
	ModelReady  bool     `json:"model_ready"`
	ImageLoaded bool     `json:"image_loaded"`
	ImageWidth  int      `json:"image_width,omitempty"`
	ImageHeight int      `json:"image_height,omitempty"`
	ImagePath   string   `json:"image_path,omitempty"`
	Generation  uint64   `json:"generation"`
	HasResult   bool     `json:"has_result"`
	Status      Status   `json:"status"`
	Models      []string `json:"available_models"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithReporter sets where statuses go. The default logs them.
func WithReporter(r Reporter) Option {
	return func(c *Controller) { c.reporter = r }
}

// WithLookup replaces the provider registry lookup.
func WithLookup(lookup func(name string) (segment.Registration, bool)) Option {
	return func(c *Controller) { c.lookup = lookup }
}

// WithLoader sets the image loader used by LoadImagePath.
func WithLoader(l *raster.Loader) Option {
	return func(c *Controller) { c.loader = l }
}

// Controller is safe for concurrent use. Its lock is never held while a
// provider loads or runs.
type Controller struct {
	cfg      config.Config
	loader   *raster.Loader
	reporter Reporter
	lookup   func(name string) (segment.Registration, bool)

	mu         sync.Mutex
	providers  map[string]segment.Provider
	model      string
	provider   segment.Provider
	modelGen   uint64
	input      *raster.Raster
	inputPath  string
	generation uint64
	latest     *Outcome
	status     Status
}

// New creates a controller.
func New(cfg config.Config, opts ...Option) *Controller {
	c := &Controller{
		cfg:       cfg,
		lookup:    segment.Lookup,
		providers: make(map[string]segment.Provider),
		status:    Status{State: StateIdle, Message: "waiting for a model", Time: time.Now()},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.reporter == nil {
		c.reporter = LogReporter{Entry: logger.Entry(context.Background())}
	}
	if c.loader == nil {
		c.loader = raster.NewLoader(cfg.CacheBytes)
	}
	return c
}

// Dispatch executes cmd and blocks until any segmentation it triggers has
// finished.
func (c *Controller) Dispatch(ctx context.Context, cmd Command) error {
	switch cmd := cmd.(type) {
	case LoadModel:
		return c.loadModel(ctx, cmd.Name)
	case LoadImage:
		return c.loadImage(ctx, cmd.Data, "")
	case LoadImagePath:
		data, err := c.loader.ReadFile(cmd.Path)
		if err != nil {
			c.fail("", "could not read the image", err)
			return err
		}
		return c.loadImage(ctx, data, cmd.Path)
	case Segment:
		return c.segment(ctx)
	case nil:
		return errors.New("controller: nil command")
	default:
		return errors.Errorf("controller: unknown command %T", cmd)
	}
}

// Provider returns a loaded provider for name, building it on first use.
func (c *Controller) Provider(ctx context.Context, name string) (segment.Provider, error) {
	c.mu.Lock()
	p, ok := c.providers[name]
	c.mu.Unlock()
	if ok {
		return p, nil
	}

	reg, ok := c.lookup(name)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownModel, "%q", name)
	}
	p, err := reg.Factory(ctx, c.cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "load model %s", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.providers[name]; ok {
		return existing, nil
	}
	c.providers[name] = p
	return p, nil
}

func (c *Controller) loadModel(ctx context.Context, name string) error {
	c.mu.Lock()
	c.modelGen++
	gen := c.modelGen
	c.mu.Unlock()

	c.report(Status{State: StateLoading, Model: name, Message: "loading model..."})

	p, err := c.Provider(ctx, name)
	if err != nil {
		c.fail(name, "could not load the model", err)
		return err
	}

	c.mu.Lock()
	if gen != c.modelGen {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.model = name
	c.provider = p
	hasImage := c.input != nil
	c.mu.Unlock()

	if !hasImage {
		c.report(Status{State: StateReady, Model: name, Message: "model loaded, please load an image"})
		return nil
	}
	c.report(Status{State: StateReady, Model: name, Message: "model loaded"})
	return c.run(ctx)
}

func (c *Controller) loadImage(ctx context.Context, data []byte, path string) error {
	in, err := raster.Decode(data)
	if err != nil {
		c.fail("", "please load a valid image", err)
		return err
	}

	c.mu.Lock()
	c.input = in
	c.inputPath = path
	hasModel := c.provider != nil
	model := c.model
	c.mu.Unlock()

	msg := fmt.Sprintf("image loaded (%dx%d)", in.Width, in.Height)
	if !hasModel {
		c.report(Status{State: StateImageLoaded, Message: msg})
		return nil
	}
	c.report(Status{State: StateImageLoaded, Model: model, Message: msg + ", running segmentation..."})
	return c.run(ctx)
}

func (c *Controller) segment(ctx context.Context) error {
	c.mu.Lock()
	hasModel, hasImage := c.provider != nil, c.input != nil
	c.mu.Unlock()

	if !hasModel {
		c.fail("", "please select a model first", segment.ErrProviderNotReady)
		return segment.ErrProviderNotReady
	}
	if !hasImage {
		c.fail("", "please load an image first", ErrNoImage)
		return ErrNoImage
	}
	return c.run(ctx)
}

// run segments the current image with the current model under a new
// generation.
func (c *Controller) run(ctx context.Context) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	p, in, model := c.provider, c.input, c.model
	c.mu.Unlock()

	id := uuid.NewString()
	entry := logger.Entry(ctx).WithFields(map[string]interface{}{
		"request_id": id,
		"generation": gen,
		"model":      model,
	})
	ctx = logger.WithEntry(ctx, entry)

	c.report(Status{State: StateRunning, Model: model, Message: "running segmentation..."})

	start := time.Now()
	res, err := segment.Run(ctx, in, p, segment.WithRequestID(id))
	elapsed := time.Since(start)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		entry.Debug("discarding result of a superseded request")
		return ErrSuperseded
	}
	if err == nil {
		c.latest = &Outcome{
			RequestID:  id,
			Generation: gen,
			Model:      model,
			Input:      in,
			Result:     res,
			Elapsed:    elapsed,
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.fail(model, "segmentation failed, please try again", err)
		return err
	}
	c.report(Status{
		State:   StateComplete,
		Model:   model,
		Message: fmt.Sprintf("segmentation complete: %d classes", len(res.Legend)),
	})
	return nil
}

func (c *Controller) fail(model, msg string, err error) {
	c.report(Status{State: StateError, Model: model, Message: msg, Error: err.Error()})
}

func (c *Controller) report(s Status) {
	s.Time = time.Now()
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
	c.reporter.Report(s)
}

// Latest returns the most recent completed segmentation, or nil.
func (c *Controller) Latest() *Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// Status returns the last reported status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Snapshot describes the current session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Model:      c.model,
		ModelReady: c.provider != nil,
		ImagePath:  c.inputPath,
		Generation: c.generation,
		HasResult:  c.latest != nil,
		Status:     c.status,
		Models:     segment.Names(),
	}
	if c.input != nil {
		s.ImageLoaded = true
		s.ImageWidth = c.input.Width
		s.ImageHeight = c.input.Height
	}
	return s
}
