// Package deeplab segments images with DeepLab v3 models hosted on a
// TensorFlow Serving compatible model server.
//
// Three variants are registered, each trained on a different dataset:
//   - pascal: PASCAL VOC 2012, 20 object classes plus background
//   - cityscapes: Cityscapes, 19 urban street classes
//   - ade20k: ADE20K scene parsing, 150 classes plus background
//
// The variant is fixed when the provider is built. Building a provider probes
// the model status endpoint; the provider reports Ready only once the server
// says the model is AVAILABLE.
//
// # Wire Format
//
// The image is fitted into the configured maximum dimension, encoded as PNG
// and posted to the REST predict endpoint:
//
//	POST {server}/v1/models/{model}:predict
//	{"instances": [{"b64": "<png>"}]}
//
// The response carries one class id per pixel:
//
//	{"predictions": [[[0, 0, 15, ...], ...]]}
//
// The label map is upsampled back to the input size with nearest-neighbor
// sampling, so output rasters always match the input dimensions.
package deeplab

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/ironsheep/segment-tools-mcp/internal/config"
	"github.com/ironsheep/segment-tools-mcp/internal/logger"
	"github.com/ironsheep/segment-tools-mcp/internal/raster"
	"github.com/ironsheep/segment-tools-mcp/internal/segment"
)

// Variant names a DeepLab training dataset.
type Variant string

// Supported variants.
const (
	Pascal     Variant = "pascal"
	Cityscapes Variant = "cityscapes"
	ADE20K     Variant = "ade20k"
)

// Variants lists the supported variants.
var Variants = []Variant{Pascal, Cityscapes, ADE20K}

// Classes returns the label table of a variant.
func Classes(v Variant) (segment.ClassTable, bool) {
	switch v {
	case Pascal:
		return pascalClasses, true
	case Cityscapes:
		return cityscapesClasses, true
	case ADE20K:
		return ade20kClasses, true
	}
	return nil, false
}

var descriptions = map[Variant]string{
	Pascal:     "DeepLab v3 trained on PASCAL VOC 2012 (21 classes)",
	Cityscapes: "DeepLab v3 trained on Cityscapes (19 street-scene classes)",
	ADE20K:     "DeepLab v3 trained on ADE20K (150 scene classes)",
}

func init() {
	for _, v := range Variants {
		v := v
		segment.Register(string(v), descriptions[v], func(ctx context.Context, cfg config.Config) (segment.Provider, error) {
			return New(ctx, v, cfg)
		})
	}
}

// Provider is a DeepLab variant served remotely.
type Provider struct {
	variant Variant
	classes segment.ClassTable
	model   string
	server  string
	maxDim  int
	client  *http.Client
	ready   atomic.Bool
}

// ModelName is the name the model is deployed under. Quantized deployments
// carry a _q1 or _q2 suffix; 4 bytes means full-precision weights.
func ModelName(v Variant, quantizationBytes int) string {
	name := "deeplab_" + string(v)
	if quantizationBytes == 1 || quantizationBytes == 2 {
		name = fmt.Sprintf("%s_q%d", name, quantizationBytes)
	}
	return name
}

// NewUnloaded builds a provider without contacting the server. It is not
// ready until Load succeeds.
func NewUnloaded(v Variant, cfg config.Config) (*Provider, error) {
	classes, ok := Classes(v)
	if !ok {
		return nil, errors.Errorf("deeplab: unknown variant %q", v)
	}
	return &Provider{
		variant: v,
		classes: classes,
		model:   ModelName(v, cfg.QuantizationBytes),
		server:  cfg.ModelServer,
		maxDim:  cfg.MaxDimension,
		client:  newHTTPClient(cfg.ModelTimeout),
	}, nil
}

// New builds a provider and loads it.
func New(ctx context.Context, v Variant, cfg config.Config) (*Provider, error) {
	p, err := NewUnloaded(v, cfg)
	if err != nil {
		return nil, err
	}
	if err := p.Load(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Name implements segment.Named.
func (p *Provider) Name() string {
	return string(p.variant)
}

// Ready implements segment.Readiness.
func (p *Provider) Ready() bool {
	return p.ready.Load()
}

// Classes returns the provider's label table.
func (p *Provider) Classes() segment.ClassTable {
	return p.classes
}

type modelStatus struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
	} `json:"model_version_status"`
}

// Load asks the server whether the model is available.
func (p *Provider) Load(ctx context.Context) error {
	url := fmt.Sprintf("%s/v1/models/%s", p.server, p.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "deeplab: build status request")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "deeplab: load %s", p.model)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("deeplab: load %s: server returned %s", p.model, resp.Status)
	}

	var status modelStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return errors.Wrapf(err, "deeplab: decode status of %s", p.model)
	}
	for _, v := range status.ModelVersionStatus {
		if v.State == "AVAILABLE" {
			p.ready.Store(true)
			logger.Entry(ctx).WithFields(map[string]interface{}{
				"model":   p.model,
				"version": v.Version,
			}).Info("model loaded")
			return nil
		}
	}
	return errors.Errorf("deeplab: model %s has no available version", p.model)
}

type predictRequest struct {
	Instances []predictInstance `json:"instances"`
}

type predictInstance struct {
	B64 string `json:"b64"`
}

type predictResponse struct {
	Predictions [][][]int `json:"predictions"`
	Error       string    `json:"error,omitempty"`
}

// Segment implements segment.Provider.
func (p *Provider) Segment(ctx context.Context, in *raster.Raster) (*segment.Result, error) {
	fitted, err := raster.Fit(in, p.maxDim)
	if err != nil {
		return nil, err
	}
	img, err := fitted.Image()
	if err != nil {
		return nil, err
	}
	encoded, err := raster.PNGBytes(img)
	if err != nil {
		return nil, err
	}

	labels, err := p.predict(ctx, encoded)
	if err != nil {
		return nil, err
	}

	if labels.Width != in.Width || labels.Height != in.Height {
		labels, err = upsample(labels, in.Width, in.Height)
		if err != nil {
			return nil, err
		}
	}
	return segment.Colorize(labels, p.classes)
}

func (p *Provider) predict(ctx context.Context, png []byte) (*segment.LabelMap, error) {
	body, err := json.Marshal(predictRequest{
		Instances: []predictInstance{{B64: base64.StdEncoding.EncodeToString(png)}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "deeplab: encode request")
	}

	url := fmt.Sprintf("%s/v1/models/%s:predict", p.server, p.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "deeplab: build predict request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "deeplab: predict %s", p.model)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "deeplab: read response")
	}

	var out predictResponse
	if err := json.Unmarshal(data, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, errors.Errorf("deeplab: predict %s: server returned %s", p.model, resp.Status)
		}
		return nil, errors.Wrap(err, "deeplab: decode response")
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		return nil, errors.Errorf("deeplab: predict %s: %s %s", p.model, resp.Status, out.Error)
	}
	if len(out.Predictions) != 1 {
		return nil, errors.Errorf("deeplab: expected 1 prediction, got %d", len(out.Predictions))
	}
	return toLabelMap(out.Predictions[0])
}

func toLabelMap(rows [][]int) (*segment.LabelMap, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.New("deeplab: empty label map")
	}
	h, w := len(rows), len(rows[0])
	labels := make([]int, 0, w*h)
	for y, row := range rows {
		if len(row) != w {
			return nil, errors.Errorf("deeplab: row %d has %d columns, want %d", y, len(row), w)
		}
		labels = append(labels, row...)
	}
	return &segment.LabelMap{Width: w, Height: h, Labels: labels}, nil
}

// upsample resizes a label map with nearest-neighbor sampling so class ids
// are never blended. Ids must fit in a byte.
func upsample(m *segment.LabelMap, width, height int) (*segment.LabelMap, error) {
	gray := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, id := range m.Labels {
		if id < 0 || id > 255 {
			return nil, errors.Errorf("deeplab: class id %d cannot be resampled", id)
		}
		gray.Pix[i] = uint8(id)
	}

	resized := imaging.Resize(gray, width, height, imaging.NearestNeighbor)
	labels := make([]int, width*height)
	for i := range labels {
		labels[i] = int(resized.Pix[i*4])
	}
	return &segment.LabelMap{Width: width, Height: height, Labels: labels}, nil
}
