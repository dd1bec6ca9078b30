package segment

import (
	"context"
	"sync"

	"github.com/ironsheep/segment-tools-mcp/internal/raster"
)

// Mock implements Provider for tests.
type Mock struct {
	// SegmentFunc is called when Segment is invoked. The default paints every
	// pixel black and reports a single "background" class.
	SegmentFunc func(ctx context.Context, in *raster.Raster) (*Result, error)

	// NotReady makes Ready report false.
	NotReady bool

	// ProviderName is returned by Name.
	ProviderName string

	mu    sync.Mutex
	calls int
}

// NewMock creates a mock with the default behavior.
func NewMock() *Mock {
	return &Mock{
		ProviderName: "mock",
		SegmentFunc: func(ctx context.Context, in *raster.Raster) (*Result, error) {
			out, err := raster.New(in.Width, in.Height, raster.RGBA)
			if err != nil {
				return nil, err
			}
			for i := 3; i < len(out.Pix); i += raster.RGBA {
				out.Pix[i] = 0xff
			}
			return &Result{Raster: out, Legend: Legend{"background": RGB(0, 0, 0)}}, nil
		},
	}
}

// Segment implements Provider.
func (m *Mock) Segment(ctx context.Context, in *raster.Raster) (*Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.SegmentFunc(ctx, in)
}

// Ready implements Readiness.
func (m *Mock) Ready() bool {
	return !m.NotReady
}

// Name implements Named.
func (m *Mock) Name() string {
	return m.ProviderName
}

// Calls returns how many times Segment ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
