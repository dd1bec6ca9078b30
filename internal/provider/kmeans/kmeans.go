// Package kmeans segments images by clustering pixel colors.
//
// It needs no model server, so it is always ready. Clusters are found on a
// nearest-neighbor downscaled sample of the image, so no blended colors
// appear, and then every pixel of the full-size input is assigned to its
// nearest cluster center. Classes are named cluster-0, cluster-1 and so on,
// ordered from darkest to lightest center, and painted with the center color.
//
// Clustering is deterministic: the same image always yields the same centers
// and labels. Initial centers are picked by farthest-point seeding over the
// distinct sample colors, starting from the darkest, and refined with Lloyd
// iterations. A cluster left empty keeps its previous center.
package kmeans

import (
	"context"
	"fmt"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/pkg/errors"

	"github.com/ironsheep/segment-tools-mcp/internal/config"
	"github.com/ironsheep/segment-tools-mcp/internal/raster"
	"github.com/ironsheep/segment-tools-mcp/internal/segment"
)

// Name is the registry name of the provider.
const Name = "kmeans"

// SampleDimension bounds the side of the image clustering runs on.
const SampleDimension = 64

// MaxIterations bounds the Lloyd refinement.
const MaxIterations = 96

func init() {
	segment.Register(Name, "color clustering with k-means (no model server needed)",
		func(ctx context.Context, cfg config.Config) (segment.Provider, error) {
			return New(cfg.KMeansClusters)
		})
}

// Provider clusters pixel colors into K classes.
type Provider struct {
	k int
}

// New returns a provider producing at most k classes.
func New(k int) (*Provider, error) {
	if k < 2 {
		return nil, errors.Errorf("kmeans: need at least 2 clusters, got %d", k)
	}
	return &Provider{k: k}, nil
}

// Name implements segment.Named.
func (p *Provider) Name() string { return Name }

// K returns the configured cluster count.
func (p *Provider) K() int { return p.k }

func observe(r, g, b uint8) clusters.Coordinates {
	return clusters.Coordinates{float64(r) / 255, float64(g) / 255, float64(b) / 255}
}

// Segment implements segment.Provider.
func (p *Provider) Segment(ctx context.Context, in *raster.Raster) (*segment.Result, error) {
	img, err := in.Image()
	if err != nil {
		return nil, err
	}

	sample := img
	if in.Width > SampleDimension || in.Height > SampleDimension {
		sample = imaging.Fit(img, SampleDimension, SampleDimension, imaging.NearestNeighbor)
	}

	obs := make(clusters.Observations, 0, len(sample.Pix)/raster.RGBA)
	for i := 0; i < len(sample.Pix); i += raster.RGBA {
		obs = append(obs, observe(sample.Pix[i], sample.Pix[i+1], sample.Pix[i+2]))
	}

	found, err := partition(ctx, obs, p.k)
	if err != nil {
		return nil, err
	}

	centers := orderCenters(found)
	table := make(segment.ClassTable, len(centers))
	for i, c := range centers {
		table[i] = segment.Class{
			Name:  fmt.Sprintf("cluster-%d", i),
			Color: centerColor(c.Center),
		}
	}

	labels := &segment.LabelMap{
		Width:  in.Width,
		Height: in.Height,
		Labels: make([]int, in.Width*in.Height),
	}
	memo := make(map[[3]uint8]int)
	for i := range labels.Labels {
		o := i * raster.RGBA
		key := [3]uint8{in.Pix[o], in.Pix[o+1], in.Pix[o+2]}
		id, ok := memo[key]
		if !ok {
			id = centers.Nearest(observe(key[0], key[1], key[2]))
			memo[key] = id
		}
		labels.Labels[i] = id
	}

	return segment.Colorize(labels, table)
}

// partition splits obs into at most k clusters. k is clamped to the number of
// distinct colors.
func partition(ctx context.Context, obs clusters.Observations, k int) (clusters.Clusters, error) {
	seeds := seedCenters(obs, k)
	if len(seeds) == 0 {
		return nil, errors.New("kmeans: empty sample")
	}

	cc := make(clusters.Clusters, len(seeds))
	for i, c := range seeds {
		cc[i].Center = c
	}

	assigned := make([]int, len(obs))
	for i := range assigned {
		assigned[i] = -1
	}
	for iter := 0; iter < MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cc.Reset()
		changes := 0
		for i, o := range obs {
			ci := cc.Nearest(o)
			cc[ci].Append(o)
			if assigned[i] != ci {
				assigned[i] = ci
				changes++
			}
		}
		if changes == 0 {
			break
		}
		cc.Recenter()
	}
	return cc, nil
}

// seedCenters picks up to k distinct colors: the darkest first, then
// repeatedly the color farthest from every center chosen so far. Ties go to
// the earlier color in (lightness, r, g, b) order.
func seedCenters(obs clusters.Observations, k int) []clusters.Coordinates {
	seen := make(map[[3]float64]bool)
	var distinct []clusters.Coordinates
	for _, o := range obs {
		c := o.Coordinates()
		key := [3]float64{c[0], c[1], c[2]}
		if !seen[key] {
			seen[key] = true
			distinct = append(distinct, c)
		}
	}
	sort.Slice(distinct, func(i, j int) bool {
		a, b := distinct[i], distinct[j]
		la, _, _ := toColorful(a).Lab()
		lb, _, _ := toColorful(b).Lab()
		if la != lb {
			return la < lb
		}
		for d := range a {
			if a[d] != b[d] {
				return a[d] < b[d]
			}
		}
		return false
	})

	if k > len(distinct) {
		k = len(distinct)
	}
	if k == 0 {
		return nil
	}

	seeds := []clusters.Coordinates{distinct[0]}
	nearest := make([]float64, len(distinct))
	for i, c := range distinct {
		nearest[i] = c.Distance(distinct[0])
	}
	for len(seeds) < k {
		best := -1
		for i, d := range nearest {
			if best < 0 || d > nearest[best] {
				best = i
			}
		}
		next := distinct[best]
		seeds = append(seeds, next)
		for i, c := range distinct {
			if d := c.Distance(next); d < nearest[i] {
				nearest[i] = d
			}
		}
	}
	return seeds
}

// orderCenters sorts clusters by the lightness of their center so labels
// follow the colors rather than the seeding order.
func orderCenters(c clusters.Clusters) clusters.Clusters {
	out := make(clusters.Clusters, len(c))
	copy(out, c)
	sort.SliceStable(out, func(i, j int) bool {
		li, _, _ := toColorful(out[i].Center).Lab()
		lj, _, _ := toColorful(out[j].Center).Lab()
		return li < lj
	})
	return out
}

func toColorful(c clusters.Coordinates) colorful.Color {
	return colorful.Color{R: c[0], G: c[1], B: c[2]}.Clamped()
}

func centerColor(c clusters.Coordinates) segment.Color {
	return segment.FromColorful(toColorful(c))
}
