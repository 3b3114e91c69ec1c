package core

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"

	"github.com/signalsfoundry/scanhead-simulator/model"
)

// SamplerConfig describes the target surface to sample.
type SamplerConfig struct {
	// Density is points per unit of surface area.
	Density float64 `json:"density"`
	// PlatformHeight lifts every primitive onto the table.
	PlatformHeight float64     `json:"platform_height"`
	Primitives     []Primitive `json:"primitives"`
}

// DefaultSamplerConfig returns the reference lion target on its table.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		Density:        DefaultDensity,
		PlatformHeight: DefaultPlatformHeight,
		Primitives:     DefaultPrimitives(DefaultSceneScale),
	}
}

// Validate checks density and every primitive.
func (c SamplerConfig) Validate() error {
	var err error
	if c.Density <= 0 {
		err = multierr.Append(err, fmt.Errorf("sampler density must be positive, got %g", c.Density))
	}
	if len(c.Primitives) == 0 {
		err = multierr.Append(err, errors.New("sampler needs at least one primitive"))
	}
	seen := make(map[string]struct{}, len(c.Primitives))
	for _, p := range c.Primitives {
		if p.ID != "" {
			if _, dup := seen[p.ID]; dup {
				err = multierr.Append(err, fmt.Errorf("duplicate primitive id %q", p.ID))
			}
			seen[p.ID] = struct{}{}
		}
		err = multierr.Append(err, p.Validate())
	}
	return err
}

// Segment is the contiguous index range a primitive contributed.
type Segment struct {
	PrimitiveID string
	Start       int // inclusive
	End         int // exclusive
}

// PointCloud is the fixed, ordered set of sampled surface points. Indices
// are stable for the lifetime of the cloud.
type PointCloud struct {
	Points   []model.SurfacePoint
	Segments []Segment
}

// Len returns the number of points.
func (c *PointCloud) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Points)
}

// SegmentOf returns the segment containing index i.
func (c *PointCloud) SegmentOf(i int) (Segment, bool) {
	if c == nil || i < 0 || i >= len(c.Points) {
		return Segment{}, false
	}
	k := sort.Search(len(c.Segments), func(k int) bool { return c.Segments[k].End > i })
	if k == len(c.Segments) {
		return Segment{}, false
	}
	return c.Segments[k], true
}

// Bounds returns the axis-aligned box containing every point.
func (c *PointCloud) Bounds() (lo, hi r3.Vector) {
	if c.Len() == 0 {
		return lo, hi
	}
	lo = r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi = r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, p := range c.Points {
		lo = r3.Vector{X: math.Min(lo.X, p.Position.X), Y: math.Min(lo.Y, p.Position.Y), Z: math.Min(lo.Z, p.Position.Z)}
		hi = r3.Vector{X: math.Max(hi.X, p.Position.X), Y: math.Max(hi.Y, p.Position.Y), Z: math.Max(hi.Z, p.Position.Z)}
	}
	return lo, hi
}

// Sampler generates point clouds from a SamplerConfig.
type Sampler struct {
	cfg    SamplerConfig
	placed []Primitive
}

// NewSampler validates cfg and places its primitives on the platform.
func NewSampler(cfg SamplerConfig) (*Sampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	placed := make([]Primitive, len(cfg.Primitives))
	for i, p := range cfg.Primitives {
		p.Position.Y += cfg.PlatformHeight
		placed[i] = p
	}
	return &Sampler{cfg: cfg, placed: placed}, nil
}

// Primitives returns the primitives in world placement, in sampling order.
func (s *Sampler) Primitives() []Primitive {
	return append([]Primitive(nil), s.placed...)
}

// Primitive returns the placed primitive with the given ID.
func (s *Sampler) Primitive(id string) (Primitive, bool) {
	for _, p := range s.placed {
		if p.ID == id {
			return p, true
		}
	}
	return Primitive{}, false
}

// Generate samples every primitive in order and concatenates the results.
// A nil rng draws from an unseeded source; pass a seeded one for
// reproducible clouds.
func (s *Sampler) Generate(rng *rand.Rand) *PointCloud {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	total := 0
	for _, p := range s.placed {
		total += p.SampleCount(s.cfg.Density)
	}

	cloud := &PointCloud{
		Points:   make([]model.SurfacePoint, 0, total),
		Segments: make([]Segment, 0, len(s.placed)),
	}
	for _, p := range s.placed {
		start := len(cloud.Points)
		q := p.orientation()
		n := p.SampleCount(s.cfg.Density)
		for range n {
			local, normal := samplePrimitive(p, rng)
			cloud.Points = append(cloud.Points, model.SurfacePoint{
				Position: rotate(q, local).Add(p.Position),
				Normal:   rotate(q, normal),
			})
		}
		cloud.Segments = append(cloud.Segments, Segment{PrimitiveID: p.ID, Start: start, End: len(cloud.Points)})
	}
	return cloud
}

// samplePrimitive draws one local-frame point and outward normal.
func samplePrimitive(p Primitive, rng *rand.Rand) (r3.Vector, r3.Vector) {
	if p.Kind == PrimitiveCylinder {
		theta := rng.Float64() * 2 * math.Pi
		h := (rng.Float64() - 0.5) * p.Size.Y
		sin, cos := math.Sincos(theta)
		r := p.Size.X
		return r3.Vector{X: cos * r, Y: h, Z: sin * r}, r3.Vector{X: cos, Z: sin}
	}

	w, h, d := p.Size.X, p.Size.Y, p.Size.Z
	face := rng.IntN(6)
	u := rng.Float64() - 0.5
	v := rng.Float64() - 0.5
	switch face {
	case 0:
		return r3.Vector{X: w / 2, Y: u * h, Z: v * d}, r3.Vector{X: 1}
	case 1:
		return r3.Vector{X: -w / 2, Y: u * h, Z: v * d}, r3.Vector{X: -1}
	case 2:
		return r3.Vector{X: u * w, Y: h / 2, Z: v * d}, r3.Vector{Y: 1}
	case 3:
		return r3.Vector{X: u * w, Y: -h / 2, Z: v * d}, r3.Vector{Y: -1}
	case 4:
		return r3.Vector{X: u * w, Y: v * h, Z: d / 2}, r3.Vector{Z: 1}
	default:
		return r3.Vector{X: u * w, Y: v * h, Z: -d / 2}, r3.Vector{Z: -1}
	}
}
