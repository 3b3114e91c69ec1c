package report

import "github.com/signalsfoundry/scanhead-simulator/core"

// PrimitiveCoverage is the acquired share of one primitive's points.
type PrimitiveCoverage struct {
	ID       string
	Kind     core.PrimitiveKind
	Points   int
	Acquired int
}

// Fraction returns Acquired/Points, or 0 for an empty primitive.
func (c PrimitiveCoverage) Fraction() float64 {
	if c.Points == 0 {
		return 0
	}
	return float64(c.Acquired) / float64(c.Points)
}

// CoverageByPrimitive attributes every acquired index in scan to the
// primitive whose segment holds it. Results follow sampling order.
func CoverageByPrimitive(sampler *core.Sampler, cloud *core.PointCloud, scan *core.ScanState) []PrimitiveCoverage {
	if cloud == nil {
		return nil
	}
	out := make([]PrimitiveCoverage, len(cloud.Segments))
	slot := make(map[int]int, len(cloud.Segments))
	for k, seg := range cloud.Segments {
		out[k] = PrimitiveCoverage{ID: seg.PrimitiveID, Points: seg.End - seg.Start}
		if sampler != nil {
			if p, ok := sampler.Primitive(seg.PrimitiveID); ok {
				out[k].Kind = p.Kind
			}
		}
		slot[seg.Start] = k
	}
	if scan == nil {
		return out
	}
	for _, i := range scan.Indices() {
		seg, ok := cloud.SegmentOf(i)
		if !ok {
			continue
		}
		out[slot[seg.Start]].Acquired++
	}
	return out
}
