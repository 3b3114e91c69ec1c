package core

// ScanState is the set of acquired point-cloud indices. It only grows,
// except through Reset. It is not safe for concurrent use.
type ScanState struct {
	acquired []bool
	count    int
}

// NewScanState returns an empty set sized for a cloud of n points.
func NewScanState(n int) *ScanState {
	return &ScanState{acquired: make([]bool, n)}
}

// Has reports whether index i has been acquired.
func (s *ScanState) Has(i int) bool {
	return i >= 0 && i < len(s.acquired) && s.acquired[i]
}

// Add inserts index i and reports whether it was new.
func (s *ScanState) Add(i int) bool {
	if i < 0 {
		return false
	}
	if i >= len(s.acquired) {
		grown := make([]bool, i+1)
		copy(grown, s.acquired)
		s.acquired = grown
	}
	if s.acquired[i] {
		return false
	}
	s.acquired[i] = true
	s.count++
	return true
}

// Len returns the number of acquired indices.
func (s *ScanState) Len() int {
	return s.count
}

// Indices returns the acquired indices in ascending order.
func (s *ScanState) Indices() []int {
	out := make([]int, 0, s.count)
	for i, ok := range s.acquired {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// Positions flattens the acquired points of cloud into x,y,z triples.
func (s *ScanState) Positions(cloud *PointCloud) []float32 {
	out := make([]float32, 0, s.count*3)
	for i, ok := range s.acquired {
		if !ok || i >= cloud.Len() {
			continue
		}
		p := cloud.Points[i].Position
		out = append(out, float32(p.X), float32(p.Y), float32(p.Z))
	}
	return out
}

// Coverage returns the acquired fraction of a cloud of total points.
func (s *ScanState) Coverage(total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(s.count) / float64(total)
}

// Contains reports whether every index of other is also in s.
func (s *ScanState) Contains(other *ScanState) bool {
	for i, ok := range other.acquired {
		if ok && !s.Has(i) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s *ScanState) Clone() *ScanState {
	return &ScanState{acquired: append([]bool(nil), s.acquired...), count: s.count}
}

// Reset clears every index, keeping capacity.
func (s *ScanState) Reset() {
	clear(s.acquired)
	s.count = 0
}
