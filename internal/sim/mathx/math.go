package mathx

import "math"

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Round rounds half away from zero (2.5 -> 3, -2.5 -> -3).
func Round(v float64) int {
	return int(math.Round(v))
}

func FloorInt(v float64) int {
	return int(math.Floor(v))
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// SplitMix is a small deterministic generator (splitmix64).
// The zero value is usable.
type SplitMix struct {
	state uint64
}

func NewSplitMix(seed int64) *SplitMix {
	return &SplitMix{state: uint64(seed)}
}

func (s *SplitMix) Uint64() uint64 {
	s.state += 0x9e3779b97f4a7c15
	return mix64(s.state)
}

// Float64 returns a value in [0, 1).
func (s *SplitMix) Float64() float64 {
	return float64(s.Uint64()>>11) / (1 << 53)
}
