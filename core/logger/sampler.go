package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratio describes "pass num out of every den events"; the zero value passes all.
type ratio struct {
	num, den uint64
}

// debugSampler thins out per-update debug lines such as update.received.
type debugSampler struct {
	r       atomic.Pointer[ratio]
	counter atomic.Uint64
}

func newDebugSampler(num, den int) *debugSampler {
	s := &debugSampler{}
	s.Set(num, den)
	return s
}

// Set replaces the ratio. Non-positive values disable sampling.
func (s *debugSampler) Set(num, den int) {
	r := &ratio{}
	if num > 0 && den > 0 {
		r.num, r.den = uint64(min(num, den)), uint64(den)
	}
	s.r.Store(r)
	s.counter.Store(0)
}

// Allow reports whether the next event passes.
func (s *debugSampler) Allow() bool {
	r := s.r.Load()
	if r == nil || r.den == 0 {
		return true
	}
	n := s.counter.Add(1) - 1
	return n%r.den < r.num
}

// parseRatio reads "1/50" or "50" (shorthand for 1/50). "0" and invalid
// input disable sampling.
func parseRatio(raw string) (num, den int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, 0
	}
	if a, b, ok := strings.Cut(raw, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(a))
		d, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return n, d
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, 0
	}
	return 1, v
}
