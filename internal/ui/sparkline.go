package ui

import "strings"

// sparkChars are eight bar heights, lowest first.
var sparkChars = []rune("▁▂▃▄▅▆▇█")

// Sparkline keeps the most recent samples of a series and renders them as
// a row of block characters scaled to the window maximum.
type Sparkline struct {
	samples []float64
	size    int
}

// NewSparkline creates a sparkline holding up to size samples.
func NewSparkline(size int) *Sparkline {
	if size <= 0 {
		size = 60
	}
	return &Sparkline{size: size}
}

// Add appends a sample, dropping the oldest when full.
func (s *Sparkline) Add(v float64) {
	if v < 0 {
		v = 0
	}
	if len(s.samples) == s.size {
		copy(s.samples, s.samples[1:])
		s.samples = s.samples[:s.size-1]
	}
	s.samples = append(s.samples, v)
}

// Len returns the number of samples held.
func (s *Sparkline) Len() int {
	return len(s.samples)
}

// Clear drops all samples.
func (s *Sparkline) Clear() {
	s.samples = s.samples[:0]
}

// Render draws the newest width samples, left padded with spaces.
func (s *Sparkline) Render(width int) string {
	if width <= 0 {
		width = s.size
	}
	window := s.samples
	if len(window) > width {
		window = window[len(window)-width:]
	}

	peak := 0.0
	for _, v := range window {
		peak = max(peak, v)
	}

	var b strings.Builder
	b.Grow(width * 3)
	b.WriteString(strings.Repeat(" ", width-len(window)))
	for _, v := range window {
		idx := 0
		if peak > 0 {
			idx = int(v / peak * float64(len(sparkChars)-1))
		}
		b.WriteRune(sparkChars[idx])
	}
	return b.String()
}
