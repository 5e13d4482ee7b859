package led

import (
	"fmt"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog/log"
)

// Sim is a headless driver that logs a compact summary of each frame
// (first LED & average) at debug level.
type Sim struct {
	mu      sync.Mutex
	pending []colorful.Color
	last    []colorful.Color
	Count   int // frames flushed
}

func NewSim(count int) *Sim {
	if count < 0 {
		count = 0
	}
	return &Sim{
		pending: make([]colorful.Color, count),
		last:    make([]colorful.Color, count),
	}
}

func (s *Sim) SetRGB(i int, c colorful.Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.pending) {
		return fmt.Errorf("set_rgb %d of %d: %w", i, len(s.pending), ErrInvalidPosition)
	}
	s.pending[i] = c
	return nil
}

// Clear turns all LEDs off. This does not trigger Flush().
func (s *Sim) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pending {
		s.pending[i] = colorful.Color{}
	}
}

func (s *Sim) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.last, s.pending)
	s.Count++

	ev := log.Debug()
	if !ev.Enabled() {
		return nil
	}
	// compute simple average for log
	var r, g, b float64
	for _, c := range s.last {
		r += c.R
		g += c.G
		b += c.B
	}
	n := float64(len(s.last))
	if n == 0 {
		n = 1
	}
	var first colorful.Color
	if len(s.last) > 0 {
		first = s.last[0]
	}
	ev.Int("frame", s.Count).
		Str("avg", fmt.Sprintf("(%.2f,%.2f,%.2f)", r/n, g/n, b/n)).
		Str("first", first.Hex()).
		Msg("sim frame")
	return nil
}

// Snapshot returns a copy of the last flushed frame.
func (s *Sim) Snapshot() []colorful.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]colorful.Color(nil), s.last...)
}

func (s *Sim) Close() error { return nil }
