package render

import (
	"context"
	"fmt"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-lightbridge/internal/palette"
)

// DefaultFrameInterval is the target time between ticks (30 fps).
const DefaultFrameInterval = time.Second / 30

// Driver abstracts the LED transport (SPI, console, preview, etc.).
type Driver interface {
	// SetRGB sets the pending color of one light.
	SetRGB(i int, c colorful.Color) error
	// Flush presents every SetRGB since the last Flush as one frame.
	Flush() error
}

// Option configures an Engine at construction.
type Option func(e *Engine)

// WithFrameInterval sets the target tick period. Non-positive values are ignored.
func WithFrameInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLogger replaces the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithStatsEvery sets how many frames are averaged for the FPS log line.
// Zero disables it.
func WithStatsEvery(n uint64) Option {
	return func(e *Engine) {
		e.statsEvery = n
	}
}

// Engine rotates a palette over the ring, one position per tick.
//
// Methods are NOT safe to call from multiple goroutines concurrently.
type Engine struct {
	pal      palette.Palette
	drv      Driver
	interval time.Duration
	log      zerolog.Logger

	offset int
	frames uint64

	statsEvery uint64
	checkpoint time.Time

	// metrics (last durations in ms)
	Last struct {
		StepMS float64
	}
}

// NewEngine returns an Engine starting at rotation offset 0.
func NewEngine(p palette.Palette, drv Driver, opts ...Option) *Engine {
	e := &Engine{
		pal:        p,
		drv:        drv,
		interval:   DefaultFrameInterval,
		log:        log.Logger,
		statsEvery: 1000,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Offset is the palette index shown at position 0 on the next tick.
func (e *Engine) Offset() int { return e.offset }

// Frames counts completed ticks.
func (e *Engine) Frames() uint64 { return e.frames }

func (e *Engine) FrameInterval() time.Duration { return e.interval }

// Palette returns a copy of the table being rotated.
func (e *Engine) Palette() palette.Palette {
	out := make(palette.Palette, len(e.pal))
	copy(out, e.pal)
	return out
}

// Step renders one frame: position i gets palette[(offset+i) mod N], then a
// single Flush, then the offset advances. On a driver error the frame is
// abandoned and the offset stays put.
func (e *Engine) Step() error {
	start := time.Now()
	n := len(e.pal)

	for i := 0; i < n; i++ {
		if err := e.drv.SetRGB(i, e.pal[(e.offset+i)%n]); err != nil {
			return fmt.Errorf("set led %d: %w", i, err)
		}
	}
	if err := e.drv.Flush(); err != nil {
		return fmt.Errorf("flush frame %d: %w", e.frames, err)
	}

	if n > 0 {
		e.offset = (e.offset + 1) % n
	}
	e.frames++
	e.Last.StepMS = float64(time.Since(start).Microseconds()) / 1000.0
	e.logStats()
	return nil
}

// Run ticks until ctx is done or the driver fails. Cancellation is only
// observed between ticks, so a frame is never left half written.
// Returns nil when ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.checkpoint = time.Now()
	e.log.Info().
		Int("leds", len(e.pal)).
		Dur("frame_interval", e.interval).
		Msg("animation started")

	for {
		if ctx.Err() != nil {
			e.log.Info().Uint64("frames", e.frames).Msg("animation stopped")
			return nil
		}
		if err := e.Step(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

func (e *Engine) logStats() {
	if e.statsEvery == 0 || e.frames%e.statsEvery != 0 {
		return
	}
	now := time.Now()
	if !e.checkpoint.IsZero() {
		fps := float64(e.statsEvery) / now.Sub(e.checkpoint).Seconds()
		e.log.Debug().
			Uint64("frames", e.frames).
			Float64("avg_fps", fps).
			Float64("last_step_ms", e.Last.StepMS).
			Msg("frame stats")
	}
	e.checkpoint = now
}
