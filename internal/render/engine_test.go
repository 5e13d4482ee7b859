package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-lightbridge/internal/palette"
)

// call is one recorded driver operation; pos is -1 for a flush.
type call struct {
	pos int
	c   colorful.Color
}

// fakeDriver records every call and can fail on demand.
type fakeDriver struct {
	calls    []call
	frames   [][]colorful.Color
	pending  []colorful.Color
	failSet  int
	failErr  error
	onFlush  func(n int)
	flushErr error
}

func newFakeDriver() *fakeDriver { return &fakeDriver{failSet: -1} }

func (d *fakeDriver) SetRGB(i int, c colorful.Color) error {
	if i == d.failSet {
		return d.failErr
	}
	d.calls = append(d.calls, call{pos: i, c: c})
	d.pending = append(d.pending, c)
	return nil
}

func (d *fakeDriver) Flush() error {
	if d.flushErr != nil {
		return d.flushErr
	}
	d.calls = append(d.calls, call{pos: -1})
	d.frames = append(d.frames, d.pending)
	d.pending = nil
	if d.onFlush != nil {
		d.onFlush(len(d.frames))
	}
	return nil
}

func quiet() Option { return WithLogger(zerolog.Nop()) }

func TestStepRotation(t *testing.T) {
	pal := palette.New(7, 1)
	drv := newFakeDriver()
	e := NewEngine(pal, drv, quiet())

	ticks := 20
	for i := 0; i < ticks; i++ {
		require.NoError(t, e.Step())
	}
	require.Len(t, drv.frames, ticks)

	for tick, frame := range drv.frames {
		require.Len(t, frame, 7)
		for i, c := range frame {
			assert.Equal(t, pal[(tick+i)%7], c, "tick %d position %d", tick, i)
		}
	}
	assert.Equal(t, ticks%7, e.Offset())
	assert.Equal(t, uint64(ticks), e.Frames())
}

func TestStepOrdering(t *testing.T) {
	drv := newFakeDriver()
	e := NewEngine(palette.New(5, 1), drv, quiet())

	require.NoError(t, e.Step())
	require.NoError(t, e.Step())

	want := []int{0, 1, 2, 3, 4, -1, 0, 1, 2, 3, 4, -1}
	got := make([]int, 0, len(drv.calls))
	for _, c := range drv.calls {
		got = append(got, c.pos)
	}
	assert.Equal(t, want, got)
}

func TestPaletteNotMutated(t *testing.T) {
	pal := palette.New(12, 1)
	orig := make(palette.Palette, len(pal))
	copy(orig, pal)

	drv := newFakeDriver()
	e := NewEngine(pal, drv, quiet())
	for i := 0; i < 30; i++ {
		require.NoError(t, e.Step())
	}
	assert.Equal(t, orig, pal)
	assert.Equal(t, orig, e.Palette())

	// frames k ticks apart are the same pattern shifted by k
	k := 5
	for i := 0; i < 12; i++ {
		assert.Equal(t, drv.frames[3][(i+k)%12], drv.frames[3+k][i])
	}
}

func TestSingleLed(t *testing.T) {
	pal := palette.New(1, 1)
	drv := newFakeDriver()
	e := NewEngine(pal, drv, quiet())
	for i := 0; i < 4; i++ {
		require.NoError(t, e.Step())
		assert.Equal(t, 0, e.Offset())
	}
	for _, f := range drv.frames {
		require.Len(t, f, 1)
		assert.Equal(t, pal[0], f[0])
	}
}

func TestEmptyRing(t *testing.T) {
	drv := newFakeDriver()
	e := NewEngine(palette.New(0, 1), drv, quiet())
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Step())
	}
	assert.Equal(t, []call{{pos: -1}, {pos: -1}, {pos: -1}}, drv.calls)
	assert.Equal(t, 0, e.Offset())
	assert.Equal(t, uint64(3), e.Frames())
}

func TestSetErrorAbortsFrame(t *testing.T) {
	boom := errors.New("spi gone")
	drv := newFakeDriver()
	drv.failSet = 2
	drv.failErr = boom
	e := NewEngine(palette.New(4, 1), drv, quiet())

	err := e.Step()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, drv.frames, "no flush after a failed set")
	assert.Equal(t, 0, e.Offset())
	assert.Equal(t, uint64(0), e.Frames())
}

func TestFlushErrorKeepsOffset(t *testing.T) {
	boom := errors.New("latch failed")
	drv := newFakeDriver()
	drv.flushErr = boom
	e := NewEngine(palette.New(4, 1), drv, quiet())

	assert.ErrorIs(t, e.Step(), boom)
	assert.Equal(t, 0, e.Offset())
}

func TestFrameIntervalOption(t *testing.T) {
	e := NewEngine(nil, newFakeDriver())
	assert.Equal(t, DefaultFrameInterval, e.FrameInterval())
	assert.InDelta(t, 33.3, float64(DefaultFrameInterval)/float64(time.Millisecond), 0.1)

	e = NewEngine(nil, newFakeDriver(), WithFrameInterval(5*time.Millisecond))
	assert.Equal(t, 5*time.Millisecond, e.FrameInterval())

	e = NewEngine(nil, newFakeDriver(), WithFrameInterval(-1))
	assert.Equal(t, DefaultFrameInterval, e.FrameInterval())
}

func TestRunStopsBetweenTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drv := newFakeDriver()
	drv.onFlush = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	e := NewEngine(palette.New(6, 1), drv, quiet(), WithFrameInterval(time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	require.Len(t, drv.frames, 3)
	for _, f := range drv.frames {
		assert.Len(t, f, 6)
	}
	assert.Empty(t, drv.pending)
	assert.Equal(t, 3, e.Offset())
}

func TestRunSurfacesDriverError(t *testing.T) {
	boom := errors.New("write failed")
	drv := newFakeDriver()
	drv.failSet = 0
	drv.failErr = boom
	e := NewEngine(palette.New(3, 1), drv, quiet(), WithFrameInterval(time.Millisecond))

	err := e.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	drv := newFakeDriver()
	e := NewEngine(palette.New(3, 1), drv, quiet())
	require.NoError(t, e.Run(ctx))
	assert.Empty(t, drv.calls)
}

func TestStatsLogging(t *testing.T) {
	drv := newFakeDriver()
	e := NewEngine(palette.New(2, 1), drv, quiet(), WithStatsEvery(2))
	for i := 0; i < 6; i++ {
		require.NoError(t, e.Step())
	}
	assert.False(t, e.checkpoint.IsZero())
	assert.GreaterOrEqual(t, e.Last.StepMS, 0.0)
}
