package led

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"periph.io/x/conn/v3"
)

// MaxLevel is the brightest 7-bit channel value.
const MaxLevel = 0x7F

// DefaultLatchBytes is the number of zero bytes framing each transfer.
const DefaultLatchBytes = 5

// ledPacketSize is the amount of data used per-LED in the message.
const ledPacketSize = 3

// channelHeader is set on every color byte; zero bytes are reserved for the latch.
const channelHeader = 0x80

var (
	// ErrInvalidPosition is returned for positions outside the strand.
	ErrInvalidPosition = errors.New("invalid LED position")
	// ErrClosed is returned by operations on a closed strand.
	ErrClosed = errors.New("strand closed")
)

// Strand encodes colors for a 7-bit SPI strand (LPD8806 style).
//
// The wire buffer is latch zero bytes, then b, r, g per LED with the high
// bit set, then latch zero bytes. SetRGB updates the buffer in place and
// Flush writes it whole.
type Strand struct {
	mu     sync.Mutex
	conn   conn.Conn
	closer io.Closer
	count  int
	latch  int
	buf    []byte
}

// NewStrand wraps an already connected SPI conn. Negative latch means
// DefaultLatchBytes.
func NewStrand(c conn.Conn, count, latch int) (*Strand, error) {
	if count < 0 {
		return nil, fmt.Errorf("invalid LED count: %d", count)
	}
	if latch < 0 {
		latch = DefaultLatchBytes
	}
	s := &Strand{
		conn:  c,
		count: count,
		latch: latch,
		buf:   make([]byte, 2*latch+count*ledPacketSize),
	}
	s.Clear()
	return s, nil
}

func (s *Strand) Count() int { return s.count }

func (s *Strand) String() string {
	return fmt.Sprintf("strand{%d leds, latch %d}", s.count, s.latch)
}

// level maps a [0,1] channel to 0..MaxLevel, rounding down.
func level(v float64) byte {
	l := math.Floor(MaxLevel * v)
	if l < 0 || math.IsNaN(l) {
		return 0
	}
	if l > MaxLevel {
		return MaxLevel
	}
	return byte(l)
}

func (s *Strand) put(i int, c colorful.Color) {
	off := s.latch + i*ledPacketSize
	s.buf[off+0] = channelHeader | level(c.B)
	s.buf[off+1] = channelHeader | level(c.R)
	s.buf[off+2] = channelHeader | level(c.G)
}

// SetRGB records the color of LED i (0-based).
func (s *Strand) SetRGB(i int, c colorful.Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= s.count {
		return fmt.Errorf("set_rgb %d of %d: %w", i, s.count, ErrInvalidPosition)
	}
	s.put(i, c)
	return nil
}

// Fill sets LEDs from..to inclusive to c.
func (s *Strand) Fill(from, to int, c colorful.Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if from < 0 || to < from || to >= s.count {
		return fmt.Errorf("fill %d..%d of %d: %w", from, to, s.count, ErrInvalidPosition)
	}
	for i := from; i <= to; i++ {
		s.put(i, c)
	}
	return nil
}

// Clear turns all LEDs off. This does not trigger Flush().
func (s *Strand) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.buf {
		s.buf[i] = 0
	}
	for i := 0; i < s.count; i++ {
		s.put(i, colorful.Color{})
	}
}

// Bytes returns a copy of the wire buffer.
func (s *Strand) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.buf...)
}

// Flush writes the buffer, split into chunks when the conn limits transfer size.
func (s *Strand) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrClosed
	}

	chunk := len(s.buf)
	if l, ok := s.conn.(conn.Limits); ok && l.MaxTxSize() > 0 {
		chunk = l.MaxTxSize()
	}
	for off := 0; off < len(s.buf); off += chunk {
		end := off + chunk
		if end > len(s.buf) {
			end = len(s.buf)
		}
		if err := s.conn.Tx(s.buf[off:end], nil); err != nil {
			return fmt.Errorf("spi write: %w", err)
		}
	}
	return nil
}

// Close releases the port if the strand opened it.
func (s *Strand) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = nil
	if s.closer != nil {
		err := s.closer.Close()
		s.closer = nil
		return err
	}
	return nil
}
