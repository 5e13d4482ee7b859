package led

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
)

// RefreshRate is the WS281x data rate; the SPI clock runs at three bits per data bit.
const RefreshRate = 800 * physic.KiloHertz

// Drawer adapts a periph display.Drawer (nrzled, console screen) to Driver.
// Pixels are staged in a 1xN image and drawn on Flush.
type Drawer struct {
	mu     sync.Mutex
	d      display.Drawer
	img    *image.NRGBA
	port   io.Closer
	closed bool
}

// NewDrawer stages count pixels for d.
func NewDrawer(d display.Drawer, count int) *Drawer {
	if count < 0 {
		count = 0
	}
	return &Drawer{
		d:   d,
		img: image.NewNRGBA(image.Rect(0, 0, count, 1)),
	}
}

// OpenNRZ drives WS281x LEDs through nrzled on an SPI port.
func OpenNRZ(dev string, count int) (*Drawer, error) {
	p, err := spireg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", dev, err)
	}
	d, err := newNRZ(p, count)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	d.port = p
	return d, nil
}

func newNRZ(p spi.Port, count int) (*Drawer, error) {
	opts := nrzled.Opts{
		NumPixels: count,
		Channels:  3,
		Freq:      RefreshRate*3 + 100*physic.KiloHertz,
	}
	dev, err := nrzled.NewSPI(p, &opts)
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	return NewDrawer(dev, count), nil
}

// NewConsole prints the ring as colored blocks on the terminal.
func NewConsole(count int) *Drawer {
	return NewDrawer(screen.New(count), count)
}

func (d *Drawer) Count() int { return d.img.Rect.Dx() }

func (d *Drawer) String() string { return d.d.String() }

func (d *Drawer) SetRGB(i int, c colorful.Color) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= d.img.Rect.Max.X {
		return fmt.Errorf("set_rgb %d of %d: %w", i, d.img.Rect.Max.X, ErrInvalidPosition)
	}
	r, g, b := rgb255(c)
	d.img.SetNRGBA(i, 0, color.NRGBA{R: r, G: g, B: b, A: 255})
	return nil
}

// Clear turns all pixels off. This does not trigger Flush().
func (d *Drawer) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for x := 0; x < d.img.Rect.Max.X; x++ {
		d.img.SetNRGBA(x, 0, color.NRGBA{A: 255})
	}
}

// Pixel returns the staged color of i.
func (d *Drawer) Pixel(i int) color.NRGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.img.NRGBAAt(i, 0)
}

func (d *Drawer) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.img.Rect.Empty() {
		return nil
	}
	if err := d.d.Draw(d.d.Bounds(), d.img, image.Point{}); err != nil {
		return fmt.Errorf("draw: %w", err)
	}
	return nil
}

// Close halts the device and releases the port if OpenNRZ opened it.
func (d *Drawer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	err := d.d.Halt()
	if d.port != nil {
		if cerr := d.port.Close(); err == nil {
			err = cerr
		}
		d.port = nil
	}
	return err
}
