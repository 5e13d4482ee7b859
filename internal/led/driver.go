package led

import (
	"github.com/lucasb-eyer/go-colorful"
	"periph.io/x/conn/v3/physic"
)

// Driver abstracts an LED output sink.
type Driver interface {
	// SetRGB records the color for light i until the next Flush.
	SetRGB(i int, c colorful.Color) error
	// Flush pushes the pending frame to hardware.
	Flush() error
	// Close releases resources.
	Close() error
}

// clearer is implemented by drivers that can blank their whole buffer at once.
type clearer interface {
	Clear()
}

// Blank turns every light off and flushes.
func Blank(d Driver, count int) error {
	if c, ok := d.(clearer); ok {
		c.Clear()
	} else {
		for i := 0; i < count; i++ {
			if err := d.SetRGB(i, colorful.Color{}); err != nil {
				return err
			}
		}
	}
	return d.Flush()
}

// coreClock is the bcm2835 core clock the SPI divider applies to.
const coreClock = 250 * physic.MegaHertz

// DefaultClockDivider gives a ~976kHz SPI clock.
const DefaultClockDivider = 256

// ClockFrequency converts a bcm2835 SPI clock divider to a bus frequency.
func ClockFrequency(divider int) physic.Frequency {
	if divider <= 0 {
		divider = DefaultClockDivider
	}
	return coreClock / physic.Frequency(divider)
}

// rgb255 clamps c to [0,1] and returns 8-bit channels.
func rgb255(c colorful.Color) (r, g, b uint8) {
	return c.Clamped().RGB255()
}
