package led

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// OpenSPI opens an SPI port ("" picks the first one) and returns a Strand
// writing to it in mode 0, 8 bits per word. host.Init must have run.
func OpenSPI(dev string, count, latch int, f physic.Frequency) (*Strand, error) {
	p, err := spireg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", dev, err)
	}
	s, err := openStrand(p, count, latch, f)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	s.closer = p
	return s, nil
}

func openStrand(p spi.Port, count, latch int, f physic.Frequency) (*Strand, error) {
	if f <= 0 {
		f = ClockFrequency(DefaultClockDivider)
	}
	c, err := p.Connect(f, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("spi connect at %s: %w", f, err)
	}
	return NewStrand(c, count, latch)
}
