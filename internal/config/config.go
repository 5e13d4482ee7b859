package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/funtimes-lightbridge/internal/led"
)

const (
	DefaultStrandLength = 160
	DefaultFrameTimeout = 1.0 / 30
	DefaultLightness    = 1.0
	DefaultDriver       = "sim"
)

var ErrInvalid = errors.New("invalid config")

type SPI struct {
	Dev string `yaml:"dev"` // e.g. SPI0.0; empty picks the first port
}

type Preview struct {
	Addr string `yaml:"addr"` // e.g. :8080; empty disables the preview server
}

type Config struct {
	Driver       string  `yaml:"driver"` // "spi" | "nrz" | "console" | "sim"
	StrandLength int     `yaml:"strand_length"`
	LatchBytes   int     `yaml:"latch_bytes"`
	ClockDivider int     `yaml:"clock_divider"`
	FrameTimeout float64 `yaml:"frame_timeout"` // seconds between frames
	Lightness    float64 `yaml:"lightness"`

	SPI     SPI     `yaml:"spi,omitempty"`
	Preview Preview `yaml:"preview,omitempty"`
}

// Default returns the stock 160 LED strand at 30 fps.
func Default() *Config {
	return &Config{
		Driver:       DefaultDriver,
		StrandLength: DefaultStrandLength,
		LatchBytes:   led.DefaultLatchBytes,
		ClockDivider: led.DefaultClockDivider,
		FrameTimeout: DefaultFrameTimeout,
		Lightness:    DefaultLightness,
	}
}

// Load reads a config file. Keys missing from the file are left zero; use
// Overlay to merge them onto defaults or flags.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Overlay returns a copy of c with every non-zero value of file applied.
func (c *Config) Overlay(file *Config) *Config {
	out := *c
	if file == nil {
		return &out
	}
	if file.Driver != "" {
		out.Driver = file.Driver
	}
	if file.StrandLength > 0 {
		out.StrandLength = file.StrandLength
	}
	if file.LatchBytes > 0 {
		out.LatchBytes = file.LatchBytes
	}
	if file.ClockDivider > 0 {
		out.ClockDivider = file.ClockDivider
	}
	if file.FrameTimeout > 0 {
		out.FrameTimeout = file.FrameTimeout
	}
	if file.Lightness > 0 {
		out.Lightness = file.Lightness
	}
	if file.SPI.Dev != "" {
		out.SPI.Dev = file.SPI.Dev
	}
	if file.Preview.Addr != "" {
		out.Preview.Addr = file.Preview.Addr
	}
	return &out
}

func (c *Config) Validate() error {
	switch c.Driver {
	case "spi", "nrz", "console", "sim":
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrInvalid, c.Driver)
	}
	if c.StrandLength < 0 {
		return fmt.Errorf("%w: strand_length %d", ErrInvalid, c.StrandLength)
	}
	if c.LatchBytes < 0 {
		return fmt.Errorf("%w: latch_bytes %d", ErrInvalid, c.LatchBytes)
	}
	if c.ClockDivider <= 0 {
		return fmt.Errorf("%w: clock_divider %d", ErrInvalid, c.ClockDivider)
	}
	if c.FrameTimeout <= 0 {
		return fmt.Errorf("%w: frame_timeout %v", ErrInvalid, c.FrameTimeout)
	}
	return nil
}

// FrameInterval is FrameTimeout as a duration.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.FrameTimeout * float64(time.Second))
}

// FPS is the target frame rate implied by FrameTimeout.
func (c *Config) FPS() float64 {
	if c.FrameTimeout <= 0 {
		return 0
	}
	return 1 / c.FrameTimeout
}

func (c *Config) SPIFrequency() physic.Frequency {
	return led.ClockFrequency(c.ClockDivider)
}
