package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/host/v3"

	"github.com/coreman2200/funtimes-lightbridge/internal/config"
	"github.com/coreman2200/funtimes-lightbridge/internal/led"
	"github.com/coreman2200/funtimes-lightbridge/internal/palette"
	"github.com/coreman2200/funtimes-lightbridge/internal/render"
	"github.com/coreman2200/funtimes-lightbridge/internal/ws"
)

func main() {
	// ---- Flags (config.yaml overrides them where set) ----
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		driver     = flag.String("driver", config.DefaultDriver, "driver: spi | nrz | console | sim")
		leds       = flag.Int("leds", config.DefaultStrandLength, "number of LEDs in the ring")
		fps        = flag.Float64("fps", 1/config.DefaultFrameTimeout, "target frames per second")
		lightness  = flag.Float64("lightness", config.DefaultLightness, "palette lightness 0..1")
		spiDev     = flag.String("spi", "", "SPI port name (empty picks the first)")
		addr       = flag.String("addr", "", "preview HTTP listen address (empty disables)")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// ---- Effective config: flags first, then config.yaml ----
	cfg := config.Default()
	cfg.Driver = *driver
	cfg.StrandLength = *leds
	if *fps > 0 {
		cfg.FrameTimeout = 1 / *fps
	}
	cfg.Lightness = *lightness
	cfg.SPI.Dev = *spiDev
	cfg.Preview.Addr = *addr

	if c, err := config.Load(*configPath); err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
	} else {
		cfg = cfg.Overlay(c)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("bad configuration")
	}

	if _, err := host.Init(); err != nil {
		log.Warn().Err(err).Msg("periph host init failed; hardware drivers unavailable")
	}

	n := cfg.StrandLength
	drv, selected := openDriver(cfg)

	// ---- Optional live preview ----
	var srv *http.Server
	if cfg.Preview.Addr != "" {
		state := ws.NewState(n, cfg.FPS(), selected)
		drv = led.Tee(drv, state)
		srv = &http.Server{
			Addr:         cfg.Preview.Addr,
			Handler:      state.Handler(),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Preview.Addr).Msg("preview server starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("preview server stopped")
			}
		}()
	}

	pal := palette.New(n, cfg.Lightness)
	eng := render.NewEngine(pal, drv, render.WithFrameInterval(cfg.FrameInterval()))

	// ---- Run until SIGINT/SIGTERM ----
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	runErr := eng.Run(ctx)
	stop()
	if runErr != nil {
		log.Error().Err(runErr).Uint64("frames", eng.Frames()).Msg("animation halted")
	} else {
		log.Info().Msg("shutting down")
	}

	// leave the ring dark
	if err := led.Blank(drv, n); err != nil {
		log.Warn().Err(err).Msg("blank failed")
	}
	if srv != nil {
		_ = srv.Close()
	}
	if err := drv.Close(); err != nil {
		log.Warn().Err(err).Msg("driver close failed")
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
}

// openDriver builds the configured driver, falling back to SIM when the
// hardware can't be opened.
func openDriver(cfg *config.Config) (led.Driver, string) {
	n := cfg.StrandLength
	switch cfg.Driver {
	case "spi":
		drv, err := led.OpenSPI(cfg.SPI.Dev, n, cfg.LatchBytes, cfg.SPIFrequency())
		if err == nil {
			log.Info().Str("strand", drv.String()).Str("freq", cfg.SPIFrequency().String()).Msg("SPI strand ready")
			return drv, "spi"
		}
		log.Warn().Err(err).
			Str("driver", "spi").
			Str("dev", cfg.SPI.Dev).
			Int("clock_divider", cfg.ClockDivider).
			Msg("SPI init failed; falling back to SIM")

	case "nrz":
		drv, err := led.OpenNRZ(cfg.SPI.Dev, n)
		if err == nil {
			return drv, "nrz"
		}
		log.Warn().Err(err).Str("driver", "nrz").Str("dev", cfg.SPI.Dev).Msg("nrzled init failed; falling back to SIM")

	case "console":
		return led.NewConsole(n), "console"

	case "sim":
	default:
		log.Warn().Str("driver", cfg.Driver).Msg("unknown driver; using SIM")
	}
	return led.NewSim(n), "sim"
}
