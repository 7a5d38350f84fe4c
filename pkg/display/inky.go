package display

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/inky"
	"periph.io/x/host/v3"

	"github.com/unklstewy/flightboard/pkg/config"
)

// OpenInky initialises the host drivers, reads the panel EEPROM over I2C
// to detect the model and opens the Inky Impression on SPI.
func OpenInky(cfg config.DisplayConfig, logger *slog.Logger) (*DrawerSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise host: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}
	opts, err := inky.DetectOpts(bus)
	bus.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to detect inky panel: %w", err)
	}

	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %q: %w", cfg.SPIPort, err)
	}

	dc, err := pin(cfg.DCPin)
	if err != nil {
		port.Close()
		return nil, err
	}
	reset, err := pin(cfg.ResetPin)
	if err != nil {
		port.Close()
		return nil, err
	}
	busy, err := pin(cfg.BusyPin)
	if err != nil {
		port.Close()
		return nil, err
	}

	dev, err := inky.NewImpression(port, dc, reset, busy, opts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to open inky impression: %w", err)
	}

	sink := NewDrawerSink(dev, logger, port.Close)
	w, h := sink.Size()
	logger.Info("Display initialised", "device", dev.String(), "width", w, "height", h)
	return sink, nil
}

func pin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("failed to find GPIO pin %q", name)
	}
	return p, nil
}
