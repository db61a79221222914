// Package hw bundles the platform capabilities the tracker needs:
// digital outputs for the coil lines and analog inputs for the photodetector.
package hw

import (
	"go.uber.org/multierr"

	"github.com/cjeanneret/SunTracker/internal/hw/adc"
	"github.com/cjeanneret/SunTracker/internal/hw/gpio"
)

// Driver is the hardware capability set. Stepping is built on top of the
// GPIO half by the stepper package.
type Driver interface {
	gpio.Driver
	ReadChannel(channel int) (int, error)
}

// Options selects a platform implementation.
type Options struct {
	Mock         bool
	PinNumbering string
	ADC          adc.ADS1115Config
	MockChannels [adc.Channels]int // counts served by the mock converter
}

// Platform pairs a GPIO driver with an analog reader.
type Platform struct {
	gpio.Driver
	analog adc.Reader
}

// New returns the mock platform or the Raspberry Pi (go-rpio + ADS1115) one.
func New(opts Options) (*Platform, error) {
	g, err := gpio.NewDriver(opts.Mock, opts.PinNumbering)
	if err != nil {
		return nil, err
	}
	if opts.Mock {
		return &Platform{Driver: g, analog: adc.NewMockReader(opts.MockChannels)}, nil
	}
	a, err := adc.NewADS1115(opts.ADC)
	if err != nil {
		return nil, multierr.Append(err, g.Close())
	}
	return &Platform{Driver: g, analog: a}, nil
}

// NewPlatform assembles a platform from existing parts.
func NewPlatform(g gpio.Driver, a adc.Reader) *Platform {
	return &Platform{Driver: g, analog: a}
}

// ReadChannel samples one analog input.
func (p *Platform) ReadChannel(channel int) (int, error) {
	return p.analog.ReadChannel(channel)
}

// Analog exposes the underlying converter (e.g. to script a mock).
func (p *Platform) Analog() adc.Reader {
	return p.analog
}

// Close releases the GPIO lines and the converter. Both are attempted.
func (p *Platform) Close() error {
	err := p.Driver.Close()
	if p.analog != nil {
		err = multierr.Append(err, p.analog.Close())
	}
	return err
}
