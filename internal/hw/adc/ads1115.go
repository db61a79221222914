package adc

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"

	"github.com/cjeanneret/SunTracker/internal/debug"
)

// ADS1115Config selects the I2C bus and device.
type ADS1115Config struct {
	Bus     string // i2creg bus name; "" picks the first available bus
	Address uint16 // 7-bit device address; 0 means 0x48
	Gain    Gain
}

// ADS1115 reads the four single-ended inputs of a TI ADS1115 over I2C using periph.io.
type ADS1115 struct {
	bus  i2c.BusCloser
	pins [Channels]ads1x15.PinADC
}

var singleEnded = [Channels]ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// NewADS1115 opens the bus and prepares one converter pin per channel.
func NewADS1115(cfg ADS1115Config) (*ADS1115, error) {
	if !cfg.Gain.Valid() {
		return nil, errors.Wrapf(ErrUnsupportedGain, "%d", cfg.Gain)
	}
	debug.Info("Initializing ADS1115 on bus %q (gain %s)", cfg.Bus, cfg.Gain)

	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, errors.Wrapf(err, "open i2c bus %q", cfg.Bus)
	}

	opts := ads1x15.DefaultOpts
	if cfg.Address != 0 {
		opts.I2cAddress = cfg.Address
	}
	dev, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		return nil, multierr.Append(errors.Wrap(err, "init ads1115"), bus.Close())
	}

	a := &ADS1115{bus: bus}
	for i, ch := range singleEnded {
		pin, err := dev.PinForChannel(ch, cfg.Gain.FullScale(), 128*physic.Hertz, ads1x15.BestQuality)
		if err != nil {
			return nil, multierr.Append(errors.Wrapf(err, "channel %d", i), a.Close())
		}
		a.pins[i] = pin
	}
	return a, nil
}

func (a *ADS1115) ReadChannel(channel int) (int, error) {
	if channel < 0 || channel >= Channels {
		return 0, errors.Wrapf(ErrChannel, "channel %d", channel)
	}
	sample, err := a.pins[channel].Read()
	if err != nil {
		return 0, errors.Wrapf(err, "read channel %d", channel)
	}
	debug.ADC(channel, int(sample.Raw))
	return int(sample.Raw), nil
}

// Close halts every prepared pin and releases the bus.
func (a *ADS1115) Close() error {
	var err error
	for _, p := range a.pins {
		if p != nil {
			err = multierr.Append(err, p.Halt())
		}
	}
	return multierr.Append(err, a.bus.Close())
}
