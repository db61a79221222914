package adc

import (
	"strings"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
)

// Gain is the programmable amplifier setting of the ADS1x15 family.
type Gain int

const (
	GainTwoThirds Gain = iota // ±6.144 V
	Gain1                     // ±4.096 V
	Gain2                     // ±2.048 V
	Gain4                     // ±1.024 V
	Gain8                     // ±0.512 V
	Gain16                    // ±0.256 V
)

// ErrUnsupportedGain is returned when a gain is not one of 2/3, 1, 2, 4, 8, 16.
var ErrUnsupportedGain = errors.New("unsupported ADC gain")

var gainNames = map[string]Gain{
	"2/3": GainTwoThirds,
	"1":   Gain1,
	"2":   Gain2,
	"4":   Gain4,
	"8":   Gain8,
	"16":  Gain16,
}

// ParseGain converts a configuration value ("2/3", "1", "2", "4", "8", "16").
func ParseGain(s string) (Gain, error) {
	g, ok := gainNames[strings.TrimSpace(s)]
	if !ok {
		return 0, errors.Wrapf(ErrUnsupportedGain, "%q", s)
	}
	return g, nil
}

// Valid reports whether g is one of the supported settings.
func (g Gain) Valid() bool {
	return g >= GainTwoThirds && g <= Gain16
}

func (g Gain) String() string {
	switch g {
	case GainTwoThirds:
		return "2/3"
	case Gain1:
		return "1"
	case Gain2:
		return "2"
	case Gain4:
		return "4"
	case Gain8:
		return "8"
	case Gain16:
		return "16"
	}
	return "invalid"
}

// FullScale returns the input range selected by the gain.
func (g Gain) FullScale() physic.ElectricPotential {
	switch g {
	case GainTwoThirds:
		return 6144 * physic.MilliVolt
	case Gain1:
		return 4096 * physic.MilliVolt
	case Gain2:
		return 2048 * physic.MilliVolt
	case Gain4:
		return 1024 * physic.MilliVolt
	case Gain8:
		return 512 * physic.MilliVolt
	case Gain16:
		return 256 * physic.MilliVolt
	}
	return 0
}
