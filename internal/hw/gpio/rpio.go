package gpio

import (
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"

	"github.com/cjeanneret/SunTracker/internal/debug"
)

// boardToBCM maps physical header pins (40-pin Raspberry Pi header) to BCM numbers.
var boardToBCM = map[int]int{
	3: 2, 5: 3, 7: 4, 8: 14, 10: 15, 11: 17, 12: 18, 13: 27,
	15: 22, 16: 23, 18: 24, 19: 10, 21: 9, 22: 25, 23: 11, 24: 8,
	26: 7, 27: 0, 28: 1, 29: 5, 31: 6, 32: 12, 33: 13, 35: 19,
	36: 16, 37: 26, 38: 20, 40: 21,
}

// BCMPin translates a pin number in the given numbering scheme to BCM.
func BCMPin(numbering string, pin int) (int, error) {
	switch numbering {
	case "", "bcm":
		return pin, nil
	case "board":
		bcm, ok := boardToBCM[pin]
		if !ok {
			return 0, errors.Errorf("board pin %d is not a GPIO line", pin)
		}
		return bcm, nil
	default:
		return 0, errors.Errorf("unknown pin numbering %q", numbering)
	}
}

// RPiDriver is the real implementation for Raspberry Pi using go-rpio.
// Pin numbers passed to its methods follow the configured numbering.
type RPiDriver struct {
	numbering string
	pins      map[int]rpio.Pin
}

// NewRPiRealDriver creates a real GPIO driver for Raspberry Pi.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
func NewRPiRealDriver(numbering string) (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio, %s numbering)", numbering)

	switch numbering {
	case "", "bcm", "board":
	default:
		return nil, errors.Errorf("unknown pin numbering %q", numbering)
	}
	if err := rpio.Open(); err != nil {
		return nil, errors.Wrap(err, "failed to open GPIO (are you running on a Raspberry Pi?)")
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{
		numbering: numbering,
		pins:      make(map[int]rpio.Pin),
	}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	bcm, err := BCMPin(r.numbering, pin)
	if err != nil {
		return err
	}
	p := rpio.Pin(bcm)

	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	default:
		return errors.Errorf("unknown pin mode: %d", mode)
	}

	r.pins[pin] = p
	return nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as output
		if err := r.SetupPin(pin, Output); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}

	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as input
		if err := r.SetupPin(pin, Input); err != nil {
			return Low, err
		}
		p = r.pins[pin]
	}

	if p.Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

// Close drives every used line LOW, returns it to input and unmaps GPIO memory.
func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")

	for pin, p := range r.pins {
		debug.Verbose("Releasing pin %d", pin)
		p.Low()
		p.Input()
	}

	return rpio.Close()
}
