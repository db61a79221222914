package stepper

import (
	"time"

	"github.com/cjeanneret/SunTracker/internal/debug"
	"github.com/cjeanneret/SunTracker/internal/hw/gpio"
)

// Config holds the hardware configuration for a 4-line stepper motor
// (unipolar coils driven through a ULN2003-style darlington array).
type Config struct {
	Name      string              // axis label used in logs
	Pins      [4]int              // coil lines, in phase-table order
	StepDelay time.Duration       // hold time of each phase. One full step = 4 phases.
	Sleep     func(time.Duration) // phase pacing; nil = time.Sleep
}

// fullStep is the energizing sequence for one full step forward.
// Each row drives the four coil lines; backward runs the rows in reverse.
var fullStep = [4][4]gpio.Level{
	{gpio.High, gpio.High, gpio.Low, gpio.Low},
	{gpio.Low, gpio.High, gpio.High, gpio.Low},
	{gpio.Low, gpio.Low, gpio.High, gpio.High},
	{gpio.High, gpio.Low, gpio.Low, gpio.High},
}

// Stepper provides a simple API for moving a 4-line stepper motor.
type Stepper struct {
	gpio  gpio.Driver
	cfg   Config
	delay time.Duration
	sleep func(time.Duration)
}

// NewStepper creates a new stepper motor controller. All coil lines are
// configured as outputs and left de-asserted.
// cfg.StepDelay: if 0, defaults to 1ms.
func NewStepper(g gpio.Driver, cfg Config) *Stepper {
	for _, pin := range cfg.Pins {
		_ = g.SetupPin(pin, gpio.Output)
		_ = g.WritePin(pin, gpio.Low)
	}

	delay := cfg.StepDelay
	if delay <= 0 {
		delay = 1 * time.Millisecond
	}

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	return &Stepper{
		gpio:  g,
		cfg:   cfg,
		delay: delay,
		sleep: sleep,
	}
}

// Name returns the axis label given at construction.
func (s *Stepper) Name() string {
	return s.cfg.Name
}

// MoveSteps moves the motor by a number of steps (positive = forward, negative = backward)
// using the configured phase delay. The coils are released afterwards.
func (s *Stepper) MoveSteps(steps int) error {
	return s.MoveStepsWithDelay(steps, s.delay)
}

// MoveStepsWithDelay is MoveSteps with an explicit phase delay for this move only.
func (s *Stepper) MoveStepsWithDelay(steps int, delay time.Duration) error {
	if steps == 0 {
		return nil
	}
	if delay <= 0 {
		delay = s.delay
	}

	forward := steps > 0
	direction := "forward"
	if !forward {
		direction = "backward"
		steps = -steps
	}

	debug.Printf("Stepper %s: moving %d steps (%s), phase delay %v", s.cfg.Name, steps, direction, delay)

	for i := 0; i < steps; i++ {
		for p := 0; p < len(fullStep); p++ {
			row := p
			if !forward {
				row = len(fullStep) - 1 - p
			}
			if err := s.setPhase(fullStep[row]); err != nil {
				_ = s.Release()
				return err
			}
			s.sleep(delay)
		}
	}
	return s.Release()
}

func (s *Stepper) setPhase(levels [4]gpio.Level) error {
	for i, pin := range s.cfg.Pins {
		if err := s.gpio.WritePin(pin, levels[i]); err != nil {
			return err
		}
	}
	return nil
}

// Release de-asserts every coil line. The motor freewheels with no holding torque.
func (s *Stepper) Release() error {
	return gpio.Deassert(s.gpio, s.cfg.Pins[:]...)
}
