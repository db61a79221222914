package motion

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/cjeanneret/SunTracker/internal/debug"
)

// Axis identifies one of the two mount stages.
type Axis int

const (
	RA Axis = iota
	DEC
)

// Axes lists every axis in the order they are driven.
var Axes = [...]Axis{RA, DEC}

func (a Axis) String() string {
	switch a {
	case RA:
		return "RA"
	case DEC:
		return "DEC"
	}
	return "axis?"
}

// Direction is the sense of rotation. Up increases the axis angle.
type Direction int

const (
	Unset Direction = iota
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	}
	return "unset"
}

// ErrInvalidMove is returned for an unknown axis or an Unset direction.
var ErrInvalidMove = errors.New("invalid move")

// Command is what the actuator actually drove.
// Steps includes Swing; only Steps-Swing contribute to the axis angle.
type Command struct {
	Axis      Axis
	Direction Direction
	Steps     int
	Swing     int
	StepDelay time.Duration
}

// NetSteps returns the steps that moved the axis past the slack.
func (c Command) NetSteps() int {
	return c.Steps - c.Swing
}

// Motor drives one axis by a signed step count.
type Motor interface {
	Name() string
	MoveStepsWithDelay(steps int, delay time.Duration) error
	Release() error
}

// Config holds the drivetrain constants.
type Config struct {
	RAStepsPerDegree  float64
	DECStepsPerDegree float64
	Swing             int           // steps to take up the slack on reversal
	SlewDelay         time.Duration // phase delay for MoveAxis
}

// Actuator drives both axes and remembers the last direction of each so the
// drivetrain slack is taken up whenever the direction reverses.
type Actuator struct {
	cfg    Config
	motors [2]Motor
	last   [2]Direction
	swung  [2]bool
}

// NewActuator binds the RA and DEC motors.
func NewActuator(cfg Config, ra, dec Motor) *Actuator {
	return &Actuator{cfg: cfg, motors: [2]Motor{ra, dec}}
}

// StepsFromAngle converts an angle in degrees to a step count, truncated toward zero.
func (a *Actuator) StepsFromAngle(axis Axis, degrees float64) int {
	return int(degrees * a.ratio(axis))
}

// AngleFromSteps converts a step count back to degrees.
func (a *Actuator) AngleFromSteps(axis Axis, steps int) float64 {
	r := a.ratio(axis)
	if r == 0 {
		return 0
	}
	return float64(steps) / r
}

func (a *Actuator) ratio(axis Axis) float64 {
	if axis == DEC {
		return a.cfg.DECStepsPerDegree
	}
	return a.cfg.RAStepsPerDegree
}

// Swing returns the configured slack compensation in steps.
func (a *Actuator) Swing() int {
	return a.cfg.Swing
}

// LastDirection returns the direction of the most recent move on the axis.
func (a *Actuator) LastDirection(axis Axis) Direction {
	if !valid(axis) {
		return Unset
	}
	return a.last[axis]
}

// HasSwung reports whether a slack compensation was ever applied on the axis.
func (a *Actuator) HasSwung(axis Axis) bool {
	return valid(axis) && a.swung[axis]
}

// Compensation returns the slack steps the next move in dir would add:
// the swing when dir reverses the remembered direction, zero otherwise
// (including the very first move of the axis).
func (a *Actuator) Compensation(axis Axis, dir Direction) int {
	if !valid(axis) {
		return 0
	}
	last := a.last[axis]
	if last == Unset || last == dir {
		return 0
	}
	return a.cfg.Swing
}

// MoveAxis turns the axis by delta degrees at slew speed. The swing is added
// on top of the converted step count when the direction reverses.
func (a *Actuator) MoveAxis(axis Axis, delta float64) (Command, error) {
	dir := Down
	if delta > 0 {
		dir = Up
	}
	steps := int(math.Abs(delta) * a.ratio(axis))
	if steps == 0 {
		return Command{Axis: axis, Direction: dir}, nil
	}
	return a.StepAxis(axis, dir, steps+a.Compensation(axis, dir), a.cfg.SlewDelay)
}

// StepAxis drives exactly steps full steps in dir. The caller is expected to
// have included Compensation(axis, dir) in steps; the returned command
// reports which part of it was slack.
func (a *Actuator) StepAxis(axis Axis, dir Direction, steps int, delay time.Duration) (Command, error) {
	if !valid(axis) || dir == Unset {
		return Command{}, errors.Wrapf(ErrInvalidMove, "%v %v", axis, dir)
	}
	cmd := Command{Axis: axis, Direction: dir, StepDelay: delay}
	if steps <= 0 {
		return cmd, nil
	}

	cmd.Steps = steps
	cmd.Swing = min(a.Compensation(axis, dir), steps)

	signed := steps
	if dir == Up {
		signed = -steps
	}
	debug.Move(axis.String(), steps, dir.String())
	if err := a.motors[axis].MoveStepsWithDelay(signed, delay); err != nil {
		return cmd, errors.Wrapf(err, "move %v %d steps %v", axis, steps, dir)
	}

	a.last[axis] = dir
	if cmd.Swing > 0 {
		a.swung[axis] = true
	}
	return cmd, nil
}

// Release de-asserts the coil lines of both axes.
func (a *Actuator) Release() error {
	var err error
	for _, m := range a.motors {
		if m != nil {
			err = multierr.Append(err, m.Release())
		}
	}
	return err
}

func valid(axis Axis) bool {
	return axis == RA || axis == DEC
}
