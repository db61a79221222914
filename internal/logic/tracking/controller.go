// Package tracking contains the control loop that keeps the mount on the Sun.
package tracking

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cjeanneret/SunTracker/internal/debug"
	"github.com/cjeanneret/SunTracker/internal/logic/ephemeris"
	"github.com/cjeanneret/SunTracker/internal/logic/motion"
	"github.com/cjeanneret/SunTracker/internal/logic/sensor"
)

// Mode is the guidance source used for one cycle.
type Mode int

const (
	Ephemeris Mode = iota // open loop: follow the predicted position
	FineTrack             // closed loop: follow the photodetector
)

func (m Mode) String() string {
	if m == FineTrack {
		return "fine-track"
	}
	return "ephemeris"
}

// ModeFor selects the mode from the total detector signal. The threshold
// itself already counts as a detected Sun.
func ModeFor(total, threshold int) Mode {
	if total < threshold {
		return Ephemeris
	}
	return FineTrack
}

// MountState is the controller's estimate of where the mount points.
// There is no absolute encoder: the estimate integrates commanded steps and
// is resynchronized to the ephemeris whenever the detector reports centered.
type MountState struct {
	Dec           float64 // degrees above the horizon
	RA            float64 // degrees clockwise from north
	LastDirection [2]motion.Direction
	HasSwung      [2]bool
}

// Angle returns the estimate for one axis.
func (s MountState) Angle(axis motion.Axis) float64 {
	if axis == motion.DEC {
		return s.Dec
	}
	return s.RA
}

func (s *MountState) setAngle(axis motion.Axis, v float64) {
	if axis == motion.DEC {
		s.Dec = v
		return
	}
	s.RA = v
}

// Params holds the control law constants.
type Params struct {
	Threshold        int     // total signal below which the Sun is considered lost
	Tolerance        int     // dead band of the error terms
	FineStepGain     float64 // proportional gain k
	DECDivisor       float64
	RADivisor        float64
	MaxStepsPerCycle int // per axis, swing included

	FineStepDelay   time.Duration
	EphemerisSettle time.Duration
	CenteredSettle  time.Duration
}

// DefaultParams returns the values the mount was tuned with.
func DefaultParams() Params {
	return Params{
		Threshold:        3000,
		Tolerance:        100,
		FineStepGain:     20,
		DECDivisor:       8,
		RADivisor:        4,
		MaxStepsPerCycle: 50,
		FineStepDelay:    10 * time.Millisecond,
		EphemerisSettle:  10 * time.Second,
		CenteredSettle:   500 * time.Millisecond,
	}
}

// Result describes one cycle.
type Result struct {
	Mode     Mode
	Frame    sensor.Frame
	Commands []motion.Command
	Centered bool          // fine-track with both errors inside the dead band
	Settle   time.Duration // wait before the next cycle
}

// Options configures a Controller.
type Options struct {
	Params  Params
	Site    ephemeris.Site
	Instant time.Time   // UTC instant at start-up, advanced by Clock
	Clock   clock.Clock // nil = wall clock
	Dec     float64     // operator estimate of the starting DEC angle
	RA      float64     // operator estimate of the starting RA angle
}

// Controller runs the tracking loop. It is the only writer of MountState
// and is not safe for concurrent use.
type Controller struct {
	params  Params
	sensor  *sensor.Reader
	ephem   ephemeris.Provider
	motion  *motion.Actuator
	site    ephemeris.Site
	clock   clock.Clock
	epoch   time.Time
	started time.Time
	state   MountState
	mode    Mode
	cycles  atomic.Int64
}

// NewController assembles the loop.
func NewController(s *sensor.Reader, p ephemeris.Provider, a *motion.Actuator, opts Options) *Controller {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Controller{
		params:  opts.Params,
		sensor:  s,
		ephem:   p,
		motion:  a,
		site:    opts.Site,
		clock:   clk,
		epoch:   opts.Instant.UTC(),
		started: clk.Now(),
		state:   MountState{Dec: opts.Dec, RA: opts.RA},
		mode:    Ephemeris,
	}
}

// Now returns the current tracking instant.
func (c *Controller) Now() time.Time {
	return c.epoch.Add(c.clock.Since(c.started))
}

// State returns a copy of the pointing estimate.
func (c *Controller) State() MountState {
	return c.state
}

// Mode returns the mode of the last cycle.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Cycles returns how many cycles have completed. Safe to call while Run is active.
func (c *Controller) Cycles() int {
	return int(c.cycles.Load())
}

// Target returns the ephemeris pointing (elevation, azimuth) for the current instant.
func (c *Controller) Target() (dec, ra float64) {
	pos := c.ephem.SunPosition(c.Now(), c.site)
	return pos.Elevation(), pos.Azimuth
}

// Start slews from the operator estimate to the ephemeris target.
func (c *Controller) Start(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	debug.Section("Initial Slew")
	dec, ra := c.Target()
	debug.Info("Target DEC %.2f°, RA %.2f° (from DEC %.2f°, RA %.2f°)", dec, ra, c.state.Dec, c.state.RA)

	res := Result{Mode: Ephemeris, Settle: c.params.EphemerisSettle}
	cmds, err := c.slewTo(dec, ra)
	res.Commands = cmds
	return res, err
}

// Cycle runs one iteration: sample, select the mode, actuate.
func (c *Controller) Cycle(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	frame := c.sensor.ReadFrame()
	mode := ModeFor(frame.Total, c.params.Threshold)
	if mode != c.mode {
		debug.Mode(c.mode.String(), mode.String())
		c.mode = mode
	}
	debug.Status(frame.Corrected, frame.Vertical, frame.Horizontal, frame.Total, mode.String())

	res := Result{Mode: mode, Frame: frame}
	var err error
	switch mode {
	case Ephemeris:
		dec, ra := c.Target()
		res.Commands, err = c.slewTo(dec, ra)
		res.Settle = c.params.EphemerisSettle
	case FineTrack:
		res.Commands, res.Centered, err = c.fineTrack(frame)
		if res.Centered {
			dec, ra := c.Target()
			c.state.Dec, c.state.RA = dec, ra
			debug.Verbose("Centered, estimate resynchronized to DEC %.2f°, RA %.2f°", dec, ra)
			res.Settle = c.params.CenteredSettle
		}
	}
	if err != nil {
		return res, err
	}

	c.cycles.Add(1)
	debug.Live("DEC %.2f°  RA %.2f°  [%s]", c.state.Dec, c.state.RA, mode)
	return res, nil
}

// Run cycles until ctx is cancelled. Cancellation is not an error.
func (c *Controller) Run(ctx context.Context) error {
	for {
		res, err := c.Cycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !c.settle(ctx, res.Settle) {
			debug.Info("Tracking stopped after %d cycles", c.Cycles())
			return nil
		}
	}
}

// settle waits d on the controller clock. It returns false if ctx ends first.
func (c *Controller) settle(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := c.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// slewTo moves both axes to an absolute target at slew speed. The estimate
// of an axis is updated only once its move succeeded.
func (c *Controller) slewTo(dec, ra float64) ([]motion.Command, error) {
	var cmds []motion.Command
	for _, axis := range []motion.Axis{motion.DEC, motion.RA} {
		target := dec
		if axis == motion.RA {
			target = ra
		}
		cmd, err := c.motion.MoveAxis(axis, target-c.state.Angle(axis))
		if err != nil {
			return cmds, err
		}
		c.state.setAngle(axis, target)
		c.remember(axis)
		if cmd.Steps > 0 {
			cmds = append(cmds, cmd)
		}
	}
	return cmds, nil
}

// fineTrack applies the proportional law on each axis whose error leaves the
// dead band: DEC follows the vertical term, RA the horizontal one.
func (c *Controller) fineTrack(f sensor.Frame) ([]motion.Command, bool, error) {
	p := c.params
	errs := [2]int{motion.RA: f.Horizontal, motion.DEC: f.Vertical}
	divisors := [2]float64{motion.RA: p.RADivisor, motion.DEC: p.DECDivisor}

	var cmds []motion.Command
	centered := true
	for _, axis := range []motion.Axis{motion.DEC, motion.RA} {
		e := errs[axis]
		var dir motion.Direction
		switch {
		case e > p.Tolerance:
			dir = motion.Down
		case e < -p.Tolerance:
			dir = motion.Up
		default:
			continue
		}
		centered = false

		steps := c.stepsFor(e, divisors[axis]) + c.motion.Compensation(axis, dir)
		steps = min(steps, p.MaxStepsPerCycle)

		cmd, err := c.motion.StepAxis(axis, dir, steps, p.FineStepDelay)
		if err != nil {
			return cmds, false, err
		}
		delta := c.motion.AngleFromSteps(axis, cmd.NetSteps())
		if dir == motion.Down {
			delta = -delta
		}
		c.state.setAngle(axis, c.state.Angle(axis)+delta)
		c.remember(axis)
		if cmd.Steps > 0 {
			cmds = append(cmds, cmd)
		}
	}
	return cmds, centered, nil
}

// stepsFor is the proportional part of the law: |k·e/tol| / divisor.
func (c *Controller) stepsFor(e int, divisor float64) int {
	p := c.params
	if p.Tolerance == 0 || divisor == 0 {
		return 0
	}
	return int(math.Abs(p.FineStepGain*float64(e)/float64(p.Tolerance)) / divisor)
}

func (c *Controller) remember(axis motion.Axis) {
	c.state.LastDirection[axis] = c.motion.LastDirection(axis)
	c.state.HasSwung[axis] = c.motion.HasSwung(axis)
}
