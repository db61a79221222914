// Package gps acquires the site position and UTC time from an NMEA-0183 receiver.
package gps

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/tarm/serial"

	"github.com/cjeanneret/SunTracker/internal/debug"
)

// ErrAcquisitionFailed is returned once the attempt limit is exhausted.
var ErrAcquisitionFailed = errors.New("gps acquisition failed")

// maxSkippedLines bounds how many sentences of other types one attempt may skip.
const maxSkippedLines = 64

// RetryOptions controls the acquisition loop.
type RetryOptions struct {
	Interval    time.Duration // wait between failed attempts
	MaxAttempts int           // 0 = retry forever
	WarnAfter   int           // log a warning once this many attempts failed; 0 disables
}

// SerialConfig identifies the receiver's serial port.
type SerialConfig struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
}

// OpenSerial opens the receiver's serial port.
func OpenSerial(cfg SerialConfig) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open gps serial %s", cfg.Port)
	}
	return port, nil
}

// Receiver reads NMEA lines and retries until a usable sentence arrives.
type Receiver struct {
	r     *bufio.Reader
	clock clock.Clock
	opts  RetryOptions
}

// NewReceiver wraps a line source (usually the serial port).
func NewReceiver(r io.Reader, clk clock.Clock, opts RetryOptions) *Receiver {
	if clk == nil {
		clk = clock.New()
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	return &Receiver{r: bufio.NewReader(r), clock: clk, opts: opts}
}

// AcquirePosition blocks until a valid GGA fix is read.
func (g *Receiver) AcquirePosition(ctx context.Context) (Position, error) {
	var pos Position
	err := g.retry(ctx, "site coordinates", func(line string) error {
		p, err := ParsePosition(line)
		if err != nil {
			return err
		}
		pos = p
		return nil
	})
	return pos, err
}

// AcquireTime blocks until a valid RMC date/time is read.
func (g *Receiver) AcquireTime(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := g.retry(ctx, "date and time (UTC)", func(line string) error {
		v, err := ParseTime(line)
		if err != nil {
			return err
		}
		t = v
		return nil
	})
	return t, err
}

// retry runs attempts until parse accepts a line. One attempt reads lines,
// skipping other sentence types; a read or parse failure ends the attempt.
func (g *Receiver) retry(ctx context.Context, what string, parse func(string) error) error {
	var policy backoff.BackOff = backoff.NewConstantBackOff(g.opts.Interval)
	if g.opts.MaxAttempts > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(g.opts.MaxAttempts-1))
	}
	policy = backoff.WithContext(policy, ctx)

	attempts := 0
	op := func() error {
		attempts++
		for skipped := 0; skipped < maxSkippedLines; skipped++ {
			line, err := g.r.ReadString('\n')
			if err != nil && line == "" {
				return errors.Wrap(err, "read gps line")
			}
			err = parse(line)
			if errors.Is(err, ErrWrongSentence) {
				continue
			}
			return err
		}
		return errors.Errorf("no %s sentence in %d lines", what, maxSkippedLines)
	}
	notify := func(err error, wait time.Duration) {
		debug.Warn("Unable to reach a stable GPS connection (%v). Retrying in %v.", err, wait)
		if g.opts.WarnAfter > 0 && attempts == g.opts.WarnAfter {
			debug.Warn("GPS: still no %s after %d attempts", what, attempts)
		}
	}

	err := backoff.RetryNotifyWithTimer(op, policy, notify, &clockTimer{clock: g.clock})
	if err == nil {
		debug.Info("Got GPS %s after %d attempt(s)", what, attempts)
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return errors.Wrapf(ErrAcquisitionFailed, "%s after %d attempts: %v", what, attempts, err)
}

// clockTimer adapts clock.Clock to backoff.Timer.
type clockTimer struct {
	clock clock.Clock
	timer *clock.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.Timer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}
