package main

import (
	"context"
	"flag"
	"io/fs"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/huh"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/cjeanneret/SunTracker/internal/config"
	"github.com/cjeanneret/SunTracker/internal/debug"
	"github.com/cjeanneret/SunTracker/internal/hw"
	"github.com/cjeanneret/SunTracker/internal/hw/adc"
	"github.com/cjeanneret/SunTracker/internal/hw/gps"
	"github.com/cjeanneret/SunTracker/internal/hw/stepper"
	"github.com/cjeanneret/SunTracker/internal/logic/ephemeris"
	"github.com/cjeanneret/SunTracker/internal/logic/motion"
	"github.com/cjeanneret/SunTracker/internal/logic/sensor"
	"github.com/cjeanneret/SunTracker/internal/logic/tracking"
)

var defaultConfigPath = filepath.Join("configs", "default.yaml")

func main() {
	// CLI flags
	cfgPath := flag.String("config", defaultConfigPath, "path to config file (env "+config.EnvConfigPath+")")
	envFile := flag.String("env", ".env", "dotenv file loaded before the configuration")
	dec := &angleFlag{}
	ra := &angleFlag{}
	flag.Var(dec, "dec", "current DEC angle in degrees; skips the prompt when set with -ra")
	flag.Var(ra, "ra", "current RA angle in degrees; skips the prompt when set with -dec")
	flag.Parse()

	if err := loadEnvFile(*envFile); err != nil {
		log.Fatalf("load %s failed: %v", *envFile, err)
	}
	path := resolveConfigPath(*cfgPath, flagSet("config"), os.Getenv)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, path, dec, ra); err != nil {
		cancel()
		log.Fatalf("suntracker: %v", err)
	}
}

// run wires the hardware, acquires the site and tracks until ctx is cancelled.
// Coil lines are de-asserted and drivers closed on every return path.
func run(ctx context.Context, cfgPath string, dec, ra *angleFlag) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return err
	}

	if err := debug.Configure(cfg.Defaults.DebugLevel, debug.Options{
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		MaxAge: cfg.Logging.MaxAgeDays,
	}); err != nil {
		return errors.Wrap(err, "configure logging")
	}
	debug.Section("Initialization")
	debug.Value("Config path", cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Session", debug.Session())

	// Hardware
	debug.Value("Mock hardware", cfg.Defaults.MockHardware)
	debug.Step(1, "Initializing GPIO and ADC")
	platform, err := hw.New(hw.Options{
		Mock:         cfg.Defaults.MockHardware,
		PinNumbering: cfg.Steppers.PinNumbering,
		ADC: adc.ADS1115Config{
			Bus:     cfg.Sensor.I2CBus,
			Address: cfg.Sensor.Address,
			Gain:    cfg.Gain(),
		},
		MockChannels: cfg.Defaults.MockChannels,
	})
	if err != nil {
		return errors.Wrap(err, "init hardware")
	}
	defer func() {
		if err := platform.Close(); err != nil {
			log.Printf("closing hardware failed: %v", err)
		}
	}()

	debug.Step(2, "Initializing stepper motors")
	actuator := newActuator(platform, cfg)
	defer func() {
		if err := actuator.Release(); err != nil {
			log.Printf("releasing coils failed: %v", err)
		}
	}()
	debug.PrintStruct("Stepper config", cfg.Steppers)

	debug.Step(3, "Initializing photodetector")
	reader, err := sensor.NewReader(platform.Analog(), cfg.Gain())
	if err != nil {
		return err
	}
	debug.Value("ADC gain", cfg.Gain())

	provider, err := ephemeris.New(cfg.Ephemeris.Algorithm, cfg.Atmosphere())
	if err != nil {
		return err
	}
	debug.Value("Ephemeris", cfg.Ephemeris.Algorithm)

	// Site and time
	debug.Step(4, "Acquiring site and time")
	site, instant, err := acquireSite(ctx, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	debug.Info("Site %.4f°N %.4f°E %.0f m, %s", site.Latitude, site.Longitude, site.Altitude, instant.Format(time.RFC3339))

	// Operator estimate
	debug.Step(5, "Reading the current mount position")
	if !dec.set || !ra.set {
		if err := promptEstimate(dec, ra); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return errors.Wrap(err, "read mount position")
		}
	}

	ctrl := tracking.NewController(reader, provider, actuator, tracking.Options{
		Params:  trackingParams(cfg),
		Site:    site,
		Instant: instant,
		Clock:   clock.New(),
		Dec:     dec.val,
		RA:      ra.val,
	})

	if _, err := ctrl.Start(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "initial slew")
	}

	debug.Section("Tracking")
	if err := ctrl.Run(ctx); err != nil {
		return errors.Wrap(err, "tracking")
	}

	st := ctrl.State()
	debug.Summary("Tracking Summary")
	debug.Info("Cycles: %d, sensor faults: %d", ctrl.Cycles(), reader.Faults())
	debug.Info("Last estimate: DEC %.2f°, RA %.2f°", st.Dec, st.RA)
	return nil
}

// newActuator builds both steppers on the platform GPIO lines.
func newActuator(platform *hw.Platform, cfg *config.Config) *motion.Actuator {
	raMotor := stepper.NewStepper(platform, stepper.Config{
		Name:      "RA",
		Pins:      cfg.Steppers.RA.Pins,
		StepDelay: cfg.SlewDelay(),
	})
	decMotor := stepper.NewStepper(platform, stepper.Config{
		Name:      "DEC",
		Pins:      cfg.Steppers.DEC.Pins,
		StepDelay: cfg.SlewDelay(),
	})
	return motion.NewActuator(motion.Config{
		RAStepsPerDegree:  cfg.Steppers.RA.StepsPerDegree,
		DECStepsPerDegree: cfg.Steppers.DEC.StepsPerDegree,
		Swing:             cfg.Steppers.Swing,
		SlewDelay:         cfg.SlewDelay(),
	}, raMotor, decMotor)
}

// trackingParams maps the configuration onto the control law constants.
func trackingParams(cfg *config.Config) tracking.Params {
	t := cfg.Tracking
	return tracking.Params{
		Threshold:        t.Threshold,
		Tolerance:        t.Tolerance,
		FineStepGain:     t.FineStepGain,
		DECDivisor:       t.DECDivisor,
		RADivisor:        t.RADivisor,
		MaxStepsPerCycle: t.MaxStepsPerCycle,
		FineStepDelay:    cfg.FineDelay(),
		EphemerisSettle:  cfg.EphemerisSettle(),
		CenteredSettle:   cfg.CenteredSettle(),
	}
}

// acquireSite reads position and time from the GPS receiver, or returns the
// configured static site and the system clock when the receiver is disabled.
func acquireSite(ctx context.Context, cfg *config.Config) (ephemeris.Site, time.Time, error) {
	if !cfg.GPS.Enabled {
		debug.Info("GPS disabled, using the configured site and the system clock")
		return cfg.StaticSite(), time.Now().UTC(), nil
	}

	port, err := gps.OpenSerial(gps.SerialConfig{
		Port:        cfg.GPS.Port,
		Baud:        cfg.GPS.Baud,
		ReadTimeout: cfg.GPSReadTimeout(),
	})
	if err != nil {
		return ephemeris.Site{}, time.Time{}, err
	}
	defer port.Close()

	return acquireFrom(ctx, gps.NewReceiver(port, clock.New(), gps.RetryOptions{
		Interval:    cfg.GPSRetryInterval(),
		MaxAttempts: cfg.GPS.MaxAttempts,
		WarnAfter:   cfg.GPS.WarnAfter,
	}))
}

// acquireFrom waits for a position fix, then for the date and time.
func acquireFrom(ctx context.Context, rx *gps.Receiver) (ephemeris.Site, time.Time, error) {
	pos, err := rx.AcquirePosition(ctx)
	if err != nil {
		return ephemeris.Site{}, time.Time{}, err
	}
	instant, err := rx.AcquireTime(ctx)
	if err != nil {
		return ephemeris.Site{}, time.Time{}, err
	}
	return ephemeris.Site{Latitude: pos.Latitude, Longitude: pos.Longitude, Altitude: pos.Altitude}, instant, nil
}

// promptEstimate asks the operator for the starting pointing angles that
// were not given on the command line.
func promptEstimate(dec, ra *angleFlag) error {
	decText, raText := dec.String(), ra.String()
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Current DEC of the mount (degrees)").
			Value(&decText).
			Validate(validateAngle),
		huh.NewInput().
			Title("Current RA of the mount (degrees)").
			Value(&raText).
			Validate(validateAngle),
	))
	if err := form.Run(); err != nil {
		return err
	}
	if err := dec.Set(decText); err != nil {
		return err
	}
	return ra.Set(raText)
}

func validateAngle(s string) error {
	_, err := parseAngle(s)
	return err
}

// parseAngle accepts a finite angle within [-360, 360] degrees.
func parseAngle(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.Errorf("%q is not a number", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < -360 || v > 360 {
		return 0, errors.Errorf("angle must be between -360 and 360, got %g", v)
	}
	return v, nil
}

// angleFlag implements flag.Value for -dec and -ra; set records whether the
// operator supplied it.
type angleFlag struct {
	val float64
	set bool
}

func (a *angleFlag) String() string {
	if !a.set {
		return ""
	}
	return strconv.FormatFloat(a.val, 'f', -1, 64)
}

func (a *angleFlag) Set(s string) error {
	v, err := parseAngle(s)
	if err != nil {
		return err
	}
	a.val, a.set = v, true
	return nil
}

// loadEnvFile loads a dotenv file without overriding the real environment.
// A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// resolveConfigPath lets the environment pick the configuration unless the
// -config flag was given explicitly.
func resolveConfigPath(flagValue string, explicit bool, getenv func(string) string) string {
	if !explicit {
		if v := getenv(config.EnvConfigPath); v != "" {
			return v
		}
	}
	return flagValue
}

// flagSet reports whether the named flag was given on the command line.
func flagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
