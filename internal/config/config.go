package config

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/SunTracker/internal/hw/adc"
	"github.com/cjeanneret/SunTracker/internal/logic/ephemeris"
)

// MaxConfigFileBytes bounds the size of a configuration file.
const MaxConfigFileBytes = 1 << 20

// Environment variables read by ApplyEnv and the CLI.
const (
	EnvConfigPath = "SUNTRACKER_CONFIG"
	EnvDebugLevel = "SUNTRACKER_DEBUG_LEVEL"
)

// AxisConfig describes the stepper of one axis.
type AxisConfig struct {
	Pins           [4]int  `yaml:"pins"`             // coil lines in phase-table order
	StepsPerDegree float64 `yaml:"steps_per_degree"` // drivetrain ratio
}

// SteppersConfig groups both axes and their shared timing.
type SteppersConfig struct {
	RA           AxisConfig `yaml:"ra"`
	DEC          AxisConfig `yaml:"dec"`
	PinNumbering string     `yaml:"pin_numbering"` // "board" (physical header) or "bcm"
	Swing        int        `yaml:"swing"`         // backlash compensation in steps
	SlewDelayMs  float64    `yaml:"slew_delay_ms"` // phase delay for ephemeris slews
	FineDelayMs  float64    `yaml:"fine_delay_ms"` // phase delay for fine tracking
}

// SensorConfig describes the photodetector front-end (ADS1115).
type SensorConfig struct {
	Gain    string `yaml:"gain"`    // "2/3", "1", "2", "4", "8" or "16"
	I2CBus  string `yaml:"i2c_bus"` // "" = first available bus
	Address uint16 `yaml:"address"` // 7-bit I2C address
}

// TrackingConfig holds the control law constants.
type TrackingConfig struct {
	Threshold         int     `yaml:"threshold"`      // total signal below which the Sun is lost
	Tolerance         int     `yaml:"tolerance"`      // dead band of the error terms
	FineStepGain      float64 `yaml:"fine_step_gain"` // proportional gain
	DECDivisor        float64 `yaml:"dec_divisor"`
	RADivisor         float64 `yaml:"ra_divisor"`
	MaxStepsPerCycle  int     `yaml:"max_steps_per_cycle"`
	EphemerisSettleMs int     `yaml:"ephemeris_settle_ms"`
	CenteredSettleMs  int     `yaml:"centered_settle_ms"`
}

// EphemerisConfig selects the Sun position algorithm and atmosphere.
type EphemerisConfig struct {
	Algorithm    string   `yaml:"algorithm"`     // "michalsky" or "psa"
	PressureBar  float64  `yaml:"pressure_bar"`  // 0 = standard atmosphere
	TemperatureC *float64 `yaml:"temperature_c"` // omitted = 25 °C
}

// SiteConfig is a fixed geodetic position.
type SiteConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Altitude  float64 `yaml:"altitude"`
}

// GPSConfig describes the NMEA receiver.
type GPSConfig struct {
	Enabled        bool       `yaml:"enabled"` // false = use Site and the system clock
	Port           string     `yaml:"port"`
	Baud           int        `yaml:"baud"`
	ReadTimeoutMs  int        `yaml:"read_timeout_ms"`
	RetryIntervalS int        `yaml:"retry_interval_s"`
	MaxAttempts    int        `yaml:"max_attempts"` // 0 = retry forever
	WarnAfter      int        `yaml:"warn_after"`
	Site           SiteConfig `yaml:"site"`
}

// LoggingConfig selects the log format and destination.
type LoggingConfig struct {
	Format     string `yaml:"format"`       // "text" or "json"
	Output     string `yaml:"output"`       // "stdout", "stderr" or a file path
	MaxAgeDays int    `yaml:"max_age_days"` // > 0 rotates file output
}

// DefaultsConfig contains generic runtime switches.
type DefaultsConfig struct {
	DebugLevel   int    `yaml:"debug_level"`   // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockHardware bool   `yaml:"mock_hardware"` // mock GPIO and ADC (true=dev/test, false=Raspberry Pi)
	MockChannels [4]int `yaml:"mock_channels"` // counts served by the mock ADC
}

// Config aggregates all application configuration.
type Config struct {
	Steppers  SteppersConfig  `yaml:"steppers"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Ephemeris EphemerisConfig `yaml:"ephemeris"`
	GPS       GPSConfig       `yaml:"gps"`
	Logging   LoggingConfig   `yaml:"logging"`
	Defaults  DefaultsConfig  `yaml:"defaults"`

	gain adc.Gain
}

// ValidateConfigPath accepts only ".yaml" files directly inside a "configs"
// directory, without ".." elements.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, elem := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == filepath.Separator }) {
		if elem == ".." {
			return errors.Errorf("config path %q must not contain ..", path)
		}
	}
	if filepath.Ext(path) != ".yaml" {
		return errors.Errorf("config path %q must have a .yaml extension", path)
	}
	if filepath.Base(filepath.Dir(filepath.Clean(path))) != "configs" {
		return errors.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	if len(data) > MaxConfigFileBytes {
		return nil, errors.Errorf("config file larger than %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal yaml")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	s := &c.Steppers
	if s.PinNumbering == "" {
		s.PinNumbering = "board"
	}
	if s.RA.Pins == [4]int{} {
		s.RA.Pins = [4]int{31, 33, 35, 37}
	}
	if s.DEC.Pins == [4]int{} {
		s.DEC.Pins = [4]int{32, 36, 38, 40}
	}
	if s.RA.StepsPerDegree == 0 {
		s.RA.StepsPerDegree = 543.7
	}
	if s.DEC.StepsPerDegree == 0 {
		s.DEC.StepsPerDegree = 173.6
	}
	if s.Swing == 0 {
		s.Swing = 19
	}
	if s.SlewDelayMs <= 0 {
		s.SlewDelayMs = 5
	}
	if s.FineDelayMs <= 0 {
		s.FineDelayMs = 10
	}

	if c.Sensor.Gain == "" {
		c.Sensor.Gain = "2"
	}
	if c.Sensor.Address == 0 {
		c.Sensor.Address = 0x48
	}

	t := &c.Tracking
	if t.Threshold == 0 {
		t.Threshold = 3000
	}
	if t.Tolerance == 0 {
		t.Tolerance = 100
	}
	if t.FineStepGain == 0 {
		t.FineStepGain = 20
	}
	if t.DECDivisor == 0 {
		t.DECDivisor = 8
	}
	if t.RADivisor == 0 {
		t.RADivisor = 4
	}
	if t.MaxStepsPerCycle == 0 {
		t.MaxStepsPerCycle = 50
	}
	if t.EphemerisSettleMs == 0 {
		t.EphemerisSettleMs = 10000
	}
	if t.CenteredSettleMs == 0 {
		t.CenteredSettleMs = 500
	}

	if c.Ephemeris.Algorithm == "" {
		c.Ephemeris.Algorithm = "michalsky"
	}

	g := &c.GPS
	if g.Port == "" {
		g.Port = "/dev/ttyACM0"
	}
	if g.Baud == 0 {
		g.Baud = 9600
	}
	if g.ReadTimeoutMs == 0 {
		g.ReadTimeoutMs = 1000
	}
	if g.RetryIntervalS == 0 {
		g.RetryIntervalS = 10
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	gain, err := adc.ParseGain(c.Sensor.Gain)
	if err != nil {
		return errors.Wrap(err, "sensor.gain")
	}
	c.gain = gain

	if _, err := ephemeris.New(c.Ephemeris.Algorithm, ephemeris.Atmosphere{}); err != nil {
		return errors.Wrap(err, "ephemeris.algorithm")
	}
	if c.Ephemeris.PressureBar < 0 {
		return errors.Errorf("ephemeris.pressure_bar must be >= 0, got %.3f", c.Ephemeris.PressureBar)
	}

	switch c.Steppers.PinNumbering {
	case "board", "bcm":
	default:
		return errors.Errorf("steppers.pin_numbering must be board or bcm, got %q", c.Steppers.PinNumbering)
	}
	if c.Steppers.RA.StepsPerDegree <= 0 || c.Steppers.DEC.StepsPerDegree <= 0 {
		return errors.New("steppers.*.steps_per_degree must be > 0")
	}
	if c.Steppers.Swing < 0 {
		return errors.Errorf("steppers.swing must be >= 0, got %d", c.Steppers.Swing)
	}

	t := c.Tracking
	if t.Tolerance <= 0 {
		return errors.Errorf("tracking.tolerance must be > 0, got %d", t.Tolerance)
	}
	if t.DECDivisor <= 0 || t.RADivisor <= 0 {
		return errors.New("tracking divisors must be > 0")
	}
	if t.MaxStepsPerCycle <= 0 {
		return errors.Errorf("tracking.max_steps_per_cycle must be > 0, got %d", t.MaxStepsPerCycle)
	}
	if t.EphemerisSettleMs < 0 || t.CenteredSettleMs < 0 {
		return errors.New("tracking settle times must be >= 0")
	}

	if c.GPS.MaxAttempts < 0 {
		return errors.Errorf("gps.max_attempts must be >= 0, got %d", c.GPS.MaxAttempts)
	}
	if !c.GPS.Enabled {
		s := c.GPS.Site
		if s.Latitude < -90 || s.Latitude > 90 {
			return errors.Errorf("gps.site.latitude must be within [-90, 90], got %.4f", s.Latitude)
		}
		if s.Longitude < -180 || s.Longitude >= 360 {
			return errors.Errorf("gps.site.longitude must be within [-180, 360), got %.4f", s.Longitude)
		}
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return errors.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return errors.Errorf("defaults.debug_level must be within [0, 4], got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// ApplyEnv overrides settings from the environment. getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvDebugLevel); v != "" {
		level, err := strconv.Atoi(v)
		if err != nil || level < 0 || level > 4 {
			return errors.Errorf("%s must be an integer within [0, 4], got %q", EnvDebugLevel, v)
		}
		c.Defaults.DebugLevel = level
	}
	return nil
}

// Gain returns the validated amplifier setting.
func (c *Config) Gain() adc.Gain {
	return c.gain
}

// Atmosphere returns the refraction inputs.
func (c *Config) Atmosphere() ephemeris.Atmosphere {
	return ephemeris.Atmosphere{PressureBar: c.Ephemeris.PressureBar, TemperatureC: c.Ephemeris.TemperatureC}
}

// StaticSite returns the configured site used when the GPS is disabled.
func (c *Config) StaticSite() ephemeris.Site {
	s := c.GPS.Site
	return ephemeris.Site{Latitude: s.Latitude, Longitude: s.Longitude, Altitude: s.Altitude}
}

// SlewDelay returns the phase delay used for ephemeris slews.
func (c *Config) SlewDelay() time.Duration {
	return msDuration(c.Steppers.SlewDelayMs)
}

// FineDelay returns the phase delay used for fine tracking.
func (c *Config) FineDelay() time.Duration {
	return msDuration(c.Steppers.FineDelayMs)
}

// EphemerisSettle returns the wait after an ephemeris slew.
func (c *Config) EphemerisSettle() time.Duration {
	return time.Duration(c.Tracking.EphemerisSettleMs) * time.Millisecond
}

// CenteredSettle returns the wait after a centered fine-track cycle.
func (c *Config) CenteredSettle() time.Duration {
	return time.Duration(c.Tracking.CenteredSettleMs) * time.Millisecond
}

// GPSRetryInterval returns the wait between GPS acquisition attempts.
func (c *Config) GPSRetryInterval() time.Duration {
	return time.Duration(c.GPS.RetryIntervalS) * time.Second
}

// GPSReadTimeout returns the serial read timeout.
func (c *Config) GPSReadTimeout() time.Duration {
	return time.Duration(c.GPS.ReadTimeoutMs) * time.Millisecond
}

func msDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
