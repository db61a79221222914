package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"

	"github.com/cjeanneret/SunTracker/internal/config"
	"github.com/cjeanneret/SunTracker/internal/hw"
	"github.com/cjeanneret/SunTracker/internal/hw/gpio"
	"github.com/cjeanneret/SunTracker/internal/hw/gps"
	"github.com/cjeanneret/SunTracker/internal/logic/ephemeris"
	"github.com/cjeanneret/SunTracker/internal/logic/motion"
	"github.com/cjeanneret/SunTracker/internal/logic/tracking"
)

// ---------- parseAngle / angleFlag ----------

func TestParseAngle_Valid(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"0", 0},
		{"45.5", 45.5},
		{" -12 ", -12},
		{"360", 360},
		{"-360", -360},
	}
	for _, tc := range cases {
		got, err := parseAngle(tc.in)
		if err != nil {
			t.Errorf("parseAngle(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseAngle(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseAngle_Invalid(t *testing.T) {
	for _, in := range []string{"", "north", "360.1", "-361", "NaN", "Inf", "-Inf"} {
		if _, err := parseAngle(in); err == nil {
			t.Errorf("parseAngle(%q): expected error, got nil", in)
		}
	}
	if err := validateAngle("abc"); err == nil {
		t.Error("validateAngle should reject text")
	}
}

func TestAngleFlag(t *testing.T) {
	a := &angleFlag{}
	if a.String() != "" || a.set {
		t.Fatalf("zero flag = %q set=%v", a.String(), a.set)
	}
	if err := a.Set("42.25"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !a.set || a.val != 42.25 || a.String() != "42.25" {
		t.Errorf("flag = %+v (%q)", a, a.String())
	}
	if err := a.Set("999"); err == nil {
		t.Error("Set(999): expected error")
	}
	if a.val != 42.25 {
		t.Errorf("failed Set changed the value to %v", a.val)
	}
}

// ---------- resolveConfigPath ----------

func TestResolveConfigPath(t *testing.T) {
	env := map[string]string{config.EnvConfigPath: "/srv/configs/site.yaml"}
	getenv := func(k string) string { return env[k] }

	if got := resolveConfigPath(defaultConfigPath, false, getenv); got != "/srv/configs/site.yaml" {
		t.Errorf("env not applied: %q", got)
	}
	if got := resolveConfigPath("configs/cli.yaml", true, getenv); got != "configs/cli.yaml" {
		t.Errorf("explicit flag must win: %q", got)
	}
	if got := resolveConfigPath(defaultConfigPath, false, func(string) string { return "" }); got != defaultConfigPath {
		t.Errorf("default not kept: %q", got)
	}
}

// ---------- loadEnvFile ----------

func TestLoadEnvFile(t *testing.T) {
	if err := loadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file should be ignored: %v", err)
	}
	if err := loadEnvFile(""); err != nil {
		t.Errorf("empty path: %v", err)
	}

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("SUNTRACKER_TEST_VALUE=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SUNTRACKER_TEST_VALUE", "")
	os.Unsetenv("SUNTRACKER_TEST_VALUE")
	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile: %v", err)
	}
	if got := os.Getenv("SUNTRACKER_TEST_VALUE"); got != "from-dotenv" {
		t.Errorf("SUNTRACKER_TEST_VALUE = %q, want from-dotenv", got)
	}
}

// ---------- wiring ----------

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "configs")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTrackingParams_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(tracking.DefaultParams(), trackingParams(cfg)); diff != "" {
		t.Errorf("default config should give the tuned params (-want +got):\n%s", diff)
	}
}

func TestAcquireSite_StaticWhenGPSDisabled(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
gps:
  enabled: false
  site:
    latitude: 46.2
    longitude: 6.15
    altitude: 375
`))
	if err != nil {
		t.Fatal(err)
	}
	before := time.Now().UTC()
	site, instant, err := acquireSite(context.Background(), cfg)
	if err != nil {
		t.Fatalf("acquireSite: %v", err)
	}
	if site != (ephemeris.Site{Latitude: 46.2, Longitude: 6.15, Altitude: 375}) {
		t.Errorf("site = %+v", site)
	}
	if instant.Before(before) || instant.Location() != time.UTC {
		t.Errorf("instant = %v, want system time in UTC", instant)
	}
}

func nmea(body string) string {
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X\r\n", body, cs)
}

func TestAcquireFrom(t *testing.T) {
	stream := nmea("GPGGA,101500.00,4544.5320,N,00721.4080,E,1,08,0.9,570.0,M,47.0,M,,") +
		nmea("GPRMC,100000.00,A,4544.5320,N,00721.4080,E,0.0,0.0,210618,0.0,E")
	rx := gps.NewReceiver(strings.NewReader(stream), clock.New(), gps.RetryOptions{Interval: time.Millisecond, MaxAttempts: 2})

	site, instant, err := acquireFrom(context.Background(), rx)
	if err != nil {
		t.Fatalf("acquireFrom: %v", err)
	}
	if math.Abs(site.Latitude-45.7422) > 1e-4 || math.Abs(site.Longitude-7.3568) > 1e-4 || site.Altitude != 570 {
		t.Errorf("site = %+v", site)
	}
	if !instant.Equal(time.Date(2018, time.June, 21, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("instant = %v", instant)
	}
}

func TestNewActuator_MockPlatform(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "steppers:\n  slew_delay_ms: 0.001\n"))
	if err != nil {
		t.Fatal(err)
	}
	drv := &gpio.MockDriver{}
	platform := hw.NewPlatform(drv, nil)
	act := newActuator(platform, cfg)

	cmd, err := act.MoveAxis(motion.DEC, 0.1)
	if err != nil {
		t.Fatalf("MoveAxis: %v", err)
	}
	if cmd.Steps != 17 || cmd.Direction != motion.Up {
		t.Errorf("command = %+v, want 17 steps up", cmd)
	}
	if err := act.Release(); err != nil {
		t.Fatal(err)
	}
	if pins := drv.HighPins(); len(pins) != 0 {
		t.Errorf("coils still energized: %v", pins)
	}
}

func TestRun_MockHardwareStopsOnCancel(t *testing.T) {
	path := writeConfig(t, `
steppers:
  slew_delay_ms: 0.001
  fine_delay_ms: 0.001
sensor:
  gain: "1"
tracking:
  centered_settle_ms: 1
gps:
  enabled: false
  site:
    latitude: 45.7422
    longitude: 7.3568
    altitude: 570
defaults:
  debug_level: 0
  mock_hardware: true
  mock_channels: [4000, 4000, 4000, 4000]
`)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// Start at the current Sun position so the initial slew stays short.
	site := ephemeris.Site{Latitude: 45.7422, Longitude: 7.3568, Altitude: 570}
	pos := ephemeris.Michalsky{}.SunPosition(time.Now().UTC(), site)
	dec := &angleFlag{val: pos.Elevation(), set: true}
	ra := &angleFlag{val: pos.Azimuth, set: true}

	if err := run(ctx, path, dec, ra); err != nil {
		t.Errorf("run returned %v, want nil on cancellation", err)
	}
}

func TestRun_BadConfig(t *testing.T) {
	path := writeConfig(t, "sensor:\n  gain: \"5\"\n")
	if err := run(context.Background(), path, &angleFlag{set: true}, &angleFlag{set: true}); err == nil {
		t.Error("expected error for unsupported gain")
	}
}
