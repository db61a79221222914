package debug

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (mode changes, acquisition, warnings)
	LevelLive    = 2 // Live info (one status line per cycle, moves)
	LevelVerbose = 3 // Verbose (ephemeris details, step counts)
	LevelTrace   = 4 // Trace (GPIO, ADC, very low level)
)

// Options configures the log backend. Zero value logs text to stdout.
type Options struct {
	Format string // "text" (default) or "json"
	Output string // "stdout" (default), "stderr" or a file path
	MaxAge int    // days to keep rotated files; 0 disables rotation
}

var (
	level   int
	logger  *logrus.Logger
	entry   *logrus.Entry
	session string
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (acquisition, mode changes, warnings)
// 2 = live info (status line per cycle, movements)
// 3 = verbose (ephemeris, step computations)
// 4 = trace (GPIO, ADC, very low level)
func Init(debugLevel int) {
	_ = Configure(debugLevel, Options{})
}

// Configure initializes the debug system with a level and a log backend.
func Configure(debugLevel int, opts Options) error {
	level = debugLevel
	logger = nil
	entry = nil
	if level <= LevelOff {
		return nil
	}

	l := logrus.New()
	l.SetLevel(logrus.TraceLevel)

	switch opts.Format {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000000",
		})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	default:
		return fmt.Errorf("invalid log format %q", opts.Format)
	}

	switch opts.Output {
	case "", "stdout":
		l.SetOutput(os.Stdout)
	case "stderr":
		l.SetOutput(os.Stderr)
	default:
		if opts.MaxAge > 0 {
			l.SetOutput(&lumberjack.Logger{
				Filename: opts.Output,
				MaxAge:   opts.MaxAge,
				MaxSize:  50,
				Compress: true,
			})
		} else {
			f, err := os.OpenFile(opts.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open log file %q: %w", opts.Output, err)
			}
			l.SetOutput(f)
		}
	}

	if session == "" {
		session = uuid.NewString()
	}
	logger = l
	entry = l.WithFields(logrus.Fields{"app": "suntracker", "session": session})
	return nil
}

// SetOutput redirects log output (e.g. to tee it into another writer).
func SetOutput(w io.Writer) {
	if logger != nil {
		logger.SetOutput(w)
	}
}

// Session returns the identifier attached to every entry of this run.
func Session() string {
	return session
}

// Level returns the current debug level.
func Level() int {
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

func enabled(minLevel int) bool {
	return level >= minLevel && entry != nil
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if enabled(LevelInfo) {
		entry.Infof(format, args...)
	}
}

// Warn prints a recoverable problem (level 1).
func Warn(format string, args ...interface{}) {
	if enabled(LevelInfo) {
		entry.Warnf(format, args...)
	}
}

// Summary prints an important summary (level 1).
func Summary(title string) {
	if enabled(LevelInfo) {
		entry.Info("═══════════════════════════════════════")
		entry.Infof("  %s", title)
		entry.Info("═══════════════════════════════════════")
	}
}

// Mode prints a tracking mode change (level 1).
func Mode(from, to string) {
	if enabled(LevelInfo) {
		entry.WithFields(logrus.Fields{"from": from, "to": to}).Info("tracking mode changed")
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if enabled(LevelLive) {
		entry.Infof(format, args...)
	}
}

// Move prints a motor movement (level 2).
func Move(axis string, steps int, direction string) {
	if enabled(LevelLive) {
		entry.WithFields(logrus.Fields{"axis": axis, "steps": steps, "direction": direction}).Info("move")
	}
}

// Status prints the per-cycle sensor status line (level 2).
func Status(channels [4]int, vertical, horizontal, total int, mode string) {
	if enabled(LevelLive) {
		entry.WithField("mode", mode).Infof("| %6d | %6d | %6d | %6d | vert %d, horiz %d, tot %d",
			channels[0], channels[1], channels[2], channels[3], vertical, horizontal, total)
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if enabled(LevelVerbose) {
		entry.Debugf(format, args...)
	}
}

// Print prints a level 3 message (alias for Verbose).
func Print(format string, args ...interface{}) {
	Verbose(format, args...)
}

// Printf is an alias for Print for compatibility.
func Printf(format string, args ...interface{}) {
	Verbose(format, args...)
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if enabled(LevelVerbose) {
		entry.Debugf("%s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if enabled(LevelVerbose) {
		entry.Debug("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		entry.Debugf("  %s", name)
		entry.Debug("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if enabled(LevelVerbose) {
		entry.Debugf("Step %d: %s", num, description)
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if enabled(LevelInfo) {
		entry.Infof("  %s = %v", name, value)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace, GPIO).
func Trace(format string, args ...interface{}) {
	if enabled(LevelTrace) {
		entry.Tracef(format, args...)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if enabled(LevelTrace) {
		entry.WithFields(logrus.Fields{"op": operation, "pin": pin, "value": value}).Trace("gpio")
	}
}

// ADC prints an analog conversion (level 4).
func ADC(channel int, raw int) {
	if enabled(LevelTrace) {
		entry.WithFields(logrus.Fields{"channel": channel, "raw": raw}).Trace("adc")
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if enabled(LevelInfo) {
		entry.WithError(err).Error("error")
	}
}

// Fmt is a helper function that returns a formatted string
// only if debug is enabled (to avoid unnecessary allocations).
func Fmt(format string, args ...interface{}) string {
	if level > 0 {
		return fmt.Sprintf(format, args...)
	}
	return ""
}
