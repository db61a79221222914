package gps

import (
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/pkg/errors"
)

// Position is a geodetic fix from a GGA sentence.
type Position struct {
	Latitude  float64 // degrees north
	Longitude float64 // degrees east
	Altitude  float64 // metres above mean sea level
}

var (
	// ErrWrongSentence means the line is valid NMEA of another type.
	ErrWrongSentence = errors.New("unexpected sentence type")
	// ErrNoFix means the receiver reported an invalid fix or time.
	ErrNoFix = errors.New("no valid fix")
)

// ParsePosition extracts latitude, longitude and altitude from a GGA sentence.
func ParsePosition(line string) (Position, error) {
	s, err := nmea.Parse(strings.TrimSpace(line))
	if err != nil {
		return Position{}, errors.Wrap(err, "parse nmea")
	}
	gga, ok := s.(nmea.GGA)
	if !ok {
		return Position{}, errors.Wrapf(ErrWrongSentence, "want GGA, got %s", s.DataType())
	}
	if gga.FixQuality == "" || gga.FixQuality == "0" {
		return Position{}, errors.Wrap(ErrNoFix, "GGA fix quality 0")
	}
	return Position{
		Latitude:  gga.Latitude,
		Longitude: gga.Longitude,
		Altitude:  gga.Altitude,
	}, nil
}

// ParseTime extracts the UTC date and time from an RMC sentence.
func ParseTime(line string) (time.Time, error) {
	s, err := nmea.Parse(strings.TrimSpace(line))
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse nmea")
	}
	rmc, ok := s.(nmea.RMC)
	if !ok {
		return time.Time{}, errors.Wrapf(ErrWrongSentence, "want RMC, got %s", s.DataType())
	}
	if rmc.Validity != "A" || !rmc.Date.Valid || !rmc.Time.Valid {
		return time.Time{}, errors.Wrap(ErrNoFix, "RMC status void")
	}
	return time.Date(2000+rmc.Date.YY, time.Month(rmc.Date.MM), rmc.Date.DD,
		rmc.Time.Hour, rmc.Time.Minute, rmc.Time.Second,
		rmc.Time.Millisecond*int(time.Millisecond), time.UTC), nil
}
