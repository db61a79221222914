// Package ephemeris predicts where the Sun is for a given UTC instant and site.
package ephemeris

import (
	"math"
	"strings"
	"time"

	"github.com/joshuaferrara/go-satellite"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Site is the geodetic position of the mount.
type Site struct {
	Latitude  float64 // degrees north
	Longitude float64 // degrees east
	Altitude  float64 // metres above mean sea level
}

// SunPosition is the apparent (refracted) position of the Sun.
type SunPosition struct {
	Zenith   float64 // degrees from the local vertical, [0, 180]
	Azimuth  float64 // degrees clockwise from north, [0, 360)
	Distance float64 // Sun-Earth distance in AU
}

// Elevation returns the apparent elevation above the horizon in degrees.
func (p SunPosition) Elevation() float64 {
	return 90 - p.Zenith
}

// Provider computes the Sun position. Implementations are pure.
type Provider interface {
	SunPosition(t time.Time, site Site) SunPosition
}

// ErrUnknownAlgorithm is returned by New for an unsupported algorithm name.
var ErrUnknownAlgorithm = errors.New("unknown ephemeris algorithm")

// New returns the provider for an algorithm name: "michalsky" (default) or "psa".
func New(name string, atm Atmosphere) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "michalsky":
		return Michalsky{Atmosphere: atm}, nil
	case "psa":
		return PSA{Atmosphere: atm}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownAlgorithm, "%q", name)
	}
}

// j2000 is the Julian date of 2000-01-01 12:00 UTC.
const j2000 = 2451545.0

// dayNumber returns days since J2000 and the UTC hour of day (fractional).
func dayNumber(t time.Time) (n, hour float64) {
	t = t.UTC()
	jd := satellite.JDay(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	frac := float64(t.Nanosecond()) / float64(time.Second)
	jd += frac / 86400
	hour = float64(t.Hour()) + float64(t.Minute())/60 + (float64(t.Second())+frac)/3600
	return jd - j2000, hour
}

// wrap returns x modulo m in [0, m).
func wrap(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	if r >= m {
		return 0
	}
	return r
}

func asin(x float64) float64 {
	return math.Asin(lo.Clamp(x, -1, 1))
}

func acos(x float64) float64 {
	return math.Acos(lo.Clamp(x, -1, 1))
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }
func deg(r float64) float64   { return r * 180 / math.Pi }

// sunDistance is the two-term eccentricity series in AU; anomaly in radians.
func sunDistance(anomaly float64) float64 {
	return 1.00014 - 0.01671*math.Cos(anomaly) - 0.00014*math.Cos(2*anomaly)
}

// apparent turns a geometric elevation (degrees) into the result position.
func apparent(elevation, azimuth, distance float64, t time.Time, site Site, atm Atmosphere) SunPosition {
	zenith := 90 - elevation - atm.Refraction(elevation, t, site)
	return SunPosition{
		Zenith:   lo.Clamp(zenith, 0, 180),
		Azimuth:  wrap(azimuth, 360),
		Distance: distance,
	}
}
