package ephemeris

import (
	"math"
	"time"
)

// Atmosphere holds optional measured conditions used by the refraction correction.
type Atmosphere struct {
	PressureBar  float64  // station pressure; 0 = standard atmosphere for site and season
	TemperatureC *float64 // ambient temperature; nil or outside (-99, 90] = 25 °C
}

// Season is the mid-latitude standard atmosphere in use.
type Season int

const (
	Winter Season = iota
	Summer
)

// SeasonAt returns the local season: April to September is summer in the
// northern hemisphere and winter in the southern one.
func SeasonAt(t time.Time, latitude float64) Season {
	m := t.UTC().Month()
	northSummer := m >= time.April && m <= time.September
	if northSummer == (latitude >= 0) {
		return Summer
	}
	return Winter
}

// StandardPressure returns the mid-latitude standard atmosphere pressure in bar
// at the given altitude for the site's season.
func StandardPressure(t time.Time, latitude, altitude float64) float64 {
	if SeasonAt(t, latitude) == Winter {
		return 1.0180 * math.Exp(-1.28e-4*altitude)
	}
	return 1.0133 * math.Exp(-1.1859e-4*altitude)
}

func (a Atmosphere) temperatureK() float64 {
	if a.TemperatureC == nil || *a.TemperatureC < -99 || *a.TemperatureC > 90 {
		return 25 + 273.15
	}
	return *a.TemperatureC + 273.15
}

// Refraction returns the elevation correction in degrees for a geometric
// elevation in degrees. It is zero below -2.5° and at or above 90°.
func (a Atmosphere) Refraction(elevation float64, t time.Time, site Site) float64 {
	p := a.PressureBar
	if p <= 0 {
		p = StandardPressure(t, site.Latitude, site.Altitude)
	}
	pt := p / a.temperatureK() * 1000

	switch {
	case elevation >= -2.5 && elevation < 15:
		e := elevation
		return pt * (0.1594 + 0.0196*e + 0.00002*e*e) / (1 + 0.505*e + 0.0845*e*e)
	case elevation >= 15 && elevation < 90:
		return 0.00452 * pt / math.Tan(rad(elevation))
	}
	return 0
}
