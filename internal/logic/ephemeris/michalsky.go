package ephemeris

import (
	"math"
	"time"
)

// Michalsky implements the Astronomical Almanac low-precision algorithm as
// published by Michalsky (1988) with Spencer's corrections (~0.01°).
type Michalsky struct {
	Atmosphere Atmosphere
}

// SunPosition returns the refracted zenith, azimuth and Sun-Earth distance.
func (m Michalsky) SunPosition(t time.Time, site Site) SunPosition {
	n, hour := dayNumber(t)

	// Ecliptic coordinates
	mnlong := wrap(280.460+0.9856474*n, 360)
	mnanom := rad(wrap(357.528+0.9856003*n, 360))
	eclong := rad(wrap(mnlong+1.915*math.Sin(mnanom)+0.020*math.Sin(2*mnanom), 360))
	oblqec := rad(23.439 - 4.0e-7*n)

	// Celestial coordinates
	num := math.Cos(oblqec) * math.Sin(eclong)
	den := math.Cos(eclong)
	ra := math.Atan(num / den)
	switch {
	case den < 0:
		ra += math.Pi
	case num < 0:
		ra += 2 * math.Pi
	}
	dec := asin(math.Sin(oblqec) * math.Sin(eclong))

	// Local coordinates
	gmst := wrap(6.697375+0.0657098242*n+hour, 24)
	lmst := rad(wrap(gmst+site.Longitude/15, 24) * 15)
	ha := lmst - ra
	switch {
	case ha <= -math.Pi:
		ha += 2 * math.Pi
	case ha > math.Pi:
		ha -= 2 * math.Pi
	}
	lat := rad(site.Latitude)

	el := asin(math.Sin(dec)*math.Sin(lat) + math.Cos(dec)*math.Cos(lat)*math.Cos(ha))

	var az float64
	if cosEl := math.Cos(el); cosEl > 1e-12 {
		az = asin(-math.Cos(dec) * math.Sin(ha) / cosEl)
	}
	if math.Sin(dec)-math.Sin(el)*math.Sin(lat) >= 0 {
		if math.Sin(az) < 0 {
			az += 2 * math.Pi
		}
	} else {
		az = math.Pi - az
	}

	return apparent(deg(el), deg(az), sunDistance(mnanom), t, site, m.Atmosphere)
}
