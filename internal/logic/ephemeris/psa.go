package ephemeris

import (
	"math"
	"time"
)

const (
	earthMeanRadiusKm  = 6371.01
	astronomicalUnitKm = 149597890
)

// PSA implements the Plataforma Solar de Almería algorithm
// (Blanco-Muriel et al., 2001) with parallax and refraction corrections.
type PSA struct {
	Atmosphere Atmosphere
}

// SunPosition returns the refracted zenith, azimuth and Sun-Earth distance.
func (p PSA) SunPosition(t time.Time, site Site) SunPosition {
	n, hour := dayNumber(t)

	omega := 2.1429 - 0.0010394594*n
	mlong := 4.8950630 + 0.017202791698*n
	manom := 6.2400600 + 0.0172019699*n
	eclon := mlong + 0.03341607*math.Sin(manom) + 0.00034894*math.Sin(2*manom) -
		0.0001134 - 0.0000203*math.Sin(omega)
	eclobl := 0.4090928 - 6.2140e-9*n + 0.0000396*math.Cos(omega)

	ra := math.Atan2(math.Cos(eclobl)*math.Sin(eclon), math.Cos(eclon))
	if ra < 0 {
		ra += 2 * math.Pi
	}
	dec := asin(math.Sin(eclobl) * math.Sin(eclon))

	gmst := 6.6974243242 + 0.0657098283*n + hour
	ha := rad(gmst*15+site.Longitude) - ra
	lat := rad(site.Latitude)

	zen := acos(math.Cos(lat)*math.Cos(ha)*math.Cos(dec) + math.Sin(dec)*math.Sin(lat))
	az := math.Atan2(-math.Sin(ha), math.Tan(dec)*math.Cos(lat)-math.Sin(lat)*math.Cos(ha))
	if az < 0 {
		az += 2 * math.Pi
	}
	zen += earthMeanRadiusKm / astronomicalUnitKm * math.Sin(zen)

	return apparent(90-deg(zen), deg(az), sunDistance(manom), t, site, p.Atmosphere)
}
