package ephemeris

import (
	"errors"
	"math"
	"testing"
	"time"
)

var sion = Site{Latitude: 45.7422, Longitude: 7.3568, Altitude: 570}

func TestMichalsky_SummerMorning(t *testing.T) {
	ts := time.Date(2018, time.June, 21, 10, 0, 0, 0, time.UTC)
	pos := Michalsky{}.SunPosition(ts, sion)

	if pos.Zenith < 25 || pos.Zenith > 30 {
		t.Errorf("Zenith = %.3f, want within [25, 30]", pos.Zenith)
	}
	if pos.Azimuth < 110 || pos.Azimuth > 135 {
		t.Errorf("Azimuth = %.3f, want within [110, 135]", pos.Azimuth)
	}
	if math.Abs(pos.Distance-1.0163) > 1e-3 {
		t.Errorf("Distance = %.5f, want ~1.0163", pos.Distance)
	}
}

func TestMichalsky_AzimuthFollowsTheDay(t *testing.T) {
	day := time.Date(2018, time.June, 21, 0, 0, 0, 0, time.UTC)
	morning := Michalsky{}.SunPosition(day.Add(8*time.Hour+30*time.Minute), sion)
	noon := Michalsky{}.SunPosition(day.Add(11*time.Hour+30*time.Minute), sion)

	if morning.Azimuth > noon.Azimuth {
		t.Errorf("azimuth should grow through the morning: %.2f then %.2f", morning.Azimuth, noon.Azimuth)
	}
	if noon.Zenith > morning.Zenith {
		t.Errorf("zenith should shrink towards noon: %.2f then %.2f", morning.Zenith, noon.Zenith)
	}
	if math.Abs(noon.Azimuth-178.6) > 1 {
		t.Errorf("local noon azimuth = %.2f, want ~178.6", noon.Azimuth)
	}
}

func TestProviders_Ranges(t *testing.T) {
	sites := []Site{
		sion,
		{Latitude: -33.9, Longitude: 151.2, Altitude: 50},
		{Latitude: 78.2, Longitude: 15.6, Altitude: 10},
		{Latitude: 0, Longitude: -75, Altitude: 2800},
	}
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	providers := map[string]Provider{"michalsky": Michalsky{}, "psa": PSA{}}

	for name, p := range providers {
		for _, site := range sites {
			for h := 0; h < 24*365; h += 37 {
				ts := start.Add(time.Duration(h) * time.Hour)
				pos := p.SunPosition(ts, site)
				if pos.Zenith < 0 || pos.Zenith > 180 || math.IsNaN(pos.Zenith) {
					t.Fatalf("%s %v %v: zenith %.3f out of range", name, site, ts, pos.Zenith)
				}
				if pos.Azimuth < 0 || pos.Azimuth >= 360 || math.IsNaN(pos.Azimuth) {
					t.Fatalf("%s %v %v: azimuth %.3f out of range", name, site, ts, pos.Azimuth)
				}
				if pos.Distance < 0.98 || pos.Distance > 1.02 {
					t.Fatalf("%s %v: distance %.5f out of range", name, ts, pos.Distance)
				}
			}
		}
	}
}

func TestProviders_Agree(t *testing.T) {
	cases := []struct {
		name string
		ts   time.Time
		site Site
	}{
		{"sion summer", time.Date(2018, time.June, 21, 10, 0, 0, 0, time.UTC), sion},
		{"sydney summer", time.Date(2018, time.December, 21, 12, 0, 0, 0, time.UTC),
			Site{Latitude: -33.9, Longitude: 151.2, Altitude: 50}},
		{"equinox", time.Date(2023, time.March, 20, 15, 45, 0, 0, time.UTC),
			Site{Latitude: 40.4, Longitude: -3.7, Altitude: 650}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := Michalsky{}.SunPosition(tc.ts, tc.site)
			p := PSA{}.SunPosition(tc.ts, tc.site)
			if d := math.Abs(m.Zenith - p.Zenith); d > 0.05 {
				t.Errorf("zenith differs by %.4f (michalsky %.3f, psa %.3f)", d, m.Zenith, p.Zenith)
			}
			if d := math.Abs(m.Azimuth - p.Azimuth); d > 0.05 {
				t.Errorf("azimuth differs by %.4f (michalsky %.3f, psa %.3f)", d, m.Azimuth, p.Azimuth)
			}
			if d := math.Abs(m.Distance - p.Distance); d > 1e-4 {
				t.Errorf("distance differs by %.6f", d)
			}
		})
	}
}

func TestProviders_Deterministic(t *testing.T) {
	ts := time.Date(2021, time.September, 3, 14, 12, 5, 0, time.UTC)
	for _, p := range []Provider{Michalsky{}, PSA{}} {
		if a, b := p.SunPosition(ts, sion), p.SunPosition(ts, sion); a != b {
			t.Errorf("%T not deterministic: %+v vs %+v", p, a, b)
		}
	}
}

func TestProviders_IgnoreTimezone(t *testing.T) {
	utc := time.Date(2018, time.June, 21, 10, 0, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("CEST", 2*3600))
	if a, b := (Michalsky{}).SunPosition(utc, sion), (Michalsky{}).SunPosition(local, sion); a != b {
		t.Errorf("same instant in another zone gave %+v vs %+v", a, b)
	}
}

func TestSeasonAt(t *testing.T) {
	june := time.Date(2020, time.June, 1, 0, 0, 0, 0, time.UTC)
	dec := time.Date(2020, time.December, 1, 0, 0, 0, 0, time.UTC)

	if SeasonAt(june, 45) != Summer || SeasonAt(dec, 45) != Winter {
		t.Error("northern hemisphere seasons wrong")
	}
	if SeasonAt(june, -34) != Winter || SeasonAt(dec, -34) != Summer {
		t.Error("southern hemisphere seasons should be reversed")
	}
}

func TestStandardPressure(t *testing.T) {
	june := time.Date(2020, time.June, 1, 0, 0, 0, 0, time.UTC)
	if p := StandardPressure(june, 45, 0); math.Abs(p-1.0133) > 1e-9 {
		t.Errorf("summer sea-level pressure = %f, want 1.0133", p)
	}
	if p := StandardPressure(june, -45, 0); math.Abs(p-1.0180) > 1e-9 {
		t.Errorf("southern winter sea-level pressure = %f, want 1.0180", p)
	}
	if high, low := StandardPressure(june, 45, 3000), StandardPressure(june, 45, 0); high >= low {
		t.Errorf("pressure should drop with altitude: %f >= %f", high, low)
	}
}

func TestRefraction(t *testing.T) {
	ts := time.Date(2020, time.June, 1, 0, 0, 0, 0, time.UTC)
	site := Site{Latitude: 45}
	atm := Atmosphere{}

	if r := atm.Refraction(-10, ts, site); r != 0 {
		t.Errorf("below horizon: refraction = %f, want 0", r)
	}
	if r := atm.Refraction(90, ts, site); r != 0 {
		t.Errorf("zenith: refraction = %f, want 0", r)
	}
	horizon := atm.Refraction(0, ts, site)
	if horizon < 0.4 || horizon > 0.6 {
		t.Errorf("horizon refraction = %f, want ~0.5°", horizon)
	}
	if high := atm.Refraction(45, ts, site); high <= 0 || high >= horizon {
		t.Errorf("45° refraction = %f, want between 0 and %f", high, horizon)
	}

	cold := -20.0
	if c := (Atmosphere{TemperatureC: &cold}).Refraction(10, ts, site); c <= atm.Refraction(10, ts, site) {
		t.Error("cold air should refract more")
	}
	bogus := 500.0
	if b := (Atmosphere{TemperatureC: &bogus}).Refraction(10, ts, site); b != atm.Refraction(10, ts, site) {
		t.Error("out of range temperature should fall back to 25 °C")
	}
	if p := (Atmosphere{PressureBar: 0.5}).Refraction(10, ts, site); p >= atm.Refraction(10, ts, site) {
		t.Error("thin air should refract less")
	}
}

func TestNew(t *testing.T) {
	for name, want := range map[string]Provider{"": Michalsky{}, "michalsky": Michalsky{}, "PSA": PSA{}} {
		p, err := New(name, Atmosphere{})
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		if p != want {
			t.Errorf("New(%q) = %T, want %T", name, p, want)
		}
	}
	if _, err := New("spa", Atmosphere{}); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("New(spa) error = %v, want ErrUnknownAlgorithm", err)
	}
}
