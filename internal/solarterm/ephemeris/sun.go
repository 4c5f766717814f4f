// Package ephemeris approximates when the Sun reaches a given apparent
// ecliptic longitude. It uses the low-precision solar series (errors up to
// about 0.01°, i.e. several minutes of time) and a polynomial ΔT model, and is
// meant for generating reference tables rather than for precise astronomy.
package ephemeris

import (
	"math"
	"time"
)

const (
	j2000        = 2451545.0
	unixEpochJD  = 2440587.5
	meanDailyLon = 0.98564736 // degrees per day
	secondsDay   = 86400.0
)

// CalendarJD returns the Julian Day of a Gregorian date; d may carry a day fraction
func CalendarJD(y, m int, d float64) float64 {
	if m <= 2 {
		y--
		m += 12
	}
	a := y / 100
	b := 2 - a + a/4
	return math.Floor(365.25*float64(y+4716)) + math.Floor(30.6001*float64(m+1)) + d + float64(b) - 1524.5
}

// JulianDay converts an instant to a Julian Day (UT)
func JulianDay(t time.Time) float64 {
	return float64(t.UnixNano())/1e9/secondsDay + unixEpochJD
}

// Time converts a Julian Day (UT) to an instant in UTC
func Time(jd float64) time.Time {
	ns := (jd - unixEpochJD) * secondsDay * 1e9
	return time.Unix(0, int64(math.Round(ns))).UTC()
}

// ApparentLongitude returns the Sun's apparent longitude in degrees [0,360) at jde (TT)
func ApparentLongitude(jde float64) float64 {
	t := (jde - j2000) / 36525
	l0 := 280.46646 + 36000.76983*t + 0.0003032*t*t
	m := rad(357.52911 + 35999.05029*t - 0.0001537*t*t)
	c := (1.914602-0.004817*t-0.000014*t*t)*math.Sin(m) +
		(0.019993-0.000101*t)*math.Sin(2*m) +
		0.000289*math.Sin(3*m)
	omega := rad(125.04 - 1934.136*t)
	return normalize(l0 + c - 0.00569 - 0.00478*math.Sin(omega))
}

// Crossing returns the instant (UTC) in Gregorian year y when the Sun's
// apparent longitude equals lon. Longitudes above 270° resolve to the start
// of the year (January to March), all others to their usual month.
func Crossing(y int, lon float64) time.Time {
	delta := lon
	if lon > 270 {
		delta -= 360
	}
	jde := CalendarJD(y, 3, 20.5) + delta*365.2422/360
	for i := 0; i < 50; i++ {
		diff := math.Mod(lon-ApparentLongitude(jde)+540, 360) - 180
		jde += diff / meanDailyLon
		if math.Abs(diff) < 1e-7 {
			break
		}
	}
	return Time(jde - DeltaT(float64(y)+0.5)/secondsDay)
}

// DeltaT returns TT−UT in seconds for a decimal year (Espenak–Meeus polynomials)
func DeltaT(y float64) float64 {
	switch {
	case y < 1800 || y >= 2150:
		u := (y - 1820) / 100
		return -20 + 32*u*u
	case y < 1860:
		t := y - 1800
		return 13.72 - 0.332447*t + 0.0068612*t*t + 0.0041116*pow(t, 3) - 0.00037436*pow(t, 4) +
			0.0000121272*pow(t, 5) - 0.0000001699*pow(t, 6) + 0.000000000875*pow(t, 7)
	case y < 1900:
		t := y - 1860
		return 7.62 + 0.5737*t - 0.251754*t*t + 0.01680668*pow(t, 3) - 0.0004473624*pow(t, 4) + pow(t, 5)/233174
	case y < 1920:
		t := y - 1900
		return -2.79 + 1.494119*t - 0.0598939*t*t + 0.0061966*pow(t, 3) - 0.000197*pow(t, 4)
	case y < 1941:
		t := y - 1920
		return 21.20 + 0.84493*t - 0.076100*t*t + 0.0020936*pow(t, 3)
	case y < 1961:
		t := y - 1950
		return 29.07 + 0.407*t - t*t/233 + pow(t, 3)/2547
	case y < 1986:
		t := y - 1975
		return 45.45 + 1.067*t - t*t/260 - pow(t, 3)/718
	case y < 2005:
		t := y - 2000
		return 63.86 + 0.3345*t - 0.060374*t*t + 0.0017275*pow(t, 3) + 0.000651814*pow(t, 4) + 0.00002373599*pow(t, 5)
	case y < 2050:
		t := y - 2000
		return 62.92 + 0.32217*t + 0.005589*t*t
	default:
		u := (y - 1820) / 100
		return -20 + 32*u*u - 0.5628*(2150-y)
	}
}

func rad(d float64) float64 { return d * math.Pi / 180 }

func pow(x float64, n int) float64 { return math.Pow(x, float64(n)) }

func normalize(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}
