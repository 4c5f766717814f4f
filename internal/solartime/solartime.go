// Package solartime converts zone clock time to local apparent solar time.
// The equation of time uses a three-term Fourier fit, good to about half a
// minute, which is well inside a two-hour pillar.
package solartime

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrLongitude is returned for a longitude outside [-180, 180]
var ErrLongitude = errors.New("longitude out of range")

// Correction is the breakdown of a solar-time adjustment
type Correction struct {
	Longitude       float64       `json:"longitude"`
	Meridian        float64       `json:"meridian"` // standard meridian of the zone in effect
	LongitudeOffset time.Duration `json:"longitude_offset"`
	EquationOfTime  time.Duration `json:"equation_of_time"`
	Total           time.Duration `json:"total"`
}

// Compute returns the correction for a clock reading at longitude (east positive)
func Compute(t time.Time, longitude float64) (Correction, error) {
	if math.IsNaN(longitude) || longitude < -180 || longitude > 180 {
		return Correction{}, fmt.Errorf("%w: %v", ErrLongitude, longitude)
	}
	_, offset := t.Zone()
	meridian := float64(offset) / 3600 * 15
	lon := minutes((longitude - meridian) * 4)
	eot := EquationOfTime(t)
	return Correction{
		Longitude:       longitude,
		Meridian:        meridian,
		LongitudeOffset: lon,
		EquationOfTime:  eot,
		Total:           lon + eot,
	}, nil
}

// Apply shifts t to apparent solar time, keeping its location so that the
// wall clock reads solar time
func Apply(t time.Time, longitude float64) (time.Time, Correction, error) {
	c, err := Compute(t, longitude)
	if err != nil {
		return t, c, err
	}
	return t.Add(c.Total), c, nil
}

// EquationOfTime is apparent minus mean solar time for the day of t
func EquationOfTime(t time.Time) time.Duration {
	b := 2 * math.Pi * float64(t.YearDay()-81) / 365
	return minutes(9.87*math.Sin(2*b) - 7.53*math.Cos(b) - 1.5*math.Sin(b))
}

func minutes(m float64) time.Duration {
	return time.Duration(math.Round(m * float64(time.Minute)))
}
