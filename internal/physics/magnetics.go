package physics

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// MagneticVariation returns the magnetic declination in degrees (east
// positive) at the given position and time, per the World Magnetic Model.
// Returns 0 if the model evaluation fails.
func MagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	altM := altFt * 0.3048

	loc := egm96.NewLocationGeodetic(lat, lon, altM)
	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0.0
	}
	return mag.D()
}

// TrueToMagnetic converts a true track to a magnetic track given the local
// declination, normalized to [0, 360).
func TrueToMagnetic(trueDeg, declinationDeg float64) float64 {
	mag := math.Mod(trueDeg-declinationDeg, 360)
	if mag < 0 {
		mag += 360
	}
	return mag
}
