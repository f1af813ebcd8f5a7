// Package check implements the issue detectors run during a BIM health
// check. Every function here is pure: it takes an object (and profile,
// where relevant) and returns zero or one issue, with no side effects.
// Detectors tolerate missing or wrong-typed fields on the input object,
// since the object schema is not enforced upstream.
package check

import (
	"fmt"
	"strings"

	"github.com/planarx/bimhealth/internal/domain"
)

// ValidateCoordinates checks a location against per-axis bounds. It returns
// validity, a diagnostic concatenating every failing axis, and a suggestion
// with each failing value clamped into range.
//
// A missing location is invalid with suggestion {0,0,0}. An absent axis is
// read as 0 and checked like any other value; an axis that was present but
// non-numeric is invalid and clamps from 0.
func ValidateCoordinates(loc *domain.Location, bounds domain.CoordinateBounds) (bool, string, domain.Point) {
	if loc == nil {
		return false, "Missing coordinates", domain.Point{}
	}

	var diags []string
	suggested := domain.Point{
		X: axisValue(loc.X),
		Y: axisValue(loc.Y),
		Z: axisValue(loc.Z),
	}

	if v, diag, ok := checkAxis("X", loc.X, loc.Malformed, bounds.Axis("x")); !ok {
		diags = append(diags, diag)
		suggested.X = v
	}
	if v, diag, ok := checkAxis("Y", loc.Y, loc.Malformed, bounds.Axis("y")); !ok {
		diags = append(diags, diag)
		suggested.Y = v
	}
	if v, diag, ok := checkAxis("Z", loc.Z, loc.Malformed, bounds.Axis("z")); !ok {
		diags = append(diags, diag)
		suggested.Z = v
	}

	if len(diags) > 0 {
		return false, strings.Join(diags, "; "), suggested
	}
	return true, "", suggested
}

// checkAxis validates one axis and returns the clamped value on failure.
func checkAxis(name string, v *float64, malformed []string, b domain.AxisBounds) (float64, string, bool) {
	for _, m := range malformed {
		if strings.EqualFold(m, name) {
			diag := fmt.Sprintf("%s coordinate non-numeric, bounds [%g, %g]", name, b.Min, b.Max)
			return b.Clamp(0), diag, false
		}
	}

	value := axisValue(v)
	if !b.Contains(value) {
		diag := fmt.Sprintf("%s coordinate %g out of bounds [%g, %g]", name, value, b.Min, b.Max)
		return b.Clamp(value), diag, false
	}
	return value, "", true
}

func axisValue(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
