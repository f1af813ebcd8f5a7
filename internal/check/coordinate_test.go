package check

import (
	"strings"
	"testing"

	"github.com/planarx/bimhealth/internal/domain"
)

func floatPtr(v float64) *float64 {
	return &v
}

func bounds(xMin, xMax, yMin, yMax, zMin, zMax float64) domain.CoordinateBounds {
	return domain.CoordinateBounds{
		X: &domain.AxisBounds{Min: xMin, Max: xMax},
		Y: &domain.AxisBounds{Min: yMin, Max: yMax},
		Z: &domain.AxisBounds{Min: zMin, Max: zMax},
	}
}

func TestValidateCoordinates_InRange(t *testing.T) {
	loc := &domain.Location{X: floatPtr(100), Y: floatPtr(200), Z: floatPtr(10)}

	valid, diag, _ := ValidateCoordinates(loc, domain.CoordinateBounds{})
	if !valid {
		t.Fatalf("expected valid, got diagnostic %q", diag)
	}
	if diag != "" {
		t.Errorf("expected empty diagnostic, got %q", diag)
	}
}

func TestValidateCoordinates_MissingLocation(t *testing.T) {
	valid, diag, suggested := ValidateCoordinates(nil, domain.CoordinateBounds{})
	if valid {
		t.Fatal("expected missing location to be invalid")
	}
	if diag != "Missing coordinates" {
		t.Errorf("diagnostic = %q, want %q", diag, "Missing coordinates")
	}
	if suggested != (domain.Point{}) {
		t.Errorf("suggested = %+v, want origin", suggested)
	}
}

func TestValidateCoordinates_ClampsOutOfRange(t *testing.T) {
	loc := &domain.Location{X: floatPtr(-5), Y: floatPtr(20000), Z: floatPtr(0)}
	b := bounds(0, 1000, 0, 1000, 0, 100)

	valid, diag, suggested := ValidateCoordinates(loc, b)
	if valid {
		t.Fatal("expected out-of-range coordinates to be invalid")
	}

	want := domain.Point{X: 0, Y: 1000, Z: 0}
	if suggested != want {
		t.Errorf("suggested = %+v, want %+v", suggested, want)
	}

	if !strings.Contains(diag, "X coordinate") || !strings.Contains(diag, "Y coordinate") {
		t.Errorf("diagnostic should name both failing axes, got %q", diag)
	}
	if strings.Contains(diag, "Z coordinate") {
		t.Errorf("diagnostic should not name the passing axis, got %q", diag)
	}
}

// Validating an already-clamped location against the same bounds must report
// valid with no further change.
func TestValidateCoordinates_ClampIdempotence(t *testing.T) {
	loc := &domain.Location{X: floatPtr(-5), Y: floatPtr(20000), Z: floatPtr(50)}
	b := bounds(0, 1000, 0, 1000, 0, 100)

	_, _, clamped := ValidateCoordinates(loc, b)

	reclamped := &domain.Location{
		X: floatPtr(clamped.X),
		Y: floatPtr(clamped.Y),
		Z: floatPtr(clamped.Z),
	}
	valid, diag, again := ValidateCoordinates(reclamped, b)
	if !valid {
		t.Fatalf("clamped location should validate, got diagnostic %q", diag)
	}
	if again != clamped {
		t.Errorf("second pass changed the point: %+v -> %+v", clamped, again)
	}
}

func TestValidateCoordinates_AbsentAxisReadsZero(t *testing.T) {
	// Only x present; y and z read as 0, which these bounds accept.
	loc := &domain.Location{X: floatPtr(5)}
	valid, _, suggested := ValidateCoordinates(loc, domain.CoordinateBounds{})
	if !valid {
		t.Fatal("expected absent axes to read as 0 and pass default bounds")
	}
	if suggested.Y != 0 || suggested.Z != 0 {
		t.Errorf("absent axes should resolve to 0, got %+v", suggested)
	}
}

func TestValidateCoordinates_AbsentAxisOutsideBounds(t *testing.T) {
	// Absent y reads 0, which falls below these bounds.
	loc := &domain.Location{X: floatPtr(15)}
	b := bounds(10, 20, 10, 20, 0, 100)

	valid, diag, suggested := ValidateCoordinates(loc, b)
	if valid {
		t.Fatal("expected absent axis below bounds to be invalid")
	}
	if !strings.Contains(diag, "Y coordinate 0") {
		t.Errorf("diagnostic = %q, want mention of Y coordinate 0", diag)
	}
	if suggested.Y != 10 {
		t.Errorf("suggested.Y = %g, want clamp to 10", suggested.Y)
	}
}

func TestValidateCoordinates_MalformedAxis(t *testing.T) {
	loc := &domain.Location{X: floatPtr(5), Malformed: []string{"y"}}

	valid, diag, suggested := ValidateCoordinates(loc, domain.CoordinateBounds{})
	if valid {
		t.Fatal("expected non-numeric axis to be invalid")
	}
	if !strings.Contains(diag, "Y coordinate non-numeric") {
		t.Errorf("diagnostic = %q, want mention of non-numeric Y", diag)
	}
	if suggested.Y != 0 {
		t.Errorf("suggested.Y = %g, want clamp from 0", suggested.Y)
	}
}
