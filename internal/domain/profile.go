// Package domain contains core business types and interfaces.
//
// This file defines the behavior profile: a named rule-set describing the
// expected fields, coordinate bounds and symbol requirements for a class of
// BIM object.
package domain

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Default per-axis coordinate bounds, applied when a profile leaves an axis
// unspecified.
var (
	DefaultBoundsX = AxisBounds{Min: 0, Max: 10000}
	DefaultBoundsY = AxisBounds{Min: 0, Max: 10000}
	DefaultBoundsZ = AxisBounds{Min: 0, Max: 100}
)

// =============================================================================
// Axis Bounds
// =============================================================================

// AxisBounds is an inclusive [min, max] range for one coordinate axis.
// It serializes as a two-element array to stay wire-compatible with stored
// profile blobs.
type AxisBounds struct {
	Min float64
	Max float64
}

// Clamp forces v into the bounds via max(min, min(v, max)).
func (b AxisBounds) Clamp(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Contains reports whether v lies inside the bounds.
func (b AxisBounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

func (b AxisBounds) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{b.Min, b.Max})
}

func (b *AxisBounds) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("axis bounds: want [min, max], got %d elements", len(pair))
	}
	b.Min, b.Max = pair[0], pair[1]
	return nil
}

func (b AxisBounds) MarshalYAML() (interface{}, error) {
	return []float64{b.Min, b.Max}, nil
}

func (b *AxisBounds) UnmarshalYAML(value *yaml.Node) error {
	var pair []float64
	if err := value.Decode(&pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("axis bounds: want [min, max], got %d elements", len(pair))
	}
	b.Min, b.Max = pair[0], pair[1]
	return nil
}

// CoordinateBounds holds the per-axis ranges a profile enforces. A nil axis
// falls back to the engine default for that axis.
type CoordinateBounds struct {
	X *AxisBounds `json:"x,omitempty" yaml:"x,omitempty"`
	Y *AxisBounds `json:"y,omitempty" yaml:"y,omitempty"`
	Z *AxisBounds `json:"z,omitempty" yaml:"z,omitempty"`
}

// Axis returns the bounds for the named axis, falling back to defaults.
func (c CoordinateBounds) Axis(name string) AxisBounds {
	switch name {
	case "x":
		if c.X != nil {
			return *c.X
		}
		return DefaultBoundsX
	case "y":
		if c.Y != nil {
			return *c.Y
		}
		return DefaultBoundsY
	default:
		if c.Z != nil {
			return *c.Z
		}
		return DefaultBoundsZ
	}
}

// =============================================================================
// Behavior Profile
// =============================================================================

// ProfileProperties describes the structural expectations a profile places
// on matching objects.
type ProfileProperties struct {
	RequiredFields     []string         `json:"required_fields" yaml:"required_fields"`
	OptionalFields     []string         `json:"optional_fields" yaml:"optional_fields"`
	CoordinateBounds   CoordinateBounds `json:"coordinate_bounds" yaml:"coordinate_bounds"`
	SymbolRequirements []string         `json:"symbol_requirements" yaml:"symbol_requirements"`
}

// ValidationRules controls which checks apply to matching objects.
type ValidationRules struct {
	CoordinateValidation bool    `json:"coordinate_validation" yaml:"coordinate_validation"`
	SymbolLinking        bool    `json:"symbol_linking" yaml:"symbol_linking"`
	MetadataCompleteness float64 `json:"metadata_completeness" yaml:"metadata_completeness"`
	DuplicateDetection   bool    `json:"duplicate_detection" yaml:"duplicate_detection"`
}

// BehaviorProfile is a named rule-set for a class of BIM object, keyed by
// its unique ProfileID. Profiles are created at startup from the built-in
// defaults or loaded from the store; the engine never deletes them.
type BehaviorProfile struct {
	ProfileID      string            `json:"profile_id" yaml:"profile_id"`
	ObjectType     string            `json:"object_type" yaml:"object_type"`
	Category       string            `json:"category" yaml:"category"`
	Properties     ProfileProperties `json:"properties" yaml:"properties"`
	Rules          ValidationRules   `json:"validation_rules" yaml:"validation_rules"`
	FixSuggestions map[string]string `json:"fix_suggestions" yaml:"fix_suggestions"`
}

// Validate checks that the profile carries the minimum identifying fields.
func (p BehaviorProfile) Validate() error {
	const op = "profile.validate"
	if p.ProfileID == "" {
		return Invalid(op, "profile_id is required")
	}
	if p.ObjectType == "" {
		return Invalid(op, "object_type is required")
	}
	return nil
}

// ProfileKey builds the lookup key for an object's type and category:
// "{type}_{category}", or the bare type when the category is absent.
func ProfileKey(objectType, category string) string {
	if category == "" {
		return objectType
	}
	return objectType + "_" + category
}
