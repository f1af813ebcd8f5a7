// Package domain contains core business types and interfaces.
//
// This file defines the BIM object record consumed by the validation engine.
// The record arrives from upstream collaborators with no schema enforcement,
// so decoding is defensive: a missing or wrong-typed field becomes the zero
// value (or a recorded malformed axis) instead of a decode error.
package domain

import (
	"encoding/json"
	"sort"
)

// =============================================================================
// Location
// =============================================================================

// Location holds an object's 3-axis placement. A nil axis pointer means the
// axis was absent from the payload; axes that were present but non-numeric
// are listed in Malformed.
type Location struct {
	X *float64
	Y *float64
	Z *float64

	// Malformed names axes whose value could not be read as a number.
	Malformed []string
}

// UnmarshalJSON decodes a location object, tolerating wrong-typed axis values.
func (l *Location) UnmarshalJSON(data []byte) error {
	*l = Location{}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		// Not an object at all; treat as absent coordinates.
		return nil
	}

	l.X = decodeAxis(raw, "x", &l.Malformed)
	l.Y = decodeAxis(raw, "y", &l.Malformed)
	l.Z = decodeAxis(raw, "z", &l.Malformed)
	return nil
}

func decodeAxis(raw map[string]json.RawMessage, name string, malformed *[]string) *float64 {
	v, ok := raw[name]
	if !ok {
		return nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		*malformed = append(*malformed, name)
		return nil
	}
	return &f
}

// MarshalJSON encodes only the axes that are present.
func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.asMap())
}

func (l Location) asMap() map[string]any {
	m := make(map[string]any, 3)
	if l.X != nil {
		m["x"] = *l.X
	}
	if l.Y != nil {
		m["y"] = *l.Y
	}
	if l.Z != nil {
		m["z"] = *l.Z
	}
	return m
}

// Point is a fully-resolved coordinate, used for clamped suggestions.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// =============================================================================
// BIM Object
// =============================================================================

// BIMObject is one building-information record from a floorplan payload.
//
// The engine treats it as read-only input. SymbolID empty means the object
// has no linked visual symbol; LastUpdated zero means the update time is
// unknown (and therefore stale).
type BIMObject struct {
	ID          string
	Type        string
	Category    string
	Name        string
	Location    *Location
	SymbolID    string
	LastUpdated int64 // epoch seconds
	Properties  map[string]any
}

// UnmarshalJSON decodes an object record, dropping wrong-typed fields
// instead of failing.
func (o *BIMObject) UnmarshalJSON(data []byte) error {
	*o = BIMObject{}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	o.ID = decodeString(raw, "id")
	o.Type = decodeString(raw, "type")
	o.Category = decodeString(raw, "category")
	o.Name = decodeString(raw, "name")
	o.SymbolID = decodeString(raw, "symbol_id")

	if v, ok := raw["location"]; ok {
		var loc Location
		_ = loc.UnmarshalJSON(v)
		o.Location = &loc
		// A location that decoded to nothing at all counts as absent.
		if loc.X == nil && loc.Y == nil && loc.Z == nil && len(loc.Malformed) == 0 {
			o.Location = nil
		}
	}

	if v, ok := raw["last_updated"]; ok {
		var ts int64
		if err := json.Unmarshal(v, &ts); err == nil {
			o.LastUpdated = ts
		} else {
			// Tolerate fractional epoch values.
			var f float64
			if err := json.Unmarshal(v, &f); err == nil {
				o.LastUpdated = int64(f)
			}
		}
	}

	if v, ok := raw["properties"]; ok {
		var props map[string]any
		if err := json.Unmarshal(v, &props); err == nil {
			o.Properties = props
		}
	}

	return nil
}

func decodeString(raw map[string]json.RawMessage, name string) string {
	v, ok := raw[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}

// CanonicalContent returns the normalized subset of the object used for
// duplicate detection: type, name, location and properties, excluding the
// identifier. Two objects with equal canonical content are duplicates
// regardless of id.
func (o BIMObject) CanonicalContent() map[string]any {
	content := map[string]any{
		"type":       o.Type,
		"name":       o.Name,
		"properties": o.Properties,
	}
	if o.Location != nil {
		content["location"] = o.Location.asMap()
	} else {
		content["location"] = nil
	}
	return content
}

// =============================================================================
// Payload Normalization
// =============================================================================

// NormalizeObjects decodes a floorplan's objects collection, which may arrive
// as either a plain list or a map keyed by object id. Map entries are
// returned in key order so runs over the same payload are deterministic.
// Anything else is rejected as malformed input.
func NormalizeObjects(raw json.RawMessage) ([]BIMObject, error) {
	const op = "domain.normalize_objects"

	if len(raw) == 0 {
		return nil, nil
	}

	var null any
	if err := json.Unmarshal(raw, &null); err != nil {
		return nil, Invalid(op, "objects payload is not valid JSON")
	}
	if null == nil {
		return nil, nil
	}

	var list []BIMObject
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var byID map[string]BIMObject
	if err := json.Unmarshal(raw, &byID); err == nil {
		keys := make([]string, 0, len(byID))
		for k := range byID {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		objects := make([]BIMObject, 0, len(byID))
		for _, k := range keys {
			obj := byID[k]
			if obj.ID == "" {
				obj.ID = k
			}
			objects = append(objects, obj)
		}
		return objects, nil
	}

	return nil, Invalid(op, "objects must be a list or a map keyed by object id")
}
