package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeObjects_List(t *testing.T) {
	raw := json.RawMessage(`[
		{"id": "a", "type": "electrical_panel", "location": {"x": 10, "y": 20}},
		{"id": "b", "type": "hvac_unit"}
	]`)

	objects, err := NormalizeObjects(raw)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "a", objects[0].ID)
	assert.Equal(t, "electrical_panel", objects[0].Type)
	assert.Equal(t, "b", objects[1].ID)
}

func TestNormalizeObjects_MapKeyedByID(t *testing.T) {
	raw := json.RawMessage(`{
		"b": {"type": "hvac_unit"},
		"a": {"id": "a", "type": "electrical_panel"}
	}`)

	objects, err := NormalizeObjects(raw)
	require.NoError(t, err)
	require.Len(t, objects, 2)

	// Sorted by key, and the key fills a missing id.
	assert.Equal(t, "a", objects[0].ID)
	assert.Equal(t, "b", objects[1].ID)
	assert.Equal(t, "hvac_unit", objects[1].Type)
}

func TestNormalizeObjects_EmptyAndNull(t *testing.T) {
	for _, raw := range []json.RawMessage{nil, json.RawMessage(`null`), json.RawMessage(`[]`)} {
		objects, err := NormalizeObjects(raw)
		require.NoError(t, err)
		assert.Empty(t, objects)
	}
}

func TestNormalizeObjects_Malformed(t *testing.T) {
	for _, raw := range []json.RawMessage{
		json.RawMessage(`"just a string"`),
		json.RawMessage(`42`),
		json.RawMessage(`true`),
	} {
		_, err := NormalizeObjects(raw)
		require.Error(t, err)
		assert.Equal(t, EINVALID, ErrorCode(err))
	}
}

func TestBIMObject_DefensiveDecoding(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want BIMObject
	}{
		{
			name: "wrong-typed scalar fields dropped",
			raw:  `{"id": 42, "type": ["not", "a", "string"], "name": "ok"}`,
			want: BIMObject{Name: "ok"},
		},
		{
			name: "fractional epoch tolerated",
			raw:  `{"id": "a", "last_updated": 1700000000.75}`,
			want: BIMObject{ID: "a", LastUpdated: 1700000000},
		},
		{
			name: "non-object location treated as absent",
			raw:  `{"id": "a", "location": "nowhere"}`,
			want: BIMObject{ID: "a"},
		},
		{
			name: "wrong-typed properties dropped",
			raw:  `{"id": "a", "properties": [1, 2, 3]}`,
			want: BIMObject{ID: "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var obj BIMObject
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &obj))
			assert.Equal(t, tt.want, obj)
		})
	}
}

func TestLocation_DecodePartialAndMalformed(t *testing.T) {
	var obj BIMObject
	require.NoError(t, json.Unmarshal([]byte(`{"id": "a", "location": {"x": 5, "y": "oops"}}`), &obj))

	require.NotNil(t, obj.Location)
	require.NotNil(t, obj.Location.X)
	assert.Equal(t, 5.0, *obj.Location.X)
	assert.Nil(t, obj.Location.Y)
	assert.Nil(t, obj.Location.Z)
	assert.Equal(t, []string{"y"}, obj.Location.Malformed)
}

func TestCanonicalContent_ExcludesID(t *testing.T) {
	a := BIMObject{ID: "a", Type: "t", Name: "n", Properties: map[string]any{"k": "v"}}
	b := a
	b.ID = "b"

	assert.Equal(t, a.CanonicalContent(), b.CanonicalContent())

	b.Name = "other"
	assert.NotEqual(t, a.CanonicalContent(), b.CanonicalContent())
}
