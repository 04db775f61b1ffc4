package oem

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile("testdata/ISS.OEM_J2K_EPH.xml")
	require.NoError(t, err)
	return raw
}

func TestParseFixture(t *testing.T) {
	ds, err := ParseBytes(loadFixture(t))
	require.NoError(t, err)

	require.Len(t, ds.StateVectors, 3)
	first := ds.StateVectors[0]
	assert.Equal(t, "2024-100T12:00:00.000Z", first.Epoch)
	assert.Equal(t, Vector3{X: -4218.0, Y: 2364.0, Z: 4625.0}, first.Position)
	assert.Equal(t, Vector3{X: 3.0, Y: -4.0, Z: 0.0}, first.Velocity)

	// Feed order is preserved.
	assert.Equal(t, "2024-100T12:04:00.000Z", ds.StateVectors[1].Epoch)
	assert.Equal(t, "2024-100T12:08:00.000Z", ds.StateVectors[2].Epoch)

	assert.Equal(t, []string{"Units are in kg and m^2", "MASS=459325.00", "DRAG_AREA=1487.80"}, ds.Comments)

	originator, ok := ds.Header.Get("ORIGINATOR")
	assert.True(t, ok)
	assert.Equal(t, "JSC", originator)

	name, ok := ds.Metadata.Get("OBJECT_NAME")
	assert.True(t, ok)
	assert.Equal(t, "ISS", name)
	assert.Len(t, ds.Metadata, 7)
}

func TestParseErrors(t *testing.T) {
	vector := func(body string) string {
		return `<ndm><oem><header/><body><segment><metadata/><data><stateVector>` +
			body + `</stateVector></data></segment></body></oem></ndm>`
	}
	full := `<EPOCH>2024-100T12:00:00.000Z</EPOCH><X>1</X><Y>2</Y><Z>3</Z><X_DOT>4</X_DOT><Y_DOT>5</Y_DOT><Z_DOT>6</Z_DOT>`

	tests := []struct {
		name      string
		doc       string
		wantField string
		wantIndex int
	}{
		{"not xml", "this is not xml", "ndm", -1},
		{"wrong root", "<feed></feed>", "ndm", -1},
		{"no oem", "<ndm></ndm>", "oem", -1},
		{"no segment", "<ndm><oem><header/><body></body></oem></ndm>", "segment", -1},
		{"missing epoch", vector(strings.Replace(full, "<EPOCH>2024-100T12:00:00.000Z</EPOCH>", "", 1)), "EPOCH", 0},
		{"malformed epoch", vector(strings.Replace(full, "2024-100T12:00:00.000Z", "yesterday", 1)), "EPOCH", 0},
		{"day of year out of range", vector(strings.Replace(full, "2024-100", "2023-366", 1)), "EPOCH", 0},
		{"missing Z_DOT", vector(strings.Replace(full, "<Z_DOT>6</Z_DOT>", "", 1)), "Z_DOT", 0},
		{"malformed Y", vector(strings.Replace(full, "<Y>2</Y>", "<Y>two</Y>", 1)), "Y", 0},
		{"non-finite X", vector(strings.Replace(full, "<X>1</X>", "<X>NaN</X>", 1)), "X", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.doc))
			require.Error(t, err)

			var pe *ParseError
			require.True(t, errors.As(err, &pe), "want *ParseError, got %T", err)
			assert.Equal(t, tt.wantField, pe.Field)
			assert.Equal(t, tt.wantIndex, pe.Index)
		})
	}
}

func TestParseEmptyData(t *testing.T) {
	doc := `<ndm><oem><header><ORIGINATOR>JSC</ORIGINATOR></header><body><segment><metadata/><data/></segment></body></oem></ndm>`
	ds, err := ParseBytes([]byte(doc))
	require.NoError(t, err)
	assert.NotNil(t, ds.StateVectors)
	assert.Empty(t, ds.StateVectors)
	assert.NotNil(t, ds.Comments)
}

func TestParseMultipleSegments(t *testing.T) {
	doc := `<ndm><oem><header/><body>
<segment><metadata><OBJECT_NAME>ISS</OBJECT_NAME></metadata><data>
<stateVector><EPOCH>2024-100T12:00:00.000Z</EPOCH><X>1</X><Y>0</Y><Z>0</Z><X_DOT>0</X_DOT><Y_DOT>0</Y_DOT><Z_DOT>0</Z_DOT></stateVector>
</data></segment>
<segment><metadata><OBJECT_NAME>OTHER</OBJECT_NAME></metadata><data>
<stateVector><EPOCH>2024-100T12:04:00.000Z</EPOCH><X>2</X><Y>0</Y><Z>0</Z><X_DOT>0</X_DOT><Y_DOT>0</Y_DOT><Z_DOT>0</Z_DOT></stateVector>
</data></segment>
</body></oem></ndm>`

	ds, err := ParseBytes([]byte(doc))
	require.NoError(t, err)
	require.Len(t, ds.StateVectors, 2)
	assert.Equal(t, 1.0, ds.StateVectors[0].Position.X)
	assert.Equal(t, 2.0, ds.StateVectors[1].Position.X)

	name, _ := ds.Metadata.Get("OBJECT_NAME")
	assert.Equal(t, "ISS", name)
}

func TestBlockMarshalJSON(t *testing.T) {
	b := Block{
		{Name: "CREATION_DATE", Value: "2024-099T19:34:55.432Z"},
		{Name: "COMMENT", Value: "one"},
		{Name: "COMMENT", Value: "two"},
		{Name: "MASS", Value: "459325.00", Attrs: map[string]string{"units": "kg"}},
		{Name: "NESTED", Children: Block{{Name: "INNER", Value: "x"}}},
	}

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"CREATION_DATE": "2024-099T19:34:55.432Z",
		"COMMENT": ["one", "two"],
		"MASS": {"@units": "kg", "#text": "459325.00"},
		"NESTED": {"INNER": "x"}
	}`, string(data))

	// Document order survives encoding.
	assert.Less(t, strings.Index(string(data), "CREATION_DATE"), strings.Index(string(data), "NESTED"))
}

func TestBlockMarshalJSONKeepsAttrsWithChildren(t *testing.T) {
	b := Block{
		{
			Name:     "USER_DEFINED",
			Attrs:    map[string]string{"parameter": "DRAG", "units": "m2"},
			Children: Block{{Name: "AREA", Value: "1800.0"}, {Name: "CD", Value: "2.2"}},
		},
	}

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"USER_DEFINED": {"@parameter": "DRAG", "@units": "m2", "AREA": "1800.0", "CD": "2.2"}
	}`, string(data))
	assert.Less(t, strings.Index(string(data), "@units"), strings.Index(string(data), "AREA"))
}

func TestBlockMarshalJSONEmpty(t *testing.T) {
	data, err := json.Marshal(Block(nil))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}
