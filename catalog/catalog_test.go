package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bienestar/models"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.NotNil(t, c)

	assert.Equal(t, 27, c.Len())
	summary := c.Summary()
	for _, d := range models.Dimensions {
		assert.Equal(t, 9, summary[d], "dimension %s", d)
	}

	areas := c.Areas()
	assert.Len(t, areas, 9)
	assert.Equal(t, "area_0", areas[0].ID)
	assert.Equal(t, "Sueño reparador", areas[0].Name)
	assert.Equal(t, "area_3", areas[1].ID)
	for _, a := range areas {
		assert.Zero(t, a.Score)
	}
}

func TestMatchIsCaseAndWhitespaceInsensitive(t *testing.T) {
	c, err := New([]models.MasterHabitEntry{
		{Name: "sueño reparador", Dimension: models.Mind, Score: 2, Description: "dormir"},
	})
	require.NoError(t, err)

	e, ok := c.Match("Sueño  reparador", 2)
	require.True(t, ok)
	assert.Equal(t, "dormir", e.Description)

	_, ok = c.Match("  SUEÑO reparador ", 2)
	assert.True(t, ok)

	_, ok = c.Match("Sueño reparador", 3)
	assert.False(t, ok, "score must match exactly")

	_, ok = c.Match("Sueño", 2)
	assert.False(t, ok)
}

func TestTierOf(t *testing.T) {
	c := Default()

	e, ok := c.Match("Gratitud", 2)
	require.True(t, ok)

	tier, ok := c.TierOf(" gratitud ", "  "+e.Description+" ")
	require.True(t, ok)
	assert.Equal(t, 2, tier)

	_, ok = c.TierOf("Gratitud", "algo distinto")
	assert.False(t, ok)
}

func TestNewValidation(t *testing.T) {
	valid := models.MasterHabitEntry{Name: "Gratitud", Dimension: models.Spirit, Score: 1, Description: "x"}

	cases := map[string]models.MasterHabitEntry{
		"missing name":        {Dimension: models.Spirit, Score: 1, Description: "x"},
		"unknown dimension":   {Name: "a", Dimension: "Alma", Score: 1, Description: "x"},
		"score too low":       {Name: "a", Dimension: models.Spirit, Score: 0, Description: "x"},
		"score too high":      {Name: "a", Dimension: models.Spirit, Score: 4, Description: "x"},
		"missing description": {Name: "a", Dimension: models.Spirit, Score: 1},
	}
	for name, entry := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New([]models.MasterHabitEntry{valid, entry})
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, err := New(nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = New([]models.MasterHabitEntry{valid, {Name: " gratitud", Dimension: models.Spirit, Score: 1, Description: "y"}})
	assert.ErrorIs(t, err, ErrInvalid, "duplicate normalized tier")
}

func TestParseJSONAndYAML(t *testing.T) {
	jsonDoc := `[{"name":"Hidratación","dimension":"Cuerpo","score":1,"description":"agua"}]`
	c, err := Parse([]byte(jsonDoc))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	yamlDoc := "- name: Hidratación\n  dimension: Cuerpo\n  score: 2\n  description: más agua\n"
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	c, err = LoadFile(path)
	require.NoError(t, err)
	e, ok := c.Match("hidratación", 2)
	require.True(t, ok)
	assert.Equal(t, "más agua", e.Description)

	_, err = Parse([]byte("{not: [valid"))
	assert.Error(t, err)
}

func TestEntriesIsACopy(t *testing.T) {
	c := Default()
	entries := c.Entries()
	entries[0].Description = "changed"

	_, ok := c.Match(entries[0].Name, entries[0].Score)
	require.True(t, ok)
	assert.NotEqual(t, "changed", c.Entries()[0].Description)
}
