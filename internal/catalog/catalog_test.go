package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	assert.Equal(t, 6, c.Len())
	assert.Equal(t, "Протечка воды", c.Lookup("water_leak"))
	assert.Equal(t, "Повреждение имущества", c.Lookup("property_damage"))
	assert.Equal(t, "water_leak", c.Entries()[0].ID)
}

func TestLookupUnknownPassesThrough(t *testing.T) {
	c := Default()

	assert.Equal(t, "broken window on stairs", c.Lookup("broken window on stairs"))
	assert.False(t, c.Has("broken window on stairs"))
	assert.Equal(t, "", c.Lookup(""))
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	_, err := New([]Entry{{ID: "a", Label: "A"}, {ID: "a", Label: "B"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestNewRejectsEmptyFields(t *testing.T) {
	_, err := New([]Entry{{ID: "", Label: "A"}})
	assert.Error(t, err)

	_, err = New([]Entry{{ID: "a", Label: ""}})
	assert.Error(t, err)
}

func TestEntriesReturnsCopy(t *testing.T) {
	c := Default()
	entries := c.Entries()
	entries[0].Label = "mutated"

	assert.Equal(t, "Протечка воды", c.Lookup("water_leak"))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	content := "categories:\n  - id: roof\n    label: Roof leak\n  - id: heating\n    label: No heating\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "No heating", c.Lookup("heating"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("categories: [unterminated"))
	assert.Error(t, err)
}
