package catalog

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdflow/erdflow-engine/pkg/models"
)

func TestDefault_LoadsEmbeddedSnapshot(t *testing.T) {
	registry, err := Default()
	require.NoError(t, err)
	assert.Greater(t, registry.Len(), 20)

	account, ok := registry.Lookup("account")
	require.True(t, ok)
	assert.Equal(t, "Account", account.DisplayName)
	assert.Contains(t, account.Aliases, "company")

	_, ok = registry.Lookup("contact")
	assert.True(t, ok)
}

func TestDefault_EntitiesAreSorted(t *testing.T) {
	registry, err := Default()
	require.NoError(t, err)

	entities := registry.Entities()
	assert.True(t, sort.SliceIsSorted(entities, func(i, j int) bool {
		return entities[i].LogicalName < entities[j].LogicalName
	}))
}

func TestNew_SortsByLogicalName(t *testing.T) {
	registry := New([]models.RegistryEntity{
		{LogicalName: "contact"},
		{LogicalName: "account"},
	})

	entities := registry.Entities()
	require.Len(t, entities, 2)
	assert.Equal(t, "account", entities[0].LogicalName)
	assert.Equal(t, "contact", entities[1].LogicalName)
}

func TestLookup_Missing(t *testing.T) {
	registry := New([]models.RegistryEntity{{LogicalName: "account"}})

	_, ok := registry.Lookup("nonexistent")
	assert.False(t, ok)
}

func TestLoadFile_ValidSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	content := `entities:
  - logical_name: widget
    display_name: Widget
    aliases: [gadget]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	registry, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, registry.Len())

	widget, ok := registry.Lookup("widget")
	require.True(t, ok)
	assert.Equal(t, "Widget", widget.DisplayName)
	assert.Equal(t, []string{"gadget"}, widget.Aliases)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_EmptyRegistryRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entities: []\n"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_EntityWithoutLogicalNameRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := `entities:
  - display_name: Nameless
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}
