package pairs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "pairs.json"))

	list, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_AddGetRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "pairs.json")
	store := NewStore(path)

	first, err := store.Add(SyncPairConfig{SourceRef: "/data/photos", SourceLabel: "Photos", DestRef: "s3://backup/photos"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	second, err := store.Add(SyncPairConfig{SourceRef: "mem://a", DestRef: "mem://b"})
	require.NoError(t, err)

	list, err := store.Load()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0], "document order is insertion order")
	assert.Equal(t, second, list[1])

	got, err := store.Get(first.ShortID())
	require.NoError(t, err)
	assert.Equal(t, first, got)

	removed, err := store.Remove(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first, removed)

	_, err = store.Get(first.ID)
	assert.ErrorIs(t, err, ErrPairNotFound)

	// a fresh store sees the persisted document
	list, err = NewStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, []SyncPairConfig{second}, list)
}

func TestStore_Update(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "pairs.json"))

	pair, err := store.Add(SyncPairConfig{ID: "p1", SourceRef: "/a", DestRef: "/b"})
	require.NoError(t, err)

	pair.DestLabel = "Backup"
	require.NoError(t, store.Update(pair))

	got, err := store.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, "Backup", got.DestLabel)

	err = store.Update(SyncPairConfig{ID: "missing"})
	assert.ErrorIs(t, err, ErrPairNotFound)
}

func TestStore_AddDuplicateID(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "pairs.json"))

	_, err := store.Add(SyncPairConfig{ID: "p1", SourceRef: "/a", DestRef: "/b"})
	require.NoError(t, err)
	_, err = store.Add(SyncPairConfig{ID: "p1", SourceRef: "/c", DestRef: "/d"})
	assert.Error(t, err)
}

func TestStore_PrefixLookup(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "pairs.json"))
	require.NoError(t, store.Save([]SyncPairConfig{
		{ID: "abc1", SourceRef: "/a", DestRef: "/b"},
		{ID: "abd2", SourceRef: "/c", DestRef: "/d"},
		{ID: "ab", SourceRef: "/e", DestRef: "/f"},
	}))

	got, err := store.Get("abd")
	require.NoError(t, err)
	assert.Equal(t, "abd2", got.ID)

	got, err = store.Get("ab")
	require.NoError(t, err)
	assert.Equal(t, "ab", got.ID, "exact match wins over prefixes")

	_, err = store.Get("a")
	assert.ErrorIs(t, err, ErrAmbiguousPairID)

	_, err = store.Get("")
	assert.ErrorIs(t, err, ErrPairNotFound)
}

func TestStore_YAMLDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.yaml")
	store := NewStore(path)

	_, err := store.Add(SyncPairConfig{ID: "p1", SourceRef: "/a", SourceLabel: "A", DestRef: "/b"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "- id: p1")
	assert.Contains(t, string(data), "source_label: A")
	assert.NotContains(t, string(data), "dest_label")

	list, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []SyncPairConfig{{ID: "p1", SourceRef: "/a", SourceLabel: "A", DestRef: "/b"}}, list)
}

func TestStore_JSONDocumentIsList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
  {"id": "p1", "source_ref": "/a", "dest_ref": "/b", "dest_label": "B"}
]`), 0o600))

	list, err := NewStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, []SyncPairConfig{{ID: "p1", SourceRef: "/a", DestRef: "/b", DestLabel: "B"}}, list)
}

func TestStore_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "a list"}`), 0o600))

	_, err := NewStore(path).Load()
	assert.Error(t, err)
}

func TestSyncPairConfig(t *testing.T) {
	p := SyncPairConfig{ID: "0123456789", SourceRef: "/a", SourceLabel: "Photos", DestRef: "s3://bucket"}
	assert.NoError(t, p.Validate())
	assert.Equal(t, "01234567", p.ShortID())
	assert.Equal(t, "Photos -> s3://bucket", p.String())

	assert.ErrorIs(t, SyncPairConfig{SourceRef: "/a"}.Validate(), ErrPairIncomplete)
}
