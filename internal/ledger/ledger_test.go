package ledger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id-mappings.json")
	l := New(path)
	l.Writer(Studios).Record("s1", "8d7f0a52-2c55-4f0e-9d0b-1d1a2f6c0b11")
	l.Writer(Instructors).Record("i1", "41")
	l.Writer(StudioInstructors).Record(JoinKey("s1", "i1"), "7")
	require.NoError(t, l.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]map[string]string
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, p := range Required {
		assert.Contains(t, raw, string(p))
	}
	assert.Contains(t, string(data), "\n  \"studios\": {")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, loaded.ValidateComplete())

	id, ok := loaded.Reader(Instructors).Lookup("i1")
	assert.True(t, ok)
	assert.Equal(t, "41", id)
	assert.Equal(t, []string{"s1:i1"}, loaded.Reader(StudioInstructors).LegacyIDs())
}

func TestLoad_NumericIDsAndLegacyShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id-mappings.json")
	legacy := `{"studios":{"s1":"uuid-1"},"instructors":{"i1":12},"students":{"st1":13},
	"lessons":{},"notebooks":{},"entries":{}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	l, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, l.ValidateComplete())

	id, ok := l.Reader(Students).Lookup("st1")
	require.True(t, ok)
	assert.Equal(t, "13", id)
	assert.Equal(t, 0, l.Reader(StudentLessons).Len())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "mappings file not found")

	partial := filepath.Join(dir, "partial.json")
	require.NoError(t, os.WriteFile(partial, []byte(`{"studios":{},"students":{}}`), 0o644))
	l, err := Load(partial)
	require.NoError(t, err)
	err = l.ValidateComplete()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instructors, lessons, notebooks, entries")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"studios":{"s1":true}}`), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestLoadOrNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id-mappings.json")

	l, existed, err := LoadOrNew(path)
	require.NoError(t, err)
	assert.False(t, existed)
	require.NoError(t, l.ValidateComplete())

	l.Writer(Lessons).Record("l1", "3")
	require.NoError(t, l.Save())

	again, existed, err := LoadOrNew(path)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, 1, again.Counts()[Lessons])
}

func TestArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id-mappings.json")
	l := New(path)
	require.NoError(t, l.Save())

	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	dest, err := l.Archive(now)
	require.NoError(t, err)
	assert.Equal(t, path+".20240309-140507.bak", dest)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDestIDs_Distinct(t *testing.T) {
	l := New("")
	w := l.Writer(Studios)
	w.Record("a", "2")
	w.Record("b", "1")
	w.Record("c", "2")

	assert.Equal(t, []string{"1", "2"}, l.Reader(Studios).DestIDs())
	assert.NoError(t, l.Save())
}

func TestSplitJoinKey(t *testing.T) {
	a, b, ok := SplitJoinKey(JoinKey("s1", "st9"))
	assert.True(t, ok)
	assert.Equal(t, "s1", a)
	assert.Equal(t, "st9", b)
}
