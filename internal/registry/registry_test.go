package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rec struct {
	Name string `json:"name"`
	RSSI int    `json:"rssi"`
}

func openTemp(t *testing.T) *Store[rec] {
	t.Helper()
	s, err := Open[rec](filepath.Join(t.TempDir(), "buttons.json"), nil)
	require.NoError(t, err)
	return s
}

// TestOpenMissingFile verifies a store opens empty when no file exists yet.
func TestOpenMissingFile(t *testing.T) {
	s := openTemp(t)
	assert.Equal(t, 0, s.Len())

	_, err := os.Stat(s.Path())
	assert.ErrorIs(t, err, os.ErrNotExist, "opening MUST NOT create the file")
}

// TestUpsertGetDelete verifies the basic mutation cycle and ErrNotFound.
func TestUpsertGetDelete(t *testing.T) {
	s := openTemp(t)

	require.NoError(t, s.Upsert("a", rec{Name: "first", RSSI: -50}))
	require.NoError(t, s.Upsert("a", rec{Name: "first", RSSI: -42}))
	assert.Equal(t, 1, s.Len(), "upsert of an existing key MUST NOT duplicate")

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, -42, got.RSSI)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete("a"))
	assert.Equal(t, 0, s.Len())
	assert.ErrorIs(t, s.Delete("a"), ErrNotFound)
}

// TestReopenRoundTrip verifies the persisted document survives a reopen with
// records intact and in insertion order.
func TestReopenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buttons.json")

	s, err := Open[rec](path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Upsert("c", rec{Name: "third"}))
	require.NoError(t, s.Upsert("a", rec{Name: "first"}))
	require.NoError(t, s.Upsert("b", rec{Name: "second"}))

	reopened, err := Open[rec](path, nil)
	require.NoError(t, err)
	require.Equal(t, 3, reopened.Len())

	var keys []string
	reopened.Range(func(key string, _ rec) bool {
		keys = append(keys, key)
		return true
	})
	assert.Equal(t, []string{"c", "a", "b"}, keys, "iteration MUST preserve insertion order")

	got, err := reopened.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Name)
}

// TestReset verifies Reset drops the records and the backing file.
func TestReset(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Upsert("a", rec{Name: "first"}))

	require.NoError(t, s.Reset())
	assert.Equal(t, 0, s.Len())
	_, err := os.Stat(s.Path())
	assert.ErrorIs(t, err, os.ErrNotExist)

	// Reset with no file present is fine too.
	require.NoError(t, s.Reset())
}

// TestOpenRejectsUnknownVersion verifies a document from a future version is
// refused instead of silently rewritten.
func TestOpenRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buttons.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99, "records": {}}`), 0o644))

	_, err := Open[rec](path, nil)
	assert.ErrorContains(t, err, "unsupported version")
}

// TestOpenRejectsCorruptFile verifies a truncated document fails loudly.
func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buttons.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 1, "rec`), 0o644))

	_, err := Open[rec](path, nil)
	assert.Error(t, err)
}

// TestRangeStopsEarly verifies Range honors the callback's return value.
func TestRangeStopsEarly(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Upsert("a", rec{}))
	require.NoError(t, s.Upsert("b", rec{}))
	require.NoError(t, s.Upsert("c", rec{}))

	seen := 0
	s.Range(func(string, rec) bool {
		seen++
		return seen < 2
	})
	assert.Equal(t, 2, seen)
}
