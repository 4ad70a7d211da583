package kv

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_FileStore_roundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), nil)
	assert.NoError(t, err)

	_, ok := store.Get("missing")
	assert.False(t, ok)

	store.Set(DarkModeKey, "true")
	v, ok := store.Get(DarkModeKey)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	store.Set(DarkModeKey, "false")
	v, _ = store.Get(DarkModeKey)
	assert.Equal(t, "false", v)

	store.Remove(DarkModeKey)
	_, ok = store.Get(DarkModeKey)
	assert.False(t, ok)

	// removing twice must stay silent
	store.Remove(DarkModeKey)
}

func Test_FileStore_sanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	assert.NoError(t, err)

	store.Set("session/../../../etc/passwd", "x")

	entries, err := ioutil.ReadDir(dir)
	assert.NoError(t, err)
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "session_.._.._.._etc_passwd.json", entries[0].Name())
	}
	v, ok := store.Get("session/../../../etc/passwd")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
}

func Test_FileStore_survivesReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	assert.NoError(t, err)
	store.Set(LocalHostKey, "192.168.1.10")

	reopened, err := NewFileStore(dir, nil)
	assert.NoError(t, err)
	v, ok := reopened.Get(LocalHostKey)
	assert.True(t, ok)
	assert.Equal(t, "192.168.1.10", v)
}

func Test_FileStore_permissions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	store, err := NewFileStore(dir, nil)
	assert.NoError(t, err)
	store.Set("session", "secret")

	di, err := os.Stat(dir)
	assert.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), di.Mode().Perm())

	fi, err := os.Stat(filepath.Join(dir, "session.json"))
	assert.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())
}

func Test_GetJSON_SetJSON(t *testing.T) {
	store := NewMemStore()

	type row struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	var out row
	assert.False(t, GetJSON(store, "row", &out))

	SetJSON(store, "row", row{Name: "a", Count: 2})
	assert.True(t, GetJSON(store, "row", &out))
	assert.Equal(t, row{Name: "a", Count: 2}, out)

	store.Set("row", "{not json")
	assert.False(t, GetJSON(store, "row", &out))
}
