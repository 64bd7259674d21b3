package localstore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVSetGetRemove(t *testing.T) {
	kv, err := NewKV(t.TempDir(), 0)
	require.NoError(t, err)

	_, ok, err := kv.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set("alpha", []byte(`{"a":1}`)))
	require.NoError(t, kv.Set("beta", []byte(`[]`)))
	require.NoError(t, kv.Set("alpha", []byte(`{"a":2}`)))

	data, ok, err := kv.Get("alpha")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"a":2}`, string(data))

	keys, err := kv.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, keys)

	require.NoError(t, kv.Remove("alpha"))
	require.NoError(t, kv.Remove("alpha"))
	_, ok, err = kv.Get("alpha")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewKV(dir, 0)
	require.NoError(t, err)
	require.NoError(t, kv.Set("alpha", []byte(`{}`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alpha.json", entries[0].Name())
}

func TestKVRejectsPathLikeKeys(t *testing.T) {
	kv, err := NewKV(t.TempDir(), 0)
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", `a\b`, ".hidden"} {
		assert.Error(t, kv.Set(key, []byte(`{}`)), key)
	}
}

func TestKVQuota(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewKV(dir, 100)
	require.NoError(t, err)

	require.NoError(t, kv.Set("first", []byte(strings.Repeat("a", 60))))
	// replacing a key only counts the new value
	require.NoError(t, kv.Set("first", []byte(strings.Repeat("b", 90))))

	err = kv.Set("second", []byte(strings.Repeat("c", 20)))
	assert.True(t, errors.Is(err, ErrQuotaExceeded))

	_, ok, err := kv.Get("second")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = os.Stat(filepath.Join(dir, "first.json"))
	assert.NoError(t, err)
}
