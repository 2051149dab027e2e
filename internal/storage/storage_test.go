package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWriteJSONFormat(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	require.NoError(t, WriteJSON(path, map[string]any{"version": 1}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "{\n  \"version\": 1\n}\n", string(data))
}

func TestWriteJSONLeavesNoTempFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, WriteJSON(filepath.Join(dir, "out.json"), []int{1, 2}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasPrefix(e.Name(), "."), "leftover temp file %s", e.Name())
	}
}

func TestReadJSONRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteJSON(path, map[string]string{"a": "b"}))

	var got map[string]string
	require.NoError(t, ReadJSON(path, &got))
	require.Equal(t, "b", got["a"])
}

func TestStagingPublishReplacesAndCleansBackups(t *testing.T) {
	t.Parallel()
	root := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, WriteJSON(filepath.Join(root, "clubs.json"), map[string]int{"old": 1}))

	st, err := NewStaging(root, zap.NewNop())
	require.NoError(t, err)
	defer st.Cleanup()

	require.NoError(t, st.WriteJSON("clubs.json", map[string]int{"new": 2}))
	require.NoError(t, st.WriteJSON("extra.json", map[string]int{"n": 3}))
	require.NoError(t, st.Publish([]string{"clubs.json", "extra.json"}))

	var got map[string]int
	require.NoError(t, ReadJSON(filepath.Join(root, "clubs.json"), &got))
	require.Equal(t, 2, got["new"])
	require.NoError(t, ReadJSON(filepath.Join(root, "extra.json"), &got))
	require.Equal(t, 3, got["n"])

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".bak-", "backup left behind")
	}
}

func TestStagingPublishRollsBackOnMissingStagedFile(t *testing.T) {
	t.Parallel()
	root := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, WriteJSON(filepath.Join(root, "clubs.json"), map[string]int{"old": 1}))

	st, err := NewStaging(root, zap.NewNop())
	require.NoError(t, err)
	defer st.Cleanup()

	require.NoError(t, st.WriteJSON("clubs.json", map[string]int{"new": 2}))
	// "missing.json" was never staged so its rename must fail.
	require.Error(t, st.Publish([]string{"clubs.json", "missing.json"}))

	var got map[string]int
	require.NoError(t, ReadJSON(filepath.Join(root, "clubs.json"), &got))
	require.Equal(t, 1, got["old"], "first publish rolled back")
}
