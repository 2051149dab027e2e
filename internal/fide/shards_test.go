package fide

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShardPrefix(t *testing.T) {
	t.Parallel()
	require.Equal(t, "62", ShardPrefix("623539"))
	require.Equal(t, "07", ShardPrefix("7"))
	require.Equal(t, "00", ShardPrefix(""))
	require.Equal(t, "00", ShardPrefix("abc"))
	require.Equal(t, "12", ShardPrefix(" 12x34 "))
}

type shardDoc struct {
	Version int               `json:"version"`
	Updated string            `json:"updated"`
	Players map[string]Player `json:"players"`
}

func TestShardWritersRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w, err := NewShardWriters(dir, "2026-08-01T00:00:00.000Z", 512*1024)
	require.NoError(t, err)

	require.NoError(t, w.Append(&Player{ID: "623539", N: "Carlsen, Magnus", F: "NOR", Sr: 2839}))
	require.NoError(t, w.Append(&Player{ID: "621986", N: "Firouzja, Alireza", F: "FRA"}))
	require.NoError(t, w.Append(&Player{ID: "45", N: "Low Id", F: "FRA"}))

	files, total, err := w.Finalize()
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, files, 100)
	require.Equal(t, "00.json", files[0])
	require.Equal(t, "99.json", files[99])

	var doc shardDoc
	data, err := os.ReadFile(filepath.Join(dir, "62.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, 1, doc.Version)
	require.Equal(t, "2026-08-01T00:00:00.000Z", doc.Updated)
	require.Len(t, doc.Players, 2)
	require.Equal(t, "Carlsen, Magnus", doc.Players["623539"].N)
	require.Equal(t, 2839, doc.Players["623539"].Sr)

	data, err = os.ReadFile(filepath.Join(dir, "04.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, "Low Id", doc.Players["45"].N)

	// Untouched shards still decode as empty documents.
	data, err = os.ReadFile(filepath.Join(dir, "99.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Empty(t, doc.Players)
}

func TestShardWritersDuplicateIDLastWins(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w, err := NewShardWriters(dir, "2026-08-01T00:00:00.000Z", 512*1024)
	require.NoError(t, err)
	require.NoError(t, w.Append(&Player{ID: "623539", Sr: 2800}))
	require.NoError(t, w.Append(&Player{ID: "623539", Sr: 2850}))
	_, total, err := w.Finalize()
	require.NoError(t, err)
	require.Equal(t, 2, total)

	var doc shardDoc
	data, err := os.ReadFile(filepath.Join(dir, "62.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, 2850, doc.Players["623539"].Sr)
}

func TestShardWritersFlushThreshold(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	// Tiny threshold forces a flush on every append.
	w, err := NewShardWriters(dir, "2026-08-01T00:00:00.000Z", 1)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		require.NoError(t, w.Append(&Player{ID: "6200", N: "Repeat"}))
	}
	_, total, err := w.Finalize()
	require.NoError(t, err)
	require.Equal(t, 50, total)

	var doc shardDoc
	data, err := os.ReadFile(filepath.Join(dir, "62.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Players, 1)
}
