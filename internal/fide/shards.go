package fide

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ShardPrefix buckets a FIDE id by its first two digits, left padded so
// short ids land in a low shard instead of a malformed one.
func ShardPrefix(id string) string {
	digits := nonDigitRe.ReplaceAllString(id, "")
	if digits == "" {
		return "00"
	}
	if len(digits) < 2 {
		digits = "0" + digits
	}
	return digits[:2]
}

type shardState struct {
	file  *os.File
	buf   bytes.Buffer
	first bool
	count int
}

// ShardWriters streams player records into one hundred per-prefix JSON
// files. Records append as raw object members so the full list never sits
// in memory; a repeated id resolves to its last occurrence on decode.
type ShardWriters struct {
	shards     map[string]*shardState
	flushBytes int
}

// NewShardWriters creates the hundred shard files and writes each header.
func NewShardWriters(dir, updatedISO string, flushBytes int) (*ShardWriters, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create shard dir: %w", err)
	}
	w := &ShardWriters{shards: map[string]*shardState{}, flushBytes: flushBytes}
	for i := 0; i < 100; i++ {
		prefix := fmt.Sprintf("%02d", i)
		file, err := os.Create(filepath.Join(dir, prefix+".json"))
		if err != nil {
			w.closeAll()
			return nil, fmt.Errorf("create shard %s: %w", prefix, err)
		}
		if _, err := fmt.Fprintf(file, `{"version":1,"updated":%q,"players":{`, updatedISO); err != nil {
			w.closeAll()
			file.Close()
			return nil, fmt.Errorf("write shard header %s: %w", prefix, err)
		}
		w.shards[prefix] = &shardState{file: file, first: true}
	}
	return w, nil
}

// Append buffers one record into its shard, flushing when the buffer passes
// the threshold.
func (w *ShardWriters) Append(p *Player) error {
	state := w.shards[ShardPrefix(p.ID)]
	if state == nil {
		state = w.shards["00"]
	}
	encoded, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode player %s: %w", p.ID, err)
	}
	if !state.first {
		state.buf.WriteByte(',')
	}
	state.first = false
	state.count++
	state.buf.WriteByte('\n')
	fmt.Fprintf(&state.buf, "%q:", p.ID)
	state.buf.Write(encoded)

	if state.buf.Len() >= w.flushBytes {
		return w.flush(state)
	}
	return nil
}

func (w *ShardWriters) flush(state *shardState) error {
	if state.buf.Len() == 0 {
		return nil
	}
	if _, err := state.file.Write(state.buf.Bytes()); err != nil {
		return fmt.Errorf("flush shard %s: %w", state.file.Name(), err)
	}
	state.buf.Reset()
	return nil
}

// Finalize flushes and closes every shard, returning the sorted shard file
// names and the total record count.
func (w *ShardWriters) Finalize() ([]string, int, error) {
	files := make([]string, 0, len(w.shards))
	total := 0
	for prefix, state := range w.shards {
		if err := w.flush(state); err != nil {
			w.closeAll()
			return nil, 0, err
		}
		if _, err := state.file.WriteString("\n}}\n"); err != nil {
			w.closeAll()
			return nil, 0, fmt.Errorf("finalize shard %s: %w", prefix, err)
		}
		if err := state.file.Close(); err != nil {
			return nil, 0, fmt.Errorf("close shard %s: %w", prefix, err)
		}
		state.file = nil
		files = append(files, prefix+".json")
		total += state.count
	}
	sort.Strings(files)
	return files, total, nil
}

func (w *ShardWriters) closeAll() {
	for _, state := range w.shards {
		if state.file != nil {
			state.file.Close()
			state.file = nil
		}
	}
}
