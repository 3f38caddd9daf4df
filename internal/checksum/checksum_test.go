package checksum

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andpalmier/nestprog/pkg/progress"
	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestTree creates a temporary directory with a few files
func setupTestTree(t *testing.T) (string, map[string][]byte) {
	t.Helper()
	dir := t.TempDir()

	contents := map[string][]byte{
		"a.txt":            []byte("alpha"),
		"docs/readme.md":   []byte("# readme\n"),
		"src/main.go":      bytes.Repeat([]byte("package main\n"), 10000),
		"src/util/util.go": []byte("package util\n"),
		"empty.bin":        {},
	}
	for rel, data := range contents {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, data, 0644))
	}
	return dir, contents
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestCollect(t *testing.T) {
	dir, contents := setupTestTree(t)

	files, err := Collect(context.Background(), dir, nil)
	require.NoError(t, err)
	require.Len(t, files, len(contents))

	var rels []string
	for _, f := range files {
		rels = append(rels, f.Rel)
		assert.Equal(t, int64(len(contents[f.Rel])), f.Size)
	}
	assert.Equal(t, []string{"a.txt", "docs/readme.md", "empty.bin", "src/main.go", "src/util/util.go"}, rels)

	var want int64
	for _, data := range contents {
		want += int64(len(data))
	}
	assert.Equal(t, want, TotalSize(files))
}

func TestCollect_Include(t *testing.T) {
	dir, _ := setupTestTree(t)

	files, err := Collect(context.Background(), dir, []string{"**/*.go", "*.txt"})
	require.NoError(t, err)

	var rels []string
	for _, f := range files {
		rels = append(rels, f.Rel)
	}
	assert.Equal(t, []string{"a.txt", "src/main.go", "src/util/util.go"}, rels)
}

func TestCollect_InvalidPattern(t *testing.T) {
	dir, _ := setupTestTree(t)
	_, err := Collect(context.Background(), dir, []string{"[unclosed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid include pattern")
}

func TestCollect_SingleFile(t *testing.T) {
	dir, _ := setupTestTree(t)
	path := filepath.Join(dir, "a.txt")

	files, err := Collect(context.Background(), path, []string{"*.go"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, path, files[0].Path)
	assert.Equal(t, int64(5), files[0].Size)
}

func TestCollect_Missing(t *testing.T) {
	_, err := Collect(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCollect_Cancelled(t *testing.T) {
	dir, _ := setupTestTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(ctx, dir, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	_, err := New(Config{Algorithm: "crc32"})
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestRun(t *testing.T) {
	dir, contents := setupTestTree(t)
	files, err := Collect(context.Background(), dir, nil)
	require.NoError(t, err)

	var signals []progress.Signal
	tracker := progress.New(progress.WithObserver(progress.ObserverFunc(func(s progress.Signal) bool {
		signals = append(signals, s)
		return true
	})))
	total := TotalSize(files)
	require.NoError(t, tracker.Init("hash", total))

	c, err := New(Config{Workers: 3})
	require.NoError(t, err)

	results, err := c.Run(context.Background(), tracker, files)
	require.NoError(t, err)
	require.Len(t, results, len(files))

	for i, r := range results {
		assert.Equal(t, i, r.Index, "results are ordered like the input")
		assert.NoError(t, r.Error)
		assert.Equal(t, sha256Hex(contents[r.File.Rel]), r.Sum, r.File.Rel)
	}

	_, overall := tracker.Overall()
	assert.Equal(t, total, overall, "every byte read is stepped")
	require.NotEmpty(t, signals)
	assert.Equal(t, total, signals[len(signals)-1].Progress)
}

func TestRun_XXH64(t *testing.T) {
	dir, contents := setupTestTree(t)
	files, err := Collect(context.Background(), dir, []string{"a.txt"})
	require.NoError(t, err)

	tracker := progress.New()
	require.NoError(t, tracker.Init("hash", 100))

	c, err := New(Config{Workers: 1, Algorithm: "xxh64"})
	require.NoError(t, err)
	results, err := c.Run(context.Background(), tracker, files)
	require.NoError(t, err)
	require.Len(t, results, 1)

	want := fmt.Sprintf("%016x", xxhash.Sum64(contents["a.txt"]))
	assert.Equal(t, want, results[0].Sum)
}

func TestRun_NestedPortion(t *testing.T) {
	dir, _ := setupTestTree(t)
	files, err := Collect(context.Background(), dir, nil)
	require.NoError(t, err)

	tracker := progress.New()
	require.NoError(t, tracker.Init("root", 1000))
	tracker.Step(0, 100)
	tracker.Enter(500, "hashing", TotalSize(files))

	c, err := New(Config{Workers: 2})
	require.NoError(t, err)
	_, err = c.Run(context.Background(), tracker, files)
	require.NoError(t, err)

	_, overall := tracker.Overall()
	assert.Equal(t, int64(600), overall)

	tracker.Finish()
	_, overall = tracker.Overall()
	assert.Equal(t, int64(600), overall)
}

func TestRun_ObserverStops(t *testing.T) {
	dir, _ := setupTestTree(t)
	files, err := Collect(context.Background(), dir, nil)
	require.NoError(t, err)

	tracker := progress.New(progress.WithSimpleCallback(func(total, progress int64) bool {
		return false
	}))
	require.NoError(t, tracker.Init("hash", TotalSize(files)))

	c, err := New(Config{Workers: 1})
	require.NoError(t, err)
	_, err = c.Run(context.Background(), tracker, files)
	assert.ErrorIs(t, err, ErrStopped)
	assert.True(t, tracker.ShouldStop())
}

func TestRun_ContextCancelled(t *testing.T) {
	dir, _ := setupTestTree(t)
	files, err := Collect(context.Background(), dir, nil)
	require.NoError(t, err)

	tracker := progress.New()
	require.NoError(t, tracker.Init("hash", TotalSize(files)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := New(Config{Workers: 2})
	require.NoError(t, err)
	_, err = c.Run(ctx, tracker, files)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_MissingFile(t *testing.T) {
	dir, _ := setupTestTree(t)
	files, err := Collect(context.Background(), dir, nil)
	require.NoError(t, err)
	files = append(files, File{Path: filepath.Join(dir, "gone.txt"), Rel: "gone.txt", Size: 10})

	tracker := progress.New()
	require.NoError(t, tracker.Init("hash", TotalSize(files)))

	c, err := New(Config{Workers: 2})
	require.NoError(t, err)
	results, err := c.Run(context.Background(), tracker, files)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 6 checksums failed")
	assert.ErrorIs(t, err, os.ErrNotExist)
	require.Len(t, results, 6)
	assert.Error(t, results[5].Error)
}

func TestRun_Empty(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	results, err := c.Run(context.Background(), progress.New(), nil)
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestWriteSums(t *testing.T) {
	results := []Result{
		{File: File{Path: "a"}, Sum: "01"},
		{File: File{Path: "b"}, Error: os.ErrNotExist},
		{File: File{Path: "c"}, Sum: "02"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSums(&buf, results))
	assert.Equal(t, "01  a\n02  c\n", buf.String())
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}
