package audit_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tullo/wordguard/internal/audit"
	"github.com/tullo/wordguard/internal/models"
)

func sampleLog(id int64) *models.ViolationLog {
	return &models.ViolationLog{
		ID:        id,
		ChatID:    -100123,
		UserID:    42,
		Username:  "bob",
		MessageID: 7,
		Text:      "this \"spam\" is junk",
		CreatedAt: time.Date(2024, 3, 1, 12, 30, 0, 123, time.UTC),
		Words:     models.WordList{"spam", "junk"},
	}
}

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := audit.NewWriter(&buf)

	require.NoError(t, w.Record(sampleLog(1)))
	clean := sampleLog(2)
	clean.Words = nil
	require.NoError(t, w.Record(clean))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"message_text":"this \"spam\" is junk"`)
	assert.NotContains(t, lines[1], `"words"`)
	assert.NotContains(t, lines[0], `"level"`)

	logs, err := audit.Decode(&buf)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	want := sampleLog(1)
	assert.True(t, want.CreatedAt.Equal(logs[0].CreatedAt))
	logs[0].CreatedAt = want.CreatedAt
	assert.Equal(t, *want, logs[0])
	assert.Nil(t, logs[1].Words)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := audit.Decode(strings.NewReader("{\"id\": 1}\n\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()

	// room for roughly two records per file
	line, err := os.ReadFile(writeOne(t))
	require.NoError(t, err)
	maxSize := int64(len(line))*2 + 10

	w, err := audit.Open(dir, "message_log.jsonl", maxSize)
	require.NoError(t, err)
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, w.Record(sampleLog(i)))
	}
	require.NoError(t, w.Close())

	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	require.NoError(t, err)
	assert.Len(t, files, 3)

	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.LessOrEqual(t, info.Size(), maxSize, f)
	}

	logs, err := audit.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, logs, 5)
	for i, l := range logs {
		assert.Equal(t, int64(i+1), l.ID)
	}
}

func TestOpenAppendsToExistingFile(t *testing.T) {
	dir := t.TempDir()

	w, err := audit.Open(dir, "message_log.jsonl", 0)
	require.NoError(t, err)
	require.NoError(t, w.Record(sampleLog(1)))
	require.NoError(t, w.Close())

	w, err = audit.Open(dir, "message_log.jsonl", 0)
	require.NoError(t, err)
	require.NoError(t, w.Record(sampleLog(2)))
	require.NoError(t, w.Close())

	logs, err := audit.ReadFile(filepath.Join(dir, "message_log.jsonl"))
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestRotatorClosed(t *testing.T) {
	r, err := audit.NewRotator(filepath.Join(t.TempDir(), "nested", "a.jsonl"), 100)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	_, err = r.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func writeOne(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "one.jsonl")
	w, err := audit.Open(filepath.Dir(path), filepath.Base(path), 0)
	require.NoError(t, err)
	require.NoError(t, w.Record(sampleLog(1)))
	require.NoError(t, w.Close())
	return path
}
