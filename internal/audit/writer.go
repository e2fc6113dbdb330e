// Package audit mirrors violation logs to JSON-lines files and reads them back.
package audit

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/tullo/wordguard/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Writer appends one JSON object per violation log. The object has the same
// fields as models.ViolationLog's JSON form, so ReadFile can decode it.
type Writer struct {
	mu      sync.Mutex
	encoder zapcore.Encoder
	out     zapcore.WriteSyncer
	closer  io.Closer
}

// Open creates a Writer on dir/file that rotates past maxSize bytes.
func Open(dir, file string, maxSize int64) (*Writer, error) {
	rotator, err := NewRotator(filepath.Join(dir, file), maxSize)
	if err != nil {
		return nil, err
	}
	w := NewWriter(rotator)
	w.closer = rotator
	return w, nil
}

// NewWriter writes records to out without rotation.
func NewWriter(out io.Writer) *Writer {
	config := zapcore.EncoderConfig{
		// Only the record's own fields are emitted
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	return &Writer{
		encoder: zapcore.NewJSONEncoder(config),
		out:     zapcore.AddSync(out),
	}
}

// Record appends log to the file.
func (w *Writer) Record(log *models.ViolationLog) error {
	fields := []zap.Field{
		zap.Int64("id", log.ID),
		zap.Int64("chat_id", log.ChatID),
		zap.Int64("user_id", log.UserID),
		zap.String("username", log.Username),
		zap.Int64("message_id", log.MessageID),
		zap.String("message_text", log.Text),
		zap.Time("timestamp", log.CreatedAt.UTC()),
	}
	if len(log.Words) > 0 {
		fields = append(fields, zap.Strings("words", log.Words))
	}

	buf, err := w.encoder.EncodeEntry(zapcore.Entry{}, fields)
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}
	defer buf.Free()

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// Sync flushes the underlying file.
func (w *Writer) Sync() error {
	return w.out.Sync()
}

// Close releases the file opened by Open.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// ReadFile decodes a JSON-lines audit file. Blank lines are skipped.
func ReadFile(path string) ([]models.ViolationLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads JSON-lines records from r.
func Decode(r io.Reader) ([]models.ViolationLog, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var logs []models.ViolationLog
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var entry models.ViolationLog
		if err := sonic.UnmarshalString(text, &entry); err != nil {
			return nil, fmt.Errorf("line %d: failed to decode audit record: %w", line, err)
		}
		logs = append(logs, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit records: %w", err)
	}
	return logs, nil
}

// ReadDir decodes every *.jsonl file in dir, oldest rotation first and the
// active file last.
func ReadDir(dir string) ([]models.ViolationLog, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to list audit files: %w", err)
	}
	sort.Strings(files)

	var logs []models.ViolationLog
	for _, file := range files {
		entries, err := ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(file), err)
		}
		logs = append(logs, entries...)
	}
	return logs, nil
}
