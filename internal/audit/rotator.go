package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Rotator is an append-only file that is renamed aside once it grows past maxSize.
// Rotated files are named <base>.<timestamp><ext> next to the active file.
type Rotator struct {
	path    string
	maxSize int64

	mutex sync.Mutex
	file  *os.File
	size  int64
	now   func() time.Time
}

// NewRotator opens (or creates) the file at path.
func NewRotator(path string, maxSize int64) (*Rotator, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	r := &Rotator{path: path, maxSize: maxSize, now: time.Now}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

// Write implements io.Writer. A write that would push the file past maxSize
// rotates first, so a single record is never split across files.
func (r *Rotator) Write(p []byte) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.file == nil {
		return 0, os.ErrClosed
	}

	if r.maxSize > 0 && r.size > 0 && r.size+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// Sync implements zapcore.WriteSyncer.
func (r *Rotator) Sync() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.file == nil {
		return nil
	}
	return r.file.Sync()
}

// Close closes the active file.
func (r *Rotator) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Path returns the active file path.
func (r *Rotator) Path() string {
	return r.path
}

func (r *Rotator) open() error {
	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	r.file = file
	r.size = info.Size()
	return nil
}

func (r *Rotator) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}
	r.file = nil

	if err := os.Rename(r.path, r.rotatedName()); err != nil {
		// keep writing to the old file rather than losing records
		if openErr := r.open(); openErr != nil {
			return openErr
		}
		return err
	}

	return r.open()
}

func (r *Rotator) rotatedName() string {
	ext := filepath.Ext(r.path)
	base := strings.TrimSuffix(r.path, ext)
	stamp := r.now().Format("20060102_150405")

	name := fmt.Sprintf("%s.%s%s", base, stamp, ext)
	for i := 1; fileExists(name); i++ {
		name = fmt.Sprintf("%s.%s_%d%s", base, stamp, i, ext)
	}
	return name
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
