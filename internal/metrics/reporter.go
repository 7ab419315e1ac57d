package metrics

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Mode int

const (
	ModeAppend Mode = iota
	ModeTruncate
)

func (m Mode) String() string {
	if m == ModeTruncate {
		return "truncate"
	}
	return "append"
}

// Reporter writes records to one metrics file. Writes are serialized and
// each lands as a single write of a fully encoded buffer. The file is
// truncated at most once per Reporter; later truncate requests append.
type Reporter struct {
	path   string
	logger *zap.Logger

	mu        sync.Mutex
	truncated bool
}

func NewReporter(path string, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{path: path, logger: logger}
}

func (r *Reporter) Path() string { return r.path }

func (r *Reporter) Write(records []Record, mode Mode) error {
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if mode == ModeTruncate && !r.truncated {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		r.truncated = true
	}
	return r.writeLocked(buf.Bytes(), flags)
}

// Clear empties the file now. It counts as the Reporter's one truncation.
func (r *Reporter) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.truncated = true
	return r.writeLocked(nil, os.O_CREATE|os.O_WRONLY|os.O_TRUNC)
}

func (r *Reporter) writeLocked(data []byte, flags int) (err error) {
	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create metrics dir: %w", err)
		}
	}

	f, err := os.OpenFile(r.path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open metrics file: %w", err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	if len(data) == 0 {
		return nil
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	r.logger.Debug("metrics written", zap.String("path", r.path), zap.Int("bytes", len(data)))
	return nil
}
