package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// JSONLLogger appends one JSON object per line to a log file, rotating it
// by size.
type JSONLLogger struct {
	Path           string
	RotateMaxBytes int64

	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	size int64
}

// NewJSONLLogger opens (creating if needed) the JSONL audit log at path.
func NewJSONLLogger(path string, rotateMaxBytes int64) (*JSONLLogger, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("missing jsonl path")
	}
	if rotateMaxBytes <= 0 {
		rotateMaxBytes = 100 * 1024 * 1024
	}
	l := &JSONLLogger{Path: path, RotateMaxBytes: rotateMaxBytes}
	if err := l.openLocked(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *JSONLLogger) Append(ctx context.Context, e Event) error {
	_ = ctx
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeededLocked(int64(len(b)) + 1); err != nil {
		return err
	}
	if l.w == nil {
		return fmt.Errorf("audit log is not initialized")
	}
	n, err := l.w.Write(append(b, '\n'))
	if err != nil {
		return err
	}
	l.size += int64(n)
	return l.w.Flush()
}

func (l *JSONLLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w != nil {
		_ = l.w.Flush()
	}
	if l.f != nil {
		err := l.f.Close()
		l.f = nil
		l.w = nil
		l.size = 0
		return err
	}
	return nil
}

func (l *JSONLLogger) openLocked() error {
	dir := filepath.Dir(l.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if st, err := f.Stat(); err == nil {
		l.size = st.Size()
	}
	l.f = f
	l.w = bufio.NewWriterSize(f, 64*1024)
	return nil
}

func (l *JSONLLogger) rotateIfNeededLocked(addBytes int64) error {
	if l.RotateMaxBytes <= 0 {
		return nil
	}
	if l.size+addBytes <= l.RotateMaxBytes {
		return nil
	}

	if l.w != nil {
		_ = l.w.Flush()
	}
	if l.f != nil {
		_ = l.f.Close()
	}

	ts := time.Now().UTC().Format("20060102T150405Z")
	rotated := fmt.Sprintf("%s.%s", l.Path, ts)
	if err := os.Rename(l.Path, rotated); err != nil {
		// If rename fails, try reopening without rotation.
		return l.openLocked()
	}
	l.f = nil
	l.w = nil
	l.size = 0
	return l.openLocked()
}
