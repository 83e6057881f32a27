package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultMaxBytes caps one log file before it rolls over within the same day.
const DefaultMaxBytes int64 = 50 << 20

// RotatingWriter appends to dated log files next to BasePath.
//
// logs/relayd.log becomes logs/relayd-2026-01-02.log, then
// logs/relayd-2026-01-02-2.log once MaxBytes is reached. A new file starts
// every UTC day. BasePath itself is kept as a link to the active file.
type RotatingWriter struct {
	BasePath string
	MaxBytes int64

	now func() time.Time

	mu    sync.Mutex
	day   string
	index int
	file  *os.File
	size  int64
}

// NewRotatingWriter opens the writer for basePath. A basePath of "-" discards output.
func NewRotatingWriter(basePath string, maxBytes int64) (io.WriteCloser, error) {
	if strings.TrimSpace(basePath) == "-" {
		return discardCloser{}, nil
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	w := &RotatingWriter{BasePath: basePath, MaxBytes: maxBytes, now: time.Now}
	if err := w.roll(0); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.roll(int64(len(p))); err != nil {
		return 0, err
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// CurrentPath returns the file receiving writes.
func (w *RotatingWriter) CurrentPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return ""
	}
	return w.file.Name()
}

func (w *RotatingWriter) roll(incoming int64) error {
	today := w.now().UTC().Format("2006-01-02")
	switch {
	case w.file == nil || w.day != today:
		w.day, w.index = today, 1
	case w.size > 0 && w.size+incoming > w.MaxBytes:
		w.index++
	default:
		return nil
	}
	return w.open()
}

func (w *RotatingWriter) open() error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	dir, name := filepath.Split(w.BasePath)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if ext == "" {
		ext = ".log"
	}
	suffix := w.day
	if w.index > 1 {
		suffix = fmt.Sprintf("%s-%d", w.day, w.index)
	}
	path := filepath.Join(dir, stem+"-"+suffix+ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	w.size = 0
	if st, err := f.Stat(); err == nil {
		w.size = st.Size()
	}
	w.file = f
	w.link(path)
	return nil
}

// link points BasePath at target, falling back to a hard link.
func (w *RotatingWriter) link(target string) {
	if info, err := os.Lstat(w.BasePath); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			if dest, err := os.Readlink(w.BasePath); err == nil && dest == target {
				return
			}
		}
		_ = os.Remove(w.BasePath)
	}
	if err := os.Symlink(target, w.BasePath); err != nil {
		_ = os.Link(target, w.BasePath)
	}
}

type discardCloser struct{}

func (discardCloser) Write(p []byte) (int, error) { return len(p), nil }
func (discardCloser) Close() error                { return nil }
