package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRotatingWriterRollsBySize(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "logs", "relayd.log")
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	w := &RotatingWriter{BasePath: base, MaxBytes: 16, now: func() time.Time { return day }}
	defer w.Close()

	if _, err := w.Write([]byte("first line 1234\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := w.Write([]byte("second line\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	first := filepath.Join(dir, "logs", "relayd-2026-03-01.log")
	second := filepath.Join(dir, "logs", "relayd-2026-03-01-2.log")
	if b, err := os.ReadFile(first); err != nil || string(b) != "first line 1234\n" {
		t.Fatalf("first file = %q, %v", b, err)
	}
	if b, err := os.ReadFile(second); err != nil || string(b) != "second line\n" {
		t.Fatalf("second file = %q, %v", b, err)
	}
	if w.CurrentPath() != second {
		t.Fatalf("current path %s, want %s", w.CurrentPath(), second)
	}
	if b, err := os.ReadFile(base); err != nil || string(b) != "second line\n" {
		t.Fatalf("base path should follow the active file: %q, %v", b, err)
	}
}

func TestRotatingWriterRollsByDay(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "relayd")
	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)

	w := &RotatingWriter{BasePath: base, MaxBytes: 1 << 20, now: func() time.Time { return day }}
	defer w.Close()

	if _, err := w.Write([]byte("late\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	day = day.Add(2 * time.Minute)
	if _, err := w.Write([]byte("early\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasSuffix(w.CurrentPath(), "relayd-2026-03-02.log") {
		t.Fatalf("expected next day file, got %s", w.CurrentPath())
	}
	if b, _ := os.ReadFile(filepath.Join(dir, "relayd-2026-03-01.log")); string(b) != "late\n" {
		t.Fatalf("previous day file = %q", b)
	}
}

func TestNewRotatingWriterDash(t *testing.T) {
	w, err := NewRotatingWriter("-", 0)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	if n, err := w.Write([]byte("dropped")); err != nil || n != 7 {
		t.Fatalf("write = %d, %v", n, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
