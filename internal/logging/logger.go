package logging

import (
	"io"
	"log"
	"os"
	"strings"
)

// Flags used by every component logger.
const Flags = log.LstdFlags | log.Lmicroseconds

// Setup points the standard logger at stdout, mirrored to a rotating file when
// path is set. The returned closer releases the file.
func Setup(prefix, path string, maxBytes int64) (io.Closer, error) {
	log.SetFlags(Flags)
	log.SetPrefix(prefix)
	if strings.TrimSpace(path) == "" {
		log.SetOutput(os.Stdout)
		return discardCloser{}, nil
	}
	rot, err := NewRotatingWriter(path, maxBytes)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rot))
	return rot, nil
}

// Component returns a logger sharing the standard logger's output under its own prefix.
func Component(prefix string) *log.Logger {
	return log.New(log.Writer(), prefix, Flags)
}
