// Package assets serves the web client's static files through a versioned,
// in-memory cache. A manifest names the cache generation and the files that
// must be present before the generation goes live.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest describes one cache generation.
type Manifest struct {
	CacheName string   `yaml:"cache_name"`
	Precache  []string `yaml:"precache"`
}

var ErrInvalidManifest = errors.New("invalid asset manifest")

// LoadManifest reads a YAML manifest from disk.
func LoadManifest(file string) (Manifest, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a YAML manifest. Precache paths are
// cleaned to rooted URL paths.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	m.CacheName = strings.TrimSpace(m.CacheName)
	if m.CacheName == "" {
		return Manifest{}, fmt.Errorf("%w: cache_name is required", ErrInvalidManifest)
	}
	seen := make(map[string]bool, len(m.Precache))
	paths := make([]string, 0, len(m.Precache))
	for _, p := range m.Precache {
		clean, err := cleanPath(p)
		if err != nil {
			return Manifest{}, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
		if seen[clean] {
			continue
		}
		seen[clean] = true
		paths = append(paths, clean)
	}
	m.Precache = paths
	return m, nil
}

func cleanPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errors.New("empty precache path")
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	clean := path.Clean(p)
	if clean == "/" {
		return "", fmt.Errorf("precache path %q names no file", p)
	}
	return clean, nil
}
