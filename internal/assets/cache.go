package assets

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"mime"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// IndexFile is served for "/".
const IndexFile = "/index.html"

type entry struct {
	body        []byte
	contentType string
	modTime     time.Time
}

// Cache holds asset generations keyed by cache name. Only the current
// generation is read from or written to.
type Cache struct {
	root     fs.FS
	manifest Manifest
	logger   *log.Logger

	mu          sync.RWMutex
	generations map[string]map[string]entry
}

// New constructs a Cache over root. Nothing is loaded until Install.
func New(root fs.FS, manifest Manifest, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.New(log.Writer(), "[assets] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Cache{
		root:        root,
		manifest:    manifest,
		logger:      logger,
		generations: make(map[string]map[string]entry),
	}
}

// Name returns the current generation's cache name.
func (c *Cache) Name() string { return c.manifest.CacheName }

// Install loads every precache path into the current generation. Either all
// files load or the generation is left untouched.
func (c *Cache) Install() error {
	staged := make(map[string]entry, len(c.manifest.Precache))
	for _, p := range c.manifest.Precache {
		e, err := c.load(p)
		if err != nil {
			return fmt.Errorf("precache %s: %w", p, err)
		}
		staged[p] = e
	}

	c.mu.Lock()
	gen := c.generations[c.manifest.CacheName]
	if gen == nil {
		gen = make(map[string]entry, len(staged))
		c.generations[c.manifest.CacheName] = gen
	}
	for p, e := range staged {
		gen[p] = e
	}
	c.mu.Unlock()

	c.logger.Printf("installed %s with %d files", c.manifest.CacheName, len(staged))
	return nil
}

// Activate drops every generation except the current one and returns the
// dropped names.
func (c *Cache) Activate() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var dropped []string
	for name := range c.generations {
		if name != c.manifest.CacheName {
			delete(c.generations, name)
			dropped = append(dropped, name)
		}
	}
	sort.Strings(dropped)
	if len(dropped) > 0 {
		c.logger.Printf("activated %s, dropped %v", c.manifest.CacheName, dropped)
	}
	return dropped
}

// Adopt registers generations left by a previous manifest so Activate can
// retire them. It is how a reload hands over an older Cache's contents.
func (c *Cache) Adopt(prev *Cache) {
	if prev == nil || prev == c {
		return
	}
	prev.mu.RLock()
	defer prev.mu.RUnlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, gen := range prev.generations {
		if _, exists := c.generations[name]; !exists {
			c.generations[name] = gen
		}
	}
}

// Generations lists the cache names currently held.
func (c *Cache) Generations() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.generations))
	for name := range c.generations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cached reports whether urlPath is held by the current generation.
func (c *Cache) Cached(urlPath string) bool {
	_, ok := c.match(urlPath)
	return ok
}

func (c *Cache) match(urlPath string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.generations[c.manifest.CacheName][urlPath]
	return e, ok
}

func (c *Cache) put(urlPath string, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.generations[c.manifest.CacheName]
	if gen == nil {
		gen = make(map[string]entry)
		c.generations[c.manifest.CacheName] = gen
	}
	gen[urlPath] = e
}

func (c *Cache) load(urlPath string) (entry, error) {
	name := strings.TrimPrefix(urlPath, "/")
	info, err := fs.Stat(c.root, name)
	if err != nil {
		return entry{}, err
	}
	if info.IsDir() {
		return entry{}, fs.ErrNotExist
	}
	body, err := fs.ReadFile(c.root, name)
	if err != nil {
		return entry{}, err
	}
	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = http.DetectContentType(body)
	}
	return entry{body: body, contentType: ctype, modTime: info.ModTime()}, nil
}

// ServeHTTP answers GET and HEAD from the cache, falling back to the asset
// root and caching what it finds there.
func (c *Cache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	urlPath := path.Clean("/" + r.URL.Path)
	if urlPath == "/" {
		urlPath = IndexFile
	}

	e, hit := c.match(urlPath)
	if !hit {
		loaded, err := c.load(urlPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
				http.NotFound(w, r)
				return
			}
			c.logger.Printf("load %s: %v", urlPath, err)
			http.Error(w, "asset unavailable", http.StatusInternalServerError)
			return
		}
		c.put(urlPath, loaded)
		e = loaded
	}

	if hit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	w.Header().Set("Content-Type", e.contentType)
	http.ServeContent(w, r, urlPath, e.modTime, bytes.NewReader(e.body))
}
