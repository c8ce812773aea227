// Package catalog lists the keyboards installed in a directory.
//
// Only the header and info section of each .km2 file are read (see
// km2.LoadMetadata), and results are cached by path until the file's size or
// modification time changes, so listing a large directory repeatedly stays
// cheap.
package catalog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/keymagic/keymagic/internal/km2"
)

// DefaultCacheSize bounds how many metadata records are kept.
const DefaultCacheSize = 256

// Ext is the keyboard file extension.
const Ext = ".km2"

// Entry describes one keyboard file.
type Entry struct {
	Path        string    `json:"path"`
	ID          string    `json:"id"` // file name without extension
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	FontFamily  string    `json:"font_family,omitempty"`
	Hotkey      string    `json:"hotkey,omitempty"`
	IconSize    int       `json:"icon_size,omitempty"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mod_time"`

	// Error is set when the file could not be read as a keyboard.
	Error string `json:"error,omitempty"`
}

// DisplayName is the keyboard's name, or its file id when it has none.
func (e Entry) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}

type cached struct {
	size    int64
	modTime time.Time
	md      km2.Metadata
}

// Catalog reads keyboard metadata from one directory.
//
// Thread-safety: all methods are safe for concurrent use.
type Catalog struct {
	dir    string
	cache  *lru.Cache[string, cached]
	logger *slog.Logger
}

// Option configures a Catalog.
type Option func(*config)

type config struct {
	cacheSize int
	logger    *slog.Logger
}

// WithCacheSize sets the number of cached metadata records.
func WithCacheSize(n int) Option {
	return func(c *config) { c.cacheSize = n }
}

// WithLogger sets the logger used for skipped files and watch errors.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// New creates a catalog over dir. The directory is not read until List.
func New(dir string, opts ...Option) (*Catalog, error) {
	cfg := config{
		cacheSize: DefaultCacheSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	cache, err := lru.New[string, cached](cfg.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("catalog cache: %w", err)
	}
	return &Catalog{dir: dir, cache: cache, logger: cfg.logger}, nil
}

// Dir returns the catalog directory.
func (c *Catalog) Dir() string {
	return c.dir
}

// IsKeyboard reports whether path has the keyboard extension.
func IsKeyboard(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Ext)
}

// List returns every keyboard directly under the directory, sorted by file
// name. Unreadable keyboards are listed with Error set rather than failing
// the whole listing.
func (c *Catalog) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}

	entries := []Entry{}
	for _, de := range dirEntries {
		if de.IsDir() || !IsKeyboard(de.Name()) {
			continue
		}
		entries = append(entries, c.Entry(filepath.Join(c.dir, de.Name())))
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// Entry describes the keyboard at path. Read problems are reported in
// Entry.Error.
func (c *Catalog) Entry(path string) Entry {
	e := Entry{
		Path: path,
		ID:   idOf(path),
	}

	info, err := os.Stat(path)
	if err != nil {
		e.Error = err.Error()
		return e
	}
	e.Size = info.Size()
	e.ModTime = info.ModTime().UTC()

	md, err := c.metadata(path, info)
	if err != nil {
		c.logger.Warn("skipping keyboard", slog.String("path", path), slog.Any("error", err))
		e.Error = err.Error()
		return e
	}
	e.Name = md.Name
	e.Description = md.Description
	e.FontFamily = md.FontFamily
	e.Hotkey = md.Hotkey
	e.IconSize = len(md.Icon)
	return e
}

// Metadata returns the metadata of the keyboard at path, from cache when
// the file is unchanged.
func (c *Catalog) Metadata(path string) (km2.Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return km2.Metadata{}, err
	}
	return c.metadata(path, info)
}

func (c *Catalog) metadata(path string, info os.FileInfo) (km2.Metadata, error) {
	if hit, ok := c.cache.Get(path); ok && hit.size == info.Size() && hit.modTime.Equal(info.ModTime()) {
		return hit.md, nil
	}

	md, err := km2.LoadMetadataFile(path)
	if err != nil {
		c.cache.Remove(path)
		return km2.Metadata{}, err
	}
	c.cache.Add(path, cached{size: info.Size(), modTime: info.ModTime(), md: md})
	return md, nil
}

// Invalidate drops any cached metadata for path.
func (c *Catalog) Invalidate(path string) {
	c.cache.Remove(path)
}

// Cached returns the number of cached metadata records.
func (c *Catalog) Cached() int {
	return c.cache.Len()
}

// Find returns the entry whose file id or name matches query
// case-insensitively.
func (c *Catalog) Find(query string) (Entry, bool, error) {
	entries, err := c.List()
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if strings.EqualFold(e.ID, query) || (e.Name != "" && strings.EqualFold(e.Name, query)) {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}
