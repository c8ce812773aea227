package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind classifies a catalog change.
type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// MarshalText renders the kind by name.
func (k ChangeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Change is one keyboard appearing, changing or disappearing.
type Change struct {
	Kind  ChangeKind `json:"kind"`
	Entry Entry      `json:"entry"`
}

// Watch reports keyboard changes in the directory until ctx is done. The
// returned channel is closed when watching stops. Cached metadata for a
// changed file is dropped before the change is sent, so the entry reflects
// the new contents.
func (c *Catalog) Watch(ctx context.Context) (<-chan Change, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch catalog: %w", err)
	}
	if err := w.Add(c.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch catalog: %w", err)
	}

	changes := make(chan Change, 16)
	go c.watchLoop(ctx, w, changes)
	return changes, nil
}

func (c *Catalog) watchLoop(ctx context.Context, w *fsnotify.Watcher, changes chan<- Change) {
	defer close(changes)
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			change, ok := c.translate(event)
			if !ok {
				continue
			}
			select {
			case changes <- change:
			case <-ctx.Done():
				return
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.logger.Warn("catalog watch error", slog.String("dir", c.dir), slog.Any("error", err))
		}
	}
}

// translate maps a file system event to a change. Chmod events and files
// without the keyboard extension are ignored.
func (c *Catalog) translate(event fsnotify.Event) (Change, bool) {
	if !IsKeyboard(event.Name) {
		return Change{}, false
	}
	path := filepath.Clean(event.Name)

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		c.Invalidate(path)
		return Change{Kind: Removed, Entry: Entry{Path: path, ID: idOf(path)}}, true
	case event.Op&fsnotify.Create != 0:
		c.Invalidate(path)
		return Change{Kind: Added, Entry: c.Entry(path)}, true
	case event.Op&fsnotify.Write != 0:
		c.Invalidate(path)
		return Change{Kind: Modified, Entry: c.Entry(path)}, true
	}
	return Change{}, false
}

func idOf(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
