package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/uascope/uascope/pkg/client"
)

// Bookmark is one saved server entry usable from the connect form or
// the --bookmark flag.
type Bookmark struct {
	Name       string        `yaml:"name"`
	Connection client.Config `yaml:"connection"`
}

// Bookmarks is the saved server list.
type Bookmarks struct {
	Entries []Bookmark `yaml:"bookmarks"`
}

// BookmarksPath returns the default bookmark file location.
func BookmarksPath() string {
	return filepath.Join(Dir(), "bookmarks.yaml")
}

// LoadBookmarks reads the bookmark file; a missing file yields an
// empty list.
func LoadBookmarks(path string) (*Bookmarks, error) {
	var b Bookmarks
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read bookmarks: %w", err)
	}
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse bookmarks %s: %w", path, err)
	}
	return &b, nil
}

// Save writes the bookmark list back to path.
func (b *Bookmarks) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode bookmarks: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write bookmarks: %w", err)
	}
	return nil
}

// Find returns the bookmark with the given name.
func (b *Bookmarks) Find(name string) (Bookmark, bool) {
	for _, bm := range b.Entries {
		if bm.Name == name {
			return bm, true
		}
	}
	return Bookmark{}, false
}

// Add inserts or replaces a bookmark by name, keeping the list sorted.
func (b *Bookmarks) Add(bm Bookmark) {
	for i, existing := range b.Entries {
		if existing.Name == bm.Name {
			b.Entries[i] = bm
			return
		}
	}
	b.Entries = append(b.Entries, bm)
	sort.Slice(b.Entries, func(i, j int) bool { return b.Entries[i].Name < b.Entries[j].Name })
}

// Remove deletes a bookmark by name, reporting whether it existed.
func (b *Bookmarks) Remove(name string) bool {
	for i, existing := range b.Entries {
		if existing.Name == name {
			b.Entries = append(b.Entries[:i], b.Entries[i+1:]...)
			return true
		}
	}
	return false
}
