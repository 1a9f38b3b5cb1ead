package playlist

import (
	"path"
	"time"

	"github.com/google/uuid"
)

// Item describes one playable entry. Location is the file holding the
// audio; SubPath selects a track inside a compound file such as an archive.
type Item struct {
	ID       uuid.UUID
	Location string
	SubPath  string
	Title    string
	Author   string
	Format   string
	Duration time.Duration
}

// NewItem returns an item with a fresh ID.
func NewItem(location, subPath string) Item {
	return Item{ID: uuid.New(), Location: location, SubPath: subPath}
}

// DisplayTitle returns the title, falling back to the file or entry name.
func (i Item) DisplayTitle() string {
	if i.Title != "" {
		return i.Title
	}
	if i.SubPath != "" {
		return path.Base(i.SubPath)
	}
	return path.Base(i.Location)
}

// Playlist holds an ordered collection of items.
type Playlist struct {
	items []Item
}

// NewPlaylist creates a new empty playlist.
func NewPlaylist() *Playlist {
	return &Playlist{
		items: make([]Item, 0),
	}
}

// Add appends items to the playlist.
func (p *Playlist) Add(items ...Item) {
	p.items = append(p.items, items...)
}

// Remove removes the item at the given index.
// Returns false if index is out of bounds.
func (p *Playlist) Remove(index int) bool {
	if index < 0 || index >= len(p.items) {
		return false
	}
	p.items = append(p.items[:index], p.items[index+1:]...)
	return true
}

// Clear removes all items from the playlist.
func (p *Playlist) Clear() {
	p.items = p.items[:0]
}

// Items returns a copy of all items.
func (p *Playlist) Items() []Item {
	result := make([]Item, len(p.items))
	copy(result, p.items)
	return result
}

// Len returns the number of items.
func (p *Playlist) Len() int {
	return len(p.items)
}

// IndexOf returns the index of the first item at location and subPath,
// or -1.
func (p *Playlist) IndexOf(location, subPath string) int {
	for i, it := range p.items {
		if it.Location == location && it.SubPath == subPath {
			return i
		}
	}
	return -1
}

// Iterator returns a cursor over a snapshot of the playlist.
func (p *Playlist) Iterator(mode NavigationMode, seed uint64) *ListIterator {
	return NewListIterator(p.Items(), mode, seed)
}
