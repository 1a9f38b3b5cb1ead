//nolint:goconst // test file with repeated string literals
package playlist

import "testing"

func TestNewPlaylist(t *testing.T) {
	p := NewPlaylist()

	if p.Len() != 0 {
		t.Errorf("Len() = %d, want 0", p.Len())
	}
	if p.Items() == nil {
		t.Error("Items() should return empty slice, not nil")
	}
}

func TestPlaylist_Add(t *testing.T) {
	p := NewPlaylist()

	p.Add(NewItem("/a.wav", ""), NewItem("/b.zip", "x.mp3"))

	if p.Len() != 2 {
		t.Errorf("Len() = %d, want 2", p.Len())
	}
	got := p.Items()
	if got[0].Location != "/a.wav" {
		t.Errorf("items[0].Location = %q, want /a.wav", got[0].Location)
	}
	if got[1].SubPath != "x.mp3" {
		t.Errorf("items[1].SubPath = %q, want x.mp3", got[1].SubPath)
	}
	if got[0].ID == got[1].ID {
		t.Error("items should get distinct IDs")
	}
}

func TestPlaylist_Remove(t *testing.T) {
	p := NewPlaylist()
	p.Add(items("/a", "/b", "/c")...)

	if !p.Remove(1) {
		t.Error("Remove should return true")
	}
	if p.Len() != 2 {
		t.Errorf("Len() = %d, want 2", p.Len())
	}
	if p.Remove(5) {
		t.Error("Remove out of range should return false")
	}
	if got := p.Items()[1].Location; got != "/c" {
		t.Errorf("items[1] = %q, want /c", got)
	}
}

func TestPlaylist_Clear(t *testing.T) {
	p := NewPlaylist()
	p.Add(items("/a", "/b")...)
	p.Clear()

	if p.Len() != 0 {
		t.Errorf("Len() = %d, want 0", p.Len())
	}
}

func TestPlaylist_IndexOf(t *testing.T) {
	p := NewPlaylist()
	p.Add(NewItem("/set.zip", "a.wav"), NewItem("/set.zip", "b.wav"), NewItem("/c.wav", ""))

	if got := p.IndexOf("/set.zip", "b.wav"); got != 1 {
		t.Errorf("IndexOf = %d, want 1", got)
	}
	if got := p.IndexOf("/set.zip", ""); got != -1 {
		t.Errorf("IndexOf = %d, want -1", got)
	}
}

func TestPlaylist_IteratorSnapshot(t *testing.T) {
	p := NewPlaylist()
	p.Add(items("/a", "/b")...)
	it := p.Iterator(Ordered, 0)
	p.Clear()

	if it.Len() != 2 {
		t.Errorf("iterator Len() = %d, want 2", it.Len())
	}
}

func TestItem_DisplayTitle(t *testing.T) {
	tests := []struct {
		item Item
		want string
	}{
		{Item{Title: "Song", Location: "/x.wav"}, "Song"},
		{Item{Location: "/music/x.wav"}, "x.wav"},
		{Item{Location: "/set.zip", SubPath: "disc/y.mp3"}, "y.mp3"},
	}
	for _, tt := range tests {
		if got := tt.item.DisplayTitle(); got != tt.want {
			t.Errorf("DisplayTitle() = %q, want %q", got, tt.want)
		}
	}
}
