package library

import (
	"bytes"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
)

// trackTags is the tag metadata an item carries.
type trackTags struct {
	Title  string
	Author string
}

// readTags reads the title and artist embedded in data.
func readTags(data []byte) (trackTags, bool) {
	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		// dhowden/tag has issues with some UTF-16 encoded ID3 tags
		return readID3v2(data)
	}

	author := m.Artist()
	if author == "" {
		author = m.AlbumArtist()
	}
	t := trackTags{Title: strings.TrimSpace(m.Title()), Author: strings.TrimSpace(author)}
	return t, t.Title != "" || t.Author != ""
}

func readID3v2(data []byte) (trackTags, bool) {
	id3tag, err := id3v2.ParseReader(bytes.NewReader(data), id3v2.Options{Parse: true})
	if err != nil || !id3tag.HasFrames() {
		return trackTags{}, false
	}
	defer id3tag.Close()

	t := trackTags{
		Title:  strings.TrimSpace(id3tag.Title()),
		Author: strings.TrimSpace(id3tag.Artist()),
	}
	return t, t.Title != "" || t.Author != ""
}
