// Package tag attaches descriptive metadata to downloaded audio files.
// Tagging is strictly best-effort: it runs after a successful download and
// its failure is reported to the caller for logging, never allowed to turn
// the download into a failure.
package tag

import (
	"fmt"
	"strings"

	"github.com/bogem/id3v2/v2"

	"github.com/ytget/mgrab/internal/model"
)

// Formats that carry ID3 frames.
var id3Formats = []string{".mp3"}

// Apply writes title, artist and album onto the file. Files in formats
// without ID3 support are skipped silently.
func Apply(path string, meta model.Metadata) error {
	if !Taggable(path) {
		return nil
	}
	meta = meta.WithDefaults()

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open %s for tagging: %w", path, err)
	}
	defer tag.Close()

	tag.SetTitle(meta.Title)
	tag.SetArtist(meta.Artist)
	tag.SetAlbum(meta.Album)

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save tags to %s: %w", path, err)
	}
	return nil
}

// Taggable reports whether the file format supports ID3 tagging.
func Taggable(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range id3Formats {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
