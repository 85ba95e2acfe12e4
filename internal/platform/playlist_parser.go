package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ytget/ytdlp/v2"

	"github.com/ytget/mgrab/internal/model"
)

// Parser tuning
const (
	DefaultParseTimeout = 60 * time.Second
)

// URL parameters and separators
const (
	playlistParam  = "list="
	paramSeparator = "&"
)

// Playlist title fallbacks
const (
	defaultPlaylistName = "Unknown Playlist"
	minPrefixLength     = 10
	playlistSuffix      = " Playlist"
)

const videoURLTemplate = "https://www.youtube.com/watch?v=%s"

// PlaylistParser enumerates playlist entries via the ytdlp library so a
// playlist URL can be fanned out as one request per entry.
type PlaylistParser struct {
	timeout time.Duration
}

// NewPlaylistParser creates a parser with the default timeout.
func NewPlaylistParser() *PlaylistParser {
	return &PlaylistParser{timeout: DefaultParseTimeout}
}

// SetTimeout overrides the per-parse timeout.
func (p *PlaylistParser) SetTimeout(timeout time.Duration) {
	p.timeout = timeout
}

// Parse resolves a playlist URL into its entries.
func (p *PlaylistParser) Parse(ctx context.Context, url string) (*model.Playlist, error) {
	if !IsPlaylistURL(url) {
		return nil, fmt.Errorf("invalid playlist URL: %s", url)
	}
	playlistID := extractPlaylistID(url)
	if playlistID == "" {
		return nil, fmt.Errorf("could not extract playlist ID from URL: %s", url)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	d := ytdlp.New()
	items, err := d.GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	entries := make([]model.PlaylistEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, model.PlaylistEntry{
			ID:    it.VideoID,
			Title: it.Title,
			URL:   fmt.Sprintf(videoURLTemplate, it.VideoID),
		})
	}

	return &model.Playlist{
		ID:       playlistID,
		Title:    playlistTitle(entries),
		URL:      url,
		Entries:  entries,
		ParsedAt: time.Now(),
	}, nil
}

// IsPlaylistURL reports whether the URL carries a playlist parameter.
func IsPlaylistURL(url string) bool {
	return strings.Contains(url, playlistParam)
}

// extractPlaylistID pulls the playlist ID out of the various URL formats.
func extractPlaylistID(url string) string {
	parts := strings.Split(url, playlistParam)
	if len(parts) < 2 {
		return ""
	}
	id := parts[1]
	if strings.Contains(id, paramSeparator) {
		id = strings.Split(id, paramSeparator)[0]
	}
	return id
}

// playlistTitle derives a display title from the entries: the common title
// prefix if one exists, otherwise the first entry's title.
func playlistTitle(entries []model.PlaylistEntry) string {
	if len(entries) == 0 {
		return defaultPlaylistName
	}
	if len(entries) > 1 {
		prefix := commonPrefix(entries[0].Title, entries[1].Title)
		if len(prefix) > minPrefixLength {
			return strings.TrimSpace(prefix) + playlistSuffix
		}
	}
	return entries[0].Title + playlistSuffix
}

func commonPrefix(s1, s2 string) string {
	minLen := min(len(s1), len(s2))
	for i := 0; i < minLen; i++ {
		if s1[i] != s2[i] {
			return s1[:i]
		}
	}
	return s1[:minLen]
}
