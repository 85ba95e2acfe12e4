package model

import (
	"fmt"
	"strings"
)

// MediaKind selects which delegate operation a request maps to.
type MediaKind string

const (
	// KindAudio extracts the best audio stream and converts it to the
	// requested audio format.
	KindAudio MediaKind = "audio"

	// KindVideo downloads video at the requested quality ceiling.
	KindVideo MediaKind = "video"

	// KindSubtitles fetches subtitles only, no media download.
	KindSubtitles MediaKind = "subtitles"

	// KindVideoWithSubs downloads video with subtitles embedded.
	KindVideoWithSubs MediaKind = "video+subs"

	// KindPreview resolves metadata without downloading anything.
	KindPreview MediaKind = "preview"

	// KindPlaylist downloads a whole playlist as audio tracks with
	// index-prefixed filenames.
	KindPlaylist MediaKind = "playlist"
)

// Default request values
const (
	DefaultRetries     = 3
	DefaultOutputDir   = "."
	DefaultAudioFormat = "mp3"
	DefaultVideoFormat = "mp4"
	DefaultQuality     = "best"
)

// Request describes one unit of download work. It carries every option the
// delegate understands so a single perform implementation serves all kinds.
// A Request is immutable once constructed.
type Request struct {
	URL       string    // source locator, required
	Kind      MediaKind // which delegate operation to invoke
	Format    string    // container/codec hint, empty means delegate default
	Quality   string    // video height ceiling ("1080") or "best"
	OutputDir string    // destination directory, defaults to "."
	Proxy     string    // opaque proxy URI, passed through unvalidated
	Retries   int       // attempts before giving up, defaults to 3

	RateLimit    string   // e.g. "500K", empty means unlimited
	SubLangs     []string // subtitle languages for subtitle kinds
	IndexedNames bool     // prefix filenames with playlist index
}

// Normalized returns a copy with defaults applied for zero-value fields.
func (r Request) Normalized() Request {
	if r.Kind == "" {
		r.Kind = KindAudio
	}
	if r.OutputDir == "" {
		r.OutputDir = DefaultOutputDir
	}
	if r.Retries <= 0 {
		r.Retries = DefaultRetries
	}
	if r.Quality == "" {
		r.Quality = DefaultQuality
	}
	if r.Format == "" {
		switch r.Kind {
		case KindAudio, KindPlaylist:
			r.Format = DefaultAudioFormat
		case KindVideo, KindVideoWithSubs:
			r.Format = DefaultVideoFormat
		}
	}
	return r
}

// Validate reports whether the request can be handed to the delegate.
func (r Request) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("request URL is empty")
	}
	if r.Retries < 0 {
		return fmt.Errorf("negative retry budget: %d", r.Retries)
	}
	switch r.Kind {
	case KindAudio, KindVideo, KindSubtitles, KindVideoWithSubs, KindPreview, KindPlaylist, "":
	default:
		return fmt.Errorf("unknown media kind: %q", r.Kind)
	}
	return nil
}

// DisplayName returns a short label for user-facing task lists.
func (r Request) DisplayName() string {
	url := r.URL
	if len(url) > 60 {
		url = url[:57] + "..."
	}
	return fmt.Sprintf("[%s] %s", r.Kind, url)
}

// Metadata is the descriptive tag record attached to audio downloads.
type Metadata struct {
	Title  string
	Artist string
	Album  string
}

// WithDefaults fills empty fields with the conventional unknown placeholders.
func (m Metadata) WithDefaults() Metadata {
	if m.Title == "" {
		m.Title = "Unknown Title"
	}
	if m.Artist == "" {
		m.Artist = "Unknown Artist"
	}
	if m.Album == "" {
		m.Album = "Unknown Album"
	}
	return m
}

// Progress is a point-in-time snapshot of one delegate transfer.
type Progress struct {
	URL        string
	Title      string
	Percent    int
	Speed      string // human readable, e.g. "1.2MB/s"
	ETASec     int    // -1 if unknown
}

// ETAString formats the ETA as mm:ss or hh:mm:ss, or "—" if unknown.
func (p Progress) ETAString() string {
	if p.ETASec <= 0 {
		return "—"
	}
	hours := p.ETASec / 3600
	minutes := (p.ETASec % 3600) / 60
	seconds := p.ETASec % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
