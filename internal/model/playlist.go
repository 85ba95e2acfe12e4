package model

import "time"

// PlaylistEntry is a single video discovered while parsing a playlist.
type PlaylistEntry struct {
	ID    string
	Title string
	URL   string
}

// Playlist is the parsed form of a playlist URL, ready to be fanned out as
// one Request per entry.
type Playlist struct {
	ID       string
	Title    string
	URL      string
	Entries  []PlaylistEntry
	ParsedAt time.Time
}

// Requests expands the playlist into per-entry download requests that share
// the base request's options.
func (p *Playlist) Requests(base Request) []Request {
	reqs := make([]Request, 0, len(p.Entries))
	for _, e := range p.Entries {
		req := base
		req.URL = e.URL
		req.IndexedNames = true
		reqs = append(reqs, req)
	}
	return reqs
}
