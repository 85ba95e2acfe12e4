package download

// Package download implements the download pipeline built on top of yt-dlp
// (via github.com/lrstanley/go-ytdlp): the delegate service that turns a
// Request into a yt-dlp invocation, the retry policy around it, and the
// bounded worker pool that fans batches out without letting one task's
// failure abort the rest.
