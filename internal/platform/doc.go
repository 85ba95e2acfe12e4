package platform

// Package platform contains OS and external-tooling glue: filesystem helpers,
// detection of the host package manager and required binaries, and playlist
// enumeration via the ytdlp library.
