package model

// Package model defines domain data structures shared across the app: download
// requests, per-request outcomes, media metadata, and playlist entities.
// Requests are immutable value types so concurrent workers never share
// mutable state.
