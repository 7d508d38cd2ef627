// Package tmdb provides a client for The Movie Database API, including
// search, detail lookups, and deterministic confidence scoring for
// recognition candidates.
package tmdb
