package musicapi

import (
	"context"
	"errors"
)

var (
	// ErrNoMatch signals the provider has no result for the lookup.
	ErrNoMatch = errors.New("no match found")
	// ErrUpstream signals the provider failed or answered with an error status.
	ErrUpstream = errors.New("upstream service error")
)

// Playlist is a streaming-service playlist with its full track list.
type Playlist struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	OwnerName  string  `json:"ownerName"`
	ImageURL   string  `json:"imageUrl,omitempty"`
	TrackCount int     `json:"trackCount"`
	Tracks     []Track `json:"tracks"`
}

// Track is one playable track of a playlist.
type Track struct {
	ExternalID string `json:"externalId"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	DurationMS int    `json:"durationMs"`
	ImageURL   string `json:"imageUrl,omitempty"`
	Position   int    `json:"position"`
}

// PlaylistProvider fetches playlists from a streaming service.
type PlaylistProvider interface {
	GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error)
}

// LyricsProvider finds the lyric text for a song.
type LyricsProvider interface {
	GetLyrics(ctx context.Context, artist, title string) (string, error)
}

// TempoProvider looks up a song's BPM.
type TempoProvider interface {
	GetBPM(ctx context.Context, artist, title string) (string, error)
}
