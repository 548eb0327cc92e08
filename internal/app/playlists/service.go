package playlists

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"bandpractice/internal/app/collections"
	"bandpractice/internal/app/lyrics"
	"bandpractice/internal/logging"
	"bandpractice/internal/musicapi"
	"bandpractice/internal/store"
)

// ErrBadPlaylistRef rejects input that cannot be parsed as a playlist ID,
// URI, or share URL.
var ErrBadPlaylistRef = errors.New("unrecognized playlist reference")

// How long a post-import background sweep may run.
const backgroundSweepTimeout = 5 * time.Minute

var (
	playlistIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	playlistRefPattern = regexp.MustCompile(`playlist[/:]([a-zA-Z0-9]+)`)
)

// ExtractPlaylistID pulls the playlist ID out of a bare ID, a
// spotify:playlist:<id> URI, or an open.spotify.com share URL.
func ExtractPlaylistID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrBadPlaylistRef
	}
	if playlistIDPattern.MatchString(raw) {
		return raw, nil
	}
	if m := playlistRefPattern.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}
	return "", ErrBadPlaylistRef
}

// ImportSummary reports what importing a playlist did to the collection.
type ImportSummary struct {
	SongsCreated int                  `json:"songsCreated"`
	SongsUpdated int                  `json:"songsUpdated"`
	SongCount    int                  `json:"songCount"`
	Playlist     store.LinkedPlaylist `json:"playlist"`
}

// UnlinkSummary reports what unlinking a playlist did to the collection.
type UnlinkSummary struct {
	SongsDeleted   int `json:"songsDeleted"`
	SongsUpdated   int `json:"songsUpdated"`
	RemainingSongs int `json:"remainingSongs"`
}

// Store captures the persistence operations for playlist workflows.
type Store interface {
	ImportPlaylistSongs(ctx context.Context, collectionID string, importedBy int64, playlist store.LinkedPlaylist, tracks []store.PlaylistTrack) (*store.ImportResult, error)
	UnlinkPlaylist(ctx context.Context, collectionID, playlistID string) (*store.UnlinkResult, error)
	RememberPlaylist(ctx context.Context, userID int64, playlist store.LinkedPlaylist) error
	ListRememberedPlaylists(ctx context.Context, userID int64) ([]*store.RememberedPlaylist, error)
	ForgetPlaylist(ctx context.Context, userID int64, playlistID string) error
}

// Authorizer checks a user's access to a collection.
type Authorizer interface {
	Authorize(ctx context.Context, id string, userID int64, min collections.AccessLevel) (*store.Collection, error)
}

// Sweeper runs the background lyric fetch kicked off after an import.
type Sweeper interface {
	Sweep(ctx context.Context, collectionID string) (*lyrics.SweepResult, error)
}

// Service coordinates playlist import, unlinking, previews, and the per-user
// import memory.
type Service interface {
	Import(ctx context.Context, collectionID string, userID int64, raw string) (*ImportSummary, error)
	Unlink(ctx context.Context, collectionID, playlistID string, userID int64) (*UnlinkSummary, error)
	Preview(ctx context.Context, userID int64, raw string) (*musicapi.Playlist, error)
	Recent(ctx context.Context, userID int64) ([]*store.RememberedPlaylist, error)
	Forget(ctx context.Context, userID int64, playlistID string) error
}

type service struct {
	store       Store
	collections Authorizer
	provider    musicapi.PlaylistProvider
	sweeper     Sweeper
}

// New constructs a playlist Service.
func New(store Store, collections Authorizer, provider musicapi.PlaylistProvider, sweeper Sweeper) Service {
	return &service{store: store, collections: collections, provider: provider, sweeper: sweeper}
}

// Import fetches the playlist from the streaming provider and upserts its
// tracks into the collection, owner only. The import is remembered in the
// user's history and a background lyric sweep is kicked off for the
// collection.
func (s *service) Import(ctx context.Context, collectionID string, userID int64, raw string) (*ImportSummary, error) {
	if _, err := s.collections.Authorize(ctx, collectionID, userID, collections.AccessOwner); err != nil {
		return nil, err
	}

	playlistID, err := ExtractPlaylistID(raw)
	if err != nil {
		return nil, err
	}

	playlist, err := s.provider.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	linked := store.LinkedPlaylist{
		PlaylistID: playlist.ID,
		Name:       playlist.Name,
		OwnerName:  playlist.OwnerName,
		ImageURL:   playlist.ImageURL,
		TrackCount: playlist.TrackCount,
	}

	if err := s.store.RememberPlaylist(ctx, userID, linked); err != nil {
		return nil, err
	}

	tracks := make([]store.PlaylistTrack, 0, len(playlist.Tracks))
	for _, track := range playlist.Tracks {
		tracks = append(tracks, store.PlaylistTrack{
			ExternalID: track.ExternalID,
			Title:      track.Title,
			Artist:     track.Artist,
			Album:      track.Album,
			DurationMS: track.DurationMS,
			ImageURL:   track.ImageURL,
			Position:   track.Position,
		})
	}

	result, err := s.store.ImportPlaylistSongs(ctx, collectionID, userID, linked, tracks)
	if err != nil {
		return nil, err
	}

	s.sweepInBackground(ctx, collectionID)

	return &ImportSummary{
		SongsCreated: result.Created,
		SongsUpdated: result.Updated,
		SongCount:    result.SongCount,
		Playlist:     linked,
	}, nil
}

// sweepInBackground fetches missing lyrics for the collection after an
// import, detached from the request so a slow provider does not hold the
// response.
func (s *service) sweepInBackground(ctx context.Context, collectionID string) {
	if s.sweeper == nil {
		return
	}

	sweepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundSweepTimeout)
	go func() {
		defer cancel()
		if _, err := s.sweeper.Sweep(sweepCtx, collectionID); err != nil {
			logging.WithContext(sweepCtx).Error().
				Err(err).
				Str("collection_id", collectionID).
				Msg("post-import lyric sweep failed")
		}
	}()
}

// Unlink removes the playlist's reference from every song in the collection,
// owner only. Songs the playlist was the last reference for are deleted.
func (s *service) Unlink(ctx context.Context, collectionID, playlistID string, userID int64) (*UnlinkSummary, error) {
	if _, err := s.collections.Authorize(ctx, collectionID, userID, collections.AccessOwner); err != nil {
		return nil, err
	}

	result, err := s.store.UnlinkPlaylist(ctx, collectionID, playlistID)
	if err != nil {
		return nil, err
	}

	return &UnlinkSummary{
		SongsDeleted:   result.Deleted,
		SongsUpdated:   result.Updated,
		RemainingSongs: result.Remaining,
	}, nil
}

// Preview fetches the playlist without writing anything, so the UI can show
// what an import would bring in.
func (s *service) Preview(ctx context.Context, userID int64, raw string) (*musicapi.Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	playlistID, err := ExtractPlaylistID(raw)
	if err != nil {
		return nil, err
	}
	return s.provider.GetPlaylist(ctx, playlistID)
}

func (s *service) Recent(ctx context.Context, userID int64) ([]*store.RememberedPlaylist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListRememberedPlaylists(ctx, userID)
}

func (s *service) Forget(ctx context.Context, userID int64, playlistID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.store.ForgetPlaylist(ctx, userID, playlistID)
}
