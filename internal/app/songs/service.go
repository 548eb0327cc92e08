package songs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bandpractice/internal/app/collections"
	"bandpractice/internal/app/lyrics"
	"bandpractice/internal/musicapi"
	"bandpractice/internal/store"
)

// BPM marker stored when the tempo provider has no result.
const bpmNotFound = "NOT_FOUND"

// ErrInvalidSort rejects unknown sort orders.
var ErrInvalidSort = errors.New("invalid sort")

// Store captures the persistence operations for song workflows.
type Store interface {
	ListSongsByCollection(ctx context.Context, collectionID, sortBy, playlistID string) ([]*store.Song, error)
	GetSong(ctx context.Context, songID string) (*store.Song, error)
	UpdateSongNotes(ctx context.Context, songID, notes string) error
	UpdateSongLyrics(ctx context.Context, songID, lyrics, numbered string) error
	SetSongBPM(ctx context.Context, songID, bpm string, manual bool) error
	DeleteSong(ctx context.Context, songID string) error
}

// Authorizer checks a user's access to a collection.
type Authorizer interface {
	Authorize(ctx context.Context, id string, userID int64, min collections.AccessLevel) (*store.Collection, error)
}

// Service coordinates song-level operations. Viewing needs viewer access on
// the song's collection, edits need collaborator access, and destructive or
// provider-driven operations are owner only.
type Service interface {
	ListByCollection(ctx context.Context, collectionID string, userID int64, sortBy, playlistID string) ([]*store.Song, error)
	Get(ctx context.Context, songID string, userID int64) (*store.Song, error)
	UpdateNotes(ctx context.Context, songID string, userID int64, notes string) (*store.Song, error)
	UpdateLyrics(ctx context.Context, songID string, userID int64, text string) (*store.Song, error)
	SetBPM(ctx context.Context, songID string, userID int64, bpm string) (*store.Song, error)
	FetchBPM(ctx context.Context, songID string, userID int64) (*store.Song, error)
	Delete(ctx context.Context, songID string, userID int64) error
}

type service struct {
	store       Store
	collections Authorizer
	tempo       musicapi.TempoProvider
}

// New constructs a song Service.
func New(store Store, collections Authorizer, tempo musicapi.TempoProvider) Service {
	return &service{store: store, collections: collections, tempo: tempo}
}

func (s *service) ListByCollection(ctx context.Context, collectionID string, userID int64, sortBy, playlistID string) ([]*store.Song, error) {
	if _, err := s.collections.Authorize(ctx, collectionID, userID, collections.AccessViewer); err != nil {
		return nil, err
	}

	switch sortBy {
	case "", store.SortByTitle, store.SortByArtist:
	case store.SortByPlaylist:
		if playlistID == "" {
			return nil, fmt.Errorf("%w: playlist sort requires a playlist id", ErrInvalidSort)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSort, sortBy)
	}

	return s.store.ListSongsByCollection(ctx, collectionID, sortBy, playlistID)
}

func (s *service) Get(ctx context.Context, songID string, userID int64) (*store.Song, error) {
	return s.authorizeSong(ctx, songID, userID, collections.AccessViewer)
}

func (s *service) UpdateNotes(ctx context.Context, songID string, userID int64, notes string) (*store.Song, error) {
	if _, err := s.authorizeSong(ctx, songID, userID, collections.AccessCollaborator); err != nil {
		return nil, err
	}
	if err := s.store.UpdateSongNotes(ctx, songID, notes); err != nil {
		return nil, err
	}
	return s.store.GetSong(ctx, songID)
}

// UpdateLyrics stores a hand-edited lyric text and marks the song customized,
// shielding it from automatic refetches.
func (s *service) UpdateLyrics(ctx context.Context, songID string, userID int64, text string) (*store.Song, error) {
	if _, err := s.authorizeSong(ctx, songID, userID, collections.AccessCollaborator); err != nil {
		return nil, err
	}
	if err := s.store.UpdateSongLyrics(ctx, songID, text, lyrics.Number(text)); err != nil {
		return nil, err
	}
	return s.store.GetSong(ctx, songID)
}

func (s *service) SetBPM(ctx context.Context, songID string, userID int64, bpm string) (*store.Song, error) {
	if _, err := s.authorizeSong(ctx, songID, userID, collections.AccessCollaborator); err != nil {
		return nil, err
	}

	bpm = strings.TrimSpace(bpm)
	if bpm == "" {
		return nil, errors.New("bpm is required")
	}

	if err := s.store.SetSongBPM(ctx, songID, bpm, true); err != nil {
		return nil, err
	}
	return s.store.GetSong(ctx, songID)
}

// FetchBPM asks the tempo provider for the song's BPM. A provider miss stores
// a marker unless a user already typed a tempo in; a provider failure leaves
// the song untouched.
func (s *service) FetchBPM(ctx context.Context, songID string, userID int64) (*store.Song, error) {
	song, err := s.authorizeSong(ctx, songID, userID, collections.AccessOwner)
	if err != nil {
		return nil, err
	}

	bpm, err := s.tempo.GetBPM(ctx, song.Artist, song.Title)
	switch {
	case errors.Is(err, musicapi.ErrNoMatch):
		if song.BPMIsManual {
			return song, nil
		}
		if err := s.store.SetSongBPM(ctx, songID, bpmNotFound, false); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := s.store.SetSongBPM(ctx, songID, bpm, false); err != nil {
			return nil, err
		}
	}

	return s.store.GetSong(ctx, songID)
}

func (s *service) Delete(ctx context.Context, songID string, userID int64) error {
	if _, err := s.authorizeSong(ctx, songID, userID, collections.AccessOwner); err != nil {
		return err
	}
	return s.store.DeleteSong(ctx, songID)
}

// authorizeSong loads the song and checks the caller's access to its
// collection.
func (s *service) authorizeSong(ctx context.Context, songID string, userID int64, min collections.AccessLevel) (*store.Song, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	song, err := s.store.GetSong(ctx, songID)
	if err != nil {
		return nil, err
	}
	if _, err := s.collections.Authorize(ctx, song.CollectionID, userID, min); err != nil {
		return nil, err
	}
	return song, nil
}
