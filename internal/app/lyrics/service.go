package lyrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"bandpractice/internal/app/collections"
	"bandpractice/internal/logging"
	"bandpractice/internal/musicapi"
	"bandpractice/internal/store"
)

// Status is the outcome of a single lyric fetch.
type Status string

const (
	// StatusFetched means lyrics were retrieved and stored.
	StatusFetched Status = "fetched"
	// StatusBlocked means the song is customized and the fetch carried no
	// force flag, so nothing was written.
	StatusBlocked Status = "blocked"
	// StatusNotFound means the provider has no lyrics for the song; the miss
	// is recorded on the song, the stored lyrics stay as they were.
	StatusNotFound Status = "not_found"
)

// Error markers stored in lyrics_fetch_error.
const (
	markerNotFound    = "NOT_FOUND"
	markerFetchFailed = "FETCH_FAILED"
)

// FetchResult reports what a single fetch did.
type FetchResult struct {
	Status Status      `json:"status"`
	Song   *store.Song `json:"song,omitempty"`
}

// SweepResult reports what a collection-wide fetch did.
type SweepResult struct {
	Fetched int `json:"fetched"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Store captures the persistence operations lyric fetching needs.
type Store interface {
	GetSong(ctx context.Context, songID string) (*store.Song, error)
	SaveFetchedLyrics(ctx context.Context, songID, lyrics, numbered string, force bool) (bool, error)
	SetLyricsFetchError(ctx context.Context, songID, marker string) error
	ListUnfetchedSongs(ctx context.Context, collectionID string) ([]*store.Song, error)
}

// Authorizer checks a user's access to a collection.
type Authorizer interface {
	Authorize(ctx context.Context, id string, userID int64, min collections.AccessLevel) (*store.Collection, error)
}

// Service fetches lyrics while honoring the customization guard: a song whose
// lyrics were hand-edited is never overwritten except by an owner-forced
// refetch.
type Service interface {
	Fetch(ctx context.Context, songID string, userID int64, force bool) (*FetchResult, error)
	SweepCollection(ctx context.Context, collectionID string, userID int64) (*SweepResult, error)
	Sweep(ctx context.Context, collectionID string) (*SweepResult, error)
}

type service struct {
	store       Store
	collections Authorizer
	provider    musicapi.LyricsProvider
	limiter     *rate.Limiter
	workers     int
}

// New constructs a lyrics Service. rps throttles provider calls across all
// sweep workers; workers bounds how many fetches run at once.
func New(store Store, collections Authorizer, provider musicapi.LyricsProvider, rps float64, workers int) Service {
	if rps <= 0 {
		rps = 2
	}
	if workers <= 0 {
		workers = 3
	}
	return &service{
		store:       store,
		collections: collections,
		provider:    provider,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		workers:     workers,
	}
}

// Fetch retrieves lyrics for one song. Only the collection owner may fetch,
// and only an owner-forced fetch may overwrite a customized song; a blocked
// fetch is a normal outcome, not an error.
func (s *service) Fetch(ctx context.Context, songID string, userID int64, force bool) (*FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	song, err := s.store.GetSong(ctx, songID)
	if err != nil {
		return nil, err
	}
	if _, err := s.collections.Authorize(ctx, song.CollectionID, userID, collections.AccessOwner); err != nil {
		return nil, err
	}

	if song.IsCustomized && !force {
		return &FetchResult{Status: StatusBlocked, Song: song}, nil
	}

	status, err := s.fetchOne(ctx, song, force)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.GetSong(ctx, songID)
	if err != nil {
		return nil, err
	}
	return &FetchResult{Status: status, Song: updated}, nil
}

// SweepCollection runs the batch fetch on behalf of a user, owner only.
func (s *service) SweepCollection(ctx context.Context, collectionID string, userID int64) (*SweepResult, error) {
	if _, err := s.collections.Authorize(ctx, collectionID, userID, collections.AccessOwner); err != nil {
		return nil, err
	}
	return s.Sweep(ctx, collectionID)
}

// Sweep fetches lyrics for every song in the collection that has none yet.
// Customized songs are skipped, a failed song records its error marker and
// the sweep moves on. Fetches run on a worker pool behind a shared rate
// limit.
func (s *service) Sweep(ctx context.Context, collectionID string) (*SweepResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	songs, err := s.store.ListUnfetchedSongs(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		result SweepResult
	)
	jobs := make(chan *store.Song)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for song := range jobs {
				status := s.sweepOne(ctx, song)
				mu.Lock()
				switch status {
				case StatusFetched:
					result.Fetched++
				case StatusBlocked:
					result.Skipped++
				default:
					result.Failed++
				}
				mu.Unlock()
			}
		}()
	}

	for _, song := range songs {
		if song.IsCustomized {
			mu.Lock()
			result.Skipped++
			mu.Unlock()
			continue
		}
		select {
		case jobs <- song:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	logging.WithContext(ctx).Info().
		Str("collection_id", collectionID).
		Int("fetched", result.Fetched).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("lyric sweep finished")

	return &result, nil
}

// sweepOne fetches a single song inside the sweep. Errors are recorded on the
// song and logged; the sweep never aborts on them.
func (s *service) sweepOne(ctx context.Context, song *store.Song) Status {
	if err := s.limiter.Wait(ctx); err != nil {
		return Status("")
	}

	status, err := s.fetchOne(ctx, song, false)
	if err != nil {
		logging.WithContext(ctx).Warn().
			Err(err).
			Str("song_id", song.ID).
			Str("title", song.Title).
			Msg("lyric fetch failed")
		return Status("")
	}
	return status
}

// fetchOne calls the provider and stores the outcome. The customization check
// runs inside the store write itself, so a manual edit racing this fetch can
// never be overwritten.
func (s *service) fetchOne(ctx context.Context, song *store.Song, force bool) (Status, error) {
	text, err := s.provider.GetLyrics(ctx, song.Artist, song.Title)
	if errors.Is(err, musicapi.ErrNoMatch) {
		if markErr := s.store.SetLyricsFetchError(ctx, song.ID, markerNotFound); markErr != nil {
			return "", markErr
		}
		return StatusNotFound, nil
	}
	if err != nil {
		if markErr := s.store.SetLyricsFetchError(ctx, song.ID, markerFetchFailed); markErr != nil {
			return "", markErr
		}
		return "", fmt.Errorf("fetch lyrics for %q: %w", song.Title, err)
	}

	saved, err := s.store.SaveFetchedLyrics(ctx, song.ID, text, Number(text), force)
	if err != nil {
		return "", err
	}
	if !saved {
		return StatusBlocked, nil
	}
	return StatusFetched, nil
}

// Number renders lyrics with rehearsal line numbers: every non-empty line
// gets a 3-wide right-aligned ordinal, [Section] headers pass through
// unnumbered, blank lines are preserved.
func Number(raw string) string {
	lines := strings.Split(raw, "\n")
	out := make([]string, len(lines))
	n := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			out[i] = line
		case strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"):
			out[i] = line
		default:
			n++
			out[i] = fmt.Sprintf("%3d. %s", n, line)
		}
	}
	return strings.Join(out, "\n")
}
