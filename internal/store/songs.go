package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Song is one track inside a collection, deduplicated across every playlist
// that contributed it.
type Song struct {
	ID                string         `json:"id"`
	CollectionID      string         `json:"collectionId"`
	ExternalTrackID   string         `json:"externalTrackId"`
	Title             string         `json:"title"`
	Artist            string         `json:"artist"`
	Album             string         `json:"album,omitempty"`
	DurationMS        int            `json:"durationMs,omitempty"`
	ImageURL          string         `json:"imageUrl,omitempty"`
	Lyrics            string         `json:"lyrics"`
	LyricsNumbered    string         `json:"lyricsNumbered"`
	LyricsFetched     bool           `json:"lyricsFetched"`
	IsCustomized      bool           `json:"isCustomized"`
	LyricsFetchError  string         `json:"lyricsFetchError,omitempty"`
	LyricsFetchedAt   *time.Time     `json:"lyricsFetchedAt,omitempty"`
	BPM               string         `json:"bpm"`
	BPMIsManual       bool           `json:"bpmIsManual"`
	Notes             string         `json:"notes"`
	SourcePlaylistIDs []string       `json:"sourcePlaylistIds"`
	PlaylistPositions map[string]int `json:"playlistPositions"`
	CreatedBy         int64          `json:"createdBy"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// PlaylistTrack is one track of a fetched playlist, as handed to the import.
type PlaylistTrack struct {
	ExternalID string
	Title      string
	Artist     string
	Album      string
	DurationMS int
	ImageURL   string
	Position   int
}

// ImportResult reports what a playlist import did to the collection.
type ImportResult struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	SongCount int `json:"songCount"`
}

// UnlinkResult reports what unlinking a playlist did to the collection.
type UnlinkResult struct {
	Deleted   int `json:"deleted"`
	Updated   int `json:"updated"`
	Remaining int `json:"remaining"`
}

// Song sort orders accepted by ListSongsByCollection.
const (
	SortByTitle    = "title"
	SortByArtist   = "artist"
	SortByPlaylist = "playlist"
)

// Songs without a stored position for the requested playlist sort last.
const unknownPosition = 999999

const songColumns = `id, collection_id, external_track_id, title, artist, album, duration_ms, image_url,
	lyrics, lyrics_numbered, lyrics_fetched, is_customized, lyrics_fetch_error, lyrics_fetched_at,
	bpm, bpm_is_manual, notes, source_playlist_ids, playlist_positions, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSong(sc rowScanner) (*Song, error) {
	var (
		song      Song
		fetchedAt sql.NullTime
		positions []byte
	)
	if err := sc.Scan(
		&song.ID, &song.CollectionID, &song.ExternalTrackID, &song.Title, &song.Artist,
		&song.Album, &song.DurationMS, &song.ImageURL,
		&song.Lyrics, &song.LyricsNumbered, &song.LyricsFetched, &song.IsCustomized,
		&song.LyricsFetchError, &fetchedAt,
		&song.BPM, &song.BPMIsManual, &song.Notes,
		pq.Array(&song.SourcePlaylistIDs), &positions,
		&song.CreatedBy, &song.CreatedAt, &song.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if fetchedAt.Valid {
		song.LyricsFetchedAt = &fetchedAt.Time
	}
	song.PlaylistPositions = map[string]int{}
	if len(positions) > 0 {
		if err := json.Unmarshal(positions, &song.PlaylistPositions); err != nil {
			return nil, fmt.Errorf("decode playlist positions: %w", err)
		}
	}

	return &song, nil
}

// ImportPlaylistSongs upserts a playlist's tracks into a collection in one
// transaction. New tracks become songs with empty lyric state; tracks already
// present get a metadata refresh and the playlist added to their reference
// set. The linked-playlist entry and song_count are maintained in the same
// transaction. Serialization conflicts with concurrent imports are retried.
func (s *Store) ImportPlaylistSongs(ctx context.Context, collectionID string, importedBy int64, playlist LinkedPlaylist, tracks []PlaylistTrack) (*ImportResult, error) {
	// Collapse duplicate tracks within the payload; the last occurrence wins.
	seen := make(map[string]int, len(tracks))
	deduped := make([]PlaylistTrack, 0, len(tracks))
	for _, track := range tracks {
		if track.ExternalID == "" {
			continue
		}
		if i, ok := seen[track.ExternalID]; ok {
			deduped[i] = track
			continue
		}
		seen[track.ExternalID] = len(deduped)
		deduped = append(deduped, track)
	}

	trackIDs := make([]string, len(deduped))
	for i, track := range deduped {
		trackIDs[i] = track.ExternalID
	}

	var result *ImportResult
	err := retryTxConflict(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			if tx != nil {
				_ = tx.Rollback()
			}
		}()

		existing := make(map[string]bool, len(trackIDs))
		if len(trackIDs) > 0 {
			rows, err := tx.QueryContext(ctx, `
				SELECT external_track_id
				FROM songs
				WHERE collection_id = $1 AND external_track_id = ANY($2)`,
				collectionID, pq.Array(trackIDs))
			if err != nil {
				return fmt.Errorf("list existing songs: %w", err)
			}
			for rows.Next() {
				var id string
				if err := rows.Scan(&id); err != nil {
					rows.Close()
					return fmt.Errorf("scan existing song: %w", err)
				}
				existing[id] = true
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return fmt.Errorf("iterate existing songs: %w", err)
			}
			rows.Close()
		}

		insertStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO songs (id, collection_id, external_track_id, title, artist, album,
			                   duration_ms, image_url, source_playlist_ids, playlist_positions, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11)
			ON CONFLICT (collection_id, external_track_id) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("prepare insert song: %w", err)
		}
		defer insertStmt.Close()

		updateStmt, err := tx.PrepareContext(ctx, `
			UPDATE songs
			SET title = $1, artist = $2, album = $3, duration_ms = $4, image_url = $5,
			    source_playlist_ids = CASE WHEN $6 = ANY(source_playlist_ids)
			                               THEN source_playlist_ids
			                               ELSE array_append(source_playlist_ids, $6) END,
			    playlist_positions = playlist_positions || $7::jsonb,
			    updated_at = $8
			WHERE collection_id = $9 AND external_track_id = $10`)
		if err != nil {
			return fmt.Errorf("prepare update song: %w", err)
		}
		defer updateStmt.Close()

		var created, updated int
		now := time.Now().UTC()
		for _, track := range deduped {
			position, err := json.Marshal(map[string]int{playlist.PlaylistID: track.Position})
			if err != nil {
				return fmt.Errorf("encode playlist position: %w", err)
			}

			if !existing[track.ExternalID] {
				res, err := insertStmt.ExecContext(ctx,
					uuid.NewString(), collectionID, track.ExternalID,
					track.Title, track.Artist, track.Album, track.DurationMS, track.ImageURL,
					pq.Array([]string{playlist.PlaylistID}), string(position), importedBy)
				if err != nil {
					return fmt.Errorf("insert song: %w", err)
				}
				affected, err := res.RowsAffected()
				if err != nil {
					return fmt.Errorf("rows affected: %w", err)
				}
				if affected == 1 {
					created++
					continue
				}
				// Lost an insert race with a concurrent import; fall
				// through to the update path.
			}

			if _, err := updateStmt.ExecContext(ctx,
				track.Title, track.Artist, track.Album, track.DurationMS, track.ImageURL,
				playlist.PlaylistID, string(position), now,
				collectionID, track.ExternalID); err != nil {
				return fmt.Errorf("update song: %w", err)
			}
			updated++
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO collection_playlists (collection_id, playlist_id, name, owner_name, image_url, track_count)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (collection_id, playlist_id) DO UPDATE
			SET name = EXCLUDED.name, owner_name = EXCLUDED.owner_name,
			    image_url = EXCLUDED.image_url, track_count = EXCLUDED.track_count,
			    linked_at = now()`,
			collectionID, playlist.PlaylistID, playlist.Name, playlist.OwnerName,
			playlist.ImageURL, playlist.TrackCount); err != nil {
			return fmt.Errorf("link playlist: %w", err)
		}

		count, err := refreshSongCountTx(ctx, tx, collectionID)
		if err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		tx = nil

		result = &ImportResult{Created: created, Updated: updated, SongCount: count}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// UnlinkPlaylist removes a playlist's reference from every song in the
// collection. Songs whose only reference it was are deleted, the rest keep
// their other references; the linked-playlist entry goes away and song_count
// is recomputed, all in one transaction.
func (s *Store) UnlinkPlaylist(ctx context.Context, collectionID, playlistID string) (*UnlinkResult, error) {
	var result *UnlinkResult
	err := retryTxConflict(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			if tx != nil {
				_ = tx.Rollback()
			}
		}()

		res, err := tx.ExecContext(ctx, `
			DELETE FROM collection_playlists
			WHERE collection_id = $1 AND playlist_id = $2`,
			collectionID, playlistID)
		if err != nil {
			return fmt.Errorf("unlink playlist: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return ErrPlaylistNotLinked
		}

		// Songs referenced only by this playlist go away entirely. Run the
		// delete before the reference removal so the removal never leaves an
		// empty reference set behind.
		res, err = tx.ExecContext(ctx, `
			DELETE FROM songs
			WHERE collection_id = $1
			  AND source_playlist_ids @> ARRAY[$2::text]
			  AND cardinality(source_playlist_ids) = 1`,
			collectionID, playlistID)
		if err != nil {
			return fmt.Errorf("delete sole-reference songs: %w", err)
		}
		deleted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		res, err = tx.ExecContext(ctx, `
			UPDATE songs
			SET source_playlist_ids = array_remove(source_playlist_ids, $2),
			    playlist_positions = playlist_positions - $2,
			    updated_at = $3
			WHERE collection_id = $1 AND $2 = ANY(source_playlist_ids)`,
			collectionID, playlistID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("remove playlist references: %w", err)
		}
		updated, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		remaining, err := refreshSongCountTx(ctx, tx, collectionID)
		if err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		tx = nil

		result = &UnlinkResult{Deleted: int(deleted), Updated: int(updated), Remaining: remaining}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ListSongsByCollection returns a collection's songs. A non-empty playlistID
// restricts the list to songs referencing that playlist; sort is one of the
// SortBy constants, with SortByPlaylist ordering by the playlist's stored
// positions.
func (s *Store) ListSongsByCollection(ctx context.Context, collectionID, sortBy, playlistID string) ([]*Song, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE collection_id = $1`
	args := []interface{}{collectionID}
	argIdx := 2

	if playlistID != "" {
		query += fmt.Sprintf(" AND $%d = ANY(source_playlist_ids)", argIdx)
		args = append(args, playlistID)
		argIdx++
	}

	switch sortBy {
	case SortByArtist:
		query += " ORDER BY LOWER(artist) ASC, LOWER(title) ASC"
	case SortByPlaylist:
		query += fmt.Sprintf(" ORDER BY COALESCE((playlist_positions->>$%d)::int, %d) ASC, LOWER(title) ASC", argIdx, unknownPosition)
		args = append(args, playlistID)
	default:
		query += " ORDER BY LOWER(title) ASC, LOWER(artist) ASC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	var songs []*Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate songs: %w", err)
	}

	return songs, nil
}

// ListUnfetchedSongs returns the collection's songs still waiting for lyrics.
func (s *Store) ListUnfetchedSongs(ctx context.Context, collectionID string) ([]*Song, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+songColumns+`
		FROM songs
		WHERE collection_id = $1 AND NOT lyrics_fetched
		ORDER BY LOWER(title) ASC`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list unfetched songs: %w", err)
	}
	defer rows.Close()

	var songs []*Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unfetched songs: %w", err)
	}

	return songs, nil
}

// GetSong returns a single song by ID.
func (s *Store) GetSong(ctx context.Context, songID string) (*Song, error) {
	song, err := scanSong(s.db.QueryRowContext(ctx,
		`SELECT `+songColumns+` FROM songs WHERE id = $1`, songID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSongNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get song: %w", err)
	}
	return song, nil
}

// UpdateSongNotes replaces a song's practice notes.
func (s *Store) UpdateSongNotes(ctx context.Context, songID, notes string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE songs
		SET notes = $1, updated_at = $2
		WHERE id = $3`,
		notes, time.Now().UTC(), songID)
	if err != nil {
		return fmt.Errorf("update notes: %w", err)
	}
	return requireSongAffected(res)
}

// UpdateSongLyrics stores a hand-edited lyric text. The song becomes
// customized, which shields it from automatic refetches.
func (s *Store) UpdateSongLyrics(ctx context.Context, songID, lyrics, numbered string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE songs
		SET lyrics = $1, lyrics_numbered = $2, is_customized = TRUE, lyrics_fetched = TRUE,
		    lyrics_fetch_error = '', updated_at = $3
		WHERE id = $4`,
		lyrics, numbered, time.Now().UTC(), songID)
	if err != nil {
		return fmt.Errorf("update lyrics: %w", err)
	}
	return requireSongAffected(res)
}

// SaveFetchedLyrics stores provider-fetched lyrics. The customization check
// happens in the same statement as the write, so a racing manual edit can
// never be overwritten: a customized song is only written when force is set.
// Returns false without error when the customization guard blocked the write.
func (s *Store) SaveFetchedLyrics(ctx context.Context, songID, lyrics, numbered string, force bool) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE songs
		SET lyrics = $1, lyrics_numbered = $2, lyrics_fetched = TRUE, is_customized = FALSE,
		    lyrics_fetch_error = '', lyrics_fetched_at = $3, updated_at = $3
		WHERE id = $4 AND (NOT is_customized OR $5)`,
		lyrics, numbered, now, songID, force)
	if err != nil {
		return false, fmt.Errorf("save fetched lyrics: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return true, nil
	}

	// Nothing written: either the guard held or the song is gone.
	var customized bool
	err = s.db.QueryRowContext(ctx, `SELECT is_customized FROM songs WHERE id = $1`, songID).Scan(&customized)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrSongNotFound
	}
	if err != nil {
		return false, fmt.Errorf("get song: %w", err)
	}
	return false, nil
}

// SetLyricsFetchError records why a lyric fetch failed, leaving the stored
// lyrics and fetch state untouched.
func (s *Store) SetLyricsFetchError(ctx context.Context, songID, marker string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE songs
		SET lyrics_fetch_error = $1, updated_at = $2
		WHERE id = $3`,
		marker, time.Now().UTC(), songID)
	if err != nil {
		return fmt.Errorf("set lyrics fetch error: %w", err)
	}
	return requireSongAffected(res)
}

// SetSongBPM stores a BPM value, flagging whether a user typed it in.
func (s *Store) SetSongBPM(ctx context.Context, songID, bpm string, manual bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE songs
		SET bpm = $1, bpm_is_manual = $2, updated_at = $3
		WHERE id = $4`,
		bpm, manual, time.Now().UTC(), songID)
	if err != nil {
		return fmt.Errorf("set bpm: %w", err)
	}
	return requireSongAffected(res)
}

// DeleteSong removes a song outright, ignoring its playlist references, and
// recomputes the collection's song_count.
func (s *Store) DeleteSong(ctx context.Context, songID string) error {
	return retryTxConflict(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			if tx != nil {
				_ = tx.Rollback()
			}
		}()

		var collectionID string
		err = tx.QueryRowContext(ctx, `
			DELETE FROM songs
			WHERE id = $1
			RETURNING collection_id`, songID).Scan(&collectionID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSongNotFound
		}
		if err != nil {
			return fmt.Errorf("delete song: %w", err)
		}

		if _, err := refreshSongCountTx(ctx, tx, collectionID); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		tx = nil
		return nil
	})
}

func requireSongAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrSongNotFound
	}
	return nil
}
