package store

import (
	"context"
	"fmt"
	"time"
)

// Keep only this many remembered playlists per user.
const rememberedPlaylistLimit = 10

// RememberedPlaylist is one entry of a user's playlist import history.
type RememberedPlaylist struct {
	PlaylistID    string    `json:"playlistId"`
	Name          string    `json:"name"`
	OwnerName     string    `json:"ownerName"`
	ImageURL      string    `json:"imageUrl"`
	TrackCount    int       `json:"trackCount"`
	AccessCount   int       `json:"accessCount"`
	FirstAccessed time.Time `json:"firstAccessed"`
	LastAccessed  time.Time `json:"lastAccessed"`
}

// RememberPlaylist upserts a playlist into the user's import history and
// trims the history to the most recently accessed entries.
func (s *Store) RememberPlaylist(ctx context.Context, userID int64, playlist LinkedPlaylist) error {
	now := time.Now().UTC()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO playlist_memory (user_id, playlist_id, name, owner_name, image_url, track_count, first_accessed, last_accessed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (user_id, playlist_id) DO UPDATE
		SET name = EXCLUDED.name, owner_name = EXCLUDED.owner_name,
		    image_url = EXCLUDED.image_url, track_count = EXCLUDED.track_count,
		    access_count = playlist_memory.access_count + 1, last_accessed = EXCLUDED.last_accessed`,
		userID, playlist.PlaylistID, playlist.Name, playlist.OwnerName,
		playlist.ImageURL, playlist.TrackCount, now); err != nil {
		return fmt.Errorf("remember playlist: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM playlist_memory
		WHERE user_id = $1 AND playlist_id NOT IN (
			SELECT playlist_id FROM playlist_memory
			WHERE user_id = $1
			ORDER BY last_accessed DESC
			LIMIT $2
		)`, userID, rememberedPlaylistLimit); err != nil {
		return fmt.Errorf("trim playlist memory: %w", err)
	}

	return nil
}

// ListRememberedPlaylists returns the user's import history, most recent first.
func (s *Store) ListRememberedPlaylists(ctx context.Context, userID int64) ([]*RememberedPlaylist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT playlist_id, name, owner_name, image_url, track_count, access_count, first_accessed, last_accessed
		FROM playlist_memory
		WHERE user_id = $1
		ORDER BY last_accessed DESC
		LIMIT $2`, userID, rememberedPlaylistLimit)
	if err != nil {
		return nil, fmt.Errorf("list remembered playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*RememberedPlaylist
	for rows.Next() {
		var rp RememberedPlaylist
		if err := rows.Scan(&rp.PlaylistID, &rp.Name, &rp.OwnerName, &rp.ImageURL,
			&rp.TrackCount, &rp.AccessCount, &rp.FirstAccessed, &rp.LastAccessed); err != nil {
			return nil, fmt.Errorf("scan remembered playlist: %w", err)
		}
		playlists = append(playlists, &rp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate remembered playlists: %w", err)
	}

	return playlists, nil
}

// ForgetPlaylist drops one entry from the user's import history.
func (s *Store) ForgetPlaylist(ctx context.Context, userID int64, playlistID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM playlist_memory
		WHERE user_id = $1 AND playlist_id = $2`, userID, playlistID)
	if err != nil {
		return fmt.Errorf("forget playlist: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrPlaylistNotRemembered
	}

	return nil
}
