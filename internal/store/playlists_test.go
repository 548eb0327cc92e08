package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRememberPlaylistUpsertsAndTrims(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := New(db)

	mock.ExpectExec(regexp.QuoteMeta(`
			INSERT INTO playlist_memory (user_id, playlist_id, name, owner_name, image_url, track_count, first_accessed, last_accessed)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			ON CONFLICT (user_id, playlist_id) DO UPDATE
			SET name = EXCLUDED.name, owner_name = EXCLUDED.owner_name,
			    image_url = EXCLUDED.image_url, track_count = EXCLUDED.track_count,
			    access_count = playlist_memory.access_count + 1, last_accessed = EXCLUDED.last_accessed`)).
		WithArgs(int64(7), "pl-1", "Warmup Standards", "Demo Band", "", 12, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(regexp.QuoteMeta(`
			DELETE FROM playlist_memory
			WHERE user_id = $1 AND playlist_id NOT IN (
				SELECT playlist_id FROM playlist_memory
				WHERE user_id = $1
				ORDER BY last_accessed DESC
				LIMIT $2
			)`)).
		WithArgs(int64(7), rememberedPlaylistLimit).
		WillReturnResult(sqlmock.NewResult(0, 0))

	playlist := LinkedPlaylist{PlaylistID: "pl-1", Name: "Warmup Standards", OwnerName: "Demo Band", TrackCount: 12}
	if err := s.RememberPlaylist(context.Background(), 7, playlist); err != nil {
		t.Fatalf("RememberPlaylist error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestForgetPlaylistNotRemembered(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := New(db)

	mock.ExpectExec(regexp.QuoteMeta(`
			DELETE FROM playlist_memory
			WHERE user_id = $1 AND playlist_id = $2`)).
		WithArgs(int64(7), "pl-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = s.ForgetPlaylist(context.Background(), 7, "pl-9")
	if !errors.Is(err, ErrPlaylistNotRemembered) {
		t.Fatalf("expected ErrPlaylistNotRemembered, got %v", err)
	}
}
