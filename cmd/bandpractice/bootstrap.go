package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bandpractice/internal/store"
)

// bootstrapDemoData seeds a demo account with a small practice collection.
// It only runs against an empty users table, so restarts never duplicate or
// clobber real data.
func bootstrapDemoData(ctx context.Context, db *sql.DB, dataStore *store.Store) error {
	var userCount int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&userCount); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if userCount > 0 {
		return nil
	}

	user, err := dataStore.CreateUser(ctx, "demo", "demo123", "Demo Band")
	if err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return nil
		}
		return fmt.Errorf("bootstrap demo user: %w", err)
	}

	collection, err := dataStore.CreateCollection(ctx, user.ID, "Rehearsal Set", "Songs for the weekly rehearsal", false)
	if err != nil {
		return fmt.Errorf("bootstrap demo collection: %w", err)
	}

	playlist := store.LinkedPlaylist{
		PlaylistID: "demoplaylist001",
		Name:       "Warmup Standards",
		OwnerName:  "Demo Band",
		TrackCount: 2,
	}
	tracks := []store.PlaylistTrack{
		{ExternalID: "demotrack001", Title: "Midnight Run", Artist: "The Night Owls", Album: "First Takes", DurationMS: 214000, Position: 0},
		{ExternalID: "demotrack002", Title: "Cold Coffee", Artist: "The Night Owls", Album: "First Takes", DurationMS: 189000, Position: 1},
	}

	if _, err := dataStore.ImportPlaylistSongs(ctx, collection.ID, user.ID, playlist, tracks); err != nil {
		return fmt.Errorf("bootstrap demo songs: %w", err)
	}

	return nil
}
