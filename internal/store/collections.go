package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Collection groups the songs a band rehearses together.
type Collection struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	OwnerID         int64            `json:"ownerId"`
	IsPersonal      bool             `json:"isPersonal"`
	IsPublic        bool             `json:"isPublic"`
	CollaboratorIDs []int64          `json:"collaboratorIds"`
	SongCount       int              `json:"songCount"`
	LinkedPlaylists []LinkedPlaylist `json:"linkedPlaylists,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// LinkedPlaylist records a streaming playlist whose tracks were imported into a collection.
type LinkedPlaylist struct {
	PlaylistID string    `json:"playlistId"`
	Name       string    `json:"name"`
	OwnerName  string    `json:"ownerName"`
	ImageURL   string    `json:"imageUrl"`
	TrackCount int       `json:"trackCount"`
	LinkedAt   time.Time `json:"linkedAt"`
}

// PublicCollection is a shared collection as seen by a browsing user.
type PublicCollection struct {
	Collection
	OwnerName       string `json:"ownerName"`
	AccessRequested bool   `json:"accessRequested"`
}

// Access request states.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestDenied   = "denied"
)

// AccessRequest is a request to collaborate on a public collection.
type AccessRequest struct {
	ID           string     `json:"id"`
	CollectionID string     `json:"collectionId"`
	RequesterID  int64      `json:"requesterId"`
	Requester    string     `json:"requester,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	ResolvedAt   *time.Time `json:"resolvedAt,omitempty"`
}

func validateCollectionName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCollection)
	}
	return nil
}

// CreateCollection persists a new collection owned by the given user.
func (s *Store) CreateCollection(ctx context.Context, ownerID int64, name, description string, isPublic bool) (*Collection, error) {
	name = strings.TrimSpace(name)
	if err := validateCollectionName(name); err != nil {
		return nil, err
	}

	collection := &Collection{
		ID:              uuid.NewString(),
		Name:            name,
		Description:     strings.TrimSpace(description),
		OwnerID:         ownerID,
		IsPublic:        isPublic,
		CollaboratorIDs: []int64{},
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO collections (id, name, description, owner_id, is_public)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		collection.ID, collection.Name, collection.Description, ownerID, isPublic,
	).Scan(&collection.CreatedAt, &collection.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert collection: %w", err)
	}

	return collection, nil
}

// GetCollection returns a collection together with its linked playlists.
func (s *Store) GetCollection(ctx context.Context, id string) (*Collection, error) {
	var c Collection
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(description, ''), owner_id, is_personal, is_public,
		       collaborator_ids, song_count, created_at, updated_at
		FROM collections
		WHERE id = $1`, id).Scan(
		&c.ID, &c.Name, &c.Description, &c.OwnerID, &c.IsPersonal, &c.IsPublic,
		pq.Array(&c.CollaboratorIDs), &c.SongCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}

	playlists, err := s.listLinkedPlaylists(ctx, id)
	if err != nil {
		return nil, err
	}
	c.LinkedPlaylists = playlists

	return &c, nil
}

// ListCollectionsForUser returns every collection the user owns or collaborates
// on, personal collection first.
func (s *Store) ListCollectionsForUser(ctx context.Context, userID int64) ([]*Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(description, ''), owner_id, is_personal, is_public,
		       collaborator_ids, song_count, created_at, updated_at
		FROM collections
		WHERE owner_id = $1 OR $1 = ANY(collaborator_ids)
		ORDER BY is_personal DESC, name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var collections []*Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Description, &c.OwnerID, &c.IsPersonal, &c.IsPublic,
			pq.Array(&c.CollaboratorIDs), &c.SongCount, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		collections = append(collections, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}

	return collections, nil
}

// ListPublicCollections returns other users' public collections, each flagged
// with whether the viewer already has a pending access request.
func (s *Store) ListPublicCollections(ctx context.Context, viewerID int64) ([]*PublicCollection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, COALESCE(c.description, ''), c.owner_id, c.is_personal, c.is_public,
		       c.collaborator_ids, c.song_count, c.created_at, c.updated_at,
		       u.display_name,
		       EXISTS (
		           SELECT 1 FROM access_requests ar
		           WHERE ar.collection_id = c.id AND ar.requester_id = $1 AND ar.status = 'pending'
		       ) AS access_requested
		FROM collections c
		JOIN users u ON u.id = c.owner_id
		WHERE c.is_public AND c.owner_id <> $1
		ORDER BY c.name ASC`, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list public collections: %w", err)
	}
	defer rows.Close()

	var collections []*PublicCollection
	for rows.Next() {
		var c PublicCollection
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Description, &c.OwnerID, &c.IsPersonal, &c.IsPublic,
			pq.Array(&c.CollaboratorIDs), &c.SongCount, &c.CreatedAt, &c.UpdatedAt,
			&c.OwnerName, &c.AccessRequested,
		); err != nil {
			return nil, fmt.Errorf("scan public collection: %w", err)
		}
		collections = append(collections, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate public collections: %w", err)
	}

	return collections, nil
}

// UpdateCollection replaces the mutable attributes of a collection.
func (s *Store) UpdateCollection(ctx context.Context, id, name, description string, isPublic bool) error {
	name = strings.TrimSpace(name)
	if err := validateCollectionName(name); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE collections
		SET name = $1, description = $2, is_public = $3, updated_at = $4
		WHERE id = $5`,
		name, strings.TrimSpace(description), isPublic, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update collection: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCollectionNotFound
	}

	return nil
}

// DeleteCollection removes a collection and every song in it regardless of
// playlist references. Returns the number of songs deleted alongside it.
func (s *Store) DeleteCollection(ctx context.Context, id string) (int, error) {
	var songsDeleted int

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

		res, err := tx.ExecContext(ctx, `DELETE FROM songs WHERE collection_id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete songs: %w", err)
		}
		deleted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}

		res, err = tx.ExecContext(ctx, `DELETE FROM collections WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete collection: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return ErrCollectionNotFound
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		tx = nil

		songsDeleted = int(deleted)
		return nil
	})
	if err != nil {
		return 0, err
	}

	return songsDeleted, nil
}

// CreateAccessRequest records a pending collaboration request.
func (s *Store) CreateAccessRequest(ctx context.Context, collectionID string, requesterID int64) (*AccessRequest, error) {
	request := &AccessRequest{
		ID:           uuid.NewString(),
		CollectionID: collectionID,
		RequesterID:  requesterID,
		Status:       RequestPending,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO access_requests (id, collection_id, requester_id)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		request.ID, collectionID, requesterID,
	).Scan(&request.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRequestExists
		}
		return nil, fmt.Errorf("insert access request: %w", err)
	}

	return request, nil
}

// ListPendingAccessRequests returns the open requests for a collection with
// the requesters' display names.
func (s *Store) ListPendingAccessRequests(ctx context.Context, collectionID string) ([]*AccessRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ar.id, ar.collection_id, ar.requester_id, u.display_name, ar.status, ar.created_at
		FROM access_requests ar
		JOIN users u ON u.id = ar.requester_id
		WHERE ar.collection_id = $1 AND ar.status = 'pending'
		ORDER BY ar.created_at ASC`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list access requests: %w", err)
	}
	defer rows.Close()

	var requests []*AccessRequest
	for rows.Next() {
		var request AccessRequest
		if err := rows.Scan(
			&request.ID, &request.CollectionID, &request.RequesterID,
			&request.Requester, &request.Status, &request.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan access request: %w", err)
		}
		requests = append(requests, &request)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access requests: %w", err)
	}

	return requests, nil
}

// ResolveAccessRequest closes a pending request. Accepting it also adds the
// requester to the collection's collaborators.
func (s *Store) ResolveAccessRequest(ctx context.Context, collectionID, requestID string, accept bool) (*AccessRequest, error) {
	status := RequestDenied
	if accept {
		status = RequestAccepted
	}

	var request *AccessRequest
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

		now := time.Now().UTC()
		request = &AccessRequest{ID: requestID, CollectionID: collectionID, Status: status, ResolvedAt: &now}
		err = tx.QueryRowContext(ctx, `
			UPDATE access_requests
			SET status = $1, resolved_at = $2
			WHERE id = $3 AND collection_id = $4 AND status = 'pending'
			RETURNING requester_id, created_at`,
			status, now, requestID, collectionID,
		).Scan(&request.RequesterID, &request.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRequestNotFound
		}
		if err != nil {
			return fmt.Errorf("resolve access request: %w", err)
		}

		if accept {
			if _, err := tx.ExecContext(ctx, `
				UPDATE collections
				SET collaborator_ids = array_append(collaborator_ids, $1), updated_at = $2
				WHERE id = $3 AND NOT ($1 = ANY(collaborator_ids))`,
				request.RequesterID, now, collectionID,
			); err != nil {
				return fmt.Errorf("add collaborator: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		tx = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	return request, nil
}

func (s *Store) listLinkedPlaylists(ctx context.Context, collectionID string) ([]LinkedPlaylist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT playlist_id, name, COALESCE(owner_name, ''), COALESCE(image_url, ''), track_count, linked_at
		FROM collection_playlists
		WHERE collection_id = $1
		ORDER BY linked_at DESC`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list linked playlists: %w", err)
	}
	defer rows.Close()

	var playlists []LinkedPlaylist
	for rows.Next() {
		var lp LinkedPlaylist
		if err := rows.Scan(&lp.PlaylistID, &lp.Name, &lp.OwnerName, &lp.ImageURL, &lp.TrackCount, &lp.LinkedAt); err != nil {
			return nil, fmt.Errorf("scan linked playlist: %w", err)
		}
		playlists = append(playlists, lp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate linked playlists: %w", err)
	}

	return playlists, nil
}

// refreshSongCountTx recomputes a collection's song_count from the songs table
// inside the transaction that changed it.
func refreshSongCountTx(ctx context.Context, tx *sql.Tx, collectionID string) (int, error) {
	var count int
	err := tx.QueryRowContext(ctx, `
		UPDATE collections
		SET song_count = (SELECT COUNT(*) FROM songs WHERE collection_id = $1), updated_at = $2
		WHERE id = $1
		RETURNING song_count`,
		collectionID, time.Now().UTC(),
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrCollectionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("refresh song count: %w", err)
	}
	return count, nil
}
