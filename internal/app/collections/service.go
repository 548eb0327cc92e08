package collections

import (
	"context"
	"fmt"
	"strings"

	"bandpractice/internal/store"
)

// AccessLevel ranks what a user may do with a collection.
type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessViewer
	AccessCollaborator
	AccessOwner
)

func (l AccessLevel) String() string {
	switch l {
	case AccessOwner:
		return "owner"
	case AccessCollaborator:
		return "collaborator"
	case AccessViewer:
		return "viewer"
	default:
		return "none"
	}
}

// LevelFor returns the user's access level on a collection. Public collections
// grant viewer access to everyone.
func LevelFor(c *store.Collection, userID int64) AccessLevel {
	if c.OwnerID == userID {
		return AccessOwner
	}
	for _, id := range c.CollaboratorIDs {
		if id == userID {
			return AccessCollaborator
		}
	}
	if c.IsPublic {
		return AccessViewer
	}
	return AccessNone
}

// Store defines the persistence operations for collections and sharing.
type Store interface {
	CreateCollection(ctx context.Context, ownerID int64, name, description string, isPublic bool) (*store.Collection, error)
	GetCollection(ctx context.Context, id string) (*store.Collection, error)
	ListCollectionsForUser(ctx context.Context, userID int64) ([]*store.Collection, error)
	ListPublicCollections(ctx context.Context, viewerID int64) ([]*store.PublicCollection, error)
	UpdateCollection(ctx context.Context, id, name, description string, isPublic bool) error
	DeleteCollection(ctx context.Context, id string) (int, error)
	CreateAccessRequest(ctx context.Context, collectionID string, requesterID int64) (*store.AccessRequest, error)
	ListPendingAccessRequests(ctx context.Context, collectionID string) ([]*store.AccessRequest, error)
	ResolveAccessRequest(ctx context.Context, collectionID, requestID string, accept bool) (*store.AccessRequest, error)
}

// Service coordinates collection CRUD and the collaboration workflow.
type Service interface {
	Create(ctx context.Context, ownerID int64, name, description string, isPublic bool) (*store.Collection, error)
	Get(ctx context.Context, id string, userID int64) (*store.Collection, error)
	List(ctx context.Context, userID int64) ([]*store.Collection, error)
	ListPublic(ctx context.Context, userID int64) ([]*store.PublicCollection, error)
	Update(ctx context.Context, id string, userID int64, name, description string, isPublic bool) (*store.Collection, error)
	Delete(ctx context.Context, id string, userID int64) (int, error)
	RequestAccess(ctx context.Context, id string, requesterID int64) (*store.AccessRequest, error)
	ListAccessRequests(ctx context.Context, id string, ownerID int64) ([]*store.AccessRequest, error)
	ResolveAccessRequest(ctx context.Context, id, requestID string, ownerID int64, accept bool) (*store.AccessRequest, error)

	// Authorize loads a collection and checks the caller's access against a
	// minimum level; other services use it before touching songs.
	Authorize(ctx context.Context, id string, userID int64, min AccessLevel) (*store.Collection, error)
}

type service struct {
	store Store
}

// New constructs a collections Service.
func New(store Store) Service {
	return &service{store: store}
}

func (s *service) Create(ctx context.Context, ownerID int64, name, description string, isPublic bool) (*store.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.CreateCollection(ctx, ownerID, name, description, isPublic)
}

func (s *service) Get(ctx context.Context, id string, userID int64) (*store.Collection, error) {
	return s.Authorize(ctx, id, userID, AccessViewer)
}

func (s *service) List(ctx context.Context, userID int64) ([]*store.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListCollectionsForUser(ctx, userID)
}

func (s *service) ListPublic(ctx context.Context, userID int64) ([]*store.PublicCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListPublicCollections(ctx, userID)
}

// Update renames or re-describes a collection. The personal collection keeps
// its name and stays private; only its description may change.
func (s *service) Update(ctx context.Context, id string, userID int64, name, description string, isPublic bool) (*store.Collection, error) {
	collection, err := s.Authorize(ctx, id, userID, AccessOwner)
	if err != nil {
		return nil, err
	}

	if collection.IsPersonal && (strings.TrimSpace(name) != collection.Name || isPublic) {
		return nil, store.ErrPersonalCollection
	}

	if err := s.store.UpdateCollection(ctx, id, name, description, isPublic); err != nil {
		return nil, err
	}
	return s.store.GetCollection(ctx, id)
}

// Delete removes the collection and all its songs, returning how many songs
// went with it.
func (s *service) Delete(ctx context.Context, id string, userID int64) (int, error) {
	collection, err := s.Authorize(ctx, id, userID, AccessOwner)
	if err != nil {
		return 0, err
	}

	if collection.IsPersonal {
		return 0, store.ErrPersonalCollection
	}

	return s.store.DeleteCollection(ctx, id)
}

func (s *service) RequestAccess(ctx context.Context, id string, requesterID int64) (*store.AccessRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collection, err := s.store.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}

	switch level := LevelFor(collection, requesterID); {
	case level == AccessOwner:
		return nil, fmt.Errorf("%w: cannot request access to an owned collection", store.ErrForbidden)
	case level == AccessCollaborator:
		return nil, fmt.Errorf("%w: already a collaborator", store.ErrRequestExists)
	case !collection.IsPublic:
		return nil, store.ErrForbidden
	}

	return s.store.CreateAccessRequest(ctx, id, requesterID)
}

func (s *service) ListAccessRequests(ctx context.Context, id string, ownerID int64) ([]*store.AccessRequest, error) {
	if _, err := s.Authorize(ctx, id, ownerID, AccessOwner); err != nil {
		return nil, err
	}
	return s.store.ListPendingAccessRequests(ctx, id)
}

func (s *service) ResolveAccessRequest(ctx context.Context, id, requestID string, ownerID int64, accept bool) (*store.AccessRequest, error) {
	if _, err := s.Authorize(ctx, id, ownerID, AccessOwner); err != nil {
		return nil, err
	}
	return s.store.ResolveAccessRequest(ctx, id, requestID, accept)
}

func (s *service) Authorize(ctx context.Context, id string, userID int64, min AccessLevel) (*store.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collection, err := s.store.GetCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	if LevelFor(collection, userID) < min {
		return nil, store.ErrForbidden
	}

	return collection, nil
}
