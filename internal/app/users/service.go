package users

import (
	"context"

	"bandpractice/internal/store"
)

// Store describes the persistence operations required by the user service.
type Store interface {
	CreateUser(ctx context.Context, username, password, displayName string) (store.User, error)
	Authenticate(ctx context.Context, username, password string) (int64, error)
	UserByID(ctx context.Context, id int64) (store.User, error)
}

// TokenIssuer mints session tokens for authenticated users.
type TokenIssuer interface {
	Generate(userID int64) (string, error)
}

// Service exposes account workflows.
type Service interface {
	Signup(ctx context.Context, username, password, displayName string) (store.User, string, error)
	Login(ctx context.Context, username, password string) (store.User, string, error)
	Me(ctx context.Context, userID int64) (store.User, error)
}

type service struct {
	store  Store
	tokens TokenIssuer
}

// New wires a Service backed by the provided Store and token issuer.
func New(store Store, tokens TokenIssuer) Service {
	return &service{store: store, tokens: tokens}
}

// Signup registers the account and signs the new user in.
func (s *service) Signup(ctx context.Context, username, password, displayName string) (store.User, string, error) {
	if err := ctx.Err(); err != nil {
		return store.User{}, "", err
	}

	user, err := s.store.CreateUser(ctx, username, password, displayName)
	if err != nil {
		return store.User{}, "", err
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return store.User{}, "", err
	}

	return user, token, nil
}

func (s *service) Login(ctx context.Context, username, password string) (store.User, string, error) {
	if err := ctx.Err(); err != nil {
		return store.User{}, "", err
	}

	userID, err := s.store.Authenticate(ctx, username, password)
	if err != nil {
		return store.User{}, "", err
	}

	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return store.User{}, "", err
	}

	token, err := s.tokens.Generate(userID)
	if err != nil {
		return store.User{}, "", err
	}

	return user, token, nil
}

func (s *service) Me(ctx context.Context, userID int64) (store.User, error) {
	if err := ctx.Err(); err != nil {
		return store.User{}, err
	}
	return s.store.UserByID(ctx, userID)
}
