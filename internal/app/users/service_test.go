package users

import (
	"context"
	"errors"
	"testing"

	"bandpractice/internal/store"
)

type fakeStore struct {
	user    store.User
	authErr error
}

func (f *fakeStore) CreateUser(ctx context.Context, username, password, displayName string) (store.User, error) {
	return f.user, nil
}

func (f *fakeStore) Authenticate(ctx context.Context, username, password string) (int64, error) {
	if f.authErr != nil {
		return 0, f.authErr
	}
	return f.user.ID, nil
}

func (f *fakeStore) UserByID(ctx context.Context, id int64) (store.User, error) {
	return f.user, nil
}

type fakeIssuer struct {
	lastUserID int64
}

func (f *fakeIssuer) Generate(userID int64) (string, error) {
	f.lastUserID = userID
	return "signed-token", nil
}

func TestSignupIssuesToken(t *testing.T) {
	issuer := &fakeIssuer{}
	svc := New(&fakeStore{user: store.User{ID: 1, Username: "alice"}}, issuer)

	user, token, err := svc.Signup(context.Background(), "alice", "secret", "")
	if err != nil {
		t.Fatalf("Signup error: %v", err)
	}
	if user.Username != "alice" || token == "" {
		t.Fatalf("expected a signed-in session, got user %+v token %q", user, token)
	}
	if issuer.lastUserID != 1 {
		t.Fatalf("token minted for wrong user %d", issuer.lastUserID)
	}
}

func TestLoginReturnsUserAndToken(t *testing.T) {
	svc := New(&fakeStore{user: store.User{ID: 2, Username: "bob"}}, &fakeIssuer{})

	user, token, err := svc.Login(context.Background(), "bob", "secret")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if user.ID != 2 || token == "" {
		t.Fatalf("unexpected session: user %+v token %q", user, token)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	svc := New(&fakeStore{authErr: store.ErrInvalidCredentials}, &fakeIssuer{})

	_, _, err := svc.Login(context.Background(), "bob", "wrong")
	if !errors.Is(err, store.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
