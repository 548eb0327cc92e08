package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bandpractice/internal/app/lyrics"
	"bandpractice/internal/app/playlists"
	"bandpractice/internal/logging"
	"bandpractice/internal/musicapi"
	"bandpractice/internal/store"
)

type stubUsers struct {
	user  store.User
	token string
	err   error
}

func (s *stubUsers) Signup(ctx context.Context, username, password, displayName string) (store.User, string, error) {
	return s.user, s.token, s.err
}

func (s *stubUsers) Login(ctx context.Context, username, password string) (store.User, string, error) {
	return s.user, s.token, s.err
}

func (s *stubUsers) Me(ctx context.Context, userID int64) (store.User, error) {
	return s.user, s.err
}

type stubCollections struct {
	collection *store.Collection
	public     []*store.PublicCollection
	request    *store.AccessRequest
	deleted    int
	err        error
}

func (s *stubCollections) Create(ctx context.Context, ownerID int64, name, description string, isPublic bool) (*store.Collection, error) {
	return s.collection, s.err
}

func (s *stubCollections) Get(ctx context.Context, id string, userID int64) (*store.Collection, error) {
	return s.collection, s.err
}

func (s *stubCollections) List(ctx context.Context, userID int64) ([]*store.Collection, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []*store.Collection{s.collection}, nil
}

func (s *stubCollections) ListPublic(ctx context.Context, userID int64) ([]*store.PublicCollection, error) {
	return s.public, s.err
}

func (s *stubCollections) Update(ctx context.Context, id string, userID int64, name, description string, isPublic bool) (*store.Collection, error) {
	return s.collection, s.err
}

func (s *stubCollections) Delete(ctx context.Context, id string, userID int64) (int, error) {
	return s.deleted, s.err
}

func (s *stubCollections) RequestAccess(ctx context.Context, id string, requesterID int64) (*store.AccessRequest, error) {
	return s.request, s.err
}

func (s *stubCollections) ListAccessRequests(ctx context.Context, id string, ownerID int64) ([]*store.AccessRequest, error) {
	return nil, s.err
}

func (s *stubCollections) ResolveAccessRequest(ctx context.Context, id, requestID string, ownerID int64, accept bool) (*store.AccessRequest, error) {
	return s.request, s.err
}

type stubSongs struct {
	song *store.Song
	err  error
}

func (s *stubSongs) ListByCollection(ctx context.Context, collectionID string, userID int64, sortBy, playlistID string) ([]*store.Song, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []*store.Song{s.song}, nil
}

func (s *stubSongs) Get(ctx context.Context, songID string, userID int64) (*store.Song, error) {
	return s.song, s.err
}

func (s *stubSongs) UpdateNotes(ctx context.Context, songID string, userID int64, notes string) (*store.Song, error) {
	return s.song, s.err
}

func (s *stubSongs) UpdateLyrics(ctx context.Context, songID string, userID int64, text string) (*store.Song, error) {
	return s.song, s.err
}

func (s *stubSongs) SetBPM(ctx context.Context, songID string, userID int64, bpm string) (*store.Song, error) {
	return s.song, s.err
}

func (s *stubSongs) FetchBPM(ctx context.Context, songID string, userID int64) (*store.Song, error) {
	return s.song, s.err
}

func (s *stubSongs) Delete(ctx context.Context, songID string, userID int64) error {
	return s.err
}

type stubPlaylists struct {
	importSummary *playlists.ImportSummary
	unlinkSummary *playlists.UnlinkSummary
	playlist      *musicapi.Playlist
	err           error
}

func (s *stubPlaylists) Import(ctx context.Context, collectionID string, userID int64, raw string) (*playlists.ImportSummary, error) {
	return s.importSummary, s.err
}

func (s *stubPlaylists) Unlink(ctx context.Context, collectionID, playlistID string, userID int64) (*playlists.UnlinkSummary, error) {
	return s.unlinkSummary, s.err
}

func (s *stubPlaylists) Preview(ctx context.Context, userID int64, raw string) (*musicapi.Playlist, error) {
	return s.playlist, s.err
}

func (s *stubPlaylists) Recent(ctx context.Context, userID int64) ([]*store.RememberedPlaylist, error) {
	return nil, s.err
}

func (s *stubPlaylists) Forget(ctx context.Context, userID int64, playlistID string) error {
	return s.err
}

type stubLyrics struct {
	fetch *lyrics.FetchResult
	sweep *lyrics.SweepResult
	err   error
}

func (s *stubLyrics) Fetch(ctx context.Context, songID string, userID int64, force bool) (*lyrics.FetchResult, error) {
	return s.fetch, s.err
}

func (s *stubLyrics) SweepCollection(ctx context.Context, collectionID string, userID int64) (*lyrics.SweepResult, error) {
	return s.sweep, s.err
}

type stubs struct {
	users       *stubUsers
	collections *stubCollections
	songs       *stubSongs
	playlists   *stubPlaylists
	lyrics      *stubLyrics
}

func newTestServer(s stubs) http.Handler {
	if s.users == nil {
		s.users = &stubUsers{}
	}
	if s.collections == nil {
		s.collections = &stubCollections{}
	}
	if s.songs == nil {
		s.songs = &stubSongs{}
	}
	if s.playlists == nil {
		s.playlists = &stubPlaylists{}
	}
	if s.lyrics == nil {
		s.lyrics = &stubLyrics{}
	}
	return New(s.users, s.collections, s.songs, s.playlists, s.lyrics).Routes()
}

// doRequest issues a request against the handler; uid 0 means unauthenticated.
func doRequest(handler http.Handler, method, target, body string, uid int64) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if uid != 0 {
		req = req.WithContext(logging.WithUser(req.Context(), uid))
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestSignupCreated(t *testing.T) {
	handler := newTestServer(stubs{users: &stubUsers{user: store.User{ID: 1, Username: "alice"}, token: "tok"}})

	rr := doRequest(handler, http.MethodPost, "/api/v1/auth/signup", `{"username":"alice","password":"secret"}`, 0)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp sessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token != "tok" || resp.User.Username != "alice" {
		t.Fatalf("unexpected session %+v", resp)
	}
}

func TestSignupConflict(t *testing.T) {
	handler := newTestServer(stubs{users: &stubUsers{err: store.ErrUserExists}})

	rr := doRequest(handler, http.MethodPost, "/api/v1/auth/signup", `{"username":"alice","password":"secret"}`, 0)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	handler := newTestServer(stubs{users: &stubUsers{err: store.ErrInvalidCredentials}})

	rr := doRequest(handler, http.MethodPost, "/api/v1/auth/login", `{"username":"alice","password":"wrong"}`, 0)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestAuthenticatedEndpointsRequireUser(t *testing.T) {
	handler := newTestServer(stubs{})

	for _, target := range []string{
		"/api/v1/collections",
		"/api/v1/auth/me",
		"/api/v1/playlists/recent",
	} {
		rr := doRequest(handler, http.MethodGet, target, "", 0)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 without a user, got %d", target, rr.Code)
		}
	}
}

func TestBlockedLyricFetchIsNotAnError(t *testing.T) {
	handler := newTestServer(stubs{lyrics: &stubLyrics{
		fetch: &lyrics.FetchResult{Status: lyrics.StatusBlocked, Song: &store.Song{ID: "song-1", IsCustomized: true}},
	}})

	rr := doRequest(handler, http.MethodPost, "/api/v1/songs/song-1/lyrics/fetch", "", 7)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for a blocked fetch, got %d", rr.Code)
	}

	var resp lyrics.FetchResult
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != lyrics.StatusBlocked {
		t.Fatalf("expected blocked status, got %q", resp.Status)
	}
}

func TestForbiddenMapsTo403(t *testing.T) {
	handler := newTestServer(stubs{collections: &stubCollections{err: store.ErrForbidden}})

	rr := doRequest(handler, http.MethodGet, "/api/v1/collections/col-1", "", 9)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestPersonalCollectionDeleteMapsTo403(t *testing.T) {
	handler := newTestServer(stubs{collections: &stubCollections{err: store.ErrPersonalCollection}})

	rr := doRequest(handler, http.MethodDelete, "/api/v1/collections/col-1", "", 7)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestMissingSongMapsTo404(t *testing.T) {
	handler := newTestServer(stubs{songs: &stubSongs{err: store.ErrSongNotFound}})

	rr := doRequest(handler, http.MethodGet, "/api/v1/songs/missing", "", 7)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestBadPlaylistRefMapsTo400(t *testing.T) {
	handler := newTestServer(stubs{playlists: &stubPlaylists{err: playlists.ErrBadPlaylistRef}})

	rr := doRequest(handler, http.MethodPost, "/api/v1/collections/col-1/playlists", `{"playlist":"garbage"}`, 7)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestUpstreamFailureMapsTo502(t *testing.T) {
	handler := newTestServer(stubs{playlists: &stubPlaylists{err: musicapi.ErrUpstream}})

	rr := doRequest(handler, http.MethodGet, "/api/v1/playlists/preview?url=pl1", "", 7)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
}

func TestProviderMissMapsTo404(t *testing.T) {
	handler := newTestServer(stubs{playlists: &stubPlaylists{err: musicapi.ErrNoMatch}})

	rr := doRequest(handler, http.MethodGet, "/api/v1/playlists/preview?url=pl1", "", 7)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestDeleteSongNoContent(t *testing.T) {
	handler := newTestServer(stubs{})

	rr := doRequest(handler, http.MethodDelete, "/api/v1/songs/song-1", "", 7)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

func TestDeleteCollectionReportsSongCount(t *testing.T) {
	handler := newTestServer(stubs{collections: &stubCollections{deleted: 12}})

	rr := doRequest(handler, http.MethodDelete, "/api/v1/collections/col-1", "", 7)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp struct {
		SongsDeleted int `json:"songsDeleted"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SongsDeleted != 12 {
		t.Fatalf("expected 12 songs deleted, got %d", resp.SongsDeleted)
	}
}

func TestInvalidJSONMapsTo400(t *testing.T) {
	handler := newTestServer(stubs{})

	rr := doRequest(handler, http.MethodPost, "/api/v1/auth/signup", `{not json`, 0)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHealthIsOpen(t *testing.T) {
	handler := newTestServer(stubs{})

	rr := doRequest(handler, http.MethodGet, "/api/v1/health", "", 0)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
