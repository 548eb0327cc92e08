package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"bandpractice/internal/app/lyrics"
	"bandpractice/internal/app/playlists"
	"bandpractice/internal/app/songs"
	"bandpractice/internal/logging"
	"bandpractice/internal/musicapi"
	"bandpractice/internal/store"
)

// UserService captures the account operations needed by the HTTP handlers.
type UserService interface {
	Signup(ctx context.Context, username, password, displayName string) (store.User, string, error)
	Login(ctx context.Context, username, password string) (store.User, string, error)
	Me(ctx context.Context, userID int64) (store.User, error)
}

// CollectionService coordinates collection CRUD and the collaboration workflow.
type CollectionService interface {
	Create(ctx context.Context, ownerID int64, name, description string, isPublic bool) (*store.Collection, error)
	Get(ctx context.Context, id string, userID int64) (*store.Collection, error)
	List(ctx context.Context, userID int64) ([]*store.Collection, error)
	ListPublic(ctx context.Context, userID int64) ([]*store.PublicCollection, error)
	Update(ctx context.Context, id string, userID int64, name, description string, isPublic bool) (*store.Collection, error)
	Delete(ctx context.Context, id string, userID int64) (int, error)
	RequestAccess(ctx context.Context, id string, requesterID int64) (*store.AccessRequest, error)
	ListAccessRequests(ctx context.Context, id string, ownerID int64) ([]*store.AccessRequest, error)
	ResolveAccessRequest(ctx context.Context, id, requestID string, ownerID int64, accept bool) (*store.AccessRequest, error)
}

// SongService coordinates song-level operations.
type SongService interface {
	ListByCollection(ctx context.Context, collectionID string, userID int64, sortBy, playlistID string) ([]*store.Song, error)
	Get(ctx context.Context, songID string, userID int64) (*store.Song, error)
	UpdateNotes(ctx context.Context, songID string, userID int64, notes string) (*store.Song, error)
	UpdateLyrics(ctx context.Context, songID string, userID int64, text string) (*store.Song, error)
	SetBPM(ctx context.Context, songID string, userID int64, bpm string) (*store.Song, error)
	FetchBPM(ctx context.Context, songID string, userID int64) (*store.Song, error)
	Delete(ctx context.Context, songID string, userID int64) error
}

// PlaylistService coordinates playlist import and the per-user import memory.
type PlaylistService interface {
	Import(ctx context.Context, collectionID string, userID int64, raw string) (*playlists.ImportSummary, error)
	Unlink(ctx context.Context, collectionID, playlistID string, userID int64) (*playlists.UnlinkSummary, error)
	Preview(ctx context.Context, userID int64, raw string) (*musicapi.Playlist, error)
	Recent(ctx context.Context, userID int64) ([]*store.RememberedPlaylist, error)
	Forget(ctx context.Context, userID int64, playlistID string) error
}

// LyricsService runs lyric fetches behind the customization guard.
type LyricsService interface {
	Fetch(ctx context.Context, songID string, userID int64, force bool) (*lyrics.FetchResult, error)
	SweepCollection(ctx context.Context, collectionID string, userID int64) (*lyrics.SweepResult, error)
}

// Server wires HTTP handlers to the underlying services.
type Server struct {
	users       UserService
	collections CollectionService
	songs       SongService
	playlists   PlaylistService
	lyrics      LyricsService
}

// New configures a Server over the given services.
func New(
	users UserService,
	collections CollectionService,
	songs SongService,
	playlists PlaylistService,
	lyrics LyricsService,
) *Server {
	return &Server{
		users:       users,
		collections: collections,
		songs:       songs,
		playlists:   playlists,
		lyrics:      lyrics,
	}
}

// Routes exposes the HTTP handlers. Everything except health and the auth
// endpoints expects an authenticated user in the request context.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/v1/auth/signup", s.handleSignup)
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/me", s.handleMe)

	mux.HandleFunc("GET /api/v1/collections", s.handleListCollections)
	mux.HandleFunc("POST /api/v1/collections", s.handleCreateCollection)
	mux.HandleFunc("GET /api/v1/collections/public", s.handleListPublicCollections)
	mux.HandleFunc("GET /api/v1/collections/{id}", s.handleGetCollection)
	mux.HandleFunc("PUT /api/v1/collections/{id}", s.handleUpdateCollection)
	mux.HandleFunc("DELETE /api/v1/collections/{id}", s.handleDeleteCollection)
	mux.HandleFunc("POST /api/v1/collections/{id}/access-requests", s.handleRequestAccess)
	mux.HandleFunc("GET /api/v1/collections/{id}/access-requests", s.handleListAccessRequests)
	mux.HandleFunc("POST /api/v1/collections/{id}/access-requests/{requestID}/accept", s.handleAcceptAccessRequest)
	mux.HandleFunc("POST /api/v1/collections/{id}/access-requests/{requestID}/deny", s.handleDenyAccessRequest)

	mux.HandleFunc("POST /api/v1/collections/{id}/playlists", s.handleImportPlaylist)
	mux.HandleFunc("DELETE /api/v1/collections/{id}/playlists/{playlistID}", s.handleUnlinkPlaylist)
	mux.HandleFunc("GET /api/v1/collections/{id}/songs", s.handleListSongs)
	mux.HandleFunc("POST /api/v1/collections/{id}/lyrics/fetch-all", s.handleSweepLyrics)

	mux.HandleFunc("GET /api/v1/songs/{id}", s.handleGetSong)
	mux.HandleFunc("DELETE /api/v1/songs/{id}", s.handleDeleteSong)
	mux.HandleFunc("PATCH /api/v1/songs/{id}/notes", s.handleUpdateNotes)
	mux.HandleFunc("PUT /api/v1/songs/{id}/lyrics", s.handleUpdateLyrics)
	mux.HandleFunc("POST /api/v1/songs/{id}/lyrics/fetch", s.handleFetchLyrics)
	mux.HandleFunc("POST /api/v1/songs/{id}/bpm/fetch", s.handleFetchBPM)
	mux.HandleFunc("PATCH /api/v1/songs/{id}/bpm", s.handleSetBPM)

	mux.HandleFunc("GET /api/v1/playlists/preview", s.handlePreviewPlaylist)
	mux.HandleFunc("GET /api/v1/playlists/recent", s.handleRecentPlaylists)
	mux.HandleFunc("DELETE /api/v1/playlists/recent/{playlistID}", s.handleForgetPlaylist)

	return mux
}

type errorResponse struct {
	Error string `json:"error"`
}

// userID returns the authenticated user stashed in the request context by the
// auth middleware.
func userID(r *http.Request) (int64, bool) {
	return logging.UserID(r.Context())
}

// requireUser fetches the authenticated user or answers 401.
func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := userID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
	}
	return id, ok
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, store.ErrForbidden), errors.Is(err, store.ErrPersonalCollection):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrCollectionNotFound),
		errors.Is(err, store.ErrSongNotFound),
		errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrRequestNotFound),
		errors.Is(err, store.ErrPlaylistNotLinked),
		errors.Is(err, store.ErrPlaylistNotRemembered),
		errors.Is(err, musicapi.ErrNoMatch):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrUserExists), errors.Is(err, store.ErrRequestExists):
		status = http.StatusConflict
	case errors.Is(err, store.ErrInvalidUser),
		errors.Is(err, store.ErrInvalidCollection),
		errors.Is(err, playlists.ErrBadPlaylistRef),
		errors.Is(err, songs.ErrInvalidSort):
		status = http.StatusBadRequest
	case errors.Is(err, musicapi.ErrUpstream):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		logging.WithContext(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeJSON(w, status, errorResponse{Error: "internal server error"})
		return
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON payload"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// parseBool reads a query flag, treating "1", "true", "yes" as set.
func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
