package httpapi

import (
	"net/http"
)

type importPlaylistRequest struct {
	// Accepts a bare playlist ID, a spotify:playlist: URI, or a share URL.
	Playlist string `json:"playlist"`
}

func (s *Server) handleImportPlaylist(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req importPlaylistRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	summary, err := s.playlists.Import(r.Context(), r.PathValue("id"), uid, req.Playlist)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleUnlinkPlaylist(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	summary, err := s.playlists.Unlink(r.Context(), r.PathValue("id"), r.PathValue("playlistID"), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handlePreviewPlaylist(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	raw := r.URL.Query().Get("url")
	playlist, err := s.playlists.Preview(r.Context(), uid, raw)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, playlist)
}

func (s *Server) handleRecentPlaylists(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	playlists, err := s.playlists.Recent(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Playlists any `json:"playlists"`
	}{Playlists: playlists})
}

func (s *Server) handleForgetPlaylist(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := s.playlists.Forget(r.Context(), uid, r.PathValue("playlistID")); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
