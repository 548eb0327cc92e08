package httpapi

import (
	"net/http"
)

func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	songs, err := s.songs.ListByCollection(r.Context(), r.PathValue("id"), uid, query.Get("sort"), query.Get("playlist_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Songs any `json:"songs"`
	}{Songs: songs})
}

func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	song, err := s.songs.Get(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, song)
}

func (s *Server) handleDeleteSong(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := s.songs.Delete(r.Context(), r.PathValue("id"), uid); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Notes string `json:"notes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	song, err := s.songs.UpdateNotes(r.Context(), r.PathValue("id"), uid, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, song)
}

func (s *Server) handleUpdateLyrics(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Lyrics string `json:"lyrics"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	song, err := s.songs.UpdateLyrics(r.Context(), r.PathValue("id"), uid, req.Lyrics)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, song)
}

func (s *Server) handleSetBPM(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		BPM string `json:"bpm"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	song, err := s.songs.SetBPM(r.Context(), r.PathValue("id"), uid, req.BPM)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, song)
}

func (s *Server) handleFetchBPM(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	song, err := s.songs.FetchBPM(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, song)
}
