package httpapi

import (
	"net/http"
)

// handleFetchLyrics fetches lyrics for a single song. A fetch blocked by a
// customization answers 200 with status "blocked"; it is an outcome for the
// UI to act on, not an error.
func (s *Server) handleFetchLyrics(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	force := parseBool(r.URL.Query().Get("force"))
	result, err := s.lyrics.Fetch(r.Context(), r.PathValue("id"), uid, force)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSweepLyrics(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	result, err := s.lyrics.SweepCollection(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
