package httpapi

import (
	"net/http"
)

type collectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    bool   `json:"isPublic"`
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	collections, err := s.collections.List(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Collections any `json:"collections"`
	}{Collections: collections})
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req collectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	collection, err := s.collections.Create(r.Context(), uid, req.Name, req.Description, req.IsPublic)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, collection)
}

func (s *Server) handleListPublicCollections(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	collections, err := s.collections.ListPublic(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Collections any `json:"collections"`
	}{Collections: collections})
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	collection, err := s.collections.Get(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, collection)
}

func (s *Server) handleUpdateCollection(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req collectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	collection, err := s.collections.Update(r.Context(), r.PathValue("id"), uid, req.Name, req.Description, req.IsPublic)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, collection)
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	songsDeleted, err := s.collections.Delete(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		SongsDeleted int `json:"songsDeleted"`
	}{SongsDeleted: songsDeleted})
}

func (s *Server) handleRequestAccess(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	request, err := s.collections.RequestAccess(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, request)
}

func (s *Server) handleListAccessRequests(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	requests, err := s.collections.ListAccessRequests(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Requests any `json:"requests"`
	}{Requests: requests})
}

func (s *Server) handleAcceptAccessRequest(w http.ResponseWriter, r *http.Request) {
	s.resolveAccessRequest(w, r, true)
}

func (s *Server) handleDenyAccessRequest(w http.ResponseWriter, r *http.Request) {
	s.resolveAccessRequest(w, r, false)
}

func (s *Server) resolveAccessRequest(w http.ResponseWriter, r *http.Request, accept bool) {
	uid, ok := requireUser(w, r)
	if !ok {
		return
	}

	request, err := s.collections.ResolveAccessRequest(r.Context(), r.PathValue("id"), r.PathValue("requestID"), uid, accept)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, request)
}
