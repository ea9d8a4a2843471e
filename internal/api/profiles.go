package api

import (
	"errors"
	"net/http"

	"readi/internal/httpjson"
	"readi/internal/profile"
	"readi/internal/store"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Profiles.Get(r.Context(), userID(r))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "PROFILE_NOT_FOUND", "Profile not found")
		return
	}
	if err != nil {
		s.fail(w, r, "FETCH_ERROR", "Failed to fetch profile", err, false)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": p})
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var in profile.Input
	if err := decodeBody(r, &in); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid profile data", err.Error())
		return
	}
	p, err := s.deps.Profiles.Upsert(r.Context(), userID(r), &in)
	if s.profileError(w, r, err, "SAVE_ERROR", "Failed to save profile") {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": p})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in profile.Input
	if err := decodeBody(r, &in); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid profile data", err.Error())
		return
	}
	p, err := s.deps.Profiles.Merge(r.Context(), userID(r), &in)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "PROFILE_NOT_FOUND", "Profile not found. Create one first.")
		return
	}
	if s.profileError(w, r, err, "UPDATE_ERROR", "Failed to update profile") {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": p})
}

// profileError writes the response for a failed save and reports whether
// there was an error.
func (s *Server) profileError(w http.ResponseWriter, r *http.Request, err error, code, message string) bool {
	if err == nil {
		return false
	}
	var verr *profile.ValidationError
	if errors.As(err, &verr) {
		var details any
		if len(verr.Fields) > 0 {
			details = verr.Fields
		}
		httpjson.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Message, details)
		return true
	}
	s.fail(w, r, code, message, err, true)
	return true
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	err := s.deps.Profiles.Delete(r.Context(), userID(r))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "PROFILE_NOT_FOUND", "Profile not found")
		return
	}
	if err != nil {
		s.fail(w, r, "DELETE_ERROR", "Failed to delete profile", err, false)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Profile deleted successfully"})
}

func (s *Server) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Resume upload not yet implemented")
}
