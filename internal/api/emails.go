package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/gorilla/mux"

	"readi/internal/httpjson"
	"readi/internal/store"
	"readi/internal/syncer"
)

const (
	defaultThreadLimit      = 50
	maxThreadLimit          = 200
	participantThreadLimit  = 10
	participantMessageLimit = 3
)

func (s *Server) handleSyncEmails(w http.ResponseWriter, r *http.Request) {
	max, err := intQuery(r, "maxResults", syncer.DefaultEmailResults, 1, syncer.MaxEmailResults)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters", err.Error())
		return
	}
	res, err := s.deps.Syncer.SyncEmails(r.Context(), userID(r), max)
	if err != nil {
		s.fail(w, r, "SYNC_ERROR", "Failed to sync emails", err, true)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Emails synced successfully",
		"synced":  res.Synced,
		"failed":  res.Failed,
	})
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", defaultThreadLimit, 1, maxThreadLimit)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters", err.Error())
		return
	}
	threads, err := s.deps.Store.ListThreads(r.Context(), userID(r), limit)
	if err != nil {
		s.fail(w, r, "FETCH_ERROR", "Failed to fetch email threads", err, false)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": threads, "count": len(threads)})
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	th, err := s.deps.Store.GetThread(r.Context(), userID(r), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "THREAD_NOT_FOUND", "Email thread not found")
		return
	}
	if err != nil {
		s.fail(w, r, "FETCH_ERROR", "Failed to fetch email thread", err, false)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread": th})
}

func (s *Server) handleByParticipant(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("email"))
	addr, err := mail.ParseAddress(raw)
	if raw == "" || err != nil {
		httpjson.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters",
			map[string]string{"email": "must be a valid email address"})
		return
	}
	threads, err := s.deps.Store.FindThreadsByParticipant(r.Context(), userID(r), addr.Address,
		participantThreadLimit, participantMessageLimit)
	if err != nil {
		s.fail(w, r, "FETCH_ERROR", "Failed to fetch email threads", err, false)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": threads, "count": len(threads)})
}

func (s *Server) handleLinkToMeeting(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Syncer.LinkEmails(r.Context(), userID(r), mux.Vars(r)["meetingId"])
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "MEETING_NOT_FOUND", "Meeting not found")
		return
	}
	if err != nil {
		s.fail(w, r, "LINK_ERROR", "Failed to link emails to meeting", err, true)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Emails linked to meeting successfully",
		"linked":  n,
	})
}
