package api

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"readi/internal/calexport"
	"readi/internal/httpjson"
	"readi/internal/models"
	"readi/internal/prep"
	"readi/internal/store"
)

const (
	defaultUpcomingLimit = 20
	maxUpcomingLimit     = 100
	channelPrefix        = "readi-"
)

func (s *Server) handleSyncMeetings(w http.ResponseWriter, r *http.Request) {
	var (
		q       = r.URL.Query()
		details = map[string]string{}
		bounds  [2]time.Time
	)
	for i, name := range []string{"timeMin", "timeMax"} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			details[name] = "must be an RFC 3339 date-time"
			continue
		}
		bounds[i] = t
	}
	if !bounds[0].IsZero() && !bounds[1].IsZero() && !bounds[1].After(bounds[0]) {
		details["timeMax"] = "must be after timeMin"
	}
	if len(details) > 0 {
		httpjson.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters", details)
		return
	}

	res, err := s.deps.Syncer.SyncCalendar(r.Context(), userID(r), bounds[0], bounds[1])
	if err != nil {
		s.fail(w, r, "SYNC_ERROR", "Failed to sync calendar", err, true)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Calendar synced successfully",
		"synced":    res.Synced,
		"failed":    res.Failed,
		"timeRange": res.TimeRange,
	})
}

type upcomingMeeting struct {
	models.Meeting
	MinutesUntilStart int  `json:"minutesUntilStart"`
	HoursUntilStart   int  `json:"hoursUntilStart"`
	IsPrepReady       bool `json:"isPrepReady"`
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", defaultUpcomingLimit, 1, maxUpcomingLimit)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters", err.Error())
		return
	}

	now := s.now()
	meetings, err := s.deps.Store.UpcomingMeetings(r.Context(), userID(r), now, limit)
	if err != nil {
		s.fail(w, r, "FETCH_ERROR", "Failed to fetch upcoming meetings", err, false)
		return
	}

	out := make([]upcomingMeeting, 0, len(meetings))
	for _, m := range meetings {
		minutes := int(m.StartTime.Sub(now) / time.Minute)
		out = append(out, upcomingMeeting{
			Meeting:           m,
			MinutesUntilStart: minutes,
			HoursUntilStart:   minutes / 60,
			IsPrepReady:       m.TalkingPoints != nil && len(m.TalkingPoints.Points) > 0,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"meetings": out, "count": len(out)})
}

func (s *Server) handleCalendarFeed(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", maxUpcomingLimit, 1, maxUpcomingLimit)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters", err.Error())
		return
	}
	meetings, err := s.deps.Store.UpcomingMeetings(r.Context(), userID(r), s.now(), limit)
	if err != nil {
		s.fail(w, r, "FETCH_ERROR", "Failed to fetch upcoming meetings", err, false)
		return
	}
	var buf bytes.Buffer
	if err := calexport.WriteICS(&buf, meetings); err != nil {
		s.fail(w, r, "EXPORT_ERROR", "Failed to build calendar feed", err, false)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="readi.ics"`)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("Failed to send calendar feed.", "userID", userID(r), "error", err)
	}
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	if s.opts.WebhookURL == "" || s.deps.Watcher == nil {
		writeError(w, http.StatusBadRequest, "WEBHOOK_NOT_CONFIGURED", "Calendar push notifications are not configured")
		return
	}
	id := userID(r)
	ch, err := s.deps.Watcher.Watch(r.Context(), id, channelPrefix+id, s.opts.WebhookURL, s.opts.WebhookToken)
	if err != nil {
		s.fail(w, r, "WEBHOOK_ERROR", "Failed to setup webhook", err, true)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"channelId":  ch.ID,
		"resourceId": ch.ResourceID,
		"expiration": ch.Expiration,
	})
}

// handleWebhook receives Calendar push notifications and queues a sync for
// the channel's user.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	channelID := r.Header.Get("X-Goog-Channel-ID")
	state := r.Header.Get("X-Goog-Resource-State")
	s.logger.Info("Calendar webhook received", "channelID", channelID, "resourceState", state)

	if s.opts.WebhookToken == "" {
		writeError(w, http.StatusForbidden, "WEBHOOK_NOT_CONFIGURED", "Calendar push notifications are not configured")
		return
	}
	got := r.Header.Get("X-Goog-Channel-Token")
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.WebhookToken)) != 1 {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid channel token")
		return
	}

	id, ok := strings.CutPrefix(channelID, channelPrefix)
	if ok && id != "" && state != "sync" && s.deps.Syncer != nil {
		if err := s.deps.Syncer.Enqueue(id); err != nil {
			s.logger.Warn("Could not queue sync from webhook.", "userID", id, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (s *Server) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.Store.GetMeeting(r.Context(), userID(r), mux.Vars(r)["id"])
	if s.meetingError(w, r, err, "FETCH_ERROR", "Failed to fetch meeting details") {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"meeting": m})
}

func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	ps, err := s.deps.Store.Participants(r.Context(), userID(r), mux.Vars(r)["id"])
	if s.meetingError(w, r, err, "FETCH_ERROR", "Failed to fetch participants") {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": ps})
}

func (s *Server) handleGeneratePrep(w http.ResponseWriter, r *http.Request) {
	tp, err := s.deps.Prep.Generate(r.Context(), userID(r), mux.Vars(r)["id"])
	if s.meetingError(w, r, err, "AI_ERROR", "Failed to generate prep") {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"talkingPoints": tp})
}

func (s *Server) handleTalkingPoints(w http.ResponseWriter, r *http.Request) {
	tp, err := s.deps.Prep.Get(r.Context(), userID(r), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"talkingPoints": nil})
		return
	}
	if err != nil {
		s.fail(w, r, "FETCH_ERROR", "Failed to fetch talking points", err, false)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"talkingPoints": tp})
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
	Notes    string `json:"notes"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var body feedbackRequest
	if err := decodeBody(r, &body); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid feedback payload", err.Error())
		return
	}
	err := s.deps.Prep.Feedback(r.Context(), userID(r), mux.Vars(r)["id"], body.Feedback, body.Notes)
	switch {
	case errors.Is(err, prep.ErrInvalidFeedback):
		httpjson.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid feedback payload", err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "TALKING_POINTS_NOT_FOUND", "No talking points for this meeting")
	case err != nil:
		s.fail(w, r, "FEEDBACK_ERROR", "Failed to submit feedback", err, false)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Feedback captured"})
	}
}

// meetingError maps a missing meeting to 404 and anything else to 500. It
// reports whether err was non-nil.
func (s *Server) meetingError(w http.ResponseWriter, r *http.Request, err error, code, message string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "MEETING_NOT_FOUND", "Meeting not found")
		return true
	}
	s.fail(w, r, code, message, err, false)
	return true
}
