// Package api exposes the HTTP interface under /api/v1.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"readi/internal/auth"
	"readi/internal/google"
	"readi/internal/models"
	"readi/internal/prep"
	"readi/internal/profile"
	"readi/internal/syncer"
)

const serviceName = "readi-backend"

// Store is the read side of persistence used by handlers.
type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	GetMeeting(ctx context.Context, userID, id string) (*models.Meeting, error)
	UpcomingMeetings(ctx context.Context, userID string, now time.Time, limit int) ([]models.Meeting, error)
	Participants(ctx context.Context, userID, meetingID string) ([]models.Participant, error)
	ListThreads(ctx context.Context, userID string, limit int) ([]models.EmailThread, error)
	GetThread(ctx context.Context, userID, id string) (*models.EmailThread, error)
	FindThreadsByParticipant(ctx context.Context, userID, email string, limit, messages int) ([]models.EmailThread, error)
}

// Watcher registers Calendar push channels for a user.
type Watcher interface {
	Watch(ctx context.Context, userID, channelID, address, token string) (*google.Channel, error)
}

// GoogleWatcher adapts a google.Factory to Watcher.
func GoogleWatcher(f *google.Factory) Watcher {
	return googleWatcher{f}
}

type googleWatcher struct {
	f *google.Factory
}

func (g googleWatcher) Watch(ctx context.Context, userID, channelID, address, token string) (*google.Channel, error) {
	cal, err := g.f.Calendar(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cal.Watch(ctx, channelID, address, token)
}

// Options are the deployment settings handlers depend on.
type Options struct {
	WebURL       string
	IOSAppScheme string
	WebhookURL   string
	WebhookToken string
	// AccessLog receives combined-format request logs. Nil disables them.
	AccessLog io.Writer
}

// Deps are the services behind the handlers.
type Deps struct {
	Store    Store
	Issuer   *auth.Issuer
	Auth     *auth.Service
	Profiles *profile.Service
	Prep     *prep.Service
	Syncer   *syncer.Syncer
	Watcher  Watcher
}

// Server routes API requests to the services.
type Server struct {
	logger *slog.Logger
	deps   Deps
	opts   Options
	now    func() time.Time
}

// NewServer creates a Server.
func NewServer(logger *slog.Logger, deps Deps, opts Options) *Server {
	return &Server{logger: logger, deps: deps, opts: opts, now: time.Now}
}

// Router registers every route. Static paths are registered before the
// {id} patterns they would otherwise match.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	v1.HandleFunc("/auth/google", s.handleAuthGoogle).Methods(http.MethodGet)
	v1.HandleFunc("/auth/google/callback", s.handleAuthCallback).Methods(http.MethodGet)
	v1.HandleFunc("/meetings/webhook", s.handleWebhook).Methods(http.MethodPost)

	p := v1.NewRoute().Subrouter()
	p.Use(s.deps.Issuer.Middleware)

	p.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	p.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	p.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)

	p.HandleFunc("/profiles/me", s.handleGetProfile).Methods(http.MethodGet)
	p.HandleFunc("/profiles", s.handleCreateProfile).Methods(http.MethodPost)
	p.HandleFunc("/profiles", s.handleUpdateProfile).Methods(http.MethodPut)
	p.HandleFunc("/profiles", s.handleDeleteProfile).Methods(http.MethodDelete)
	p.HandleFunc("/profiles/resume", s.handleUploadResume).Methods(http.MethodPost)

	p.HandleFunc("/meetings/sync", s.handleSyncMeetings).Methods(http.MethodPost)
	p.HandleFunc("/meetings/upcoming", s.handleUpcoming).Methods(http.MethodGet)
	p.HandleFunc("/meetings/calendar.ics", s.handleCalendarFeed).Methods(http.MethodGet)
	p.HandleFunc("/meetings/watch", s.handleWatch).Methods(http.MethodPost)
	p.HandleFunc("/meetings/{id}", s.handleGetMeeting).Methods(http.MethodGet)
	p.HandleFunc("/meetings/{id}/participants", s.handleParticipants).Methods(http.MethodGet)
	p.HandleFunc("/meetings/{id}/generate-prep", s.handleGeneratePrep).Methods(http.MethodPost)
	p.HandleFunc("/meetings/{id}/talking-points", s.handleTalkingPoints).Methods(http.MethodGet)
	p.HandleFunc("/meetings/{id}/feedback", s.handleFeedback).Methods(http.MethodPost)

	p.HandleFunc("/emails/sync", s.handleSyncEmails).Methods(http.MethodPost)
	p.HandleFunc("/emails/threads", s.handleListThreads).Methods(http.MethodGet)
	p.HandleFunc("/emails/threads/{id}", s.handleGetThread).Methods(http.MethodGet)
	p.HandleFunc("/emails/by-participant", s.handleByParticipant).Methods(http.MethodGet)
	p.HandleFunc("/emails/link-to-meeting/{meetingId}", s.handleLinkToMeeting).Methods(http.MethodPost)

	return r
}

// Handler wraps the router with CORS, access logging and panic recovery.
func (s *Server) Handler() http.Handler {
	return s.wrap(s.Router())
}

func (s *Server) wrap(h http.Handler) http.Handler {
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{s.opts.WebURL, s.opts.IOSAppScheme}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		handlers.AllowCredentials(),
	)(h)
	if s.opts.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(s.opts.AccessLog, h)
	}
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}))(h)
}

// recoveryLogger routes recovered panics to slog.
type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("Recovered from panic in handler", "panic", v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   serviceName,
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
	})
}
