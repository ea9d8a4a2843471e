// Package syncer pulls calendar and mail data for users, links threads to
// meetings and prepares talking points ahead of time.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"readi/internal/google"
	"readi/internal/models"
)

const (
	DefaultCalendarWindow = 30 * 24 * time.Hour
	DefaultEmailResults   = 100
	MaxEmailResults       = 500

	defaultConcurrency   = 4
	threadsPerLink       = 10
	upcomingMeetingsLink = 50
)

// CalendarSource lists a user's calendar events.
type CalendarSource interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]*models.Event, error)
}

// MailSource reads a user's mailbox.
type MailSource interface {
	ListThreadIDs(ctx context.Context, max int) ([]string, error)
	GetThread(ctx context.Context, id string) (*models.EmailThread, error)
}

// Clients hands out per-user sources.
type Clients interface {
	Calendar(ctx context.Context, userID string) (CalendarSource, error)
	Mail(ctx context.Context, userID string) (MailSource, error)
}

// GoogleClients adapts a google.Factory to Clients.
func GoogleClients(f *google.Factory) Clients {
	return googleClients{f}
}

type googleClients struct {
	f *google.Factory
}

func (g googleClients) Calendar(ctx context.Context, userID string) (CalendarSource, error) {
	return g.f.Calendar(ctx, userID)
}

func (g googleClients) Mail(ctx context.Context, userID string) (MailSource, error) {
	return g.f.Gmail(ctx, userID)
}

// Store is the persistence the syncer needs.
type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListSyncableUsers(ctx context.Context) ([]models.User, error)
	UpsertMeeting(ctx context.Context, userID string, ev *models.Event) (*models.Meeting, error)
	UpsertThread(ctx context.Context, userID string, th *models.EmailThread) (*models.EmailThread, error)
	Participants(ctx context.Context, userID, meetingID string) ([]models.Participant, error)
	ThreadIDsByParticipant(ctx context.Context, userID, email string, limit int) ([]string, error)
	LinkThread(ctx context.Context, meetingID, threadID string) (bool, error)
	UpcomingMeetings(ctx context.Context, userID string, now time.Time, limit int) ([]models.Meeting, error)
	MeetingsStartingBetween(ctx context.Context, userID string, from, to time.Time) ([]models.Meeting, error)
}

// Preparer generates talking points for a meeting. *prep.Service satisfies it.
type Preparer interface {
	Generate(ctx context.Context, userID, meetingID string) (*models.TalkingPoint, error)
}

// Options tune the background behaviour.
type Options struct {
	// Concurrency bounds how many users SyncAll processes in parallel.
	Concurrency int
	// PrepLeadTime is how far ahead SyncUser prepares meetings. Zero disables it.
	PrepLeadTime time.Duration
	// QueueSize is the capacity of the Enqueue buffer.
	QueueSize int
}

// TimeRange is the window a calendar sync covered.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CalendarResult summarises a calendar sync.
type CalendarResult struct {
	Synced    int       `json:"synced"`
	Failed    int       `json:"failed"`
	TimeRange TimeRange `json:"timeRange"`
}

// EmailResult summarises a mail sync.
type EmailResult struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// UserResult summarises a full per-user cycle.
type UserResult struct {
	Calendar CalendarResult `json:"calendar"`
	Emails   EmailResult    `json:"emails"`
	Linked   int            `json:"linked"`
	Prepared int            `json:"prepared"`
}

// Syncer orchestrates synchronization from Google into the store.
type Syncer struct {
	logger  *slog.Logger
	store   Store
	clients Clients
	prep    Preparer
	opts    Options
	now     func() time.Time
	queue   *queue
}

// New creates a Syncer. prep may be nil, which disables auto-preparation.
func New(logger *slog.Logger, store Store, clients Clients, prep Preparer, opts Options) *Syncer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Syncer{
		logger:  logger,
		store:   store,
		clients: clients,
		prep:    prep,
		opts:    opts,
		now:     time.Now,
		queue:   newQueue(opts.QueueSize),
	}
}

// SyncCalendar stores the user's events between timeMin and timeMax. Zero
// values default to now and now plus DefaultCalendarWindow.
func (s *Syncer) SyncCalendar(ctx context.Context, userID string, timeMin, timeMax time.Time) (*CalendarResult, error) {
	now := s.now()
	if timeMin.IsZero() {
		timeMin = now
	}
	if timeMax.IsZero() {
		timeMax = now.Add(DefaultCalendarWindow)
	}
	if !timeMax.After(timeMin) {
		return nil, fmt.Errorf("timeMax %s must be after timeMin %s", timeMax.Format(time.RFC3339), timeMin.Format(time.RFC3339))
	}

	cal, err := s.clients.Calendar(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar client: %w", err)
	}
	events, err := cal.ListEvents(ctx, timeMin, timeMax)
	if err != nil {
		return nil, fmt.Errorf("failed to sync calendar: %w", err)
	}

	res := &CalendarResult{TimeRange: TimeRange{Start: timeMin, End: timeMax}}
	for _, ev := range events {
		if _, err := s.store.UpsertMeeting(ctx, userID, ev); err != nil {
			s.logger.Error("Failed to store event", "userID", userID, "title", ev.Title, "error", err)
			res.Failed++
			continue
		}
		res.Synced++
	}
	s.logger.Info("Calendar sync finished.", "userID", userID, "synced", res.Synced, "failed", res.Failed)
	return res, nil
}

// SyncEmails stores up to maxResults recent threads. Non-positive values
// default to DefaultEmailResults and larger ones are capped at MaxEmailResults.
func (s *Syncer) SyncEmails(ctx context.Context, userID string, maxResults int) (*EmailResult, error) {
	if maxResults <= 0 {
		maxResults = DefaultEmailResults
	}
	maxResults = min(maxResults, MaxEmailResults)

	mail, err := s.clients.Mail(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail client: %w", err)
	}
	ids, err := mail.ListThreadIDs(ctx, maxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to sync emails: %w", err)
	}

	res := &EmailResult{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		th, err := mail.GetThread(ctx, id)
		if err == nil {
			_, err = s.store.UpsertThread(ctx, userID, th)
		}
		if err != nil {
			s.logger.Error("Failed to sync thread", "userID", userID, "threadID", id, "error", err)
			res.Failed++
			continue
		}
		res.Synced++
	}
	s.logger.Info("Email sync finished.", "userID", userID, "synced", res.Synced, "failed", res.Failed)
	return res, nil
}

// LinkEmails links every stored thread that a meeting participant took part
// in to the meeting. The user's own address is skipped. It returns the number
// of distinct threads linked to the meeting by this call.
func (s *Syncer) LinkEmails(ctx context.Context, userID, meetingID string) (int, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("could not load user %s: %w", userID, err)
	}
	participants, err := s.store.Participants(ctx, userID, meetingID)
	if err != nil {
		return 0, err
	}

	linked := make(map[string]bool)
	for _, p := range participants {
		if equalFoldEmail(p.Email, user.Email) {
			continue
		}
		ids, err := s.store.ThreadIDsByParticipant(ctx, userID, p.Email, threadsPerLink)
		if err != nil {
			return len(linked), err
		}
		for _, id := range ids {
			if linked[id] {
				continue
			}
			if _, err := s.store.LinkThread(ctx, meetingID, id); err != nil {
				return len(linked), err
			}
			linked[id] = true
		}
	}
	s.logger.Debug("Linked emails to meeting.", "userID", userID, "meetingID", meetingID, "threads", len(linked))
	return len(linked), nil
}

// SyncUser runs a full cycle for one user: calendar, mail, linking of
// upcoming meetings and preparation of meetings starting soon. Steps after a
// failed one still run; all failures are returned joined.
func (s *Syncer) SyncUser(ctx context.Context, userID string) (*UserResult, error) {
	s.logger.Info("Starting sync cycle.", "userID", userID)
	res := &UserResult{}
	var errs []error

	if cal, err := s.SyncCalendar(ctx, userID, time.Time{}, time.Time{}); err != nil {
		errs = append(errs, err)
	} else {
		res.Calendar = *cal
	}
	if mail, err := s.SyncEmails(ctx, userID, DefaultEmailResults); err != nil {
		errs = append(errs, err)
	} else {
		res.Emails = *mail
	}

	now := s.now()
	upcoming, err := s.store.UpcomingMeetings(ctx, userID, now, upcomingMeetingsLink)
	if err != nil {
		errs = append(errs, err)
	}
	for _, m := range upcoming {
		n, err := s.LinkEmails(ctx, userID, m.ID)
		if err != nil {
			s.logger.Error("Failed to link emails", "userID", userID, "meetingID", m.ID, "error", err)
			continue
		}
		res.Linked += n
	}

	if s.prep != nil && s.opts.PrepLeadTime > 0 {
		soon, err := s.store.MeetingsStartingBetween(ctx, userID, now, now.Add(s.opts.PrepLeadTime))
		if err != nil {
			errs = append(errs, err)
		}
		for _, m := range soon {
			if m.TalkingPoints != nil {
				continue
			}
			if _, err := s.prep.Generate(ctx, userID, m.ID); err != nil {
				s.logger.Error("Failed to prepare meeting", "userID", userID, "meetingID", m.ID, "error", err)
				continue
			}
			res.Prepared++
		}
	}

	s.logger.Info("Sync cycle finished.", "userID", userID, "events", res.Calendar.Synced, "threads", res.Emails.Synced,
		"linked", res.Linked, "prepared", res.Prepared)
	return res, errors.Join(errs...)
}

// SyncAll runs SyncUser for every user with stored credentials, a bounded
// number at a time. Per-user failures are logged, not returned.
func (s *Syncer) SyncAll(ctx context.Context) error {
	users, err := s.store.ListSyncableUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	s.logger.Info("Syncing all users.", "count", len(users))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, u := range users {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if _, err := s.SyncUser(ctx, u.ID); err != nil {
				s.logger.Error("User sync failed", "userID", u.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// Watch runs SyncAll immediately and then every interval until ctx is done.
func (s *Syncer) Watch(ctx context.Context, interval time.Duration) {
	s.logger.Info("Starting watcher.", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.SyncAll(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("Sync cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func equalFoldEmail(a, b string) bool {
	return a != "" && normalize(a) == normalize(b)
}
