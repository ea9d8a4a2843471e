package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"readi/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(context.Background(), logger, filepath.Join(t.TempDir(), "readi.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestUser(t *testing.T, s *Store, googleID, email string) *models.User {
	t.Helper()
	u, err := s.UpsertUser(context.Background(), &models.GoogleIdentity{ID: googleID, Email: email, Name: "Ada"})
	require.NoError(t, err)
	return u
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "readi.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := Open(context.Background(), logger, path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), logger, path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestUpsertUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := newTestUser(t, s, "g-1", "ada@example.com")
	assert.Equal(t, "Ada", first.Name)

	second, err := s.UpsertUser(ctx, &models.GoogleIdentity{ID: "g-1", Email: "ada@new.example.com"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "ada@new.example.com", second.Email)
	assert.Equal(t, "Ada", second.Name, "empty name must not clear the stored one")

	byEmail, err := s.GetUserByEmail(ctx, "ADA@new.example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byEmail.ID)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.UpsertUser(ctx, &models.GoogleIdentity{ID: "g-2"})
	assert.Error(t, err)
}

func TestSaveToken_KeepsRefreshToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := newTestUser(t, s, "g-1", "ada@example.com")

	expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.SaveToken(ctx, u.ID, &oauth2.Token{
		AccessToken: "a1", RefreshToken: "r1", TokenType: "Bearer", Expiry: expiry,
	}))
	require.NoError(t, s.SaveToken(ctx, u.ID, &oauth2.Token{AccessToken: "a2", Expiry: expiry.Add(time.Hour)}))

	tok, err := s.Token(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a2", tok.AccessToken)
	assert.Equal(t, "r1", tok.RefreshToken)
	assert.True(t, tok.Expiry.Equal(expiry.Add(time.Hour)))

	users, err := s.ListSyncableUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, u.ID, users[0].ID)

	_, err = s.Token(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Error(t, s.SaveToken(ctx, u.ID, &oauth2.Token{}))
}

func TestProfileLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := newTestUser(t, s, "g-1", "ada@example.com")

	_, err := s.GetProfile(ctx, u.ID)
	require.ErrorIs(t, err, ErrNotFound)

	p, err := s.UpsertProfile(ctx, u.ID, &models.Profile{
		Role:            models.RoleJobSeeker,
		JobRole:         "Staff Engineer",
		TargetCompanies: []string{"Acme"},
		ProfileData:     map[string]any{"source": "onboarding"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultReminderMinutes, p.ReminderMinutes)
	assert.Equal(t, models.NotifyPush, p.NotificationPreference)
	assert.Equal(t, []string{"Acme"}, p.TargetCompanies)
	assert.Equal(t, []string{}, p.PreferredMeetingTypes)
	assert.Equal(t, "onboarding", p.ProfileData["source"])
	require.NotNil(t, p.User)
	assert.Equal(t, "ada@example.com", p.User.Email)

	updated, err := s.UpsertProfile(ctx, u.ID, &models.Profile{
		Role:               models.RoleSales,
		CompanyName:        "Readi",
		ProductDescription: "Meeting prep",
		ReminderMinutes:    15,
	})
	require.NoError(t, err)
	assert.Equal(t, p.ID, updated.ID)
	assert.Equal(t, models.RoleSales, updated.Role)
	assert.Equal(t, 15, updated.ReminderMinutes)
	assert.Empty(t, updated.ProfileData)

	require.NoError(t, s.DeleteProfile(ctx, u.ID))
	assert.ErrorIs(t, s.DeleteProfile(ctx, u.ID), ErrNotFound)
}

func testEvent(id string, start time.Time) *models.Event {
	return &models.Event{
		ID:        id,
		Title:     "Intro call",
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		Organizer: &models.Attendee{Email: "Grace@Example.com", Name: "Grace"},
		Attendees: []models.Attendee{
			{Email: "ada@example.com", Name: "Ada", ResponseStatus: "accepted"},
			{Email: "grace@example.com", ResponseStatus: "accepted"},
			{Email: ""},
		},
	}
}

func TestUpsertMeeting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := newTestUser(t, s, "g-1", "ada@example.com")
	start := time.Now().Add(2 * time.Hour).Truncate(time.Millisecond)

	m, err := s.UpsertMeeting(ctx, u.ID, testEvent("ev-1", start))
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, m.Status)
	assert.True(t, m.StartTime.Equal(start))
	require.Len(t, m.Participants, 2)
	assert.Equal(t, "grace@example.com", m.Participants[0].Email)
	assert.True(t, m.Participants[0].IsOrganizer)
	assert.Equal(t, "Grace", m.Participants[0].Name)
	assert.Equal(t, "accepted", m.Participants[0].ResponseStatus)

	ev := testEvent("ev-1", start)
	ev.Title = "Renamed"
	again, err := s.UpsertMeeting(ctx, u.ID, ev)
	require.NoError(t, err)
	assert.Equal(t, m.ID, again.ID)
	assert.Equal(t, "Renamed", again.Title)
	assert.Len(t, again.Participants, 2)

	other := newTestUser(t, s, "g-2", "bob@example.com")
	_, err = s.GetMeeting(ctx, other.ID, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Participants(ctx, other.ID, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpcomingMeetings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := newTestUser(t, s, "g-1", "ada@example.com")
	now := time.Now()

	_, err := s.UpsertMeeting(ctx, u.ID, testEvent("past", now.Add(-time.Hour)))
	require.NoError(t, err)
	later, err := s.UpsertMeeting(ctx, u.ID, testEvent("later", now.Add(48*time.Hour)))
	require.NoError(t, err)
	soon, err := s.UpsertMeeting(ctx, u.ID, testEvent("soon", now.Add(time.Hour)))
	require.NoError(t, err)
	cancelled := testEvent("cancelled", now.Add(2*time.Hour))
	cancelled.Status = "cancelled"
	_, err = s.UpsertMeeting(ctx, u.ID, cancelled)
	require.NoError(t, err)

	_, err = s.UpsertTalkingPoints(ctx, u.ID, soon.ID, []string{"one"}, "static")
	require.NoError(t, err)

	meetings, err := s.UpcomingMeetings(ctx, u.ID, now, 10)
	require.NoError(t, err)
	require.Len(t, meetings, 2)
	assert.Equal(t, soon.ID, meetings[0].ID)
	assert.NotNil(t, meetings[0].TalkingPoints)
	assert.Equal(t, later.ID, meetings[1].ID)
	assert.Nil(t, meetings[1].TalkingPoints)

	limited, err := s.UpcomingMeetings(ctx, u.ID, now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	window, err := s.MeetingsStartingBetween(ctx, u.ID, now, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, soon.ID, window[0].ID)
}

func testThread(id string, last time.Time, participants ...string) *models.EmailThread {
	return &models.EmailThread{
		GmailThreadID:     id,
		Subject:           "Hello " + id,
		ParticipantEmails: participants,
		LastMessageDate:   last,
		Messages: []models.EmailMessage{
			{GmailMessageID: id + "-m1", FromEmail: participants[0], Subject: "Hello", BodyText: "first", Date: last.Add(-time.Hour)},
			{GmailMessageID: id + "-m2", FromEmail: participants[0], ToEmails: []string{"ada@example.com"}, BodyText: "second", Date: last},
		},
	}
}

func TestThreadsAndLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := newTestUser(t, s, "g-1", "ada@example.com")
	now := time.Now().Truncate(time.Millisecond)

	older, err := s.UpsertThread(ctx, u.ID, testThread("t1", now.Add(-48*time.Hour), "Grace@Example.com", "ada@example.com"))
	require.NoError(t, err)
	assert.Equal(t, 2, older.MessageCount)
	assert.Equal(t, []string{"ada@example.com", "grace@example.com"}, older.ParticipantEmails)
	require.Len(t, older.Messages, 2)
	assert.Equal(t, "first", older.Messages[0].BodyText, "thread detail lists messages oldest first")

	newer, err := s.UpsertThread(ctx, u.ID, testThread("t2", now, "grace@example.com"))
	require.NoError(t, err)
	_, err = s.UpsertThread(ctx, u.ID, testThread("t3", now, "bob@example.com"))
	require.NoError(t, err)

	// Re-syncing the same thread does not duplicate messages.
	_, err = s.UpsertThread(ctx, u.ID, testThread("t1", now.Add(-48*time.Hour), "grace@example.com"))
	require.NoError(t, err)
	reloaded, err := s.GetThread(ctx, u.ID, older.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Messages, 2)
	assert.Equal(t, []string{"grace@example.com"}, reloaded.ParticipantEmails)

	listed, err := s.ListThreads(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Len(t, listed[0].Messages, 1)

	found, err := s.FindThreadsByParticipant(ctx, u.ID, "GRACE@example.com", 10, 3)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, newer.ID, found[0].ID)
	assert.Equal(t, "second", found[0].Messages[0].BodyText, "newest message first")

	ids, err := s.ThreadIDsByParticipant(ctx, u.ID, "Grace@Example.com", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{newer.ID}, ids)
	ids, err = s.ThreadIDsByParticipant(ctx, u.ID, "nobody@example.com", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	m, err := s.UpsertMeeting(ctx, u.ID, testEvent("ev-1", now.Add(time.Hour)))
	require.NoError(t, err)
	created, err := s.LinkThread(ctx, m.ID, newer.ID)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = s.LinkThread(ctx, m.ID, newer.ID)
	require.NoError(t, err)
	assert.False(t, created)

	full, err := s.GetMeeting(ctx, u.ID, m.ID)
	require.NoError(t, err)
	require.Len(t, full.EmailThreads, 1)
	assert.Equal(t, newer.ID, full.EmailThreads[0].ID)

	other := newTestUser(t, s, "g-2", "bob@example.com")
	_, err = s.GetThread(ctx, other.ID, older.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTalkingPointsFeedback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := newTestUser(t, s, "g-1", "ada@example.com")
	m, err := s.UpsertMeeting(ctx, u.ID, testEvent("ev-1", time.Now().Add(time.Hour)))
	require.NoError(t, err)

	assert.ErrorIs(t, s.SetFeedback(ctx, u.ID, m.ID, models.FeedbackHelpful, ""), ErrNotFound)

	tp, err := s.UpsertTalkingPoints(ctx, u.ID, m.ID, []string{"a", "b"}, "gemini")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tp.Points)

	require.NoError(t, s.SetFeedback(ctx, u.ID, m.ID, models.FeedbackHelpful, "great"))
	require.NoError(t, s.SetFeedback(ctx, u.ID, m.ID, "", "updated notes"))

	regenerated, err := s.UpsertTalkingPoints(ctx, u.ID, m.ID, []string{"c"}, "gemini")
	require.NoError(t, err)
	assert.Equal(t, tp.ID, regenerated.ID)
	assert.Equal(t, []string{"c"}, regenerated.Points)
	assert.Equal(t, models.FeedbackHelpful, regenerated.Feedback)
	assert.Equal(t, "updated notes", regenerated.Notes)
}
