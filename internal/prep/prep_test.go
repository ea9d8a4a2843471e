package prep

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"readi/internal/models"
	"readi/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingGenerator struct {
	input *Input
	err   error
}

func (g *recordingGenerator) Name() string { return "test-model" }

func (g *recordingGenerator) TalkingPoints(_ context.Context, in *Input) ([]string, error) {
	g.input = in
	if g.err != nil {
		return nil, g.err
	}
	return []string{"Point A", "Point B"}, nil
}

type fixture struct {
	store   *store.Store
	userID  string
	meeting *models.Meeting
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, discardLogger(), filepath.Join(t.TempDir(), "readi.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	user, err := st.UpsertUser(ctx, &models.GoogleIdentity{ID: "g-1", Email: "ada@example.com", Name: "Ada"})
	require.NoError(t, err)

	m, err := st.UpsertMeeting(ctx, user.ID, &models.Event{
		ID:        "ev-1",
		Title:     "Intro with Acme",
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
		Status:    models.StatusConfirmed,
		Organizer: &models.Attendee{Email: "grace@acme.com", Name: "Grace", Organizer: true},
	})
	require.NoError(t, err)

	th, err := st.UpsertThread(ctx, user.ID, &models.EmailThread{
		GmailThreadID:     "t1",
		Subject:           "Hello",
		ParticipantEmails: []string{"grace@acme.com", "ada@example.com"},
		LastMessageDate:   time.Now(),
		MessageCount:      1,
		Messages: []models.EmailMessage{
			{GmailMessageID: "msg-1", FromEmail: "grace@acme.com", BodyText: "See you soon", Date: time.Now()},
		},
	})
	require.NoError(t, err)
	_, err = st.LinkThread(ctx, m.ID, th.ID)
	require.NoError(t, err)

	return &fixture{store: st, userID: user.ID, meeting: m}
}

func TestService_Generate(t *testing.T) {
	f := newFixture(t)
	gen := &recordingGenerator{}
	s := NewService(discardLogger(), f.store, gen)
	ctx := context.Background()

	tp, err := s.Generate(ctx, f.userID, f.meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Point A", "Point B"}, tp.Points)
	assert.Equal(t, "test-model", tp.AIModel)

	require.NotNil(t, gen.input)
	assert.Nil(t, gen.input.Profile)
	require.Len(t, gen.input.Meeting.EmailThreads, 1)
	assert.Equal(t, "See you soon", gen.input.Meeting.EmailThreads[0].Messages[0].BodyText)

	got, err := s.Get(ctx, f.userID, f.meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, tp.ID, got.ID)
}

func TestService_GenerateErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := NewService(discardLogger(), f.store, &recordingGenerator{})
	_, err := s.Generate(ctx, f.userID, "missing")
	assert.ErrorIs(t, err, ErrMeetingNotFound)

	failing := NewService(discardLogger(), f.store, &recordingGenerator{err: errors.New("quota")})
	_, err = failing.Generate(ctx, f.userID, f.meeting.ID)
	assert.ErrorContains(t, err, "quota")

	_, err = s.Get(ctx, f.userID, f.meeting.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_Feedback(t *testing.T) {
	f := newFixture(t)
	s := NewService(discardLogger(), f.store, StaticGenerator{})
	ctx := context.Background()

	assert.ErrorIs(t, s.Feedback(ctx, f.userID, f.meeting.ID, models.FeedbackHelpful, ""), store.ErrNotFound)

	_, err := s.Generate(ctx, f.userID, f.meeting.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Feedback(ctx, f.userID, f.meeting.ID, "meh", ""), ErrInvalidFeedback)
	require.NoError(t, s.Feedback(ctx, f.userID, f.meeting.ID, models.FeedbackNotHelpful, "Too generic"))

	tp, err := s.Get(ctx, f.userID, f.meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackNotHelpful, tp.Feedback)
	assert.Equal(t, "Too generic", tp.Notes)
	assert.Equal(t, StaticModel, tp.AIModel)
}

func TestStaticGenerator(t *testing.T) {
	points, err := StaticGenerator{}.TalkingPoints(context.Background(), &Input{Meeting: testMeeting()})
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, `Open the meeting by acknowledging "Intro with Acme" and restating the desired outcome.`, points[0])
}

func TestGenAIGenerator(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "gemini-test:generateContent"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"- Lead with the pilot results\n- Ask about budget timing"}]}}]}`)
	}))
	defer srv.Close()

	g, err := NewGenAIGenerator(context.Background(), discardLogger(), "test-key", "gemini-test", &genai.HTTPOptions{BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	assert.Equal(t, "gemini-test", g.Name())

	points, err := g.TalkingPoints(context.Background(), &Input{Meeting: testMeeting()})
	require.NoError(t, err)
	assert.Equal(t, []string{"Lead with the pilot results", "Ask about budget timing"}, points)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Intro with Acme")
	assert.Contains(t, string(raw), systemInstruction)
}

func TestNewGenAIGenerator_RequiresKey(t *testing.T) {
	_, err := NewGenAIGenerator(context.Background(), discardLogger(), "", "gemini-test", nil)
	assert.Error(t, err)
}
