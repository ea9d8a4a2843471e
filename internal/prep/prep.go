// Package prep generates and stores talking points for meetings.
package prep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"readi/internal/models"
	"readi/internal/store"
)

// ErrMeetingNotFound is returned when the meeting does not belong to the user.
var ErrMeetingNotFound = store.ErrNotFound

// ErrInvalidFeedback is returned for feedback values other than helpful and not_helpful.
var ErrInvalidFeedback = errors.New("feedback must be helpful or not_helpful")

// Store is the persistence the service needs.
type Store interface {
	GetMeeting(ctx context.Context, userID, id string) (*models.Meeting, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpsertTalkingPoints(ctx context.Context, userID, meetingID string, points []string, model string) (*models.TalkingPoint, error)
	GetTalkingPoints(ctx context.Context, userID, meetingID string) (*models.TalkingPoint, error)
	SetFeedback(ctx context.Context, userID, meetingID, feedback, notes string) error
}

// Service builds meeting context, calls the generator and persists results.
type Service struct {
	store     Store
	generator Generator
	logger    *slog.Logger
}

// NewService creates a Service.
func NewService(logger *slog.Logger, store Store, generator Generator) *Service {
	return &Service{store: store, generator: generator, logger: logger}
}

// Generate (re)creates the talking points of a meeting.
func (s *Service) Generate(ctx context.Context, userID, meetingID string) (*models.TalkingPoint, error) {
	meeting, err := s.store.GetMeeting(ctx, userID, meetingID)
	if err != nil {
		return nil, err
	}
	profile, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		profile = nil
	} else if err != nil {
		return nil, err
	}

	points, err := s.generator.TalkingPoints(ctx, &Input{Meeting: meeting, Profile: profile})
	if err != nil {
		return nil, fmt.Errorf("failed to generate talking points for meeting %s: %w", meetingID, err)
	}

	tp, err := s.store.UpsertTalkingPoints(ctx, userID, meetingID, points, s.generator.Name())
	if err != nil {
		return nil, err
	}
	s.logger.Info("Generated talking points.", "userID", userID, "meetingID", meetingID, "count", len(points), "model", tp.AIModel)
	return tp, nil
}

// Get returns the stored talking points or store.ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, meetingID string) (*models.TalkingPoint, error) {
	return s.store.GetTalkingPoints(ctx, userID, meetingID)
}

// Feedback records whether the talking points helped. feedback may be empty
// when only notes are sent.
func (s *Service) Feedback(ctx context.Context, userID, meetingID, feedback, notes string) error {
	switch feedback {
	case "", models.FeedbackHelpful, models.FeedbackNotHelpful:
	default:
		return ErrInvalidFeedback
	}
	return s.store.SetFeedback(ctx, userID, meetingID, feedback, notes)
}
