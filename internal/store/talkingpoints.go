package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"readi/internal/models"
)

// UpsertTalkingPoints replaces the generated points of a meeting. Feedback
// recorded for an earlier generation is kept.
func (s *Store) UpsertTalkingPoints(ctx context.Context, userID, meetingID string, points []string, model string) (*models.TalkingPoint, error) {
	encoded, err := encodeStrings(points)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO talking_points (id, meeting_id, user_id, points, ai_model, generated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(meeting_id) DO UPDATE SET
    points = excluded.points,
    ai_model = excluded.ai_model,
    generated_at = excluded.generated_at`,
		newID(), meetingID, userID, encoded, model, formatTime(s.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert talking points: %w", err)
	}
	return s.GetTalkingPoints(ctx, userID, meetingID)
}

// GetTalkingPoints returns the talking points of a meeting owned by userID.
func (s *Store) GetTalkingPoints(ctx context.Context, userID, meetingID string) (*models.TalkingPoint, error) {
	var (
		tp                  models.TalkingPoint
		points, generatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, meeting_id, user_id, points, ai_model, generated_at, feedback, notes
FROM talking_points WHERE meeting_id = ? AND user_id = ?`, meetingID, userID).
		Scan(&tp.ID, &tp.MeetingID, &tp.UserID, &points, &tp.AIModel, &generatedAt, &tp.Feedback, &tp.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load talking points: %w", err)
	}
	if tp.Points, err = decodeStrings(points); err != nil {
		return nil, err
	}
	if tp.GeneratedAt, err = parseTime(generatedAt); err != nil {
		return nil, err
	}
	return &tp, nil
}

// SetFeedback records the user's verdict on a meeting's talking points.
// Empty values leave the stored ones untouched.
func (s *Store) SetFeedback(ctx context.Context, userID, meetingID, feedback, notes string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE talking_points SET
    feedback = CASE WHEN ? = '' THEN feedback ELSE ? END,
    notes = CASE WHEN ? = '' THEN notes ELSE ? END
WHERE meeting_id = ? AND user_id = ?`,
		feedback, feedback, notes, notes, meetingID, userID)
	if err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}
	return requireAffected(res)
}
