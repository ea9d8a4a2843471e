package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"readi/internal/models"
)

const meetingColumns = `id, user_id, google_event_id, title, description, start_time, end_time,
       location, meeting_link, status, created_at, updated_at`

// linkedMessagesPerThread is how many of the newest messages are loaded for
// each thread linked to a meeting.
const linkedMessagesPerThread = 5

// UpsertMeeting stores a provider event for userID together with its
// attendees and organizer. Participant addresses are stored lower-cased.
func (s *Store) UpsertMeeting(ctx context.Context, userID string, ev *models.Event) (*models.Meeting, error) {
	if ev == nil || ev.ID == "" {
		return nil, fmt.Errorf("event requires a provider id")
	}
	status := ev.Status
	if status == "" {
		status = models.StatusConfirmed
	}
	now := formatTime(s.now())

	var meetingID string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
INSERT INTO calendar_events (id, user_id, google_event_id, title, description, start_time, end_time,
                             location, meeting_link, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id, google_event_id) DO UPDATE SET
    title = excluded.title,
    description = excluded.description,
    start_time = excluded.start_time,
    end_time = excluded.end_time,
    location = excluded.location,
    meeting_link = excluded.meeting_link,
    status = excluded.status,
    updated_at = excluded.updated_at
RETURNING id`,
			newID(), userID, ev.ID, ev.Title, ev.Description, formatTime(ev.StartTime), formatTime(ev.EndTime),
			ev.Location, ev.MeetingLink, status, now, now).Scan(&meetingID)
		if err != nil {
			return fmt.Errorf("failed to upsert meeting: %w", err)
		}

		for _, a := range ev.Attendees {
			if a.Email == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO meeting_participants (id, event_id, email, name, is_organizer, response_status)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(event_id, email) DO UPDATE SET
    name = excluded.name,
    is_organizer = excluded.is_organizer,
    response_status = excluded.response_status`,
				newID(), meetingID, normalizeEmail(a.Email), a.Name, boolToInt(a.Organizer), a.ResponseStatus); err != nil {
				return fmt.Errorf("failed to upsert participant: %w", err)
			}
		}

		if ev.Organizer != nil && ev.Organizer.Email != "" {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO meeting_participants (id, event_id, email, name, is_organizer)
VALUES (?, ?, ?, ?, 1)
ON CONFLICT(event_id, email) DO UPDATE SET
    name = CASE WHEN excluded.name = '' THEN meeting_participants.name ELSE excluded.name END,
    is_organizer = 1`,
				newID(), meetingID, normalizeEmail(ev.Organizer.Email), ev.Organizer.Name); err != nil {
				return fmt.Errorf("failed to upsert organizer: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m, err := s.meeting(ctx, userID, meetingID)
	if err != nil {
		return nil, err
	}
	if m.Participants, err = s.participants(ctx, meetingID); err != nil {
		return nil, err
	}
	return m, nil
}

// GetMeeting returns a meeting with its participants, talking points and
// linked email threads (each with its newest messages first).
func (s *Store) GetMeeting(ctx context.Context, userID, id string) (*models.Meeting, error) {
	m, err := s.meeting(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if m.Participants, err = s.participants(ctx, id); err != nil {
		return nil, err
	}
	if m.TalkingPoints, err = s.GetTalkingPoints(ctx, userID, id); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if m.EmailThreads, err = s.linkedThreads(ctx, id, linkedMessagesPerThread); err != nil {
		return nil, err
	}
	return m, nil
}

// UpcomingMeetings returns confirmed meetings starting at or after now, soonest first.
func (s *Store) UpcomingMeetings(ctx context.Context, userID string, now time.Time, limit int) ([]models.Meeting, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.listMeetings(ctx, `
SELECT `+meetingColumns+` FROM calendar_events
WHERE user_id = ? AND start_time >= ? AND status = ?
ORDER BY start_time ASC LIMIT ?`,
		userID, formatTime(now), models.StatusConfirmed, limit)
}

// MeetingsStartingBetween returns confirmed meetings with from <= start < to.
func (s *Store) MeetingsStartingBetween(ctx context.Context, userID string, from, to time.Time) ([]models.Meeting, error) {
	return s.listMeetings(ctx, `
SELECT `+meetingColumns+` FROM calendar_events
WHERE user_id = ? AND start_time >= ? AND start_time < ? AND status = ?
ORDER BY start_time ASC`,
		userID, formatTime(from), formatTime(to), models.StatusConfirmed)
}

// Participants returns the participants of a meeting owned by userID.
func (s *Store) Participants(ctx context.Context, userID, meetingID string) ([]models.Participant, error) {
	if _, err := s.meeting(ctx, userID, meetingID); err != nil {
		return nil, err
	}
	return s.participants(ctx, meetingID)
}

func (s *Store) listMeetings(ctx context.Context, query string, args ...any) ([]models.Meeting, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	var meetings []models.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		meetings = append(meetings, *m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	rows.Close()

	// Related rows are loaded after the cursor is closed; the pool has one connection.
	for i := range meetings {
		m := &meetings[i]
		if m.Participants, err = s.participants(ctx, m.ID); err != nil {
			return nil, err
		}
		if m.TalkingPoints, err = s.GetTalkingPoints(ctx, m.UserID, m.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return meetings, nil
}

func (s *Store) meeting(ctx context.Context, userID, id string) (*models.Meeting, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+meetingColumns+` FROM calendar_events WHERE id = ? AND user_id = ?`, id, userID)
	return scanMeeting(row)
}

func (s *Store) participants(ctx context.Context, meetingID string) ([]models.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, event_id, email, name, is_organizer, response_status
FROM meeting_participants WHERE event_id = ?
ORDER BY is_organizer DESC, email ASC`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	participants := []models.Participant{}
	for rows.Next() {
		var (
			p         models.Participant
			organizer int
		)
		if err := rows.Scan(&p.ID, &p.MeetingID, &p.Email, &p.Name, &organizer, &p.ResponseStatus); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.IsOrganizer = organizer != 0
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func scanMeeting(row rowScanner) (*models.Meeting, error) {
	var (
		m                                models.Meeting
		start, end, createdAt, updatedAt string
	)
	err := row.Scan(&m.ID, &m.UserID, &m.GoogleEventID, &m.Title, &m.Description, &start, &end,
		&m.Location, &m.MeetingLink, &m.Status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan meeting: %w", err)
	}
	for _, f := range []struct {
		dst *time.Time
		src string
	}{{&m.StartTime, start}, {&m.EndTime, end}, {&m.CreatedAt, createdAt}, {&m.UpdatedAt, updatedAt}} {
		if *f.dst, err = parseTime(f.src); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
