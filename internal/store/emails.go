package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"readi/internal/models"
)

const threadColumns = `t.id, t.user_id, t.gmail_thread_id, t.subject, t.last_message_date, t.message_count`

// UpsertThread stores a Gmail thread for userID, replacing its participant
// set and upserting each message by Gmail message ID.
func (s *Store) UpsertThread(ctx context.Context, userID string, th *models.EmailThread) (*models.EmailThread, error) {
	if th == nil || th.GmailThreadID == "" {
		return nil, fmt.Errorf("thread requires a gmail thread id")
	}
	now := formatTime(s.now())
	count := th.MessageCount
	if count == 0 {
		count = len(th.Messages)
	}

	var threadID string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
INSERT INTO email_threads (id, user_id, gmail_thread_id, subject, last_message_date, message_count, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id, gmail_thread_id) DO UPDATE SET
    subject = excluded.subject,
    last_message_date = excluded.last_message_date,
    message_count = excluded.message_count,
    updated_at = excluded.updated_at
RETURNING id`,
			newID(), userID, th.GmailThreadID, th.Subject, formatTime(th.LastMessageDate), count, now, now).Scan(&threadID)
		if err != nil {
			return fmt.Errorf("failed to upsert thread: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM email_thread_participants WHERE thread_id = ?`, threadID); err != nil {
			return fmt.Errorf("failed to reset thread participants: %w", err)
		}
		for _, email := range th.ParticipantEmails {
			if email = normalizeEmail(email); email == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO email_thread_participants (thread_id, email) VALUES (?, ?)`, threadID, email); err != nil {
				return fmt.Errorf("failed to store thread participant: %w", err)
			}
		}

		for _, msg := range th.Messages {
			if msg.GmailMessageID == "" {
				continue
			}
			to, err := encodeStrings(msg.ToEmails)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO email_messages (id, thread_id, gmail_message_id, from_email, to_emails, subject, body_text, body_html, date)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(gmail_message_id) DO UPDATE SET
    from_email = excluded.from_email,
    to_emails = excluded.to_emails,
    subject = excluded.subject,
    body_text = excluded.body_text,
    body_html = excluded.body_html,
    date = excluded.date`,
				newID(), threadID, msg.GmailMessageID, msg.FromEmail, to, msg.Subject, msg.BodyText, msg.BodyHTML,
				formatTime(msg.Date)); err != nil {
				return fmt.Errorf("failed to upsert message %s: %w", msg.GmailMessageID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetThread(ctx, userID, threadID)
}

// GetThread returns a thread owned by userID with all messages, oldest first.
func (s *Store) GetThread(ctx context.Context, userID, id string) (*models.EmailThread, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+threadColumns+` FROM email_threads t WHERE t.id = ? AND t.user_id = ?`, id, userID)
	th, err := scanThread(row)
	if err != nil {
		return nil, err
	}
	if err := s.fillThread(ctx, th, 0); err != nil {
		return nil, err
	}
	sort.SliceStable(th.Messages, func(i, j int) bool {
		return th.Messages[i].Date.Before(th.Messages[j].Date)
	})
	return th, nil
}

// ListThreads returns the user's threads, most recent first, each carrying
// only its newest message.
func (s *Store) ListThreads(ctx context.Context, userID string, limit int) ([]models.EmailThread, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.listThreads(ctx, 1, `
SELECT `+threadColumns+` FROM email_threads t
WHERE t.user_id = ?
ORDER BY t.last_message_date DESC LIMIT ?`, userID, limit)
}

// FindThreadsByParticipant returns up to limit threads the address took part
// in, most recent first, each with its newest messages.
func (s *Store) FindThreadsByParticipant(ctx context.Context, userID, email string, limit, messages int) ([]models.EmailThread, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.listThreads(ctx, messages, `
SELECT `+threadColumns+` FROM email_threads t
JOIN email_thread_participants p ON p.thread_id = t.id
WHERE t.user_id = ? AND p.email = ?
ORDER BY t.last_message_date DESC LIMIT ?`, userID, normalizeEmail(email), limit)
}

// ThreadIDsByParticipant returns the IDs of up to limit threads the address
// took part in, most recent first, without loading their contents.
func (s *Store) ThreadIDsByParticipant(ctx context.Context, userID, email string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT t.id FROM email_threads t
JOIN email_thread_participants p ON p.thread_id = t.id
WHERE t.user_id = ? AND p.email = ?
ORDER BY t.last_message_date DESC LIMIT ?`, userID, normalizeEmail(email), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list thread ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan thread id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LinkThread associates a thread with a meeting. It reports whether a new
// link was created; linking twice is not an error.
func (s *Store) LinkThread(ctx context.Context, meetingID, threadID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO meeting_email_links (id, meeting_id, thread_id, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(meeting_id, thread_id) DO NOTHING`,
		newID(), meetingID, threadID, formatTime(s.now()))
	if err != nil {
		return false, fmt.Errorf("failed to link thread: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (s *Store) linkedThreads(ctx context.Context, meetingID string, messages int) ([]models.EmailThread, error) {
	return s.listThreads(ctx, messages, `
SELECT `+threadColumns+` FROM email_threads t
JOIN meeting_email_links l ON l.thread_id = t.id
WHERE l.meeting_id = ?
ORDER BY t.last_message_date DESC`, meetingID)
}

// listThreads runs a thread query and loads up to messages newest messages
// per thread (all when messages is zero).
func (s *Store) listThreads(ctx context.Context, messages int, query string, args ...any) ([]models.EmailThread, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	threads := []models.EmailThread{}
	for rows.Next() {
		th, err := scanThread(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		threads = append(threads, *th)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	rows.Close()

	for i := range threads {
		if err := s.fillThread(ctx, &threads[i], messages); err != nil {
			return nil, err
		}
	}
	return threads, nil
}

// fillThread loads participants and the newest limit messages (newest first).
func (s *Store) fillThread(ctx context.Context, th *models.EmailThread, limit int) error {
	prow, err := s.db.QueryContext(ctx,
		`SELECT email FROM email_thread_participants WHERE thread_id = ? ORDER BY email`, th.ID)
	if err != nil {
		return fmt.Errorf("failed to list thread participants: %w", err)
	}
	th.ParticipantEmails = []string{}
	for prow.Next() {
		var email string
		if err := prow.Scan(&email); err != nil {
			prow.Close()
			return fmt.Errorf("failed to scan thread participant: %w", err)
		}
		th.ParticipantEmails = append(th.ParticipantEmails, email)
	}
	if err := prow.Err(); err != nil {
		prow.Close()
		return err
	}
	prow.Close()

	query := `
SELECT id, thread_id, gmail_message_id, from_email, to_emails, subject, body_text, body_html, date
FROM email_messages WHERE thread_id = ? ORDER BY date DESC`
	args := []any{th.ID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	th.Messages = []models.EmailMessage{}
	for rows.Next() {
		var (
			m        models.EmailMessage
			to, date string
		)
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.GmailMessageID, &m.FromEmail, &to, &m.Subject,
			&m.BodyText, &m.BodyHTML, &date); err != nil {
			return fmt.Errorf("failed to scan message: %w", err)
		}
		if m.ToEmails, err = decodeStrings(to); err != nil {
			return err
		}
		if m.Date, err = parseTime(date); err != nil {
			return err
		}
		th.Messages = append(th.Messages, m)
	}
	return rows.Err()
}

func scanThread(row rowScanner) (*models.EmailThread, error) {
	var (
		th   models.EmailThread
		last string
	)
	err := row.Scan(&th.ID, &th.UserID, &th.GmailThreadID, &th.Subject, &last, &th.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan thread: %w", err)
	}
	if th.LastMessageDate, err = parseTime(last); err != nil {
		return nil, err
	}
	return &th, nil
}
