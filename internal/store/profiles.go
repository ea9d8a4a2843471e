package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"readi/internal/models"
)

// UpsertProfile creates or replaces the profile of userID.
func (s *Store) UpsertProfile(ctx context.Context, userID string, p *models.Profile) (*models.Profile, error) {
	targets, err := encodeStrings(p.TargetCompanies)
	if err != nil {
		return nil, err
	}
	meetingTypes, err := encodeStrings(p.PreferredMeetingTypes)
	if err != nil {
		return nil, err
	}
	data, err := encodeJSON(p.ProfileData)
	if err != nil {
		return nil, err
	}
	reminder := p.ReminderMinutes
	if reminder <= 0 {
		reminder = models.DefaultReminderMinutes
	}
	notify := p.NotificationPreference
	if notify == "" {
		notify = models.NotifyPush
	}
	now := formatTime(s.now())

	_, err = s.db.ExecContext(ctx, `
INSERT INTO profiles (
    id, user_id, role, display_name, time_zone, reminder_minutes, resume_url, job_role,
    target_companies, company_name, product_description, sales_pain_points, sales_targets,
    preferred_meeting_types, notification_preference, notes, profile_data, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
    role = excluded.role,
    display_name = excluded.display_name,
    time_zone = excluded.time_zone,
    reminder_minutes = excluded.reminder_minutes,
    resume_url = excluded.resume_url,
    job_role = excluded.job_role,
    target_companies = excluded.target_companies,
    company_name = excluded.company_name,
    product_description = excluded.product_description,
    sales_pain_points = excluded.sales_pain_points,
    sales_targets = excluded.sales_targets,
    preferred_meeting_types = excluded.preferred_meeting_types,
    notification_preference = excluded.notification_preference,
    notes = excluded.notes,
    profile_data = excluded.profile_data,
    updated_at = excluded.updated_at`,
		newID(), userID, string(p.Role), p.DisplayName, p.TimeZone, reminder, p.ResumeURL, p.JobRole,
		targets, p.CompanyName, p.ProductDescription, p.SalesPainPoints, p.SalesTargets,
		meetingTypes, notify, p.Notes, data, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return s.GetProfile(ctx, userID)
}

// GetProfile returns the profile of userID together with the owning user.
func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var (
		p                                models.Profile
		role, targets, meetingTypes, raw string
		createdAt, updatedAt             string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, user_id, role, display_name, time_zone, reminder_minutes, resume_url, job_role,
       target_companies, company_name, product_description, sales_pain_points, sales_targets,
       preferred_meeting_types, notification_preference, notes, profile_data, created_at, updated_at
FROM profiles WHERE user_id = ?`, userID).Scan(
		&p.ID, &p.UserID, &role, &p.DisplayName, &p.TimeZone, &p.ReminderMinutes, &p.ResumeURL, &p.JobRole,
		&targets, &p.CompanyName, &p.ProductDescription, &p.SalesPainPoints, &p.SalesTargets,
		&meetingTypes, &p.NotificationPreference, &p.Notes, &raw, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	p.Role = models.Role(role)
	if p.TargetCompanies, err = decodeStrings(targets); err != nil {
		return nil, err
	}
	if p.PreferredMeetingTypes, err = decodeStrings(meetingTypes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &p.ProfileData); err != nil {
		return nil, fmt.Errorf("failed to decode profile data: %w", err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	if p.User, err = s.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to load profile owner: %w", err)
	}
	return &p, nil
}

// DeleteProfile removes the profile of userID.
func (s *Store) DeleteProfile(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return requireAffected(res)
}
