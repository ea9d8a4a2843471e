// Package profile manages the professional context a user declares during
// onboarding.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"readi/internal/models"
	"readi/internal/store"
)

// Input is a create or update payload. Nil fields were absent from the
// request; for updates they keep the stored value.
type Input struct {
	Name                   *string        `json:"name"`
	Role                   *models.Role   `json:"role"`
	DisplayName            *string        `json:"displayName"`
	TimeZone               *string        `json:"timeZone"`
	ReminderMinutes        *int           `json:"reminderMinutes"`
	ResumeURL              *string        `json:"resumeUrl"`
	JobRole                *string        `json:"jobRole"`
	TargetCompanies        *[]string      `json:"targetCompanies"`
	CompanyName            *string        `json:"companyName"`
	ProductDescription     *string        `json:"productDescription"`
	SalesPainPoints        *string        `json:"salesPainPoints"`
	SalesTargets           *string        `json:"salesTargets"`
	PreferredMeetingTypes  *[]string      `json:"preferredMeetingTypes"`
	NotificationPreference *string        `json:"notificationPreference"`
	Notes                  *string        `json:"notes"`
	ProfileData            map[string]any `json:"profileData"`
}

// Store is the persistence the service needs.
type Store interface {
	UpsertProfile(ctx context.Context, userID string, p *models.Profile) (*models.Profile, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	DeleteProfile(ctx context.Context, userID string) error
	UpdateUserName(ctx context.Context, id, name string) error
}

// Service validates and stores profiles.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(logger *slog.Logger, store Store) *Service {
	return &Service{store: store, logger: logger}
}

// Get returns the profile of userID or store.ErrNotFound.
func (s *Service) Get(ctx context.Context, userID string) (*models.Profile, error) {
	return s.store.GetProfile(ctx, userID)
}

// Upsert creates the profile of userID or overwrites the fields present in
// the input. The role rules apply to the input on its own; fields it omits
// keep their stored values. A non-empty name also renames the user.
func (s *Service) Upsert(ctx context.Context, userID string, in *Input) (*models.Profile, error) {
	if in.Role == nil {
		return nil, &ValidationError{Message: "Invalid profile data", Fields: map[string]string{"role": "is required"}}
	}
	if err := checkFields(in); err != nil {
		return nil, err
	}
	payload := &models.Profile{}
	apply(payload, in)
	if err := Validate(payload); err != nil {
		s.logger.Warn("Profile validation failed.", "userID", userID, "error", err)
		return nil, err
	}

	p, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		p = &models.Profile{}
	} else if err != nil {
		return nil, err
	}
	apply(p, in)
	return s.save(ctx, userID, in, p)
}

// Merge applies the fields present in the input to the existing profile.
// It returns store.ErrNotFound when the user has no profile yet.
func (s *Service) Merge(ctx context.Context, userID string, in *Input) (*models.Profile, error) {
	if err := checkFields(in); err != nil {
		return nil, err
	}
	existing, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	apply(existing, in)
	return s.save(ctx, userID, in, existing)
}

// Delete removes the profile of userID.
func (s *Service) Delete(ctx context.Context, userID string) error {
	if err := s.store.DeleteProfile(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("Profile deleted.", "userID", userID)
	return nil
}

func (s *Service) save(ctx context.Context, userID string, in *Input, p *models.Profile) (*models.Profile, error) {
	if err := Validate(p); err != nil {
		s.logger.Warn("Profile validation failed.", "userID", userID, "error", err)
		return nil, err
	}
	if in.Name != nil {
		if name := strings.TrimSpace(*in.Name); name != "" {
			if err := s.store.UpdateUserName(ctx, userID, name); err != nil {
				return nil, fmt.Errorf("failed to update user name: %w", err)
			}
		}
	}

	saved, err := s.store.UpsertProfile(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Profile saved successfully.", "userID", userID, "profileID", saved.ID)
	return saved, nil
}

func apply(p *models.Profile, in *Input) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setStrings := func(dst *[]string, src *[]string) {
		if src != nil {
			*dst = *src
		}
	}

	if in.Role != nil {
		p.Role = *in.Role
	}
	if in.ReminderMinutes != nil {
		p.ReminderMinutes = *in.ReminderMinutes
	}
	setString(&p.DisplayName, in.DisplayName)
	setString(&p.TimeZone, in.TimeZone)
	setString(&p.ResumeURL, in.ResumeURL)
	setString(&p.JobRole, in.JobRole)
	setString(&p.CompanyName, in.CompanyName)
	setString(&p.ProductDescription, in.ProductDescription)
	setString(&p.SalesPainPoints, in.SalesPainPoints)
	setString(&p.SalesTargets, in.SalesTargets)
	setString(&p.NotificationPreference, in.NotificationPreference)
	setString(&p.Notes, in.Notes)
	setStrings(&p.TargetCompanies, in.TargetCompanies)
	setStrings(&p.PreferredMeetingTypes, in.PreferredMeetingTypes)
	if in.ProfileData != nil {
		p.ProfileData = in.ProfileData
	}
}
