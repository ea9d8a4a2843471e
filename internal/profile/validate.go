package profile

import (
	"errors"
	"net/url"
	"strings"

	"readi/internal/models"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("invalid profile")

// ValidationError explains why a profile was rejected. Fields maps a JSON
// field name to the problem with it and is empty for cross-field rules.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// checkFields rejects values that are malformed regardless of role.
func checkFields(in *Input) error {
	fields := map[string]string{}
	if in.Role != nil && !in.Role.Valid() {
		fields["role"] = "must be one of job_seeker, sales"
	}
	if in.ReminderMinutes != nil && *in.ReminderMinutes <= 0 {
		fields["reminderMinutes"] = "must be a positive integer"
	}
	if in.ResumeURL != nil && *in.ResumeURL != "" && !isAbsoluteURL(*in.ResumeURL) {
		fields["resumeUrl"] = "must be a valid URL"
	}
	if in.NotificationPreference != nil {
		switch *in.NotificationPreference {
		case models.NotifyPush, models.NotifyEmail, models.NotifyBoth:
		default:
			fields["notificationPreference"] = "must be one of push, email, both"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Message: "Invalid profile data", Fields: fields}
	}
	return nil
}

// Validate applies the role-specific requirements to a complete profile.
func Validate(p *models.Profile) error {
	switch p.Role {
	case models.RoleJobSeeker:
		if strings.TrimSpace(p.JobRole) == "" {
			return &ValidationError{Message: "Job seekers must provide a target role."}
		}
		if len(p.TargetCompanies) == 0 {
			return &ValidationError{Message: "Add at least one target company."}
		}
	case models.RoleSales:
		if strings.TrimSpace(p.CompanyName) == "" {
			return &ValidationError{Message: "Sales professionals must provide their company name."}
		}
		if strings.TrimSpace(p.ProductDescription) == "" {
			return &ValidationError{Message: "Add a short product description."}
		}
	default:
		return &ValidationError{Message: "Invalid profile data", Fields: map[string]string{"role": "must be one of job_seeker, sales"}}
	}
	return nil
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
