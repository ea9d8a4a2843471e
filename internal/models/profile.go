package models

import "time"

// Role is the professional context a profile prepares for.
type Role string

const (
	RoleJobSeeker Role = "job_seeker"
	RoleSales     Role = "sales"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleJobSeeker || r == RoleSales
}

// Label is how the role is described to the language model.
func (r Role) Label() string {
	if r == RoleSales {
		return "sales professional"
	}
	return "job seeker"
}

// Notification preferences.
const (
	NotifyPush  = "push"
	NotifyEmail = "email"
	NotifyBoth  = "both"
)

// DefaultReminderMinutes applies when a profile does not set a reminder.
const DefaultReminderMinutes = 30

// Profile is the professional context a user declares during onboarding.
type Profile struct {
	ID                     string         `json:"id"`
	UserID                 string         `json:"userId"`
	Role                   Role           `json:"role"`
	DisplayName            string         `json:"displayName,omitempty"`
	TimeZone               string         `json:"timeZone,omitempty"`
	ReminderMinutes        int            `json:"reminderMinutes"`
	ResumeURL              string         `json:"resumeUrl,omitempty"`
	JobRole                string         `json:"jobRole,omitempty"`
	TargetCompanies        []string       `json:"targetCompanies"`
	CompanyName            string         `json:"companyName,omitempty"`
	ProductDescription     string         `json:"productDescription,omitempty"`
	SalesPainPoints        string         `json:"salesPainPoints,omitempty"`
	SalesTargets           string         `json:"salesTargets,omitempty"`
	PreferredMeetingTypes  []string       `json:"preferredMeetingTypes"`
	NotificationPreference string         `json:"notificationPreference"`
	Notes                  string         `json:"notes,omitempty"`
	ProfileData            map[string]any `json:"profileData,omitempty"`
	CreatedAt              time.Time      `json:"createdAt"`
	UpdatedAt              time.Time      `json:"updatedAt"`
	User                   *User          `json:"user,omitempty"`
}
