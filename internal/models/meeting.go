package models

import "time"

// StatusConfirmed is the status a synced event gets when the provider omits one.
const StatusConfirmed = "confirmed"

// Meeting is a calendar event stored for a user.
type Meeting struct {
	ID            string        `json:"id"`
	UserID        string        `json:"userId"`
	GoogleEventID string        `json:"googleEventId"`
	Title         string        `json:"title"`
	Description   string        `json:"description,omitempty"`
	StartTime     time.Time     `json:"startTime"`
	EndTime       time.Time     `json:"endTime"`
	Location      string        `json:"location,omitempty"`
	MeetingLink   string        `json:"meetingLink,omitempty"`
	Status        string        `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	Participants  []Participant `json:"participants"`
	TalkingPoints *TalkingPoint `json:"talkingPoints,omitempty"`
	EmailThreads  []EmailThread `json:"emailThreads,omitempty"`
}

// Participant is an attendee of a stored meeting.
type Participant struct {
	ID             string `json:"id"`
	MeetingID      string `json:"meetingId"`
	Email          string `json:"email"`
	Name           string `json:"name,omitempty"`
	IsOrganizer    bool   `json:"isOrganizer"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

// DisplayName returns the participant's name, falling back to the address.
func (p Participant) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}

// TalkingPoint holds the generated prep notes for a meeting.
type TalkingPoint struct {
	ID          string    `json:"id"`
	MeetingID   string    `json:"meetingId"`
	UserID      string    `json:"userId"`
	Points      []string  `json:"points"`
	AIModel     string    `json:"aiModel"`
	GeneratedAt time.Time `json:"generatedAt"`
	Feedback    string    `json:"feedback,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// Feedback values accepted for talking points.
const (
	FeedbackHelpful    = "helpful"
	FeedbackNotHelpful = "not_helpful"
)
