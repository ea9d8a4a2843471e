package models

import "time"

// Event represents a calendar event as fetched from a provider.
// It is independent of the stored Meeting and carries no local IDs.
type Event struct {
	ID          string    // Provider event ID (e.g. the Google event ID)
	Title       string    // Summary or title of the event
	Description string    // Detailed description of the event
	StartTime   time.Time // Start time of the event
	EndTime     time.Time // End time of the event
	AllDay      bool      // True when the provider only reported dates
	Location    string    // Location of the event
	MeetingLink string    // Video call link, if one could be found
	Status      string    // confirmed, tentative or cancelled
	Organizer   *Attendee // Organizer, when the provider reports one
	Attendees   []Attendee
}

// Attendee is a single invitee on an Event.
type Attendee struct {
	Email          string
	Name           string
	Organizer      bool
	ResponseStatus string
}
