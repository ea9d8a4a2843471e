package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"readi/internal/models"
)

const (
	primaryCalendar = "primary"
	eventsPageSize  = 250
	allDayLayout    = "2006-01-02"
)

// meetingLinkPatterns match video call links found in event descriptions.
var meetingLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)https?://meet\.google\.com/[a-z-]+`),
	regexp.MustCompile(`(?i)https?://(?:[\w-]+\.)?zoom\.us/j/\d+`),
	regexp.MustCompile(`(?i)https?://teams\.microsoft\.com/l/meetup-join/\S+`),
}

// CalendarClient provides a client for interacting with the Google Calendar API.
type CalendarClient struct {
	service    *calendar.Service
	logger     *slog.Logger
	calendarID string
}

// Channel describes a Calendar push notification channel.
type Channel struct {
	ID         string
	ResourceID string
	Expiration time.Time
}

// NewCalendarClient creates a client for the user's primary calendar.
func NewCalendarClient(ctx context.Context, logger *slog.Logger, client *http.Client, opts ...option.ClientOption) (*CalendarClient, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &CalendarClient{service: service, logger: logger, calendarID: primaryCalendar}, nil
}

// ListEvents fetches single (expanded) events starting between timeMin and
// timeMax, ordered by start time.
func (c *CalendarClient) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]*models.Event, error) {
	c.logger.Debug("Fetching calendar events", "calendarID", c.calendarID, "timeMin", timeMin, "timeMax", timeMax)

	var events []*models.Event
	err := retry(ctx, c.logger, "calendar.events.list", func() error {
		events = nil
		return c.service.Events.List(c.calendarID).
			ShowDeleted(false).
			SingleEvents(true).
			TimeMin(timeMin.UTC().Format(time.RFC3339)).
			TimeMax(timeMax.UTC().Format(time.RFC3339)).
			OrderBy("startTime").
			MaxResults(eventsPageSize).
			Pages(ctx, func(page *calendar.Events) error {
				events = append(events, c.toInternalEvents(page.Items)...)
				return nil
			})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve events: %w", err)
	}

	c.logger.Info("Successfully fetched events from Google Calendar", "count", len(events), "calendarID", c.calendarID)
	return events, nil
}

// Watch registers a push notification channel for the calendar.
func (c *CalendarClient) Watch(ctx context.Context, channelID, address, token string) (*Channel, error) {
	var ch *calendar.Channel
	err := retry(ctx, c.logger, "calendar.events.watch", func() error {
		var err error
		ch, err = c.service.Events.Watch(c.calendarID, &calendar.Channel{
			Id:      channelID,
			Type:    "web_hook",
			Address: address,
			Token:   token,
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup webhook: %w", err)
	}

	out := &Channel{ID: ch.Id, ResourceID: ch.ResourceId}
	if ch.Expiration > 0 {
		out.Expiration = time.UnixMilli(ch.Expiration).UTC()
	}
	return out, nil
}

// toInternalEvents converts Google Calendar events to the internal Event model.
func (c *CalendarClient) toInternalEvents(items []*calendar.Event) []*models.Event {
	var out []*models.Event
	for _, item := range items {
		ev, err := toInternalEvent(item)
		if err != nil {
			c.logger.Debug("Skipping calendar event", "id", item.Id, "reason", err)
			continue
		}
		out = append(out, ev)
	}
	return out
}

func toInternalEvent(item *calendar.Event) (*models.Event, error) {
	if item.Id == "" || item.Summary == "" || item.Start == nil {
		return nil, fmt.Errorf("missing id, summary or start")
	}
	start, allDay, err := parseEventTime(item.Start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, _, err := parseEventTime(item.End)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}

	ev := &models.Event{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		StartTime:   start,
		EndTime:     end,
		AllDay:      allDay,
		Location:    item.Location,
		MeetingLink: item.HangoutLink,
		Status:      item.Status,
	}
	if ev.MeetingLink == "" {
		ev.MeetingLink = ExtractMeetingLink(item.Description)
	}
	if ev.Status == "" {
		ev.Status = models.StatusConfirmed
	}
	if item.Organizer != nil && item.Organizer.Email != "" {
		ev.Organizer = &models.Attendee{Email: item.Organizer.Email, Name: item.Organizer.DisplayName, Organizer: true}
	}
	for _, a := range item.Attendees {
		if a.Email == "" {
			continue
		}
		ev.Attendees = append(ev.Attendees, models.Attendee{
			Email:          a.Email,
			Name:           a.DisplayName,
			Organizer:      a.Organizer,
			ResponseStatus: a.ResponseStatus,
		})
	}
	return ev, nil
}

func parseEventTime(t *calendar.EventDateTime) (time.Time, bool, error) {
	if t == nil {
		return time.Time{}, false, fmt.Errorf("missing time")
	}
	if t.DateTime != "" {
		v, err := time.Parse(time.RFC3339, t.DateTime)
		return v, false, err
	}
	if t.Date != "" {
		v, err := time.Parse(allDayLayout, t.Date)
		return v, true, err
	}
	return time.Time{}, false, fmt.Errorf("missing time")
}

// ExtractMeetingLink returns the first Google Meet, Zoom or Teams link in text.
func ExtractMeetingLink(text string) string {
	if text == "" {
		return ""
	}
	for _, re := range meetingLinkPatterns {
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}
