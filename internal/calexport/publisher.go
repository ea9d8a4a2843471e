package calexport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	"readi/internal/models"
)

// basicAuthTransport adds Basic Auth and the client's User-Agent to requests.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "readi/1.0")
	return t.Transport.RoundTrip(req)
}

// Publisher writes meetings into a calendar on a CalDAV server such as iCloud.
type Publisher struct {
	client       *caldav.Client
	logger       *slog.Logger
	calendarPath string
}

// NewPublisher connects to endpoint and resolves the calendar named
// calendarName. An empty name selects the first calendar found.
func NewPublisher(ctx context.Context, logger *slog.Logger, endpoint, username, password, calendarName string) (*Publisher, error) {
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &basicAuthTransport{Username: username, Password: password, Transport: http.DefaultTransport},
	}
	client, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	p := &Publisher{client: client, logger: logger}
	logger.Info("Finding CalDAV calendar", "endpoint", endpoint, "calendarName", calendarName)
	if p.calendarPath, err = p.findCalendar(ctx, calendarName); err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", calendarName, err)
	}
	logger.Info("Successfully found CalDAV calendar", "path", p.calendarPath)
	return p, nil
}

// Publish creates or replaces one calendar object per meeting. Failures are
// logged and skipped; the number of published meetings is returned.
func (p *Publisher) Publish(ctx context.Context, meetings []models.Meeting) (int, error) {
	published := 0
	for i := range meetings {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		m := &meetings[i]
		if err := p.put(ctx, m); err != nil {
			p.logger.Error("Failed to publish meeting", "meetingID", m.ID, "title", m.Title, "error", err)
			continue
		}
		published++
	}
	p.logger.Info("Published meetings to CalDAV.", "published", published, "total", len(meetings))
	return published, nil
}

func (p *Publisher) put(ctx context.Context, m *models.Meeting) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, toICal(m, time.Now()))

	if _, err := p.client.PutCalendarObject(ctx, objectPath(p.calendarPath, m), cal); err != nil {
		return fmt.Errorf("failed to put calendar object: %w", err)
	}
	p.logger.Debug("Published meeting", "meetingID", m.ID, "title", m.Title)
	return nil
}

// findCalendar discovers the user's calendars and returns the path of the
// one with the matching name.
func (p *Publisher) findCalendar(ctx context.Context, name string) (string, error) {
	principal, err := p.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}
	homeSet, err := p.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}
	calendars, err := p.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}
	return selectCalendar(calendars, name)
}

func selectCalendar(calendars []caldav.Calendar, name string) (string, error) {
	for _, cal := range calendars {
		if name == "" || cal.Name == name {
			return cal.Path, nil
		}
	}
	return "", fmt.Errorf("no calendar found with name '%s'", name)
}

func objectPath(calendarPath string, m *models.Meeting) string {
	return path.Join(calendarPath, m.ID+".ics")
}
