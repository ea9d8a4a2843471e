// Package calexport renders meetings with their talking points as
// iCalendar data and publishes them to CalDAV servers.
package calexport

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"readi/internal/models"
)

const productID = "-//readi//meeting prep//EN"

var emptyCalendar = strings.Join([]string{
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:" + productID,
	"END:VCALENDAR",
	"",
}, "\r\n")

// UID is the iCalendar UID of a meeting.
func UID(m *models.Meeting) string {
	return m.ID + "@readi"
}

// NewCalendar builds a VCALENDAR holding one VEVENT per meeting.
func NewCalendar(meetings []models.Meeting, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	for i := range meetings {
		cal.Children = append(cal.Children, toICal(&meetings[i], stamp))
	}
	return cal
}

// WriteICS encodes meetings as an iCalendar stream. An empty list still
// yields a valid VCALENDAR with no events.
func WriteICS(w io.Writer, meetings []models.Meeting) error {
	if len(meetings) == 0 {
		// go-ical refuses to encode a calendar without components.
		_, err := io.WriteString(w, emptyCalendar)
		if err != nil {
			return fmt.Errorf("failed to encode calendar: %w", err)
		}
		return nil
	}
	if err := ical.NewEncoder(w).Encode(NewCalendar(meetings, time.Now())); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

// toICal converts a meeting to a VEVENT.
func toICal(m *models.Meeting, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, UID(m))
	ve.Props.SetText(ical.PropSummary, m.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, m.StartTime.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, m.EndTime.UTC())

	if desc := description(m); desc != "" {
		ve.Props.SetText(ical.PropDescription, desc)
	}
	if m.Location != "" {
		ve.Props.SetText(ical.PropLocation, m.Location)
	}
	if u, err := url.Parse(m.MeetingLink); err == nil && m.MeetingLink != "" {
		ve.Props.SetURI(ical.PropURL, u)
	}
	for _, p := range m.Participants {
		name := ical.PropAttendee
		if p.IsOrganizer {
			name = ical.PropOrganizer
		}
		prop := ical.NewProp(name)
		prop.Value = "mailto:" + p.Email
		if p.Name != "" {
			prop.Params.Set(ical.ParamCommonName, p.Name)
		}
		ve.Props.Add(prop)
	}
	return ve
}

// description appends the talking points to the event description.
func description(m *models.Meeting) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(m.Description))
	if m.TalkingPoints != nil && len(m.TalkingPoints.Points) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Talking points:")
		for _, p := range m.TalkingPoints.Points {
			b.WriteString("\n- ")
			b.WriteString(p)
		}
	}
	return b.String()
}
