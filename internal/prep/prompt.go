package prep

import (
	"fmt"
	"regexp"
	"strings"

	"readi/internal/models"
)

const (
	maxEmailSnippets = 5
	maxSnippetRunes  = 500
	isoLayout        = "2006-01-02T15:04:05.000Z07:00"
)

var bulletPrefix = regexp.MustCompile(`^[-*•\d.)\s]+`)

// Input is everything known about a meeting when its prep is generated.
type Input struct {
	Meeting *models.Meeting
	// Profile is nil when the user skipped onboarding.
	Profile *models.Profile
}

// BuildPrompt renders the language model prompt for in.
func BuildPrompt(in *Input) string {
	var (
		b     strings.Builder
		role  models.Role
		lines []string
	)
	if p := in.Profile; p != nil {
		role = p.Role
		add := func(label, value string) {
			if strings.TrimSpace(value) != "" {
				lines = append(lines, label+": "+value)
			}
		}
		add("Preferred name", p.DisplayName)
		add("Job role", p.JobRole)
		add("Target companies", strings.Join(p.TargetCompanies, ", "))
		add("Company", p.CompanyName)
		add("Product", p.ProductDescription)
		add("Pain points", p.SalesPainPoints)
		add("Sales targets", p.SalesTargets)
		add("Notes", p.Notes)
	}

	m := in.Meeting
	var participants []string
	for _, p := range m.Participants {
		name := p.DisplayName()
		if p.IsOrganizer {
			name += " (organizer)"
		}
		participants = append(participants, name)
	}

	fmt.Fprintf(&b, "You are Readi, an assistant that prepares a %s for meetings.\n\n", role.Label())
	fmt.Fprintf(&b, "Meeting: %s\n", m.Title)
	fmt.Fprintf(&b, "When: %s\n", m.StartTime.UTC().Format(isoLayout))
	fmt.Fprintf(&b, "Participants: %s\n\n", orDefault(strings.Join(participants, ", "), "Not provided"))
	fmt.Fprintf(&b, "User Profile:\n%s\n\n", orDefault(strings.Join(lines, "\n"), "No extra profile info"))
	fmt.Fprintf(&b, "Recent Emails:\n%s\n\n", orDefault(strings.Join(emailSnippets(m.EmailThreads), "\n"), "No recent emails found"))
	b.WriteString("Generate 3-4 short talking points (bulleted) that help the user make a strong impression. Keep language crisp and actionable.")
	return b.String()
}

// emailSnippets returns "from: body" lines for the first messages of the
// linked threads.
func emailSnippets(threads []models.EmailThread) []string {
	var out []string
	for _, th := range threads {
		for _, msg := range th.Messages {
			if len(out) == maxEmailSnippets {
				return out
			}
			out = append(out, msg.FromEmail+": "+truncate(strings.Join(strings.Fields(msg.BodyText), " "), maxSnippetRunes))
		}
	}
	return out
}

// ParseBulletPoints splits model output into points, stripping list
// markers. When no line survives the whole content is returned as one point.
func ParseBulletPoints(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	var points []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		if line != "" {
			points = append(points, line)
		}
	}
	if len(points) == 0 {
		return []string{strings.TrimSpace(content)}
	}
	return points
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
