package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"readi/internal/models"
)

const (
	gmailUser      = "me"
	defaultSubject = "No Subject"
)

var emailPattern = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.\w+`)

// GmailClient reads the signed-in user's mailbox.
type GmailClient struct {
	service *gmail.Service
	logger  *slog.Logger
}

// NewGmailClient creates a new Gmail client.
func NewGmailClient(ctx context.Context, logger *slog.Logger, client *http.Client, opts ...option.ClientOption) (*GmailClient, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return &GmailClient{service: service, logger: logger}, nil
}

// ListThreadIDs returns the IDs of up to max most recent threads.
func (c *GmailClient) ListThreadIDs(ctx context.Context, max int) ([]string, error) {
	var (
		ids       []string
		pageToken string
	)
	for len(ids) < max {
		call := c.service.Users.Threads.List(gmailUser).MaxResults(int64(max - len(ids))).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		var resp *gmail.ListThreadsResponse
		err := retry(ctx, c.logger, "gmail.threads.list", func() error {
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list threads: %w", err)
		}

		for _, t := range resp.Threads {
			if t.Id != "" && len(ids) < max {
				ids = append(ids, t.Id)
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return ids, nil
}

// GetThread fetches a full thread and converts it to the internal model.
func (c *GmailClient) GetThread(ctx context.Context, id string) (*models.EmailThread, error) {
	var thread *gmail.Thread
	err := retry(ctx, c.logger, "gmail.threads.get", func() error {
		var err error
		thread, err = c.service.Users.Threads.Get(gmailUser, id).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get thread %s: %w", id, err)
	}
	return toInternalThread(thread)
}

// toInternalThread derives subject, participants and last message date from
// the thread's messages.
func toInternalThread(t *gmail.Thread) (*models.EmailThread, error) {
	if len(t.Messages) == 0 {
		return nil, fmt.Errorf("thread %s has no messages", t.Id)
	}

	subject := header(t.Messages[0].Payload, "Subject")
	if subject == "" {
		subject = defaultSubject
	}

	seen := make(map[string]bool)
	var participants []string
	th := &models.EmailThread{
		GmailThreadID: t.Id,
		Subject:       subject,
		MessageCount:  len(t.Messages),
	}
	for _, m := range t.Messages {
		for _, name := range []string{"From", "To", "Cc"} {
			for _, e := range ExtractEmails(header(m.Payload, name)) {
				if !seen[e] {
					seen[e] = true
					participants = append(participants, e)
				}
			}
		}
		if m.Id == "" || m.Payload == nil {
			continue
		}
		th.Messages = append(th.Messages, toInternalMessage(m))
	}
	th.ParticipantEmails = participants
	th.LastMessageDate = time.UnixMilli(t.Messages[len(t.Messages)-1].InternalDate).UTC()
	return th, nil
}

func toInternalMessage(m *gmail.Message) models.EmailMessage {
	from := header(m.Payload, "From")
	fromEmail := from
	if addrs := ExtractEmails(from); len(addrs) > 0 {
		fromEmail = addrs[0]
	}
	return models.EmailMessage{
		GmailMessageID: m.Id,
		FromEmail:      fromEmail,
		ToEmails:       ExtractEmails(header(m.Payload, "To")),
		Subject:        header(m.Payload, "Subject"),
		BodyText:       messageBody(m.Payload, "text/plain"),
		BodyHTML:       messageBody(m.Payload, "text/html"),
		Date:           time.UnixMilli(m.InternalDate).UTC(),
	}
}

func header(part *gmail.MessagePart, name string) string {
	if part == nil {
		return ""
	}
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// ExtractEmails returns the lower-cased addresses found in a header value.
func ExtractEmails(s string) []string {
	matches := emailPattern.FindAllString(s, -1)
	for i, m := range matches {
		matches[i] = strings.ToLower(m)
	}
	return matches
}

// messageBody returns the first body part with the given MIME type,
// searching multipart trees depth first.
func messageBody(part *gmail.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		if body, ok := decodeBody(part.Body.Data); ok {
			return body
		}
	}
	for _, p := range part.Parts {
		if body := messageBody(p, mimeType); body != "" {
			return body
		}
	}
	return ""
}

func decodeBody(data string) (string, bool) {
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding, base64.StdEncoding} {
		if b, err := enc.DecodeString(data); err == nil {
			return string(b), true
		}
	}
	return "", false
}
