package models

import "time"

// EmailThread is a Gmail conversation. Threads returned by the Gmail client
// have no ID or UserID until they are stored.
type EmailThread struct {
	ID                string         `json:"id"`
	UserID            string         `json:"userId"`
	GmailThreadID     string         `json:"gmailThreadId"`
	Subject           string         `json:"subject"`
	ParticipantEmails []string       `json:"participantEmails"`
	LastMessageDate   time.Time      `json:"lastMessageDate"`
	MessageCount      int            `json:"messageCount"`
	Messages          []EmailMessage `json:"messages"`
}

// EmailMessage is a single message within a thread.
type EmailMessage struct {
	ID             string    `json:"id"`
	ThreadID       string    `json:"threadId"`
	GmailMessageID string    `json:"gmailMessageId"`
	FromEmail      string    `json:"fromEmail"`
	ToEmails       []string  `json:"toEmails"`
	Subject        string    `json:"subject"`
	BodyText       string    `json:"bodyText,omitempty"`
	BodyHTML       string    `json:"bodyHtml,omitempty"`
	Date           time.Time `json:"date"`
}
