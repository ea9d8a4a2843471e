package models

import "time"

// User is an account created through Google sign-in.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	GoogleID  string    `json:"-"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GoogleIdentity is the subset of the Google user info we rely on.
type GoogleIdentity struct {
	ID      string
	Email   string
	Name    string
	Picture string
}
