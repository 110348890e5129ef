package models

import "time"

// Session is an authenticated dashboard session. IsAdmin is captured at login.
type Session struct {
	Token       string    `json:"-"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	IsAdmin     bool      `json:"isAdmin"`
	LastAccess  time.Time `json:"lastAccess"`
}
