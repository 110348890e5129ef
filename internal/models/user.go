package models

import "time"

// User represents a dashboard account.
type User struct {
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"` // Never expose this to the client
	Salt         []byte    `json:"-"`
	Scheme       string    `json:"-"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// UserInfo is the read-only projection of a User returned by listings.
type UserInfo struct {
	Username     string    `json:"username"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// Info strips credentials from the user.
func (u User) Info() UserInfo {
	return UserInfo{
		Username:     u.Username,
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt,
		LastModified: u.LastModified,
	}
}
