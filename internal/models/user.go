package models

import (
	"strings"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// AccessToken is a bearer token record. Only the hash of the plain token is stored.
type AccessToken struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	TokenHash string    `json:"-"`
	Abilities []string  `json:"abilities"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (t *AccessToken) Can(ability string) bool {
	for _, a := range t.Abilities {
		if a == ability || a == "*" {
			return true
		}
	}
	return false
}

func (t *AccessToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

func JoinAbilities(abilities []string) string {
	return strings.Join(abilities, ",")
}

func SplitAbilities(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Session is the result of a successful login. Token is the plain bearer
// token and is never persisted.
type Session struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
