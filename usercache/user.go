package usercache

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AccountType is the role/account-type enum carried by user records.
type AccountType string

const (
	// AccountSeeker is a job-seeker account.
	AccountSeeker AccountType = "job_seeker"
	// AccountEmployer is an employer account.
	AccountEmployer AccountType = "employer"
	// AccountAdmin is an administrative account.
	AccountAdmin AccountType = "admin"
)

// Record is the full origin-repository row, including the credential hash.
// Record values never enter a cache tier; they are sanitized into [User]
// first. Only the login path reads PasswordHash, and only straight from the
// origin repository.
type Record struct {
	ID           int64
	Email        string
	Username     string
	Phone        string
	FirstName    string
	LastName     string
	Bio          string
	AvatarURL    string
	AccountType  AccountType
	Active       bool
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// User is the cache-safe representation of a user record. The struct itself
// has no credential field, so no serialization of it can ever contain the
// password hash.
type User struct {
	ID          int64       `json:"id"`
	Email       string      `json:"email"`
	Username    string      `json:"username,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	FirstName   string      `json:"first_name,omitempty"`
	LastName    string      `json:"last_name,omitempty"`
	Bio         string      `json:"bio,omitempty"`
	AvatarURL   string      `json:"avatar_url,omitempty"`
	AccountType AccountType `json:"account_type"`
	Active      bool        `json:"active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Sanitize converts an origin [Record] into its cache-safe [User]
// representation, normalizing the email on the way.
func Sanitize(rec *Record) *User {
	if rec == nil {
		return nil
	}
	return &User{
		ID:          rec.ID,
		Email:       NormalizeEmail(rec.Email),
		Username:    rec.Username,
		Phone:       rec.Phone,
		FirstName:   rec.FirstName,
		LastName:    rec.LastName,
		Bio:         rec.Bio,
		AvatarURL:   rec.AvatarURL,
		AccountType: rec.AccountType,
		Active:      rec.Active,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

// NormalizeEmail lowercases and trims an email address. Email keys and
// stored emails always pass through this so that lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func encodeUser(u *User) ([]byte, error) {
	return json.Marshal(u)
}

func decodeUser(data []byte) (*User, error) {
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	if u.ID <= 0 {
		return nil, fmt.Errorf("decode cached user: missing id")
	}
	return &u, nil
}
