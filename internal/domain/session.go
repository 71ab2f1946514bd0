package domain

import (
	"strings"
	"time"
)

// Channel identifies how a user proves ownership of an identifier.
type Channel string

const (
	ChannelPhone Channel = "phone"
	ChannelEmail Channel = "email"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelPhone || c == ChannelEmail
}

// Credential is the transient login-form input. It is never persisted.
type Credential struct {
	Identifier string
	Channel    Channel
	Password   string
}

// AuthState is a position in the session acquisition pipeline.
type AuthState string

const (
	AuthStateUnauthenticated   AuthState = "UNAUTHENTICATED"
	AuthStateOtpRequested      AuthState = "OTP_REQUESTED"
	AuthStateOtpVerified       AuthState = "OTP_VERIFIED"
	AuthStateProfileChecked    AuthState = "PROFILE_CHECKED"
	AuthStateProfileIncomplete AuthState = "PROFILE_INCOMPLETE"
	AuthStateProfileComplete   AuthState = "PROFILE_COMPLETE"
)

// Session is the authenticated token pair.
type Session struct {
	AccessToken  string
	RefreshToken string // Phone flow only
	IsNewUser    bool
	ExpiresAt    time.Time // Zero when the token carries no exp claim
}

// Expired reports whether the access token is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Profile field names as they appear on the wire.
const (
	ProfileFieldName  = "name"
	ProfileFieldEmail = "email"
	ProfileFieldPhone = "phone_number"
)

// UserProfile is the subset of the remote user record the app gates on.
type UserProfile struct {
	Name        string
	Email       string
	PhoneNumber string
}

// MissingFields returns the required fields that are blank, in display order.
func (p *UserProfile) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, ProfileFieldName)
	}
	if strings.TrimSpace(p.Email) == "" {
		missing = append(missing, ProfileFieldEmail)
	}
	if strings.TrimSpace(p.PhoneNumber) == "" {
		missing = append(missing, ProfileFieldPhone)
	}
	return missing
}

// IsComplete reports whether onboarding can be skipped.
func (p *UserProfile) IsComplete() bool {
	return len(p.MissingFields()) == 0
}

// Merge returns a copy of p with every non-nil field of f applied.
func (p UserProfile) Merge(f ProfileFields) UserProfile {
	if f.Name != nil {
		p.Name = *f.Name
	}
	if f.Email != nil {
		p.Email = *f.Email
	}
	if f.PhoneNumber != nil {
		p.PhoneNumber = *f.PhoneNumber
	}
	return p
}

// ProfileFields carries a partial profile update. Nil means "leave unchanged".
type ProfileFields struct {
	Name        *string
	Email       *string
	PhoneNumber *string
}
