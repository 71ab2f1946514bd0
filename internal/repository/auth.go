package repository

import (
	"context"

	"cabbook/internal/domain"
)

// OtpRequest identifies who an OTP is sent to. Exactly one of PhoneNumber
// and Email is set.
type OtpRequest struct {
	PhoneNumber string `json:"phone_number,omitempty"`
	Email       string `json:"email,omitempty"`
	UserType    string `json:"user_type"`
}

// VerifyOtpRequest is the body of the verify-otp call.
type VerifyOtpRequest struct {
	PhoneNumber string `json:"phone_number,omitempty"`
	Email       string `json:"email,omitempty"`
	OtpCode     string `json:"otp_code"`
	UserType    string `json:"user_type"`
}

// TokenPair is the token response of the auth endpoints.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// AuthAPI is the remote authentication surface.
type AuthAPI interface {
	// SendOtp asks the server to issue a passcode.
	SendOtp(ctx context.Context, req OtpRequest) error

	// VerifyOtp exchanges a passcode for tokens.
	VerifyOtp(ctx context.Context, req VerifyOtpRequest) (*TokenPair, error)

	// ObtainToken exchanges an email and password for an access token.
	ObtainToken(ctx context.Context, email, password string) (*TokenPair, error)
}

// ProfileAPI reads and updates the authenticated user's profile.
type ProfileAPI interface {
	// GetMe fetches the profile for the access token.
	GetMe(ctx context.Context, accessToken string) (*domain.UserProfile, error)

	// UpdateMe applies a partial update and returns the stored profile.
	UpdateMe(ctx context.Context, accessToken string, fields domain.ProfileFields) (*domain.UserProfile, error)
}
