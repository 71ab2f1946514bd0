package remote

import (
	"context"
	"net/http"

	"cabbook/internal/domain"
	"cabbook/internal/repository"
)

const (
	sendOtpPath   = "/api/v1/users/auth/send-otp/"
	verifyOtpPath = "/api/v1/users/auth/verify-otp/"
	tokenPath     = "/api/v1/users/auth/token/"
	mePath        = "/api/v1/users/me/"
)

// SendOtp implements repository.AuthAPI.
func (c *Client) SendOtp(ctx context.Context, req repository.OtpRequest) error {
	return c.do(ctx, http.MethodPost, sendOtpPath, "", req, nil)
}

// verifyResponse accepts both "access" and the older "token" key.
type verifyResponse struct {
	Access  string `json:"access"`
	Token   string `json:"token"`
	Refresh string `json:"refresh"`
}

// VerifyOtp implements repository.AuthAPI.
func (c *Client) VerifyOtp(ctx context.Context, req repository.VerifyOtpRequest) (*repository.TokenPair, error) {
	var resp verifyResponse
	if err := c.do(ctx, http.MethodPost, verifyOtpPath, "", req, &resp); err != nil {
		return nil, err
	}

	access := resp.Access
	if access == "" {
		access = resp.Token
	}
	if access == "" {
		return nil, &repository.ServerError{Status: http.StatusOK, Detail: "no token received"}
	}
	return &repository.TokenPair{Access: access, Refresh: resp.Refresh}, nil
}

// ObtainToken implements repository.AuthAPI.
func (c *Client) ObtainToken(ctx context.Context, email, password string) (*repository.TokenPair, error) {
	body := map[string]string{"email": email, "password": password}

	var resp repository.TokenPair
	if err := c.do(ctx, http.MethodPost, tokenPath, "", body, &resp); err != nil {
		return nil, err
	}
	if resp.Access == "" {
		return nil, &repository.ServerError{Status: http.StatusOK, Detail: "no token received"}
	}
	return &resp, nil
}

type profileResponse struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

func (p profileResponse) toDomain() *domain.UserProfile {
	return &domain.UserProfile{Name: p.Name, Email: p.Email, PhoneNumber: p.PhoneNumber}
}

// GetMe implements repository.ProfileAPI.
func (c *Client) GetMe(ctx context.Context, accessToken string) (*domain.UserProfile, error) {
	var resp profileResponse
	if err := c.do(ctx, http.MethodGet, mePath, accessToken, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}

// UpdateMe implements repository.ProfileAPI. Only the set fields are sent.
func (c *Client) UpdateMe(ctx context.Context, accessToken string, fields domain.ProfileFields) (*domain.UserProfile, error) {
	body := make(map[string]string, 3)
	if fields.Name != nil {
		body[domain.ProfileFieldName] = *fields.Name
	}
	if fields.Email != nil {
		body[domain.ProfileFieldEmail] = *fields.Email
	}
	if fields.PhoneNumber != nil {
		body[domain.ProfileFieldPhone] = *fields.PhoneNumber
	}

	var resp profileResponse
	if err := c.do(ctx, http.MethodPatch, mePath, accessToken, body, &resp); err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}

var (
	_ repository.AuthAPI    = (*Client)(nil)
	_ repository.ProfileAPI = (*Client)(nil)
)
