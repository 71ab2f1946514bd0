package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cabbook/internal/domain"
	"cabbook/internal/service"
)

// SessionHandler exposes the login and onboarding flow.
type SessionHandler struct {
	auth   *service.SessionAuthenticator
	drafts *service.DraftRegistry
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(auth *service.SessionAuthenticator, drafts *service.DraftRegistry) *SessionHandler {
	return &SessionHandler{auth: auth, drafts: drafts}
}

// RequestOtpRequest is the HTTP request body for requesting an OTP.
type RequestOtpRequest struct {
	Identifier string `json:"identifier"`
	Channel    string `json:"channel"`
}

// VerifyOtpRequest is the HTTP request body for verifying an OTP.
type VerifyOtpRequest struct {
	Code string `json:"code"`
}

// PasswordLoginRequest is the HTTP request body for email/password login.
type PasswordLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileRequest is the HTTP request body for completing the profile.
// Absent fields are left unchanged.
type ProfileRequest struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phone_number"`
}

// ProfileResponse is the user profile as shown on onboarding.
type ProfileResponse struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

// SessionResponse is the render state of the authentication screens.
type SessionResponse struct {
	State         string           `json:"state"`
	Channel       string           `json:"channel,omitempty"`
	Identifier    string           `json:"identifier,omitempty"`
	ResendIn      int              `json:"resend_in"`
	CanResend     bool             `json:"can_resend"`
	Authenticated bool             `json:"authenticated"`
	IsNewUser     bool             `json:"is_new_user"`
	ExpiresAt     string           `json:"expires_at,omitempty"`
	Onboarding    bool             `json:"onboarding"`
	MissingFields []string         `json:"missing_fields,omitempty"`
	Profile       *ProfileResponse `json:"profile,omitempty"`
	CanProceed    bool             `json:"can_proceed"`
}

func toSessionResponse(snap service.AuthSnapshot) SessionResponse {
	resp := SessionResponse{
		State:         string(snap.State),
		Channel:       string(snap.Channel),
		Identifier:    snap.Identifier,
		ResendIn:      snap.ResendIn,
		CanResend:     snap.CanResend,
		Onboarding:    snap.Onboarding,
		MissingFields: snap.MissingFields,
		CanProceed:    snap.State == domain.AuthStateProfileComplete,
	}
	if snap.Session != nil {
		resp.Authenticated = true
		resp.IsNewUser = snap.Session.IsNewUser
		if !snap.Session.ExpiresAt.IsZero() {
			resp.ExpiresAt = snap.Session.ExpiresAt.Format(time.RFC3339)
		}
	}
	if snap.Profile != nil {
		resp.Profile = &ProfileResponse{
			Name:        snap.Profile.Name,
			Email:       snap.Profile.Email,
			PhoneNumber: snap.Profile.PhoneNumber,
		}
	}
	return resp
}

func (h *SessionHandler) respondSnapshot(c *gin.Context, code int) {
	respondJSON(c, code, toSessionResponse(h.auth.Snapshot()))
}

// GetSession handles GET /v1/session
func (h *SessionHandler) GetSession(c *gin.Context) {
	h.respondSnapshot(c, http.StatusOK)
}

// Restore handles POST /v1/session/restore
func (h *SessionHandler) Restore(c *gin.Context) {
	ctx := c.Request.Context()

	session, err := h.auth.Restore(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	if _, err := h.auth.FetchProfile(ctx, session); err != nil {
		respondError(c, err)
		return
	}

	h.respondSnapshot(c, http.StatusOK)
}

// RequestOtp handles POST /v1/session/otp
func (h *SessionHandler) RequestOtp(c *gin.Context) {
	var req RequestOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if _, err := h.auth.RequestOtp(c.Request.Context(), req.Identifier, domain.Channel(req.Channel)); err != nil {
		respondError(c, err)
		return
	}

	h.respondSnapshot(c, http.StatusCreated)
}

// ResendOtp handles POST /v1/session/otp/resend
func (h *SessionHandler) ResendOtp(c *gin.Context) {
	if _, err := h.auth.ResendOtp(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	h.respondSnapshot(c, http.StatusOK)
}

// CancelOtp handles DELETE /v1/session/otp
func (h *SessionHandler) CancelOtp(c *gin.Context) {
	h.auth.Cancel()
	h.respondSnapshot(c, http.StatusOK)
}

// VerifyOtp handles POST /v1/session/otp/verify
func (h *SessionHandler) VerifyOtp(c *gin.Context) {
	var req VerifyOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	session, err := h.auth.VerifyOtp(ctx, nil, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	if _, err := h.auth.FetchProfile(ctx, session); err != nil {
		respondError(c, err)
		return
	}

	h.respondSnapshot(c, http.StatusOK)
}

// LoginWithPassword handles POST /v1/session/password
func (h *SessionHandler) LoginWithPassword(c *gin.Context) {
	var req PasswordLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	session, err := h.auth.LoginWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	if _, err := h.auth.FetchProfile(ctx, session); err != nil {
		respondError(c, err)
		return
	}

	h.respondSnapshot(c, http.StatusOK)
}

// RefreshProfile handles POST /v1/session/profile/refresh. It retries the
// profile check of a verified session whose first fetch failed.
func (h *SessionHandler) RefreshProfile(c *gin.Context) {
	if _, err := h.auth.FetchProfile(c.Request.Context(), nil); err != nil {
		respondError(c, err)
		return
	}

	h.respondSnapshot(c, http.StatusOK)
}

// SubmitProfile handles PATCH /v1/session/profile
func (h *SessionHandler) SubmitProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	fields := domain.ProfileFields{
		Name:        req.Name,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
	}
	if err := h.auth.SubmitProfile(c.Request.Context(), nil, fields); err != nil {
		respondError(c, err)
		return
	}

	h.respondSnapshot(c, http.StatusOK)
}

// Logout handles DELETE /v1/session
func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	if h.drafts != nil {
		h.drafts.CloseAll()
	}

	h.respondSnapshot(c, http.StatusOK)
}
