package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"cabbook/internal/domain"
	"cabbook/internal/repository"
	"cabbook/internal/validation"
)

// SessionConfig holds the OTP flow constants.
type SessionConfig struct {
	UserType       string
	OtpLength      int
	ResendCooldown time.Duration
}

// SessionDeps contains the collaborators of a SessionAuthenticator.
type SessionDeps struct {
	Auth      repository.AuthAPI
	Profiles  repository.ProfileAPI
	Tokens    repository.TokenStore
	Navigator Navigator
	Logger    *zap.Logger
	Clock     func() time.Time // Defaults to time.Now
}

// SessionAuthenticator turns a phone number or email into an authenticated
// session and gates the app behind a complete profile.
//
// State only advances on success. A failed call leaves the state, the
// identifier and the active challenge as they were.
type SessionAuthenticator struct {
	auth     repository.AuthAPI
	profiles repository.ProfileAPI
	tokens   repository.TokenStore
	nav      Navigator
	logger   *zap.Logger
	now      func() time.Time
	cfg      SessionConfig

	mu         sync.Mutex
	state      domain.AuthState
	channel    domain.Channel
	identifier string
	challenge  *domain.OtpChallenge
	requesting bool // An OTP request or resend is in flight
	verifying  bool // A verify-otp call is in flight
	session    *domain.Session
	profile    *domain.UserProfile
}

// NewSessionAuthenticator creates a new SessionAuthenticator.
func NewSessionAuthenticator(deps SessionDeps, cfg SessionConfig) *SessionAuthenticator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Navigator == nil {
		deps.Navigator = NewNavigationService(deps.Logger)
	}
	if cfg.OtpLength <= 0 {
		cfg.OtpLength = 4
	}
	if cfg.ResendCooldown <= 0 {
		cfg.ResendCooldown = 50 * time.Second
	}
	if cfg.UserType == "" {
		cfg.UserType = "user"
	}

	return &SessionAuthenticator{
		auth:     deps.Auth,
		profiles: deps.Profiles,
		tokens:   deps.Tokens,
		nav:      deps.Navigator,
		logger:   deps.Logger.Named("session"),
		now:      deps.Clock,
		cfg:      cfg,
		state:    domain.AuthStateUnauthenticated,
	}
}

// RequestOtp validates the identifier locally and asks the server to send a
// passcode. Invalid input never reaches the network.
func (s *SessionAuthenticator) RequestOtp(ctx context.Context, identifier string, channel domain.Channel) (*domain.OtpChallenge, error) {
	return s.requestOtp(ctx, strings.TrimSpace(identifier), channel, false)
}

// ResendOtp requests a fresh passcode for the active challenge once the
// countdown has run out.
func (s *SessionAuthenticator) ResendOtp(ctx context.Context) (*domain.OtpChallenge, error) {
	s.mu.Lock()
	active := s.challenge
	s.mu.Unlock()

	if active == nil {
		return nil, ErrNoChallenge
	}
	return s.requestOtp(ctx, active.Identifier, active.Channel, true)
}

func (s *SessionAuthenticator) requestOtp(ctx context.Context, identifier string, channel domain.Channel, resend bool) (*domain.OtpChallenge, error) {
	if err := validation.Identifier(identifier, channel); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.requesting {
		s.mu.Unlock()
		return nil, ErrResendPending
	}
	if s.verifying {
		s.mu.Unlock()
		return nil, ErrVerifyPending
	}
	if s.challenge != nil && s.challenge.Identifier == identifier && !s.challenge.CanResend(s.now()) {
		s.mu.Unlock()
		return nil, ErrResendCooldown
	}
	s.requesting = true
	s.mu.Unlock()

	req := repository.OtpRequest{UserType: s.cfg.UserType}
	if channel == domain.ChannelPhone {
		req.PhoneNumber = identifier
	} else {
		req.Email = identifier
	}

	err := s.auth.SendOtp(ctx, req)

	s.mu.Lock()
	s.requesting = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("otp request failed", zap.String("channel", string(channel)), zap.Error(err))
		return nil, fmt.Errorf("unable to send otp: %w", err)
	}

	s.challenge = domain.ReduceChallenge(s.challenge, domain.IssueChallenge{
		Identifier: identifier,
		Channel:    channel,
		At:         s.now(),
		Cooldown:   s.cfg.ResendCooldown,
	})
	s.identifier = identifier
	s.channel = channel
	s.state = domain.AuthStateOtpRequested
	challenge := *s.challenge
	s.mu.Unlock()

	s.logger.Info("otp issued", zap.String("channel", string(channel)), zap.Bool("resend", resend))
	if !resend {
		s.nav.Navigate(ctx, RouteOtpVerification, map[string]string{
			"identifier": identifier,
			"channel":    string(channel),
		})
	}
	return &challenge, nil
}

// VerifyOtp exchanges the code for a session. The tokens are persisted before
// the session is returned. A rejected code keeps the challenge so the user
// can retry.
func (s *SessionAuthenticator) VerifyOtp(ctx context.Context, challenge *domain.OtpChallenge, code string) (*domain.Session, error) {
	code = strings.TrimSpace(code)
	if err := validation.OtpCode(code, s.cfg.OtpLength); err != nil {
		return nil, err
	}

	s.mu.Lock()
	active := s.challenge
	var err error
	switch {
	case active == nil:
		err = ErrNoChallenge
	case challenge != nil && (challenge.Identifier != active.Identifier || !challenge.IssuedAt.Equal(active.IssuedAt)):
		err = ErrChallengeSuperseded
	case s.requesting:
		err = ErrResendPending
	case s.verifying:
		err = ErrVerifyPending
	}
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.verifying = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.verifying = false
		s.mu.Unlock()
	}()

	req := repository.VerifyOtpRequest{OtpCode: code, UserType: s.cfg.UserType}
	if active.Channel == domain.ChannelPhone {
		req.PhoneNumber = active.Identifier
	} else {
		req.Email = active.Identifier
	}

	pair, err := s.auth.VerifyOtp(ctx, req)
	if err != nil {
		s.logger.Warn("otp verification failed", zap.Error(err))
		if se, ok := repository.AsServerError(err); ok && se.Status < http.StatusInternalServerError {
			if se.Detail == "" {
				return nil, ErrInvalidOtp
			}
			return nil, fmt.Errorf("%w: %s", ErrInvalidOtp, se.Detail)
		}
		return nil, fmt.Errorf("unable to verify otp: %w", err)
	}

	session, err := s.persist(ctx, pair)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.challenge = domain.ReduceChallenge(s.challenge, domain.DiscardChallenge{})
	s.session = session
	s.profile = nil
	s.state = domain.AuthStateOtpVerified
	out := *session
	s.mu.Unlock()

	s.logger.Info("session created", zap.String("channel", string(active.Channel)))
	return &out, nil
}

// LoginWithPassword authenticates with email and password. Server field
// errors are mapped back onto the email and password fields.
func (s *SessionAuthenticator) LoginWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	email = strings.TrimSpace(email)
	if err := validation.Password(email, password); err != nil {
		return nil, err
	}

	pair, err := s.auth.ObtainToken(ctx, email, password)
	if err != nil {
		s.logger.Warn("password login failed", zap.Error(err))
		se, ok := repository.AsServerError(err)
		if !ok || se.Status >= http.StatusInternalServerError {
			return nil, fmt.Errorf("unable to log in: %w", err)
		}
		return nil, credentialErrors(se)
	}

	session, err := s.persist(ctx, pair)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.challenge = nil
	s.identifier = email
	s.channel = domain.ChannelEmail
	s.session = session
	s.profile = nil
	s.state = domain.AuthStateOtpVerified
	out := *session
	s.mu.Unlock()

	return &out, nil
}

// credentialErrors maps a login rejection onto the form fields. A bare
// detail message applies to both fields.
func credentialErrors(se *repository.ServerError) domain.ValidationErrors {
	var errs domain.ValidationErrors
	if se.Status == http.StatusBadRequest {
		if msg, ok := se.Fields["email"]; ok {
			errs.Add("email", msg)
		}
		if msg, ok := se.Fields["password"]; ok {
			errs.Add("password", msg)
		}
		if se.Detail != "" {
			errs.Add("email", se.Detail)
			errs.Add("password", se.Detail)
		}
	}
	if len(errs) == 0 {
		errs.Add("email", "Invalid email or password")
		errs.Add("password", "Invalid email or password")
	}
	return errs
}

// persist writes the token pair to the token store. This is the only place
// a session comes into existence.
func (s *SessionAuthenticator) persist(ctx context.Context, pair *repository.TokenPair) (*domain.Session, error) {
	if err := s.tokens.Set(ctx, repository.AccessTokenKey, pair.Access); err != nil {
		return nil, fmt.Errorf("failed to store access token: %w", err)
	}

	if pair.Refresh != "" {
		if err := s.tokens.Set(ctx, repository.RefreshTokenKey, pair.Refresh); err != nil {
			return nil, fmt.Errorf("failed to store refresh token: %w", err)
		}
	} else if err := s.tokens.Delete(ctx, repository.RefreshTokenKey); err != nil {
		return nil, fmt.Errorf("failed to clear refresh token: %w", err)
	}

	return &domain.Session{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		ExpiresAt:    tokenExpiry(pair.Access),
	}, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// client only uses it for display and restore decisions.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// FetchProfile loads the user profile and decides whether onboarding is
// needed. A nil session means the current one.
func (s *SessionAuthenticator) FetchProfile(ctx context.Context, session *domain.Session) (*domain.UserProfile, error) {
	session, err := s.resolveSession(session)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetMe(ctx, session.AccessToken)
	if err != nil {
		s.logger.Warn("profile fetch failed", zap.Error(err))
		return nil, fmt.Errorf("unable to load profile: %w", err)
	}

	missing := s.applyProfile(profile)

	if len(missing) > 0 {
		s.logger.Info("onboarding required", zap.Strings("missing", missing))
		s.nav.Navigate(ctx, RouteOnboarding, map[string]string{"missing": strings.Join(missing, ",")})
	} else {
		s.nav.Navigate(ctx, RouteHome, nil)
	}

	out := *profile
	return &out, nil
}

// applyProfile stores the profile and moves through ProfileChecked to the
// complete or incomplete state. It returns the missing fields.
func (s *SessionAuthenticator) applyProfile(profile *domain.UserProfile) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := *profile
	s.profile = &p
	s.state = domain.AuthStateProfileChecked

	missing := p.MissingFields()
	if s.session != nil {
		s.session.IsNewUser = len(missing) > 0
	}
	if len(missing) > 0 {
		s.state = domain.AuthStateProfileIncomplete
	} else {
		s.state = domain.AuthStateProfileComplete
	}
	return missing
}

// SubmitProfile completes onboarding. Each missing field is reported on its
// own so unrelated fields can be fixed independently.
func (s *SessionAuthenticator) SubmitProfile(ctx context.Context, session *domain.Session, fields domain.ProfileFields) error {
	session, err := s.resolveSession(session)
	if err != nil {
		return err
	}

	s.mu.Lock()
	var base domain.UserProfile
	if s.profile != nil {
		base = *s.profile
	}
	channel := s.channel
	identifier := s.identifier
	s.mu.Unlock()

	// The login identifier is already proven; fill it in when the server
	// does not know it yet.
	switch {
	case channel == domain.ChannelPhone && strings.TrimSpace(base.PhoneNumber) == "" && fields.PhoneNumber == nil && identifier != "":
		fields.PhoneNumber = &identifier
	case channel == domain.ChannelEmail && strings.TrimSpace(base.Email) == "" && fields.Email == nil && identifier != "":
		fields.Email = &identifier
	}

	merged := base.Merge(trimFields(fields))
	if err := validation.Profile(merged, channel); err != nil {
		return err
	}

	updated, err := s.profiles.UpdateMe(ctx, session.AccessToken, trimFields(fields))
	if err != nil {
		s.logger.Warn("profile update failed", zap.Error(err))
		if se, ok := repository.AsServerError(err); ok && se.Status == http.StatusBadRequest && len(se.Fields) > 0 {
			var errs domain.ValidationErrors
			for field, msg := range se.Fields {
				errs.Add(field, msg)
			}
			return errs
		}
		return fmt.Errorf("unable to update profile: %w", err)
	}

	// Fields the server left blank in its response keep the submitted value.
	result := merged
	if updated != nil {
		result = merged.Merge(nonEmptyFields(*updated))
	}

	missing := s.applyProfile(&result)
	if len(missing) > 0 {
		var errs domain.ValidationErrors
		for _, f := range missing {
			errs.Add(f, f+" is required")
		}
		return errs
	}

	s.nav.Navigate(ctx, RouteHome, nil)
	return nil
}

func trimFields(f domain.ProfileFields) domain.ProfileFields {
	trim := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		return &v
	}
	return domain.ProfileFields{
		Name:        trim(f.Name),
		Email:       trim(f.Email),
		PhoneNumber: trim(f.PhoneNumber),
	}
}

func nonEmptyFields(p domain.UserProfile) domain.ProfileFields {
	var f domain.ProfileFields
	if p.Name != "" {
		f.Name = &p.Name
	}
	if p.Email != "" {
		f.Email = &p.Email
	}
	if p.PhoneNumber != "" {
		f.PhoneNumber = &p.PhoneNumber
	}
	return f
}

// Restore loads a previously stored session at app start.
func (s *SessionAuthenticator) Restore(ctx context.Context) (*domain.Session, error) {
	access, err := s.tokens.Get(ctx, repository.AccessTokenKey)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read access token: %w", err)
	}

	refresh, err := s.tokens.Get(ctx, repository.RefreshTokenKey)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to read refresh token: %w", err)
	}

	session := &domain.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    tokenExpiry(access),
	}
	if session.Expired(s.now()) {
		s.logger.Info("stored session expired")
		if err := s.tokens.Delete(ctx, repository.AccessTokenKey, repository.RefreshTokenKey); err != nil {
			return nil, fmt.Errorf("failed to clear tokens: %w", err)
		}
		return nil, ErrNoSession
	}

	s.mu.Lock()
	s.session = session
	s.profile = nil
	s.state = domain.AuthStateOtpVerified
	out := *session
	s.mu.Unlock()

	return &out, nil
}

// Logout clears the token store and returns to the login screen.
func (s *SessionAuthenticator) Logout(ctx context.Context) error {
	if err := s.tokens.Delete(ctx, repository.AccessTokenKey, repository.RefreshTokenKey); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}

	s.mu.Lock()
	s.state = domain.AuthStateUnauthenticated
	s.challenge = nil
	s.session = nil
	s.profile = nil
	s.identifier = ""
	s.channel = ""
	s.mu.Unlock()

	s.nav.Navigate(ctx, RouteLogin, nil)
	return nil
}

// Cancel is called when the user leaves the OTP screen. The pending
// challenge is dropped but the typed identifier is kept.
func (s *SessionAuthenticator) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.AuthStateOtpRequested {
		s.challenge = nil
		s.state = domain.AuthStateUnauthenticated
	}
}

// CanProceed reports whether the main app may be entered.
func (s *SessionAuthenticator) CanProceed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == domain.AuthStateProfileComplete
}

// Session returns the current session or ErrNoSession.
func (s *SessionAuthenticator) Session() (*domain.Session, error) {
	return s.resolveSession(nil)
}

func (s *SessionAuthenticator) resolveSession(session *domain.Session) (*domain.Session, error) {
	if session != nil {
		return session, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, ErrNoSession
	}
	out := *s.session
	return &out, nil
}

// AuthSnapshot is the render state of the authentication screens.
type AuthSnapshot struct {
	State         domain.AuthState
	Channel       domain.Channel
	Identifier    string
	Challenge     *domain.OtpChallenge
	ResendIn      int
	CanResend     bool
	Onboarding    bool
	MissingFields []string
	Profile       *domain.UserProfile
	Session       *domain.Session
}

// Snapshot returns the current authentication state.
func (s *SessionAuthenticator) Snapshot() AuthSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	snap := AuthSnapshot{
		State:      s.state,
		Channel:    s.channel,
		Identifier: s.identifier,
		Onboarding: s.state == domain.AuthStateProfileIncomplete,
	}
	if s.challenge != nil {
		c := *s.challenge
		snap.Challenge = &c
		snap.ResendIn = c.RemainingSeconds(now)
		snap.CanResend = snap.ResendIn == 0 && !s.requesting
	}
	if s.profile != nil {
		p := *s.profile
		snap.Profile = &p
		snap.MissingFields = p.MissingFields()
	}
	if s.session != nil {
		sess := *s.session
		snap.Session = &sess
	}
	return snap
}
