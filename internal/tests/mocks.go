package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"cabbook/internal/domain"
	"cabbook/internal/repository"
	"cabbook/internal/service"
)

// ──────────────────────────────────────────────
// MOCK AUTH API
// ──────────────────────────────────────────────

// MockAuthAPI is a mock implementation of repository.AuthAPI.
type MockAuthAPI struct {
	mu          sync.Mutex
	otpRequests []repository.OtpRequest
	verifies    []repository.VerifyOtpRequest

	// Counters for verification
	SendOtpCallCount     int32
	VerifyOtpCallCount   int32
	ObtainTokenCallCount int32

	// Canned responses
	Tokens repository.TokenPair

	// Error injection
	SendOtpError     error
	VerifyOtpError   error
	ObtainTokenError error

	// SendOtpGate, when set, blocks SendOtp until it is closed.
	SendOtpGate chan struct{}
	// SendOtpStarted, when set, receives once per SendOtp call.
	SendOtpStarted chan struct{}
	// VerifyOtpGate, when set, blocks VerifyOtp until it is closed.
	VerifyOtpGate chan struct{}
	// VerifyOtpStarted, when set, receives once per VerifyOtp call.
	VerifyOtpStarted chan struct{}
}

// NewMockAuthAPI creates a new mock auth API issuing the given tokens.
func NewMockAuthAPI(access, refresh string) *MockAuthAPI {
	return &MockAuthAPI{Tokens: repository.TokenPair{Access: access, Refresh: refresh}}
}

func (m *MockAuthAPI) SendOtp(ctx context.Context, req repository.OtpRequest) error {
	atomic.AddInt32(&m.SendOtpCallCount, 1)
	m.mu.Lock()
	m.otpRequests = append(m.otpRequests, req)
	gate := m.SendOtpGate
	started := m.SendOtpStarted
	m.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.SendOtpError
}

func (m *MockAuthAPI) VerifyOtp(ctx context.Context, req repository.VerifyOtpRequest) (*repository.TokenPair, error) {
	atomic.AddInt32(&m.VerifyOtpCallCount, 1)
	m.mu.Lock()
	m.verifies = append(m.verifies, req)
	gate := m.VerifyOtpGate
	started := m.VerifyOtpStarted
	m.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.VerifyOtpError != nil {
		return nil, m.VerifyOtpError
	}
	pair := m.Tokens
	return &pair, nil
}

func (m *MockAuthAPI) ObtainToken(ctx context.Context, email, password string) (*repository.TokenPair, error) {
	atomic.AddInt32(&m.ObtainTokenCallCount, 1)
	if m.ObtainTokenError != nil {
		return nil, m.ObtainTokenError
	}
	return &repository.TokenPair{Access: m.Tokens.Access}, nil
}

// OtpRequests returns the recorded send-otp requests.
func (m *MockAuthAPI) OtpRequests() []repository.OtpRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repository.OtpRequest(nil), m.otpRequests...)
}

// Verifies returns the recorded verify-otp requests.
func (m *MockAuthAPI) Verifies() []repository.VerifyOtpRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repository.VerifyOtpRequest(nil), m.verifies...)
}

// ──────────────────────────────────────────────
// MOCK PROFILE API
// ──────────────────────────────────────────────

// MockProfileAPI is a mock implementation of repository.ProfileAPI.
type MockProfileAPI struct {
	mu      sync.Mutex
	profile domain.UserProfile
	updates []domain.ProfileFields
	tokens  []string

	GetMeCallCount    int32
	UpdateMeCallCount int32

	GetMeError    error
	UpdateMeError error
}

// NewMockProfileAPI creates a new mock profile API serving profile.
func NewMockProfileAPI(profile domain.UserProfile) *MockProfileAPI {
	return &MockProfileAPI{profile: profile}
}

func (m *MockProfileAPI) GetMe(ctx context.Context, accessToken string) (*domain.UserProfile, error) {
	atomic.AddInt32(&m.GetMeCallCount, 1)
	if m.GetMeError != nil {
		return nil, m.GetMeError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, accessToken)
	p := m.profile
	return &p, nil
}

func (m *MockProfileAPI) UpdateMe(ctx context.Context, accessToken string, fields domain.ProfileFields) (*domain.UserProfile, error) {
	atomic.AddInt32(&m.UpdateMeCallCount, 1)
	if m.UpdateMeError != nil {
		return nil, m.UpdateMeError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, accessToken)
	m.updates = append(m.updates, fields)
	m.profile = m.profile.Merge(fields)
	p := m.profile
	return &p, nil
}

// Updates returns the recorded profile updates.
func (m *MockProfileAPI) Updates() []domain.ProfileFields {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ProfileFields(nil), m.updates...)
}

// Tokens returns the access tokens the API was called with.
func (m *MockProfileAPI) Tokens() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tokens...)
}

// ──────────────────────────────────────────────
// MOCK PLACES API
// ──────────────────────────────────────────────

// MockPlacesAPI is a mock implementation of repository.PlacesAPI.
type MockPlacesAPI struct {
	mu      sync.Mutex
	results map[string][]domain.Suggestion
	gates   map[string]chan struct{}
	queries []string

	AutocompleteCallCount int32
	AutocompleteError     error

	// Started, when set, receives each query as its lookup begins.
	Started chan string
}

// NewMockPlacesAPI creates a new mock places API.
func NewMockPlacesAPI() *MockPlacesAPI {
	return &MockPlacesAPI{
		results: make(map[string][]domain.Suggestion),
		gates:   make(map[string]chan struct{}),
	}
}

// SetResults sets the suggestions returned for query.
func (m *MockPlacesAPI) SetResults(query string, items ...domain.Suggestion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[query] = items
}

// Hold makes lookups for query block until the returned func is called.
func (m *MockPlacesAPI) Hold(query string) (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gate := make(chan struct{})
	m.gates[query] = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (m *MockPlacesAPI) Autocomplete(ctx context.Context, accessToken, query string) ([]domain.Suggestion, error) {
	atomic.AddInt32(&m.AutocompleteCallCount, 1)
	m.mu.Lock()
	m.queries = append(m.queries, query)
	gate := m.gates[query]
	items := append([]domain.Suggestion(nil), m.results[query]...)
	started := m.Started
	m.mu.Unlock()

	if started != nil {
		started <- query
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.AutocompleteError != nil {
		return nil, m.AutocompleteError
	}
	return items, nil
}

// Queries returns every query that reached the API.
func (m *MockPlacesAPI) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// ──────────────────────────────────────────────
// MOCK BOOKING API
// ──────────────────────────────────────────────

// MockBookingAPI is a mock implementation of repository.BookingAPI.
type MockBookingAPI struct {
	mu       sync.Mutex
	requests []repository.BookingRequest

	CreateTripCallCount int32
	CreateTripError     error

	Ack domain.BookingAck
}

// NewMockBookingAPI creates a new mock booking API acknowledging with ack.
func NewMockBookingAPI(ack domain.BookingAck) *MockBookingAPI {
	return &MockBookingAPI{Ack: ack}
}

func (m *MockBookingAPI) CreateTrip(ctx context.Context, accessToken string, req repository.BookingRequest) (*domain.BookingAck, error) {
	atomic.AddInt32(&m.CreateTripCallCount, 1)
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.CreateTripError != nil {
		return nil, m.CreateTripError
	}
	ack := m.Ack
	return &ack, nil
}

// Requests returns the recorded booking payloads.
func (m *MockBookingAPI) Requests() []repository.BookingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repository.BookingRequest(nil), m.requests...)
}

// ──────────────────────────────────────────────
// MOCK TOKEN STORE
// ──────────────────────────────────────────────

// MockTokenStore is a mock implementation of repository.TokenStore.
type MockTokenStore struct {
	mu     sync.RWMutex
	values map[string]string

	SetCallCount int32
	SetError     error
	GetError     error
}

// NewMockTokenStore creates an empty mock token store.
func NewMockTokenStore() *MockTokenStore {
	return &MockTokenStore{values: make(map[string]string)}
}

func (m *MockTokenStore) Get(ctx context.Context, key string) (string, error) {
	if m.GetError != nil {
		return "", m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

func (m *MockTokenStore) Set(ctx context.Context, key, value string) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	if m.SetError != nil {
		return m.SetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MockTokenStore) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// Value returns the stored value for key, or "" if absent.
func (m *MockTokenStore) Value(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key]
}

// ──────────────────────────────────────────────
// MOCK NAVIGATOR
// ──────────────────────────────────────────────

// MockNavigator records navigation signals.
type MockNavigator struct {
	mu     sync.Mutex
	events []service.NavigationEvent
}

// NewMockNavigator creates a new mock navigator.
func NewMockNavigator() *MockNavigator {
	return &MockNavigator{}
}

func (m *MockNavigator) Navigate(ctx context.Context, route service.Route, params map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, service.NavigationEvent{Route: route, Params: params, CreatedAt: time.Now()})
}

// Routes returns the visited routes in order.
func (m *MockNavigator) Routes() []service.Route {
	m.mu.Lock()
	defer m.mu.Unlock()
	routes := make([]service.Route, len(m.events))
	for i, e := range m.events {
		routes[i] = e.Route
	}
	return routes
}

// Last returns the latest navigation event.
func (m *MockNavigator) Last() (service.NavigationEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return service.NavigationEvent{}, false
	}
	return m.events[len(m.events)-1], true
}

// ──────────────────────────────────────────────
// FAKE CLOCK
// ──────────────────────────────────────────────

// FakeClock is a settable clock for countdown tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Ensure mocks implement interfaces.
var (
	_ repository.AuthAPI    = (*MockAuthAPI)(nil)
	_ repository.ProfileAPI = (*MockProfileAPI)(nil)
	_ repository.PlacesAPI  = (*MockPlacesAPI)(nil)
	_ repository.BookingAPI = (*MockBookingAPI)(nil)
	_ repository.TokenStore = (*MockTokenStore)(nil)
	_ service.Navigator     = (*MockNavigator)(nil)
)
