package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Route is a screen the presentation layer can be sent to.
type Route string

const (
	RouteLogin            Route = "LOGIN"
	RouteOtpVerification  Route = "OTP_VERIFICATION"
	RouteOnboarding       Route = "ONBOARDING"
	RouteHome             Route = "HOME"
	RoutePriceNegotiation Route = "PRICE_NEGOTIATION"
	RouteInbox            Route = "INBOX"
)

// NavigationEvent is a navigation signal emitted by the core.
type NavigationEvent struct {
	Route     Route
	Params    map[string]string
	CreatedAt time.Time
}

// Navigator receives navigation signals. The core never reaches into a
// router; it only tells the collaborator where to go.
type Navigator interface {
	Navigate(ctx context.Context, route Route, params map[string]string)
}

// NavigationService records navigation signals for the presentation layer.
type NavigationService struct {
	mu      sync.RWMutex
	current *NavigationEvent
	history []NavigationEvent
	logger  *zap.Logger
}

// NewNavigationService creates a new NavigationService starting at the login route.
func NewNavigationService(logger *zap.Logger) *NavigationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NavigationService{
		current: &NavigationEvent{Route: RouteLogin, CreatedAt: time.Now()},
		logger:  logger,
	}
}

// Navigate implements Navigator.
func (s *NavigationService) Navigate(ctx context.Context, route Route, params map[string]string) {
	event := NavigationEvent{
		Route:     route,
		Params:    params,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.current = &event
	s.history = append(s.history, event)
	s.mu.Unlock()

	s.logger.Info("navigate",
		zap.String("route", string(route)),
		zap.Any("params", params),
	)
}

// Current returns the latest navigation event.
func (s *NavigationService) Current() NavigationEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.current
}

// History returns every navigation event since start.
func (s *NavigationService) History() []NavigationEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]NavigationEvent(nil), s.history...)
}

var _ Navigator = (*NavigationService)(nil)
