package service

import (
	"context"
	"math"
	"sync"

	"go.uber.org/zap"

	"cabbook/internal/domain"
)

// NegotiationService holds the price counter-offer for the last submitted booking.
type NegotiationService struct {
	mu           sync.RWMutex
	current      *domain.PriceNegotiation
	defaultPrice int
	nav          Navigator
	logger       *zap.Logger
}

// NewNegotiationService creates a new NegotiationService.
func NewNegotiationService(defaultPrice int, nav Navigator, logger *zap.Logger) *NegotiationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if nav == nil {
		nav = NewNavigationService(logger)
	}
	return &NegotiationService{
		defaultPrice: defaultPrice,
		nav:          nav,
		logger:       logger.Named("negotiation"),
	}
}

// Start opens a negotiation for a booking acknowledgement. The preferred
// price is the server estimate when one was returned.
func (s *NegotiationService) Start(ack *domain.BookingAck) domain.PriceNegotiation {
	preferred := s.defaultPrice
	if ack.EstimatedPrice > 0 {
		preferred = int(math.Round(ack.EstimatedPrice))
	}

	n := domain.PriceNegotiation{
		BookingID:      ack.ID,
		PreferredPrice: preferred,
		OfferedPrice:   preferred,
	}

	s.mu.Lock()
	s.current = &n
	s.mu.Unlock()

	s.logger.Info("negotiation started", zap.String("booking_id", ack.ID), zap.Int("preferred_price", preferred))
	return n
}

// Get returns the open negotiation.
func (s *NegotiationService) Get() (domain.PriceNegotiation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return domain.PriceNegotiation{}, ErrNoNegotiation
	}
	return *s.current, nil
}

// SetOffer sets the rider's offer from free text. Only digits are kept.
func (s *NegotiationService) SetOffer(input string) (domain.PriceNegotiation, error) {
	price := domain.SanitizePrice(input)
	if price <= 0 {
		return domain.PriceNegotiation{}, ErrInvalidPrice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return domain.PriceNegotiation{}, ErrNoNegotiation
	}
	s.current.OfferedPrice = price
	return *s.current, nil
}

// AcceptPreferred resets the offer to the preferred price.
func (s *NegotiationService) AcceptPreferred() (domain.PriceNegotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return domain.PriceNegotiation{}, ErrNoNegotiation
	}
	s.current.OfferedPrice = s.current.PreferredPrice
	return *s.current, nil
}

// FindDrivers hands the offer over to driver matching and moves the rider
// to the inbox.
func (s *NegotiationService) FindDrivers(ctx context.Context) (domain.PriceNegotiation, error) {
	s.mu.RLock()
	if s.current == nil {
		s.mu.RUnlock()
		return domain.PriceNegotiation{}, ErrNoNegotiation
	}
	n := *s.current
	s.mu.RUnlock()

	s.logger.Info("searching drivers",
		zap.String("booking_id", n.BookingID),
		zap.Int("offered_price", n.OfferedPrice),
	)
	s.nav.Navigate(ctx, RouteInbox, map[string]string{"booking_id": n.BookingID})
	return n, nil
}
