package tests

import (
	"context"
	"errors"
	"testing"

	"cabbook/internal/domain"
	"cabbook/internal/service"
)

// ──────────────────────────────────────────────
// 1. PRICE NEGOTIATION
// ──────────────────────────────────────────────

func TestNegotiation_StartUsesEstimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		estimate  float64
		wantPrice int
	}{
		{"server estimate", 1799.6, 1800},
		{"no estimate falls back to default", 0, 1500},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := service.NewNegotiationService(1500, NewMockNavigator(), nil)

			n := svc.Start(&domain.BookingAck{ID: "7", EstimatedPrice: tt.estimate})
			if n.PreferredPrice != tt.wantPrice || n.OfferedPrice != tt.wantPrice {
				t.Errorf("expected %d, got %+v", tt.wantPrice, n)
			}
			if n.BookingID != "7" {
				t.Errorf("unexpected booking id %s", n.BookingID)
			}
		})
	}
}

func TestNegotiation_NothingOpen(t *testing.T) {
	t.Parallel()
	svc := service.NewNegotiationService(1500, NewMockNavigator(), nil)

	if _, err := svc.Get(); !errors.Is(err, service.ErrNoNegotiation) {
		t.Errorf("Get: expected ErrNoNegotiation, got %v", err)
	}
	if _, err := svc.SetOffer("1200"); !errors.Is(err, service.ErrNoNegotiation) {
		t.Errorf("SetOffer: expected ErrNoNegotiation, got %v", err)
	}
	if _, err := svc.AcceptPreferred(); !errors.Is(err, service.ErrNoNegotiation) {
		t.Errorf("AcceptPreferred: expected ErrNoNegotiation, got %v", err)
	}
	if _, err := svc.FindDrivers(context.Background()); !errors.Is(err, service.ErrNoNegotiation) {
		t.Errorf("FindDrivers: expected ErrNoNegotiation, got %v", err)
	}
}

func TestNegotiation_OfferKeepsDigitsOnly(t *testing.T) {
	t.Parallel()
	svc := service.NewNegotiationService(1500, NewMockNavigator(), nil)
	svc.Start(&domain.BookingAck{ID: "7"})

	n, err := svc.SetOffer("₹1,250.")
	if err != nil {
		t.Fatalf("set offer: %v", err)
	}
	if n.OfferedPrice != 1250 || n.PreferredPrice != 1500 {
		t.Errorf("unexpected negotiation %+v", n)
	}

	if _, err := svc.SetOffer("abc"); !errors.Is(err, service.ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
	if got, _ := svc.Get(); got.OfferedPrice != 1250 {
		t.Errorf("rejected offer changed state: %+v", got)
	}

	n, err = svc.AcceptPreferred()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if n.OfferedPrice != 1500 {
		t.Errorf("expected offer reset to preferred, got %d", n.OfferedPrice)
	}
}

func TestNegotiation_FindDriversNavigatesToInbox(t *testing.T) {
	t.Parallel()
	nav := NewMockNavigator()
	svc := service.NewNegotiationService(1500, nav, nil)
	svc.Start(&domain.BookingAck{ID: "7"})

	if _, err := svc.FindDrivers(context.Background()); err != nil {
		t.Fatalf("find drivers: %v", err)
	}

	last, ok := nav.Last()
	if !ok || last.Route != service.RouteInbox || last.Params["booking_id"] != "7" {
		t.Errorf("expected inbox navigation, got %+v", last)
	}
}

func TestSanitizePrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  int
	}{
		{"1200", 1200},
		{"₹ 1,200", 1200},
		{"12a3", 123},
		{"", 0},
		{"free", 0},
	}

	for _, tt := range tests {
		if got := domain.SanitizePrice(tt.input); got != tt.want {
			t.Errorf("SanitizePrice(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

// ──────────────────────────────────────────────
// 2. DRAFT REGISTRY
// ──────────────────────────────────────────────

func TestDraftRegistry_GatedByOnboarding(t *testing.T) {
	t.Parallel()
	allowed := false
	registry := service.NewDraftRegistry(service.ComposerDeps{}, service.ComposerConfig{}, func() bool { return allowed })

	if _, err := registry.Open(domain.TripTypeOneWay); !errors.Is(err, service.ErrOnboardingRequired) {
		t.Fatalf("expected ErrOnboardingRequired, got %v", err)
	}

	allowed = true
	c, err := registry.Open(domain.TripTypeLocal)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	got, err := registry.Get(c.ID())
	if err != nil || got != c {
		t.Fatalf("get: %v", err)
	}

	if err := registry.Close(c.ID()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := registry.Get(c.ID()); !errors.Is(err, service.ErrDraftNotFound) {
		t.Errorf("expected ErrDraftNotFound, got %v", err)
	}
	if err := c.SetCabType("Sedan"); !errors.Is(err, service.ErrComposerClosed) {
		t.Errorf("expected closed composer, got %v", err)
	}
}

func TestDraftRegistry_CloseAll(t *testing.T) {
	t.Parallel()
	registry := service.NewDraftRegistry(service.ComposerDeps{}, service.ComposerConfig{}, nil)

	var ids []string
	for _, tt := range []domain.TripType{domain.TripTypeOneWay, domain.TripTypeRoundTrip} {
		c, err := registry.Open(tt)
		if err != nil {
			t.Fatalf("open %s: %v", tt, err)
		}
		ids = append(ids, c.ID())
	}

	registry.CloseAll()

	for _, id := range ids {
		if _, err := registry.Get(id); !errors.Is(err, service.ErrDraftNotFound) {
			t.Errorf("draft %s still open", id)
		}
	}
}
