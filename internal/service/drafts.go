package service

import (
	"sync"

	"go.uber.org/zap"

	"cabbook/internal/domain"
)

// DraftRegistry keeps the open booking forms, one per trip type tab.
type DraftRegistry struct {
	deps    ComposerDeps
	cfg     ComposerConfig
	canOpen func() bool
	logger  *zap.Logger

	mu     sync.RWMutex
	drafts map[string]*TripRequestComposer
}

// NewDraftRegistry creates a new DraftRegistry. canOpen gates opening a
// form; a nil func always allows it.
func NewDraftRegistry(deps ComposerDeps, cfg ComposerConfig, canOpen func() bool) *DraftRegistry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if canOpen == nil {
		canOpen = func() bool { return true }
	}
	return &DraftRegistry{
		deps:    deps,
		cfg:     cfg,
		canOpen: canOpen,
		logger:  deps.Logger,
		drafts:  make(map[string]*TripRequestComposer),
	}
}

// Open creates a form for tripType. It fails while onboarding is incomplete.
func (r *DraftRegistry) Open(tripType domain.TripType) (*TripRequestComposer, error) {
	if !r.canOpen() {
		return nil, ErrOnboardingRequired
	}

	c, err := NewTripRequestComposer(r.deps, r.cfg, tripType)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.drafts[c.ID()] = c
	r.mu.Unlock()

	r.logger.Debug("draft opened", zap.String("draft_id", c.ID()), zap.String("trip_type", string(tripType)))
	return c, nil
}

// Get returns the form with the given id.
func (r *DraftRegistry) Get(id string) (*TripRequestComposer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.drafts[id]
	if !ok {
		return nil, ErrDraftNotFound
	}
	return c, nil
}

// Close cancels the form and forgets it.
func (r *DraftRegistry) Close(id string) error {
	r.mu.Lock()
	c, ok := r.drafts[id]
	delete(r.drafts, id)
	r.mu.Unlock()

	if !ok {
		return ErrDraftNotFound
	}
	c.Cancel()
	return nil
}

// CloseAll cancels every open form. Used on logout and shutdown.
func (r *DraftRegistry) CloseAll() {
	r.mu.Lock()
	drafts := r.drafts
	r.drafts = make(map[string]*TripRequestComposer)
	r.mu.Unlock()

	for _, c := range drafts {
		c.Cancel()
		c.Wait()
	}
}
