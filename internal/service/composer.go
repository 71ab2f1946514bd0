package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cabbook/internal/domain"
	"cabbook/internal/repository"
)

const (
	wireDateLayout = "2006-01-02"
	wireTimeLayout = "15:04"
)

// SuggestionCache caches autocomplete results by query text.
type SuggestionCache interface {
	GetSuggestions(ctx context.Context, query string) ([]domain.Suggestion, bool, error)
	SetSuggestions(ctx context.Context, query string, items []domain.Suggestion) error
}

// ComposerConfig holds trip composer settings.
type ComposerConfig struct {
	DebounceDelay  time.Duration
	DefaultCabType string
}

// ComposerDeps contains the collaborators of a TripRequestComposer.
type ComposerDeps struct {
	Places    repository.PlacesAPI
	Bookings  repository.BookingAPI
	Tokens    repository.TokenStore
	Cache     SuggestionCache // Optional
	Navigator Navigator
	Logger    *zap.Logger
	Clock     func() time.Time // Defaults to time.Now
}

// TripRequestComposer owns one booking form: the draft, the per-field
// autocomplete state and the submission.
type TripRequestComposer struct {
	id        string
	places    repository.PlacesAPI
	bookings  repository.BookingAPI
	tokens    repository.TokenStore
	cache     SuggestionCache
	nav       Navigator
	logger    *zap.Logger
	now       func() time.Time
	cfg       ComposerConfig
	debouncer *Debouncer

	// ctx is cancelled when the form is left so in-flight lookups stop.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	draft       domain.TripDraft
	phase       domain.DraftState // Submitting, Submitted or SubmitFailed; empty while editing
	suggestions map[string]*domain.SuggestionSet
	ack         *domain.BookingAck
	closed      bool
}

// NewTripRequestComposer opens an empty draft for the given trip type.
func NewTripRequestComposer(deps ComposerDeps, cfg ComposerConfig, tripType domain.TripType) (*TripRequestComposer, error) {
	if !tripType.Valid() {
		return nil, ErrInvalidTripType
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Navigator == nil {
		deps.Navigator = NewNavigationService(deps.Logger)
	}

	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	c := &TripRequestComposer{
		id:          id,
		places:      deps.Places,
		bookings:    deps.Bookings,
		tokens:      deps.Tokens,
		cache:       deps.Cache,
		nav:         deps.Navigator,
		logger:      deps.Logger.Named("composer").With(zap.String("draft_id", id), zap.String("trip_type", string(tripType))),
		now:         deps.Clock,
		cfg:         cfg,
		debouncer:   NewDebouncer(cfg.DebounceDelay),
		ctx:         ctx,
		cancel:      cancel,
		suggestions: make(map[string]*domain.SuggestionSet),
	}
	c.draft = c.emptyDraft(tripType)
	return c, nil
}

// ID returns the draft id.
func (c *TripRequestComposer) ID() string {
	return c.id
}

func (c *TripRequestComposer) emptyDraft(tripType domain.TripType) domain.TripDraft {
	return domain.NewTripDraft(tripType, c.now().Truncate(time.Minute), c.cfg.DefaultCabType)
}

// editableLocked returns an error when the draft may not change.
func (c *TripRequestComposer) editableLocked() error {
	switch {
	case c.closed:
		return ErrComposerClosed
	case c.phase == domain.DraftStateSubmitted:
		return ErrDraftSubmitted
	case c.phase == domain.DraftStateSubmitting:
		return ErrSubmitInProgress
	}
	return nil
}

// dispatchLocked applies a draft action. Any successful edit leaves the
// SubmitFailed state.
func (c *TripRequestComposer) dispatchLocked(action domain.DraftAction) error {
	if err := c.editableLocked(); err != nil {
		return err
	}
	next, err := domain.ReduceDraft(c.draft, action)
	if err != nil {
		return err
	}
	c.draft = next
	c.phase = ""
	return nil
}

// queryKey identifies the autocomplete stream of a field. Stops are keyed by
// their stable id so renumbering does not mix up their queries.
func (c *TripRequestComposer) queryKeyLocked(field domain.FieldKey) (string, error) {
	switch field.Kind {
	case domain.FieldSource, domain.FieldDestination:
		return string(field.Kind), nil
	case domain.FieldStop:
		if field.Index < 0 || field.Index >= len(c.draft.Stops) {
			return "", domain.ErrInvalidStopIndex
		}
		return "stop:" + c.draft.Stops[field.Index].ID, nil
	}
	return "", domain.ErrInvalidField
}

// SetField records typed text for a location field, marks it unresolved and
// starts a debounced place lookup.
func (c *TripRequestComposer) SetField(field domain.FieldKey, text string) error {
	c.mu.Lock()
	if err := c.dispatchLocked(domain.SetLocationText{Field: field, Text: text}); err != nil {
		c.mu.Unlock()
		return err
	}
	key, err := c.queryKeyLocked(field)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.queryPlaces(key, text)
	return nil
}

// QueryPlaces starts a debounced lookup for field. Empty text clears the
// field's suggestions at once and issues nothing.
func (c *TripRequestComposer) QueryPlaces(field domain.FieldKey, text string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrComposerClosed
	}
	key, err := c.queryKeyLocked(field)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.queryPlaces(key, text)
	return nil
}

func (c *TripRequestComposer) queryPlaces(key, text string) {
	query := strings.TrimSpace(text)
	if query == "" {
		c.debouncer.Clear(key)
		c.mu.Lock()
		delete(c.suggestions, key)
		c.mu.Unlock()
		return
	}

	c.debouncer.Schedule(key, func(id uint64) {
		c.runQuery(key, query, id)
	})
}

// runQuery performs one lookup and applies it only if it is still the
// latest request for the field.
func (c *TripRequestComposer) runQuery(key, query string, id uint64) {
	items, err := c.lookup(c.ctx, query)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.debouncer.IsLatest(key, id) {
		c.logger.Debug("stale suggestions discarded", zap.String("field", key), zap.Uint64("request_id", id))
		return
	}

	if err != nil {
		c.logger.Warn("place lookup failed", zap.String("field", key), zap.Error(err))
		items = nil
	}
	c.suggestions[key] = &domain.SuggestionSet{
		Query:     query,
		RequestID: id,
		Items:     items,
	}
}

func (c *TripRequestComposer) lookup(ctx context.Context, query string) ([]domain.Suggestion, error) {
	if c.cache != nil {
		items, ok, err := c.cache.GetSuggestions(ctx, query)
		if err != nil {
			c.logger.Warn("suggestion cache read failed", zap.Error(err))
		} else if ok {
			return items, nil
		}
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	items, err := c.places.Autocomplete(ctx, token, query)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetSuggestions(ctx, query, items); err != nil {
			c.logger.Warn("suggestion cache write failed", zap.Error(err))
		}
	}
	return items, nil
}

func (c *TripRequestComposer) accessToken(ctx context.Context) (string, error) {
	token, err := c.tokens.Get(ctx, repository.AccessTokenKey)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("failed to read access token: %w", err)
	}
	return token, nil
}

// SelectSuggestion resolves field to the suggestion and clears the field's
// suggestions. Selecting the same suggestion again changes nothing.
func (c *TripRequestComposer) SelectSuggestion(field domain.FieldKey, suggestion domain.Suggestion) error {
	if strings.TrimSpace(suggestion.PlaceName) == "" {
		return domain.ValidationErrors{{Field: field.String(), Message: "suggestion has no place name"}}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key, err := c.queryKeyLocked(field)
	if err != nil {
		return err
	}
	if err := c.dispatchLocked(domain.ResolveLocation{Field: field, Location: suggestion.Location()}); err != nil {
		return err
	}

	// A late response for the typed text must not reopen the list.
	c.debouncer.Clear(key)
	delete(c.suggestions, key)
	return nil
}

// AddStop appends an empty stop and returns its index.
func (c *TripRequestComposer) AddStop() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.dispatchLocked(domain.AddStop{ID: uuid.New().String()}); err != nil {
		return 0, err
	}
	return len(c.draft.Stops) - 1, nil
}

// RemoveStop removes the stop at index. Later stops move up one label; the
// other fields and their pending lookups are untouched.
func (c *TripRequestComposer) RemoveStop(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, err := c.queryKeyLocked(domain.StopField(index))
	if err != nil {
		return err
	}
	if err := c.dispatchLocked(domain.RemoveStop{Index: index}); err != nil {
		return err
	}

	c.debouncer.Clear(key)
	delete(c.suggestions, key)
	return nil
}

// SetDeparture sets the departure date and time.
func (c *TripRequestComposer) SetDeparture(at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(domain.SetDeparture{At: at})
}

// SetReturn sets the return date and time of a round trip.
func (c *TripRequestComposer) SetReturn(at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(domain.SetReturn{At: at})
}

// SetCabType selects the cab category.
func (c *TripRequestComposer) SetCabType(cabType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(domain.SetCabType{CabType: cabType})
}

// SetPassengers sets the number of people travelling.
func (c *TripRequestComposer) SetPassengers(count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatchLocked(domain.SetPassengers{Count: count})
}

// Submit validates the draft locally and posts it. Local failures never
// reach the network. On success the draft is cleared and the user is sent
// to price negotiation; on failure the draft is kept as it was.
func (c *TripRequestComposer) Submit(ctx context.Context) (*domain.BookingAck, error) {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if errs := c.draft.Validate(); len(errs) > 0 {
		c.mu.Unlock()
		return nil, errs
	}
	draft := c.draft
	draft.Stops = append([]domain.Stop(nil), c.draft.Stops...)
	c.phase = domain.DraftStateSubmitting
	c.mu.Unlock()

	ack, err := c.submit(ctx, draft)

	c.mu.Lock()
	if err != nil {
		c.phase = domain.DraftStateSubmitFailed
		c.mu.Unlock()
		c.logger.Warn("trip submission failed", zap.Error(err))
		return nil, err
	}

	c.phase = domain.DraftStateSubmitted
	c.ack = ack
	c.draft = c.emptyDraft(draft.TripType)
	c.suggestions = make(map[string]*domain.SuggestionSet)
	c.mu.Unlock()

	c.debouncer.Stop()
	c.logger.Info("trip submitted", zap.String("booking_id", ack.ID))
	c.nav.Navigate(ctx, RoutePriceNegotiation, map[string]string{"booking_id": ack.ID})
	return ack, nil
}

func (c *TripRequestComposer) submit(ctx context.Context, draft domain.TripDraft) (*domain.BookingAck, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	ack, err := c.bookings.CreateTrip(ctx, token, BuildBookingRequest(draft))
	if err != nil {
		if se, ok := repository.AsServerError(err); ok && se.Status == http.StatusBadRequest && len(se.Fields) > 0 {
			return nil, bookingFieldErrors(se)
		}
		return nil, fmt.Errorf("unable to submit trip: %w", err)
	}
	return ack, nil
}

// BuildBookingRequest assembles the wire payload for a draft.
func BuildBookingRequest(d domain.TripDraft) repository.BookingRequest {
	req := repository.BookingRequest{
		FromLocationName:      d.Source.Name,
		FromLocationLongitude: d.Source.Longitude,
		FromLocationLatitude:  d.Source.Latitude,
		ToLocationName:        d.Destination.Name,
		ToLocationLongitude:   d.Destination.Longitude,
		ToLocationLatitude:    d.Destination.Latitude,
		DepartureDate:         d.Departure.Format(wireDateLayout),
		DepartureTime:         d.Departure.Format(wireTimeLayout),
		TripType:              string(d.TripType),
		NumberOfPeople:        d.PassengerCount,
		CabType:               d.CabType,
		Stops:                 make([]repository.BookingStop, 0, len(d.Stops)),
	}

	if d.TripType == domain.TripTypeRoundTrip {
		req.ReturnDate = d.Return.Format(wireDateLayout)
		req.ReturnTime = d.Return.Format(wireTimeLayout)
	}

	for _, s := range d.Stops {
		req.Stops = append(req.Stops, repository.BookingStop{
			Name:      s.Name,
			Longitude: s.Longitude,
			Latitude:  s.Latitude,
		})
	}
	return req
}

// bookingFieldErrors maps payload field names from a 400 back onto form fields.
func bookingFieldErrors(se *repository.ServerError) domain.ValidationErrors {
	var errs domain.ValidationErrors
	for field, msg := range se.Fields {
		switch {
		case strings.HasPrefix(field, "from_location"):
			errs.Add(domain.SourceField.String(), msg)
		case strings.HasPrefix(field, "to_location"):
			errs.Add(domain.DestinationField.String(), msg)
		case strings.HasPrefix(field, "departure"):
			errs.Add(domain.DraftFieldDeparture, msg)
		case strings.HasPrefix(field, "return"):
			errs.Add(domain.DraftFieldReturn, msg)
		case field == "number_of_people":
			errs.Add(domain.DraftFieldPassengers, msg)
		default:
			errs.Add(field, msg)
		}
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

// Cancel is called when the booking form is left. Pending timers stop and
// responses that arrive later are dropped.
func (c *TripRequestComposer) Cancel() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.debouncer.Stop()
	c.cancel()
}

// Wait blocks until every fired lookup has finished. Used by tests and on shutdown.
func (c *TripRequestComposer) Wait() {
	c.debouncer.Wait()
}

// DraftSnapshot is the render state of a booking form.
type DraftSnapshot struct {
	ID          string
	State       domain.DraftState
	Draft       domain.TripDraft
	Suggestions []domain.SuggestionSet
	Ack         *domain.BookingAck
	Closed      bool
}

// Snapshot returns the current form state. Suggestion sets carry the
// current field labels.
func (c *TripRequestComposer) Snapshot() DraftSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	draft := c.draft
	draft.Stops = append([]domain.Stop(nil), c.draft.Stops...)

	snap := DraftSnapshot{
		ID:     c.id,
		State:  c.stateLocked(),
		Draft:  draft,
		Closed: c.closed,
	}
	if c.ack != nil {
		ack := *c.ack
		snap.Ack = &ack
	}

	fields := []domain.FieldKey{domain.SourceField, domain.DestinationField}
	for i := range c.draft.Stops {
		fields = append(fields, domain.StopField(i))
	}
	for _, f := range fields {
		key, err := c.queryKeyLocked(f)
		if err != nil {
			continue
		}
		if set, ok := c.suggestions[key]; ok {
			s := *set
			s.Field = f
			s.Items = append([]domain.Suggestion(nil), set.Items...)
			snap.Suggestions = append(snap.Suggestions, s)
		}
	}
	return snap
}

// Suggestions returns the applied suggestion set for field, if any.
func (c *TripRequestComposer) Suggestions(field domain.FieldKey) (domain.SuggestionSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, err := c.queryKeyLocked(field)
	if err != nil {
		return domain.SuggestionSet{}, false
	}
	set, ok := c.suggestions[key]
	if !ok {
		return domain.SuggestionSet{}, false
	}
	out := *set
	out.Field = field
	out.Items = append([]domain.Suggestion(nil), set.Items...)
	return out, true
}

// State returns the lifecycle state of the draft.
func (c *TripRequestComposer) State() domain.DraftState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *TripRequestComposer) stateLocked() domain.DraftState {
	if c.phase != "" {
		return c.phase
	}
	return c.draft.State()
}
