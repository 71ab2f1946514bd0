package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"cabbook/internal/app"
	"cabbook/internal/domain"
	"cabbook/internal/handler"
	"cabbook/internal/repository"
	"cabbook/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type routerFixture struct {
	auth     *MockAuthAPI
	profiles *MockProfileAPI
	places   *MockPlacesAPI
	bookings *MockBookingAPI
	tokens   *MockTokenStore
	nav      *MockNavigator
	drafts   *service.DraftRegistry
	router   *gin.Engine
}

func newRouterFixture(t *testing.T, rdb *redis.Client) *routerFixture {
	t.Helper()

	f := &routerFixture{
		auth:     NewMockAuthAPI("access-token", "refresh-token"),
		profiles: NewMockProfileAPI(completeProfile()),
		places:   NewMockPlacesAPI(),
		bookings: NewMockBookingAPI(domain.BookingAck{ID: "42", Status: "pending", EstimatedPrice: 2100}),
		tokens:   NewMockTokenStore(),
		nav:      NewMockNavigator(),
	}

	auth := service.NewSessionAuthenticator(service.SessionDeps{
		Auth:      f.auth,
		Profiles:  f.profiles,
		Tokens:    f.tokens,
		Navigator: f.nav,
	}, service.SessionConfig{
		UserType:       "user",
		OtpLength:      4,
		ResendCooldown: 50 * time.Second,
	})

	f.drafts = service.NewDraftRegistry(service.ComposerDeps{
		Places:    f.places,
		Bookings:  f.bookings,
		Tokens:    f.tokens,
		Navigator: f.nav,
	}, service.ComposerConfig{
		DebounceDelay:  5 * time.Millisecond,
		DefaultCabType: "Hatchback",
	}, auth.CanProceed)
	t.Cleanup(f.drafts.CloseAll)

	negotiation := service.NewNegotiationService(1500, f.nav, nil)

	f.router = app.NewRouter(app.RouterDeps{
		SessionHandler:     handler.NewSessionHandler(auth, f.drafts),
		DraftHandler:       handler.NewDraftHandler(f.drafts, negotiation),
		NegotiationHandler: handler.NewNegotiationHandler(negotiation),
		RedisClient:        rdb,
		AllowedOrigins:     []string{"http://localhost:3000"},
	})
	return f
}

func (f *routerFixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

// login runs the OTP flow over HTTP.
func (f *routerFixture) login(t *testing.T) {
	t.Helper()

	w := f.do(t, http.MethodPost, "/v1/session/otp", handler.RequestOtpRequest{Identifier: "9999999999", Channel: "phone"})
	if w.Code != http.StatusCreated {
		t.Fatalf("request otp: %d %s", w.Code, w.Body.String())
	}
	snap := decode[handler.SessionResponse](t, w)
	if snap.State != string(domain.AuthStateOtpRequested) || snap.ResendIn < 49 || snap.ResendIn > 50 {
		t.Fatalf("unexpected session %+v", snap)
	}

	w = f.do(t, http.MethodPost, "/v1/session/otp/verify", handler.VerifyOtpRequest{Code: "1234"})
	if w.Code != http.StatusOK {
		t.Fatalf("verify otp: %d %s", w.Code, w.Body.String())
	}
	snap = decode[handler.SessionResponse](t, w)
	if !snap.Authenticated || !snap.CanProceed {
		t.Fatalf("expected a complete session, got %+v", snap)
	}
}

// openFilledDraft opens a one-way draft with both ends resolved.
func (f *routerFixture) openFilledDraft(t *testing.T) string {
	t.Helper()

	w := f.do(t, http.MethodPost, "/v1/drafts", handler.OpenDraftRequest{TripType: "one_way"})
	if w.Code != http.StatusCreated {
		t.Fatalf("open draft: %d %s", w.Code, w.Body.String())
	}
	id := decode[handler.DraftResponse](t, w).ID

	for field, s := range map[string]domain.Suggestion{"source": pune, "destination": mumbai} {
		w = f.do(t, http.MethodPost, "/v1/drafts/"+id+"/fields/"+field+"/select", handler.SelectSuggestionRequest{
			PlaceName: s.PlaceName,
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("select %s: %d %s", field, w.Code, w.Body.String())
		}
	}
	return id
}

// ──────────────────────────────────────────────
// 1. SESSION ENDPOINTS
// ──────────────────────────────────────────────

func TestRouter_Health(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t, nil)

	w := f.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestRouter_InvalidPhoneReturnsFieldErrors(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t, nil)

	w := f.do(t, http.MethodPost, "/v1/session/otp", handler.RequestOtpRequest{Identifier: "12345", Channel: "phone"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := decode[handler.ErrorResponse](t, w)
	if len(resp.Fields) == 0 {
		t.Errorf("expected field errors, got %+v", resp)
	}
	if f.auth.SendOtpCallCount != 0 {
		t.Error("invalid phone must not reach the network")
	}
}

func TestRouter_ResendDuringCooldown(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t, nil)

	f.do(t, http.MethodPost, "/v1/session/otp", handler.RequestOtpRequest{Identifier: "9999999999", Channel: "phone"})
	w := f.do(t, http.MethodPost, "/v1/session/otp/resend", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", w.Code)
	}
}

func TestRouter_VerifyWithoutChallenge(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t, nil)

	w := f.do(t, http.MethodPost, "/v1/session/otp/verify", handler.VerifyOtpRequest{Code: "1234"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

// ──────────────────────────────────────────────
// 2. DRAFT ENDPOINTS
// ──────────────────────────────────────────────

func TestRouter_ProfileRefreshAfterFailedFetch(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t, nil)

	w := f.do(t, http.MethodPost, "/v1/session/otp", handler.RequestOtpRequest{Identifier: "9999999999", Channel: "phone"})
	if w.Code != http.StatusCreated {
		t.Fatalf("request otp: %d %s", w.Code, w.Body.String())
	}

	f.profiles.GetMeError = repository.ErrTransport
	w = f.do(t, http.MethodPost, "/v1/session/otp/verify", handler.VerifyOtpRequest{Code: "1234"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("verify with profile down: expected 503, got %d", w.Code)
	}

	// The code was consumed; only the profile check is retried.
	w = f.do(t, http.MethodPost, "/v1/session/otp/verify", handler.VerifyOtpRequest{Code: "1234"})
	if w.Code != http.StatusConflict {
		t.Errorf("second verify: expected 409, got %d", w.Code)
	}

	f.profiles.GetMeError = nil
	w = f.do(t, http.MethodPost, "/v1/session/profile/refresh", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh profile: %d %s", w.Code, w.Body.String())
	}
	if snap := decode[handler.SessionResponse](t, w); !snap.Authenticated || !snap.CanProceed {
		t.Errorf("expected a complete session, got %+v", snap)
	}
}

func TestRouter_ProfileRefreshWithoutSession(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t, nil)

	w := f.do(t, http.MethodPost, "/v1/session/profile/refresh", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRouter_DraftRequiresCompleteProfile(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t, nil)

	w := f.do(t, http.MethodPost, "/v1/drafts", handler.OpenDraftRequest{TripType: "one_way"})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestRouter_DraftErrors(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t, nil)
	f.login(t)

	w := f.do(t, http.MethodPost, "/v1/drafts", handler.OpenDraftRequest{TripType: "bus"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown trip type: expected 400, got %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/v1/drafts/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown draft: expected 404, got %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/v1/drafts", handler.OpenDraftRequest{TripType: "one_way"})
	id := decode[handler.DraftResponse](t, w).ID

	w = f.do(t, http.MethodPut, "/v1/drafts/"+id+"/fields/airport", handler.FieldTextRequest{Text: "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown field: expected 400, got %d", w.Code)
	}

	w = f.do(t, http.MethodDelete, "/v1/drafts/"+id+"/stops/0", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing stop: expected 400, got %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/v1/drafts/"+id+"/submit", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty draft: expected 400, got %d", w.Code)
	}
	resp := decode[handler.ErrorResponse](t, w)
	if len(resp.Fields) < 2 {
		t.Errorf("expected source and destination errors, got %+v", resp.Fields)
	}
}

func TestRouter_TypeAndSuggest(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t, nil)
	f.places.SetResults("Pune", pune)
	f.login(t)

	w := f.do(t, http.MethodPost, "/v1/drafts", handler.OpenDraftRequest{TripType: "one_way"})
	id := decode[handler.DraftResponse](t, w).ID

	w = f.do(t, http.MethodPut, "/v1/drafts/"+id+"/fields/source", handler.FieldTextRequest{Text: "Pune"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("set field: %d %s", w.Code, w.Body.String())
	}

	composer, err := f.drafts.Get(id)
	if err != nil {
		t.Fatalf("get draft: %v", err)
	}
	composer.Wait()

	w = f.do(t, http.MethodGet, "/v1/drafts/"+id, nil)
	draft := decode[handler.DraftResponse](t, w)
	if draft.Source.Name != "Pune" || draft.Source.Resolved {
		t.Errorf("unexpected source %+v", draft.Source)
	}
	if len(draft.Suggestions) != 1 || draft.Suggestions[0].Field != "source" || len(draft.Suggestions[0].Items) != 1 {
		t.Errorf("unexpected suggestions %+v", draft.Suggestions)
	}
}

func TestRouter_SubmitAndNegotiate(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t, nil)
	f.login(t)
	id := f.openFilledDraft(t)

	w := f.do(t, http.MethodPost, "/v1/drafts/"+id+"/submit", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", w.Code, w.Body.String())
	}
	draft := decode[handler.DraftResponse](t, w)
	if draft.State != string(domain.DraftStateSubmitted) || draft.Booking == nil || draft.Booking.ID != "42" {
		t.Errorf("unexpected submit response %+v", draft)
	}

	w = f.do(t, http.MethodGet, "/v1/negotiation", nil)
	n := decode[handler.NegotiationResponse](t, w)
	if n.BookingID != "42" || n.PreferredPrice != 2100 {
		t.Errorf("unexpected negotiation %+v", n)
	}

	w = f.do(t, http.MethodPut, "/v1/negotiation", handler.OfferRequest{Offer: "1,900"})
	if n := decode[handler.NegotiationResponse](t, w); n.OfferedPrice != 1900 {
		t.Errorf("expected offer 1900, got %+v", n)
	}

	w = f.do(t, http.MethodPost, "/v1/negotiation/drivers", nil)
	if w.Code != http.StatusAccepted {
		t.Errorf("find drivers: %d", w.Code)
	}
	if last, _ := f.nav.Last(); last.Route != service.RouteInbox {
		t.Errorf("expected inbox, got %s", last.Route)
	}
}

func TestRouter_SubmitIsIdempotent(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newRouterFixture(t, rdb)
	f.login(t)
	id := f.openFilledDraft(t)

	first := f.do(t, http.MethodPost, "/v1/drafts/"+id+"/submit", nil, "Idempotency-Key", "abc")
	if first.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", first.Code, first.Body.String())
	}

	second := f.do(t, http.MethodPost, "/v1/drafts/"+id+"/submit", nil, "Idempotency-Key", "abc")
	if second.Code != http.StatusCreated {
		t.Fatalf("replay: %d %s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("expected replayed header")
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Error("expected identical replayed body")
	}
	if f.bookings.CreateTripCallCount != 1 {
		t.Errorf("expected one booking call, got %d", f.bookings.CreateTripCallCount)
	}

	// Without the key the submitted draft rejects a second post.
	third := f.do(t, http.MethodPost, "/v1/drafts/"+id+"/submit", nil)
	if third.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", third.Code)
	}
}

func TestRouter_RejectedSubmitRetriesWithSameKey(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newRouterFixture(t, rdb)
	f.login(t)

	w := f.do(t, http.MethodPost, "/v1/drafts", handler.OpenDraftRequest{TripType: "one_way"})
	id := decode[handler.DraftResponse](t, w).ID

	first := f.do(t, http.MethodPost, "/v1/drafts/"+id+"/submit", nil, "Idempotency-Key", "k1")
	if first.Code != http.StatusBadRequest {
		t.Fatalf("unresolved draft: expected 400, got %d", first.Code)
	}

	for field, s := range map[string]domain.Suggestion{"source": pune, "destination": mumbai} {
		w = f.do(t, http.MethodPost, "/v1/drafts/"+id+"/fields/"+field+"/select", handler.SelectSuggestionRequest{
			PlaceName: s.PlaceName,
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("select %s: %d %s", field, w.Code, w.Body.String())
		}
	}

	second := f.do(t, http.MethodPost, "/v1/drafts/"+id+"/submit", nil, "Idempotency-Key", "k1")
	if second.Code != http.StatusCreated {
		t.Fatalf("fixed draft: expected 201, got %d %s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "" {
		t.Error("a rejected submit must not be replayed")
	}
	if f.bookings.CreateTripCallCount != 1 {
		t.Errorf("expected one booking call, got %d", f.bookings.CreateTripCallCount)
	}
}

func TestRouter_LogoutClosesDrafts(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t, nil)
	f.login(t)
	id := f.openFilledDraft(t)

	w := f.do(t, http.MethodDelete, "/v1/session", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: %d %s", w.Code, w.Body.String())
	}
	if snap := decode[handler.SessionResponse](t, w); snap.Authenticated {
		t.Errorf("expected signed out, got %+v", snap)
	}

	w = f.do(t, http.MethodGet, "/v1/drafts/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after logout, got %d", w.Code)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	t.Parallel()
	f := newRouterFixture(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/v1/session", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected allowed origin, got %q", got)
	}
}
