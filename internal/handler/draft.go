package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cabbook/internal/domain"
	"cabbook/internal/service"
)

// DraftHandler handles HTTP requests for the booking form.
type DraftHandler struct {
	drafts      *service.DraftRegistry
	negotiation *service.NegotiationService
}

// NewDraftHandler creates a new DraftHandler.
func NewDraftHandler(drafts *service.DraftRegistry, negotiation *service.NegotiationService) *DraftHandler {
	return &DraftHandler{drafts: drafts, negotiation: negotiation}
}

// OpenDraftRequest is the HTTP request body for opening a booking form.
type OpenDraftRequest struct {
	TripType string `json:"trip_type"`
}

// FieldTextRequest is the HTTP request body for typing into a location field.
type FieldTextRequest struct {
	Text string `json:"text"`
}

// SelectSuggestionRequest is the HTTP request body for choosing a suggestion.
type SelectSuggestionRequest struct {
	PlaceName string  `json:"place_name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ScheduleRequest is the HTTP request body for the non-location fields.
// Absent fields are left unchanged.
type ScheduleRequest struct {
	Departure      *time.Time `json:"departure"`
	Return         *time.Time `json:"return"`
	CabType        *string    `json:"cab_type"`
	PassengerCount *int       `json:"passenger_count"`
}

// LocationResponse is a location field of the form.
type LocationResponse struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Resolved  bool    `json:"resolved"`
}

// StopResponse is one intermediate stop.
type StopResponse struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	LocationResponse
}

// SuggestionResponse is one autocomplete entry.
type SuggestionResponse struct {
	PlaceName string  `json:"place_name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SuggestionSetResponse is the suggestion list of one field.
type SuggestionSetResponse struct {
	Field     string               `json:"field"`
	Query     string               `json:"query"`
	RequestID uint64               `json:"request_id"`
	Items     []SuggestionResponse `json:"items"`
}

// BookingAckResponse is the server acknowledgement of a submitted trip.
type BookingAckResponse struct {
	ID             string  `json:"id"`
	Status         string  `json:"status,omitempty"`
	EstimatedPrice float64 `json:"estimated_price,omitempty"`
}

// DraftResponse is the render state of a booking form.
type DraftResponse struct {
	ID             string                  `json:"id"`
	State          string                  `json:"state"`
	TripType       string                  `json:"trip_type"`
	Source         LocationResponse        `json:"source"`
	Destination    LocationResponse        `json:"destination"`
	Stops          []StopResponse          `json:"stops"`
	Departure      string                  `json:"departure,omitempty"`
	Return         string                  `json:"return,omitempty"`
	CabType        string                  `json:"cab_type"`
	PassengerCount int                     `json:"passenger_count"`
	Suggestions    []SuggestionSetResponse `json:"suggestions"`
	Errors         []domain.FieldError     `json:"errors,omitempty"`
	Booking        *BookingAckResponse     `json:"booking,omitempty"`
}

func toLocationResponse(l domain.Location) LocationResponse {
	return LocationResponse{
		Name:      l.Name,
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		Resolved:  l.Resolved(),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toDraftResponse(snap service.DraftSnapshot) DraftResponse {
	d := snap.Draft
	resp := DraftResponse{
		ID:             snap.ID,
		State:          string(snap.State),
		TripType:       string(d.TripType),
		Source:         toLocationResponse(d.Source),
		Destination:    toLocationResponse(d.Destination),
		Stops:          make([]StopResponse, 0, len(d.Stops)),
		Departure:      formatTime(d.Departure),
		Return:         formatTime(d.Return),
		CabType:        d.CabType,
		PassengerCount: d.PassengerCount,
		Suggestions:    make([]SuggestionSetResponse, 0, len(snap.Suggestions)),
	}

	for i, s := range d.Stops {
		resp.Stops = append(resp.Stops, StopResponse{
			ID:               s.ID,
			Label:            domain.StopField(i).String(),
			LocationResponse: toLocationResponse(s.Location),
		})
	}

	for _, set := range snap.Suggestions {
		items := make([]SuggestionResponse, 0, len(set.Items))
		for _, it := range set.Items {
			items = append(items, SuggestionResponse{PlaceName: it.PlaceName, Latitude: it.Latitude, Longitude: it.Longitude})
		}
		resp.Suggestions = append(resp.Suggestions, SuggestionSetResponse{
			Field:     set.Field.String(),
			Query:     set.Query,
			RequestID: set.RequestID,
			Items:     items,
		})
	}

	switch snap.State {
	case domain.DraftStatePartiallyFilled, domain.DraftStateInvalid:
		resp.Errors = d.Validate()
	}

	if snap.Ack != nil {
		resp.Booking = &BookingAckResponse{
			ID:             snap.Ack.ID,
			Status:         snap.Ack.Status,
			EstimatedPrice: snap.Ack.EstimatedPrice,
		}
	}
	return resp
}

// composer resolves the :id path parameter, writing the error response on failure.
func (h *DraftHandler) composer(c *gin.Context) (*service.TripRequestComposer, bool) {
	composer, err := h.drafts.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return composer, true
}

// field resolves the :field path parameter.
func field(c *gin.Context) (domain.FieldKey, bool) {
	key, err := domain.ParseFieldKey(c.Param("field"))
	if err != nil {
		respondError(c, err)
		return domain.FieldKey{}, false
	}
	return key, true
}

// OpenDraft handles POST /v1/drafts
func (h *DraftHandler) OpenDraft(c *gin.Context) {
	var req OpenDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	composer, err := h.drafts.Open(domain.TripType(req.TripType))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toDraftResponse(composer.Snapshot()))
}

// GetDraft handles GET /v1/drafts/:id
func (h *DraftHandler) GetDraft(c *gin.Context) {
	composer, ok := h.composer(c)
	if !ok {
		return
	}
	respondJSON(c, http.StatusOK, toDraftResponse(composer.Snapshot()))
}

// SetField handles PUT /v1/drafts/:id/fields/:field
func (h *DraftHandler) SetField(c *gin.Context) {
	composer, ok := h.composer(c)
	if !ok {
		return
	}
	key, ok := field(c)
	if !ok {
		return
	}

	var req FieldTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := composer.SetField(key, req.Text); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusAccepted, toDraftResponse(composer.Snapshot()))
}

// SelectSuggestion handles POST /v1/drafts/:id/fields/:field/select
func (h *DraftHandler) SelectSuggestion(c *gin.Context) {
	composer, ok := h.composer(c)
	if !ok {
		return
	}
	key, ok := field(c)
	if !ok {
		return
	}

	var req SelectSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	suggestion := domain.Suggestion{PlaceName: req.PlaceName, Latitude: req.Latitude, Longitude: req.Longitude}
	if err := composer.SelectSuggestion(key, suggestion); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDraftResponse(composer.Snapshot()))
}

// SetSchedule handles PUT /v1/drafts/:id/schedule
func (h *DraftHandler) SetSchedule(c *gin.Context) {
	composer, ok := h.composer(c)
	if !ok {
		return
	}

	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := applySchedule(composer, req); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDraftResponse(composer.Snapshot()))
}

// applySchedule applies the present fields in order and stops at the first error.
func applySchedule(composer *service.TripRequestComposer, req ScheduleRequest) error {
	if req.Departure != nil {
		if err := composer.SetDeparture(*req.Departure); err != nil {
			return err
		}
	}
	if req.Return != nil {
		if err := composer.SetReturn(*req.Return); err != nil {
			return err
		}
	}
	if req.CabType != nil {
		if err := composer.SetCabType(*req.CabType); err != nil {
			return err
		}
	}
	if req.PassengerCount != nil {
		return composer.SetPassengers(*req.PassengerCount)
	}
	return nil
}

// AddStop handles POST /v1/drafts/:id/stops
func (h *DraftHandler) AddStop(c *gin.Context) {
	composer, ok := h.composer(c)
	if !ok {
		return
	}

	if _, err := composer.AddStop(); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toDraftResponse(composer.Snapshot()))
}

// RemoveStop handles DELETE /v1/drafts/:id/stops/:index
func (h *DraftHandler) RemoveStop(c *gin.Context) {
	composer, ok := h.composer(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondError(c, domain.ErrInvalidStopIndex)
		return
	}

	if err := composer.RemoveStop(index); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDraftResponse(composer.Snapshot()))
}

// Submit handles POST /v1/drafts/:id/submit
func (h *DraftHandler) Submit(c *gin.Context) {
	composer, ok := h.composer(c)
	if !ok {
		return
	}

	ack, err := composer.Submit(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	if h.negotiation != nil {
		h.negotiation.Start(ack)
	}

	respondJSON(c, http.StatusCreated, toDraftResponse(composer.Snapshot()))
}

// CloseDraft handles DELETE /v1/drafts/:id
func (h *DraftHandler) CloseDraft(c *gin.Context) {
	if err := h.drafts.Close(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
