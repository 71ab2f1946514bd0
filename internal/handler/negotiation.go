package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cabbook/internal/domain"
	"cabbook/internal/service"
)

// NegotiationHandler handles the price negotiation screen.
type NegotiationHandler struct {
	negotiation *service.NegotiationService
}

// NewNegotiationHandler creates a new NegotiationHandler.
func NewNegotiationHandler(negotiation *service.NegotiationService) *NegotiationHandler {
	return &NegotiationHandler{negotiation: negotiation}
}

// OfferRequest is the HTTP request body for a counter-offer. The offer is
// free text as typed; only its digits count.
type OfferRequest struct {
	Offer string `json:"offer"`
}

// NegotiationResponse is the render state of the price negotiation screen.
type NegotiationResponse struct {
	BookingID      string `json:"booking_id"`
	PreferredPrice int    `json:"preferred_price"`
	OfferedPrice   int    `json:"offered_price"`
}

func toNegotiationResponse(n domain.PriceNegotiation) NegotiationResponse {
	return NegotiationResponse{
		BookingID:      n.BookingID,
		PreferredPrice: n.PreferredPrice,
		OfferedPrice:   n.OfferedPrice,
	}
}

// Get handles GET /v1/negotiation
func (h *NegotiationHandler) Get(c *gin.Context) {
	n, err := h.negotiation.Get()
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toNegotiationResponse(n))
}

// SetOffer handles PUT /v1/negotiation
func (h *NegotiationHandler) SetOffer(c *gin.Context) {
	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	n, err := h.negotiation.SetOffer(req.Offer)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toNegotiationResponse(n))
}

// AcceptPreferred handles POST /v1/negotiation/accept
func (h *NegotiationHandler) AcceptPreferred(c *gin.Context) {
	n, err := h.negotiation.AcceptPreferred()
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toNegotiationResponse(n))
}

// FindDrivers handles POST /v1/negotiation/drivers
func (h *NegotiationHandler) FindDrivers(c *gin.Context) {
	n, err := h.negotiation.FindDrivers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusAccepted, toNegotiationResponse(n))
}
