package repository

import (
	"context"

	"cabbook/internal/domain"
)

// BookingStop is one stop of a trip payload.
type BookingStop struct {
	Name      string  `json:"name"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// BookingRequest is the trip payload posted to the bookings endpoint.
type BookingRequest struct {
	FromLocationName      string        `json:"from_location_name"`
	FromLocationLongitude float64       `json:"from_location_longitude"`
	FromLocationLatitude  float64       `json:"from_location_latitude"`
	ToLocationName        string        `json:"to_location_name"`
	ToLocationLongitude   float64       `json:"to_location_longitude"`
	ToLocationLatitude    float64       `json:"to_location_latitude"`
	DepartureDate         string        `json:"departure_date"`
	DepartureTime         string        `json:"departure_time"`
	ReturnDate            string        `json:"return_date,omitempty"`
	ReturnTime            string        `json:"return_time,omitempty"`
	TripType              string        `json:"trip_type"`
	NumberOfPeople        int           `json:"number_of_people"`
	CabType               string        `json:"cab_type,omitempty"`
	Stops                 []BookingStop `json:"stops"`
}

// PlacesAPI resolves free text to candidate places.
type PlacesAPI interface {
	// Autocomplete returns suggestions for query.
	Autocomplete(ctx context.Context, accessToken, query string) ([]domain.Suggestion, error)
}

// BookingAPI submits trip requests.
type BookingAPI interface {
	// CreateTrip posts a booking and returns the server acknowledgement.
	CreateTrip(ctx context.Context, accessToken string, req BookingRequest) (*domain.BookingAck, error)
}
