package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TripType is the booking tab a draft belongs to. Values match the wire format.
type TripType string

const (
	TripTypeOneWay    TripType = "one_way"
	TripTypeRoundTrip TripType = "round_trip"
	TripTypeLocal     TripType = "local"
	TripTypeAirport   TripType = "airport"
)

// Valid reports whether t is a known trip type.
func (t TripType) Valid() bool {
	switch t {
	case TripTypeOneWay, TripTypeRoundTrip, TripTypeLocal, TripTypeAirport:
		return true
	}
	return false
}

// Location is a named point. A location typed but not yet picked from the
// suggestions has coordinates (0,0) and must not be submitted.
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// Resolved reports whether the location carries real coordinates.
func (l Location) Resolved() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// Stop is an intermediate waypoint. ID is stable across renumbering.
type Stop struct {
	ID string
	Location
}

// TripDraft is the in-progress booking request.
type TripDraft struct {
	TripType       TripType
	Source         Location
	Destination    Location
	Stops          []Stop // Visit order between source and destination
	Departure      time.Time
	Return         time.Time // Round trips only
	CabType        string
	PassengerCount int
}

// NewTripDraft returns an empty draft for the given tab.
func NewTripDraft(tripType TripType, departure time.Time, cabType string) TripDraft {
	return TripDraft{
		TripType:       tripType,
		Departure:      departure,
		CabType:        cabType,
		PassengerCount: 1,
	}
}

// IsEmpty reports whether the user has entered no location data yet.
func (d *TripDraft) IsEmpty() bool {
	return d.Source.Name == "" && d.Destination.Name == "" && len(d.Stops) == 0
}

// Location returns the location behind a field key.
func (d *TripDraft) Location(field FieldKey) (Location, error) {
	switch field.Kind {
	case FieldSource:
		return d.Source, nil
	case FieldDestination:
		return d.Destination, nil
	case FieldStop:
		if field.Index < 0 || field.Index >= len(d.Stops) {
			return Location{}, ErrInvalidStopIndex
		}
		return d.Stops[field.Index].Location, nil
	}
	return Location{}, ErrInvalidField
}

// Draft field names used in validation errors.
const (
	DraftFieldDeparture  = "departure"
	DraftFieldReturn     = "return"
	DraftFieldPassengers = "passenger_count"
	DraftFieldTripType   = "trip_type"
)

// Validate checks the submission preconditions.
func (d *TripDraft) Validate() ValidationErrors {
	var errs ValidationErrors
	if !d.TripType.Valid() {
		errs.Add(DraftFieldTripType, "unknown trip type")
	}
	if !d.Source.Resolved() {
		errs.Add(SourceField.String(), "select a source from the suggestions")
	}
	if !d.Destination.Resolved() {
		errs.Add(DestinationField.String(), "select a destination from the suggestions")
	}
	for i, s := range d.Stops {
		if !s.Resolved() {
			errs.Add(StopField(i).String(), "select a stop from the suggestions")
		}
	}
	if d.Departure.IsZero() {
		errs.Add(DraftFieldDeparture, "departure date and time are required")
	}
	if d.TripType == TripTypeRoundTrip {
		switch {
		case d.Return.IsZero():
			errs.Add(DraftFieldReturn, "return date and time are required")
		case d.Return.Before(d.Departure):
			errs.Add(DraftFieldReturn, "return must not be before departure")
		}
	}
	if d.PassengerCount < 1 {
		errs.Add(DraftFieldPassengers, "at least one passenger is required")
	}
	return errs
}

// State derives the pre-submission state of the draft.
func (d *TripDraft) State() DraftState {
	if d.IsEmpty() {
		return DraftStateEmpty
	}
	errs := d.Validate()
	if len(errs) == 0 {
		return DraftStateValid
	}
	// Every location resolved but a cross-field rule fails.
	for _, fe := range errs {
		if fe.Field != DraftFieldReturn && fe.Field != DraftFieldPassengers {
			return DraftStatePartiallyFilled
		}
	}
	return DraftStateInvalid
}

// DraftState is the composer lifecycle position.
type DraftState string

const (
	DraftStateEmpty           DraftState = "EMPTY"
	DraftStatePartiallyFilled DraftState = "PARTIALLY_FILLED"
	DraftStateValid           DraftState = "VALID"
	DraftStateInvalid         DraftState = "INVALID"
	DraftStateSubmitting      DraftState = "SUBMITTING"
	DraftStateSubmitted       DraftState = "SUBMITTED"
	DraftStateSubmitFailed    DraftState = "SUBMIT_FAILED"
)

// FieldKind is the kind of location field.
type FieldKind string

const (
	FieldSource      FieldKind = "source"
	FieldDestination FieldKind = "destination"
	FieldStop        FieldKind = "stops"
)

// FieldKey names a location input on the form.
type FieldKey struct {
	Kind  FieldKind
	Index int // Stops only
}

var (
	SourceField      = FieldKey{Kind: FieldSource}
	DestinationField = FieldKey{Kind: FieldDestination}
)

// StopField returns the key of the stop at index i.
func StopField(i int) FieldKey {
	return FieldKey{Kind: FieldStop, Index: i}
}

func (k FieldKey) String() string {
	if k.Kind == FieldStop {
		return fmt.Sprintf("stops[%d]", k.Index)
	}
	return string(k.Kind)
}

// ParseFieldKey accepts "source", "destination", "stops[2]" and "stop2".
func ParseFieldKey(s string) (FieldKey, error) {
	switch s {
	case string(FieldSource):
		return SourceField, nil
	case string(FieldDestination):
		return DestinationField, nil
	}

	var digits string
	switch {
	case strings.HasPrefix(s, "stops[") && strings.HasSuffix(s, "]"):
		digits = s[len("stops[") : len(s)-1]
	case strings.HasPrefix(s, "stop"):
		digits = s[len("stop"):]
	default:
		return FieldKey{}, ErrInvalidField
	}

	i, err := strconv.Atoi(digits)
	if err != nil || i < 0 {
		return FieldKey{}, ErrInvalidField
	}
	return StopField(i), nil
}

// Suggestion is one autocomplete result.
type Suggestion struct {
	PlaceName string
	Latitude  float64
	Longitude float64
}

// Location converts the suggestion into a resolved location.
func (s Suggestion) Location() Location {
	return Location{Name: s.PlaceName, Latitude: s.Latitude, Longitude: s.Longitude}
}

// SuggestionSet is the latest applied autocomplete result for one field.
type SuggestionSet struct {
	Field     FieldKey
	Query     string
	RequestID uint64
	Items     []Suggestion
}

// BookingAck is the server acknowledgement of a submitted trip.
type BookingAck struct {
	ID             string
	Status         string
	EstimatedPrice float64
}
