package domain

import "time"

// DraftAction is a single user edit applied through ReduceDraft.
type DraftAction interface {
	isDraftAction()
}

// SetLocationText records typed text for a location field. The coordinates
// are reset until a suggestion is selected.
type SetLocationText struct {
	Field FieldKey
	Text  string
}

// ResolveLocation sets a field to a picked location.
type ResolveLocation struct {
	Field    FieldKey
	Location Location
}

// AddStop appends an empty stop.
type AddStop struct {
	ID string
}

// RemoveStop drops the stop at Index. Later stops shift down by one.
type RemoveStop struct {
	Index int
}

// SetDeparture sets the departure date and time.
type SetDeparture struct{ At time.Time }

// SetReturn sets the return date and time of a round trip.
type SetReturn struct{ At time.Time }

// SetCabType selects the cab category.
type SetCabType struct{ CabType string }

// SetPassengers sets the passenger count.
type SetPassengers struct{ Count int }

// ResetDraft replaces the draft with a fresh one.
type ResetDraft struct {
	Draft TripDraft
}

func (SetLocationText) isDraftAction() {}
func (ResolveLocation) isDraftAction() {}
func (AddStop) isDraftAction()         {}
func (RemoveStop) isDraftAction()      {}
func (SetDeparture) isDraftAction()    {}
func (SetReturn) isDraftAction()       {}
func (SetCabType) isDraftAction()      {}
func (SetPassengers) isDraftAction()   {}
func (ResetDraft) isDraftAction()      {}

// ReduceDraft returns the draft after applying action. The input draft is
// never mutated; on error it is returned unchanged.
func ReduceDraft(d TripDraft, action DraftAction) (TripDraft, error) {
	next := d
	next.Stops = append([]Stop(nil), d.Stops...)

	switch a := action.(type) {
	case SetLocationText:
		if err := next.setLocation(a.Field, Location{Name: a.Text}); err != nil {
			return d, err
		}
	case ResolveLocation:
		if err := next.setLocation(a.Field, a.Location); err != nil {
			return d, err
		}
	case AddStop:
		next.Stops = append(next.Stops, Stop{ID: a.ID})
	case RemoveStop:
		if a.Index < 0 || a.Index >= len(next.Stops) {
			return d, ErrInvalidStopIndex
		}
		next.Stops = append(next.Stops[:a.Index], next.Stops[a.Index+1:]...)
	case SetDeparture:
		next.Departure = a.At
	case SetReturn:
		next.Return = a.At
	case SetCabType:
		next.CabType = a.CabType
	case SetPassengers:
		if a.Count < 1 {
			return d, ErrInvalidPassengerCount
		}
		next.PassengerCount = a.Count
	case ResetDraft:
		next = a.Draft
		next.Stops = append([]Stop(nil), a.Draft.Stops...)
	}

	return next, nil
}

func (d *TripDraft) setLocation(field FieldKey, loc Location) error {
	switch field.Kind {
	case FieldSource:
		d.Source = loc
	case FieldDestination:
		d.Destination = loc
	case FieldStop:
		if field.Index < 0 || field.Index >= len(d.Stops) {
			return ErrInvalidStopIndex
		}
		d.Stops[field.Index].Location = loc
	default:
		return ErrInvalidField
	}
	return nil
}
