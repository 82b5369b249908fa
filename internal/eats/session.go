package eats

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// MsgStillLocating is returned when a search is submitted before detection finishes.
const MsgStillLocating = "Still detecting your location. Please wait or enter a location manually."

const msgUnexpectedErr = "An unexpected error occurred."

// State is the coarse state of a Session, derived from its fields.
type State int

const (
	StateIdle State = iota
	StateLocating
	StateSearching
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLocating:
		return "locating"
	case StateSearching:
		return "searching"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	}
	return "unknown"
}

// SearchRequest describes one search issued by a Session. Generation ties the
// eventual response back to the search that triggered it.
type SearchRequest struct {
	ID           string
	Generation   uint64
	Dish         string
	Location     LocationQuery
	LocationText string
}

// PriceUpdateRequest describes one pending menu analysis for a single entry.
type PriceUpdateRequest struct {
	Generation uint64
	EntryID    string
	EntryName  string
	Dish       string
}

// Session holds one user's location, search and price-update state.
//
// A Session is not safe for concurrent use. All methods must be called from a
// single owner (a session worker goroutine or a sequential CLI), which makes
// each transition atomic with respect to the others. Provider calls happen
// between a Begin* and the matching Complete* call, outside the owner.
type Session struct {
	locationText   string
	coords         *Coordinates
	locating       bool
	detectAttempt  uint64
	dish           string
	searchLocation string
	result         *ResultSet
	loading        bool
	failed         bool
	err            string
	generation     uint64
}

// NewSession returns a session that is waiting for its first detection attempt.
// Call BeginDetection to obtain the attempt token.
func NewSession() *Session {
	return &Session{locating: true}
}

// State derives the coarse state from the session fields.
func (s *Session) State() State {
	switch {
	case s.loading:
		return StateSearching
	case s.result != nil:
		return StateReady
	case s.locating:
		return StateLocating
	case s.failed:
		return StateError
	}
	return StateIdle
}

// BeginDetection starts a one-shot detection attempt and returns its token.
// A completion carrying an older token is ignored.
func (s *Session) BeginDetection() uint64 {
	s.detectAttempt++
	s.locating = true
	return s.detectAttempt
}

// CompleteDetection applies the outcome of detection attempt. On success the
// coordinates are stored and the location text becomes the sentinel label. On
// failure the location text is cleared to force manual entry and an advisory
// error is recorded. Returns false if the attempt is stale.
func (s *Session) CompleteDetection(attempt uint64, coords *Coordinates, err error) bool {
	if attempt != s.detectAttempt || !s.locating {
		return false
	}
	s.locating = false

	if err != nil || coords == nil {
		reason := "position unavailable"
		var detErr *DetectionError
		if errors.As(err, &detErr) {
			reason = detErr.Reason
		} else if err != nil {
			reason = err.Error()
		}
		s.locationText = ""
		s.err = fmt.Sprintf(MsgDetectionFailed, reason)
		return true
	}

	c := *coords
	s.coords = &c
	s.locationText = CurrentLocationLabel
	s.err = ""
	return true
}

// SetLocationText records user-typed location text. Typing while a detection
// attempt is pending abandons that attempt.
func (s *Session) SetLocationText(text string) {
	if s.locating {
		s.locating = false
		s.detectAttempt++
	}
	s.locationText = text
}

// BeginSearch validates the inputs and moves the session to searching.
//
// Validation failures record the message as the session error, leave
// everything else untouched and return a *ValidationError; no request should
// be issued. On success the prior error and result set are cleared and the
// returned request must be passed to CompleteSearch.
func (s *Session) BeginSearch(dish string) (SearchRequest, error) {
	dish = strings.TrimSpace(dish)
	if dish == "" {
		return SearchRequest{}, s.invalid(MsgEnterDish)
	}
	if s.locating {
		return SearchRequest{}, s.invalid(MsgStillLocating)
	}

	text := strings.TrimSpace(s.locationText)
	if text == "" {
		return SearchRequest{}, s.invalid(MsgEnterLocation)
	}

	var query LocationQuery
	if IsCurrentLocation(text) {
		if s.coords == nil {
			return SearchRequest{}, s.invalid(MsgLocationNotDetected)
		}
		c := *s.coords
		query.Coords = &c
	} else {
		query.Text = text
	}

	s.generation++
	s.loading = true
	s.failed = false
	s.err = ""
	s.result = nil
	s.dish = dish
	s.searchLocation = text

	return SearchRequest{
		ID:           uuid.NewString(),
		Generation:   s.generation,
		Dish:         dish,
		Location:     query,
		LocationText: text,
	}, nil
}

func (s *Session) invalid(msg string) error {
	s.err = msg
	return &ValidationError{Message: msg}
}

// CompleteSearch applies a provider response. Entries are assigned stable IDs
// and ranked before being stored. A response for a superseded search is
// dropped and false is returned.
func (s *Session) CompleteSearch(req SearchRequest, rs *ResultSet, err error) bool {
	if req.Generation != s.generation || !s.loading {
		return false
	}
	s.loading = false

	if err != nil {
		s.failed = true
		s.result = nil
		s.err = userMessage(err)
		return true
	}

	s.result = ingest(req.Generation, rs)
	return true
}

func ingest(generation uint64, rs *ResultSet) *ResultSet {
	out := &ResultSet{}
	if rs == nil {
		return out
	}
	out.Summary = rs.Summary
	entries := make([]Entry, len(rs.Entries))
	for i, e := range rs.Entries {
		if e.Price != nil {
			p := *e.Price
			e.Price = &p
		}
		e.ID = entryID(generation, i)
		e.IsUpdating = false
		entries[i] = e
	}
	out.Entries = Rank(entries)
	return out
}

func entryID(generation uint64, index int) string {
	return strconv.FormatUint(generation, 10) + "-" + strconv.Itoa(index+1)
}

func userMessage(err error) string {
	var provErr *ProviderError
	if errors.As(err, &provErr) && provErr.Message != "" {
		return provErr.Message
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return valErr.Message
	}
	return msgUnexpectedErr
}

// BeginPriceUpdate marks one entry as updating. Only that entry changes; the
// order of the result set is untouched until CompletePriceUpdate.
func (s *Session) BeginPriceUpdate(entryID string) (PriceUpdateRequest, error) {
	if s.result == nil || s.dish == "" {
		return PriceUpdateRequest{}, &ValidationError{Message: "There are no results to update."}
	}
	e := s.result.Entry(entryID)
	if e == nil {
		return PriceUpdateRequest{}, &ValidationError{Message: "That result is no longer shown."}
	}
	if e.IsUpdating {
		return PriceUpdateRequest{}, &ValidationError{Message: fmt.Sprintf("Already analyzing a menu for %s.", e.Name)}
	}
	e.IsUpdating = true
	return PriceUpdateRequest{
		Generation: s.generation,
		EntryID:    e.ID,
		EntryName:  e.Name,
		Dish:       s.dish,
	}, nil
}

// CompletePriceUpdate applies the outcome of a menu analysis.
//
// On success the entry's price is replaced (nil means not found), the
// updating flag is cleared and the whole result set is re-ranked. On failure
// only the updating flag is cleared and a transient error is recorded; price
// and order stay as they were. Returns false if the result set the request
// belongs to is gone.
func (s *Session) CompletePriceUpdate(req PriceUpdateRequest, price *string, err error) bool {
	if req.Generation != s.generation || s.result == nil {
		return false
	}
	e := s.result.Entry(req.EntryID)
	if e == nil {
		return false
	}
	e.IsUpdating = false

	if err != nil {
		s.err = MsgAnalyzeFailed
		return true
	}

	if price != nil {
		p := *price
		e.Price = &p
	} else {
		e.Price = nil
	}
	s.result.Entries = Rank(s.result.Entries)
	return true
}

// ClearError drops the current error message.
func (s *Session) ClearError() {
	s.err = ""
}

// Err returns the current user-facing error message, or "".
func (s *Session) Err() string { return s.err }

// LocationText returns the current location input text.
func (s *Session) LocationText() string { return s.locationText }

// Coordinates returns the detected coordinates, or nil.
func (s *Session) Coordinates() *Coordinates {
	if s.coords == nil {
		return nil
	}
	c := *s.coords
	return &c
}

// Dish returns the dish of the active search.
func (s *Session) Dish() string { return s.dish }

// SearchLocation returns the location text the active search was issued with.
func (s *Session) SearchLocation() string { return s.searchLocation }

// IsLoading reports whether a search is in flight.
func (s *Session) IsLoading() bool { return s.loading }

// IsLocating reports whether a detection attempt is pending.
func (s *Session) IsLocating() bool { return s.locating }

// Result returns a copy of the current result set, or nil.
func (s *Session) Result() *ResultSet { return s.result.Clone() }

// ShowLoader reports whether a loading indicator should be shown: a search is
// in flight and there is no result set to keep displaying.
func (s *Session) ShowLoader() bool {
	return s.loading && s.result == nil
}

// EmptyMessage returns the "no results" message when the current result set
// is empty, naming both dish and location; otherwise "".
func (s *Session) EmptyMessage(minRating float64) string {
	if s.result == nil || len(s.result.Entries) > 0 {
		return ""
	}
	return fmt.Sprintf(MsgNoResults, strconv.FormatFloat(minRating, 'f', -1, 64), s.dish, s.searchLocation)
}
