package eats

import (
	"fmt"
	"strings"
)

// CurrentLocationLabel is the location text shown once detection succeeds.
// Matching against it is case-insensitive.
const CurrentLocationLabel = "Current Location"

// Coordinates is a detected device position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// LocationQuery is either detected coordinates or a free-text place description.
// Exactly one of Coords and Text is set.
type LocationQuery struct {
	Coords *Coordinates
	Text   string
}

// IsCoordinates reports whether the query carries detected coordinates.
func (q LocationQuery) IsCoordinates() bool {
	return q.Coords != nil
}

func (q LocationQuery) String() string {
	if q.Coords != nil {
		return q.Coords.String()
	}
	return q.Text
}

// IsCurrentLocation reports whether text refers to the detected location sentinel.
func IsCurrentLocation(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), CurrentLocationLabel)
}

// Entry is one restaurant result.
//
// ID is assigned when the result set is ingested and never changes afterwards.
// All lookups after ingestion go through ID; Name is display only, since two
// establishments in one result set may share a name.
type Entry struct {
	ID         string  `json:"-"`
	Name       string  `json:"name"`
	Price      *string `json:"price"`
	DistanceKm float64 `json:"distance"`
	TravelTime string  `json:"travelTime"`
	IsOpen     bool    `json:"isOpen"`
	IsUpdating bool    `json:"-"`
}

// HasPrice reports whether a display price is known.
func (e Entry) HasPrice() bool {
	return e.Price != nil && *e.Price != ""
}

// ResultSet is a ranked list of entries plus the provider's one-sentence summary.
type ResultSet struct {
	Entries []Entry `json:"restaurants"`
	Summary string  `json:"summary"`
}

// Entry returns a pointer to the entry with the given ID, or nil.
func (rs *ResultSet) Entry(id string) *Entry {
	if rs == nil {
		return nil
	}
	for i := range rs.Entries {
		if rs.Entries[i].ID == id {
			return &rs.Entries[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers outside the session worker can read it safely.
func (rs *ResultSet) Clone() *ResultSet {
	if rs == nil {
		return nil
	}
	out := &ResultSet{Summary: rs.Summary, Entries: make([]Entry, len(rs.Entries))}
	for i, e := range rs.Entries {
		if e.Price != nil {
			p := *e.Price
			e.Price = &p
		}
		out.Entries[i] = e
	}
	return out
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
