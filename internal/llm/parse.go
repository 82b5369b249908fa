package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/raine/cheapeats-bot/internal/eats"
)

// NotFoundSentinel is what the vision model answers when the dish or its
// price is not on the menu.
const NotFoundSentinel = "Not Found"

type rawEntry struct {
	Name       string   `json:"name"`
	Price      *string  `json:"price"`
	Distance   *float64 `json:"distance"`
	TravelTime string   `json:"travelTime"`
	IsOpen     *bool    `json:"isOpen"`
}

type rawResultSet struct {
	Restaurants []rawEntry `json:"restaurants"`
	Summary     string     `json:"summary"`
}

// extractJSONObject returns the JSON object embedded in model output. A
// fenced block is preferred, otherwise the span from the first '{' to the
// last '}' is used.
func extractJSONObject(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if start := strings.Index(text, "```"); start != -1 {
		fenced := trimFences(text[start:])
		if end := strings.Index(fenced, "```"); end != -1 {
			fenced = strings.TrimSpace(fenced[:end])
		}
		if strings.HasPrefix(fenced, "{") {
			return fenced, true
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// ParseSearchResponse turns the raw model text into a ResultSet. Entries
// without a name are dropped. Errors are *eats.ProviderError carrying the
// user-facing message.
func ParseSearchResponse(text string) (*eats.ResultSet, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &eats.ProviderError{Op: opSearch, Message: eats.MsgEmptyResponse}
	}

	raw, ok := extractJSONObject(text)
	if !ok {
		log.Warn().Str("response", truncate(text, 500)).Msg("no JSON object in search response")
		return nil, &eats.ProviderError{Op: opSearch, Message: eats.MsgUnexpectedFormat}
	}

	var parsed rawResultSet
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Warn().Err(err).Str("response", truncate(raw, 500)).Msg("failed to decode search response")
		return nil, &eats.ProviderError{
			Op:      opSearch,
			Message: eats.MsgUnexpectedFormat,
			Err:     fmt.Errorf("failed to parse search response: %w", err),
		}
	}

	rs := &eats.ResultSet{
		Entries: make([]eats.Entry, 0, len(parsed.Restaurants)),
		Summary: strings.TrimSpace(parsed.Summary),
	}
	for _, r := range parsed.Restaurants {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			continue
		}
		e := eats.Entry{
			Name:       name,
			Price:      normalizePrice(r.Price),
			TravelTime: strings.TrimSpace(r.TravelTime),
		}
		if r.Distance != nil {
			e.DistanceKm = *r.Distance
		}
		if r.IsOpen != nil {
			e.IsOpen = *r.IsOpen
		}
		rs.Entries = append(rs.Entries, e)
	}
	return rs, nil
}

// ParsePriceResponse reads the vision model's answer. Quotes and code
// fences are stripped. An empty answer or the not-found sentinel yields nil.
func ParsePriceResponse(text string) *string {
	s := trimFences(text)
	s = strings.Trim(s, "\"'` \n\t")
	if s == "" || strings.EqualFold(s, NotFoundSentinel) {
		return nil
	}
	return &s
}

func normalizePrice(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, NotFoundSentinel) {
		return nil
	}
	return &s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
