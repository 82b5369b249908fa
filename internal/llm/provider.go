package llm

import (
	"context"

	"github.com/raine/cheapeats-bot/internal/eats"
)

// Usage contains token usage and cost information for one model call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// SearchProvider finds restaurants for a dish near a location.
type SearchProvider interface {
	Search(ctx context.Context, dish string, location eats.LocationQuery) (*eats.ResultSet, error)
}

// VisionProvider reads a dish price from a menu photo.
type VisionProvider interface {
	ExtractPrice(ctx context.Context, dish string, image []byte, mimeType string) (*string, error)
}

var (
	_ SearchProvider      = (*Gemini)(nil)
	_ VisionProvider      = (*Gemini)(nil)
	_ VisionProvider      = (*CachedVision)(nil)
	_ eats.Searcher       = SearchProvider(nil)
	_ eats.PriceExtractor = VisionProvider(nil)
)
