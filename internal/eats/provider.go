package eats

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Searcher finds restaurants serving dish around location.
type Searcher interface {
	Search(ctx context.Context, dish string, location LocationQuery) (*ResultSet, error)
}

// PriceExtractor reads the price of dish from a menu photo. A nil price with
// a nil error means the dish or its price was not found.
type PriceExtractor interface {
	ExtractPrice(ctx context.Context, dish string, image []byte, mimeType string) (*string, error)
}

// RunSearch performs a complete search on s using searcher. It is meant for
// sequential owners such as the CLI; concurrent owners split the work into
// BeginSearch and CompleteSearch themselves.
func RunSearch(ctx context.Context, s *Session, searcher Searcher, dish string) error {
	req, err := s.BeginSearch(dish)
	if err != nil {
		return err
	}
	log.Info().
		Str("requestId", req.ID).
		Str("dish", req.Dish).
		Str("location", req.Location.String()).
		Msg("searching")

	rs, err := searcher.Search(ctx, req.Dish, req.Location)
	s.CompleteSearch(req, rs, err)
	return err
}

// RunPriceUpdate analyzes a menu photo for one entry and applies the result.
func RunPriceUpdate(ctx context.Context, s *Session, extractor PriceExtractor, entryID string, image []byte, mimeType string) error {
	req, err := s.BeginPriceUpdate(entryID)
	if err != nil {
		return err
	}

	price, err := extractor.ExtractPrice(ctx, req.Dish, image, mimeType)
	if err != nil {
		err = &VisionError{EntryID: req.EntryID, Err: err}
	}
	s.CompletePriceUpdate(req, price, err)
	return err
}
