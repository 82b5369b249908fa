// Package location resolves the user's position for a search: a one-shot
// detection attempt with a bounded timeout, falling back to manual entry.
package location

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/raine/cheapeats-bot/internal/eats"
)

// DefaultTimeout bounds a single detection attempt.
const DefaultTimeout = 10 * time.Second

// Detector obtains the current position once.
type Detector interface {
	Detect(ctx context.Context) (eats.Coordinates, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context) (eats.Coordinates, error)

func (f DetectorFunc) Detect(ctx context.Context) (eats.Coordinates, error) {
	return f(ctx)
}

// Resolver runs single detection attempts against a Detector.
type Resolver struct {
	detector Detector
	clock    clockwork.Clock
	timeout  time.Duration
}

// NewResolver creates a resolver. A non-positive timeout uses DefaultTimeout.
func NewResolver(detector Detector, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{detector: detector, clock: clockwork.NewRealClock(), timeout: timeout}
}

// WithClock swaps the time source used for the timeout.
func (r *Resolver) WithClock(c clockwork.Clock) *Resolver {
	r.clock = c
	return r
}

// Detect makes one attempt. There is no retry: any failure is returned as a
// *eats.DetectionError and the caller falls back to manual entry.
func (r *Resolver) Detect(ctx context.Context) (eats.Coordinates, error) {
	if r.detector == nil {
		return eats.Coordinates{}, &eats.DetectionError{Reason: "location detection is not supported", Code: eats.DetectionUnavailable}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		coords eats.Coordinates
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		c, err := r.detector.Detect(ctx)
		done <- outcome{c, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			log.Warn().Err(o.err).Msg("location detection failed")
			return eats.Coordinates{}, asDetectionError(o.err)
		}
		log.Info().Str("coords", o.coords.String()).Msg("location detected")
		return o.coords, nil
	case <-r.clock.After(r.timeout):
		log.Warn().Dur("timeout", r.timeout).Msg("location detection timed out")
		return eats.Coordinates{}, &eats.DetectionError{Reason: "Timeout expired", Code: eats.DetectionTimeout}
	case <-ctx.Done():
		return eats.Coordinates{}, &eats.DetectionError{Reason: ctx.Err().Error(), Code: eats.DetectionUnavailable}
	}
}

func asDetectionError(err error) error {
	var detErr *eats.DetectionError
	if errors.As(err, &detErr) {
		return detErr
	}
	return &eats.DetectionError{Reason: err.Error(), Code: eats.DetectionUnavailable}
}

// Static always reports the same coordinates.
func Static(c eats.Coordinates) Detector {
	return DetectorFunc(func(context.Context) (eats.Coordinates, error) {
		return c, nil
	})
}
