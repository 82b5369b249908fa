package location

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raine/cheapeats-bot/internal/eats"
)

func TestResolver_Success(t *testing.T) {
	want := eats.Coordinates{Latitude: 3.1390, Longitude: 101.6869}
	r := NewResolver(Static(want), time.Second)

	got, err := r.Detect(context.Background())

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolver_FailureWrapped(t *testing.T) {
	r := NewResolver(DetectorFunc(func(context.Context) (eats.Coordinates, error) {
		return eats.Coordinates{}, errors.New("no gps fix")
	}), time.Second)

	_, err := r.Detect(context.Background())

	var detErr *eats.DetectionError
	require.ErrorAs(t, err, &detErr)
	assert.Equal(t, eats.DetectionUnavailable, detErr.Code)
	assert.Equal(t, "no gps fix", detErr.Reason)
}

func TestResolver_DeniedPassesThrough(t *testing.T) {
	r := NewResolver(DetectorFunc(func(context.Context) (eats.Coordinates, error) {
		return eats.Coordinates{}, &eats.DetectionError{Reason: "User denied Geolocation", Code: eats.DetectionDenied}
	}), time.Second)

	_, err := r.Detect(context.Background())

	var detErr *eats.DetectionError
	require.ErrorAs(t, err, &detErr)
	assert.Equal(t, eats.DetectionDenied, detErr.Code)
}

func TestResolver_Timeout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	blocked := DetectorFunc(func(ctx context.Context) (eats.Coordinates, error) {
		<-ctx.Done()
		return eats.Coordinates{}, ctx.Err()
	})
	r := NewResolver(blocked, 10*time.Second).WithClock(clock)

	errCh := make(chan error, 1)
	go func() {
		_, err := r.Detect(context.Background())
		errCh <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(10 * time.Second)

	err := <-errCh
	var detErr *eats.DetectionError
	require.ErrorAs(t, err, &detErr)
	assert.Equal(t, eats.DetectionTimeout, detErr.Code)
}

func TestResolver_NoDetector(t *testing.T) {
	_, err := NewResolver(nil, 0).Detect(context.Background())

	var detErr *eats.DetectionError
	require.ErrorAs(t, err, &detErr)
	assert.Equal(t, eats.DetectionUnavailable, detErr.Code)
}

func TestNewResolver_DefaultTimeout(t *testing.T) {
	r := NewResolver(nil, 0)
	assert.Equal(t, DefaultTimeout, r.timeout)
}
