package location

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/raine/cheapeats-bot/internal/eats"
)

const defaultIPLookupURL = "http://ip-api.com/json/"

// ipLookupResponse is the subset of the ip-api.com response we use.
type ipLookupResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
	Country string  `json:"country"`
}

// IPDetector approximates the position from the public IP address.
type IPDetector struct {
	client *resty.Client
	url    string
}

// NewIPDetector creates a detector against ip-api.com.
func NewIPDetector() *IPDetector {
	return &IPDetector{
		client: resty.New().SetTimeout(DefaultTimeout),
		url:    defaultIPLookupURL,
	}
}

// WithURL points the detector at a different lookup endpoint.
func (d *IPDetector) WithURL(url string) *IPDetector {
	d.url = url
	return d
}

// WithTimeout sets the HTTP timeout.
func (d *IPDetector) WithTimeout(timeout time.Duration) *IPDetector {
	d.client.SetTimeout(timeout)
	return d
}

func (d *IPDetector) Detect(ctx context.Context) (eats.Coordinates, error) {
	var body ipLookupResponse
	res, err := d.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get(d.url)
	if err != nil {
		return eats.Coordinates{}, &eats.DetectionError{Reason: fmt.Sprintf("ip lookup failed: %v", err), Code: eats.DetectionUnavailable}
	}
	if res.IsError() {
		return eats.Coordinates{}, &eats.DetectionError{Reason: fmt.Sprintf("ip lookup failed: status %d", res.StatusCode()), Code: eats.DetectionUnavailable}
	}
	if body.Status != "success" {
		reason := body.Message
		if reason == "" {
			reason = "ip lookup returned no position"
		}
		return eats.Coordinates{}, &eats.DetectionError{Reason: reason, Code: eats.DetectionUnavailable}
	}
	return eats.Coordinates{Latitude: body.Lat, Longitude: body.Lon}, nil
}
