package eats

import "fmt"

// User-facing messages.
const (
	MsgEnterLocation       = "Please enter a location to search."
	MsgEnterDish           = "Please enter a dish to search for."
	MsgLocationNotDetected = "Could not use 'Current Location' as it was not detected. Please enter a location manually."
	MsgDetectionFailed     = "Could not auto-detect location: %s. Please enter a location manually."
	MsgUnexpectedFormat    = "The server returned data in an unexpected format. Please try again."
	MsgEmptyResponse       = "Received an empty response from the API."
	MsgSearchFailed        = "Failed to fetch restaurant data: %s"
	MsgAnalyzeFailed       = "Failed to analyze menu image."
	MsgNoResults           = "No restaurants found with a %s+ star rating for '%s' in '%s'. Try another dish or location!"
)

// ValidationError is a locally detected input problem. No provider call is made.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Detection error codes, mirroring browser geolocation failures.
const (
	DetectionDenied      = "denied"
	DetectionUnavailable = "unavailable"
	DetectionTimeout     = "timeout"
)

// DetectionError is a failed one-shot location detection. It is never fatal.
type DetectionError struct {
	Reason string
	Code   string
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("location detection %s: %s", e.Code, e.Reason)
}

// ProviderError is a failed search call. Message is safe to show to the user.
type ProviderError struct {
	Op      string
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// VisionError is a failed menu analysis scoped to one entry.
type VisionError struct {
	EntryID string
	Err     error
}

func (e *VisionError) Error() string {
	return fmt.Sprintf("menu analysis for entry %s: %v", e.EntryID, e.Err)
}

func (e *VisionError) Unwrap() error {
	return e.Err
}
