package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrUpstreamStatus marks a non-2xx response.
	ErrUpstreamStatus = errors.New("upstream returned non-success status")
	// ErrMalformedPayload marks an observations block that could not be decoded.
	ErrMalformedPayload = errors.New("malformed observations payload")
)

// Category labels used in logs and metrics.
const (
	CategoryTimeout   = "timeout"
	CategoryNetwork   = "network"
	CategoryStatus    = "status"
	CategoryMalformed = "malformed"
)

// FetchError reports a fetch that produced no usable result. StatusCode is
// zero when no response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Category classifies the failure for metrics.
func (e *FetchError) Category() string {
	switch {
	case errors.Is(e.Err, ErrMalformedPayload):
		return CategoryMalformed
	case errors.Is(e.Err, ErrUpstreamStatus):
		return CategoryStatus
	case errors.Is(e.Err, context.DeadlineExceeded):
		return CategoryTimeout
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) && netErr.Timeout() {
		return CategoryTimeout
	}
	return CategoryNetwork
}

// CategoryOf returns the category of a *FetchError anywhere in err's chain,
// or "" when err is not a fetch failure.
func CategoryOf(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Category()
	}
	return ""
}
