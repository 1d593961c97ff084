package coingecko

import (
	"fmt"
	"time"
)

// Kind classifies why a fetch failed.
type Kind int

const (
	KindNetwork Kind = iota
	KindRateLimited
	KindHTTP
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network_failure"
	case KindRateLimited:
		return "rate_limited"
	case KindHTTP:
		return "http_error"
	case KindMalformed:
		return "malformed_response"
	default:
		return "unknown"
	}
}

const rateLimitMessage = "Rate limit exceeded. Please wait a moment."

// FetchError is returned by every Client method on failure.
type FetchError struct {
	Kind       Kind
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindRateLimited:
		return fmt.Sprintf("coingecko: rate limited (status %d)", e.StatusCode)
	case KindHTTP:
		return fmt.Sprintf("coingecko: unexpected status %d", e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("coingecko: %s: %v", e.Kind, e.Err)
	}
	return "coingecko: " + e.Kind.String()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown in a panel alert. It is empty for kinds that
// should fall back to the panel's generic message.
func (e *FetchError) UserMessage() string {
	switch e.Kind {
	case KindRateLimited:
		return rateLimitMessage
	case KindHTTP:
		return fmt.Sprintf("Failed to fetch data: %d", e.StatusCode)
	default:
		return ""
	}
}
