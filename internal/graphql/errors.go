package graphql

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind categorizes a transport failure.
type ErrorKind string

const (
	// KindTransport covers network failures and non-2xx responses.
	KindTransport ErrorKind = "TRANSPORT"

	// KindEncode indicates the request could not be serialized.
	KindEncode ErrorKind = "ENCODE"

	// KindDecode indicates the response body was not the expected JSON.
	KindDecode ErrorKind = "DECODE"

	// KindGraphQL indicates the server answered with a top-level errors array.
	KindGraphQL ErrorKind = "GRAPHQL"
)

// ErrorEntry is one element of a response's top-level errors array.
type ErrorEntry struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Error is returned by Client.Do for every failure.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Entries    []ErrorEntry
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graphql %s: %s", e.Kind, e.Message)
	for _, entry := range e.Entries {
		fmt.Fprintf(&b, "; %s", entry.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsThrottled reports whether err is a GraphQL error carrying the
// THROTTLED extension code, or an HTTP 429.
func IsThrottled(err error) bool {
	var ge *Error
	if !errors.As(err, &ge) {
		return false
	}
	if ge.StatusCode == 429 {
		return true
	}
	for _, entry := range ge.Entries {
		if code, ok := entry.Extensions["code"].(string); ok && code == "THROTTLED" {
			return true
		}
	}
	return false
}
