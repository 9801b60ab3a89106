package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the root of every caller-side input error. Never retried.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidURL rejects destinations that are not absolute http(s) URLs.
	ErrInvalidURL = fmt.Errorf("%w: invalid url", ErrValidation)
	// ErrMissingID rejects requests without a short identifier.
	ErrMissingID = fmt.Errorf("%w: missing id", ErrValidation)
	// ErrMissingBody rejects create requests without a body.
	ErrMissingBody = fmt.Errorf("%w: missing body", ErrValidation)
	// ErrMalformedBody rejects bodies that do not decode to the request shape.
	ErrMalformedBody = fmt.Errorf("%w: body must be json", ErrValidation)

	// ErrLinkNotFound signals an unknown, empty or expired short link.
	ErrLinkNotFound = errors.New("short link not found")
	// ErrCollisionExhausted signals that every generated identifier was already taken.
	ErrCollisionExhausted = errors.New("identifier collision retries exhausted")
)
