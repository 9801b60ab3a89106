package service

import (
	"net/url"
	"strings"
)

// ValidateURL reports whether candidate is an absolute http or https URL with a host.
// The scheme is matched case-insensitively. Input is not trimmed, so surrounding
// whitespace fails, and forms without an authority such as "https:example.com" or
// "https:///example.com" are rejected.
func ValidateURL(candidate string) bool {
	if candidate == "" {
		return false
	}

	u, err := url.Parse(candidate)
	if err != nil || !u.IsAbs() {
		return false
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return false
	}

	return u.Hostname() != ""
}
