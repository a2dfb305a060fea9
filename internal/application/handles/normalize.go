// Package handles turns what a doctor types in the profile field (a bare
// handle, an @handle or a profile URL) into the handle sent for analysis.
package handles

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/bryanwahyu/clinisense/internal/domain/analysis"
)

var (
	platformDomains = []string{"twitter.com/", "x.com/"}

	allowedHosts = map[string]bool{
		"twitter.com":     true,
		"x.com":           true,
		"www.twitter.com": true,
		"www.x.com":       true,
	}

	handlePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,15}$`)
)

// Normalize returns the canonical handle for input, or an error wrapping
// analysis.ErrInvalidHandle.
func Normalize(input string) (string, error) {
	handle := strings.TrimSpace(input)
	if handle == "" {
		return "", invalid(input, "empty input")
	}

	if isProfileURL(handle) {
		h, err := handleFromURL(handle)
		if err != nil {
			return "", err
		}
		handle = h
	}

	handle = strings.TrimPrefix(handle, "@")
	if !handlePattern.MatchString(handle) {
		return "", invalid(input, "must be 1-15 letters, digits or underscores")
	}
	return handle, nil
}

func isProfileURL(s string) bool {
	for _, d := range platformDomains {
		if strings.Contains(s, d) {
			return true
		}
	}
	return false
}

func handleFromURL(raw string) (string, error) {
	full := raw
	if !strings.HasPrefix(full, "http") {
		full = "https://" + full
	}
	u, err := url.Parse(full)
	if err != nil {
		return "", invalid(raw, "malformed profile link")
	}
	if !allowedHosts[strings.ToLower(u.Hostname())] {
		return "", invalid(raw, "link is not from twitter.com or x.com")
	}
	for _, part := range strings.Split(u.Path, "/") {
		if part != "" && !strings.Contains(part, ".") {
			return part, nil
		}
	}
	return "", invalid(raw, "no username in link")
}

func invalid(input, reason string) error {
	return &analysis.InvalidHandleError{Input: input, Reason: reason}
}
