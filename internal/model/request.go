package model

import (
	"errors"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// MaxURLLength is the maximum accepted length of a submitted URL.
const MaxURLLength = 2048

// ErrInvalidURL is the sentinel matched by every ValidationError.
var ErrInvalidURL = errors.New("invalid URL")

// ValidationError describes why a submitted URL was rejected.
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid URL: " + e.Reason
}

// Is matches ErrInvalidURL.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidURL
}

// hostnamePattern requires dot-separated labels ending in an alphabetic TLD.
var hostnamePattern = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,63}$`)

// AnalysisRequest is a validated submission.
type AnalysisRequest struct {
	URL string `json:"url"`
}

// NewAnalysisRequest validates and normalizes a raw URL.
// The scheme is optional and defaults to https; scheme-relative input
// ("//example.com") is accepted too.
func NewAnalysisRequest(raw string) (AnalysisRequest, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AnalysisRequest{}, invalid(raw, "url is required")
	}
	if len(trimmed) > MaxURLLength {
		return AnalysisRequest{}, invalid(raw, "url too long")
	}

	candidate := trimmed
	switch {
	case strings.HasPrefix(candidate, "//"):
		candidate = "https:" + candidate
	case !strings.Contains(candidate, "://"):
		candidate = "https://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return AnalysisRequest{}, invalid(raw, "malformed url")
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return AnalysisRequest{}, invalid(raw, "only http and https are allowed")
	}
	u.Scheme = scheme

	host := u.Hostname()
	if host == "" {
		return AnalysisRequest{}, invalid(raw, "host is required")
	}
	if net.ParseIP(host) == nil && !hostnamePattern.MatchString(host) {
		return AnalysisRequest{}, invalid(raw, "host must be a domain with a valid TLD")
	}

	return AnalysisRequest{URL: u.String()}, nil
}

func invalid(input, reason string) *ValidationError {
	return &ValidationError{Input: input, Reason: reason}
}
