// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"errors"
	"fmt"
	"net/http"
)

// Error variables for common OpenRouter failures. An *APIError matches the
// status-specific ones through errors.Is.
var (
	// ErrMissingCredential indicates no API key was supplied.
	ErrMissingCredential = errors.New("no API key configured")

	// ErrAuthFailed indicates authentication failed (invalid or expired API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")

	// ErrInsufficientCredits indicates the account has insufficient credits.
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// APIError is a non-2xx response from OpenRouter.
type APIError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface. The message is shown to the user
// as-is, so it leads with the server's own text when there is one.
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
}

// Is maps status codes onto the package's sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrInsufficientCredits:
		return e.Status == http.StatusPaymentRequired
	case ErrModelNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// NetworkError is a transport failure: connect, TLS, or a body read that
// broke mid-stream.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
