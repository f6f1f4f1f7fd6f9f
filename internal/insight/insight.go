// Package insight requests natural-language analysis of a result table from
// a chat-completion model.
package insight

import (
	"context"
	"fmt"
	"net/http"
)

// Requester turns a serialized table into model-generated text.
type Requester interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

type Request struct {
	SystemPrompt string
	// Data is the table exactly as rendered to the user.
	Data string
}

type Result struct {
	Text     string
	Model    string
	Provider string
}

type Kind string

const (
	KindUnreachable Kind = "unreachable"
	KindAuth        Kind = "auth"
	KindQuota       Kind = "quota"
	KindStatus      Kind = "status"
	KindMalformed   Kind = "malformed"
)

// RequestError reports a failed model call. StatusCode is zero when no HTTP
// response was received.
type RequestError struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("insight request %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("insight request %s: %v", e.Kind, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same request may succeed later.
func (e *RequestError) Retryable() bool {
	switch e.Kind {
	case KindUnreachable, KindQuota:
		return true
	case KindStatus:
		return e.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusTooManyRequests:
		return KindQuota
	default:
		return KindStatus
	}
}
