package tubecritique

import (
	"context"
	"errors"
	"fmt"

	"tubecritique/agents/tube-critique/youtube"
	"tubecritique/shared/ai"
)

var (
	ErrInvalidURL         = youtube.ErrInvalidURL
	ErrNoContentAvailable = errors.New("could not analyze video: no transcript available and video processing failed")
	ErrModelInvocation    = errors.New("model invocation failed")
	ErrUnparsableResponse = ai.ErrUnparsableResponse
)

// Partial is the context gathered before a pipeline failure, returned so
// callers can still show something about the video.
type Partial struct {
	VideoTitle   string `json:"videoTitle"`
	VideoChannel string `json:"videoChannel"`
	VideoURL     string `json:"videoUrl"`
}

// AnalysisError is the terminal failure of a pipeline run. Kind is one of the
// package sentinels; errors.Is matches both Kind and the cause.
type AnalysisError struct {
	Kind    error
	Partial *Partial
	Err     error
}

func (e *AnalysisError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	if errors.Is(e.Err, e.Kind) {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Quota reports whether a model failure was caused by upstream quota
// exhaustion or rate limiting.
func (e *AnalysisError) Quota() bool {
	return errors.Is(e.Kind, ErrModelInvocation) && ai.IsQuotaError(e.Err)
}

// failureKind is the short label used in logs and metrics.
func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, ErrNoContentAvailable):
		return "no_content"
	case errors.Is(err, ErrUnparsableResponse):
		return "unparsable_response"
	case errors.Is(err, ErrModelInvocation):
		return "model_invocation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
