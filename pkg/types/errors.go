// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// ExtractionError reports a failure of the OCR collaborator. It is
// recoverable: the caller may still index an empty or partial record.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return fmt.Sprintf("extraction failed: %v", e.Err) }
func (e *ExtractionError) Unwrap() error { return e.Err }

// RetrievalError reports a failure or timeout of the retrieval collaborator.
// It is recoverable: the orchestrator degrades to "no evidence found".
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string { return fmt.Sprintf("retrieval failed: %v", e.Err) }
func (e *RetrievalError) Unwrap() error { return e.Err }

// ThrottlingError reports a rate-limit signal from the generation backend.
// It is the only error class the generation client retries.
type ThrottlingError struct {
	Message string
}

func (e *ThrottlingError) Error() string { return "backend throttled: " + e.Message }

// TimeoutError reports expiry of the overall call deadline. It aborts the
// whole call; it is never retried.
type TimeoutError struct {
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call timed out after %s", e.Elapsed)
}

// NormalizationError reports a backend payload that could not be parsed as
// JSON at all. Missing fields never produce this error.
type NormalizationError struct {
	Err error
}

func (e *NormalizationError) Error() string { return fmt.Sprintf("malformed response: %v", e.Err) }
func (e *NormalizationError) Unwrap() error { return e.Err }

// BackendError reports a non-transient generation failure. It propagates
// immediately without retry.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
	}
	return "backend error: " + e.Message
}
