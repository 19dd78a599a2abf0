package remote

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"
)

var (
	// ErrNotFound means the object authoritatively does not exist. It is a
	// reconciliation signal, never retried.
	ErrNotFound = errors.New("remote: object not found")

	// ErrUnavailable means the store could not be reached (network outage,
	// auth outage, timeout). Transient; callers should retry.
	ErrUnavailable = errors.New("remote: store unavailable")

	// ErrWriteFailed means a put or delete was rejected. Retried a bounded
	// number of times, then surfaced.
	ErrWriteFailed = errors.New("remote: write failed")
)

// IsRetryable reports whether err is worth retrying under the executor's
// backoff policy.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrWriteFailed)
}

// notFoundCodes are the S3 error codes that mean "key does not exist".
var notFoundCodes = map[string]bool{
	"NoSuchKey":    true,
	"NotFound":     true,
	"NoSuchBucket": false, // bucket gone is an outage, not a per-key miss
}

// mapReadErr classifies an SDK error from a read-side call (get/list/head).
func mapReadErr(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return errors.Join(ErrNotFound, err)
	}
	// Timeouts and transport failures are all outages from the caller's
	// point of view.
	return errors.Join(ErrUnavailable, err)
}

// mapWriteErr classifies an SDK error from a write-side call (put/delete).
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return errors.Join(ErrNotFound, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Join(ErrUnavailable, err)
	}
	return errors.Join(ErrWriteFailed, err)
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return notFoundCodes[apiErr.ErrorCode()]
	}
	return false
}
