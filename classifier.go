package bgclient

import (
	"context"
	"errors"

	pkgerrors "github.com/JohnPlummer/jp-go-errors"
)

// Classification is the bucket assigned to one attempt's outcome. It drives
// the retry/fallback decision for that attempt.
type Classification int

const (
	// ClassSuccess is a response with a status in [200,399].
	ClassSuccess Classification = iota

	// ClassClientError is a response with a status in [400,499]. The
	// request itself is malformed or unauthorized, so retrying against
	// any endpoint would only hide a real bug. Never retried.
	ClassClientError

	// ClassServerError is a response with a status in [500,599] or any
	// other non-success status. This endpoint's problem; retryable.
	ClassServerError

	// ClassTransportError means no response was obtained at all
	// (connection refused, timeout, DNS failure, TLS failure). Retryable.
	ClassTransportError
)

// String returns a label suitable for logs and metrics.
func (c Classification) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassClientError:
		return "client_error"
	case ClassServerError:
		return "server_error"
	case ClassTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Retryable reports whether an attempt with this classification may be
// retried or failed over.
func (c Classification) Retryable() bool {
	return c == ClassServerError || c == ClassTransportError
}

// Classifier assigns a Classification to a completed or failed attempt.
// status is the HTTP status code when a response was obtained, 0 otherwise;
// err is the transport error when the attempt produced no response.
type Classifier interface {
	Classify(status int, err error) Classification
}

// StatusClassifier is the default Classifier. It buckets responses by
// status code and treats any attempt without a response as a transport
// failure. Errors carrying a status code through the HTTPError interface
// are classified by that code.
type StatusClassifier struct{}

// Classify implements Classifier.
func (StatusClassifier) Classify(status int, err error) Classification {
	if err != nil {
		// Rate-limit and timeout sentinels never carry a response;
		// both are this endpoint's problem.
		if errors.Is(err, pkgerrors.ErrRateLimited) {
			return ClassTransportError
		}
		if pkgerrors.IsTimeout(err) {
			return ClassTransportError
		}
		if code := extractStatusCode(err); code != 0 {
			return classifyStatus(code)
		}
		return ClassTransportError
	}
	return classifyStatus(status)
}

func classifyStatus(status int) Classification {
	switch {
	case status >= 200 && status < 400:
		return ClassSuccess
	case status >= 400 && status < 500:
		return ClassClientError
	default:
		return ClassServerError
	}
}

// isCancellation reports whether an attempt error represents the caller
// aborting the call. Checked before classification: cancellation terminates
// the walk with a Cancelled outcome instead of feeding the retry policy.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
