package bgclient

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// Decision is the retry policy's verdict after one classified attempt.
type Decision int

const (
	// RetrySameEndpoint retries the current endpoint after a delay.
	RetrySameEndpoint Decision = iota

	// AdvanceToNextEndpoint moves to the next endpoint in the chain with
	// a fresh retry budget.
	AdvanceToNextEndpoint

	// StopWalk terminates the chain walk and surfaces the failure.
	StopWalk
)

// String returns a label suitable for logs.
func (d Decision) String() string {
	switch d {
	case RetrySameEndpoint:
		return "retry_same_endpoint"
	case AdvanceToNextEndpoint:
		return "advance_to_next_endpoint"
	case StopWalk:
		return "stop_walk"
	default:
		return "unknown"
	}
}

// BackoffStrategy selects how the retry delay evolves across attempts on
// one endpoint.
type BackoffStrategy string

const (
	// BackoffConstant keeps the delay at BaseDelay for every retry.
	// This is the default.
	BackoffConstant BackoffStrategy = "constant"

	// BackoffExponential doubles the delay per retry up to MaxDelay.
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryPolicy decides, for a classified attempt, whether to retry the same
// endpoint, advance to the next one, or stop, and produces the delay source
// used between retries. Decide is pure; the delay source is created fresh
// per endpoint visit via NewBackoff.
type RetryPolicy struct {
	// MaxRetriesPerEndpoint is the attempt budget per endpoint, counting
	// the initial attempt. Default: 3.
	MaxRetriesPerEndpoint int

	// BaseDelay is the delay before a retry on the same endpoint.
	// Default: 1 second.
	BaseDelay time.Duration

	// MaxDelay caps the delay for the exponential strategy.
	// Default: 30 seconds.
	MaxDelay time.Duration

	// Strategy selects the backoff curve. Default: BackoffConstant.
	Strategy BackoffStrategy

	// DisableJitter turns off the BaseDelay/10 jitter applied to every
	// delay. Jitter is on by default to avoid thundering-herd effects
	// across many simultaneous clients.
	DisableJitter bool
}

// DefaultRetryPolicy returns the documented defaults: three attempts per
// endpoint, constant one-second delay with jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetriesPerEndpoint: 3,
		BaseDelay:             time.Second,
		MaxDelay:              30 * time.Second,
		Strategy:              BackoffConstant,
	}
}

// Decide returns the verdict for an attempt. endpointAttempt is the 1-based
// attempt number on the current endpoint; lastEndpoint reports whether the
// current endpoint is the final one in the chain.
//
// Success is handled by the executor before the policy is consulted.
func (p RetryPolicy) Decide(class Classification, endpointAttempt int, lastEndpoint bool) Decision {
	if !class.Retryable() {
		return StopWalk
	}
	if endpointAttempt < p.maxRetries() {
		return RetrySameEndpoint
	}
	if lastEndpoint {
		return StopWalk
	}
	return AdvanceToNextEndpoint
}

// NewBackoff returns the delay source for one endpoint visit. The executor
// pulls one delay from it per RetrySameEndpoint decision and discards it
// when advancing to the next endpoint.
func (p RetryPolicy) NewBackoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}

	var b retry.Backoff
	switch p.Strategy {
	case BackoffExponential:
		maxDelay := p.MaxDelay
		if maxDelay <= 0 {
			maxDelay = 30 * time.Second
		}
		b = retry.WithCappedDuration(maxDelay, retry.NewExponential(base))
	default:
		b = retry.NewConstant(base)
	}

	if !p.DisableJitter {
		b = retry.WithJitter(base/10, b)
	}
	return b
}

func (p RetryPolicy) maxRetries() int {
	if p.MaxRetriesPerEndpoint <= 0 {
		return 3
	}
	return p.MaxRetriesPerEndpoint
}
