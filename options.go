package bgclient

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring an Executor.
type Option func(*Executor)

// WithHTTPClient sets the transport used for individual attempts.
// Default: *http.Client with a 30 second per-attempt timeout.
//
// Example:
//
//	bgclient.WithHTTPClient(&http.Client{Timeout: 10 * time.Second})
func WithHTTPClient(client Doer) Option {
	return func(e *Executor) {
		e.client = client
	}
}

// WithLogger sets the logger for walk operations.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithRecorder sets the observability sink receiving one event per attempt
// and one per call resolution. Default: NopRecorder.
//
// Example:
//
//	recorder := bgclient.NewMetricsRecorder(prometheus.DefaultRegisterer)
//	bgclient.WithRecorder(recorder)
func WithRecorder(recorder Recorder) Option {
	return func(e *Executor) {
		e.recorder = recorder
	}
}

// WithClassifier sets a custom attempt classifier.
// Default: StatusClassifier.
func WithClassifier(classifier Classifier) Option {
	return func(e *Executor) {
		e.classifier = classifier
	}
}

// WithRetryPolicy replaces the whole retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(e *Executor) {
		e.policy = policy
	}
}

// WithMaxRetriesPerEndpoint sets the attempt budget per endpoint, counting
// the initial attempt. Default: 3.
func WithMaxRetriesPerEndpoint(max int) Option {
	return func(e *Executor) {
		e.policy.MaxRetriesPerEndpoint = max
	}
}

// WithBaseDelay sets the delay between retries on the same endpoint.
// Default: 1 second.
func WithBaseDelay(delay time.Duration) Option {
	return func(e *Executor) {
		e.policy.BaseDelay = delay
	}
}

// WithExponentialBackoff switches the delay curve from constant to
// exponential, doubling per retry from base up to maxDelay.
//
// Example:
//
//	bgclient.WithExponentialBackoff(time.Second, 30*time.Second)
//	// ~1s, ~2s, ~4s, ... capped at 30s
func WithExponentialBackoff(base, maxDelay time.Duration) Option {
	return func(e *Executor) {
		e.policy.Strategy = BackoffExponential
		e.policy.BaseDelay = base
		e.policy.MaxDelay = maxDelay
	}
}

// WithoutJitter disables the BaseDelay/10 jitter applied to retry delays.
// Mainly useful in tests that assert exact timing.
func WithoutJitter() Option {
	return func(e *Executor) {
		e.policy.DisableJitter = true
	}
}

// WithCallTimeout bounds the whole logical call, retries and delays
// included. Zero means no overall deadline beyond the caller's context.
func WithCallTimeout(timeout time.Duration) Option {
	return func(e *Executor) {
		e.callTimeout = timeout
	}
}

// WithComponent sets the originating component identifier carried in the
// X-BGAPP-Component header. Default: "bgclient".
func WithComponent(component string) Option {
	return func(e *Executor) {
		e.component = component
	}
}

// WithFallbackTable replaces the static fallback declaration table.
// Default: DefaultFallbackTable().
//
// Example:
//
//	table, err := bgclient.LoadFallbackTable("fallbacks.yaml")
//	...
//	bgclient.WithFallbackTable(table)
func WithFallbackTable(table FallbackTable) Option {
	return func(e *Executor) {
		e.table = table
	}
}

// WithEndpointBreakers enables a reactive circuit breaker per endpoint.
// An open breaker makes the walk skip that endpoint instead of spending
// its retry budget there.
func WithEndpointBreakers(opts ...BreakerOption) Option {
	return func(e *Executor) {
		config := DefaultBreakerConfig()
		for _, opt := range opts {
			opt(config)
		}
		e.breakers = newBreakerSet(config, slog.Default())
	}
}
