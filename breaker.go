package bgclient

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	jperrors "github.com/JohnPlummer/jp-go-errors"
	"github.com/sony/gobreaker/v2"
)

// errEndpointDegraded marks a response whose status classifies as a server
// error so the endpoint's circuit breaker counts it as a failure.
var errEndpointDegraded = errors.New("endpoint returned a retryable status")

// EndpointCounts holds the failure counters of one endpoint's circuit
// breaker.
type EndpointCounts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// HealthStatus is the health of one endpoint's circuit breaker.
type HealthStatus struct {
	// Healthy is true for closed and half-open states, false for open.
	Healthy bool `json:"healthy"`

	// State is "closed", "half-open" or "open".
	State string `json:"state"`

	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"total_successes"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
}

// BreakerConfig holds per-endpoint circuit breaker configuration.
type BreakerConfig struct {
	// MaxRequests is the number of probe requests allowed through in the
	// half-open state. Default: 3.
	MaxRequests uint32

	// Interval is the cyclic period for clearing counts in the closed
	// state. Default: 10 seconds.
	Interval time.Duration

	// Timeout is how long an open breaker stays open before probing.
	// Default: 30 seconds.
	Timeout time.Duration

	// ReadyToTrip decides when accumulated failures open the breaker.
	// Default: at least 3 requests with a 60% failure rate.
	ReadyToTrip func(counts EndpointCounts) bool
}

// DefaultBreakerConfig returns breaker configuration with the documented
// defaults.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts EndpointCounts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	}
}

// BreakerOption is a functional option for configuring endpoint breakers.
type BreakerOption func(*BreakerConfig)

// WithBreakerMaxRequests sets the half-open probe budget.
func WithBreakerMaxRequests(maxRequests uint32) BreakerOption {
	return func(c *BreakerConfig) {
		c.MaxRequests = maxRequests
	}
}

// WithBreakerInterval sets the closed-state count-clearing interval.
func WithBreakerInterval(interval time.Duration) BreakerOption {
	return func(c *BreakerConfig) {
		c.Interval = interval
	}
}

// WithBreakerTimeout sets how long an open breaker stays open.
func WithBreakerTimeout(timeout time.Duration) BreakerOption {
	return func(c *BreakerConfig) {
		c.Timeout = timeout
	}
}

// WithBreakerReadyToTrip sets a custom trip condition.
func WithBreakerReadyToTrip(fn func(counts EndpointCounts) bool) BreakerOption {
	return func(c *BreakerConfig) {
		c.ReadyToTrip = fn
	}
}

// breakerSet maintains one circuit breaker per endpoint URL, created
// lazily. Breakers are shared across concurrent calls; gobreaker handles
// its own synchronization.
type breakerSet struct {
	config *BreakerConfig
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*http.Response]
}

func newBreakerSet(config *BreakerConfig, logger *slog.Logger) *breakerSet {
	return &breakerSet{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[*http.Response]),
	}
}

func (s *breakerSet) forEndpoint(endpoint string) *gobreaker.CircuitBreaker[*http.Response] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[endpoint]; ok {
		return cb
	}

	config := s.config
	settings := gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return config.ReadyToTrip(EndpointCounts{
				Requests:             counts.Requests,
				TotalSuccesses:       counts.TotalSuccesses,
				TotalFailures:        counts.TotalFailures,
				ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
				ConsecutiveFailures:  counts.ConsecutiveFailures,
			})
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("endpoint breaker state changed",
				"endpoint", name,
				"from", from.String(),
				"to", to.String())
		},
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](settings)
	s.breakers[endpoint] = cb
	return cb
}

// execute runs one attempt through the endpoint's breaker. open reports
// that the breaker rejected the attempt without issuing it; the returned
// error then wraps the breaker state for diagnostics.
func (s *breakerSet) execute(endpoint string, fn func() (*http.Response, error)) (resp *http.Response, open bool, err error) {
	cb := s.forEndpoint(endpoint)

	resp, err = cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		counts := cb.Counts()
		s.logger.Warn("endpoint breaker open, skipping endpoint",
			"endpoint", endpoint,
			"state", cb.State().String(),
			"consecutive_failures", counts.ConsecutiveFailures)
		return nil, true, jperrors.NewCircuitBreakerError(
			"endpoint unavailable",
			"execute",
			cb.State().String(),
			jperrors.WithCause(err),
		)
	}
	return resp, false, err
}

// health returns the breaker health for one endpoint. Endpoints that have
// not seen traffic yet report a healthy closed breaker.
func (s *breakerSet) health(endpoint string) HealthStatus {
	s.mu.Lock()
	cb, ok := s.breakers[endpoint]
	s.mu.Unlock()

	if !ok {
		return HealthStatus{Healthy: true, State: gobreaker.StateClosed.String()}
	}

	state := cb.State()
	counts := cb.Counts()
	return HealthStatus{
		Healthy:              state != gobreaker.StateOpen,
		State:                state.String(),
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
	}
}
