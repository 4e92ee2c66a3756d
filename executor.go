package bgclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Correlation headers attached to every outgoing attempt. They let the
// server side correlate retries and fallbacks with one logical call.
const (
	HeaderComponent        = "X-BGAPP-Component"
	HeaderCorrelationID    = "X-BGAPP-Correlation-ID"
	HeaderFallbackPosition = "X-BGAPP-Fallback-Position"
	HeaderRetryAttempt     = "X-BGAPP-Retry-Attempt"
)

// RequestSpec describes one logical request independent of the endpoint it
// is sent to. The body is held as bytes so every attempt can replay it.
type RequestSpec struct {
	// Method defaults to GET.
	Method string

	// Query is appended to the request URL.
	Query url.Values

	// Header carries caller-supplied headers. Correlation headers are
	// added on top and win on conflict.
	Header http.Header

	// Body is the request payload, replayed verbatim on every attempt.
	Body []byte

	// ContentType sets the Content-Type header when non-empty.
	ContentType string
}

// OutcomeStatus is the terminal status of one logical call.
type OutcomeStatus int

const (
	// OutcomeOK means an endpoint answered with a success status.
	OutcomeOK OutcomeStatus = iota

	// OutcomeFailed means the walk terminated without a success: a
	// client error, a configuration error, or every endpoint exhausted.
	OutcomeFailed

	// OutcomeCancelled means the caller aborted the call. Distinct from
	// OutcomeFailed.
	OutcomeCancelled
)

// String returns a label suitable for logs and metrics.
func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeOK:
		return "ok"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// AttemptRecord describes one network attempt within a chain walk. Records
// exist for diagnostics; control flow only ever reads the classification.
type AttemptRecord struct {
	Endpoint        string
	ChainPosition   int // 1-based position in the fallback chain
	EndpointAttempt int // 1-based attempt number on this endpoint
	WalkAttempt     int // 1-based attempt number across the walk
	Classification  Classification
	Delay           time.Duration // waited before this attempt
	Elapsed         time.Duration
	StatusCode      int
	Err             error
}

// Outcome is the terminal result of one logical call. Callers only ever
// observe Ok, Failed or Cancelled; mid-chain transient errors are absorbed
// by the retry policy.
type Outcome struct {
	Status OutcomeStatus

	// Payload and StatusCode are set on OutcomeOK.
	Payload    []byte
	StatusCode int

	// Classification and Err describe the last attempt on OutcomeFailed.
	Classification Classification
	Err            error

	// Attempts is the full attempt history of the walk.
	Attempts []AttemptRecord

	// Elapsed is the end-to-end call duration, delays included.
	Elapsed time.Duration
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool { return o.Status == OutcomeOK }

// walkStats tracks aggregate executor statistics.
type walkStats struct {
	mu                 sync.RWMutex
	totalCalls         int64
	totalAttempts      int64
	totalRetries       int64
	totalFailovers     int64
	totalSuccesses     int64
	totalFailures      int64
	totalCancellations int64
	lastCallTime       time.Time
	lastError          error
}

// WalkStats is a snapshot of aggregate executor statistics.
type WalkStats struct {
	TotalCalls         int64
	TotalAttempts      int64
	TotalRetries       int64
	TotalFailovers     int64
	TotalSuccesses     int64
	TotalFailures      int64
	TotalCancellations int64
	LastCallTime       time.Time
	LastError          error
}

// Executor walks fallback chains to perform logical calls. It is safe for
// concurrent use: the profile and chains are immutable and each call owns
// its walk state.
type Executor struct {
	profile     *EnvironmentProfile
	table       FallbackTable
	client      Doer
	policy      RetryPolicy
	classifier  Classifier
	recorder    Recorder
	logger      *slog.Logger
	component   string
	callTimeout time.Duration
	breakers    *breakerSet
	stats       *walkStats
}

// New creates an Executor for the given environment profile.
//
// Example:
//
//	exec := bgclient.New(bgclient.ResolveEnvironment(),
//	    bgclient.WithMaxRetriesPerEndpoint(3),
//	    bgclient.WithCallTimeout(time.Minute),
//	)
func New(profile *EnvironmentProfile, opts ...Option) *Executor {
	e := &Executor{
		profile:    profile,
		table:      DefaultFallbackTable(),
		client:     &http.Client{Timeout: 30 * time.Second},
		policy:     DefaultRetryPolicy(),
		classifier: StatusClassifier{},
		recorder:   NopRecorder{},
		component:  "bgclient",
		stats:      &walkStats{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.breakers != nil {
		e.breakers.logger = e.logger
	}
	return e
}

// BuildURL returns the primary URL for a service joined with path. Display
// use only: actual execution always walks the full fallback chain.
func (e *Executor) BuildURL(service ServiceName, path string) (string, error) {
	primary, ok := e.profile.PrimaryURL(service)
	if !ok {
		return "", &ConfigurationError{Service: service, Reason: "no primary URL declared"}
	}
	return joinURL(primary, path, nil)
}

// EndpointHealth returns the breaker health per endpoint of a service's
// chain, keyed by endpoint URL. Returns an error when breakers are not
// enabled or the service is unknown.
func (e *Executor) EndpointHealth(service ServiceName) (map[string]HealthStatus, error) {
	if e.breakers == nil {
		return nil, fmt.Errorf("endpoint breakers not enabled")
	}
	chain, err := BuildFallbackChain(e.profile, e.table, service)
	if err != nil {
		return nil, err
	}
	health := make(map[string]HealthStatus, chain.Len())
	for i := 0; i < chain.Len(); i++ {
		endpoint := chain.At(i)
		health[endpoint] = e.breakers.health(endpoint)
	}
	return health, nil
}

// Stats returns a snapshot of aggregate executor statistics.
func (e *Executor) Stats() WalkStats {
	e.stats.mu.RLock()
	defer e.stats.mu.RUnlock()
	return WalkStats{
		TotalCalls:         e.stats.totalCalls,
		TotalAttempts:      e.stats.totalAttempts,
		TotalRetries:       e.stats.totalRetries,
		TotalFailovers:     e.stats.totalFailovers,
		TotalSuccesses:     e.stats.totalSuccesses,
		TotalFailures:      e.stats.totalFailures,
		TotalCancellations: e.stats.totalCancellations,
		LastCallTime:       e.stats.lastCallTime,
		LastError:          e.stats.lastError,
	}
}

// Execute performs one logical call against a service, walking its fallback
// chain until an endpoint succeeds, the retry policy stops the walk, or the
// caller cancels. Attempts within a call are strictly sequential.
func (e *Executor) Execute(ctx context.Context, service ServiceName, path string, spec RequestSpec) Outcome {
	start := time.Now()
	correlationID := uuid.NewString()

	chain, err := BuildFallbackChain(e.profile, e.table, service)
	if err != nil {
		e.logger.Error("fallback chain unavailable",
			"service", string(service),
			"error", err)
		return e.finish(service, correlationID, start, Outcome{
			Status: OutcomeFailed,
			Err:    err,
		})
	}

	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}

	var (
		attempts    []AttemptRecord
		walkAttempt int
		lastClass   Classification
		lastErr     error
	)

	lastEndpointIndex := chain.Len() - 1

endpoints:
	for chainIndex := 0; chainIndex <= lastEndpointIndex; chainIndex++ {
		endpoint := chain.At(chainIndex)
		backoff := e.policy.NewBackoff()
		var delay time.Duration

		if chainIndex > 0 {
			e.stats.mu.Lock()
			e.stats.totalFailovers++
			e.stats.mu.Unlock()
			e.logger.Info("failing over to next endpoint",
				"service", string(service),
				"endpoint", endpoint,
				"chain_position", chainIndex+1,
				"correlation_id", correlationID)
		}

		for endpointAttempt := 1; ; endpointAttempt++ {
			if err := sleepContext(ctx, delay); err != nil {
				return e.finish(service, correlationID, start, Outcome{
					Status:   OutcomeCancelled,
					Err:      err,
					Attempts: attempts,
				})
			}
			walkAttempt++

			attemptStart := time.Now()
			resp, breakerOpen, err := e.attempt(ctx, endpoint, path, spec, correlationID, chainIndex+1, endpointAttempt)
			elapsed := time.Since(attemptStart)

			if err != nil && ctx.Err() != nil && isCancellation(err) {
				return e.finish(service, correlationID, start, Outcome{
					Status:   OutcomeCancelled,
					Err:      err,
					Attempts: attempts,
				})
			}

			// A response wins over the breaker's bookkeeping error.
			if resp != nil {
				err = nil
			}

			status := 0
			if resp != nil {
				status = resp.StatusCode
			}

			class := e.classifier.Classify(status, err)
			if breakerOpen {
				class = ClassTransportError
			}

			var payload []byte
			if class == ClassSuccess {
				payload, err = readPayload(resp)
				if err != nil {
					// Body cut off mid-read: the endpoint failed
					// to deliver the response after all.
					class = ClassTransportError
					payload = nil
				}
			} else {
				drainBody(resp)
			}

			if err == nil && class != ClassSuccess {
				err = NewStatusCodeError(status, fmt.Errorf("%s returned status %d", endpoint, status))
			}

			record := AttemptRecord{
				Endpoint:        endpoint,
				ChainPosition:   chainIndex + 1,
				EndpointAttempt: endpointAttempt,
				WalkAttempt:     walkAttempt,
				Classification:  class,
				Delay:           delay,
				Elapsed:         elapsed,
				StatusCode:      status,
				Err:             err,
			}
			attempts = append(attempts, record)
			lastClass = class
			lastErr = err

			e.recorder.Record(AttemptEvent{
				Service:         service,
				Endpoint:        endpoint,
				ChainPosition:   chainIndex + 1,
				EndpointAttempt: endpointAttempt,
				WalkAttempt:     walkAttempt,
				Classification:  class,
				StatusCode:      status,
				Elapsed:         elapsed,
				CorrelationID:   correlationID,
			})

			e.stats.mu.Lock()
			e.stats.totalAttempts++
			if endpointAttempt > 1 {
				e.stats.totalRetries++
			}
			e.stats.mu.Unlock()

			e.logger.Debug("attempt finished",
				"service", string(service),
				"endpoint", endpoint,
				"chain_position", chainIndex+1,
				"endpoint_attempt", endpointAttempt,
				"classification", class.String(),
				"status", status,
				"error", err,
				"correlation_id", correlationID)

			if class == ClassSuccess {
				return e.finish(service, correlationID, start, Outcome{
					Status:         OutcomeOK,
					Payload:        payload,
					StatusCode:     status,
					Classification: class,
					Attempts:       attempts,
				})
			}

			if breakerOpen {
				// The breaker rejected the endpoint without a wire
				// attempt; spend no retry budget on it.
				continue endpoints
			}

			switch e.policy.Decide(class, endpointAttempt, chainIndex == lastEndpointIndex) {
			case RetrySameEndpoint:
				next, stop := backoff.Next()
				if stop {
					next = e.policy.BaseDelay
				}
				delay = next
			case AdvanceToNextEndpoint:
				continue endpoints
			case StopWalk:
				return e.finish(service, correlationID, start, Outcome{
					Status:         OutcomeFailed,
					Classification: lastClass,
					Err:            lastErr,
					Attempts:       attempts,
				})
			}
		}
	}

	// Reachable only when the last endpoint was skipped by an open breaker.
	return e.finish(service, correlationID, start, Outcome{
		Status:         OutcomeFailed,
		Classification: lastClass,
		Err:            lastErr,
		Attempts:       attempts,
	})
}

// attempt issues one network attempt. breakerOpen reports that the
// endpoint's circuit breaker rejected the attempt before it reached the
// wire.
func (e *Executor) attempt(ctx context.Context, endpoint, path string, spec RequestSpec, correlationID string, position, endpointAttempt int) (resp *http.Response, breakerOpen bool, err error) {
	target, err := joinURL(endpoint, path, spec.Query)
	if err != nil {
		return nil, false, err
	}

	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(spec.Body) > 0 {
		body = bytes.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, false, err
	}
	for key, values := range spec.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if spec.ContentType != "" {
		req.Header.Set("Content-Type", spec.ContentType)
	}
	req.Header.Set(HeaderComponent, e.component)
	req.Header.Set(HeaderCorrelationID, correlationID)
	req.Header.Set(HeaderFallbackPosition, strconv.Itoa(position))
	req.Header.Set(HeaderRetryAttempt, strconv.Itoa(endpointAttempt))

	if e.breakers != nil {
		return e.breakers.execute(endpoint, func() (*http.Response, error) {
			resp, err := e.client.Do(req)
			if err != nil {
				return nil, err
			}
			if classifyStatus(resp.StatusCode) == ClassServerError {
				return resp, NewStatusCodeError(resp.StatusCode, errEndpointDegraded)
			}
			return resp, nil
		})
	}

	resp, err = e.client.Do(req)
	return resp, false, err
}

func (e *Executor) finish(service ServiceName, correlationID string, start time.Time, o Outcome) Outcome {
	o.Elapsed = time.Since(start)

	e.recorder.Record(CallEvent{
		Service:       service,
		Outcome:       o.Status,
		TotalAttempts: len(o.Attempts),
		Elapsed:       o.Elapsed,
		CorrelationID: correlationID,
	})

	e.stats.mu.Lock()
	e.stats.totalCalls++
	e.stats.lastCallTime = time.Now()
	switch o.Status {
	case OutcomeOK:
		e.stats.totalSuccesses++
	case OutcomeFailed:
		e.stats.totalFailures++
		e.stats.lastError = o.Err
	case OutcomeCancelled:
		e.stats.totalCancellations++
	}
	e.stats.mu.Unlock()

	switch o.Status {
	case OutcomeOK:
		if len(o.Attempts) > 1 {
			e.logger.Info("call succeeded after retries",
				"service", string(service),
				"attempts", len(o.Attempts),
				"elapsed", o.Elapsed,
				"correlation_id", correlationID)
		}
	case OutcomeFailed:
		e.logger.Warn("call failed",
			"service", string(service),
			"attempts", len(o.Attempts),
			"classification", o.Classification.String(),
			"error", o.Err,
			"elapsed", o.Elapsed,
			"correlation_id", correlationID)
	case OutcomeCancelled:
		e.logger.Warn("call cancelled (expected condition)",
			"service", string(service),
			"attempts", len(o.Attempts),
			"error", o.Err,
			"correlation_id", correlationID)
	}

	return o
}

// sleepContext waits for d while honoring cancellation. A zero delay still
// reports an already-cancelled context.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func joinURL(base, path string, query url.Values) (string, error) {
	raw := strings.TrimRight(base, "/")
	if path != "" {
		raw += "/" + strings.TrimLeft(path, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

func readPayload(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// drainBody reads a bounded amount of a failed response's body so the
// connection can be reused, then closes it.
func drainBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
