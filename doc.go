// Package bgclient is the resilient request layer used by BGAPP frontends
// and tooling to reach the platform's backend services. It resolves the
// active deployment environment, builds an ordered fallback chain of base
// URLs per logical service, and walks that chain with bounded retries,
// classifying each failure to decide whether to retry the same endpoint,
// fail over to the next one, or give up.
//
// Callers perform a named remote operation and receive a terminal Outcome:
// Ok with the response payload, Failed with the last classified error and
// the full attempt history, or Cancelled when the caller aborted the call.
// Mid-chain transient errors are never surfaced directly.
//
// Example:
//
//	profile := bgclient.ResolveEnvironment()
//	exec := bgclient.New(profile,
//	    bgclient.WithMaxRetriesPerEndpoint(3),
//	    bgclient.WithBaseDelay(time.Second),
//	)
//
//	outcome := exec.Execute(ctx, bgclient.ServiceAdminAPI, "/collections", bgclient.RequestSpec{})
//	if outcome.OK() {
//	    fmt.Println(string(outcome.Payload))
//	}
package bgclient

import "net/http"

// Doer abstracts the HTTP transport used for individual attempts.
// *http.Client satisfies it; tests substitute mock transports.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}
