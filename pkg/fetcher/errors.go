package fetcher

import (
	"fmt"
	"net/http"
)

// NetworkError reports a connection-level failure (timeout, socket
// error) or a retryable gateway status. It is retried inside the
// executor and reaches the caller only once the task's attempt budget
// is exhausted and the task did not opt into FailSilently.
type NetworkError struct {
	// Service is the display label of the remote service.
	Service string

	// URL is the request target.
	URL string

	// RetriesLeft and MaxRetries describe the attempt budget at the
	// time of the failure.
	RetriesLeft int
	MaxRetries  int

	// ResponseCode is the HTTP status that triggered the failure, 0
	// when no response was received.
	ResponseCode int

	// Err is the originating low-level error, nil for gateway
	// statuses.
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	msg := fmt.Sprintf("network issue while requesting %s service data from url %s [%d of %d retries left], last response code %d",
		e.Service, e.URL, e.RetriesLeft, e.MaxRetries, e.ResponseCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ReceiveError reports a value-level failure while decoding a response
// or assembling batch results. It is never retried and crosses the
// orchestrator boundary immediately.
type ReceiveError struct {
	Service string
	Err     error
}

// Error implements the error interface.
func (e *ReceiveError) Error() string {
	return fmt.Sprintf("failed to receive data from %s service: %v", e.Service, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ReceiveError) Unwrap() error {
	return e.Err
}

// retryableStatus lists the gateway and timeout statuses treated as
// transient. 524 is the Cloudflare origin timeout.
var retryableStatus = map[int]bool{
	http.StatusRequestTimeout: true,
	http.StatusBadGateway:     true,
	http.StatusGatewayTimeout: true,
	524:                       true,
}

// isRetryableStatus reports whether a response status is eligible for
// a retry.
func isRetryableStatus(code int) bool {
	return retryableStatus[code]
}
