package feed

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when a request is submitted without an active session.
var ErrNotConnected = errors.New("feed: not connected")

// ErrConnectionClosed is the failure reason recorded on requests that were still
// outstanding when the session shut down.
var ErrConnectionClosed = errors.New("feed: connection closed")

// ConnectionError wraps a failure to establish or maintain the upstream session.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("feed: connection to %s failed: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// DuplicateRequestError indicates a request identifier was reused while a prior
// request with the same identifier was still outstanding.
type DuplicateRequestError struct {
	ReqID int
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("feed: request id %d already outstanding", e.ReqID)
}

// UpstreamError is a non-informational error code reported by the feed for a request.
type UpstreamError struct {
	ReqID int
	Code  int
	Msg   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("feed: upstream error %d for request %d: %s", e.Code, e.ReqID, e.Msg)
}
