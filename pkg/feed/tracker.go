package feed

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the terminal (or in-flight) state of a historical request.
type Status int

const (
	StatusReceiving Status = iota
	StatusComplete
	StatusFailed
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusReceiving:
		return "receiving"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	case StatusTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Result is what Wait hands back once a request reached a terminal state.
// Events holds whatever was accumulated, even on timeout (best-effort salvage);
// the toolkit itself treats timeout and failure as "no series produced".
type Result struct {
	Status Status
	Events []BarEvent
	Err    error
}

// pending tracks one outstanding request. Bars are appended only by the session's
// dispatch goroutine; err is set before done is closed, so a caller that observed
// the close sees every write that preceded it.
type pending struct {
	req  HistoricalRequest
	bars []BarEvent
	err  error
	done chan struct{}
}

// Tracker correlates asynchronous bar events and end-of-stream/error notifications
// with the request that originated them, keyed by request identifier.
type Tracker struct {
	logger *zap.Logger

	mu       sync.Mutex
	requests map[int]*pending
}

func NewTracker(logger *zap.Logger) *Tracker {
	return &Tracker{
		logger:   logger,
		requests: make(map[int]*pending),
	}
}

// register reserves the request identifier. It fails with DuplicateRequestError
// while a prior request with the same id is still outstanding.
func (t *Tracker) register(req HistoricalRequest) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.requests[req.ReqID]; ok {
		return &DuplicateRequestError{ReqID: req.ReqID}
	}
	t.requests[req.ReqID] = &pending{
		req:  req,
		done: make(chan struct{}),
	}
	return nil
}

// unregister drops a reservation, e.g. when sending the request failed.
func (t *Tracker) unregister(reqID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.requests, reqID)
}

// addBar appends a bar event to its request's buffer. Arrival order carries no
// chronological guarantee; sorting happens during assembly.
func (t *Tracker) addBar(reqID int, bar BarEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.requests[reqID]
	if !ok {
		t.logger.Debug("bar for unknown request dropped", zap.Int("req_id", reqID))
		return
	}
	select {
	case <-p.done:
		// Already terminal; a reader may own the buffer now.
		return
	default:
	}
	p.bars = append(p.bars, bar)
}

// complete marks the request finished. The feed guarantees end-of-stream arrives
// only after all bar events for the identifier were delivered.
func (t *Tracker) complete(reqID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.requests[reqID]
	if !ok {
		t.logger.Debug("end-of-stream for unknown request", zap.Int("req_id", reqID))
		return
	}
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}

// fail records a request-level failure and transitions the request to failed.
func (t *Tracker) fail(reqID int, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.requests[reqID]
	if !ok {
		return false
	}
	select {
	case <-p.done:
	default:
		p.err = err
		close(p.done)
	}
	return true
}

// failAll fails every outstanding request, used when the session goes away.
func (t *Tracker) failAll(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.requests {
		select {
		case <-p.done:
		default:
			p.err = err
			close(p.done)
		}
	}
}

// Wait blocks the calling flow until the request reaches complete or failed, or
// until timeout elapses. The background dispatch loop keeps draining events during
// the wait. The request entry is consumed: after Wait returns, the identifier may
// be reused.
func (t *Tracker) Wait(reqID int, timeout time.Duration) Result {
	t.mu.Lock()
	p, ok := t.requests[reqID]
	t.mu.Unlock()
	if !ok {
		return Result{Status: StatusFailed, Err: fmt.Errorf("feed: no outstanding request %d", reqID)}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return t.consume(reqID, p)
	case <-timer.C:
		// The end-of-stream may have raced the timer; prefer the terminal state.
		select {
		case <-p.done:
			return t.consume(reqID, p)
		default:
		}
		t.mu.Lock()
		delete(t.requests, reqID)
		bars := append([]BarEvent(nil), p.bars...)
		t.mu.Unlock()
		return Result{Status: StatusTimedOut, Events: bars}
	}
}

// consume reads the terminal state after observing the done channel close.
func (t *Tracker) consume(reqID int, p *pending) Result {
	t.mu.Lock()
	delete(t.requests, reqID)
	t.mu.Unlock()
	if p.err != nil {
		return Result{Status: StatusFailed, Events: p.bars, Err: p.err}
	}
	return Result{Status: StatusComplete, Events: p.bars}
}

// Outstanding reports how many requests have not reached a terminal state.
func (t *Tracker) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}
