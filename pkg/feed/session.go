package feed

import (
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/myrern/Backtester-v2/config"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State is the connectivity state of a session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// closeGrace bounds how long Close waits for the dispatch loop to exit.
const closeGrace = 2 * time.Second

// Session owns one connection to the upstream feed and runs its event-dispatch
// loop in the background. All feed-pushed events arrive through that loop; the
// caller never receives them directly.
type Session struct {
	cfg     config.FeedConfig
	logger  *zap.Logger
	tracker *Tracker

	state atomic.Int32

	mu       sync.Mutex // guards conn and the write side
	conn     *websocket.Conn
	loopDone chan struct{}
}

// NewSession creates a disconnected session. Call Open to connect.
func NewSession(cfg config.FeedConfig, logger *zap.Logger) *Session {
	return &Session{
		cfg:     cfg,
		logger:  logger,
		tracker: NewTracker(logger),
	}
}

// Tracker exposes the request tracker, mainly so callers can Wait on a request.
func (s *Session) Tracker() *Tracker { return s.tracker }

// State returns the current connectivity state.
func (s *Session) State() State { return State(s.state.Load()) }

// Addr is the feed endpoint this session dials.
func (s *Session) Addr() string {
	return s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
}

// Open establishes the connection and starts the background dispatch loop.
// It fails with a ConnectionError if the endpoint is unreachable or refuses the
// handshake within the configured timeout.
func (s *Session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateConnected {
		return fmt.Errorf("feed: session already open")
	}
	if s.State() == StateClosed {
		return fmt.Errorf("feed: session already closed")
	}
	s.state.Store(int32(StateConnecting))

	u := url.URL{
		Scheme:   "ws",
		Host:     s.Addr(),
		Path:     "/feed",
		RawQuery: "client_id=" + strconv.Itoa(s.cfg.ClientID),
	}
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		s.state.Store(int32(StateDisconnected))
		s.logger.Error("failed to connect to feed", zap.String("addr", s.Addr()), zap.Error(err))
		return &ConnectionError{Addr: s.Addr(), Err: err}
	}
	s.conn = conn
	s.loopDone = make(chan struct{})
	s.state.Store(int32(StateConnected))
	s.logger.Info("feed connected",
		zap.String("addr", s.Addr()),
		zap.Int("client_id", s.cfg.ClientID))

	go s.dispatchLoop(conn, s.loopDone)
	return nil
}

// Submit validates and sends one historical-data request over the connection.
// The request transitions to receiving; its responses are accumulated by the
// dispatch loop until Wait observes a terminal state.
func (s *Session) Submit(req HistoricalRequest) error {
	if s.State() != StateConnected {
		return ErrNotConnected
	}
	if err := s.tracker.register(req); err != nil {
		return err
	}

	s.mu.Lock()
	conn := s.conn
	var err error
	if conn == nil {
		err = ErrNotConnected
	} else {
		err = conn.WriteJSON(request{Op: opHistorical, HistoricalRequest: req})
	}
	s.mu.Unlock()

	if err != nil {
		s.tracker.unregister(req.ReqID)
		if err == ErrNotConnected {
			return err
		}
		return &ConnectionError{Addr: s.Addr(), Err: err}
	}
	s.logger.Info("historical request submitted",
		zap.Int("req_id", req.ReqID),
		zap.String("symbol", req.Contract.Symbol),
		zap.String("duration", req.Duration),
		zap.String("bar_size", req.BarSize))
	return nil
}

// Wait blocks until the request reaches complete or failed, or until timeout
// elapses. The dispatch loop keeps draining feed events during the wait.
func (s *Session) Wait(reqID int, timeout time.Duration) Result {
	return s.tracker.Wait(reqID, timeout)
}

// Close stops the dispatch loop, fails any outstanding request with a
// connection-closed reason and releases the connection. Closing an already
// closed session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.State() == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state.Store(int32(StateClosed))
	conn := s.conn
	loopDone := s.loopDone
	s.conn = nil
	s.mu.Unlock()

	s.tracker.failAll(ErrConnectionClosed)

	if conn != nil {
		// Best-effort close handshake; the read side is forced down right after.
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}

	if loopDone != nil {
		select {
		case <-loopDone:
		case <-time.After(closeGrace):
			s.logger.Warn("dispatch loop did not stop within grace period")
		}
	}
	s.logger.Info("feed session closed")
	return nil
}

// dispatchLoop receives every inbound protocol event and routes it to the
// tracker. It is the session's sole source of asynchrony.
func (s *Session) dispatchLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			if s.State() == StateClosed {
				return // normal shutdown
			}
			s.logger.Error("feed read error", zap.Error(err))
			s.state.Store(int32(StateDisconnected))
			s.tracker.failAll(&ConnectionError{Addr: s.Addr(), Err: err})
			return
		}
		s.dispatch(msg)
	}
}

func (s *Session) dispatch(msg message) {
	switch msg.Type {
	case msgTypeBar:
		if msg.Bar == nil {
			s.logger.Warn("bar message without payload", zap.Int("req_id", msg.ReqID))
			return
		}
		s.tracker.addBar(msg.ReqID, *msg.Bar)
	case msgTypeEnd:
		s.logger.Info("end of historical data", zap.Int("req_id", msg.ReqID))
		s.tracker.complete(msg.ReqID)
	case msgTypeError:
		s.handleError(msg)
	default:
		s.logger.Debug("unhandled feed message", zap.String("type", msg.Type))
	}
}

// handleError classifies error notifications: connectivity heartbeats are logged
// and dropped; everything else fails the matching request, or is logged as a
// connection-level error when no request matches.
func (s *Session) handleError(msg message) {
	if Informational(msg.Code) {
		s.logger.Info("feed status", zap.Int("code", msg.Code), zap.String("msg", msg.Msg))
		return
	}
	err := &UpstreamError{ReqID: msg.ReqID, Code: msg.Code, Msg: msg.Msg}
	if s.tracker.fail(msg.ReqID, err) {
		s.logger.Warn("historical request failed",
			zap.Int("req_id", msg.ReqID),
			zap.Int("code", msg.Code),
			zap.String("msg", msg.Msg))
		return
	}
	s.logger.Error("feed connection-level error",
		zap.Int("code", msg.Code),
		zap.String("msg", msg.Msg))
}
