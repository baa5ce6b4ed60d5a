// Package wsclient provides a reconnecting WebSocket consumer for the
// relay's location and comment feeds. Viewer applications use it to
// stay subscribed across network drops and server restarts.
package wsclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

// State describes the connection lifecycle of a Reconnector.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	defaultBaseDelay = 1 * time.Second
	defaultMaxDelay  = 30 * time.Second
	dialTimeout      = 10 * time.Second
)

// Options configures a Reconnector. URL is required; everything else
// has a usable zero value.
type Options struct {
	// URL of the relay socket, e.g. wss://relay.example.com/comments.
	URL string

	// OnMessage is invoked for every text message received, in read
	// order. It runs on the read goroutine, so it must not block.
	OnMessage func(data []byte)

	// OnStateChange is invoked on every lifecycle transition.
	OnStateChange func(state State)

	// BaseDelay is the first reconnect delay. Defaults to 1s.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff. Defaults to 30s.
	MaxDelay time.Duration

	// ResetBackoffOnOpen starts the backoff sequence over after each
	// successful connection. Off by default: a relay that accepts
	// connections but immediately drops them would otherwise keep the
	// client hammering at the base delay.
	ResetBackoffOnOpen bool

	Dialer *websocket.Dialer
	Clock  clockwork.Clock
}

// Reconnector maintains a WebSocket connection to the relay,
// redialling with exponential backoff whenever it drops. The delay
// doubles per attempt from BaseDelay up to MaxDelay.
type Reconnector struct {
	opts   Options
	clock  clockwork.Clock
	dialer *websocket.Dialer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	attempts int
}

// New creates a Reconnector and starts connecting immediately.
func New(opts Options) *Reconnector {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: dialTimeout}
	}

	ctx, cancel := context.WithCancel(context.Background())

	r := &Reconnector{
		opts:   opts,
		clock:  clock,
		dialer: dialer,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateConnecting,
	}

	go r.run()
	return r
}

// State returns the current lifecycle state.
func (r *Reconnector) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Close tears the connection down permanently. Any pending reconnect
// is cancelled and no further callbacks fire after Close returns.
func (r *Reconnector) Close() {
	r.cancel()

	r.mu.Lock()
	if r.conn != nil {
		r.conn.Close()
	}
	r.mu.Unlock()

	<-r.done
}

func (r *Reconnector) run() {
	defer close(r.done)
	defer r.setState(StateClosed)

	for {
		r.setState(StateConnecting)

		conn, err := r.dial()
		if err != nil {
			if r.ctx.Err() != nil {
				return
			}
			slog.Warn("relay dial failed", "url", r.opts.URL, "error", err)
			if !r.waitBackoff() {
				return
			}
			continue
		}

		r.mu.Lock()
		r.conn = conn
		if r.opts.ResetBackoffOnOpen {
			r.attempts = 0
		}
		r.mu.Unlock()

		r.setState(StateOpen)
		r.readLoop(conn)

		r.mu.Lock()
		r.conn = nil
		r.mu.Unlock()

		if r.ctx.Err() != nil {
			return
		}
		slog.Info("relay connection lost, reconnecting", "url", r.opts.URL)
		if !r.waitBackoff() {
			return
		}
	}
}

func (r *Reconnector) dial() (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(r.ctx, dialTimeout)
	defer cancel()

	conn, resp, err := r.dialer.DialContext(ctx, r.opts.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// readLoop delivers messages until the connection drops.
func (r *Reconnector) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if r.opts.OnMessage != nil {
			r.opts.OnMessage(data)
		}
	}
}

// waitBackoff sleeps for the next backoff delay and bumps the attempt
// counter. Returns false if the Reconnector was closed while waiting.
func (r *Reconnector) waitBackoff() bool {
	r.mu.Lock()
	delay := backoffDelay(r.attempts, r.opts.BaseDelay, r.opts.MaxDelay)
	r.attempts++
	r.mu.Unlock()

	r.setState(StateReconnecting)

	select {
	case <-r.clock.After(delay):
		return true
	case <-r.ctx.Done():
		return false
	}
}

// backoffDelay doubles base per attempt, capped at max.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

func (r *Reconnector) setState(s State) {
	r.mu.Lock()
	if r.state == s {
		r.mu.Unlock()
		return
	}
	r.state = s
	r.mu.Unlock()

	if r.opts.OnStateChange != nil {
		r.opts.OnStateChange(s)
	}
}
