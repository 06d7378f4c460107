package push

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jrsteele09/go-task-client/internal/errors"
	"github.com/rs/zerolog/log"
)

// ErrAlreadyOpened is returned by Open on a reconciler that has already been
// opened or closed. A reconciler is single use.
var ErrAlreadyOpened = errors.New("push channel already opened")

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateErrored
}

// StateListener is called on every transition. It runs on the goroutine that
// caused the transition and must not call Close.
type StateListener func(state State, err error)

type Option func(*Reconciler)

func WithDialer(d *websocket.Dialer) Option {
	return func(r *Reconciler) {
		r.dialer = d
	}
}

func WithStateListener(fn StateListener) Option {
	return func(r *Reconciler) {
		r.listener = fn
	}
}

// Reconciler owns one live update channel and routes every recognised message
// to its sink. It never reconnects: once Closed or Errored it stays there.
type Reconciler struct {
	url      string
	sink     Sink
	dialer   *websocket.Dialer
	listener StateListener

	mu     sync.Mutex
	state  State
	err    error
	conn   *websocket.Conn
	closed bool
	done   chan struct{}
}

func New(url string, sink Sink, opts ...Option) *Reconciler {
	r := &Reconciler{
		url:    url,
		sink:   sink,
		dialer: websocket.DefaultDialer,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open dials the channel and starts delivering messages. ctx bounds the dial only.
func (r *Reconciler) Open(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateDisconnected || r.closed {
		r.mu.Unlock()
		return ErrAlreadyOpened
	}
	r.state = StateConnecting
	r.mu.Unlock()
	r.notify(StateConnecting, nil)

	conn, resp, err := r.dialer.DialContext(ctx, r.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		err = errors.Wrapf(errors.ErrBackend, "dialing %s: %v", r.url, err)
		r.mu.Lock()
		closed := r.closed
		if !closed {
			r.state = StateErrored
			r.err = err
		}
		r.mu.Unlock()
		close(r.done)
		if !closed {
			r.notify(StateErrored, err)
		}
		return err
	}

	r.mu.Lock()
	if r.closed {
		// Close ran while we were dialing.
		r.mu.Unlock()
		_ = conn.Close()
		close(r.done)
		return nil
	}
	r.conn = conn
	r.state = StateOpen
	r.mu.Unlock()

	log.Debug().Str("url", r.url).Msg("push channel open")
	r.notify(StateOpen, nil)

	go r.readLoop(conn)
	return nil
}

// Close tears the channel down and waits for the read loop to exit. After Close
// returns the sink receives nothing more. Closing twice is a no-op.
func (r *Reconciler) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	conn := r.conn
	prior := r.state
	if !prior.Terminal() {
		r.state = StateClosed
	}
	r.mu.Unlock()

	var err error
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = conn.Close()
		<-r.done
	} else if prior == StateDisconnected {
		close(r.done)
	}

	if !prior.Terminal() {
		log.Debug().Msg("push channel closed")
		r.notify(StateClosed, nil)
	}
	return err
}

// State returns the current state and, when Errored, the reason.
func (r *Reconciler) State() (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.err
}

// Done is closed once the channel has stopped delivering messages.
func (r *Reconciler) Done() <-chan struct{} {
	return r.done
}

func (r *Reconciler) readLoop(conn *websocket.Conn) {
	defer close(r.done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			r.readFailed(err)
			return
		}

		msg, err := Decode(data)
		if errors.Is(err, ErrUnknownType) {
			log.Debug().Err(err).Msg("ignoring push message")
			continue
		}
		if err != nil {
			log.Warn().Err(err).Msg("dropping malformed push message")
			continue
		}

		r.mu.Lock()
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return
		}
		Apply(r.sink, msg)
	}
}

func (r *Reconciler) readFailed(err error) {
	state, reason := StateClosed, error(nil)
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		state, reason = StateErrored, errors.Wrapf(errors.ErrBackend, "push channel: %v", err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.state = state
	r.err = reason
	r.mu.Unlock()

	if reason != nil {
		log.Warn().Err(err).Msg("push channel failed")
	} else {
		log.Debug().Msg("push channel closed by server")
	}
	r.notify(state, reason)
}

func (r *Reconciler) notify(state State, err error) {
	if r.listener != nil {
		r.listener(state, err)
	}
}
