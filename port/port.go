// Package port drives a single VISCA connection.
//
// VISCA replies carry no request id. A command is first acknowledged with a
// camera assigned socket number and later completed on that socket; an
// inquiry is answered once. Replies of different requests interleave freely,
// so the port keeps two collections: requests written but not yet matched to
// any reply, oldest first, and acknowledged commands queued per socket
// waiting for their Completion. Any reply that cannot be matched means the
// client lost track of what the camera considers outstanding; the connection
// is then torn down and every outstanding request fails.
package port

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mklimuk/visca"
	"github.com/mklimuk/visca/message"
	"github.com/mklimuk/visca/nibble"
	"github.com/mklimuk/visca/transport"
	"github.com/mklimuk/visca/vctx"
)

type state int

const (
	stateClosed state = iota
	stateConnecting
	stateOpen
)

type Opts struct {
	Logger            *slog.Logger
	StatusHandler     visca.StatusHandler
	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration
	AutoReconnect     bool
}

type Opt func(*Opts)

func WithLogger(l *slog.Logger) Opt {
	return func(o *Opts) {
		o.Logger = l
	}
}

// WithStatusHandler registers the sink for connection status transitions.
// The handler is called without port locks held and may be called from
// different goroutines.
func WithStatusHandler(h visca.StatusHandler) Opt {
	return func(o *Opts) {
		o.StatusHandler = h
	}
}

// WithReconnectDelay sets the backoff between reconnection attempts. It
// starts at min and doubles up to max.
func WithReconnectDelay(min, max time.Duration) Opt {
	return func(o *Opts) {
		o.ReconnectDelay = min
		o.ReconnectMaxDelay = max
	}
}

func WithAutoReconnect(enabled bool) Opt {
	return func(o *Opts) {
		o.AutoReconnect = enabled
	}
}

type statusEvent struct {
	status  visca.Status
	message string
}

// Port owns one VISCA connection at a time.
type Port struct {
	config Opts
	log    *slog.Logger

	mx      sync.Mutex
	state   state
	conn    io.ReadWriteCloser
	dialer  visca.Dialer
	gen     uint64
	trace   bool
	stopped bool
	cancel  context.CancelFunc
	buf     []byte
	out     *outbox
	// queued status transitions, delivered after mx is released
	events []statusEvent

	waitingForInitialResponse []*pending
	waitingForCompletion      map[byte][]*pending
}

func New(opts ...Opt) *Port {
	config := Opts{
		Logger:            slog.Default(),
		ReconnectDelay:    time.Second,
		ReconnectMaxDelay: 10 * time.Second,
		AutoReconnect:     true,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.ReconnectMaxDelay < config.ReconnectDelay {
		config.ReconnectMaxDelay = config.ReconnectDelay
	}
	return &Port{
		config:               config,
		log:                  config.Logger,
		waitingForCompletion: make(map[byte][]*pending),
	}
}

// Open connects to a camera listening for VISCA over TCP.
func (p *Port) Open(ctx context.Context, host string, port int) error {
	return p.OpenWith(ctx, transport.TCP{Host: host, Port: port})
}

// OpenWith connects through d, destroying any previous connection first.
// Requests outstanding on the previous connection fail. When ctx is marked
// verbose every byte sent and received is logged at debug level.
func (p *Port) OpenWith(ctx context.Context, d visca.Dialer) error {
	p.mx.Lock()
	p.stopReconnectLocked()
	if p.state != stateClosed {
		p.teardownLocked(&FatalError{Err: errReplaced})
	}
	p.gen++
	gen := p.gen
	p.dialer = d
	p.stopped = false
	p.trace = vctx.IsVerbose(ctx)
	p.state = stateConnecting
	p.queueStatus(visca.StatusConnecting, "")
	p.unlock()

	conn, err := d.Dial(ctx)
	if err != nil {
		p.mx.Lock()
		if p.gen == gen {
			p.state = stateClosed
			p.queueStatus(visca.StatusConnectionFailure, err.Error())
		}
		p.unlock()
		p.config.Logger.Error("could not connect to camera", "endpoint", d, "error", err)
		return fmt.Errorf("could not connect to %v: %w", d, err)
	}
	return p.attach(gen, d, conn)
}

// attach makes conn the live connection unless the port moved on while the
// connection was being established.
func (p *Port) attach(gen uint64, d visca.Dialer, conn io.ReadWriteCloser) error {
	p.mx.Lock()
	if p.gen != gen || p.stopped {
		p.unlock()
		_ = conn.Close()
		return ErrClosed
	}
	p.conn = conn
	p.out = newOutbox()
	p.state = stateOpen
	p.buf = p.buf[:0]
	p.log = p.config.Logger.With("session", uuid.NewString(), "endpoint", fmt.Sprint(d))
	p.queueStatus(visca.StatusOk, "")
	log := p.log
	out := p.out
	p.unlock()

	log.Info("connected to camera")
	go p.readLoop(gen, conn)
	go p.writeLoop(gen, conn, out)
	return nil
}

// Close tears the connection down and fails every outstanding request with
// reason, ErrClosed when nil. No reconnection is attempted afterwards.
// Calling Close again has no effect.
func (p *Port) Close(reason error) {
	if reason == nil {
		reason = ErrClosed
	}
	p.mx.Lock()
	defer p.unlock()
	wasReconnecting := p.cancel != nil
	p.stopReconnectLocked()
	p.stopped = true
	if p.state == stateClosed && !wasReconnecting {
		return
	}
	p.log.Info("closing connection", "reason", reason)
	p.teardownLocked(&FatalError{Err: reason})
	p.queueStatus(visca.StatusDisconnected, reason.Error())
}

// Closed reports whether the port currently has no live connection.
func (p *Port) Closed() bool {
	p.mx.Lock()
	defer p.mx.Unlock()
	return p.state != stateOpen
}

// Outstanding returns the number of requests waiting for a first reply and
// the number of acknowledged commands waiting for completion.
func (p *Port) Outstanding() (initial int, completion int) {
	p.mx.Lock()
	defer p.mx.Unlock()
	for _, q := range p.waitingForCompletion {
		completion += len(q)
	}
	return len(p.waitingForInitialResponse), completion
}

// teardownLocked closes the live connection and fails every outstanding
// request with fe.
func (p *Port) teardownLocked(fe *FatalError) {
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	if p.out != nil {
		close(p.out.done)
		p.out = nil
	}
	p.state = stateClosed
	p.buf = p.buf[:0]
	p.gen++
	for _, pd := range p.waitingForInitialResponse {
		pd.fail(fe)
	}
	p.waitingForInitialResponse = nil
	for socket, q := range p.waitingForCompletion {
		for _, pd := range q {
			pd.fail(fe)
		}
		delete(p.waitingForCompletion, socket)
	}
}

// failLocked handles a fatal condition on the live connection.
func (p *Port) failLocked(err error) {
	p.log.Error("fatal error, resetting connection", "error", err, "hint", p.blameLocked())
	p.teardownLocked(&FatalError{Err: err})
	p.queueStatus(visca.StatusConnectionFailure, err.Error())
	p.scheduleReconnectLocked()
}

// blameLocked explains a fatal error from the perspective of what was in
// flight: user typed messages are the usual suspects.
func (p *Port) blameLocked() string {
	for _, pd := range p.waitingForInitialResponse {
		if pd.message().UserDefined() {
			return "custom messages are outstanding, check their syntax and expected replies"
		}
	}
	for _, q := range p.waitingForCompletion {
		for _, pd := range q {
			if pd.message().UserDefined() {
				return "custom messages are outstanding, check their syntax and expected replies"
			}
		}
	}
	return "only built-in messages were outstanding, this is likely a bug in the module"
}

func (p *Port) scheduleReconnectLocked() {
	if !p.config.AutoReconnect || p.stopped || p.dialer == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.reconnect(ctx, p.gen, p.dialer)
}

func (p *Port) stopReconnectLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Port) reconnect(ctx context.Context, gen uint64, d visca.Dialer) {
	delay := p.config.ReconnectDelay
	for {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}

		p.mx.Lock()
		if p.gen != gen || p.stopped {
			p.unlock()
			return
		}
		p.state = stateConnecting
		p.queueStatus(visca.StatusConnecting, "")
		p.unlock()

		conn, err := d.Dial(ctx)
		if err == nil {
			p.mx.Lock()
			if p.gen == gen && p.cancel != nil {
				p.cancel()
				p.cancel = nil
			}
			p.mx.Unlock()
			if err := p.attach(gen, d, conn); err != nil {
				p.config.Logger.Debug("reconnected connection discarded", "error", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		p.mx.Lock()
		if p.gen == gen {
			p.state = stateClosed
			p.queueStatus(visca.StatusConnectionFailure, err.Error())
		}
		p.unlock()
		p.config.Logger.Warn("reconnection attempt failed", "error", err, "retry", delay)
		delay *= 2
		if delay > p.config.ReconnectMaxDelay {
			delay = p.config.ReconnectMaxDelay
		}
	}
}

func (p *Port) queueStatus(s visca.Status, msg string) {
	p.events = append(p.events, statusEvent{status: s, message: msg})
}

// unlock releases mx and then delivers queued status transitions.
func (p *Port) unlock() {
	events := p.events
	p.events = nil
	p.mx.Unlock()
	if p.config.StatusHandler == nil {
		return
	}
	for _, e := range events {
		p.config.StatusHandler(e.status, e.message)
	}
}

// SendCommand writes cmd encoded with values and returns its eventual
// outcome. It never waits for replies to earlier requests.
func (p *Port) SendCommand(cmd *message.Command, values message.Values) *Result {
	b, err := cmd.Bytes(values)
	if err != nil {
		p.logMisuse(cmd, err)
		return settled(nil, err)
	}
	return p.send(newCommandPending(cmd, b))
}

// SendInquiry writes inq and returns its eventual decoded answer.
func (p *Port) SendInquiry(inq *message.Inquiry) *Result {
	return p.send(newInquiryPending(inq, inq.Bytes()))
}

// Command sends cmd and waits for its completion.
func (p *Port) Command(ctx context.Context, cmd *message.Command, values message.Values) (message.Values, error) {
	return p.SendCommand(cmd, values).Wait(ctx)
}

// Inquire sends inq and waits for the decoded answer.
func (p *Port) Inquire(ctx context.Context, inq *message.Inquiry) (message.Values, error) {
	return p.SendInquiry(inq).Wait(ctx)
}

func (p *Port) send(pd *pending) *Result {
	if err := nibble.Validate(pd.sent, nibble.MessageLead); err != nil {
		p.logMisuse(pd.message(), err)
		return settled(nil, err)
	}
	p.mx.Lock()
	defer p.unlock()
	if p.state != stateOpen {
		pd.fail(&FatalError{Err: ErrNotConnected})
		return pd.result
	}
	p.waitingForInitialResponse = append(p.waitingForInitialResponse, pd)
	if p.trace {
		p.log.Debug("sending", "message", pd.message().Name(), "bytes", nibble.Format(pd.sent))
	}
	p.out.push(pd.sent)
	return pd.result
}

func (p *Port) logMisuse(m message.Message, err error) {
	if m.UserDefined() {
		p.config.Logger.Warn("could not encode custom message, check its syntax", "message", m.Name(), "error", err)
		return
	}
	p.config.Logger.Error("could not encode built-in message, this is a bug", "message", m.Name(), "error", err)
}
