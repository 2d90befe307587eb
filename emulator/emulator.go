// Package emulator implements a fake VISCA camera listening on TCP.
//
// It acknowledges commands on a limited number of sockets, completes them
// after a configurable delay, answers known inquiries and reports syntax
// errors for anything else, which is enough to exercise a client end to end
// without hardware.
package emulator

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/mklimuk/visca/message"
	"github.com/mklimuk/visca/nibble"
)

const (
	typeCommand byte = 0x01
	typeInquiry byte = 0x09
)

var (
	replySyntaxError    = []byte{0x90, 0x60, 0x02, 0xFF}
	replyBufferFull     = []byte{0x90, 0x60, 0x03, 0xFF}
	noticeNetworkChange = []byte{0x90, 0x38, 0xFF}
)

type Opts struct {
	Sockets         int
	CompletionDelay time.Duration
	Answers         map[string][]byte
	NetworkNotice   bool
	Logger          *slog.Logger
}

type Opt func(*Opts)

// WithSockets sets how many commands may execute at once. Further commands
// are refused with a buffer full error.
func WithSockets(n int) Opt {
	return func(o *Opts) {
		o.Sockets = n
	}
}

func WithCompletionDelay(d time.Duration) Opt {
	return func(o *Opts) {
		o.CompletionDelay = d
	}
}

// WithAnswer makes the camera reply answer to inquiry.
func WithAnswer(inquiry, answer []byte) Opt {
	return func(o *Opts) {
		o.Answers[nibble.Format(inquiry)] = slices.Clone(answer)
	}
}

// WithNetworkNotice makes the camera greet every connection with the
// unsolicited network change notice some firmware sends.
func WithNetworkNotice() Opt {
	return func(o *Opts) {
		o.NetworkNotice = true
	}
}

func WithLogger(l *slog.Logger) Opt {
	return func(o *Opts) {
		o.Logger = l
	}
}

type Camera struct {
	config Opts

	mx       sync.Mutex
	ln       net.Listener
	closed   bool
	conns    map[net.Conn]struct{}
	received [][]byte
	wg       sync.WaitGroup
}

func New(opts ...Opt) *Camera {
	config := Opts{
		Sockets:         2,
		CompletionDelay: 10 * time.Millisecond,
		Answers: map[string][]byte{
			nibble.Format(message.PowerInquiry.Bytes()):           {0x90, 0x50, 0x02, 0xFF},
			nibble.Format(message.ZoomPositionInquiry.Bytes()):    {0x90, 0x50, 0x00, 0x00, 0x00, 0x00, 0xFF},
			nibble.Format(message.PanTiltPositionInquiry.Bytes()): {0x90, 0x50, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF},
		},
		Logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Camera{
		config: config,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Listen opens a TCP listener on addr and serves it in the background.
func (c *Camera) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", addr, err)
	}
	c.mx.Lock()
	c.ln = ln
	c.mx.Unlock()
	go func() {
		_ = c.Serve(ln)
	}()
	return nil
}

// Serve accepts connections on ln until Close is called.
func (c *Camera) Serve(ln net.Listener) error {
	c.mx.Lock()
	if c.closed {
		c.mx.Unlock()
		return ln.Close()
	}
	c.ln = ln
	c.mx.Unlock()
	c.config.Logger.Info("camera emulator listening", "addr", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		c.mx.Lock()
		if c.closed {
			c.mx.Unlock()
			_ = conn.Close()
			return nil
		}
		c.conns[conn] = struct{}{}
		c.wg.Add(1)
		c.mx.Unlock()
		go c.handle(conn)
	}
}

// Addr returns the listening address, nil before Serve.
func (c *Camera) Addr() net.Addr {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.ln == nil {
		return nil
	}
	return c.ln.Addr()
}

// Received returns every message the camera read so far, in order.
func (c *Camera) Received() [][]byte {
	c.mx.Lock()
	defer c.mx.Unlock()
	out := make([][]byte, len(c.received))
	for i, b := range c.received {
		out[i] = slices.Clone(b)
	}
	return out
}

// Close stops listening and drops every client.
func (c *Camera) Close() error {
	c.mx.Lock()
	c.closed = true
	var err error
	if c.ln != nil {
		err = c.ln.Close()
	}
	for conn := range c.conns {
		_ = conn.Close()
	}
	c.mx.Unlock()
	c.wg.Wait()
	return err
}

// session is the per connection state: which sockets are executing.
type session struct {
	conn    net.Conn
	writeMx sync.Mutex
	mx      sync.Mutex
	busy    []bool
	log     *slog.Logger
}

func (s *session) write(b []byte) {
	s.writeMx.Lock()
	defer s.writeMx.Unlock()
	if _, err := s.conn.Write(b); err != nil {
		s.log.Debug("could not write reply", "bytes", nibble.Format(b), "error", err)
	}
}

func (s *session) acquire() (byte, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	for i, busy := range s.busy {
		if !busy {
			s.busy[i] = true
			return byte(i + 1), true
		}
	}
	return 0, false
}

func (s *session) release(socket byte) {
	s.mx.Lock()
	s.busy[socket-1] = false
	s.mx.Unlock()
}

func (c *Camera) handle(conn net.Conn) {
	defer c.wg.Done()
	defer func() {
		c.mx.Lock()
		delete(c.conns, conn)
		c.mx.Unlock()
		_ = conn.Close()
	}()
	s := &session{
		conn: conn,
		busy: make([]bool, c.config.Sockets),
		log:  c.config.Logger.With("remote", conn.RemoteAddr()),
	}
	s.log.Info("client connected")
	if c.config.NetworkNotice {
		s.write(noticeNetworkChange)
	}
	reader := bufio.NewReader(conn)
	for {
		frame, err := reader.ReadBytes(nibble.Terminator)
		if err != nil {
			s.log.Info("client disconnected", "error", err)
			return
		}
		c.mx.Lock()
		c.received = append(c.received, slices.Clone(frame))
		c.mx.Unlock()
		c.process(s, frame)
	}
}

func (c *Camera) process(s *session, frame []byte) {
	if nibble.Validate(frame, nibble.MessageLead) != nil || len(frame) < 4 {
		s.write(replySyntaxError)
		return
	}
	switch frame[1] {
	case typeCommand:
		socket, ok := s.acquire()
		if !ok {
			s.write(replyBufferFull)
			return
		}
		s.write([]byte{0x90, 0x40 | socket, 0xFF})
		time.AfterFunc(c.config.CompletionDelay, func() {
			s.release(socket)
			s.write([]byte{0x90, 0x50 | socket, 0xFF})
		})
	case typeInquiry:
		answer, ok := c.config.Answers[nibble.Format(frame)]
		if !ok {
			s.write(replySyntaxError)
			return
		}
		s.write(answer)
	default:
		s.write(replySyntaxError)
	}
}
