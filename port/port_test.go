package port

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"github.com/mklimuk/visca"
	"github.com/mklimuk/visca/emulator"
	"github.com/mklimuk/visca/message"
	"github.com/mklimuk/visca/nibble"
)

const waitTimeout = 2 * time.Second

// fakeCamera is a scripted camera: tests read what the port sent and write
// replies by hand.
type fakeCamera struct {
	ln    net.Listener
	conns chan net.Conn
}

func newFakeCamera(t *testing.T) *fakeCamera {
	t.Helper()
	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	cam := &fakeCamera{ln: ln, conns: make(chan net.Conn, 4)}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			cam.conns <- c
		}
	}()
	t.Cleanup(func() { _ = ln.Close() })
	return cam
}

func (c *fakeCamera) hostPort(t *testing.T) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(c.ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func (c *fakeCamera) accept(t *testing.T) net.Conn {
	t.Helper()
	select {
	case conn := <-c.conns:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(waitTimeout):
		t.Fatal("port did not connect")
		return nil
	}
}

func expectSent(t *testing.T, conn net.Conn, hexBytes string) {
	t.Helper()
	want, err := nibble.Parse(hexBytes)
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitTimeout)))
	got := make([]byte, len(want))
	_, err = io.ReadFull(conn, got)
	require.NoError(t, err)
	assert.Equal(t, nibble.Format(want), nibble.Format(got))
}

func reply(t *testing.T, conn net.Conn, hexBytes string) {
	t.Helper()
	b, err := nibble.Parse(hexBytes)
	require.NoError(t, err)
	_, err = conn.Write(b)
	require.NoError(t, err)
}

func wait(t *testing.T, r *Result) (message.Values, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	values, err := r.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "result did not settle")
	return values, err
}

func assertUnsettled(t *testing.T, r *Result) {
	t.Helper()
	select {
	case <-r.Done():
		t.Fatalf("result settled unexpectedly: %v", r.Err())
	case <-time.After(50 * time.Millisecond):
	}
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []visca.Status
}

func (r *statusRecorder) handle(s visca.Status, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *statusRecorder) seen(s visca.Status) func() bool {
	return func() bool {
		for _, got := range r.snapshot() {
			if got == s {
				return true
			}
		}
		return false
	}
}

func (r *statusRecorder) snapshot() []visca.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]visca.Status(nil), r.statuses...)
}

func openPort(t *testing.T, cam *fakeCamera, opts ...Opt) (*Port, net.Conn, *statusRecorder) {
	t.Helper()
	rec := &statusRecorder{}
	opts = append([]Opt{WithStatusHandler(rec.handle), WithReconnectDelay(time.Hour, time.Hour)}, opts...)
	p := New(opts...)
	host, port := cam.hostPort(t)
	require.NoError(t, p.Open(context.Background(), host, port))
	t.Cleanup(func() { p.Close(nil) })
	return p, cam.accept(t), rec
}

var testInquiry = message.MustInquiry("test", []byte{0x81, 0x09, 0x04, 0x00, 0xFF},
	message.WithReply(message.MustReply(
		[]byte{0x90, 0x50, 0x00, 0xFF},
		[]byte{0xFF, 0xFF, 0xF0, 0xFF},
		map[string]message.ReplyParam{
			"value": {Nibbles: []int{5}, Decode: func(v int) any { return v == 0x2 }},
		},
	)),
)

func TestPort_Home(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, rec := openPort(t, cam)

	assert.False(t, p.Closed())
	r := p.SendCommand(message.Home, nil)
	expectSent(t, conn, "81 01 06 04 FF")
	reply(t, conn, "90 41 FF")
	assertUnsettled(t, r)
	reply(t, conn, "90 51 FF")

	values, err := wait(t, r)
	require.NoError(t, err)
	assert.Nil(t, values)
	assert.Equal(t, []visca.Status{visca.StatusConnecting, visca.StatusOk}, rec.snapshot())
}

func TestPort_InquiryDecodesNibble(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, _ := openPort(t, cam)

	r := p.SendInquiry(testInquiry)
	expectSent(t, conn, "81 09 04 00 FF")
	reply(t, conn, "90 50 02 FF")

	values, err := wait(t, r)
	require.NoError(t, err)
	assert.Equal(t, message.Values{"value": true}, values)
}

func TestPort_CompletionsInAnyOrder(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, _ := openPort(t, cam)

	results := make([]*Result, 3)
	for i := range results {
		results[i] = p.SendCommand(message.PresetRecall, message.Values{"preset": i + 1})
	}
	expectSent(t, conn, "81 01 04 3F 02 01 FF 81 01 04 3F 02 02 FF 81 01 04 3F 02 03 FF")

	// ACKs arrive in send order, each on its own socket
	reply(t, conn, "90 41 FF 90 42 FF 90 43 FF")
	require.Eventually(t, func() bool {
		initial, completion := p.Outstanding()
		return initial == 0 && completion == 3
	}, waitTimeout, 5*time.Millisecond)

	reply(t, conn, "90 53 FF")
	_, err := wait(t, results[2])
	require.NoError(t, err)
	assertUnsettled(t, results[0])
	assertUnsettled(t, results[1])

	reply(t, conn, "90 51 FF")
	_, err = wait(t, results[0])
	require.NoError(t, err)
	assertUnsettled(t, results[1])

	reply(t, conn, "90 52 FF")
	_, err = wait(t, results[1])
	require.NoError(t, err)
}

func TestPort_SocketReusedBeforeCompletion(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, _ := openPort(t, cam)

	first := p.SendCommand(message.PresetRecall, message.Values{"preset": 1})
	second := p.SendCommand(message.PresetRecall, message.Values{"preset": 2})
	expectSent(t, conn, "81 01 04 3F 02 01 FF 81 01 04 3F 02 02 FF")

	reply(t, conn, "90 41 FF 90 41 FF 90 51 FF")
	_, err := wait(t, first)
	require.NoError(t, err)
	assertUnsettled(t, second)

	reply(t, conn, "90 51 FF")
	_, err = wait(t, second)
	require.NoError(t, err)
}

func TestPort_InterleavedKinds(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, _ := openPort(t, cam)

	inq := p.SendInquiry(testInquiry)
	cmd := p.SendCommand(message.Home, nil)
	expectSent(t, conn, "81 09 04 00 FF 81 01 06 04 FF")

	// the ACK skips the inquiry sent before the command
	reply(t, conn, "90 41 FF")
	assertUnsettled(t, inq)
	reply(t, conn, "90 50 03 FF 90 51 FF")

	values, err := wait(t, inq)
	require.NoError(t, err)
	assert.Equal(t, false, values["value"])
	_, err = wait(t, cmd)
	require.NoError(t, err)
}

func TestPort_AckWithoutCommandIsFatal(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, rec := openPort(t, cam)

	inq := p.SendInquiry(testInquiry)
	expectSent(t, conn, "81 09 04 00 FF")
	reply(t, conn, "90 41 FF")

	_, err := wait(t, inq)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, ErrProtocol)

	assert.True(t, p.Closed())
	require.Eventually(t, rec.seen(visca.StatusConnectionFailure), waitTimeout, 5*time.Millisecond)

	// nothing goes through until the port reconnects
	_, err = wait(t, p.SendCommand(message.Home, nil))
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestPort_FatalReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"wrong lead byte", "12 34 FF"},
		{"long ACK", "90 41 00 FF"},
		{"completion on empty socket", "90 52 FF"},
		{"unknown reply class", "90 70 FF"},
		{"short error", "90 60 FF"},
		{"unknown error", "90 60 05 FF"},
		{"missing terminator", "90 41 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00"},
		{"reply too short", "90 FF"},
		{"data completion without reply shape", "90 41 FF 90 51 07 FF"},
		{"buffer full with nothing awaiting reply", "90 41 FF 90 60 03 FF"},
		{"syntax error with nothing awaiting reply", "90 41 FF 90 60 02 FF"},
		{"not executable with nothing awaiting reply", "90 41 FF 90 61 41 FF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := newFakeCamera(t)
			p, conn, rec := openPort(t, cam)

			r := p.SendCommand(message.Home, nil)
			expectSent(t, conn, "81 01 06 04 FF")
			reply(t, conn, tt.reply)

			_, err := wait(t, r)
			assert.True(t, IsFatal(err), "expected fatal error, got %v", err)
			require.Eventually(t, rec.seen(visca.StatusConnectionFailure), waitTimeout, 5*time.Millisecond)
			assert.True(t, p.Closed())
		})
	}
}

func TestPort_InquiryAnswerWithoutInquiryIsFatal(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, _ := openPort(t, cam)

	r := p.SendCommand(message.Home, nil)
	expectSent(t, conn, "81 01 06 04 FF")
	reply(t, conn, "90 50 02 FF")

	_, err := wait(t, r)
	assert.True(t, IsFatal(err))
}

func TestPort_InquiryMismatchIsNonfatal(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, rec := openPort(t, cam)

	r := p.SendInquiry(testInquiry)
	expectSent(t, conn, "81 09 04 00 FF")
	reply(t, conn, "90 50 02 00 FF")

	_, err := wait(t, r)
	require.Error(t, err)
	assert.True(t, IsNonfatal(err))
	assert.ErrorIs(t, err, ErrReplyMismatch)

	// connection still works
	home := p.SendCommand(message.Home, nil)
	expectSent(t, conn, "81 01 06 04 FF")
	reply(t, conn, "90 41 FF 90 51 FF")
	_, err = wait(t, home)
	require.NoError(t, err)
	assert.Equal(t, []visca.Status{visca.StatusConnecting, visca.StatusOk}, rec.snapshot())
}

func TestPort_BufferFullSingleResend(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, _ := openPort(t, cam)

	r := p.SendCommand(message.Home, nil)
	expectSent(t, conn, "81 01 06 04 FF")
	reply(t, conn, "90 60 03 FF")
	expectSent(t, conn, "81 01 06 04 FF")
	reply(t, conn, "90 41 FF 90 51 FF")

	_, err := wait(t, r)
	require.NoError(t, err)
}

func TestPort_BufferFullTwiceDrops(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, _ := openPort(t, cam)

	r := p.SendCommand(message.Home, nil)
	expectSent(t, conn, "81 01 06 04 FF")
	reply(t, conn, "90 60 03 FF")
	expectSent(t, conn, "81 01 06 04 FF")
	reply(t, conn, "90 60 03 FF")

	_, err := wait(t, r)
	assert.True(t, IsNonfatal(err))
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.False(t, p.Closed())
}

func TestPort_BufferFullSeveralOutstanding(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, _ := openPort(t, cam)

	first := p.SendCommand(message.PresetRecall, message.Values{"preset": 1})
	second := p.SendCommand(message.PresetRecall, message.Values{"preset": 2})
	expectSent(t, conn, "81 01 04 3F 02 01 FF 81 01 04 3F 02 02 FF")
	reply(t, conn, "90 60 03 FF")

	_, err := wait(t, first)
	assert.True(t, IsNonfatal(err))
	assert.ErrorIs(t, err, ErrBufferFull)
	assertUnsettled(t, second)

	reply(t, conn, "90 42 FF 90 52 FF")
	_, err = wait(t, second)
	require.NoError(t, err)
}

func TestPort_SyntaxError(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, rec := openPort(t, cam)

	cmd := p.SendCommand(message.PowerOn, nil)
	inq := p.SendInquiry(testInquiry)
	expectSent(t, conn, "81 01 04 00 02 FF 81 09 04 00 FF")
	reply(t, conn, "90 60 02 FF")

	_, err := wait(t, cmd)
	assert.True(t, IsNonfatal(err))
	assert.ErrorIs(t, err, ErrSyntax)
	assertUnsettled(t, inq)

	reply(t, conn, "90 60 02 FF")
	_, err = wait(t, inq)
	assert.ErrorIs(t, err, ErrSyntax)
	assert.False(t, p.Closed())
	assert.Equal(t, []visca.Status{visca.StatusConnecting, visca.StatusOk}, rec.snapshot())
}

func TestPort_NotExecutable(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, _ := openPort(t, cam)

	inq := p.SendInquiry(testInquiry)
	cmd := p.SendCommand(message.Home, nil)
	expectSent(t, conn, "81 09 04 00 FF 81 01 06 04 FF")
	// socket nibble is ignored
	reply(t, conn, "90 63 41 FF")

	_, err := wait(t, cmd)
	assert.True(t, IsNonfatal(err))
	assert.ErrorIs(t, err, ErrNotExecutable)
	assertUnsettled(t, inq)

	reply(t, conn, "90 50 02 FF")
	_, err = wait(t, inq)
	require.NoError(t, err)
}

func TestPort_NotExecutableWithoutCommandIsFatal(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, _ := openPort(t, cam)

	inq := p.SendInquiry(testInquiry)
	expectSent(t, conn, "81 09 04 00 FF")
	reply(t, conn, "90 61 41 FF")

	_, err := wait(t, inq)
	assert.True(t, IsFatal(err))
}

func TestPort_NetworkChangeNoticeIgnored(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, _ := openPort(t, cam)

	reply(t, conn, "A0 38 FF")
	r := p.SendCommand(message.Home, nil)
	expectSent(t, conn, "81 01 06 04 FF")
	reply(t, conn, "90 41 FF 90 38 FF E0")
	reply(t, conn, "38 FF 90 51 FF")

	_, err := wait(t, r)
	require.NoError(t, err)
}

func TestPort_RepliesSplitAcrossReads(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, _ := openPort(t, cam)

	r := p.SendInquiry(message.ZoomPositionInquiry)
	expectSent(t, conn, "81 09 04 47 FF")
	for _, b := range []string{"90", "50 01", "02 03", "04", "FF"} {
		reply(t, conn, b)
		time.Sleep(5 * time.Millisecond)
	}
	values, err := wait(t, r)
	require.NoError(t, err)
	assert.Equal(t, 0x1234, values["position"])
}

func TestPort_CommandWithReplyShape(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, _ := openPort(t, cam)

	cmd := message.MustCommand("custom", []byte{0x81, 0x01, 0x7E, 0x01, 0x00, 0xFF},
		message.WithReply(message.MustReply(
			[]byte{0x90, 0x50, 0x00, 0xFF},
			[]byte{0xFF, 0xF0, 0xF0, 0xFF},
			map[string]message.ReplyParam{"code": {Nibbles: []int{5}}},
		)),
		message.UserDefined(),
	)
	r := p.SendCommand(cmd, nil)
	expectSent(t, conn, "81 01 7E 01 00 FF")
	reply(t, conn, "90 42 FF 90 52 07 FF")

	values, err := wait(t, r)
	require.NoError(t, err)
	assert.Equal(t, message.Values{"code": 7}, values)
}

func TestPort_CloseFailsEverything(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, rec := openPort(t, cam)

	results := []*Result{
		p.SendCommand(message.Home, nil),
		p.SendCommand(message.PowerOn, nil),
		p.SendInquiry(testInquiry),
	}
	expectSent(t, conn, "81 01 06 04 FF 81 01 04 00 02 FF 81 09 04 00 FF")
	// first command is acknowledged and waits for completion
	reply(t, conn, "90 41 FF")
	require.Eventually(t, func() bool {
		_, completion := p.Outstanding()
		return completion == 1
	}, waitTimeout, 5*time.Millisecond)

	reason := errors.New("operator shutdown")
	p.Close(reason)
	var shared *FatalError
	for _, r := range results {
		_, err := wait(t, r)
		assert.ErrorIs(t, err, reason)
		var fe *FatalError
		require.ErrorAs(t, err, &fe)
		if shared == nil {
			shared = fe
		}
		assert.Same(t, shared, fe)
	}
	assert.True(t, p.Closed())

	p.Close(nil)
	assert.Equal(t, []visca.Status{visca.StatusConnecting, visca.StatusOk, visca.StatusDisconnected}, rec.snapshot())
}

func TestPort_ReconnectsAfterConnectionLoss(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, rec := openPort(t, cam, WithReconnectDelay(10*time.Millisecond, 20*time.Millisecond))

	r := p.SendCommand(message.Home, nil)
	expectSent(t, conn, "81 01 06 04 FF")
	require.NoError(t, conn.Close())

	_, err := wait(t, r)
	assert.True(t, IsFatal(err))

	second := cam.accept(t)
	require.Eventually(t, func() bool { return !p.Closed() }, waitTimeout, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]visca.Status{
			visca.StatusConnecting, visca.StatusOk,
			visca.StatusDisconnected, visca.StatusConnecting, visca.StatusOk,
		}, rec.snapshot())
	}, waitTimeout, 5*time.Millisecond)

	home := p.SendCommand(message.Home, nil)
	expectSent(t, second, "81 01 06 04 FF")
	reply(t, second, "90 41 FF 90 51 FF")
	_, err = wait(t, home)
	require.NoError(t, err)
}

func TestPort_ReconnectsAfterProtocolError(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, rec := openPort(t, cam, WithReconnectDelay(10*time.Millisecond, 20*time.Millisecond))

	r := p.SendInquiry(testInquiry)
	expectSent(t, conn, "81 09 04 00 FF")
	reply(t, conn, "90 41 FF")
	_, err := wait(t, r)
	assert.ErrorIs(t, err, ErrProtocol)

	second := cam.accept(t)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]visca.Status{
			visca.StatusConnecting, visca.StatusOk,
			visca.StatusConnectionFailure, visca.StatusConnecting, visca.StatusOk,
		}, rec.snapshot())
	}, waitTimeout, 5*time.Millisecond)

	inq := p.SendInquiry(testInquiry)
	expectSent(t, second, "81 09 04 00 FF")
	reply(t, second, "90 50 02 FF")
	_, err = wait(t, inq)
	require.NoError(t, err)
}

// stuckConn accepts no bytes: Write and Read block until Close.
type stuckConn struct {
	once   sync.Once
	closed chan struct{}
}

func newStuckConn() *stuckConn {
	return &stuckConn{closed: make(chan struct{})}
}

func (c *stuckConn) Read([]byte) (int, error) {
	<-c.closed
	return 0, io.EOF
}

func (c *stuckConn) Write([]byte) (int, error) {
	<-c.closed
	return 0, net.ErrClosed
}

func (c *stuckConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func TestPort_CloseWhileWriteBlocked(t *testing.T) {
	d := new(MockDialer)
	d.On("Dial", mock.Anything).Return(newStuckConn(), nil).Once()
	p := New(WithAutoReconnect(false))
	require.NoError(t, p.OpenWith(context.Background(), d))

	first := p.SendCommand(message.Home, nil)
	second := p.SendInquiry(testInquiry)
	assertUnsettled(t, first)

	closed := make(chan struct{})
	go func() {
		p.Close(nil)
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(waitTimeout):
		t.Fatal("close blocked behind a pending write")
	}
	for _, r := range []*Result{first, second} {
		_, err := wait(t, r)
		assert.True(t, IsFatal(err))
		assert.ErrorIs(t, err, ErrClosed)
	}
	d.AssertExpectations(t)
}

func TestPort_EncodingErrorLeavesConnectionAlone(t *testing.T) {
	cam := newFakeCamera(t)
	p, _, rec := openPort(t, cam)

	_, err := wait(t, p.SendCommand(message.PresetRecall, message.Values{"preset": 500}))
	assert.ErrorIs(t, err, message.ErrValueOutOfRange)
	assert.False(t, IsFatal(err))
	assert.False(t, p.Closed())
	initial, completion := p.Outstanding()
	assert.Zero(t, initial+completion)
	assert.Equal(t, []visca.Status{visca.StatusConnecting, visca.StatusOk}, rec.snapshot())
}

func TestPort_SendBeforeOpen(t *testing.T) {
	p := New()
	assert.True(t, p.Closed())
	_, err := wait(t, p.SendInquiry(testInquiry))
	assert.ErrorIs(t, err, ErrNotConnected)
}

type MockDialer struct {
	mock.Mock
}

func (m *MockDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	args := m.Called(ctx)
	conn, _ := args.Get(0).(io.ReadWriteCloser)
	return conn, args.Error(1)
}

func TestPort_DialFailure(t *testing.T) {
	d := new(MockDialer)
	d.On("Dial", mock.Anything).Return(nil, errors.New("connection refused")).Once()
	rec := &statusRecorder{}
	p := New(WithStatusHandler(rec.handle))

	err := p.OpenWith(context.Background(), d)
	assert.ErrorContains(t, err, "connection refused")
	assert.True(t, p.Closed())
	assert.Equal(t, []visca.Status{visca.StatusConnecting, visca.StatusConnectionFailure}, rec.snapshot())
	d.AssertExpectations(t)
}

func TestPort_ReopenReplacesConnection(t *testing.T) {
	cam := newFakeCamera(t)
	p, conn, _ := openPort(t, cam)

	r := p.SendCommand(message.Home, nil)
	expectSent(t, conn, "81 01 06 04 FF")

	host, port := cam.hostPort(t)
	require.NoError(t, p.Open(context.Background(), host, port))
	second := cam.accept(t)

	_, err := wait(t, r)
	assert.True(t, IsFatal(err))

	inq := p.SendInquiry(testInquiry)
	expectSent(t, second, "81 09 04 00 FF")
	reply(t, second, "90 50 02 FF")
	_, err = wait(t, inq)
	require.NoError(t, err)
}

func TestPort_AgainstEmulator(t *testing.T) {
	ln, err := nettest.NewLocalListener("tcp")
	require.NoError(t, err)
	cam := emulator.New(emulator.WithSockets(2), emulator.WithNetworkNotice())
	go func() { _ = cam.Serve(ln) }()
	t.Cleanup(func() { _ = cam.Close() })

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	p := New(WithAutoReconnect(false))
	require.NoError(t, p.Open(context.Background(), host, port))
	defer p.Close(nil)

	results := []*Result{
		p.SendCommand(message.PresetRecall, message.Values{"preset": 3}),
		p.SendInquiry(message.PowerInquiry),
		p.SendCommand(message.Home, nil),
	}
	for _, r := range results {
		_, err := wait(t, r)
		require.NoError(t, err)
	}
	values, err := p.Inquire(context.Background(), message.PowerInquiry)
	require.NoError(t, err)
	assert.Equal(t, "on", values["power"])

	assert.Equal(t, [][]byte{
		{0x81, 0x01, 0x04, 0x3F, 0x02, 0x03, 0xFF},
		{0x81, 0x09, 0x04, 0x00, 0xFF},
		{0x81, 0x01, 0x06, 0x04, 0xFF},
		{0x81, 0x09, 0x04, 0x00, 0xFF},
	}, cam.Received())
}
