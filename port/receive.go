package port

import (
	"fmt"
	"io"
	"slices"

	"github.com/mklimuk/visca"
	"github.com/mklimuk/visca/message"
	"github.com/mklimuk/visca/nibble"
)

// Longest reply a camera sends is 16 bytes; anything longer without a
// terminator means the stream lost its framing.
const maxReplyLen = 16

const (
	replyAck        byte = 0x40
	replyCompletion byte = 0x50
	replyError      byte = 0x60

	errSyntax        byte = 0x02
	errBufferFull    byte = 0x03
	errNotExecutable byte = 0x41

	networkChange byte = 0x38
)

func (p *Port) readLoop(gen uint64, conn io.ReadWriteCloser) {
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			p.receive(gen, buf[:n])
		}
		if err != nil {
			p.connectionLost(gen, err)
			return
		}
	}
}

func (p *Port) connectionLost(gen uint64, err error) {
	p.mx.Lock()
	defer p.unlock()
	if p.gen != gen {
		// connection was torn down on purpose
		return
	}
	p.log.Warn("connection lost", "error", err)
	p.teardownLocked(&FatalError{Err: fmt.Errorf("connection lost: %w", err)})
	p.queueStatus(visca.StatusDisconnected, err.Error())
	p.scheduleReconnectLocked()
}

// receive appends data to the reply buffer and dispatches every complete
// reply in it.
func (p *Port) receive(gen uint64, data []byte) {
	p.mx.Lock()
	defer p.unlock()
	if p.gen != gen {
		return
	}
	if p.trace {
		p.log.Debug("received", "bytes", nibble.Format(data))
	}
	p.buf = append(p.buf, data...)
	for len(p.buf) > 0 {
		if p.buf[0] != nibble.ReplyLead {
			if len(p.buf) < 3 && maybeNetworkChange(p.buf) {
				return
			}
			if isNetworkChange(p.buf) {
				p.log.Debug("ignoring network change notice", "bytes", nibble.Format(p.buf[:3]))
				p.buf = p.buf[3:]
				continue
			}
			p.failLocked(protocolErr("reply does not start with %#02x: %s", nibble.ReplyLead, nibble.Format(p.buf)))
			return
		}
		end := nibble.IndexTerminator(p.buf)
		if end < 0 {
			if len(p.buf) > maxReplyLen {
				p.failLocked(protocolErr("reply without terminator: %s", nibble.Format(p.buf)))
			}
			return
		}
		reply := slices.Clone(p.buf[:end+1])
		p.buf = p.buf[end+1:]
		if isNetworkChange(reply) {
			p.log.Debug("ignoring network change notice", "bytes", nibble.Format(reply))
			continue
		}
		if err := p.dispatchLocked(reply); err != nil {
			p.failLocked(err)
			return
		}
	}
	p.buf = p.buf[:0]
}

// isNetworkChange recognizes the y0 38 FF notice some firmware emits on its
// own when network settings change.
func isNetworkChange(b []byte) bool {
	return len(b) >= 3 && b[0]&0x0F == 0 && b[1] == networkChange && b[2] == nibble.Terminator
}

func maybeNetworkChange(b []byte) bool {
	if b[0]&0x0F != 0 {
		return false
	}
	return len(b) == 1 || b[1] == networkChange
}

// dispatchLocked matches a single reply to the request it answers. A non nil
// error is fatal for the connection.
func (p *Port) dispatchLocked(reply []byte) error {
	if len(reply) < 3 {
		return protocolErr("reply too short: %s", nibble.Format(reply))
	}
	socket := reply[1] & 0x0F
	switch reply[1] & 0xF0 {
	case replyAck:
		return p.ackLocked(reply, socket)
	case replyCompletion:
		if len(reply) == 3 {
			return p.completionLocked(reply, socket)
		}
		if socket == 0 {
			return p.answerLocked(reply)
		}
		return p.completionLocked(reply, socket)
	case replyError:
		return p.errorLocked(reply)
	}
	return protocolErr("unknown reply class: %s", nibble.Format(reply))
}

func (p *Port) ackLocked(reply []byte, socket byte) error {
	if len(reply) != 3 {
		return protocolErr("malformed ACK: %s", nibble.Format(reply))
	}
	pd := p.popInitialLocked(message.KindCommand)
	if pd == nil {
		return protocolErr("ACK %s without a pending command", nibble.Format(reply))
	}
	p.waitingForCompletion[socket] = append(p.waitingForCompletion[socket], pd)
	return nil
}

func (p *Port) completionLocked(reply []byte, socket byte) error {
	q := p.waitingForCompletion[socket]
	if len(q) == 0 {
		return protocolErr("completion %s for socket %d with no command in it", nibble.Format(reply), socket)
	}
	pd := q[0]
	expected := pd.expected()
	if expected == nil && len(reply) != 3 {
		return protocolErr("completion %s carries data %s does not expect", nibble.Format(reply), pd.command.Name())
	}
	if len(q) == 1 {
		delete(p.waitingForCompletion, socket)
	} else {
		p.waitingForCompletion[socket] = q[1:]
	}
	if expected == nil {
		pd.succeed(nil)
		return nil
	}
	p.matchLocked(pd, expected, reply)
	return nil
}

func (p *Port) answerLocked(reply []byte) error {
	pd := p.popInitialLocked(message.KindInquiry)
	if pd == nil {
		return protocolErr("inquiry answer %s without a pending inquiry", nibble.Format(reply))
	}
	p.matchLocked(pd, pd.expected(), reply)
	return nil
}

// matchLocked settles pd with values decoded from reply, or nonfatally when
// the reply has an unexpected shape. A mismatch does not disturb socket
// bookkeeping so the connection survives it.
func (p *Port) matchLocked(pd *pending, expected *message.Reply, reply []byte) {
	if !expected.Match(reply) {
		p.rejectLocked(pd, fmt.Errorf("%w: got %s, expected %s", ErrReplyMismatch, nibble.Format(reply), expected))
		return
	}
	values, err := expected.Decode(reply)
	if err != nil {
		p.rejectLocked(pd, err)
		return
	}
	pd.succeed(values)
}

func (p *Port) errorLocked(reply []byte) error {
	if len(reply) != 4 {
		return protocolErr("malformed error reply: %s", nibble.Format(reply))
	}
	switch {
	case reply[2] == errNotExecutable:
		// The socket nibble of this reply does not reliably identify the
		// command on observed firmware; blame the oldest unacknowledged one.
		pd := p.popInitialLocked(message.KindCommand)
		if pd == nil {
			return protocolErr("command not executable %s without a pending command", nibble.Format(reply))
		}
		p.log.Debug("command not executable", "socket", reply[1]&0x0F, "message", pd.command.Name())
		p.rejectLocked(pd, ErrNotExecutable)
		return nil
	case reply[1] == replyError && reply[2] == errBufferFull:
		return p.bufferFullLocked(reply)
	case reply[1] == replyError && reply[2] == errSyntax:
		pd := p.popInitialLocked(-1)
		if pd == nil {
			return protocolErr("syntax error %s without a pending message", nibble.Format(reply))
		}
		p.rejectLocked(pd, ErrSyntax)
		return nil
	}
	return protocolErr("unexpected error reply: %s", nibble.Format(reply))
}

func (p *Port) bufferFullLocked(reply []byte) error {
	switch len(p.waitingForInitialResponse) {
	case 0:
		return protocolErr("command buffer full %s without a pending message", nibble.Format(reply))
	case 1:
		pd := p.waitingForInitialResponse[0]
		if !pd.resent {
			pd.resent = true
			p.log.Debug("camera buffer full, resending", "message", pd.message().Name())
			p.out.push(pd.sent)
			return nil
		}
		p.waitingForInitialResponse = nil
		p.rejectLocked(pd, fmt.Errorf("%w: still full after resending", ErrBufferFull))
		return nil
	}
	// Resending one of several outstanding messages could reorder them
	// relative to the rest, which breaks oldest-first matching.
	outstanding := len(p.waitingForInitialResponse)
	pd := p.popInitialLocked(-1)
	p.rejectLocked(pd, fmt.Errorf("%w: %d messages outstanding, dropped the oldest", ErrBufferFull, outstanding))
	return nil
}

func (p *Port) rejectLocked(pd *pending, err error) {
	ne := pd.reject(err)
	if pd.message().UserDefined() {
		p.log.Warn("camera rejected custom message, check its syntax", "error", ne)
		return
	}
	p.log.Warn("camera rejected message", "error", ne)
}

// popInitialLocked removes the oldest request of the given kind waiting for
// a first reply, skipping requests of the other kind. A negative kind matches
// any request.
func (p *Port) popInitialLocked(kind message.Kind) *pending {
	for i, pd := range p.waitingForInitialResponse {
		if kind >= 0 && pd.kind != kind {
			continue
		}
		p.waitingForInitialResponse = slices.Delete(p.waitingForInitialResponse, i, i+1)
		return pd
	}
	return nil
}
