package port

import (
	"context"
	"sync"

	"github.com/mklimuk/visca/message"
)

// Result is the eventual outcome of a request. It settles exactly once with
// either decoded values (possibly none), a *NonfatalError or a *FatalError.
type Result struct {
	once   sync.Once
	done   chan struct{}
	values message.Values
	err    error
}

func newResult() *Result {
	return &Result{done: make(chan struct{})}
}

func settled(values message.Values, err error) *Result {
	r := newResult()
	r.settle(values, err)
	return r
}

func (r *Result) settle(values message.Values, err error) bool {
	fired := false
	r.once.Do(func() {
		r.values = values
		r.err = err
		close(r.done)
		fired = true
	})
	return fired
}

// Done is closed once the result settles.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the result settles or ctx is done. Abandoning a wait
// leaves the request outstanding on the port.
func (r *Result) Wait(ctx context.Context) (message.Values, error) {
	select {
	case <-r.done:
		return r.values, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Err returns the settled error, nil while unsettled.
func (r *Result) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// pending tracks a request from the moment its bytes hit the wire until its
// reply is processed or the connection dies. Exactly one of command and
// inquiry is set, matching kind.
type pending struct {
	kind    message.Kind
	command *message.Command
	inquiry *message.Inquiry
	sent    []byte
	resent  bool
	result  *Result
}

func newCommandPending(cmd *message.Command, sent []byte) *pending {
	return &pending{kind: message.KindCommand, command: cmd, sent: sent, result: newResult()}
}

func newInquiryPending(inq *message.Inquiry, sent []byte) *pending {
	return &pending{kind: message.KindInquiry, inquiry: inq, sent: sent, result: newResult()}
}

func (pd *pending) message() message.Message {
	if pd.kind == message.KindInquiry {
		return pd.inquiry
	}
	return pd.command
}

// expected returns the reply shape the request must be matched against, nil
// for plain commands.
func (pd *pending) expected() *message.Reply {
	if pd.kind == message.KindInquiry {
		return pd.inquiry.Reply()
	}
	return pd.command.Reply()
}

func (pd *pending) succeed(values message.Values) {
	pd.result.settle(values, nil)
}

func (pd *pending) reject(err error) *NonfatalError {
	ne := &NonfatalError{Message: pd.message().Name(), Sent: pd.sent, Err: err}
	pd.result.settle(nil, ne)
	return ne
}

func (pd *pending) fail(fe *FatalError) {
	pd.result.settle(nil, fe)
}
