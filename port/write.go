package port

import (
	"fmt"
	"io"

	"github.com/mklimuk/visca/nibble"
)

// outbox holds the bytes waiting to be written on one connection. Messages
// are pushed under the port lock in the order their pendings were recorded,
// and a single writer drains them, so wire order equals pending order while
// a blocked write never holds the port lock.
type outbox struct {
	queue [][]byte // guarded by Port.mx
	wake  chan struct{}
	done  chan struct{}
}

func newOutbox() *outbox {
	return &outbox{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// push must be called with Port.mx held.
func (o *outbox) push(b []byte) {
	o.queue = append(o.queue, b)
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (p *Port) writeLoop(gen uint64, conn io.ReadWriteCloser, out *outbox) {
	for {
		select {
		case <-out.wake:
		case <-out.done:
			return
		}
		p.mx.Lock()
		batch := out.queue
		out.queue = nil
		p.mx.Unlock()
		for _, b := range batch {
			if _, err := conn.Write(b); err != nil {
				p.writeFailed(gen, b, err)
				return
			}
		}
	}
}

func (p *Port) writeFailed(gen uint64, b []byte, err error) {
	p.mx.Lock()
	defer p.unlock()
	if p.gen != gen {
		// connection was torn down while the write was in flight
		return
	}
	p.failLocked(fmt.Errorf("could not write %s: %w", nibble.Format(b), err))
}
