package twoparty

import (
	"io"
	"sync"

	"github.com/capnproto-go/rpc-core/internal/rpcerr"
)

// writeRequest is one pending outbound message plus the channel its
// completion is delivered on (spec §4.5 "send() ... returns
// completion_future").
type writeRequest struct {
	body any
	done chan error
}

// sendQueue serializes outbound messages FIFO onto a single writer
// (spec §2 "Write-queue / Send channel", §5 "Writes through a single
// Connection's send channel are serialized FIFO"). Its producer side
// (send) is safe to call concurrently from any number of callers;
// exactly one goroutine (run) drains it.
type sendQueue struct {
	ch chan writeRequest

	mu             sync.Mutex
	closed         bool
	shutdownResult error
}

func newSendQueue(bufSize int) *sendQueue {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &sendQueue{ch: make(chan writeRequest, bufSize)}
}

// send enqueues body for writing and returns a channel that receives
// the write's outcome. If the queue has already been shut down, the
// returned channel is pre-filled with a Disconnected error.
//
// The enqueue itself happens with q.mu held, across the channel send,
// so that a concurrent shutdown can't close q.ch in the window between
// this checking q.closed and actually sending on it — closing a
// channel a pending send is about to use would panic, which spec §7
// forbids ("further sends fail", not crash).
func (q *sendQueue) send(body any) <-chan error {
	done := make(chan error, 1)

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		done <- rpcerr.Disconnectedf("send on shut-down connection")
		close(done)
		return done
	}

	q.ch <- writeRequest{body: body, done: done}
	return done
}

// shutdown stops accepting new sends (later sends fail immediately)
// and records result as the value run should return once whatever was
// already queued has drained (spec §4.6 "shutdown(result) ...
// surfacing result through the writer"). Idempotent.
func (q *sendQueue) shutdown(result error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.shutdownResult = result
	close(q.ch)
	q.mu.Unlock()
}

// run drains the queue, writing each message via codec to w, until the
// queue is shut down or a write fails. Returns the first write error
// encountered, or the result passed to shutdown if the queue drained
// cleanly.
func (q *sendQueue) run(w io.Writer, codec Codec) error {
	for req := range q.ch {
		err := codec.WriteMessage(w, req.body)
		req.done <- err
		close(req.done)
		if err != nil {
			return err
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shutdownResult
}
