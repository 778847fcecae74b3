package twoparty

import (
	"errors"
	"io"
	"sync"

	// The teacher's rpc.go imports context from golang.org/x/net rather
	// than the standard library; kept here at the connection/network
	// layer for the same reason. Modern golang.org/x/net/context is a
	// type alias for context.Context, so this is not a split dependency.
	"golang.org/x/net/context"

	"github.com/capnproto-go/rpc-core/internal/rpcerr"
	"github.com/capnproto-go/rpc-core/rpc"
	"github.com/capnproto-go/rpc-core/rpclog"
)

// Connection is a single bidirectional frame transport to the vat's one
// peer (spec §4.6). It is created already wired to the VatNetwork's
// send queue and input stream; GetPeerVatID, NewOutgoingMessage,
// ReceiveIncomingMessage and Shutdown are safe for concurrent use
// except where spec §5 "Single-reader" forbids it.
type Connection struct {
	side  Side
	codec Codec
	queue *sendQueue
	log   rpclog.Logger

	// inputStream/inputTaken implement the take/replace pattern from
	// spec §9 "Single input stream with async reads": at most one read
	// may be outstanding at a time.
	mu          sync.Mutex
	inputStream io.Reader
	inputTaken  bool

	disconnect     chan struct{}
	disconnectOnce sync.Once
}

var _ rpc.Connection = (*Connection)(nil)
var _ io.Closer = (*Connection)(nil)

// GetPeerVatID returns the identity of the vat on the other end of
// this connection.
func (c *Connection) GetPeerVatID() rpc.VatId {
	return c.side.Other()
}

// NewOutgoingMessage allocates a new message builder.
func (c *Connection) NewOutgoingMessage(firstSegmentWordHint uint32) rpc.OutgoingMessage {
	return &outgoingMessage{body: c.codec.NewMessage(firstSegmentWordHint), queue: c.queue, log: c.log}
}

// ReceiveIncomingMessage reads and returns the next message from the
// peer. Concurrent calls are forbidden; a call made while another read
// is already outstanding fails rather than racing on the stream (spec
// §8 invariant 6).
func (c *Connection) ReceiveIncomingMessage(ctx context.Context) (rpc.IncomingMessage, error) {
	c.mu.Lock()
	if c.inputTaken {
		c.mu.Unlock()
		return nil, rpcerr.Failedf("concurrent receive_incoming_message on one connection")
	}
	c.inputTaken = true
	stream := c.inputStream
	c.mu.Unlock()

	body, readErr := c.codec.ReadMessage(stream)

	c.mu.Lock()
	c.inputTaken = false
	c.mu.Unlock()

	if readErr != nil {
		if errors.Is(readErr, io.EOF) {
			c.log.Debug("twoparty: clean end of stream")
			return nil, nil
		}
		return nil, readErr
	}
	c.log.Debug("twoparty: received message")
	return incomingMessage{body: body}, nil
}

// Shutdown terminates the send side, surfacing result through
// whichever goroutine is draining the send queue, and signals
// disconnect. Subsequent sends fail.
func (c *Connection) Shutdown(ctx context.Context, result error) error {
	c.log.Info("twoparty: shutdown", "result", result)
	c.queue.shutdown(result)
	c.signalDisconnect()
	return nil
}

// Close releases this Connection without an explicit shutdown result,
// the idiomatic-Go stand-in for the original implementation's
// destructor-triggered disconnect signal (Go has no deterministic
// Drop, so an abandoned connection must be released explicitly rather
// than falling out of scope). Like dropping the last sender half of
// the original's write queue, Close also ends the send queue with a
// nil result: an abandoned connection's writer is simply done, not
// failed.
func (c *Connection) Close() error {
	c.log.Info("twoparty: connection closed")
	c.queue.shutdown(nil)
	c.signalDisconnect()
	return nil
}

func (c *Connection) signalDisconnect() {
	c.disconnectOnce.Do(func() { close(c.disconnect) })
}

// isDisconnected reports whether this connection's disconnect signal
// has already fired, without blocking.
func (c *Connection) isDisconnected() bool {
	select {
	case <-c.disconnect:
		return true
	default:
		return false
	}
}

// incomingMessage is an immutable, already-deserialized received
// message (spec §4.5).
type incomingMessage struct {
	body any
}

var _ rpc.IncomingMessage = incomingMessage{}

func (m incomingMessage) GetBody() (any, error) {
	return m.body, nil
}

// outgoingMessage is a message under construction, owned by the caller
// until it is sent or abandoned (spec §4.5).
type outgoingMessage struct {
	mu    sync.Mutex
	body  any
	sent  bool
	queue *sendQueue
	log   rpclog.Logger
}

var _ rpc.OutgoingMessage = (*outgoingMessage)(nil)

func (m *outgoingMessage) GetBody() (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.body, nil
}

func (m *outgoingMessage) GetBodyAsReader() (any, error) {
	return m.GetBody()
}

// Send consumes the message, queues it for transmission, and returns
// a completion channel plus the now-shared body so the caller can
// still inspect what was sent.
func (m *outgoingMessage) Send() (<-chan error, any) {
	m.mu.Lock()
	body := m.body
	m.sent = true
	m.mu.Unlock()

	m.log.Debug("twoparty: sending message")
	return m.queue.send(body), body
}

// Take consumes the message without sending it.
func (m *outgoingMessage) Take() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.body
}
