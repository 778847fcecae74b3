package rpc

import "context"

// VatId identifies a participant in an RPC network. The two-party
// network (rpc/twoparty) has exactly two inhabitants; other vat
// network implementations may define their own.
type VatId interface {
	// Equal reports whether this VatId names the same end as other.
	Equal(other VatId) bool
}

// OutgoingMessage is a message under construction, owned by the caller
// until it is sent or abandoned (spec §4.5).
type OutgoingMessage interface {
	// GetBody returns the mutable root pointer to populate.
	GetBody() (any, error)

	// GetBodyAsReader returns a read-only view of whatever has been
	// written to the body so far.
	GetBodyAsReader() (any, error)

	// Send consumes the message, queues it for transmission, and
	// returns a completion channel (closed, or sent an error, once
	// the frame has been fully written) plus a shared handle to the
	// just-sent message so the caller can snapshot its content.
	Send() (completion <-chan error, sent any)

	// Take consumes the message without sending it, for when the
	// message is abandoned.
	Take() any
}

// IncomingMessage is an immutable, already-deserialized received
// message.
type IncomingMessage interface {
	// GetBody returns the message's root pointer.
	GetBody() (any, error)
}

// Connection is a single bidirectional frame transport between this
// vat and exactly one peer (spec §4.6, §6).
type Connection interface {
	// GetPeerVatID returns the identity of the vat on the other end.
	GetPeerVatID() VatId

	// NewOutgoingMessage allocates a new message builder.
	// firstSegmentWordHint sizes the first segment's initial
	// allocation; implementations may ignore it.
	NewOutgoingMessage(firstSegmentWordHint uint32) OutgoingMessage

	// ReceiveIncomingMessage reads and returns the next message from
	// the peer, nil if the stream ended cleanly, or an error.
	// Concurrent calls are forbidden (spec §5 "Single-reader").
	ReceiveIncomingMessage(ctx context.Context) (IncomingMessage, error)

	// Shutdown terminates the connection's send side, surfacing
	// result through the writer; subsequent sends fail.
	Shutdown(ctx context.Context, result error) error
}

// VatNetwork is the contract expected by a higher-level RPC session
// layer (spec §6): it vends Connections to at most one peer at a time
// (in the two-party case, exactly one) and drives the send side of
// those connections until shutdown.
type VatNetwork interface {
	// Connect returns a Connection to hostID, or nil if hostID names
	// this vat itself. For networks where the connection must already
	// exist (e.g. the two-party network, which has only ever one
	// peer), Connect reuses or fails fatally rather than dialing.
	Connect(hostID VatId) (Connection, error)

	// Accept blocks until a peer connects (or, for networks that only
	// ever accept once, returns the single connection immediately and
	// blocks forever on subsequent calls).
	Accept(ctx context.Context) (Connection, error)

	// DriveUntilShutdown blocks until the network's send side and all
	// its connections have been driven to completion, returning
	// whatever error caused that (nil on a clean shutdown). It may be
	// called repeatedly and concurrently; all callers observe the
	// same outcome.
	DriveUntilShutdown(ctx context.Context) error
}
