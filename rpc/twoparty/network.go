package twoparty

import (
	"io"
	"sync"

	"golang.org/x/net/context"
	"golang.org/x/sync/errgroup"

	"github.com/capnproto-go/rpc-core/internal/fork"
	"github.com/capnproto-go/rpc-core/rpc"
	"github.com/capnproto-go/rpc-core/rpclog"
)

// Options configures a VatNetwork. Zero value is not meaningful; build
// one with the With* functions passed to NewVatNetwork.
type Options struct {
	Logger         rpclog.Logger
	SendBufferSize int
}

// Option mutates an Options being built, following the teacher's
// ConnOption/connParams functional-options pattern.
type Option func(*Options)

// WithLogger sets the logger used for connection-lifecycle events.
func WithLogger(l rpclog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithSendBufferSize sets how many outbound messages may be queued
// ahead of the writer before Send blocks.
func WithSendBufferSize(n int) Option {
	return func(o *Options) { o.SendBufferSize = n }
}

func defaultOptions() Options {
	return Options{Logger: rpclog.Discard(), SendBufferSize: 16}
}

// VatNetwork is the two-party VatNetwork from spec §4.7: it vends
// exactly one Connection to the single peer, with accept/connect
// asymmetry, and owns the execution driver that pumps writes to
// completion and observes disconnect.
type VatNetwork struct {
	side Side
	conn *Connection

	mu    sync.Mutex
	taken bool

	driver *fork.Forked[struct{}]
}

var _ rpc.VatNetwork = (*VatNetwork)(nil)

// NewVatNetwork builds a VatNetwork reading from input and writing to
// output, identifying this end as side. The execution driver (the
// writer pump composed with disconnect observation) starts running
// immediately, independent of whether Connect/Accept is ever called
// (mirroring the eager self-resolution discipline elsewhere in this
// module).
func NewVatNetwork(ctx context.Context, input io.Reader, output io.Writer, side Side, codec Codec, opts ...Option) *VatNetwork {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	queue := newSendQueue(o.SendBufferSize)
	disconnect := make(chan struct{})

	conn := &Connection{
		side:        side,
		codec:       codec,
		queue:       queue,
		log:         o.Logger,
		inputStream: input,
		disconnect:  disconnect,
	}

	n := &VatNetwork{side: side, conn: conn}
	n.driver = fork.New(executionDriver(ctx, output, codec, queue, disconnect))
	return n
}

// executionDriver composes "run the writer to completion, then wait
// for disconnect, then propagate the writer's outcome" (spec §9
// "Execution driver"). The writer itself runs inside an errgroup so
// additional driven tasks (a read pump, in a fuller implementation)
// could join the same group without changing this shape; today there
// is exactly one.
func executionDriver(ctx context.Context, w io.Writer, codec Codec, queue *sendQueue, disconnect <-chan struct{}) fork.Future[struct{}] {
	return func() (struct{}, error) {
		g, _ := errgroup.WithContext(ctx)
		g.Go(func() error {
			return queue.run(w, codec)
		})
		writerErr := g.Wait()

		<-disconnect
		return struct{}{}, writerErr
	}
}

// Connect returns a Connection to hostID, or nil if hostID names this
// vat itself.
func (n *VatNetwork) Connect(hostID rpc.VatId) (rpc.Connection, error) {
	if hostID.Equal(n.side) {
		return nil, nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.taken {
		n.taken = true
		n.conn.log.Info("twoparty: connect", "peer", hostID)
		return n.conn, nil
	}

	// The owned slot has already been consumed once: hand back a
	// facade sharing the same Connection, unless it has already
	// disconnected, in which case the embedding session has misused
	// the single-connection contract (spec §4.7, §7).
	if n.conn.isDisconnected() {
		panic("twoparty: reconnect after disconnect")
	}
	n.conn.log.Info("twoparty: connect", "peer", hostID)
	return n.conn, nil
}

// Accept blocks until a peer connects. The two-party network has
// exactly one peer, so it yields its single Connection immediately the
// first time and then blocks forever (until ctx is cancelled) on
// subsequent calls.
func (n *VatNetwork) Accept(ctx context.Context) (rpc.Connection, error) {
	n.mu.Lock()
	if !n.taken {
		n.taken = true
		conn := n.conn
		n.mu.Unlock()
		conn.log.Info("twoparty: accept")
		return conn, nil
	}
	n.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

// DriveUntilShutdown blocks until the writer has finished and the
// connection has disconnected, returning whatever error caused that.
// Safe to call repeatedly and concurrently; every caller observes the
// same outcome (spec §4.7, §9 "Fork this composite").
func (n *VatNetwork) DriveUntilShutdown(ctx context.Context) error {
	branch := n.driver.AddBranch()
	_, err := branch.Wait()
	return err
}
