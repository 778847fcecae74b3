package queued

import (
	"context"
	"sync"
	"unsafe"

	"github.com/capnproto-go/rpc-core/internal/eager"
	"github.com/capnproto-go/rpc-core/internal/fork"
	"github.com/capnproto-go/rpc-core/rpc"
	"github.com/capnproto-go/rpc-core/rpc/broken"
)

// Client is a ClientHook that accepts calls before the capability it
// will eventually forward to has resolved (spec §4.4). It is the
// capability-side counterpart to Pipeline.
//
// Three things are queued against the same upstream resolution, and
// must become visible in this fixed order (spec §9 "three-branch
// ordering"):
//
//  1. self-resolution: redirect is set so later calls and GetResolved
//     short-circuit straight to the resolved target (GetPtr keeps
//     returning this Client's own identity).
//  2. call forwarding: every call queued via Call before resolution is
//     dispatched to the resolved target, in the order Call was invoked.
//  3. resolution observers: every channel handed out by
//     WhenMoreResolved before resolution fires only after every call
//     queued ahead of it has been dispatched (not necessarily
//     completed — see the note on Call below).
//
// Rather than layering this on three generic fork branches (which would
// only order registration of observers, not the actual dispatch of
// forwarded calls relative to each other), Client drains its call queue
// itself, synchronously, inside the single callback that fires when the
// upstream future resolves. That callback runs on one goroutine, so the
// three steps above happen in program order by construction.
type Client struct {
	mu         sync.Mutex
	resolved   bool
	redirect   rpc.ClientHook
	resolveErr error

	// callQueue holds, in Call-issue order, the dispatch closures for
	// calls made before resolution. Drained once, in order, by
	// onResolve.
	callQueue []func(rpc.ClientHook)

	// resolutionObservers holds pending WhenMoreResolved deliveries,
	// drained only after callQueue is fully drained.
	resolutionObservers []func(rpc.ResolutionResult)

	selfResolution *eager.Handle
}

var _ rpc.ClientHook = (*Client)(nil)

// NewClient builds a Client backed by f, a future yielding the eventual
// capability. f is driven to completion regardless of whether Call is
// ever invoked (spec §4.2): self-resolution does not wait on a caller.
func NewClient(f func() (rpc.ClientHook, error)) *Client {
	c := &Client{}
	upstream := fork.New(f)
	branch := upstream.AddBranch()
	c.selfResolution = eager.Run(func() error {
		hook, err := branch.Wait()
		c.onResolve(hook, err)
		return nil
	})
	return c
}

// onResolve runs exactly once, on whichever goroutine drove the
// upstream future to completion. It fixes redirect, then dispatches
// every queued call in order, then notifies every pending resolution
// observer in order.
func (c *Client) onResolve(hook rpc.ClientHook, err error) {
	c.mu.Lock()
	if c.resolved {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.redirect = broken.Cap(err)
		c.resolveErr = err
	} else {
		c.redirect = hook
	}
	c.resolved = true
	redirect := c.redirect
	resolveErr := c.resolveErr
	callQueue := c.callQueue
	c.callQueue = nil
	observers := c.resolutionObservers
	c.resolutionObservers = nil
	c.mu.Unlock()

	for _, dispatch := range callQueue {
		dispatch(redirect)
	}
	for _, notify := range observers {
		notify(rpc.ResolutionResult{Hook: redirect, Err: resolveErr})
	}
}

// AddRef returns another handle to this Client's shared state.
func (c *Client) AddRef() rpc.ClientHook {
	return c
}

// NewCall returns a Request bound to this Client.
func (c *Client) NewCall(interfaceID uint64, methodID uint16) *rpc.Request {
	return rpc.NewRequest(c, interfaceID, methodID)
}

// callResult is what a single forwarded call eventually produces: the
// completion channel and pipeline the resolved target's own Call
// returned.
type callResult struct {
	completion <-chan error
	pipeline   rpc.PipelineHook
}

// Call either dispatches immediately, if this Client has already
// resolved, or queues a dispatch closure to run later in onResolve.
//
// The returned pipeline is itself a queued Pipeline, usable for
// pipelined extraction before the forwarded call has even been
// dispatched. The returned completion channel only closes once the
// resolved target's own completion channel does, which — for any
// genuinely asynchronous target — is strictly after this dispatch
// returns, giving resolution observers queued behind this call their
// chance to run first. Client does not attempt to enforce that
// ordering against a target whose Call resolves synchronously inline;
// the original implementation relies on the same assumption (every
// real call costs at least one scheduling turn before completion).
func (c *Client) Call(ctx context.Context, interfaceID uint64, methodID uint16, params rpc.Params, results rpc.Results, resultsDone <-chan error) (<-chan error, rpc.PipelineHook) {
	fk, resolve := fork.NewManual[callResult]()

	dispatch := func(hook rpc.ClientHook) {
		comp, pipe := hook.Call(ctx, interfaceID, methodID, params, results, resultsDone)
		resolve(callResult{completion: comp, pipeline: pipe}, nil)
	}

	c.mu.Lock()
	if c.resolved {
		hook := c.redirect
		c.mu.Unlock()
		dispatch(hook)
	} else {
		c.callQueue = append(c.callQueue, dispatch)
		c.mu.Unlock()
	}

	// Split the single callResult future into two independently
	// awaitable halves (spec §4.4 "Split that combined future"), then
	// flatten the completion half's nested channel the way
	// flatten(completion_half) does in the original.
	pipelineFuture, innerCompletionFuture := fork.Split(fk.AddBranch(), func(r callResult, err error) (rpc.PipelineHook, fork.Future[struct{}], error) {
		if err != nil {
			return nil, nil, err
		}
		return r.pipeline, chanFuture(r.completion), nil
	})
	pipeline := NewPipeline(pipelineFuture)
	completionFuture := fork.Flatten(innerCompletionFuture)

	completion := make(chan error, 1)
	go func() {
		_, err := completionFuture()
		if err != nil {
			completion <- err
		}
		close(completion)
	}()

	return completion, pipeline
}

// chanFuture adapts a completion channel, as returned by
// rpc.ClientHook.Call, into a fork.Future.
func chanFuture(ch <-chan error) fork.Future[struct{}] {
	return func() (struct{}, error) {
		return struct{}{}, <-ch
	}
}

// GetPtr returns a stable identity for this Client: its own address.
// AddRef returns the same pointer, so identity survives AddRef per
// spec §8 invariant 5.
func (c *Client) GetPtr() uintptr {
	return uintptr(unsafe.Pointer(c))
}

// GetBrand reports no specific origin.
func (c *Client) GetBrand() uintptr {
	return 0
}

// GetResolved returns the resolved target, if resolution has happened.
func (c *Client) GetResolved() (rpc.ClientHook, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.resolved {
		return nil, false
	}
	return c.redirect, true
}

// WhenMoreResolved returns a channel delivering the resolved target
// once resolution happens — immediately, pre-filled, if it already
// has.
func (c *Client) WhenMoreResolved() <-chan rpc.ResolutionResult {
	ch := make(chan rpc.ResolutionResult, 1)
	deliver := func(res rpc.ResolutionResult) {
		ch <- res
		close(ch)
	}

	c.mu.Lock()
	if c.resolved {
		res := rpc.ResolutionResult{Hook: c.redirect, Err: c.resolveErr}
		c.mu.Unlock()
		deliver(res)
	} else {
		c.resolutionObservers = append(c.resolutionObservers, deliver)
		c.mu.Unlock()
	}
	return ch
}
