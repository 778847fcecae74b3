// Package broken implements the terminal "broken capability" and
// "broken pipeline" sentinels from spec §4.4: states where every
// operation fails, synchronously where possible, with a fixed error.
package broken

import (
	"context"

	"github.com/capnproto-go/rpc-core/rpc"
)

// Cap builds a ClientHook where every call fails with err.
func Cap(err error) rpc.ClientHook {
	return capHook{err: err}
}

type capHook struct {
	err error
}

var _ rpc.ClientHook = capHook{}

func (c capHook) AddRef() rpc.ClientHook {
	return c
}

func (c capHook) NewCall(interfaceID uint64, methodID uint16) *rpc.Request {
	return rpc.NewRequest(c, interfaceID, methodID)
}

func (c capHook) Call(ctx context.Context, interfaceID uint64, methodID uint16, params rpc.Params, results rpc.Results, resultsDone <-chan error) (<-chan error, rpc.PipelineHook) {
	ch := make(chan error, 1)
	ch <- c.err
	close(ch)
	return ch, Pipeline(c.err)
}

func (c capHook) GetPtr() uintptr {
	return 0
}

func (c capHook) GetBrand() uintptr {
	return 0
}

func (c capHook) GetResolved() (rpc.ClientHook, bool) {
	return c, true
}

// WhenMoreResolved returns an already-failed channel: per spec §4.4
// design choice, broken capabilities are treated uniformly with
// resolved-but-broken ones rather than returning nil.
func (c capHook) WhenMoreResolved() <-chan rpc.ResolutionResult {
	ch := make(chan rpc.ResolutionResult, 1)
	ch <- rpc.ResolutionResult{Hook: c, Err: c.err}
	close(ch)
	return ch
}

// Pipeline builds a PipelineHook where GetPipelinedCap always returns a
// broken capability carrying err.
func Pipeline(err error) rpc.PipelineHook {
	return pipelineHook{err: err}
}

type pipelineHook struct {
	err error
}

var _ rpc.PipelineHook = pipelineHook{}

func (p pipelineHook) AddRef() rpc.PipelineHook {
	return p
}

func (p pipelineHook) GetPipelinedCap(ops []rpc.PipelineOp) rpc.ClientHook {
	return Cap(p.err)
}
