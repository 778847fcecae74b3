// Package queued implements the queued pipeline and queued client
// placeholders from spec §4.3/§4.4: ClientHook/PipelineHook facades
// that accept calls and pipelined extraction before their backing
// capability or pipeline has actually resolved, then forward exactly
// once, in order, once resolution happens.
package queued

import (
	"sync"

	"github.com/capnproto-go/rpc-core/internal/eager"
	"github.com/capnproto-go/rpc-core/internal/fork"
	"github.com/capnproto-go/rpc-core/rpc"
	"github.com/capnproto-go/rpc-core/rpc/broken"
)

// Pipeline is a PipelineHook that accepts GetPipelinedCap before its
// backing pipeline exists (spec §4.3).
type Pipeline struct {
	upstream *fork.Forked[rpc.PipelineHook]

	mu       sync.Mutex
	redirect rpc.PipelineHook // set once the upstream future resolves

	selfResolution *eager.Handle // handle onto the self-resolution task
}

var _ rpc.PipelineHook = (*Pipeline)(nil)

// NewPipeline builds a Pipeline backed by f, a future yielding the
// eventual PipelineHook. f is driven to completion regardless of
// whether GetPipelinedCap is ever called (spec §4.2).
func NewPipeline(f func() (rpc.PipelineHook, error)) *Pipeline {
	p := &Pipeline{upstream: fork.NewQueued(f)}
	selfBranch := p.upstream.AddBranch()
	p.selfResolution = eager.Run(func() error {
		hook, err := selfBranch.Wait()
		p.resolve(hook, err)
		return nil
	})
	return p
}

// resolve is idempotent: once redirect is set, later calls leave it
// unchanged. Both the self-resolution task and every Client returned by
// GetPipelinedCap before resolution call it, whichever runs first.
func (p *Pipeline) resolve(hook rpc.PipelineHook, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.redirect != nil {
		return
	}
	if err != nil {
		p.redirect = broken.Pipeline(err)
		return
	}
	p.redirect = hook
}

// AddRef returns another handle sharing this pipeline's state.
func (p *Pipeline) AddRef() rpc.PipelineHook {
	return p
}

// GetPipelinedCap extracts the capability reachable at ops. Once the
// pipeline has resolved, this delegates directly to the resolved
// pipeline; until then, it returns a new queued Client whose backing
// future waits for resolution and then performs the extraction.
func (p *Pipeline) GetPipelinedCap(ops []rpc.PipelineOp) rpc.ClientHook {
	p.mu.Lock()
	redirect := p.redirect
	p.mu.Unlock()

	if redirect != nil {
		return redirect.GetPipelinedCap(ops)
	}

	// Capture ops by value for the deferred extraction, per spec §4.3.
	opsCopy := append([]rpc.PipelineOp(nil), ops...)
	branch := p.upstream.AddBranch()
	return NewClient(func() (rpc.ClientHook, error) {
		hook, err := branch.Wait()
		// Set redirect before this extracted cap resolves, so any
		// extraction made after it has resolved delegates directly.
		p.resolve(hook, err)
		if err != nil {
			return nil, err
		}
		return hook.GetPipelinedCap(opsCopy), nil
	})
}
