// Package eager implements the "eagerly evaluate" helper described in
// spec §4.2: given a future, drive it to completion on its own goroutine
// regardless of whether anything ever reads its result.
//
// This is how the queued client/pipeline's self-resolution step runs:
// resolution must happen whether or not the embedder ever calls
// get_resolved or when_more_resolved.
package eager

import "github.com/capnproto-go/rpc-core/internal/fork"

// Handle is a detached, already-running computation. Dropping it (i.e.
// letting it become unreachable) does not stop the underlying
// goroutine; Wait may still be called to observe the outcome, any
// number of times.
type Handle struct {
	branch *fork.Branch[struct{}]
}

// Run launches fn on its own goroutine immediately and returns a handle
// that can be waited on for completion. fn's error, if any, is expected
// to already have been captured into whatever shared state fn closed
// over (see rpc/queued) — Run only exists to guarantee fn runs to
// completion, not to propagate its result to a caller that might never
// ask.
func Run(fn func() error) *Handle {
	fk := fork.New(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return &Handle{branch: fk.AddBranch()}
}

// Wait blocks until the underlying computation has finished and
// returns any error it produced.
func (h *Handle) Wait() error {
	_, err := h.branch.Wait()
	return err
}
