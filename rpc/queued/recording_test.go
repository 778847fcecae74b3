package queued

import (
	"context"
	"sync"
	"testing"

	"github.com/kylelemons/godebug/pretty"

	"github.com/capnproto-go/rpc-core/rpc"
)

// assertCallLog compares two call-log slices and, on mismatch, reports
// a readable structural diff rather than Go's default %+v dump —
// useful once a log grows past a couple of entries.
func assertCallLog(t *testing.T, want, got []recordedCall) {
	t.Helper()
	if diff := pretty.Compare(want, got); diff != "" {
		t.Fatalf("call log mismatch (-want +got):\n%s", diff)
	}
}

// recordedCall is one invocation logged by a recordingClient.
type recordedCall struct {
	interfaceID uint64
	methodID    uint16
	params      rpc.Params
}

// recordingClient is a minimal rpc.ClientHook fixture that logs every
// call it receives, in the order Call was invoked, and resolves every
// call's completion with nil (or a configured error).
// Used throughout this package's tests as the "real target" a Client
// or Pipeline eventually forwards to, matching the RecordingClient
// fixture used by the scenarios in spec §8.
type recordingClient struct {
	mu    sync.Mutex
	calls []recordedCall

	response    any
	err         error
	pipelineCap rpc.ClientHook // returned by GetPipelinedCap on this call's pipeline
}

var _ rpc.ClientHook = (*recordingClient)(nil)

func newRecordingClient() *recordingClient {
	return &recordingClient{}
}

func (r *recordingClient) log() []recordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedCall(nil), r.calls...)
}

func (r *recordingClient) AddRef() rpc.ClientHook {
	return r
}

func (r *recordingClient) NewCall(interfaceID uint64, methodID uint16) *rpc.Request {
	return rpc.NewRequest(r, interfaceID, methodID)
}

func (r *recordingClient) Call(ctx context.Context, interfaceID uint64, methodID uint16, params rpc.Params, results rpc.Results, resultsDone <-chan error) (<-chan error, rpc.PipelineHook) {
	r.mu.Lock()
	r.calls = append(r.calls, recordedCall{interfaceID: interfaceID, methodID: methodID, params: params})
	err := r.err
	pipelineCap := r.pipelineCap
	r.mu.Unlock()

	completion := make(chan error, 1)
	// Give resolution observers queued behind this call a scheduling
	// turn before completion resolves, as the real forwarding path
	// would (spec §8 invariant 2).
	go func() {
		completion <- err
		close(completion)
	}()

	return completion, recordingPipeline{cap: pipelineCap}
}

func (r *recordingClient) GetPtr() uintptr {
	return uintptr(0)
}

func (r *recordingClient) GetBrand() uintptr {
	return 0
}

func (r *recordingClient) GetResolved() (rpc.ClientHook, bool) {
	return r, true
}

func (r *recordingClient) WhenMoreResolved() <-chan rpc.ResolutionResult {
	return nil
}

// recordingPipeline hands back a single fixed capability for any ops,
// enough to exercise pipelined extraction in S4 without modeling real
// field-path resolution.
type recordingPipeline struct {
	cap rpc.ClientHook
}

var _ rpc.PipelineHook = recordingPipeline{}

func (p recordingPipeline) AddRef() rpc.PipelineHook {
	return p
}

func (p recordingPipeline) GetPipelinedCap(ops []rpc.PipelineOp) rpc.ClientHook {
	return p.cap
}
