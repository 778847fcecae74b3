package queued

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capnproto-go/rpc-core/rpc"
)

// waitCompletion blocks on ch with a generous timeout so a broken
// ordering guarantee fails the test instead of hanging the suite.
func waitCompletion(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for completion")
		return nil
	}
}

// S1 — resolve-then-call: issue a call, then resolve the upstream.
func TestClientResolveThenCall(t *testing.T) {
	real := newRecordingClient()
	resolveCh := make(chan struct{})

	c := NewClient(func() (rpc.ClientHook, error) {
		<-resolveCh
		return real, nil
	})

	completion, _ := c.Call(context.Background(), 1, 2, "P1", nil, nil)

	close(resolveCh)

	err := waitCompletion(t, completion)
	require.NoError(t, err)
	assertCallLog(t, []recordedCall{{interfaceID: 1, methodID: 2, params: "P1"}}, real.log())
}

// S2 — call-then-resolve ordering: two calls queued before resolution,
// plus a when_more_resolved observer, must see the call log in issue
// order and the observer must fire before either completion.
func TestClientCallThenResolveOrdering(t *testing.T) {
	real := newRecordingClient()
	resolveCh := make(chan struct{})

	c := NewClient(func() (rpc.ClientHook, error) {
		<-resolveCh
		return real, nil
	})

	completionA, _ := c.Call(context.Background(), 1, 2, "P1", nil, nil)
	completionB, _ := c.Call(context.Background(), 1, 3, "P2", nil, nil)
	observer := c.WhenMoreResolved()

	close(resolveCh)

	res := <-observer
	require.NoError(t, res.Err)
	assert.Equal(t, real, res.Hook)

	require.NoError(t, waitCompletion(t, completionA))
	require.NoError(t, waitCompletion(t, completionB))

	assertCallLog(t, []recordedCall{
		{interfaceID: 1, methodID: 2, params: "P1"},
		{interfaceID: 1, methodID: 3, params: "P2"},
	}, real.log())
}

// S3 — broken propagation: upstream resolution fails, every queued and
// subsequent call observes the same error.
func TestClientBrokenPropagation(t *testing.T) {
	wantErr := errors.New("gone")
	resolveCh := make(chan struct{})

	c := NewClient(func() (rpc.ClientHook, error) {
		<-resolveCh
		return nil, wantErr
	})

	completionA, _ := c.Call(context.Background(), 1, 2, "P1", nil, nil)
	observer := c.WhenMoreResolved()

	close(resolveCh)

	res := <-observer
	assert.ErrorIs(t, res.Err, wantErr)

	errA := waitCompletion(t, completionA)
	assert.ErrorIs(t, errA, wantErr)

	resolved, ok := c.GetResolved()
	require.True(t, ok)

	completionLater, _ := resolved.Call(context.Background(), 9, 9, nil, nil, nil)
	assert.ErrorIs(t, waitCompletion(t, completionLater), wantErr)
}

// Calls issued after resolution dispatch immediately rather than
// queueing.
func TestClientCallAfterResolution(t *testing.T) {
	real := newRecordingClient()

	c := NewClient(func() (rpc.ClientHook, error) { return real, nil })
	<-c.WhenMoreResolved()

	completion, _ := c.Call(context.Background(), 4, 5, "P", nil, nil)
	require.NoError(t, waitCompletion(t, completion))
	assertCallLog(t, []recordedCall{{interfaceID: 4, methodID: 5, params: "P"}}, real.log())
}

func TestClientGetPtrStableAcrossAddRef(t *testing.T) {
	c := NewClient(func() (rpc.ClientHook, error) { return newRecordingClient(), nil })
	assert.Equal(t, c.GetPtr(), c.AddRef().GetPtr())
}

func TestClientGetPtrDiffersAcrossClients(t *testing.T) {
	c1 := NewClient(func() (rpc.ClientHook, error) { return newRecordingClient(), nil })
	c2 := NewClient(func() (rpc.ClientHook, error) { return newRecordingClient(), nil })
	assert.NotEqual(t, c1.GetPtr(), c2.GetPtr())
}
