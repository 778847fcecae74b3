// Package rpc defines the boundary contracts between the queued
// capability/pipeline layer, the two-party vat network, and the
// higher-level RPC session layer that consumes them (spec §6).
//
// The session state machine itself (Question/Answer tables, imports,
// exports, embargoes) and the message schema/codec are external
// collaborators and are not implemented here — see spec.md §1
// "Out of scope". This package only defines the interfaces those
// collaborators and this module's own rpc/queued and rpc/twoparty
// packages agree on.
package rpc

import "context"

// PipelineOp is an opaque path step used to extract a capability from a
// future call result: a field index (or, in the future, a pointer tag).
// Callers supply a sequence of these by value.
type PipelineOp struct {
	// Field is the pointer-field index to follow.
	Field uint16
}

// ClientHook is the capability interface: an unforgeable reference to a
// remote object exposing a typed interface, invoked via Call.
type ClientHook interface {
	// AddRef returns another handle to the same underlying capability.
	AddRef() ClientHook

	// NewCall returns a Request bound to this hook for the given
	// method; sending the request invokes Call on this hook.
	NewCall(interfaceID uint64, methodID uint16) *Request

	// Call invokes a method on the capability this hook represents.
	// resultsDone, if non-nil, resolves once the caller has finished
	// writing into results (used by tail calls to know when it is
	// safe to reuse the results message); most callers pass nil. Call
	// returns a completion future (resolved once the call has fully
	// returned) and a pipeline over the eventual results, usable for
	// pipelined extraction before completion resolves.
	Call(ctx context.Context, interfaceID uint64, methodID uint16, params Params, results Results, resultsDone <-chan error) (completion <-chan error, pipeline PipelineHook)

	// GetPtr returns a stable identity value for this hook, equal
	// across AddRef'd handles to the same underlying capability and
	// different from unrelated capabilities (spec §8 invariant 5).
	GetPtr() uintptr

	// GetBrand returns an origin tag used by RPC sessions to detect
	// capabilities that originated from them, for short-circuit
	// optimizations. 0 means "local/null": no specific origin.
	GetBrand() uintptr

	// GetResolved returns the capability this hook has resolved to,
	// if resolution has already happened; the zero value and
	// ok=false otherwise. Never blocks.
	GetResolved() (target ClientHook, ok bool)

	// WhenMoreResolved returns a channel that receives the resolved
	// hook once resolution happens, or nil if this hook never
	// resolves further (it already is the final target). Callable
	// repeatedly; each call returns an independent channel.
	WhenMoreResolved() <-chan ResolutionResult
}

// ResolutionResult is what a WhenMoreResolved channel delivers: the
// resolved hook, or the error resolution failed with.
type ResolutionResult struct {
	Hook ClientHook
	Err  error
}

// PipelineHook is the not-yet-materialized result of a call, from which
// further capabilities may be extracted before the call completes.
type PipelineHook interface {
	// AddRef returns another handle to the same underlying pipeline.
	AddRef() PipelineHook

	// GetPipelinedCap extracts the capability reachable at ops from
	// the eventual call result. ops is captured by value.
	GetPipelinedCap(ops []PipelineOp) ClientHook
}

// Request is a local, not-yet-sent method invocation bound to a
// ClientHook. Params are filled in by the caller and the call is
// dispatched to the bound hook's Call method when Send is invoked.
type Request struct {
	InterfaceID uint64
	MethodID    uint16
	Params      Params

	hook ClientHook
}

// NewRequest binds a request to hook for the given method.
func NewRequest(hook ClientHook, interfaceID uint64, methodID uint16) *Request {
	return &Request{InterfaceID: interfaceID, MethodID: methodID, hook: hook}
}

// Send dispatches the request to its bound hook.
func (r *Request) Send(ctx context.Context, results Results) (<-chan error, PipelineHook) {
	return r.hook.Call(ctx, r.InterfaceID, r.MethodID, r.Params, results, nil)
}

// Params is an opaque, already-filled-in parameter struct (any_pointer
// in the wire schema, per spec §6). Its concrete representation is
// owned by the serialization codec, an external collaborator; this
// module only moves it around.
type Params any

// Results is an opaque, write-only destination for a call's results
// (any_pointer). Its concrete representation is owned by the
// serialization codec.
type Results any
