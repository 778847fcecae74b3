// Package fork implements ForkedPromise, a shared, multiply-awaitable
// wrapper around a single-shot asynchronous result.
//
// A Forked[T] converts a future that can only be consumed once into a
// fan-out: any number of Branch[T] handles may be created, before or
// after the underlying result becomes available, and each one observes
// an independent copy of the same outcome.
//
// Observers are notified strictly in the order they were registered
// with OnResolve (Wait registers one too), and notification runs
// synchronously, inline, on whichever goroutine resolves the underlying
// future. AddBranch itself registers nothing, so the order in which
// branches were added does not by itself fix the order in which they
// are notified. rpc/queued does not rely on this order for its
// call-forwarding-before-resolution-observers guarantee; Client keeps
// its own queues for that (see rpc/queued/client.go).
package fork

import "sync"

// Future is the minimal shape this package needs to drive to
// completion: a function that blocks until a result or error is ready.
type Future[T any] func() (T, error)

// state is the shared result cell. It transitions pending -> done
// exactly once, and holds the FIFO list of not-yet-notified observers.
type state[T any] struct {
	mu   sync.Mutex
	done bool
	val  T
	err  error
	obs  []func(T, error)
}

// onResolve registers cb to run once the result is available. If the
// result is already available, cb runs synchronously before onResolve
// returns; otherwise it runs later, inline on the resolving goroutine,
// in the order registrations were made relative to other observers
// still pending at resolution time.
func (st *state[T]) onResolve(cb func(T, error)) {
	st.mu.Lock()
	if st.done {
		val, err := st.val, st.err
		st.mu.Unlock()
		cb(val, err)
		return
	}
	st.obs = append(st.obs, cb)
	st.mu.Unlock()
}

func (st *state[T]) resolve(val T, err error) {
	st.mu.Lock()
	if st.done {
		st.mu.Unlock()
		return
	}
	st.val, st.err, st.done = val, err, true
	obs := st.obs
	st.obs = nil
	st.mu.Unlock()

	for _, cb := range obs {
		cb(val, err)
	}
}

func (st *state[T]) peek() (val T, err error, ok bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.val, st.err, st.done
}

// Forked is a shared future state that can be forked into any number
// of independently awaitable Branch[T] handles.
type Forked[T any] struct {
	st *state[T]

	// queued, when set, is the lazy upstream future that is only
	// driven once the first branch is added (the "queued"
	// construction mode from spec §4.1), rather than immediately at
	// construction.
	queued    Future[T]
	startOnce sync.Once
}

// New creates an unqueued Forked[T]: driving f begins immediately on
// its own goroutine.
func New[T any](f Future[T]) *Forked[T] {
	fk := &Forked[T]{st: &state[T]{}}
	go fk.drive(f)
	return fk
}

// NewQueued creates a Forked[T] whose upstream future f is only driven
// once the first branch is added, matching spec §4.1's queued
// construction mode — used so that a lazy upstream is not forced to
// run before anything cares about its result.
func NewQueued[T any](f Future[T]) *Forked[T] {
	fk := &Forked[T]{st: &state[T]{}}
	fk.queued = f
	return fk
}

func (fk *Forked[T]) drive(f Future[T]) {
	val, err := f()
	fk.st.resolve(val, err)
}

// NewManual creates a Forked[T] with no driving goroutine at all: the
// caller resolves it explicitly by calling the returned function,
// exactly once, whenever its result becomes available. This is used
// where the "future" is really a specific, synchronously-reached point
// in already-running code (e.g. the moment a forwarded call has been
// dispatched) rather than something to drive on its own goroutine.
func NewManual[T any]() (*Forked[T], func(T, error)) {
	fk := &Forked[T]{st: &state[T]{}}
	return fk, fk.st.resolve
}

// Branch is an independently awaitable handle onto a Forked[T]'s
// result.
type Branch[T any] struct {
	fk *Forked[T]
}

// AddBranch returns a new branch over fk's result. It may be called any
// number of times, before or after resolution. For a queued Forked,
// the first AddBranch call starts driving the upstream future.
func (fk *Forked[T]) AddBranch() *Branch[T] {
	if fk.queued != nil {
		fk.startOnce.Do(func() {
			go fk.drive(fk.queued)
		})
	}
	return &Branch[T]{fk: fk}
}

// Clone returns another branch sharing the same underlying state as b.
func (b *Branch[T]) Clone() *Branch[T] {
	return &Branch[T]{fk: b.fk}
}

// OnResolve registers cb to run once this branch's result is
// available — synchronously if it already is, otherwise inline on the
// goroutine that resolves it, in FIFO order relative to other branches
// and observers still pending at that moment.
func (b *Branch[T]) OnResolve(cb func(T, error)) {
	b.fk.st.onResolve(cb)
}

// Wait blocks until the branch's result is available and returns it.
func (b *Branch[T]) Wait() (T, error) {
	done := make(chan struct{})
	var val T
	var err error
	b.OnResolve(func(v T, e error) {
		val, err = v, e
		close(done)
	})
	<-done
	return val, err
}

// Peek returns the resolved value and ok=true iff the branch's result
// is already available, without blocking.
func (b *Branch[T]) Peek() (val T, err error, ok bool) {
	return b.fk.st.peek()
}
