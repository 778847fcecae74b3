package fork

// Then builds a Future[U] that waits for b's result and maps it through
// f. It does not itself start any goroutine — pass the result to New
// or NewQueued, or call it directly, depending on whether eager or lazy
// evaluation is wanted.
func Then[T, U any](b *Branch[T], f func(T, error) (U, error)) Future[U] {
	return func() (U, error) {
		val, err := b.Wait()
		return f(val, err)
	}
}

// Flatten collapses a Future[Future[T]] into a Future[T] by running the
// outer future and then the inner one it produces.
func Flatten[T any](f Future[Future[T]]) Future[T] {
	return func() (T, error) {
		inner, err := f()
		if err != nil {
			var zero T
			return zero, err
		}
		return inner()
	}
}

// Split derives two independently awaitable futures from a single
// branch's eventual result, each extracting its own half via f. This
// mirrors capnp-rpc-rust's split::split, used to turn a single combined
// future into two independently awaitable halves (spec §4.4, "Split
// that combined future into two independently awaitable halves").
//
// Unlike Then, Split calls b.Wait (and so f) once per returned future:
// each half waits on its own clone of b, so extracting one half never
// blocks on whether the other half has been extracted yet. f must be a
// plain extraction with no side effects, since it may run twice.
func Split[T, A, B any](b *Branch[T], f func(T, error) (A, B, error)) (Future[A], Future[B]) {
	fa := func() (A, error) {
		val, err := b.Clone().Wait()
		a, _, ferr := f(val, err)
		if ferr != nil {
			var zero A
			return zero, ferr
		}
		return a, nil
	}
	fb := func() (B, error) {
		val, err := b.Clone().Wait()
		_, bv, ferr := f(val, err)
		if ferr != nil {
			var zero B
			return zero, ferr
		}
		return bv, nil
	}
	return fa, fb
}
