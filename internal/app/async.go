package app

import "context"

// Operation is the pending result of one asynchronous service call.
type Operation[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go runs fn in its own goroutine and returns a handle to its result.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Operation[T] {
	op := &Operation[T]{done: make(chan struct{})}
	go func() {
		defer close(op.done)
		op.value, op.err = fn(ctx)
	}()
	return op
}

// Pending reports whether the operation has not settled yet.
func (o *Operation[T]) Pending() bool {
	select {
	case <-o.done:
		return false
	default:
		return true
	}
}

// Done is closed once the operation settles.
func (o *Operation[T]) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the operation settles or ctx is done.
func (o *Operation[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-o.done:
		return o.value, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
