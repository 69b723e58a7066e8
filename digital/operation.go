package digital

import "context"

// Operation is a handle to an asynchronous pulse or blink run.
//
// Cancel stops further toggling; the line stays at its last-set level, and
// an in-flight device write is never undone. Done closes when the run
// finishes for any reason. Err reports the outcome once Done has closed:
// nil on completion, context.Canceled after Cancel, or the device error
// that aborted the run.
type Operation struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error // written once, before done closes
}

// newOperation starts fn on its own goroutine under a cancellable context.
func newOperation(fn func(context.Context) error) *Operation {
	ctx, cancel := context.WithCancel(context.Background())
	op := &Operation{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer cancel()
		op.err = fn(ctx)
		close(op.done)
	}()
	return op
}

// Cancel requests cooperative cancellation. It is safe to call repeatedly
// and after completion. Cancel returns immediately; use Done or Wait to
// observe the operation actually stopping.
func (op *Operation) Cancel() { op.cancel() }

// Done returns a channel that closes when the operation has finished,
// whether it completed, failed, or was cancelled.
func (op *Operation) Done() <-chan struct{} { return op.done }

// Err returns the outcome. It is nil while the operation is still running;
// check Done first to distinguish "running" from "succeeded".
func (op *Operation) Err() error {
	select {
	case <-op.done:
		return op.err
	default:
		return nil
	}
}

// Wait blocks until the operation finishes or ctx is cancelled, returning
// the operation's outcome or ctx's error respectively. Waiting does not
// cancel the operation.
func (op *Operation) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-op.done:
		return op.err
	}
}
