package transfer

import (
	"context"
	stderrors "errors"

	"github.com/s3desk/s3desk/errors"
	"github.com/s3desk/s3desk/registry"
)

// WithCancel derives a context that is cancelled with errors.ErrCancelled
// as its cause once cancel is closed. A nil channel never fires. The
// returned stop function releases the watcher and must always be called.
func WithCancel(ctx context.Context, cancel <-chan struct{}) (context.Context, func()) {
	runCtx, cancelCause := context.WithCancelCause(ctx)
	if cancel == nil {
		return runCtx, func() { cancelCause(nil) }
	}
	select {
	case <-cancel:
		cancelCause(errors.ErrCancelled)
		return runCtx, func() { cancelCause(nil) }
	default:
	}

	stopped := make(chan struct{})
	go func() {
		select {
		case <-cancel:
			cancelCause(errors.ErrCancelled)
		case <-runCtx.Done():
		case <-stopped:
		}
	}()
	return runCtx, func() {
		close(stopped)
		cancelCause(nil)
	}
}

// Cancelled reports whether ctx was stopped by a user cancellation: the
// registry cancel channel, or the caller cancelling its own context (an
// interrupt in the CLI). A deadline is not a cancellation.
func Cancelled(ctx context.Context) bool {
	cause := context.Cause(ctx)
	return stderrors.Is(cause, errors.ErrCancelled) || stderrors.Is(cause, context.Canceled)
}

// Fail ends the record id after a failed run. A user cancellation leaves
// it cancelled, any other error leaves it failed.
func Fail(reg *registry.Registry, id string, err error) {
	if errors.IsCancelled(err) && reg.Cancel(id) {
		return
	}
	reg.Fail(id, err)
}

// Closed reports whether ch has been closed without blocking.
func Closed(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
