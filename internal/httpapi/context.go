package httpapi

import (
	"context"
)

// serverBaseCtx is a process-level context that can be canceled on shutdown.
// Defaults to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// watchDisconnect flags the task interrupted when the client goes away or
// the process is shutting down, so the generation loop stops at its next
// step checkpoint instead of burning through an abandoned run. The returned
// stop func must be called when the handler ends to release the goroutine.
func (s *server) watchDisconnect(ctx context.Context, taskID string) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.deps.Tasks.MarkInterrupted(taskID)
		case <-serverBaseCtx.Done():
			s.deps.Tasks.MarkInterrupted(taskID)
		case <-done:
		}
	}()
	return func() { close(done) }
}
