package dial

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// allOf is a rendezvous primitive: it waits for every wait function to
// signal success, or reports the first failure and abandons the rest. Each
// wait function blocks until its condition holds or ctx is cancelled.
//
// Replaces an ad hoc "select on N channels" pattern for a single OnOpen
// wait, generalized to N independent conditions (app DC open, optional SC
// open) via golang.org/x/sync/errgroup: one goroutine per condition, first
// error cancels the group's derived context.
func allOf(ctx context.Context, waits ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range waits {
		w := w
		g.Go(func() error { return w(gctx) })
	}
	return g.Wait()
}

// waitSignal adapts a pair of one-shot notification channels (fired from
// engine callbacks) into an allOf wait function.
func waitSignal(ready <-chan struct{}, fail <-chan error) func(context.Context) error {
	return func(ctx context.Context) error {
		select {
		case <-ready:
			return nil
		case err := <-fail:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
