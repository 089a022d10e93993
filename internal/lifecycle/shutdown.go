// Package lifecycle turns OS signals into a stream the serve command waits on.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/ro"
)

// ShutdownSignals are the OS signals that trigger graceful shutdown.
var ShutdownSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
}

// Signals returns an Observable that emits the first of signals and then
// completes. Delivery starts when Signals is called, so a signal that
// arrives before the first subscription is not lost.
func Signals(signals ...os.Signal) ro.Observable[os.Signal] {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, signals...)

	return ro.NewObservableWithContext(func(ctx context.Context, observer ro.Observer[os.Signal]) ro.Teardown {
		go func() {
			select {
			case sig := <-ch:
				observer.NextWithContext(ctx, sig)
				observer.CompleteWithContext(ctx)
			case <-ctx.Done():
				observer.ErrorWithContext(ctx, ctx.Err())
			}
		}()

		return func() {
			signal.Stop(ch)
		}
	})
}

// Wait blocks until source emits or ctx ends.
func Wait(ctx context.Context, source ro.Observable[os.Signal]) (os.Signal, error) {
	results, _, err := ro.CollectWithContext(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ctx.Err()
	}
	return results[0], nil
}

// WaitForShutdown blocks until SIGINT or SIGTERM arrives or ctx ends.
func WaitForShutdown(ctx context.Context) (os.Signal, error) {
	return Wait(ctx, Signals(ShutdownSignals...))
}

// OnShutdown calls callback with the first shutdown signal. Unsubscribe the
// returned subscription to stop listening.
func OnShutdown(ctx context.Context, callback func(os.Signal)) ro.Subscription {
	return Signals(ShutdownSignals...).SubscribeWithContext(ctx, ro.OnNextWithContext(func(_ context.Context, sig os.Signal) {
		callback(sig)
	}))
}
