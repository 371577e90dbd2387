package observe

import (
	"context"
	"time"
)

// WaitFor resolves once probe reports a value, re-probing after every batch
// the feed delivers. It gives up at the deadline and returns the zero value
// and false. Context cancellation is treated like the deadline. It never
// fails: absent elements are a normal outcome.
func WaitFor[T any](ctx context.Context, feed *Feed, deadline time.Duration, probe func() (T, bool)) (T, bool) {
	var zero T
	if v, ok := probe(); ok {
		return v, true
	}

	found := make(chan T, 1)
	sub := feed.Subscribe(Any, func([]Record) {
		if v, ok := probe(); ok {
			select {
			case found <- v:
			default:
			}
		}
	})
	defer sub.Cancel()

	// The node may have appeared between the first probe and Subscribe.
	if v, ok := probe(); ok {
		return v, true
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case v := <-found:
		return v, true
	case <-timer.C:
		return zero, false
	case <-ctx.Done():
		return zero, false
	}
}

// Contender is one side of a Race.
type Contender[T any] func(ctx context.Context) (T, bool)

// Race runs the contenders concurrently and returns the first value reported
// by any of them. The losers are canceled. If nobody reports before the
// deadline Race returns the zero value and false.
func Race[T any](ctx context.Context, deadline time.Duration, contenders ...Contender[T]) (T, bool) {
	var zero T
	if len(contenders) == 0 {
		return zero, false
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	type result struct {
		v  T
		ok bool
	}
	results := make(chan result, len(contenders))
	for _, c := range contenders {
		go func(c Contender[T]) {
			v, ok := c(ctx)
			results <- result{v, ok}
		}(c)
	}

	for range contenders {
		select {
		case r := <-results:
			if r.ok {
				return r.v, true
			}
		case <-ctx.Done():
			return zero, false
		}
	}
	return zero, false
}
