package application

import "context"

// Subscription delivers collection snapshots to one observer. The
// context passed at Subscribe time doubles as the liveness token: once
// it is done the coordinator stops delivering and drops the subscriber,
// so torn-down screens never re-implement a "still mounted" check.
type Subscription[T any] struct {
	ctx context.Context
	ch  chan []T
}

func newSubscription[T any](ctx context.Context) *Subscription[T] {
	return &Subscription[T]{
		ctx: ctx,
		ch:  make(chan []T, 1),
	}
}

// Updates returns the channel snapshots arrive on. Only the latest
// undelivered snapshot is retained.
func (s *Subscription[T]) Updates() <-chan []T {
	return s.ch
}

// alive reports whether the subscriber's context is still live.
func (s *Subscription[T]) alive() bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
		return true
	}
}

// deliver hands a snapshot to the subscriber without ever blocking the
// publisher: an undelivered older snapshot is replaced by the newer one.
func (s *Subscription[T]) deliver(records []T) {
	for {
		select {
		case s.ch <- records:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}
