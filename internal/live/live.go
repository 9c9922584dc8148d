// Package live re-runs queries whenever the tables behind them change and
// pushes each new result to the subscriber.
//
// Every subscription is re-run on any table change; at this data size that is
// simpler than tracking which tables a query reads. Changes that arrive while
// a query is running are folded into a single follow-up run.
package live

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/alextreichler/bekasberkah/internal/changefeed"
)

// Source is anything that announces table changes, typically the store's feed.
type Source interface {
	Listen(fn func(changefeed.Change)) (cancel func())
}

// Observer receives query results. Either callback may be nil.
type Observer[T any] struct {
	OnNext  func(T)
	OnError func(error)
}

type Engine struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
	stop   func()
}

func NewEngine(src Source) *Engine {
	e := &Engine{subs: make(map[*Subscription]struct{})}
	e.stop = src.Listen(e.notify)
	return e
}

func (e *Engine) notify(changefeed.Change) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for sub := range e.subs {
		sub.wake()
	}
}

// Len reports the number of active subscriptions.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// Close stops listening for changes and ends every subscription.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	subs := make([]*Subscription, 0, len(e.subs))
	for sub := range e.subs {
		subs = append(subs, sub)
	}
	e.mu.Unlock()

	e.stop()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (e *Engine) add(sub *Subscription) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.subs[sub] = struct{}{}
	return true
}

func (e *Engine) remove(sub *Subscription) {
	e.mu.Lock()
	delete(e.subs, sub)
	e.mu.Unlock()
}

type Subscription struct {
	engine  *Engine
	pending chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	closed  atomic.Bool
	once    sync.Once
	done    chan struct{}
}

// Subscribe runs query once right away and again after every table change,
// passing each result to obs.OnNext. Query errors, and panics, go to
// obs.OnError and leave the subscription running. Results are delivered from
// a dedicated goroutine, one at a time.
func Subscribe[T any](e *Engine, query func(ctx context.Context) (T, error), obs Observer[T]) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		engine:  e,
		pending: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	sub.wake()

	if !e.add(sub) {
		sub.closed.Store(true)
		cancel()
		close(sub.done)
		return sub
	}

	run := func() {
		v, err := safeQuery(sub.ctx, query)
		if sub.closed.Load() {
			return
		}
		if err != nil {
			if obs.OnError != nil {
				obs.OnError(err)
			}
			return
		}
		if obs.OnNext != nil {
			obs.OnNext(v)
		}
	}
	go sub.loop(run)
	return sub
}

// safeQuery turns a panic inside query into an error so one broken query
// cannot take the process down.
func safeQuery[T any](ctx context.Context, query func(ctx context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("live query panicked: %v", r)
		}
	}()
	return query(ctx)
}

// wake schedules a re-run; a run already scheduled absorbs it.
func (s *Subscription) wake() {
	select {
	case s.pending <- struct{}{}:
	default:
	}
}

func (s *Subscription) loop(run func()) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.pending:
			if s.closed.Load() {
				return
			}
			run()
		}
	}
}

// Unsubscribe stops the subscription. It is idempotent and may be called from
// inside a callback. A delivery racing with the call from another goroutine
// may still land once; later changes are never delivered.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
		s.engine.remove(s)
	})
}

// Done is closed once the delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
