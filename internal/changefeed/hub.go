package changefeed

import "sync"

// Hub fans a value out to any number of listeners. Listeners may attach and
// detach at any time, including from inside a callback.
type Hub[T any] struct {
	mu        sync.RWMutex
	next      uint64
	listeners map[uint64]func(T)
}

// Listen registers fn and returns a function that removes it. The returned
// function is safe to call more than once.
func (h *Hub[T]) Listen(fn func(T)) func() {
	h.mu.Lock()
	if h.listeners == nil {
		h.listeners = make(map[uint64]func(T))
	}
	h.next++
	id := h.next
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Emit calls every listener registered at the time of the call. Listeners run
// outside the lock so they can register or remove listeners themselves.
func (h *Hub[T]) Emit(v T) {
	h.mu.RLock()
	fns := make([]func(T), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len reports the number of attached listeners.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
