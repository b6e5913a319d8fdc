package auth

import "sync"

// Watcher holds the current principal and notifies subscribers when it
// changes. A nil principal means signed out.
type Watcher struct {
	mu      sync.Mutex
	current *Principal
	subs    map[*Subscription]struct{}
}

// NewWatcher starts with initial, which may be nil.
func NewWatcher(initial *Principal) *Watcher {
	return &Watcher{current: initial, subs: make(map[*Subscription]struct{})}
}

// Current returns the principal at this instant.
func (w *Watcher) Current() *Principal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Set replaces the principal. It never blocks on slow subscribers: each
// subscription holds only the latest value.
func (w *Watcher) Set(p *Principal) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = p
	for s := range w.subs {
		s.offer(p)
	}
}

// Subscribe registers for changes. The current value is delivered first.
func (w *Watcher) Subscribe() *Subscription {
	s := &Subscription{ch: make(chan *Principal, 1), w: w}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs[s] = struct{}{}
	s.offer(w.current)
	return s
}

// Subscription is one listener on a Watcher.
type Subscription struct {
	ch   chan *Principal
	w    *Watcher
	once sync.Once
}

// Updates yields principals until Unsubscribe closes it.
func (s *Subscription) Updates() <-chan *Principal {
	return s.ch
}

// Unsubscribe detaches the listener and closes Updates. Safe to call twice.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.w.mu.Lock()
		defer s.w.mu.Unlock()
		delete(s.w.subs, s)
		close(s.ch)
	})
}

// offer must be called with the watcher lock held.
func (s *Subscription) offer(p *Principal) {
	select {
	case <-s.ch:
	default:
	}
	s.ch <- p
}
