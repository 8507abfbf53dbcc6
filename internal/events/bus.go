package events

import (
	"sync"
	"sync/atomic"
)

// Listener receives events dispatched under a single name.
type Listener func(ev Event)

// NamedListener receives every event together with the name it was dispatched under.
type NamedListener func(name string, ev Event)

// ErrorListener receives gateway failures.
type ErrorListener func(err error)

// Bus is an in-memory callback registry keyed by event name, plus a separate
// error channel. Registration is expected at startup; emission is safe from
// many goroutines at once.
type Bus struct {
	dispatched atomic.Int64
	failed     atomic.Int64

	mu        sync.RWMutex
	named     map[string]map[int]Listener
	catchAll  map[int]NamedListener
	errs      map[int]ErrorListener
	nextSubID int
}

func NewBus() *Bus {
	return &Bus{
		named:    make(map[string]map[int]Listener),
		catchAll: make(map[int]NamedListener),
		errs:     make(map[int]ErrorListener),
	}
}

// On registers fn for events dispatched under name. The returned func removes it.
func (b *Bus) On(name string, fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSubID
	b.nextSubID++
	if b.named[name] == nil {
		b.named[name] = make(map[int]Listener)
	}
	b.named[name][id] = fn

	return func() {
		b.mu.Lock()
		delete(b.named[name], id)
		if len(b.named[name]) == 0 {
			delete(b.named, name)
		}
		b.mu.Unlock()
	}
}

// OnAny registers fn for every dispatched event regardless of name.
func (b *Bus) OnAny(fn NamedListener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSubID
	b.nextSubID++
	b.catchAll[id] = fn

	return func() {
		b.mu.Lock()
		delete(b.catchAll, id)
		b.mu.Unlock()
	}
}

// OnError registers fn on the error channel.
func (b *Bus) OnError(fn ErrorListener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSubID
	b.nextSubID++
	b.errs[id] = fn

	return func() {
		b.mu.Lock()
		delete(b.errs, id)
		b.mu.Unlock()
	}
}

// Emit calls every listener registered for name, then every OnAny listener.
// Listeners run synchronously on the caller's goroutine.
func (b *Bus) Emit(name string, ev Event) {
	b.dispatched.Add(1)

	b.mu.RLock()
	named := make([]Listener, 0, len(b.named[name]))
	for _, fn := range b.named[name] {
		named = append(named, fn)
	}
	all := make([]NamedListener, 0, len(b.catchAll))
	for _, fn := range b.catchAll {
		all = append(all, fn)
	}
	b.mu.RUnlock()

	for _, fn := range named {
		fn(ev)
	}
	for _, fn := range all {
		fn(name, ev)
	}
}

// EmitError calls every error listener with err.
func (b *Bus) EmitError(err error) {
	b.failed.Add(1)

	b.mu.RLock()
	errs := make([]ErrorListener, 0, len(b.errs))
	for _, fn := range b.errs {
		errs = append(errs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range errs {
		fn(err)
	}
}

// Stats returns how many events and errors have been emitted so far.
func (b *Bus) Stats() (dispatched, failed int64) {
	return b.dispatched.Load(), b.failed.Load()
}
