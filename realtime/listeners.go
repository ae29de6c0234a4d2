package realtime

import "sync"

// listenerSet keeps callbacks in registration order. The zero value is ready.
type listenerSet[T any] struct {
	mu      sync.Mutex
	next    uint64
	entries []listenerEntry[T]
}

type listenerEntry[T any] struct {
	id uint64
	fn func(T)
}

// add registers fn and returns a func that removes exactly this registration.
func (s *listenerSet[T]) add(fn func(T)) func() {
	s.mu.Lock()
	s.next++
	id := s.next
	s.entries = append(s.entries, listenerEntry[T]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *listenerSet[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.id == id {
			// full slice expression forces a copy so in-flight snapshots stay intact
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return
		}
	}
}

func (s *listenerSet[T]) emit(v T) {
	s.emitWhile(v, nil)
}

// emitWhile stops before the next listener once ok reports false.
func (s *listenerSet[T]) emitWhile(v T, ok func() bool) {
	s.mu.Lock()
	fns := make([]func(T), len(s.entries))
	for i, e := range s.entries {
		fns[i] = e.fn
	}
	s.mu.Unlock()

	for _, fn := range fns {
		if ok != nil && !ok() {
			return
		}
		fn(v)
	}
}

func (s *listenerSet[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
