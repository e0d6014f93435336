package workout

import (
	"context"
	"sync"
)

// dispatcher fans committed state out to subscribers. Each subscriber
// receives the current snapshot on subscribe and every later publish.
// Publishing never blocks; a subscriber that stops draining its buffer
// misses intermediate states but always receives a newer one.
type dispatcher[T any] struct {
	mu          sync.Mutex
	subscribers map[int64]chan T
	nextID      int64
	bufferSize  int
}

func newDispatcher[T any]() *dispatcher[T] {
	return &dispatcher[T]{
		subscribers: make(map[int64]chan T),
		bufferSize:  16,
	}
}

func (d *dispatcher[T]) subscribe(ctx context.Context, current T) (<-chan T, func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	stream := make(chan T, d.bufferSize)
	stream <- current
	d.subscribers[id] = stream
	d.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, id)
			d.mu.Unlock()
			close(done)
		})
	}
	// The watcher must also exit on an explicit cancel, otherwise a
	// subscription made with a background context pins a goroutine for
	// the life of the process.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return stream, cancel
}

func (d *dispatcher[T]) publish(value T) {
	d.mu.Lock()
	streams := make([]chan T, 0, len(d.subscribers))
	for _, stream := range d.subscribers {
		streams = append(streams, stream)
	}
	d.mu.Unlock()

	for _, stream := range streams {
		select {
		case stream <- value:
		default:
		}
	}
}
