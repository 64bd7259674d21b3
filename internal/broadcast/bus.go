// Package broadcast carries "content changed" notifications between façades, whether
// they live in the same process, behind the same data directory or on other instances.
package broadcast

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Source tells subscribers where a change was observed.
type Source int

const (
	// SourceFacade is a save made through a façade in this process.
	SourceFacade Source = iota
	// SourceFile is a change seen on the local store directory.
	SourceFile
	// SourceRemote is a change relayed from another instance.
	SourceRemote
)

func (s Source) String() string {
	switch s {
	case SourceFacade:
		return "facade"
	case SourceFile:
		return "file"
	case SourceRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Event announces that the value stored under Key changed. Origin identifies the
// façade that made the change, empty when unknown.
type Event struct {
	Key    string
	Origin string
	Source Source
	At     time.Time
}

// Bus fans events out to subscribers. Delivery is best effort: a subscriber whose
// buffer is full misses the event.
type Bus struct {
	logger *zap.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger, subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber. The returned cancel func closes the channel and is
// safe to call more than once.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("dropped content event", zap.String("key", event.Key), zap.Stringer("source", event.Source))
		}
	}
}
