package bus

import (
	"sync"
	"time"
)

// Event types published by agents and the coordinator.
const (
	EventTaskStart    = "task.start"
	EventToolDispatch = "tool.dispatch"
	EventToolResult   = "tool.result"
	EventTaskDone     = "task.done"
	EventWorkflowStep = "workflow.step"
)

// Event is a single observable moment in an agent's task processing. The
// gateway fans these out to live websocket subscribers.
type Event struct {
	Type      string    `json:"type"`
	Agent     string    `json:"agent,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Workflow  string    `json:"workflow,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus distributes agent events to subscribers. Publishing never blocks: a
// subscriber that falls behind loses events rather than stalling the agent.
type Bus struct {
	mu      sync.Mutex
	subs    map[int]chan Event
	nextID  int
	bufSize int
}

func NewBus(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &Bus{
		subs:    make(map[int]chan Event),
		bufSize: bufSize,
	}
}

// Publish stamps and delivers the event to all current subscribers.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new listener and returns its channel plus a cancel
// function that closes it and removes the registration.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.bufSize)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// SubscriberCount reports the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
