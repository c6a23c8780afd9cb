package liveevents

import (
	"errors"
	"strings"
	"sync"

	"github.com/smallbiznis/lubeqc/internal/consumption/domain"
)

// TopicConsumption carries record list changes.
const TopicConsumption = "consumption"

const (
	DefaultBufferSize       = 50
	DefaultSubscriberBuffer = 16
)

// Hub fans change events out to in-process subscribers (SSE streams). Slow
// subscribers miss events rather than block publishers.
type Hub struct {
	mu               sync.RWMutex
	topics           map[string]*topic
	bufferSize       int
	subscriberBuffer int
}

type topic struct {
	mu     sync.Mutex
	buffer []domain.ChangeEvent
	subs   map[uint64]chan domain.ChangeEvent
	nextID uint64
}

type Subscription struct {
	hub   *Hub
	topic string
	id    uint64
	ch    chan domain.ChangeEvent
	once  sync.Once
}

func NewHub() *Hub {
	return &Hub{
		topics:           make(map[string]*topic),
		bufferSize:       DefaultBufferSize,
		subscriberBuffer: DefaultSubscriberBuffer,
	}
}

// Publish records event in the topic backlog and delivers it to subscribers.
func (h *Hub) Publish(name string, event domain.ChangeEvent) {
	if h == nil {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}

	t := h.ensureTopic(name)
	t.mu.Lock()
	t.buffer = append(t.buffer, event)
	if len(t.buffer) > h.bufferSize {
		t.buffer = t.buffer[len(t.buffer)-h.bufferSize:]
	}
	subs := make([]chan domain.ChangeEvent, 0, len(t.subs))
	for _, ch := range t.subs {
		subs = append(subs, ch)
	}
	t.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe returns a live subscription and a copy of the recent backlog.
func (h *Hub) Subscribe(name string) (*Subscription, []domain.ChangeEvent, error) {
	if h == nil {
		return nil, nil, errors.New("hub_unavailable")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, errors.New("invalid_topic")
	}

	t := h.ensureTopic(name)
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	ch := make(chan domain.ChangeEvent, h.subscriberBuffer)
	t.subs[id] = ch
	backlog := append([]domain.ChangeEvent(nil), t.buffer...)
	t.mu.Unlock()

	return &Subscription{hub: h, topic: name, id: id, ch: ch}, backlog, nil
}

// Subscribers reports the number of live subscriptions on a topic.
func (h *Hub) Subscribers(name string) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	t := h.topics[name]
	h.mu.RUnlock()
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

func (h *Hub) ensureTopic(name string) *topic {
	h.mu.RLock()
	current := h.topics[name]
	h.mu.RUnlock()
	if current != nil {
		return current
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	current = h.topics[name]
	if current == nil {
		current = &topic{subs: make(map[uint64]chan domain.ChangeEvent)}
		h.topics[name] = current
	}
	return current
}

func (h *Hub) unsubscribe(name string, id uint64) {
	h.mu.RLock()
	t := h.topics[name]
	h.mu.RUnlock()
	if t == nil {
		return
	}

	t.mu.Lock()
	delete(t.subs, id)
	t.mu.Unlock()
}

func (s *Subscription) Events() <-chan domain.ChangeEvent {
	if s == nil {
		return nil
	}
	return s.ch
}

func (s *Subscription) Close() {
	if s == nil || s.hub == nil {
		return
	}
	s.once.Do(func() {
		s.hub.unsubscribe(s.topic, s.id)
	})
}
