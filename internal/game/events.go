package game

import (
	"sync"
	"time"
)

// EventType names a broadcast event fanned out to all connected observers.
type EventType string

const (
	EventGameStarted     EventType = "game_started"
	EventDayChanged      EventType = "day_changed"
	EventNewPost         EventType = "new_post"
	EventMarketUpdate    EventType = "market_update"
	EventBettingClosed   EventType = "betting_closed"
	EventAgentFollowed   EventType = "agent_followed"
	EventAgentUnfollowed EventType = "agent_unfollowed"
	EventPostReaction    EventType = "post_reaction"
	EventGameEnded       EventType = "game_ended"
)

// Event is a broadcast to every observer.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// MessageType names a targeted, single-agent delivery.
type MessageType string

const (
	MsgClueDelivered MessageType = "clue_delivered"
	MsgMention       MessageType = "mention"
	MsgFollow        MessageType = "follow_notification"
	MsgDirect        MessageType = "dm"
	MsgGroupInvite   MessageType = "group_invite"
	MsgGroupMessage  MessageType = "group_message"
)

// Message is a targeted delivery to one agent's inbox.
type Message struct {
	Type      MessageType    `json:"type"`
	To        string         `json:"to"`
	From      string         `json:"from,omitempty"`
	Content   string         `json:"content"`
	Meta      map[string]any `json:"meta,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Bus fans broadcast events out to subscribers. Slow subscribers drop
// events rather than stall the tick loop.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers an observer. The returned cancel func must be called
// to release the subscription.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, 64)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber, dropping it for any whose
// buffer is full.
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
