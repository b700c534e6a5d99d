// Package notifier provides a topic broadcast mechanism for SSE updates.
package notifier

import (
	"slices"
	"sync"
)

// Topic names what changed.
type Topic string

// Topics published by the server.
const (
	// TopicExamples is published after the example catalog was reloaded.
	TopicExamples Topic = "examples"
	// TopicShutdown is published once before the server stops.
	TopicShutdown Topic = "shutdown"
)

// Notifier broadcasts topics to subscribed listeners. Listeners receive
// the topic that changed and should re-read the state they render.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Topic][]Topic
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan Topic][]Topic),
	}
}

// Subscribe returns a channel that receives the given topics, or every
// topic when none are given. The caller must call Unsubscribe when done.
func (n *Notifier) Subscribe(topics ...Topic) chan Topic {
	ch := make(chan Topic, 1)
	n.mu.Lock()
	n.listeners[ch] = topics
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Topic) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends topic to every interested listener.
// Non-blocking: if a listener's channel is full, the ping is skipped.
func (n *Notifier) Broadcast(topic Topic) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch, topics := range n.listeners {
		if len(topics) > 0 && !slices.Contains(topics, topic) {
			continue
		}
		select {
		case ch <- topic:
		default:
			// Channel full, listener will catch up on next broadcast
		}
	}
}

// Len returns the number of subscribed listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
