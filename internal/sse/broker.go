package sse

import (
	"context"
	"sync"

	"ms-attendance/internal/models"
)

const clientBuffer = 16

// Broker fans notifications out to the stream clients of each event.
type Broker struct {
	mu      sync.RWMutex
	clients map[string][]chan models.Notification
}

func NewBroker() *Broker {
	return &Broker{
		clients: make(map[string][]chan models.Notification),
	}
}

// Subscribe registers a client for eventID. The channel is closed once ctx is done.
func (b *Broker) Subscribe(ctx context.Context, eventID string) <-chan models.Notification {
	ch := make(chan models.Notification, clientBuffer)

	b.mu.Lock()
	b.clients[eventID] = append(b.clients[eventID], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(eventID, ch)
	}()

	return ch
}

// Publish delivers n to every subscriber of its event. Slow clients miss messages
// rather than block the publisher.
func (b *Broker) Publish(n models.Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.clients[n.EventID] {
		select {
		case ch <- n:
		default:
		}
	}
}

func (b *Broker) remove(eventID string, ch chan models.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients := b.clients[eventID]
	for i, c := range clients {
		if c == ch {
			b.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(b.clients[eventID]) == 0 {
		delete(b.clients, eventID)
	}
}

func (b *Broker) ClientCount(eventID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[eventID])
}
