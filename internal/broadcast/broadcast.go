// Package broadcast mirrors room-wide game events to read-only
// subscribers such as a classroom projector.
package broadcast

import (
	"sync"

	"picturebuzz/internal/events"
)

type Broadcaster struct {
	Mu      sync.Mutex
	Clients map[string]map[chan events.Envelope]bool
}

// NewBroadcaster forwards everything published on bus until the bus
// channel is closed. Subscribers of a room are released after its
// room:closed event.
func NewBroadcaster(bus *events.Bus) *Broadcaster {
	b := &Broadcaster{
		Clients: make(map[string]map[chan events.Envelope]bool),
	}
	go func() {
		for ev := range bus.Published {
			b.Broadcast(ev.Room, ev.Envelope)
			if ev.Envelope.Type == events.EvtRoomClosed {
				b.Close(ev.Room)
			}
		}
	}()
	return b
}

func (b *Broadcaster) Subscribe(room string) chan events.Envelope {
	ch := make(chan events.Envelope, 16)
	b.Mu.Lock()
	defer b.Mu.Unlock()
	if b.Clients[room] == nil {
		b.Clients[room] = make(map[chan events.Envelope]bool)
	}
	b.Clients[room][ch] = true
	return ch
}

func (b *Broadcaster) Unsubscribe(room string, ch chan events.Envelope) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	subs, ok := b.Clients[room]
	if !ok || !subs[ch] {
		return
	}
	delete(subs, ch)
	if len(subs) == 0 {
		delete(b.Clients, room)
	}
	close(ch)
}

// Close drops every subscriber of room, closing their channels.
func (b *Broadcaster) Close(room string) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	for ch := range b.Clients[room] {
		close(ch)
	}
	delete(b.Clients, room)
}

func (b *Broadcaster) Broadcast(room string, env events.Envelope) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	for ch := range b.Clients[room] {
		select {
		case ch <- env:
		default:
			// skip subscribers that fell behind
		}
	}
}

func (b *Broadcaster) Subscribers(room string) int {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	return len(b.Clients[room])
}
