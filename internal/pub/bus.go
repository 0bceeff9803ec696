package pub

import "sync"

// Event is one terminal-transition notification fanned out to connected UI
// surfaces. Durable delivery goes through the Publisher; the bus only keeps
// in-process listeners (websocket bridges, tests) in sync without polling.
type Event struct {
	Type        string  `json:"type"`
	Address     string  `json:"address"`
	TxID        string  `json:"tx_id"`
	TokenSymbol string  `json:"token_symbol,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	PositionID  string  `json:"position_id,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	At          int64   `json:"at"`
}

const subscriberBuffer = 16

// Bus is a small in-process pub/sub. Publish never blocks: a subscriber that
// falls behind misses events rather than stalling the poller.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned cancel func must be called to
// release the subscription; the channel is closed by cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
