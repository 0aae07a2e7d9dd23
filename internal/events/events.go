package events

import "encoding/json"

// Envelope is one frame on the wire, in either direction. Ref is echoed
// back on direct replies so a client can match them to its request.
type Envelope struct {
	Type string          `json:"type"`
	Ref  string          `json:"ref,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// New wraps data as an envelope of the given type. A nil data encodes as
// JSON null.
func New(typ string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Data: raw}, nil
}

// Decode unmarshals the envelope payload into v. An empty payload leaves
// v untouched.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// Published is a room-wide event, mirrored to spectators.
type Published struct {
	Room     string
	Envelope Envelope
}

// Bus carries room-wide events from the game loop to the spectator feed.
type Bus struct {
	Published chan Published
}

func NewBus() *Bus {
	return &Bus{
		Published: make(chan Published, 64),
	}
}

// Publish never blocks the game loop; it reports false when the event was
// dropped because the bus is full.
func (b *Bus) Publish(room string, env Envelope) bool {
	select {
	case b.Published <- Published{Room: room, Envelope: env}:
		return true
	default:
		return false
	}
}
