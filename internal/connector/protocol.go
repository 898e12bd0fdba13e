package connector

import (
	"encoding/json"
	"errors"
)

// FrameTypeEvent is the only frame type exchanged with the bridge.
const FrameTypeEvent = "event"

// Bridge event names.
const (
	EventSendMessage    = "send_message"
	EventReceiveMessage = "receive_message"
)

// ErrMalformedFrame marks a frame that could not be decoded. The connection
// itself is still usable.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is the JSON envelope for every message on the bridge, on both transports.
type Frame struct {
	Type    string          `json:"type"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
}

// OutgoingMessage is the send_message payload.
type OutgoingMessage struct {
	Text  string `json:"text"`
	User  string `json:"user"`
	Email string `json:"email"`
}

// IncomingMessage is the receive_message payload.
type IncomingMessage struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
	From string `json:"from,omitempty"`
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:    FrameTypeEvent,
		Event:   event,
		Payload: raw,
		Seq:     seq,
	}, nil
}

// DecodePayload unmarshals the frame payload into v.
func (f Frame) DecodePayload(v any) error {
	return json.Unmarshal(f.Payload, v)
}
