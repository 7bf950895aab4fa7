// Package hub fans viewer updates out to websocket clients: annotated
// frames as binary messages and session status as JSON.
package hub

import "encoding/json"

// Kind selects the websocket message type a Message is written with.
type Kind int

const (
	// KindStatus is a JSON status document, written as a text message.
	KindStatus Kind = iota
	// KindFrame is an annotated JPEG frame, written as a binary message.
	KindFrame
)

func (k Kind) String() string {
	if k == KindFrame {
		return "frame"
	}
	return "status"
}

// Message is one update queued for viewers.
type Message struct {
	Kind Kind
	Data []byte
}

// StatusMessage encodes v as a status update.
func StatusMessage(v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: KindStatus, Data: data}, nil
}

// FrameMessage wraps an encoded JPEG.
func FrameMessage(jpeg []byte) Message {
	return Message{Kind: KindFrame, Data: jpeg}
}
