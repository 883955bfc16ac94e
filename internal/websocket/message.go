package websocket

import "fmt"

// MessageKind tags a message as text or binary.
type MessageKind int

const (
	TextMessage MessageKind = iota + 1
	BinaryMessage
)

func (k MessageKind) String() string {
	switch k {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	}
	return fmt.Sprintf("MessageKind(%d)", int(k))
}

// Message is a complete application message. Text messages hold UTF-8.
type Message struct {
	Kind MessageKind
	Data []byte
}

// NewText returns a text message.
func NewText(s string) Message {
	return Message{Kind: TextMessage, Data: []byte(s)}
}

// NewBinary returns a binary message. b is not copied.
func NewBinary(b []byte) Message {
	return Message{Kind: BinaryMessage, Data: b}
}

// Text returns the payload as a string.
func (m Message) Text() string {
	return string(m.Data)
}

func (m Message) String() string {
	return fmt.Sprintf("Message{Kind=%s, Length=%d}", m.Kind, len(m.Data))
}
