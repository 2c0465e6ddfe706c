package rules

// Message is the transport-free view of an inbound chat message. Handlers
// adapt the platform's message type into this before evaluation, keeping the
// rule engine free of client concerns.
type Message struct {
	Text string

	HasPhoto     bool
	HasVideo     bool
	HasAudio     bool
	HasSticker   bool
	HasAnimation bool

	Document *Document
	Forward  *Forward
}

type Document struct {
	FileName string
	FileSize int64
}

// Forward describes where a forwarded message originated. Nil means the
// message is not a forward.
type Forward struct {
	FromChannel bool
	FromGroup   bool
	FromBot     bool
}

func (m Message) HasAnyMedia() bool {
	return m.HasPhoto || m.HasVideo || m.HasAudio || m.HasSticker || m.HasAnimation || m.Document != nil
}
