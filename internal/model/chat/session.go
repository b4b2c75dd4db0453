package chat

// Phase tracks the lifecycle of the single open exchange.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseAwaitingFirstChunk Phase = "awaiting_first_chunk"
	PhaseStreaming          Phase = "streaming"
)

// Snapshot is the read model handed to presentation surfaces.
// Messages is a copy; mutating it does not affect the transcript.
type Snapshot struct {
	Messages []Message `json:"messages"`
	Busy     bool      `json:"busy"`
	Phase    Phase     `json:"phase"`
	Version  uint64    `json:"version"`
}

// Last returns the newest message, if any.
func (s Snapshot) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Find looks a message up by id.
func (s Snapshot) Find(id string) (Message, bool) {
	for _, msg := range s.Messages {
		if msg.ID == id {
			return msg, true
		}
	}
	return Message{}, false
}

// StreamingCount reports how many messages are still receiving fragments.
func (s Snapshot) StreamingCount() int {
	count := 0
	for _, msg := range s.Messages {
		if msg.Streaming {
			count++
		}
	}
	return count
}
