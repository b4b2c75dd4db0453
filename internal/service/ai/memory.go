package ai

import "sync"

// turn is one completed exchange remembered for later context.
type turn struct {
	User      string
	Assistant string
}

// memory keeps completed turns for the process lifetime. maxTurns <= 0 keeps
// everything.
type memory struct {
	mu       sync.Mutex
	turns    []turn
	maxTurns int
}

func newMemory(maxTurns int) *memory {
	return &memory{maxTurns: maxTurns}
}

func (m *memory) record(user, assistant string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, turn{User: user, Assistant: assistant})
	if m.maxTurns > 0 && len(m.turns) > m.maxTurns {
		m.turns = append([]turn(nil), m.turns[len(m.turns)-m.maxTurns:]...)
	}
}

func (m *memory) snapshot() []turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]turn(nil), m.turns...)
}
