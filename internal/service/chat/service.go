package chat

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/wise-mentor/backend/internal/model/chat"
)

var (
	ErrBlankInput       = errors.New("message text is blank")
	ErrBusy             = errors.New("an exchange is already in progress")
	ErrNotBusy          = errors.New("no exchange in progress")
	ErrAlreadyStreaming = errors.New("an assistant reply is already streaming")
)

// Service owns the process-wide transcript and the busy flag of the one
// exchange that may be open at a time.
type Service struct {
	mu        sync.RWMutex
	messages  []chat.Message
	busy      bool
	phase     chat.Phase
	version   uint64
	streaming string // id of the open placeholder, "" when none

	subMu       sync.Mutex
	subscribers map[uint64]chan chat.Snapshot
	nextSubID   uint64

	now func() time.Time
}

// NewService bootstraps the transcript, seeded with an optional greeting.
func NewService(greeting string) *Service {
	s := &Service{
		messages:    make([]chat.Message, 0, 16),
		phase:       chat.PhaseIdle,
		subscribers: make(map[uint64]chan chat.Snapshot),
		now:         func() time.Time { return time.Now().UTC() },
	}
	if strings.TrimSpace(greeting) != "" {
		s.messages = append(s.messages, chat.Message{
			ID:        uuid.NewString(),
			Role:      chat.RoleAssistant,
			Text:      greeting,
			CreatedAt: s.now(),
		})
	}
	return s
}

// AppendUser records a user utterance and marks the exchange busy.
// Blank text and submissions while busy leave the transcript untouched.
func (s *Service) AppendUser(text string) (chat.Message, error) {
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, ErrBlankInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return chat.Message{}, ErrBusy
	}

	msg := chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleUser,
		Text:      text,
		CreatedAt: s.now(),
	}
	s.messages = append(s.messages, msg)
	s.busy = true
	s.phase = chat.PhaseAwaitingFirstChunk
	s.commitLocked()
	return msg, nil
}

// BeginAssistantPlaceholder appends the empty streaming reply for the open exchange.
func (s *Service) BeginAssistantPlaceholder() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.busy {
		return "", ErrNotBusy
	}
	if s.streaming != "" {
		return "", ErrAlreadyStreaming
	}

	msg := chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleAssistant,
		CreatedAt: s.now(),
		Streaming: true,
	}
	s.messages = append(s.messages, msg)
	s.streaming = msg.ID
	s.phase = chat.PhaseAwaitingFirstChunk
	s.commitLocked()
	return msg.ID, nil
}

// ApplyFragment replaces the placeholder text with the cumulative reply so far.
// It reports false, without mutating anything, when id is unknown or no longer streaming.
func (s *Service) ApplyFragment(id, cumulative string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 || !s.messages[idx].Streaming {
		return false
	}

	changed := s.messages[idx].Text != cumulative
	s.messages[idx].Text = cumulative
	if s.busy && s.phase != chat.PhaseStreaming {
		s.phase = chat.PhaseStreaming
		changed = true
	}
	if changed {
		s.commitLocked()
	}
	return true
}

// Finalize freezes a streaming message. Unknown or already final ids are ignored.
func (s *Service) Finalize(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finalizeLocked(id) {
		return false
	}
	s.commitLocked()
	return true
}

// FailWithError closes the exchange's placeholder and appends errorText as a new
// assistant message. Partial text already streamed stays visible; an empty
// placeholder is dropped.
func (s *Service) FailWithError(id, errorText string) chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexLocked(id); idx >= 0 && s.messages[idx].Streaming {
		if s.messages[idx].Text == "" {
			s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
			if s.streaming == id {
				s.streaming = ""
			}
		} else {
			s.finalizeLocked(id)
		}
	}

	msg := chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleAssistant,
		Text:      errorText,
		CreatedAt: s.now(),
	}
	s.messages = append(s.messages, msg)
	s.commitLocked()
	return msg
}

// IsBusy reports whether an exchange is open.
func (s *Service) IsBusy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// SetBusy toggles the exchange gate. Clearing it returns the phase to idle.
func (s *Service) SetBusy(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy == busy {
		return
	}
	s.busy = busy
	if busy {
		s.phase = chat.PhaseAwaitingFirstChunk
	} else {
		s.phase = chat.PhaseIdle
	}
	s.commitLocked()
}

// Snapshot returns a copy of the current transcript state.
func (s *Service) Snapshot() chat.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers a change feed primed with the current snapshot. Each
// mutation delivers a full snapshot; a subscriber that falls behind only keeps
// the newest one.
func (s *Service) Subscribe() (<-chan chat.Snapshot, func()) {
	ch := make(chan chat.Snapshot, 1)

	s.mu.RLock()
	ch <- s.snapshotLocked()
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.subMu.Unlock()
	s.mu.RUnlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Service) finalizeLocked(id string) bool {
	idx := s.indexLocked(id)
	if idx < 0 || !s.messages[idx].Streaming {
		return false
	}
	s.messages[idx].Streaming = false
	if s.streaming == id {
		s.streaming = ""
	}
	return true
}

func (s *Service) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) commitLocked() {
	s.version++
	s.publishLocked(s.snapshotLocked())
}

func (s *Service) snapshotLocked() chat.Snapshot {
	copied := make([]chat.Message, len(s.messages))
	copy(copied, s.messages)
	return chat.Snapshot{
		Messages: copied,
		Busy:     s.busy,
		Phase:    s.phase,
		Version:  s.version,
	}
}

// publishLocked runs under mu so subscribers observe versions in order.
// It never blocks: a full buffer has its stale snapshot swapped out.
func (s *Service) publishLocked(snap chat.Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
