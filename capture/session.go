package capture

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Session is one recording from start to stop. Chunks arrive on the
// recorder's own thread, so the buffer is guarded.
type Session struct {
	ID uuid.UUID

	recorder Recorder
	active   bool

	mu     sync.Mutex
	chunks [][]byte
}

func newSession(recorder Recorder) *Session {
	return &Session{
		ID:       uuid.New(),
		recorder: recorder,
	}
}

func (s *Session) append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	// The recorder may reuse its buffer after the callback returns.
	owned := make([]byte, len(chunk))
	copy(owned, chunk)

	s.mu.Lock()
	s.chunks = append(s.chunks, owned)
	s.mu.Unlock()
}

// Buffered reports how many chunks are waiting to be flushed.
func (s *Session) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// finish stops the recorder, then concatenates and clears the chunk buffer.
func (s *Session) finish() (Payload, error) {
	s.active = false
	if err := s.recorder.Stop(); err != nil {
		s.mu.Lock()
		s.chunks = nil
		s.mu.Unlock()
		return Payload{}, fmt.Errorf("failed to stop recorder: %w", err)
	}

	s.mu.Lock()
	data := bytes.Join(s.chunks, nil)
	s.chunks = nil
	s.mu.Unlock()

	payload := Payload{
		Data:      data,
		MediaType: s.recorder.MediaType(),
		Filename:  s.recorder.Filename(),
	}
	if payload.MediaType == "" {
		payload.MediaType = DefaultMediaType
	}
	if payload.Filename == "" {
		payload.Filename = DefaultFilename
	}
	return payload, nil
}
