package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

const (
	DefaultMediaType = "audio/webm"
	DefaultFilename  = "recorded_audio.webm"
)

var ErrAlreadyRecording = errors.New("capture session already active")

// Recorder is an acquired input device. Start begins delivering encoded
// chunks to onData; Stop ends capture and must deliver any buffered data
// through onData before it returns.
type Recorder interface {
	Start(onData func([]byte)) error
	Stop() error
	// MediaType and Filename describe the chunks the recorder produces.
	// Empty values fall back to DefaultMediaType and DefaultFilename.
	MediaType() string
	Filename() string
}

// Opener acquires the microphone. A denied or missing device is an error.
type Opener interface {
	Open(ctx context.Context) (Recorder, error)
}

// Payload is the single audio object assembled when a session stops.
type Payload struct {
	Data      []byte
	MediaType string
	Filename  string
}

// Capture owns at most one Session at a time.
type Capture struct {
	opener Opener

	mu      sync.Mutex
	session *Session
}

func New(opener Opener) *Capture {
	return &Capture{opener: opener}
}

// Start acquires the microphone and begins a new session. On failure no
// session exists afterwards and Active reports false.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return ErrAlreadyRecording
	}

	recorder, err := c.opener.Open(ctx)
	if err != nil {
		slog.Error("Error accessing microphone", "error", err)
		return fmt.Errorf("failed to open recorder: %w", err)
	}

	session := newSession(recorder)
	if err := recorder.Start(session.append); err != nil {
		slog.Error("Error starting recorder", "error", err)
		return fmt.Errorf("failed to start recorder: %w", err)
	}
	session.active = true
	c.session = session

	slog.Info("Recording started", "sessionID", session.ID)
	return nil
}

// Stop finalizes the active session and returns its payload. It is a no-op
// returning ok=false when nothing is recording.
func (c *Capture) Stop() (payload Payload, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session := c.session
	if session == nil || !session.active {
		return Payload{}, false, nil
	}
	c.session = nil

	payload, err = session.finish()
	if err != nil {
		slog.Error("Error stopping recorder", "error", err, "sessionID", session.ID)
		return Payload{}, false, err
	}

	slog.Info("Recording stopped",
		"sessionID", session.ID,
		"bytes", len(payload.Data),
		"mediaType", payload.MediaType)
	return payload, true, nil
}

func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && c.session.active
}
