package voxcli

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/bosley/voxchat/capture"
	"github.com/bosley/voxchat/conversation"
)

const (
	LabelStart = "Start Recording"
	LabelStop  = "Stop Recording"

	turnQueueSize = 16
)

var ErrClosed = errors.New("coordinator closed")

// Recorder is the capture side of the coordinator. *capture.Capture
// satisfies it.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (capture.Payload, bool, error)
	Active() bool
}

// Backend is the pair of endpoints a turn goes through. *transport.Client
// satisfies it.
type Backend interface {
	UploadAudio(ctx context.Context, payload capture.Payload) (string, error)
	ProcessTranscript(ctx context.Context, transcript string) (string, error)
}

// A turn carries either typed text or a recording still to be transcribed.
type turn struct {
	text  string
	audio *capture.Payload
}

// Coordinator wires the recording toggle and the text entry to the
// backend and the conversation log. Turns run one at a time in the order
// they were triggered, so a user entry is always followed by its own reply.
type Coordinator struct {
	recorder Recorder
	backend  Backend
	log      *conversation.Log

	mu        sync.Mutex
	label     string
	closed    bool
	lastAudio *capture.Payload

	turns chan turn
	done  chan struct{}
}

// New starts the turn worker. Close must be called to stop it.
func New(ctx context.Context, recorder Recorder, backend Backend, log *conversation.Log) *Coordinator {
	c := &Coordinator{
		recorder: recorder,
		backend:  backend,
		log:      log,
		label:    LabelStart,
		turns:    make(chan turn, turnQueueSize),
		done:     make(chan struct{}),
	}
	go c.worker(ctx)
	return c
}

// Label is what the toggle currently offers to do next.
func (c *Coordinator) Label() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.label
}

func (c *Coordinator) Recording() bool {
	return c.recorder.Active()
}

// Toggle starts recording when idle and stops it when recording. The label
// only flips to LabelStop once capture has actually started. A finished
// recording is queued for transcription.
func (c *Coordinator) Toggle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if !c.recorder.Active() {
		if err := c.recorder.Start(ctx); err != nil {
			return err
		}
		c.label = LabelStop
		return nil
	}

	payload, ok, err := c.recorder.Stop()
	c.label = LabelStart
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	c.lastAudio = &payload
	c.turns <- turn{audio: &payload}
	return nil
}

// Submit queues typed text as a user turn. Empty or whitespace-only input
// is ignored and reported as false.
func (c *Coordinator) Submit(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.turns <- turn{text: text}
	return true
}

// LastRecording returns the most recent stopped recording, if any.
func (c *Coordinator) LastRecording() (capture.Payload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastAudio == nil {
		return capture.Payload{}, false
	}
	return *c.lastAudio, true
}

// Close stops a recording in progress without uploading it, then waits for
// queued turns to finish.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.closed = true
	if c.recorder.Active() {
		if _, _, err := c.recorder.Stop(); err != nil {
			slog.Error("Failed to stop recording on close", "error", err)
		}
		c.label = LabelStart
	}
	close(c.turns)
	c.mu.Unlock()

	<-c.done
}

func (c *Coordinator) worker(ctx context.Context) {
	defer close(c.done)
	for t := range c.turns {
		if ctx.Err() != nil {
			slog.Debug("Dropping queued turn after shutdown")
			continue
		}
		c.runTurn(ctx, t)
	}
}

func (c *Coordinator) runTurn(ctx context.Context, t turn) {
	text := t.text
	if t.audio != nil {
		transcript, err := c.backend.UploadAudio(ctx, *t.audio)
		if err != nil {
			slog.Error("Error uploading audio", "error", err)
			return
		}
		text = transcript
	}

	c.log.ShowUserTurn(text)

	reply, err := c.backend.ProcessTranscript(ctx, text)
	if err != nil {
		slog.Error("Error processing transcript", "error", err)
		return
	}

	c.log.ShowAssistantTurn(reply)
}
