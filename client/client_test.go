package voxcli

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bosley/voxchat/capture"
	"github.com/bosley/voxchat/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	startErr error
	stopErr  error
	active   bool
	payload  capture.Payload
	starts   int
}

func (f *fakeRecorder) Start(ctx context.Context) error {
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.active = true
	return nil
}

func (f *fakeRecorder) Stop() (capture.Payload, bool, error) {
	if !f.active {
		return capture.Payload{}, false, nil
	}
	f.active = false
	if f.stopErr != nil {
		return capture.Payload{}, false, f.stopErr
	}
	return f.payload, true, nil
}

func (f *fakeRecorder) Active() bool { return f.active }

// call is one request seen by the fake backend, in order.
type call struct {
	endpoint string
	arg      string
	logLen   int // conversation entries present when the call was issued
}

type fakeBackend struct {
	log *conversation.Log

	mu         sync.Mutex
	calls      []call
	transcript string
	uploadErr  error
	reply      func(string) (string, error)
}

func (f *fakeBackend) UploadAudio(ctx context.Context, payload capture.Payload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{endpoint: "upload_audio", arg: string(payload.Data), logLen: f.log.Len()})
	return f.transcript, f.uploadErr
}

func (f *fakeBackend) ProcessTranscript(ctx context.Context, transcript string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{endpoint: "process_transcript", arg: transcript, logLen: f.log.Len()})
	if f.reply == nil {
		return "hi there", nil
	}
	return f.reply(transcript)
}

func newTestCoordinator(rec *fakeRecorder) (*Coordinator, *fakeBackend, *conversation.Log) {
	log := conversation.NewLog(nil)
	backend := &fakeBackend{log: log}
	return New(context.Background(), rec, backend, log), backend, log
}

func TestToggleLabelAlternates(t *testing.T) {
	rec := &fakeRecorder{payload: capture.Payload{Data: []byte("c1c2")}}
	c, backend, _ := newTestCoordinator(rec)
	backend.transcript = "x"

	want := []string{LabelStop, LabelStart, LabelStop, LabelStart, LabelStop}
	assert.Equal(t, LabelStart, c.Label())
	for _, label := range want {
		require.NoError(t, c.Toggle(context.Background()))
		assert.Equal(t, label, c.Label())
		assert.Equal(t, label == LabelStop, c.Recording())
	}
	c.Close()
	assert.Equal(t, LabelStart, c.Label())
}

func TestToggleStartFailureKeepsLabel(t *testing.T) {
	rec := &fakeRecorder{startErr: errors.New("permission denied")}
	c, backend, log := newTestCoordinator(rec)

	assert.Error(t, c.Toggle(context.Background()))
	assert.Equal(t, LabelStart, c.Label())
	assert.Error(t, c.Toggle(context.Background()))
	assert.Equal(t, LabelStart, c.Label())
	assert.Equal(t, 2, rec.starts)

	c.Close()
	assert.Empty(t, backend.calls)
	assert.Equal(t, 0, log.Len())
}

func TestSubmitText(t *testing.T) {
	c, backend, log := newTestCoordinator(&fakeRecorder{})

	assert.True(t, c.Submit("  hello \n"))
	c.Close()

	require.Equal(t, []call{{endpoint: "process_transcript", arg: "hello", logLen: 1}}, backend.calls)

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, conversation.RoleUser, entries[0].Role)
	assert.Equal(t, "hello", entries[0].Text)
	assert.Equal(t, conversation.RoleAssistant, entries[1].Role)
	assert.Equal(t, "hi there", entries[1].Text)
}

func TestSubmitEmptyIgnored(t *testing.T) {
	c, backend, log := newTestCoordinator(&fakeRecorder{})

	for _, in := range []string{"", "   ", "\t\n"} {
		assert.False(t, c.Submit(in))
	}
	c.Close()

	assert.Empty(t, backend.calls)
	assert.Equal(t, 0, log.Len())
}

func TestVoiceTurn(t *testing.T) {
	rec := &fakeRecorder{payload: capture.Payload{Data: []byte("c1c2"), MediaType: "audio/webm"}}
	c, backend, log := newTestCoordinator(rec)
	backend.transcript = "test"

	require.NoError(t, c.Toggle(context.Background()))
	require.NoError(t, c.Toggle(context.Background()))
	c.Close()

	assert.Equal(t, []call{
		{endpoint: "upload_audio", arg: "c1c2", logLen: 0},
		// the user entry exists before the text call goes out
		{endpoint: "process_transcript", arg: "test", logLen: 1},
	}, backend.calls)

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "test", entries[0].Text)
	assert.Equal(t, conversation.RoleUser, entries[0].Role)
	assert.Equal(t, conversation.RoleAssistant, entries[1].Role)

	last, ok := c.LastRecording()
	assert.True(t, ok)
	assert.Equal(t, []byte("c1c2"), last.Data)
}

func TestUploadFailureHalts(t *testing.T) {
	rec := &fakeRecorder{payload: capture.Payload{Data: []byte("a")}}
	c, backend, log := newTestCoordinator(rec)
	backend.uploadErr = errors.New("connection refused")

	require.NoError(t, c.Toggle(context.Background()))
	require.NoError(t, c.Toggle(context.Background()))
	c.Close()

	require.Len(t, backend.calls, 1)
	assert.Equal(t, "upload_audio", backend.calls[0].endpoint)
	assert.Equal(t, 0, log.Len())
}

func TestProcessFailureLeavesUserTurn(t *testing.T) {
	c, backend, log := newTestCoordinator(&fakeRecorder{})
	backend.reply = func(string) (string, error) { return "", errors.New("timeout") }

	assert.True(t, c.Submit("hello"))
	c.Close()

	entries := log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, conversation.RoleUser, entries[0].Role)
}

func TestTurnsDoNotInterleave(t *testing.T) {
	c, backend, log := newTestCoordinator(&fakeRecorder{})
	backend.reply = func(s string) (string, error) { return "re: " + s, nil }

	for _, msg := range []string{"one", "two", "three"} {
		assert.True(t, c.Submit(msg))
	}
	c.Close()

	var got []string
	for _, e := range log.Entries() {
		got = append(got, string(e.Role)+":"+e.Text)
	}
	assert.Equal(t, []string{
		"user:one", "assistant:re: one",
		"user:two", "assistant:re: two",
		"user:three", "assistant:re: three",
	}, got)
}

func TestCloseStopsRecordingWithoutUpload(t *testing.T) {
	rec := &fakeRecorder{payload: capture.Payload{Data: []byte("a")}}
	c, backend, _ := newTestCoordinator(rec)

	require.NoError(t, c.Toggle(context.Background()))
	c.Close()

	assert.False(t, rec.active)
	assert.Empty(t, backend.calls)
	assert.ErrorIs(t, c.Toggle(context.Background()), ErrClosed)
	assert.False(t, c.Submit("late"))
	c.Close()
}
