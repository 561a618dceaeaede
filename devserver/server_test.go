package devserv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bosley/voxchat/capture"
	"github.com/bosley/voxchat/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	return s.text, s.err
}

func newTestServer(t *testing.T, transcriber Transcriber) (*Server, *httptest.Server) {
	t.Helper()
	s := New(Config{RecordingsDir: t.TempDir(), Workers: 1}, transcriber, nil)
	s.StartWorkers()

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		require.NoError(t, s.Stop(context.Background()))
	})
	return s, srv
}

func TestRoundTripWithTransportClient(t *testing.T) {
	s, srv := newTestServer(t, stubTranscriber{text: "test"})

	client, err := transport.New(transport.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	transcript, err := client.UploadAudio(context.Background(), capture.Payload{Data: []byte("c1c2")})
	require.NoError(t, err)
	assert.Equal(t, "test", transcript)

	reply, err := client.ProcessTranscript(context.Background(), transcript)
	require.NoError(t, err)
	assert.Equal(t, "You said: test", reply)

	reply, err = client.ProcessTranscript(context.Background(), "Lock the doors")
	require.NoError(t, err)
	assert.Equal(t, "All doors have been locked", reply)

	// the upload landed under recordings/YYYYMMDD/<id>/ with its extension
	matches, err := filepath.Glob(filepath.Join(s.config.RecordingsDir, getCurrentDateDir(), "*", "audio_*.webm"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("c1c2"), data)
}

func TestListTranscriptions(t *testing.T) {
	_, srv := newTestServer(t, stubTranscriber{text: "first"})

	client, err := transport.New(transport.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = client.UploadAudio(context.Background(), capture.Payload{Data: []byte("a")})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/transcriptions")
	require.NoError(t, err)
	defer resp.Body.Close()

	var msgs []TranscriptionMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "first", msgs[0].Text)
	assert.True(t, strings.HasSuffix(msgs[0].AudioFile, ".webm"))
}

func TestUploadWithoutAudioField(t *testing.T) {
	_, srv := newTestServer(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/upload_audio", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTranscriptionFailure(t *testing.T) {
	_, srv := newTestServer(t, stubTranscriber{err: errors.New("whisper crashed")})

	client, err := transport.New(transport.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.UploadAudio(context.Background(), capture.Payload{Data: []byte("a")})
	assert.Error(t, err)
}

func TestProcessTranscriptBadBody(t *testing.T) {
	_, srv := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/process_transcript", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCannedTranscriber(t *testing.T) {
	text, err := CannedTranscriber{}.Transcribe(context.Background(), "/x/audio_1.wav")
	require.NoError(t, err)
	assert.Equal(t, "[mock transcription of audio_1.wav]", text)
}

func TestExtractText(t *testing.T) {
	out := "\n  hello there  \n[BLANK_AUDIO]\n\ngeneral kenobi\n"
	assert.Equal(t, "hello there general kenobi", extractText(out))
	assert.Equal(t, "", extractText("[BLANK_AUDIO]\n"))
}

func TestUploadQueueFullDiscardsRecording(t *testing.T) {
	dir := t.TempDir()
	s := New(Config{RecordingsDir: dir, QueueSize: 1}, nil, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		require.NoError(t, s.Stop(context.Background()))
	})

	// no workers are running, so one waiting job fills the queue
	s.queue <- TranscriptionJob{FilePath: "waiting.webm", result: make(chan jobResult, 1)}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", "recorded_audio.webm")
	require.NoError(t, err)
	_, err = part.Write([]byte("c1c2"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/upload_audio", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	uploads, err := filepath.Glob(filepath.Join(dir, getCurrentDateDir(), "*"))
	require.NoError(t, err)
	assert.Empty(t, uploads)
}

func TestHistoryStartsWithSystemPrompt(t *testing.T) {
	_, srv := newTestServer(t, nil)

	client, err := transport.New(transport.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = client.ProcessTranscript(context.Background(), "turn on the lights")
	require.NoError(t, err)
	_, err = client.ProcessTranscript(context.Background(), "hello")
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/history")
	require.NoError(t, err)
	defer resp.Body.Close()

	var history []ChatMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history, 5)
	assert.Equal(t, roleSystem, history[0].Role)
	assert.Equal(t, systemPrompt, history[0].Content)
	assert.Equal(t, ChatMessage{Role: roleUser, Content: "turn on the lights"}, ChatMessage{Role: history[1].Role, Content: history[1].Content})
	assert.Equal(t, "Vehicle lights have been turned on", history[2].Content)
	assert.Equal(t, roleAssistant, history[2].Role)
	assert.Equal(t, "hello", history[3].Content)
	assert.Equal(t, "You said: hello", history[4].Content)
}

func TestVehicleStateEndpoint(t *testing.T) {
	_, srv := newTestServer(t, nil)

	client, err := transport.New(transport.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	for _, cmd := range []string{"lock the doors", "start the engine"} {
		_, err = client.ProcessTranscript(context.Background(), cmd)
		require.NoError(t, err)
	}

	resp, err := http.Get(srv.URL + "/api/vehicle")
	require.NoError(t, err)
	defer resp.Body.Close()

	var state VehicleState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, VehicleState{DoorsLocked: true, EngineOn: true}, state)
}

type echoResponder struct{}

func (echoResponder) Respond(transcript string) string { return transcript }

func TestCustomResponder(t *testing.T) {
	s := New(Config{RecordingsDir: t.TempDir()}, nil, echoResponder{})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		require.NoError(t, s.Stop(context.Background()))
	})

	client, err := transport.New(transport.Config{BaseURL: srv.URL})
	require.NoError(t, err)
	reply, err := client.ProcessTranscript(context.Background(), "start the engine")
	require.NoError(t, err)
	assert.Equal(t, "start the engine", reply)

	resp, err := http.Get(srv.URL + "/api/vehicle")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
