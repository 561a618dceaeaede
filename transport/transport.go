package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bosley/voxchat/capture"
	"github.com/go-resty/resty/v2"
)

const (
	UploadAudioPath       = "/upload_audio"
	ProcessTranscriptPath = "/process_transcript"

	// AudioField is the multipart field the backend reads the recording from.
	AudioField = "audio"

	defaultTimeout = 60 * time.Second
)

var ErrMalformedResponse = errors.New("malformed response")

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	Insecure bool   // skip certificate verification
	CertFile string // pin a server certificate
}

// Client talks to the transcription and processing endpoints. Each call is a
// single request; there is no retry.
type Client struct {
	http *resty.Client
}

type transcriptRequest struct {
	Transcript string `json:"transcript"`
}

type transcriptResponse struct {
	Transcript *string `json:"transcript"`
}

type processResponse struct {
	Response *string `json:"response"`
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	h := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	if cfg.Token != "" {
		h.SetAuthToken(cfg.Token)
	}

	if cfg.Insecure || cfg.CertFile != "" {
		tlsConfig, err := createTLSConfig(cfg.Insecure, cfg.CertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		h.SetTLSClientConfig(tlsConfig)
	}

	return &Client{http: h}, nil
}

// UploadAudio sends one recording and returns the backend's transcript.
func (c *Client) UploadAudio(ctx context.Context, payload capture.Payload) (string, error) {
	mediaType := payload.MediaType
	if mediaType == "" {
		mediaType = capture.DefaultMediaType
	}
	filename := payload.Filename
	if filename == "" {
		filename = capture.DefaultFilename
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField(AudioField, filename, mediaType, bytes.NewReader(payload.Data)).
		Post(UploadAudioPath)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("upload HTTP error %d: %s", resp.StatusCode(), resp.String())
	}

	var out transcriptResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Transcript == nil {
		return "", fmt.Errorf("%w: missing transcript field", ErrMalformedResponse)
	}

	slog.Debug("Audio transcribed",
		"bytes", len(payload.Data),
		"mediaType", mediaType,
		"duration", resp.Time())
	return *out.Transcript, nil
}

// ProcessTranscript sends a transcript and returns the assistant's reply.
func (c *Client) ProcessTranscript(ctx context.Context, transcript string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(transcriptRequest{Transcript: transcript}).
		Post(ProcessTranscriptPath)
	if err != nil {
		return "", fmt.Errorf("process request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("process HTTP error %d: %s", resp.StatusCode(), resp.String())
	}

	var out processResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Response == nil {
		return "", fmt.Errorf("%w: missing response field", ErrMalformedResponse)
	}

	slog.Debug("Transcript processed", "duration", resp.Time())
	return *out.Response, nil
}

func createTLSConfig(insecureMode bool, serverCertFile string) (*tls.Config, error) {
	if insecureMode {
		slog.Warn("Running in insecure mode. This should not be used in production!")
		return &tls.Config{InsecureSkipVerify: true}, nil
	}

	// Load the server's certificate
	certPEM, err := os.ReadFile(serverCertFile)
	if err != nil {
		return nil, err
	}

	certPool := x509.NewCertPool()
	if !certPool.AppendCertsFromPEM(certPEM) {
		return nil, fmt.Errorf("failed to append server certificate")
	}

	return &tls.Config{
		RootCAs: certPool,
	}, nil
}
