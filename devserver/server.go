package devserv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

const (
	maxUploadBytes   = 32 << 20
	defaultQueueSize = 100
)

// Configuration for the development backend
type Config struct {
	// HTTP server address
	Addr string

	// Certificate files for TLS; plain HTTP when empty
	CertFile string
	KeyFile  string

	// Base directory uploads are stored under
	RecordingsDir string

	// Number of transcription workers
	Workers int

	// Uploads waiting for a worker before new ones are refused
	QueueSize int
}

// Server is a stand-in for the voice chat backend: it stores uploads,
// transcribes them and answers transcripts through a Responder, a
// simulated vehicle unless told otherwise.
type Server struct {
	config      Config
	transcriber Transcriber
	responder   Responder

	mu             sync.Mutex
	transcriptions []TranscriptionMessage

	chatMu  sync.Mutex
	history []ChatMessage

	// Processing queue
	queue      chan TranscriptionJob
	workers    sync.WaitGroup
	jobCtx     context.Context
	cancelJobs context.CancelFunc
	stop       sync.Once

	server *http.Server
}

// New returns a server. Nil transcriber and responder default to
// CannedTranscriber and a fresh VehicleController.
func New(cfg Config, transcriber Transcriber, responder Responder) *Server {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if transcriber == nil {
		transcriber = CannedTranscriber{}
	}
	if responder == nil {
		responder = NewVehicleController()
	}

	s := &Server{
		config:      cfg,
		transcriber: transcriber,
		responder:   responder,
		history:     newHistory(),
		queue:       make(chan TranscriptionJob, cfg.QueueSize),
	}
	s.jobCtx, s.cancelJobs = context.WithCancel(context.Background())
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/upload_audio", s.handleUploadAudio).Methods(http.MethodPost)
	router.HandleFunc("/process_transcript", s.handleProcessTranscript).Methods(http.MethodPost)
	router.HandleFunc("/api/transcriptions", s.handleListTranscriptions).Methods(http.MethodGet)
	router.HandleFunc("/api/history", s.handleHistory).Methods(http.MethodGet)
	router.HandleFunc("/api/vehicle", s.handleVehicle).Methods(http.MethodGet)

	return router
}

// StartWorkers launches the transcription pool. Start calls it; tests that
// drive Handler directly call it themselves. Workers outlive request
// handlers and are only released by Stop.
func (s *Server) StartWorkers() {
	for i := 0; i < s.config.Workers; i++ {
		s.workers.Add(1)
		go s.worker(s.jobCtx)
	}
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.StartWorkers()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Development backend listening", "address", s.config.Addr, "tls", s.config.CertFile != "")
		var err error
		if s.config.CertFile != "" {
			err = s.server.ListenAndServeTLS(s.config.CertFile, s.config.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.Stop(context.Background())
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	return s.Stop(context.Background())
}

// Stop gracefully shuts down the server and its workers.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stop.Do(func() {
		if shutdownErr := s.server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("failed to stop HTTP server: %w", shutdownErr)
		}

		// No handlers are left to enqueue, so the queue can close
		close(s.queue)
		defer s.cancelJobs()

		done := make(chan struct{})
		go func() {
			s.workers.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("shutdown timed out")
		}
	})
	return err
}

func (s *Server) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("audio")
	if err != nil {
		slog.Warn("Upload without audio field", "error", err, "remoteAddr", r.RemoteAddr)
		http.Error(w, "missing audio field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read upload", http.StatusBadRequest)
		return
	}

	path, err := s.saveRecording(data, header.Filename)
	if err != nil {
		slog.Error("Failed to store upload", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	slog.Info("Received audio upload",
		"file", path,
		"bytes", len(data),
		"contentType", header.Header.Get("Content-Type"))

	job := TranscriptionJob{
		FilePath:  path,
		Timestamp: time.Now(),
		result:    make(chan jobResult, 1),
	}

	select {
	case s.queue <- job:
	default:
		slog.Warn("Job queue is full", "file", path)
		s.discardRecording(path)
		http.Error(w, "transcription queue is full", http.StatusServiceUnavailable)
		return
	}

	select {
	case res := <-job.result:
		if res.err != nil {
			slog.Error("Failed to process transcription job", "error", res.err, "file", path)
			http.Error(w, "transcription failed", http.StatusBadGateway)
			return
		}
		writeJSON(w, uploadResponse{Transcript: res.text})
	case <-r.Context().Done():
		slog.Debug("Client went away before transcription finished", "file", path)
	}
}

func (s *Server) handleProcessTranscript(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	slog.Debug("Processing transcript", "transcript", req.Transcript)
	writeJSON(w, processResponse{Response: s.respond(req.Transcript)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.History())
}

// handleVehicle reports the simulated car's state.
func (s *Server) handleVehicle(w http.ResponseWriter, r *http.Request) {
	vehicle, ok := s.responder.(*VehicleController)
	if !ok {
		http.Error(w, "No vehicle attached", http.StatusNotFound)
		return
	}
	writeJSON(w, vehicle.State())
}

// handleListTranscriptions returns today's transcriptions, oldest first.
func (s *Server) handleListTranscriptions(w http.ResponseWriter, r *http.Request) {
	currentDate := getCurrentDateDir()

	s.mu.Lock()
	today := make([]TranscriptionMessage, 0, len(s.transcriptions))
	for _, msg := range s.transcriptions {
		if msg.Timestamp.Format("20060102") == currentDate {
			today = append(today, msg)
		}
	}
	s.mu.Unlock()

	writeJSON(w, today)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
