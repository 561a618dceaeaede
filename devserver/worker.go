package devserv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bosley/voxchat/audio"
)

// Transcriber turns a stored recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// CannedTranscriber answers every upload with a fixed description.
type CannedTranscriber struct{}

func (CannedTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	return fmt.Sprintf("[mock transcription of %s]", filepath.Base(path)), nil
}

// WhisperTranscriber resamples with ffmpeg and runs a whisper executable.
type WhisperTranscriber struct {
	Path  string
	Model string
}

func (w WhisperTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	resampled, err := audio.ResampleForWhisper(ctx, path)
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, w.Path,
		"--model", w.Model,
		resampled)

	slog.Debug("Executing whisper command",
		"command", cmd.String(),
		"args", cmd.Args)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			slog.Debug("Whisper command failed",
				"stderr", string(exitErr.Stderr),
				"exitCode", exitErr.ExitCode())
		}
		return "", fmt.Errorf("whisper execution failed: %w", err)
	}

	slog.Debug("Whisper command output received", "outputLength", len(output))
	return extractText(string(output)), nil
}

func (s *Server) worker(ctx context.Context) {
	slog.Debug("Worker starting")
	defer func() {
		slog.Debug("Worker shutting down")
		s.workers.Done()
	}()

	for job := range s.queue {
		text, err := s.processJob(ctx, job)
		job.result <- jobResult{text: text, err: err}
	}
	slog.Debug("Worker queue closed")
}

func (s *Server) processJob(ctx context.Context, job TranscriptionJob) (string, error) {
	slog.Info("Processing audio file", "file", job.FilePath)

	text, err := s.transcriber.Transcribe(ctx, job.FilePath)
	if err != nil {
		return "", err
	}

	msg := TranscriptionMessage{
		Timestamp: job.Timestamp,
		Text:      text,
		AudioFile: filepath.Base(job.FilePath),
	}

	s.mu.Lock()
	s.transcriptions = append(s.transcriptions, msg)
	s.mu.Unlock()

	slog.Info("Successfully transcribed audio",
		"file", msg.AudioFile,
		"text", text)
	return text, nil
}

// extractText joins whisper's output lines, dropping blanks and
// [BLANK_AUDIO] markers.
func extractText(output string) string {
	var builder strings.Builder
	lines := strings.Split(output, "\n")

	for _, line := range lines {
		text := strings.TrimSpace(line)
		if text == "" || strings.Contains(text, "[BLANK_AUDIO]") {
			continue
		}

		if builder.Len() > 0 {
			builder.WriteString(" ")
		}
		builder.WriteString(text)
	}

	return builder.String()
}
