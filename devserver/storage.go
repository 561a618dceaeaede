package devserv

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

func getCurrentDateDir() string {
	return time.Now().Format("20060102") // YYYYMMDD
}

// saveRecording writes an upload to recordings/YYYYMMDD/<upload id>/ and
// returns the file path. Only the extension of the client's filename is kept.
func (s *Server) saveRecording(data []byte, clientFilename string) (string, error) {
	uploadDir := filepath.Join(s.config.RecordingsDir, getCurrentDateDir(), uuid.NewString())

	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(clientFilename))
	if ext == "" {
		ext = ".bin"
	}

	timestamp := time.Now().Format("150405") // HHMMSS
	path := filepath.Join(uploadDir, fmt.Sprintf("audio_%s%s", timestamp, ext))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write recording: %w", err)
	}
	return path, nil
}

// discardRecording removes an upload that will never be transcribed,
// together with its upload directory.
func (s *Server) discardRecording(path string) {
	if err := os.Remove(path); err != nil {
		slog.Error("Failed to remove recording", "error", err, "file", path)
		return
	}
	if err := os.Remove(filepath.Dir(path)); err != nil {
		slog.Warn("Failed to remove upload directory", "error", err, "dir", filepath.Dir(path))
	}
}
