package devserv

import (
	"time"
)

// TranscriptionMessage is one transcribed upload.
type TranscriptionMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	AudioFile string    `json:"audioFile"`
}

// TranscriptionJob is a stored upload waiting for a worker.
type TranscriptionJob struct {
	FilePath  string
	Timestamp time.Time
	result    chan jobResult
}

type jobResult struct {
	text string
	err  error
}

type uploadResponse struct {
	Transcript string `json:"transcript"`
}

type processRequest struct {
	Transcript string `json:"transcript"`
}

type processResponse struct {
	Response string `json:"response"`
}
