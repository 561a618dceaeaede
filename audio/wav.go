package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/youpy/go-wav"
)

const (
	RecordingSampleRate = 44100 // Rate at which the microphone is recorded
	WhisperSampleRate   = 16000 // Rate required by Whisper
	Channels            = 1     // Mono audio
	BitsPerSample       = 16    // Using int16 for samples

	WAVMediaType = "audio/wav"
)

// Format describes a decoded WAV stream.
type Format struct {
	SampleRate  uint32
	NumChannels uint16
}

// EncodeWAV wraps interleaved int16 PCM samples in a WAV container.
func EncodeWAV(samples []int16, sampleRate uint32, numChannels uint16) ([]byte, error) {
	if numChannels == 0 || numChannels > 2 {
		return nil, fmt.Errorf("unsupported channel count %d", numChannels)
	}
	if len(samples)%int(numChannels) != 0 {
		return nil, fmt.Errorf("sample count %d is not a multiple of %d channels", len(samples), numChannels)
	}

	frames := len(samples) / int(numChannels)

	var buf bytes.Buffer
	writer := wav.NewWriter(&buf, uint32(frames), numChannels, sampleRate, BitsPerSample)

	out := make([]wav.Sample, frames)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < int(numChannels); ch++ {
			out[i].Values[ch] = int(samples[i*int(numChannels)+ch])
		}
	}

	if err := writer.WriteSamples(out); err != nil {
		return nil, fmt.Errorf("failed to write WAV samples: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWAV reads a whole WAV stream back into interleaved int16 samples.
func DecodeWAV(data []byte) (Format, []int16, error) {
	reader := wav.NewReader(bytes.NewReader(data))

	format, err := reader.Format()
	if err != nil {
		return Format{}, nil, fmt.Errorf("failed to read WAV format: %w", err)
	}
	if format.NumChannels == 0 || format.NumChannels > 2 {
		return Format{}, nil, fmt.Errorf("unsupported channel count %d", format.NumChannels)
	}

	var samples []int16
	for {
		block, err := reader.ReadSamples(1024)
		for _, s := range block {
			for ch := 0; ch < int(format.NumChannels); ch++ {
				samples = append(samples, int16(s.Values[ch]))
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Format{}, nil, fmt.Errorf("failed to read WAV samples: %w", err)
		}
	}

	return Format{SampleRate: format.SampleRate, NumChannels: format.NumChannels}, samples, nil
}

// ResampleForWhisper converts any audio file ffmpeg understands into a
// 16kHz mono WAV next to it and returns the new path.
func ResampleForWhisper(ctx context.Context, inputPath string) (string, error) {
	outputPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "_whisper.wav"

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inputPath,
		"-ar", fmt.Sprintf("%d", WhisperSampleRate),
		"-ac", "1",
		"-y", // Overwrite output file
		outputPath)

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to resample audio: %w", err)
	}

	return outputPath, nil
}
