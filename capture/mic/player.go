package mic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bosley/voxchat/audio"
	"github.com/gordonklaus/portaudio"
)

// PlayWAV plays a WAV payload on the default output device and returns once
// every sample has been written or ctx is cancelled.
func PlayWAV(ctx context.Context, data []byte) error {
	format, samples, err := audio.DecodeWAV(data)
	if err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	done := make(chan struct{})
	var once sync.Once
	pos := 0
	stream, err := portaudio.OpenDefaultStream(
		0,
		int(format.NumChannels),
		float64(format.SampleRate),
		framesPerBuffer,
		func(out []int16) {
			n := copy(out, samples[pos:])
			pos += n
			// Fill remaining buffer with silence if needed
			for i := n; i < len(out); i++ {
				out[i] = 0
			}
			if pos >= len(samples) {
				once.Do(func() { close(done) })
			}
		},
	)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	slog.Debug("Playing audio",
		"samples", len(samples),
		"sampleRate", format.SampleRate,
		"channels", format.NumChannels)

	select {
	case <-done:
	case <-ctx.Done():
	}

	return stream.Stop()
}
