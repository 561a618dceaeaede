package capture

import (
	"log/slog"
	"sync"

	"github.com/bosley/voxchat/audio"
)

// PCMBuffer collects raw samples from a device callback and hands them over
// as one WAV chunk. The zero value records at the microphone rate in mono.
type PCMBuffer struct {
	SampleRate uint32
	Channels   uint16

	mu      sync.Mutex
	samples []int16
}

// Write appends a block of interleaved samples. It is safe to call from the
// audio thread.
func (b *PCMBuffer) Write(in []int16) {
	b.mu.Lock()
	b.samples = append(b.samples, in...)
	b.mu.Unlock()
}

func (b *PCMBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Flush empties the buffer, encodes what it held and passes the WAV bytes
// to onData. On an encoding error the samples are dropped and onData is
// not called.
func (b *PCMBuffer) Flush(onData func([]byte)) error {
	b.mu.Lock()
	samples := b.samples
	b.samples = nil
	b.mu.Unlock()

	rate, channels := b.format()
	slog.Debug("Flushing recorded samples",
		"totalSamples", len(samples),
		"durationSeconds", float64(len(samples))/float64(rate)/float64(max(channels, 1)))

	data, err := audio.EncodeWAV(samples, rate, channels)
	if err != nil {
		return err
	}
	onData(data)
	return nil
}

func (b *PCMBuffer) format() (uint32, uint16) {
	rate, channels := b.SampleRate, b.Channels
	if rate == 0 {
		rate = audio.RecordingSampleRate
	}
	if channels == 0 {
		channels = audio.Channels
	}
	return rate, channels
}
