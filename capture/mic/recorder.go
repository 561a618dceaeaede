// Package mic records from and plays to sound devices through PortAudio.
package mic

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bosley/voxchat/audio"
	"github.com/bosley/voxchat/capture"
	"github.com/gordonklaus/portaudio"
)

const (
	framesPerBuffer = 1024
	wavFilename     = "recorded_audio.wav"
)

// Opener opens a microphone through PortAudio. DeviceID 0 means the
// default input device.
type Opener struct {
	DeviceID int
}

func (o Opener) Open(ctx context.Context) (capture.Recorder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	params, err := inputParameters(o.DeviceID)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	r := &recorder{}
	stream, err := portaudio.OpenStream(params, r.buf.Write)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	r.stream = stream
	return r, nil
}

func inputParameters(deviceID int) (portaudio.StreamParameters, error) {
	var device *portaudio.DeviceInfo

	if deviceID > 0 { // Only use specific device if explicitly requested (non-zero)
		devices, err := portaudio.Devices()
		if err != nil {
			return portaudio.StreamParameters{}, fmt.Errorf("failed to get audio devices: %w", err)
		}
		if deviceID >= len(devices) {
			return portaudio.StreamParameters{}, fmt.Errorf("invalid device ID %d", deviceID)
		}

		device = devices[deviceID]
		if device.MaxInputChannels == 0 {
			return portaudio.StreamParameters{}, fmt.Errorf("device %d (%s) is not an input device", deviceID, device.Name)
		}

		slog.Info("Using specified audio device",
			"deviceID", deviceID,
			"deviceName", device.Name,
			"sampleRate", device.DefaultSampleRate,
			"inputChannels", device.MaxInputChannels)
	} else {
		var err error
		device, err = portaudio.DefaultInputDevice()
		if err != nil {
			return portaudio.StreamParameters{}, fmt.Errorf("failed to get default input device: %w", err)
		}

		slog.Debug("Using default audio device",
			"deviceName", device.Name,
			"sampleRate", device.DefaultSampleRate,
			"inputChannels", device.MaxInputChannels)
	}

	return portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: audio.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      audio.RecordingSampleRate,
		FramesPerBuffer: framesPerBuffer,
	}, nil
}

// recorder buffers raw samples and hands the whole recording over as one
// WAV chunk when stopped.
type recorder struct {
	stream *portaudio.Stream
	buf    capture.PCMBuffer
	onData func([]byte)
}

func (r *recorder) Start(onData func([]byte)) error {
	r.onData = onData
	if err := r.stream.Start(); err != nil {
		r.stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	return nil
}

func (r *recorder) Stop() error {
	defer portaudio.Terminate()

	if err := r.stream.Stop(); err != nil {
		slog.Error("Failed to stop audio stream", "error", err)
	}
	if err := r.stream.Close(); err != nil {
		slog.Error("Failed to close audio stream", "error", err)
	}

	return r.buf.Flush(r.onData)
}

func (r *recorder) MediaType() string { return audio.WAVMediaType }
func (r *recorder) Filename() string  { return wavFilename }

// Device is an input device as reported by PortAudio. ID is the value
// accepted by Opener.DeviceID.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
}

func ListDevices() ([]Device, error) {
	err := portaudio.Initialize()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	// Filter to only input devices
	inputDevices := make([]Device, 0)
	for id, device := range devices {
		if device.MaxInputChannels > 0 {
			inputDevices = append(inputDevices, Device{
				ID:                id,
				Name:              device.Name,
				MaxInputChannels:  device.MaxInputChannels,
				DefaultSampleRate: device.DefaultSampleRate,
			})
		}
	}

	return inputDevices, nil
}
