package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAVHeader(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768}

	data, err := EncodeWAV(samples, RecordingSampleRate, Channels)
	require.NoError(t, err)

	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Len(t, data, 44+len(samples)*2)
}

func TestEncodeDecodeMono(t *testing.T) {
	samples := []int16{12, -12, 400, -400, 0, 7}

	data, err := EncodeWAV(samples, 16000, 1)
	require.NoError(t, err)

	format, got, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(16000), format.SampleRate)
	assert.Equal(t, uint16(1), format.NumChannels)
	assert.Equal(t, samples, got)
}

func TestEncodeWAVRejectsBadChannels(t *testing.T) {
	_, err := EncodeWAV([]int16{1, 2, 3}, RecordingSampleRate, 2)
	assert.Error(t, err)

	_, err = EncodeWAV([]int16{1}, RecordingSampleRate, 0)
	assert.Error(t, err)
}

func TestDecodeWAVGarbage(t *testing.T) {
	_, _, err := DecodeWAV([]byte("definitely not a riff stream"))
	assert.Error(t, err)
}
