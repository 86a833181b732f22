package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"
)

// ErrUnsupportedFormat is returned for audio that cannot be played as PCM.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// PCM is interleaved signed 16-bit audio.
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Decode converts raw L16 or WAV bytes to PCM. The MIME type wins; bytes starting with
// a RIFF header are treated as WAV when the type is missing.
func Decode(data []byte, mimeType string) (PCM, error) {
	if len(data) == 0 {
		return PCM{}, errors.New("empty audio")
	}

	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil && mimeType != "" {
		return PCM{}, fmt.Errorf("parse mime %q: %w", mimeType, err)
	}
	mediaType = strings.ToLower(mediaType)

	switch {
	case mediaType == "audio/l16" || mediaType == "audio/pcm":
		return decodeL16(data, params)
	case mediaType == "audio/wav" || mediaType == "audio/x-wav" || mediaType == "audio/wave":
		return decodeWAV(data)
	case mediaType == "" && len(data) >= 12 && string(data[0:4]) == "RIFF":
		return decodeWAV(data)
	default:
		return PCM{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, mimeType)
	}
}

// decodeL16 reads raw little-endian samples; the TTS service emits s16le despite the
// L16 media type.
func decodeL16(data []byte, params map[string]string) (PCM, error) {
	rate := 24000
	if raw := params["rate"]; raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return PCM{}, fmt.Errorf("invalid L16 rate %q", raw)
		}
		rate = v
	}
	channels := 1
	if raw := params["channels"]; raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 2 {
			return PCM{}, fmt.Errorf("invalid L16 channels %q", raw)
		}
		channels = v
	}
	return PCM{Samples: samplesLE(data), SampleRate: rate, Channels: channels}, nil
}

// decodeWAV walks RIFF chunks for fmt and data. Only 16-bit PCM is accepted.
func decodeWAV(data []byte) (PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return PCM{}, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedFormat)
	}

	var (
		out     PCM
		haveFmt bool
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if size < 0 || body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return PCM{}, errors.New("wav fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if format != 1 || bits != 16 {
				return PCM{}, fmt.Errorf("%w: wav format=%d bits=%d", ErrUnsupportedFormat, format, bits)
			}
			out.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			out.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return PCM{}, errors.New("wav data chunk before fmt chunk")
			}
			out.Samples = samplesLE(data[body : body+size])
			if out.Channels < 1 || out.Channels > 2 || out.SampleRate <= 0 {
				return PCM{}, fmt.Errorf("%w: wav channels=%d rate=%d", ErrUnsupportedFormat, out.Channels, out.SampleRate)
			}
			return out, nil
		}

		offset = body + size + size%2
	}
	return PCM{}, errors.New("wav data chunk not found")
}

func samplesLE(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return samples
}
