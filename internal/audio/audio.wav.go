// FilePath: server/worker/internal/audio/audio.wav.go
package audio

import (
	"encoding/binary"

	"github.com/vigilhome/vigil_v3/server/worker/internal/errors"
)

// Clip is decoded single-channel PCM audio.
type Clip struct {
	Samples    []int16
	SampleRate int
}

const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	pcmFormat       = 1
)

// DecodeWAV parses a PCM WAV file into a mono clip. Multi-channel input
// is downmixed by averaging so edge devices with stereo capsules still
// produce usable clips.
func DecodeWAV(data []byte) (*Clip, error) {
	if len(data) < riffHeaderSize {
		return nil, errors.NewValidationError("wav data too short", nil)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, errors.NewValidationError("not a RIFF/WAVE file", nil)
	}

	var (
		channels      int
		sampleRate    int
		bitsPerSample int
		haveFormat    bool
		pcm           []byte
	)

	offset := riffHeaderSize
	for offset+chunkHeaderSize <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + chunkHeaderSize
		if body+chunkSize > len(data) {
			chunkSize = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, errors.NewValidationError("wav fmt chunk too short", nil)
			}
			format := int(binary.LittleEndian.Uint16(data[body : body+2]))
			if format != pcmFormat {
				return nil, errors.NewValidationError("wav is not linear PCM", nil)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFormat = true
		case "data":
			pcm = data[body : body+chunkSize]
		}

		// Chunks are word aligned
		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if !haveFormat {
		return nil, errors.NewValidationError("wav missing fmt chunk", nil)
	}
	if pcm == nil {
		return nil, errors.NewValidationError("wav missing data chunk", nil)
	}
	if bitsPerSample != 16 {
		return nil, errors.NewValidationError("wav must be 16-bit PCM", nil)
	}
	if channels < 1 {
		return nil, errors.NewValidationError("wav has no channels", nil)
	}
	if sampleRate <= 0 {
		return nil, errors.NewValidationError("wav has invalid sample rate", nil)
	}

	frameCount := len(pcm) / (2 * channels)
	samples := make([]int16, frameCount)
	for i := 0; i < frameCount; i++ {
		var sum int
		base := i * 2 * channels
		for ch := 0; ch < channels; ch++ {
			sum += int(int16(binary.LittleEndian.Uint16(pcm[base+2*ch : base+2*ch+2])))
		}
		samples[i] = int16(sum / channels)
	}

	return &Clip{Samples: samples, SampleRate: sampleRate}, nil
}

// Resample converts a clip to the target rate using linear interpolation.
// The classifier expects a fixed model rate; clips recorded at other rates
// pass through here first.
func Resample(clip *Clip, targetRate int) *Clip {
	if clip.SampleRate == targetRate || len(clip.Samples) == 0 {
		return &Clip{Samples: clip.Samples, SampleRate: targetRate}
	}

	ratio := float64(clip.SampleRate) / float64(targetRate)
	outLen := int(float64(len(clip.Samples)) / ratio)
	if outLen < 1 {
		outLen = 1
	}

	out := make([]int16, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(clip.Samples)-1 {
			out[i] = clip.Samples[len(clip.Samples)-1]
			continue
		}
		frac := pos - float64(idx)
		a := float64(clip.Samples[idx])
		b := float64(clip.Samples[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}

	return &Clip{Samples: out, SampleRate: targetRate}
}

// DurationMS reports the clip length in milliseconds.
func (c *Clip) DurationMS() int64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return int64(len(c.Samples)) * 1000 / int64(c.SampleRate)
}

// EncodeWAV renders a mono clip back to a 16-bit PCM WAV file. Used by
// tooling and tests to synthesize fixtures.
func EncodeWAV(clip *Clip) []byte {
	dataSize := len(clip.Samples) * 2
	buf := make([]byte, riffHeaderSize+chunkHeaderSize+16+chunkHeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(buf)-8))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], pcmFormat)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(clip.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(clip.SampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i, s := range clip.Samples {
		binary.LittleEndian.PutUint16(buf[44+2*i:46+2*i], uint16(s))
	}

	return buf
}
