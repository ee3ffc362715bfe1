// FilePath: server/worker/internal/classifier/classifier.protocol.go
package classifier

import (
	"encoding/binary"

	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
)

// ChildArg is the hidden argv that switches the binary into the isolated
// classifier process. The parent re-execs its own executable with this
// argument so the child starts from a clean address space instead of
// inheriting forked native-library state.
const ChildArg = "classifier-host"

// predictRequest is one frame on the child's stdin: newline-delimited
// JSON, audio carried base64-encoded as little-endian 16-bit PCM.
type predictRequest struct {
	ID         string `json:"id"`
	SampleRate int    `json:"sample_rate"`
	Audio      []byte `json:"audio"`
}

// predictResponse is one frame on the child's stdout.
type predictResponse struct {
	ID     string                       `json:"id"`
	Result *models.ClassificationResult `json:"result,omitempty"`
	Error  string                       `json:"error,omitempty"`
}

// pcmToBytes packs samples for the wire.
func pcmToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	return buf
}

// bytesToPCM unpacks wire audio back into samples.
func bytesToPCM(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return samples
}
