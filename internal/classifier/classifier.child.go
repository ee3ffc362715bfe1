// FilePath: server/worker/internal/classifier/classifier.child.go
package classifier

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Child stdout carries the response protocol, so child-side diagnostics
// go to stderr only.

const maxFrameSize = 32 * 1024 * 1024

// RunChild is the entrypoint of the isolated classifier process. It owns
// the model for its whole lifetime and serves predict requests from stdin
// until the parent closes the pipe or kills it. The model is built lazily
// from the first request's sample rate; the parent resamples every clip
// to its configured rate before sending, so the rate never varies within
// one child's lifetime.
func RunChild() error {
	var model *Model
	fmt.Fprintf(os.Stderr, "[ClassifierChild] ready (pid=%d)\n", os.Getpid())

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)
	encoder := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req predictRequest
		if err := json.Unmarshal(line, &req); err != nil {
			// A broken frame is unrecoverable for this request but the
			// stream stays aligned on newlines, so keep serving.
			if encErr := encoder.Encode(predictResponse{Error: fmt.Sprintf("bad request frame: %v", err)}); encErr != nil {
				return encErr
			}
			continue
		}

		resp := predictResponse{ID: req.ID}
		if len(req.Audio) < 2 {
			resp.Error = "empty audio payload"
		} else {
			if model == nil || model.SampleRate() != req.SampleRate {
				model = NewModel(req.SampleRate)
				fmt.Fprintf(os.Stderr, "[ClassifierChild] model loaded (rate=%d)\n", req.SampleRate)
			}
			resp.Result = model.Predict(bytesToPCM(req.Audio))
		}

		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}
