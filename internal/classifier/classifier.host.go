// FilePath: server/worker/internal/classifier/classifier.host.go
package classifier

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"sync"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/vigilhome/vigil_v3/server/worker/internal/errors"
	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
)

// transport is the message-passing boundary to one classifier process.
// The real implementation execs a child process; tests substitute fakes.
type transport interface {
	Send(req *predictRequest) error
	Responses() <-chan *predictResponse
	Kill()
}

// Host runs the heavyweight acoustic classifier in a dedicated,
// single-worker child process. The classifier's native runtime corrupts
// process state when it shares an address space with database driver
// activity, so the host talks to it purely over serialized stdin/stdout
// frames. A crashed or timed-out child is killed and respawned lazily on
// the next call.
type Host struct {
	mu         sync.Mutex
	spawn      func() (transport, error)
	tr         transport
	timeout    time.Duration
	sampleRate int
}

// NewHost prepares a classifier host. The child process is not started
// until the first Predict call.
func NewHost(sampleRate int, timeout time.Duration) *Host {
	return &Host{
		spawn:      spawnChildProcess,
		timeout:    timeout,
		sampleRate: sampleRate,
	}
}

// SampleRate reports the input rate the hosted model expects.
func (h *Host) SampleRate() int {
	return h.sampleRate
}

// Predict dispatches one clip to the child process and blocks for the
// result, bounded by the hard call deadline. On timeout or child death
// the call fails, the child is discarded, and the next call respawns it;
// the in-flight computation is never awaited.
func (h *Host) Predict(ctx context.Context, samples []int16) (*models.ClassificationResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.tr == nil {
		tr, err := h.spawn()
		if err != nil {
			return nil, errors.NewInferenceError("failed to start classifier process", err)
		}
		h.tr = tr
	}

	req := &predictRequest{
		ID:         nuts.NID("pr", 12),
		SampleRate: h.sampleRate,
		Audio:      pcmToBytes(samples),
	}

	if err := h.tr.Send(req); err != nil {
		h.discard()
		return nil, errors.NewInferenceError("failed to send request to classifier", err)
	}

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	for {
		select {
		case resp, ok := <-h.tr.Responses():
			if !ok {
				h.discard()
				return nil, errors.NewInferenceError("classifier process exited", nil)
			}
			if resp.ID != req.ID {
				// Stale response from a previous request on a reused
				// child; skip it and keep waiting.
				continue
			}
			if resp.Error != "" {
				return nil, errors.NewInferenceError(resp.Error, nil)
			}
			return resp.Result, nil
		case <-timer.C:
			h.discard()
			return nil, errors.NewTimeoutError("classifier did not respond within deadline", nil)
		case <-ctx.Done():
			h.discard()
			return nil, errors.NewTimeoutError("classifier call canceled", ctx.Err())
		}
	}
}

// Close tears down the child process if one is running.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.discard()
}

// discard kills the current child. Callers hold h.mu.
func (h *Host) discard() {
	if h.tr != nil {
		h.tr.Kill()
		h.tr = nil
		nuts.L.Warnf("[ClassifierHost] Discarded classifier process; will respawn on next use")
	}
}

// childTransport runs the classifier in a re-exec of this binary with the
// child argv. Spawning a fresh executable (not forking) guarantees the
// child starts with clean native-library state.
type childTransport struct {
	cmd       *exec.Cmd
	stdin     *json.Encoder
	responses chan *predictResponse
	done      chan struct{}
	killOnce  sync.Once
}

// deliver hands a response frame to the host, giving up once the
// transport is killed so the reader goroutine never blocks on a frame
// nobody will receive.
func (t *childTransport) deliver(resp *predictResponse) bool {
	select {
	case t.responses <- resp:
		return true
	case <-t.done:
		return false
	}
}

func spawnChildProcess() (transport, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(exe, ChildArg)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	nuts.L.Infof("[ClassifierHost] Spawned classifier process (pid=%d)", cmd.Process.Pid)

	t := &childTransport{
		cmd:       cmd,
		stdin:     json.NewEncoder(stdin),
		responses: make(chan *predictResponse),
		done:      make(chan struct{}),
	}

	go func() {
		defer close(t.responses)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), maxFrameSize)
		for scanner.Scan() {
			var resp predictResponse
			if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
				nuts.L.Errorf("[ClassifierHost] Bad response frame: %v", err)
				return
			}
			if !t.deliver(&resp) {
				return
			}
		}
	}()

	return t, nil
}

func (t *childTransport) Send(req *predictRequest) error {
	return t.stdin.Encode(req)
}

func (t *childTransport) Responses() <-chan *predictResponse {
	return t.responses
}

func (t *childTransport) Kill() {
	t.killOnce.Do(func() {
		close(t.done)
		if t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
		}
		// Reap asynchronously; the caller never waits on a dead child.
		go func() { _ = t.cmd.Wait() }()
	})
}
