package classifier

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/vigilhome/vigil_v3/server/worker/internal/errors"
	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
)

// fakeTransport echoes canned behavior without a real child process.
type fakeTransport struct {
	responses chan *predictResponse
	sendErr   error
	killed    bool
	respond   func(req *predictRequest)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responses: make(chan *predictResponse, 4)}
}

func (f *fakeTransport) Send(req *predictRequest) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	if f.respond != nil {
		f.respond(req)
	}
	return nil
}

func (f *fakeTransport) Responses() <-chan *predictResponse { return f.responses }
func (f *fakeTransport) Kill()                              { f.killed = true }

func newTestHost(timeout time.Duration, spawn func() (transport, error)) *Host {
	h := NewHost(16000, timeout)
	h.spawn = spawn
	return h
}

func TestHostPredictSuccess(t *testing.T) {
	tr := newFakeTransport()
	tr.respond = func(req *predictRequest) {
		tr.responses <- &predictResponse{
			ID: req.ID,
			Result: &models.ClassificationResult{
				Type:     LabelFallImpact,
				Severity: models.SeverityHigh,
				Score:    0.9,
			},
		}
	}
	h := newTestHost(time.Second, func() (transport, error) { return tr, nil })

	result, err := h.Predict(context.Background(), []int16{1, 2, 3})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if result.Type != LabelFallImpact || result.Score != 0.9 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestHostTimeoutKillsAndRespawns(t *testing.T) {
	spawned := 0
	var current *fakeTransport
	spawn := func() (transport, error) {
		spawned++
		current = newFakeTransport()
		return current, nil
	}
	h := newTestHost(20*time.Millisecond, spawn)

	// First call: the child never answers.
	_, err := h.Predict(context.Background(), []int16{1})
	if !errors.IsTimeout(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if !current.killed {
		t.Error("timed-out child was not killed")
	}
	if spawned != 1 {
		t.Fatalf("spawned = %d, want 1", spawned)
	}

	// Second call: a fresh child answers normally.
	var second *fakeTransport
	h.spawn = func() (transport, error) {
		spawned++
		second = newFakeTransport()
		second.respond = func(req *predictRequest) {
			second.responses <- &predictResponse{ID: req.ID, Result: &models.ClassificationResult{Type: LabelCoughing}}
		}
		return second, nil
	}

	result, err := h.Predict(context.Background(), []int16{1})
	if err != nil {
		t.Fatalf("Predict after respawn: %v", err)
	}
	if result.Type != LabelCoughing {
		t.Errorf("unexpected result after respawn: %+v", result)
	}
	if spawned != 2 {
		t.Errorf("spawned = %d, want 2 (lazy respawn)", spawned)
	}
}

func TestHostChildExitFailsInFlight(t *testing.T) {
	tr := newFakeTransport()
	tr.respond = func(req *predictRequest) { close(tr.responses) }
	h := newTestHost(time.Second, func() (transport, error) { return tr, nil })

	_, err := h.Predict(context.Background(), []int16{1})
	if err == nil {
		t.Fatal("expected error for dead child")
	}
	if errors.IsTimeout(err) {
		t.Errorf("child exit should be an inference failure, not a timeout: %v", err)
	}
	if !tr.killed {
		t.Error("dead child transport was not discarded")
	}
}

func TestHostSendFailureDiscardsChild(t *testing.T) {
	tr := newFakeTransport()
	tr.sendErr = fmt.Errorf("broken pipe")
	h := newTestHost(time.Second, func() (transport, error) { return tr, nil })

	if _, err := h.Predict(context.Background(), []int16{1}); err == nil {
		t.Fatal("expected send error")
	}
	if !tr.killed {
		t.Error("transport with broken pipe was not discarded")
	}
}

func TestHostSkipsStaleResponses(t *testing.T) {
	tr := newFakeTransport()
	tr.respond = func(req *predictRequest) {
		tr.responses <- &predictResponse{ID: "stale", Result: &models.ClassificationResult{Type: LabelFootsteps}}
		tr.responses <- &predictResponse{ID: req.ID, Result: &models.ClassificationResult{Type: LabelGlassBreak}}
	}
	h := newTestHost(time.Second, func() (transport, error) { return tr, nil })

	result, err := h.Predict(context.Background(), []int16{1})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if result.Type != LabelGlassBreak {
		t.Errorf("host consumed a stale response: %+v", result)
	}
}

func TestChildTransportKillUnblocksDelivery(t *testing.T) {
	tr := &childTransport{
		cmd:       exec.Command("true"),
		responses: make(chan *predictResponse),
		done:      make(chan struct{}),
	}
	tr.Kill()
	tr.Kill() // repeated kills must be safe

	// A frame arriving after the kill has nobody to receive it; the
	// reader must give up instead of blocking on the channel forever.
	delivered := make(chan bool, 1)
	go func() { delivered <- tr.deliver(&predictResponse{ID: "late"}) }()

	select {
	case ok := <-delivered:
		if ok {
			t.Error("frame delivered after kill")
		}
	case <-time.After(time.Second):
		t.Fatal("delivery still blocked after kill")
	}
}

func TestHostContextCancel(t *testing.T) {
	tr := newFakeTransport()
	h := newTestHost(time.Hour, func() (transport, error) { return tr, nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Predict(ctx, []int16{1})
	if !errors.IsTimeout(err) {
		t.Fatalf("expected timeout-class error on cancel, got %v", err)
	}
}
