package classifier

import "testing"

func TestPCMBytesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345, -12345}
	got := bytesToPCM(pcmToBytes(samples))
	if len(got) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestBytesToPCMOddLength(t *testing.T) {
	// A trailing odd byte cannot form a sample and is dropped.
	got := bytesToPCM([]byte{0x01, 0x02, 0x03})
	if len(got) != 1 {
		t.Fatalf("got %d samples, want 1", len(got))
	}
}
