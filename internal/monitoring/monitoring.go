// FilePath: server/worker/internal/monitoring/monitoring.go
package monitoring

import (
	"sort"
	"strings"
	"sync"
	"time"

	nuts "github.com/vaudience/go-nuts"
)

// Config holds monitoring configuration
type Config struct {
	PrometheusEndpoint string
	LokiEndpoint       string
}

// Service counts pipeline events in memory and exposes them as a
// snapshot for the /metrics endpoint. Counters are keyed by event name
// plus sorted labels so the same logical series always aggregates.
type Service struct {
	config Config

	mu       sync.Mutex
	counters map[string]int64
	started  time.Time
}

// NewService creates a new monitoring service
func NewService(config Config) *Service {
	return &Service{
		config:   config,
		counters: make(map[string]int64),
		started:  time.Now(),
	}
}

// RecordEvent increments the counter for a monitored event.
func (s *Service) RecordEvent(eventName string, labels map[string]string) {
	key := seriesKey(eventName, labels)

	s.mu.Lock()
	s.counters[key]++
	s.mu.Unlock()

	nuts.L.Debugf("[Monitoring] Event %s recorded with labels: %v", eventName, labels)
}

// Counters returns a copy of all event counters.
func (s *Service) Counters() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out
}

// Uptime reports how long the service has been running.
func (s *Service) Uptime() time.Duration {
	return time.Since(s.started)
}

func seriesKey(eventName string, labels map[string]string) string {
	if len(labels) == 0 {
		return eventName
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(eventName)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}
