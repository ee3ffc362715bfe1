// FilePath: server/worker/internal/bus/bus.go
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"

	"github.com/vigilhome/vigil_v3/server/worker/internal/config"
	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
)

// AlertBus publishes newly created alerts to a redis channel so that the
// API tier can push them to connected apps without polling Postgres.
type AlertBus struct {
	rdb     *redis.Client
	channel string
}

// NewAlertBus connects to redis and verifies the connection. An empty
// host disables the bus; the writer treats a nil Publisher as no fan-out.
func NewAlertBus(cfg config.RedisConfig) (*AlertBus, error) {
	if cfg.Host == "" {
		nuts.L.Infof("[AlertBus] Redis not configured; live alert fan-out disabled")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = "alerts"
	}
	nuts.L.Infof("[AlertBus] Connected to redis at %s:%d, channel %q", cfg.Host, cfg.Port, channel)

	return &AlertBus{rdb: rdb, channel: channel}, nil
}

func (b *AlertBus) PublishAlert(ctx context.Context, alert *models.Alert) error {
	raw, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Subscribe delivers published alerts to onAlert until ctx is canceled.
// Used by tests and local tooling; the production subscriber lives in
// the API tier.
func (b *AlertBus) Subscribe(ctx context.Context, onAlert func(alert *models.Alert)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var alert models.Alert
				if err := json.Unmarshal([]byte(m.Payload), &alert); err != nil {
					nuts.L.Warnf("[AlertBus] Dropping malformed alert payload: %v", err)
					continue
				}
				onAlert(&alert)
			}
		}
	}()
	return nil
}

func (b *AlertBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
