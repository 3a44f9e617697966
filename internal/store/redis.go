package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"fleetwatch-backend/internal/config"
	"fleetwatch-backend/internal/models"
)

// RedisStore shares dismissals between replicas and publishes alert notices.
// It satisfies monitor.DismissalStore and services.Notifier.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// dismissal:{fleet}:{kind}:{scope} holds the dismissed unit names for one scope
func dismissalKey(fleetID string, kind models.AlertKind, scope string) string {
	return fmt.Sprintf("dismissal:%s:%s:%s", fleetID, kind, scope)
}

// dismissal:{fleet}:{kind}:scopes indexes the scopes in use so Clear can reach all of them
func scopesKey(fleetID string, kind models.AlertKind) string {
	return fmt.Sprintf("dismissal:%s:%s:scopes", fleetID, kind)
}

func alertChannel(fleetID string) string {
	return fmt.Sprintf("fleet:%s:alerts", fleetID)
}

// alertPattern matches the alert channel of every fleet
const alertPattern = "fleet:*:alerts"

func (r *RedisStore) Dismiss(ctx context.Context, fleetID string, kind models.AlertKind, scope string, units ...string) error {
	if len(units) == 0 {
		return nil
	}
	members := make([]interface{}, len(units))
	for i, u := range units {
		members[i] = u
	}

	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, dismissalKey(fleetID, kind, scope), members...)
	pipe.SAdd(ctx, scopesKey(fleetID, kind), scope)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis dismiss failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Dismissed(ctx context.Context, fleetID string, kind models.AlertKind, scope string) (map[string]bool, error) {
	units, err := r.client.SMembers(ctx, dismissalKey(fleetID, kind, scope)).Result()
	if err == redis.Nil {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis dismissed lookup failed: %w", err)
	}

	out := make(map[string]bool, len(units))
	for _, u := range units {
		out[u] = true
	}
	return out, nil
}

func (r *RedisStore) Clear(ctx context.Context, fleetID string, kind models.AlertKind, units ...string) error {
	if len(units) == 0 {
		return nil
	}
	scopes, err := r.client.SMembers(ctx, scopesKey(fleetID, kind)).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("redis scope lookup failed: %w", err)
	}
	if len(scopes) == 0 {
		return nil
	}

	members := make([]interface{}, len(units))
	for i, u := range units {
		members[i] = u
	}

	pipe := r.client.Pipeline()
	for _, scope := range scopes {
		pipe.SRem(ctx, dismissalKey(fleetID, kind, scope), members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis clear failed: %w", err)
	}
	return nil
}

// Notify publishes the notice as JSON on the fleet's alert channel
func (r *RedisStore) Notify(ctx context.Context, notice models.AlertNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	return r.client.Publish(ctx, alertChannel(notice.FleetID), payload).Err()
}

// SubscribeAlerts listens on the alert channels of the given fleets, or of
// every fleet when none is given
func (r *RedisStore) SubscribeAlerts(ctx context.Context, fleetIDs ...string) *redis.PubSub {
	if len(fleetIDs) == 0 {
		return r.client.PSubscribe(ctx, alertPattern)
	}
	channels := make([]string, len(fleetIDs))
	for i, id := range fleetIDs {
		channels[i] = alertChannel(id)
	}
	return r.client.Subscribe(ctx, channels...)
}

// AlertSink receives notices published by any replica
type AlertSink interface {
	BroadcastAlert(notice models.AlertNotice)
}

// RelayAlerts forwards every published alert notice to sink until ctx is cancelled
func (r *RedisStore) RelayAlerts(ctx context.Context, sink AlertSink) error {
	sub := r.SubscribeAlerts(ctx)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe failed: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var notice models.AlertNotice
			if err := json.Unmarshal([]byte(msg.Payload), &notice); err != nil {
				log.Printf("⚠️  Ignoring malformed alert on %s: %v", msg.Channel, err)
				continue
			}
			sink.BroadcastAlert(notice)
		}
	}
}
