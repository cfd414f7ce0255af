package redis_session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/askweb/provider/models"
	"github.com/redis/go-redis/v9"
)

// Store keeps each session as a redis list of JSON messages under
// session:<id>:history. Trimming and expiry are done by redis.
type Store struct {
	client      *redis.Client
	maxMessages int
	ttl         time.Duration
}

func NewRedisSessionStore(client *redis.Client, maxMessages int, ttl time.Duration) *Store {
	return &Store{client: client, maxMessages: maxMessages, ttl: ttl}
}

func key(id string) string { return fmt.Sprintf("session:%s:history", id) }

func (store *Store) Load(ctx context.Context, id string) ([]models.Message, error) {
	vals, err := store.client.LRange(ctx, key(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	out := make([]models.Message, 0, len(vals))
	for _, v := range vals {
		var m models.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (store *Store) Append(ctx context.Context, id string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	vals := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		vals = append(vals, b)
	}
	k := key(id)
	pipe := store.client.TxPipeline()
	pipe.RPush(ctx, k, vals...)
	if store.maxMessages > 0 {
		pipe.LTrim(ctx, k, int64(-store.maxMessages), -1)
	}
	if store.ttl > 0 {
		pipe.Expire(ctx, k, store.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (store *Store) Clear(ctx context.Context, id string) error {
	if err := store.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
