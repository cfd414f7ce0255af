package session

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/askweb/provider/models"
	"github.com/mohammad-safakhou/askweb/session/inmemory"
	redis_session "github.com/mohammad-safakhou/askweb/session/redis"
	"github.com/redis/go-redis/v9"
)

// Store keeps the recent chat history of each conversation. Implementations
// keep at most the configured number of messages and expire idle sessions.
type Store interface {
	Load(ctx context.Context, id string) ([]models.Message, error)
	Append(ctx context.Context, id string, msgs ...models.Message) error
	Clear(ctx context.Context, id string) error
}

// Sweeper is implemented by stores that expire sessions themselves.
type Sweeper interface {
	Sweep(now time.Time) int
}

type StoreType string

const (
	InMemoryStore StoreType = "inmemory"
	RedisStore    StoreType = "redis"
)

// NewStore builds the store for storeType. client is required for RedisStore.
func NewStore(storeType StoreType, client *redis.Client, maxMessages int, ttl time.Duration) (Store, error) {
	switch storeType {
	case InMemoryStore, "":
		return inmemory.NewInMemorySessionStore(maxMessages, ttl), nil
	case RedisStore:
		if client == nil {
			return nil, fmt.Errorf("redis history store needs a redis client")
		}
		return redis_session.NewRedisSessionStore(client, maxMessages, ttl), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}
