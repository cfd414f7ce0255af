package redis_session

import (
	"context"
	"testing"
	"time"

	"github.com/mohammad-safakhou/askweb/provider/models"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T, ctx context.Context) *redis.Client {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })
	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get host: %v", err)
	}
	port, err := c.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	ctx := context.Background()
	client := startRedis(t, ctx)
	s := NewRedisSessionStore(client, 2, time.Hour)

	for _, c := range []string{"one", "two", "three"} {
		if err := s.Append(ctx, "u1", models.Message{Role: models.RoleUser, Content: c}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Load(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Content != "two" || got[1].Content != "three" {
		t.Fatalf("unexpected history %+v", got)
	}
	ttl, err := client.TTL(ctx, key("u1")).Result()
	if err != nil || ttl <= 0 {
		t.Fatalf("expected a ttl, got %v (%v)", ttl, err)
	}

	if err := s.Clear(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Load(ctx, "u1"); len(got) != 0 {
		t.Fatal("history should be empty after clear")
	}
}
