package notify

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
)

// Channel carries every published notification event.
const Channel = "notifications"

// NewRedis creates the Redis client used by the notification publisher.
func NewRedis() *redis.Client {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	log.Printf("Redis client created (addr: %s)\n", redisAddr)
	return rdb
}

// RedisNotifier publishes events as JSON on the notifications channel.
type RedisNotifier struct {
	RDB *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{RDB: rdb}
}

func (n *RedisNotifier) Notify(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("notify: marshal event for user %s: %v", ev.UserID, err)
		return
	}
	if err := n.RDB.Publish(ctx, Channel, payload).Err(); err != nil {
		log.Printf("notify: publish %s for user %s: %v", ev.Kind, ev.UserID, err)
	}
}
