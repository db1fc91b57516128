package data

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

// EventStream is the redis stream that receives log and status events.
const EventStream = "catchfleet.events"

const eventStreamMaxLen = 10000

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// RedisPublisher appends event payloads to a capped redis stream.
type RedisPublisher struct {
	rdb    *redis.Client
	stream string
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, stream: EventStream}
}

func (p *RedisPublisher) Publish(ctx context.Context, payload map[string]interface{}) error {
	_, err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: eventStreamMaxLen,
		Approx: true,
		Values: payload,
	}).Result()
	return err
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
