package database

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// InitRedis connects to Redis. A nil client means the service runs without it.
func InitRedis(url string) *redis.Client {
	if url == "" {
		log.Println("REDIS_URL not set, continuing without Redis")
		return nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("Invalid REDIS_URL, continuing without Redis: %v", err)
		return nil
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("Redis connection failed, continuing without Redis: %v", err)
		rdb.Close()
		return nil
	}

	log.Println("Redis connection established")
	return rdb
}
