package queue

import (
	"context"
	"fmt"
	"log/slog"
	"tle_zone_contest/internal/platform/config"

	"github.com/redis/go-redis/v9"
)

var RDB *redis.Client

func ConnectRedis(ctx context.Context) error {
	RDB = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDB,
	})

	if _, err := RDB.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("queue.ConnectRedis: %w", err)
	}
	slog.Info("Successfully connected to Redis", "addr", config.AppConfig.RedisAddr)
	return nil
}

func CloseRedis() {
	if RDB != nil {
		RDB.Close()
		slog.Info("Redis connection closed")
	}
}
