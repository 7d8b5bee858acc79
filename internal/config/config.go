package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerPort    string
	Env           string
	FeedWSURL     string
	FeedAPIURL    string
	RedisURL      string
	SessionUserID string
	TailSize      int
	PageSize      int
	PageTimeout   time.Duration
	StoreCeiling  int
	StoreFloor    int
}

func LoadConfig() Config {
	pageTimeoutStr := getEnv("PAGE_TIMEOUT", "15s")
	pageTimeout, err := time.ParseDuration(pageTimeoutStr)
	if err != nil {
		pageTimeout = 15 * time.Second
	}

	return Config{
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		Env:           getEnv("ENV", "dev"),
		FeedWSURL:     getEnv("FEED_WS_URL", "ws://localhost:9090/ws"),
		FeedAPIURL:    getEnv("FEED_API_URL", "http://localhost:9090"),
		RedisURL:      getEnv("REDIS_URL", "redis:6379"),
		SessionUserID: getEnv("SESSION_USER_ID", ""),
		TailSize:      getEnvAsInt("FEED_TAIL_SIZE", 50),
		PageSize:      getEnvAsInt("FEED_PAGE_SIZE", 50),
		PageTimeout:   pageTimeout,
		StoreCeiling:  getEnvAsInt("STORE_CEILING", 500),
		StoreFloor:    getEnvAsInt("STORE_FLOOR", 250),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return fallback
}
