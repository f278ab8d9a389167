package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config carries everything main needs to wire the process.
type Config struct {
	DatabaseURL  string
	ServerAddr   string
	RedisAddr    string
	RedisChannel string
	ReminderSpec string
}

// Load reads .env if present and resolves the environment. DATABASE_URL
// is the only required setting; Redis is optional and events fall back
// to the process log without it.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] config: no .env file loaded: %v", err)
	}
	return Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisChannel: getEnv("REDIS_EVENT_CHANNEL", "reserve.events"),
		ReminderSpec: getEnv("REMINDER_CRON", "0 8 * * *"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
