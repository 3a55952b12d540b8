package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	RedisAddr     string
	RedisPassword string

	// Worker invocation: WorkerPath [WorkerArgs...] <profile>, run inside ArtifactDir.
	WorkerPath    string
	WorkerArgs    []string
	WorkerTimeout time.Duration
	ArtifactDir   string
	ArtifactKind  string
	ScrapeMode    string
	// QueueWait bounds how long a queued async scrape keeps its profile reserved.
	QueueWait time.Duration

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	TaskConcurrency int
}

// LoadDotenv reads a .env file from the working directory when one exists.
// Variables already set in the environment win.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getenvDuration accepts Go durations ("90s") or a plain number of seconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

func Load() Config {
	cfg := Config{
		AppEnv:        getenv("APP_ENV", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8081"),
		RedisAddr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		WorkerPath:    getenv("WORKER_PATH", "./worker"),
		WorkerArgs:    strings.Fields(os.Getenv("WORKER_ARGS")),
		WorkerTimeout: getenvDuration("WORKER_TIMEOUT", 300*time.Second),
		ArtifactDir:   getenv("ARTIFACT_DIR", "./data"),
		ArtifactKind:  getenv("ARTIFACT_KIND", "delimited-file"),
		ScrapeMode:    getenv("SCRAPE_MODE", "sync"),
		QueueWait:     getenvDuration("QUEUE_WAIT", 30*time.Minute),

		SupabaseURL:        os.Getenv("NEXT_PUBLIC_SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:     os.Getenv("SUPABASE_STORAGE_BUCKET"),

		TaskConcurrency: getenvInt("TASK_CONCURRENCY", 4),
	}
	if cfg.RedisAddr == "" {
		panic(fmt.Errorf("REDIS_ADDR is required"))
	}
	return cfg
}
