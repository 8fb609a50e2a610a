package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv       string
	HTTPAddr     string
	MetricsAddr  string
	MySQLDSN     string
	RedisAddr    string
	RedisDB      int
	RedisPass    string
	PMSBase      string
	PMSKey       string
	PMSRPS       int
	SnapshotTTL  time.Duration
	PushInterval time.Duration
	PushBatch    int
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:       env("APP_ENV", "prod"),
		HTTPAddr:     env("HTTP_ADDR", ":8080"),
		MetricsAddr:  env("METRICS_ADDR", ":9100"),
		MySQLDSN:     env("MYSQL_DSN", "root:root@tcp(localhost:3306)/ratecascade?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:    env("REDIS_ADDR", "localhost:6379"),
		RedisPass:    env("REDIS_PASSWORD", ""),
		RedisDB:      atoi("REDIS_DB", 0),
		PMSBase:      env("PMS_BASE_URL", "https://pms.example.com/api/v1"),
		PMSKey:       env("PMS_API_KEY", ""),
		PMSRPS:       atoi("PMS_RPS", 5),
		SnapshotTTL:  time.Duration(atoi("SNAPSHOT_TTL_SECONDS", 3600)) * time.Second,
		PushInterval: time.Duration(atoi("PUSH_INTERVAL_SECONDS", 30)) * time.Second,
		PushBatch:    atoi("PUSH_BATCH", 50),
	}
	if c.PMSKey == "" {
		log.Warn().Msg("PMS_API_KEY is empty")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
