package config

import (
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App struct {
		Env       string `env:"APP_ENV" env-default:"development"`
		Port      int    `env:"APP_PORT" env-default:"8080"`
		SentryUrl string `env:"SENTRY_URL"`
		OwnerID   string `env:"APP_OWNER_ID" env-default:"local"`
		OwnerName string `env:"APP_OWNER_NAME" env-default:"Local User"`
	}
	Capture struct {
		Facing      string        `env:"CAPTURE_FACING" env-default:"user"`
		MinHold     time.Duration `env:"CAPTURE_MIN_HOLD" env-default:"300ms"`
		MaxDuration time.Duration `env:"CAPTURE_MAX_DURATION" env-default:"15s"`
		Tick        time.Duration `env:"CAPTURE_TICK" env-default:"16ms"`
		Segment     time.Duration `env:"CAPTURE_SEGMENT" env-default:"1s"`
		Bitrate     int           `env:"CAPTURE_BITRATE" env-default:"2500000"`
		JPEGQuality int           `env:"CAPTURE_JPEG_QUALITY" env-default:"92"`
	}
	Story struct {
		SweepInterval  time.Duration `env:"STORY_SWEEP_INTERVAL" env-default:"60s"`
		DefaultTier    int           `env:"STORY_DEFAULT_TIER" env-default:"24"`
		Timezone       string        `env:"STORY_TIMEZONE" env-default:"UTC"`
		PublishPerMin  int           `env:"STORY_PUBLISH_PER_MINUTE" env-default:"10"`
		PublishBurst   int           `env:"STORY_PUBLISH_BURST" env-default:"3"`
		CleanupWorkers int           `env:"STORY_CLEANUP_WORKERS" env-default:"4"`
		MaxDrafts      int           `env:"STORY_MAX_DRAFTS" env-default:"10"`
	}
	Storage struct {
		Driver    string `env:"STORAGE_DRIVER" env-default:"memory"`
		Region    string `env:"S3_REGION" env-default:"us-east-1"`
		Bucket    string `env:"S3_BUCKET"`
		Endpoint  string `env:"S3_ENDPOINT"`
		AccessKey string `env:"S3_ACCESS_KEY"`
		SecretKey string `env:"S3_SECRET_KEY"`
		Prefix    string `env:"S3_PREFIX" env-default:"stories"`
	}
}

var (
	once sync.Once
	cfg  *Config
)

func New() (*Config, error) {
	once.Do(func() {
		cfg = &Config{}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			help, _ := cleanenv.GetDescription(cfg, nil)
			log.Fatalf("Failed to read configuration: %v\n%v", err, help)
		}
	})
	return cfg, nil
}
