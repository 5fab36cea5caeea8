package config

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	MinIOBucket string        `yaml:"minio_bucket"`
	App         App           `yaml:"app"`
	DB          *sql.DB       `yaml:"db"`
	Queue       *RabbitMQ     `yaml:"rabbitmq"`
	Storage     *minio.Client `yaml:"storage"`
	Server      Server        `yaml:"server"`
	Egress      Egress        `yaml:"egress"`
	Replay      Replay        `yaml:"replay"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

// Egress holds connection settings for the external egress controller.
type Egress struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	APISecret string        `yaml:"api_secret"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Replay holds the rolling-buffer tunables. Segment length is fixed by the
// egress recorder; the rest bound how much disk the buffer may consume and
// how aggressively background maintenance runs.
type Replay struct {
	StorageRoot     string        `yaml:"storage_root"`
	CacheRoot       string        `yaml:"cache_root"`
	MinSegmentBytes int64         `yaml:"min_segment_bytes"`
	RetentionAge    time.Duration `yaml:"retention_age"`
	StaleAge        time.Duration `yaml:"stale_age"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host:         viper.GetString("rabbitmq_host"),
		Port:         viper.GetInt("rabbitmq_port"),
		User:         viper.GetString("rabbitmq_user"),
		Pass:         viper.GetString("rabbitmq_pass"),
		Kind:         viper.GetString("rabbitmq_kind"),
		ExchangeName: viper.GetString("rabbitmq_exchange"),
	}

	minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	viper.SetDefault("egress.timeout", "10s")
	viper.SetDefault("replay.storage_root", "replay-buffer")
	viper.SetDefault("replay.cache_root", "replay-cache")
	viper.SetDefault("replay.min_segment_bytes", 10_000)
	viper.SetDefault("replay.retention_age", "30m")
	viper.SetDefault("replay.stale_age", "3h")

	return &Config{
		MinIOBucket: viper.GetString("minio.bucket"),
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		Egress: Egress{
			BaseURL:   viper.GetString("egress.base_url"),
			APIKey:    viper.GetString("egress.api_key"),
			APISecret: viper.GetString("egress.api_secret"),
			Timeout:   viper.GetDuration("egress.timeout"),
		},
		Replay: Replay{
			StorageRoot:     viper.GetString("replay.storage_root"),
			CacheRoot:       viper.GetString("replay.cache_root"),
			MinSegmentBytes: viper.GetInt64("replay.min_segment_bytes"),
			RetentionAge:    viper.GetDuration("replay.retention_age"),
			StaleAge:        viper.GetDuration("replay.stale_age"),
		},
		DB:      db,
		Queue:   rabbitmq,
		Storage: minioClient,
	}, nil
}
