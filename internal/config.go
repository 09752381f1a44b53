package internal

import (
	"fmt"
	"time"

	"github.com/samber/lo"
)

const (
	QueueBackendBadger = "badger"
	QueueBackendNats   = "nats"
)

type Config struct {
	LogLevel       string `env:"LOG_LEVEL,required=true"`
	Host           string `env:"HOST,default=localhost"`
	Port           int    `env:"PORT,default=8080"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	BufferSize      int           `env:"BUFFER_SIZE,required=true"`
	NumberOfWorkers int           `env:"NUMBER_OF_WORKERS,required=true"`
	SinkTimeout     time.Duration `env:"SINK_TIMEOUT,required=true"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,required=true"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,required=true"`

	QueueBackend  string        `env:"QUEUE_BACKEND,required=true"`
	NatsURL       string        `env:"NATS_URL"`
	ReceiveWait   time.Duration `env:"RECEIVE_WAIT,required=true"`
	LeaseDuration time.Duration `env:"LEASE_DURATION,required=true"`
	NackBaseDelay time.Duration `env:"NACK_BASE_DELAY,required=true"`
	MaxAttempts   int           `env:"MAX_ATTEMPTS,required=true"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT,required=true"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY,required=true"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY,required=true"`
	MinioBucket    string `env:"MINIO_BUCKET,required=true"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL,default=false"`

	MaxObjectBytes     int64         `env:"MAX_OBJECT_BYTES,required=true"`
	MaxImageBytes      int64         `env:"MAX_IMAGE_BYTES,required=true"`
	MaxVideoBytes      int64         `env:"MAX_VIDEO_BYTES,required=true"`
	MaxAudioBytes      int64         `env:"MAX_AUDIO_BYTES,required=true"`
	MaxDocumentBytes   int64         `env:"MAX_DOCUMENT_BYTES,required=true"`
	MaxImageDimension  int           `env:"MAX_IMAGE_DIMENSION,required=true"`
	MaxDurationSeconds float64       `env:"MAX_DURATION_SECONDS,required=true"`
	PresignTTL         time.Duration `env:"PRESIGN_TTL,required=true"`
	UploadTTL          time.Duration `env:"UPLOAD_TTL,required=true"`
	Retention          time.Duration `env:"RETENTION,required=true"`
	ReaperInterval     time.Duration `env:"REAPER_INTERVAL,required=true"`
	ReaperBatchSize    int           `env:"REAPER_BATCH_SIZE,required=true"`

	ScannerAddr string `env:"SCANNER_ADDR"`
	// No default on purpose: operators must decide what a scanner outage
	// means for their threat model before the pipeline will boot.
	ScannerFailOpen bool          `env:"SCANNER_FAIL_OPEN,required=true"`
	ScanTimeout     time.Duration `env:"SCAN_TIMEOUT,required=true"`
	FFProbePath     string        `env:"FFPROBE_PATH,default=ffprobe"`
	ProbeTimeout    time.Duration `env:"PROBE_TIMEOUT,required=true"`

	AuthTokenSecret   string        `env:"AUTH_TOKEN_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_TOPIC"`
}

// Validate catches the cross-field mistakes the env tags cannot express.
func (c Config) Validate() error {
	backends := []string{QueueBackendBadger, QueueBackendNats}
	if !lo.Contains(backends, c.QueueBackend) {
		return fmt.Errorf("QUEUE_BACKEND must be one of %v, got %q", backends, c.QueueBackend)
	}
	if c.QueueBackend == QueueBackendNats && c.NatsURL == "" {
		return fmt.Errorf("NATS_URL is required when QUEUE_BACKEND=%s", QueueBackendNats)
	}
	if c.KafkaBrokers != "" && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ATTEMPTS must be at least 1, got %d", c.MaxAttempts)
	}
	return nil
}
