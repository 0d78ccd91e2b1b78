package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends for in-app notifications and the user directory.
const (
	StoreMongo  = "mongo"
	StoreDynamo = "dynamo"
	StoreMemory = "memory"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string   `env:"APP_PORT" envDefault:"3000"`
	AppEnv         string   `env:"APP_ENV" envDefault:"development"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"debug"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","` // CORS allowed origins
	Store          string   `env:"NOTIFICATION_STORE" envDefault:"mongo"`

	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`

	JWTPrivateKeyPath string        `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPublicKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH" envDefault:"./public_key.pem"`
	JWTExpiry         time.Duration `env:"JWT_EXPIRY" envDefault:"168h"`

	Mongo        Mongo        `envPrefix:"MONGODB_"`
	DynamoTables DynamoTables `envPrefix:"DYNAMO_TABLE_"`
	Email        Email        `envPrefix:"EMAIL_"`
	SMTP         SMTP         `envPrefix:"SMTP_"`
	Twilio       Twilio       `envPrefix:"TWILIO_"`
	Telegram     Telegram     `envPrefix:"TELEGRAM_"`
	FCM          FCM          `envPrefix:"FCM_"`
	SNS          SNS          `envPrefix:"SNS_"`
	Kafka        Kafka        `envPrefix:"KAFKA_"`
	Redis        Redis        `envPrefix:"REDIS_"`
	Dispatch     Dispatch     `envPrefix:"DISPATCH_"`
}

// Mongo configures the primary document store.
type Mongo struct {
	URL             string        `env:"URL" envDefault:"mongodb://localhost:27017"`
	Database        string        `env:"DATABASE" envDefault:"tuition"`
	ConnectTimeout  time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
	MaxPoolSize     uint64        `env:"MAX_POOL_SIZE" envDefault:"100"`
	MinPoolSize     uint64        `env:"MIN_POOL_SIZE" envDefault:"1"`
	MaxConnIdleTime time.Duration `env:"MAX_CONN_IDLE_TIME" envDefault:"300s"`
	RetryAttempts   int           `env:"RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval   time.Duration `env:"RETRY_INTERVAL" envDefault:"5s"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string `env:"USERS" envDefault:"users"`
	Notifications string `env:"NOTIFICATIONS" envDefault:"notifications"`
}

// Email configures the HTTP email provider (Postmark).
type Email struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER" envDefault:"noreply@example.com"`
	SenderName           string `env:"SENDER_NAME" envDefault:"Tuition App"`
}

// SMTP configures the fallback mail-submission transport.
type SMTP struct {
	Host           string        `env:"HOST"`
	Port           string        `env:"PORT" envDefault:"587"`
	From           string        `env:"FROM" envDefault:"noreply@example.com"`
	Username       string        `env:"USERNAME"`
	Password       string        `env:"PASSWORD"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"20s"`
	GreetTimeout   time.Duration `env:"GREETING_TIMEOUT" envDefault:"10s"`
	SocketTimeout  time.Duration `env:"SOCKET_TIMEOUT" envDefault:"20s"`
}

// Twilio configures WhatsApp delivery.
type Twilio struct {
	AccountSID string `env:"ACCOUNT_SID"`
	AuthToken  string `env:"AUTH_TOKEN"`
	From       string `env:"WHATSAPP_FROM"`
	BaseURL    string `env:"BASE_URL" envDefault:"https://api.twilio.com"`
}

// Telegram configures the bot used for chat notifications.
type Telegram struct {
	BotToken string `env:"BOT_TOKEN"`
	BaseURL  string `env:"BASE_URL" envDefault:"https://api.telegram.org"`
}

// FCM configures Firebase Cloud Messaging over the HTTP v1 API.
type FCM struct {
	ProjectID       string `env:"PROJECT_ID"`
	CredentialsFile string `env:"CREDENTIALS_FILE"`
	BaseURL         string `env:"BASE_URL" envDefault:"https://fcm.googleapis.com"`
}

// SNS configures the push fallback through SNS platform applications.
type SNS struct {
	Region                 string `env:"REGION" envDefault:"us-east-1"`
	PlatformApplicationARN string `env:"PLATFORM_APPLICATION_ARN"`
}

// Kafka configures event ingestion. No brokers disables the consumer.
type Kafka struct {
	Brokers []string `env:"BROKERS" envSeparator:","`
	GroupID string   `env:"GROUP_ID" envDefault:"tuition-notify"`
	Topics  []string `env:"TOPICS" envDefault:"tuition-events" envSeparator:","`
}

// Redis configures dispatch idempotency claims. An empty URL disables them.
type Redis struct {
	URL            string        `env:"URL"`
	ClaimTTL       time.Duration `env:"CLAIM_TTL" envDefault:"24h"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"30s"`
	RetryAttempts  int           `env:"RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"RETRY_INTERVAL" envDefault:"2s"`
}

// Dispatch tunes the fan-out executor and channel pacing.
type Dispatch struct {
	Workers       int           `env:"WORKERS" envDefault:"4"`
	QueueSize     int           `env:"QUEUE_SIZE" envDefault:"256"`
	TaskTimeout   time.Duration `env:"TASK_TIMEOUT" envDefault:"2m"`
	SendTimeout   time.Duration `env:"SEND_TIMEOUT" envDefault:"20s"`
	SendInterval  time.Duration `env:"SEND_INTERVAL" envDefault:"100ms"`
	ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE" envDefault:"15s"`
}

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.Store {
	case StoreMongo, StoreDynamo, StoreMemory:
	default:
		return nil, fmt.Errorf("unknown NOTIFICATION_STORE %q", cfg.Store)
	}
	return &cfg, nil
}

// Production reports whether the service runs with production settings.
func (c *Config) Production() bool { return c.AppEnv == "production" }
