package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/ruudy-sib/outbound/internal/domain"
	"github.com/ruudy-sib/outbound/internal/domain/entity"
)

// Broker transports.
const (
	TransportAMQP  = "amqp"
	TransportKafka = "kafka"
	TransportHTTP  = "http"
)

// Queue backends.
const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
)

// Config holds all application configuration values.
type Config struct {
	// HTTP server
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Application
	Environment string `env:"ENVIRONMENT" envDefault:"local"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	ClientRole  string `env:"CLIENT_ROLE" envDefault:"frontend-go"`

	// Broker
	BrokerTransport    string        `env:"BROKER_TRANSPORT" envDefault:"amqp"`
	DefaultDestination string        `env:"DEFAULT_DESTINATION" envDefault:"work-queue-requests"`
	SendTimeout        time.Duration `env:"SEND_TIMEOUT" envDefault:"5s"`

	// AMQP
	AMQPHost     string `env:"AMQP_HOST"`
	AMQPPort     int    `env:"AMQP_PORT" envDefault:"5672"`
	AMQPUser     string `env:"AMQP_USER" envDefault:"guest"`
	AMQPPassword string `env:"AMQP_PASSWORD" envDefault:"guest"`
	AMQPVHost    string `env:"AMQP_VHOST" envDefault:"/"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// HTTP broker
	HTTPBrokerURL string `env:"HTTP_BROKER_URL"`

	// Delivery queue
	QueueBackend  string `env:"QUEUE_BACKEND" envDefault:"memory"`
	QueueCapacity int    `env:"QUEUE_CAPACITY" envDefault:"1000"`

	// Redis
	RedisMode          string   `env:"REDIS_MODE" envDefault:"standalone"` // "standalone", "sentinel", "cluster"
	RedisHost          string   `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort          string   `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword      string   `env:"REDIS_PASSWORD"`
	RedisDB            int      `env:"REDIS_DB" envDefault:"0"`
	RedisMasterName    string   `env:"REDIS_MASTER_NAME"`
	RedisSentinelAddrs []string `env:"REDIS_SENTINEL_ADDRS" envSeparator:","`
	RedisClusterAddrs  []string `env:"REDIS_CLUSTER_ADDRS" envSeparator:","`
	RedisQueueKey      string   `env:"REDIS_QUEUE_KEY" envDefault:"outbound:queue"`

	// InstanceName scopes the Redis queue to one producer. Defaults to the
	// host name, which is stable across restarts of the same pod or VM.
	InstanceName string `env:"INSTANCE_NAME"`

	// Reconnect policy
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY" envDefault:"500ms"`
	RetryMaxDelay  time.Duration `env:"RETRY_MAX_DELAY" envDefault:"30s"`
	RetryJitter    float64       `env:"RETRY_JITTER" envDefault:"0.2"`
	RetryLimit     int           `env:"RETRY_LIMIT" envDefault:"0"` // 0 retries forever

	// Worker
	MonitorInterval time.Duration `env:"MONITOR_INTERVAL" envDefault:"5s"`
}

// New loads .env files when present and parses the environment into a Config.
func New() (*Config, error) {
	if err := loadEnvFiles(".env", ".env.local"); err != nil {
		return nil, fmt.Errorf("%w: loading env files: %v", domain.ErrConfiguration, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	return cfg, nil
}

func loadEnvFiles(files ...string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// RedisAddr returns the standalone Redis address.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// QueueKey returns the Redis list used by this producer instance:
// <REDIS_QUEUE_KEY>:<CLIENT_ROLE>:<INSTANCE_NAME>. Producers never share a list.
func (c *Config) QueueKey() string {
	return c.RedisQueueKey + ":" + c.ClientRole + ":" + c.instance()
}

func (c *Config) instance() string {
	if name := strings.TrimSpace(c.InstanceName); name != "" {
		return name
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return ""
}

// BrokerHost returns the broker location for the selected transport, or an
// empty string when none is configured.
func (c *Config) BrokerHost() string {
	switch c.BrokerTransport {
	case TransportKafka:
		for _, b := range c.KafkaBrokers {
			if strings.TrimSpace(b) != "" {
				return strings.TrimSpace(b)
			}
		}
		return ""
	case TransportHTTP:
		return strings.TrimSpace(c.HTTPBrokerURL)
	default:
		return strings.TrimSpace(c.AMQPHost)
	}
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), domain.EnvironmentProduction)
}

// Mode selects live or no-op delivery from the environment and broker host.
func (c *Config) Mode() (entity.Mode, error) {
	return entity.SelectMode(c.Environment, c.BrokerHost())
}

// Validate checks option combinations env parsing cannot express.
func (c *Config) Validate() error {
	switch c.BrokerTransport {
	case TransportAMQP, TransportKafka, TransportHTTP:
	default:
		return fmt.Errorf("%w: unknown broker transport %q", domain.ErrConfiguration, c.BrokerTransport)
	}

	switch c.QueueBackend {
	case QueueMemory, QueueRedis:
	default:
		return fmt.Errorf("%w: unknown queue backend %q", domain.ErrConfiguration, c.QueueBackend)
	}

	if c.QueueCapacity <= 0 {
		return fmt.Errorf("%w: queue capacity must be positive, got %d", domain.ErrConfiguration, c.QueueCapacity)
	}
	if strings.TrimSpace(c.DefaultDestination) == "" {
		return fmt.Errorf("%w: default destination must not be empty", domain.ErrConfiguration)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("%w: send timeout must be positive", domain.ErrConfiguration)
	}
	if c.RetryBaseDelay <= 0 || c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("%w: invalid retry delays base=%s max=%s",
			domain.ErrConfiguration, c.RetryBaseDelay, c.RetryMaxDelay)
	}
	if c.RetryLimit < 0 {
		return fmt.Errorf("%w: retry limit must not be negative", domain.ErrConfiguration)
	}

	if c.QueueBackend == QueueRedis {
		if strings.TrimSpace(c.RedisQueueKey) == "" {
			return fmt.Errorf("%w: REDIS_QUEUE_KEY must not be empty", domain.ErrConfiguration)
		}
		if c.instance() == "" {
			return fmt.Errorf("%w: INSTANCE_NAME is required when the host name is unavailable", domain.ErrConfiguration)
		}
		switch c.RedisMode {
		case "standalone", "":
		case "sentinel":
			if c.RedisMasterName == "" || len(c.RedisSentinelAddrs) == 0 {
				return fmt.Errorf("%w: sentinel mode requires REDIS_MASTER_NAME and REDIS_SENTINEL_ADDRS", domain.ErrConfiguration)
			}
		case "cluster":
			if len(c.RedisClusterAddrs) == 0 {
				return fmt.Errorf("%w: cluster mode requires REDIS_CLUSTER_ADDRS", domain.ErrConfiguration)
			}
		default:
			return fmt.Errorf("%w: unknown redis mode %q", domain.ErrConfiguration, c.RedisMode)
		}
	}

	if _, err := c.Mode(); err != nil {
		return err
	}
	return nil
}
