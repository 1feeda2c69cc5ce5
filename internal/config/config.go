package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config holds the configuration settings for the geotweet resolver.
//
// Values come from the environment; a YAML file named by GEOTWEET_CONFIG_FILE may provide
// the same keys (env, provider.key, kafka.brokers and so on) and is overridden by the environment.
type Config struct {
	Env               string         `yaml:"env"`                  // Env is the current environment: local, development, production.
	Port              int            `yaml:"health.port"`          // Port is the monitoring server port.
	ProviderType      string         `yaml:"provider.type"`        // ProviderType specifies which geocoding provider to use
	APIKey            string         `yaml:"provider.key"`         // The API key for accessing the provider.
	ProviderURL       string         `yaml:"provider.url"`         // Optional override of the provider endpoint.
	RequestTimeout    time.Duration  `yaml:"provider.timeout"`     // Socket timeout of a single upstream request.
	ThrottleInterval  time.Duration  `yaml:"throttle.interval"`    // Initial minimum interval between requests.
	ThrottleIncrement time.Duration  `yaml:"throttle.increment"`   // Step added to the interval on a confirmed rate limit.
	ProbeDelay        time.Duration  `yaml:"throttle.probe_delay"` // Pause before the single probe after a rate limit.
	CacheDriver       string         `yaml:"cache.driver"`         // duckdb or postgres.
	CachePath         string         `yaml:"cache.path"`           // DuckDB file path.
	Database          PostgresConfig `yaml:"postgres"`             // Database holds the postgres database configuration
	Kafka             KafkaConfig    `yaml:"kafka"`                // Kafka holds the stream configuration
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `yaml:"host"`     // Host is the database server address.
	Port     string `yaml:"port"`     // Port is the database server port.
	User     string `yaml:"user"`     // User is the database user.
	Password string `yaml:"password"` // Password is the database user's password.
	Name     string `yaml:"db_name"`  // Name is the name of the database.
}

// KafkaConfig describes the status feed and the topic resolved statuses are written to.
type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	SourceTopic string   `yaml:"source_topic"`
	SinkTopic   string   `yaml:"sink_topic"`
	GroupID     string   `yaml:"group_id"`
}

// bindings maps configuration keys to their environment variables and defaults.
var bindings = []struct {
	key, env string
	value    any
}{
	{"env", "GEOTWEET_ENV", "production"},
	{"health.port", "GEOTWEET_HEALTH_PORT", "8080"},
	{"provider.type", "GEOTWEET_PROVIDER_TYPE", "google"},
	{"provider.key", "GEOTWEET_PROVIDER_KEY", ""},
	{"provider.url", "GEOTWEET_PROVIDER_URL", ""},
	{"provider.timeout", "GEOTWEET_REQUEST_TIMEOUT", "3s"},
	{"throttle.interval", "GEOTWEET_THROTTLE_INTERVAL", "100ms"},
	{"throttle.increment", "GEOTWEET_THROTTLE_INCREMENT", "100ms"},
	{"throttle.probe_delay", "GEOTWEET_PROBE_DELAY", "2s"},
	{"cache.driver", "GEOTWEET_CACHE_DRIVER", "duckdb"},
	{"cache.path", "GEOTWEET_CACHE_PATH", "geocode.cache.duckdb"},
	{"postgres.host", "DB_HOST", ""},
	{"postgres.port", "DB_PORT", "5432"},
	{"postgres.user", "DB_USERNAME", ""},
	{"postgres.password", "DB_PASSWORD", ""},
	{"postgres.db_name", "DB_NAME", ""},
	{"kafka.brokers", "KAFKA_BROKERS", "localhost:9092"},
	{"kafka.source_topic", "KAFKA_SOURCE_TOPIC", "statuses"},
	{"kafka.sink_topic", "KAFKA_SINK_TOPIC", "statuses-geotagged"},
	{"kafka.group_id", "KAFKA_GROUP_ID", "geotweet"},
}

// MustLoad loads the configuration and returns a Config struct.
// It panics if a value cannot be parsed.
func MustLoad() *Config {
	v := viper.New()
	for _, b := range bindings {
		v.SetDefault(b.key, b.value)
		_ = v.BindEnv(b.key, b.env)
	}

	if path := os.Getenv("GEOTWEET_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			panic("failed to read configuration file")
		}
	}

	healthPort, err := cast.ToIntE(v.Get("health.port"))
	if err != nil {
		panic("failed to parse port for monitoring server from configuration")
	}

	return &Config{
		Env:               v.GetString("env"),
		Port:              healthPort,
		ProviderType:      v.GetString("provider.type"),
		APIKey:            v.GetString("provider.key"),
		ProviderURL:       v.GetString("provider.url"),
		RequestTimeout:    mustDuration(v, "provider.timeout", "failed to parse request timeout from configuration"),
		ThrottleInterval:  mustDuration(v, "throttle.interval", "failed to parse throttle interval from configuration"),
		ThrottleIncrement: mustDuration(v, "throttle.increment", "failed to parse throttle increment from configuration"),
		ProbeDelay:        mustDuration(v, "throttle.probe_delay", "failed to parse probe delay from configuration"),
		CacheDriver:       v.GetString("cache.driver"),
		CachePath:         v.GetString("cache.path"),
		Database: PostgresConfig{
			Host:     v.GetString("postgres.host"),
			Port:     v.GetString("postgres.port"),
			User:     v.GetString("postgres.user"),
			Password: v.GetString("postgres.password"),
			Name:     v.GetString("postgres.db_name"),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(v.Get("kafka.brokers")),
			SourceTopic: v.GetString("kafka.source_topic"),
			SinkTopic:   v.GetString("kafka.sink_topic"),
			GroupID:     v.GetString("kafka.group_id"),
		},
	}
}

func mustDuration(v *viper.Viper, key, msg string) time.Duration {
	d, err := cast.ToDurationE(v.Get(key))
	if err != nil || d < 0 {
		panic(msg)
	}

	return d
}

// splitList accepts a comma separated string or a YAML sequence.
func splitList(value any) []string {
	var items []string
	if s, ok := value.(string); ok {
		items = strings.Split(s, ",")
	} else {
		items = cast.ToStringSlice(value)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}
