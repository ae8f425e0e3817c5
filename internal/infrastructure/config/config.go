package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Agents.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Agents    AgentsConfig    `yaml:"agents"`
	Bus       BusConfig       `yaml:"bus"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// AgentsConfig contains the settings of every agent and their shared runtime.
type AgentsConfig struct {
	Runtime     RuntimeConfig       `yaml:"runtime"`
	Temperature TemperatureConfig   `yaml:"temperature"`
	Lighting    LightingConfig      `yaml:"lighting"`
	Security    SecurityAgentConfig `yaml:"security"`
}

// RuntimeConfig contains loop timings shared by all agents.
type RuntimeConfig struct {
	ErrorCooldown time.Duration `yaml:"error_cooldown"`
	HealthWindow  time.Duration `yaml:"health_window"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// TemperatureConfig contains the HVAC regulation settings.
type TemperatureConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Interval     time.Duration `yaml:"interval"`
	Low          float64       `yaml:"low"`
	High         float64       `yaml:"high"`
	OptimalMin   float64       `yaml:"optimal_min"`
	OptimalMax   float64       `yaml:"optimal_max"`
	HeatingPower float64       `yaml:"heating_power"`
	CoolingPower float64       `yaml:"cooling_power"`
	Variation    float64       `yaml:"variation"`
}

// LightingConfig contains the automatic lighting settings.
type LightingConfig struct {
	Enabled                   bool          `yaml:"enabled"`
	Interval                  time.Duration `yaml:"interval"`
	IdleTimeout               time.Duration `yaml:"idle_timeout"`
	AutoOnAtDusk              bool          `yaml:"auto_on_at_dusk"`
	AutoOffAtDawn             bool          `yaml:"auto_off_at_dawn"`
	KeepOnAtNightWithPresence bool          `yaml:"keep_on_at_night_with_presence"`
	OnWithMotionAtNight       bool          `yaml:"on_with_motion_at_night"`
}

// SecurityAgentConfig contains the intrusion detection settings.
type SecurityAgentConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Interval          time.Duration `yaml:"interval"`
	MotionProbability float64       `yaml:"motion_probability"`
	AlertCooldown     time.Duration `yaml:"alert_cooldown"`
}

// BusConfig contains message bus settings.
type BusConfig struct {
	Capacity int           `yaml:"capacity"`
	MaxAge   time.Duration `yaml:"max_age"`
}

// ScheduleConfig contains the day/night cron schedule.
type ScheduleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dusk    string `yaml:"dusk"`
	Dawn    string `yaml:"dawn"`
}

// DatabaseConfig contains SQLite settings for the operator journal.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled         bool                `yaml:"enabled"`
	Broker          MQTTBrokerConfig    `yaml:"broker"`
	Auth            MQTTAuthConfig      `yaml:"auth"`
	QoS             int                 `yaml:"qos"`
	Reconnect       MQTTReconnectConfig `yaml:"reconnect"`
	PublishInterval time.Duration       `yaml:"publish_interval"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// PanelDir serves the console page from disk instead of the embedded
	// copy when set and present.
	PanelDir string `yaml:"panel_dir"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int           `yaml:"max_message_size"`
	PingInterval   int           `yaml:"ping_interval"`
	PongTimeout    int           `yaml:"pong_timeout"`
	PushInterval   time.Duration `yaml:"push_interval"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled        bool          `yaml:"enabled"`
	URL            string        `yaml:"url"`
	Token          string        `yaml:"token"`
	Org            string        `yaml:"org"`
	Bucket         string        `yaml:"bucket"`
	BatchSize      int           `yaml:"batch_size"`
	FlushInterval  int           `yaml:"flush_interval"`
	RecordInterval time.Duration `yaml:"record_interval"`
}

// RedisConfig contains the Redis state mirror settings.
type RedisConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	KeyPrefix      string        `yaml:"key_prefix"`
	MirrorInterval time.Duration `yaml:"mirror_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig contains rate limiting settings for mutating console requests.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails. A missing
//     file wraps fs.ErrNotExist.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefaults returns the default configuration with environment overrides
// applied and validated. Used when no configuration file exists.
func LoadDefaults() (*Config, error) {
	cfg := Default()
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func finish(cfg *Config) error {
	if err := applyEnvOverrides(cfg); err != nil {
		return fmt.Errorf("applying environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// Default returns a Config with the standard simulation settings.
// Every external sink is disabled.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "home-001",
			Name:     "Gray Logic Home",
			Timezone: "UTC",
		},
		Agents: AgentsConfig{
			Runtime: RuntimeConfig{
				ErrorCooldown: 500 * time.Millisecond,
				HealthWindow:  5 * time.Second,
				ShutdownGrace: 2 * time.Second,
			},
			Temperature: TemperatureConfig{
				Enabled:      true,
				Interval:     300 * time.Millisecond,
				Low:          19.5,
				High:         26.0,
				OptimalMin:   20.5,
				OptimalMax:   24.0,
				HeatingPower: 0.08,
				CoolingPower: 0.10,
				Variation:    0.05,
			},
			Lighting: LightingConfig{
				Enabled:                   true,
				Interval:                  50 * time.Millisecond,
				IdleTimeout:               30 * time.Second,
				AutoOnAtDusk:              true,
				AutoOffAtDawn:             true,
				KeepOnAtNightWithPresence: true,
				OnWithMotionAtNight:       true,
			},
			Security: SecurityAgentConfig{
				Enabled:           true,
				Interval:          50 * time.Millisecond,
				MotionProbability: 0.01,
				AlertCooldown:     5 * time.Second,
			},
		},
		Bus: BusConfig{
			Capacity: 100,
			MaxAge:   2 * time.Second,
		},
		Schedule: ScheduleConfig{
			Enabled: false,
			Dusk:    "0 20 * * *",
			Dawn:    "0 7 * * *",
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/graylogic-agents.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-agents",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			PublishInterval: 500 * time.Millisecond,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			PushInterval:   250 * time.Millisecond,
		},
		InfluxDB: InfluxDBConfig{
			URL:            "http://localhost:8086",
			Org:            "graylogic",
			Bucket:         "home",
			BatchSize:      100,
			FlushInterval:  10,
			RecordInterval: 5 * time.Second,
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			KeyPrefix:      "graylogic:home",
			MirrorInterval: time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             20,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GRAYLOGIC_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Redis
	if v := os.Getenv("GRAYLOGIC_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("GRAYLOGIC_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// Logging
	if v := os.Getenv("GRAYLOGIC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Site validation
	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	errs = append(errs, c.Agents.validate()...)

	// Bus validation
	if c.Bus.Capacity < 1 {
		errs = append(errs, "bus.capacity must be positive")
	}
	if c.Bus.MaxAge <= 0 {
		errs = append(errs, "bus.max_age must be positive")
	}

	// Schedule validation
	if c.Schedule.Enabled {
		for name, spec := range map[string]string{"dusk": c.Schedule.Dusk, "dawn": c.Schedule.Dawn} {
			if _, err := cron.ParseStandard(spec); err != nil {
				errs = append(errs, fmt.Sprintf("schedule.%s is not a valid cron spec: %v", name, err))
			}
		}
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Enabled && c.MQTT.PublishInterval <= 0 {
		errs = append(errs, "mqtt.publish_interval must be positive")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.Enabled && c.WebSocket.PushInterval <= 0 {
		errs = append(errs, "websocket.push_interval must be positive")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.url and influxdb.bucket are required")
		}
		if c.InfluxDB.RecordInterval <= 0 {
			errs = append(errs, "influxdb.record_interval must be positive")
		}
	}

	// Redis validation
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required")
		}
		if c.Redis.MirrorInterval <= 0 {
			errs = append(errs, "redis.mirror_interval must be positive")
		}
	}

	// Logging validation
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	// Rate limit validation
	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RequestsPerMinute < 1 {
		errs = append(errs, "security.rate_limit.requests_per_minute must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (a AgentsConfig) validate() []string {
	var errs []string

	if a.Runtime.ErrorCooldown <= 0 {
		errs = append(errs, "agents.runtime.error_cooldown must be positive")
	}
	if a.Runtime.HealthWindow <= 0 {
		errs = append(errs, "agents.runtime.health_window must be positive")
	}

	t := a.Temperature
	if t.Enabled {
		if t.Interval <= 0 {
			errs = append(errs, "agents.temperature.interval must be positive")
		}
		if !(t.Low < t.OptimalMin && t.OptimalMin <= t.OptimalMax && t.OptimalMax < t.High) {
			errs = append(errs, "agents.temperature requires low < optimal_min <= optimal_max < high")
		}
	}

	l := a.Lighting
	if l.Enabled {
		if l.Interval <= 0 {
			errs = append(errs, "agents.lighting.interval must be positive")
		}
		if l.IdleTimeout <= 0 {
			errs = append(errs, "agents.lighting.idle_timeout must be positive")
		}
	}

	s := a.Security
	if s.Enabled {
		if s.Interval <= 0 {
			errs = append(errs, "agents.security.interval must be positive")
		}
		if s.MotionProbability < 0 || s.MotionProbability > 1 {
			errs = append(errs, "agents.security.motion_probability must be between 0 and 1")
		}
		if s.AlertCooldown < 0 {
			errs = append(errs, "agents.security.alert_cooldown must not be negative")
		}
	}

	return errs
}

// ReadTimeout returns the read timeout as a Duration.
func (c APIConfig) ReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// WriteTimeout returns the write timeout as a Duration.
func (c APIConfig) WriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// IdleTimeout returns the idle timeout as a Duration.
func (c APIConfig) IdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
