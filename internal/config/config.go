package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int

	Migrate       bool // 启动时执行 migrations
	SnapshotReads bool // 分页 + 总数在同一快照中读取
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// URL renders the connection as a postgres:// URL (golang-migrate wants one).
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Config owl-location 配置
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  DatabaseConfig
	Redis     RedisConfig
	MQTT      MQTTConfig
	Log       struct {
		Level  string
		Format string
	}
	Tree struct {
		Strategy string // recursive | frontier
		MaxDepth int
	}
	Events struct {
		Backend     string // none | redis | mqtt
		Stream      string // Redis stream key
		TopicPrefix string // MQTT topic prefix
	}
}

var defaults = map[string]any{
	"HTTP_ADDR": ":3000",

	// Default to true for local dev: if DB is unavailable, owl-location falls back to the memory repository.
	"DB_ENABLED":        true,
	"DB_HOST":           "localhost",
	"DB_PORT":           5432,
	"DB_USER":           "postgres",
	"DB_PASSWORD":       "postgres",
	"DB_NAME":           "owlrd",
	"DB_SSLMODE":        "disable",
	"DB_MAX_CONNS":      25,
	"DB_MAX_IDLE":       5,
	"DB_MIGRATE":        false,
	"DB_SNAPSHOT_READS": true,

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "json",

	"TREE_STRATEGY":  "recursive",
	"TREE_MAX_DEPTH": 256,

	"EVENTS_BACKEND":    "none",
	"EVENTS_STREAM":     "locations:events",
	"REDIS_ADDR":        "localhost:6379",
	"REDIS_PASSWORD":    "",
	"REDIS_DB":          0,
	"MQTT_BROKER":       "tcp://localhost:1883",
	"MQTT_CLIENT_ID":    "owl-location",
	"MQTT_USERNAME":     "",
	"MQTT_PASSWORD":     "",
	"MQTT_QOS":          1,
	"MQTT_TOPIC_PREFIX": "locations",
}

// Load reads configuration from the environment, then an optional dotenv
// file (CONFIG_FILE, default ".env"), then the defaults above.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit dotenv path; "" means ".env". A missing
// file is not an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Addr = v.GetString("HTTP_ADDR")

	cfg.DBEnabled = v.GetBool("DB_ENABLED")
	cfg.Database.Host = v.GetString("DB_HOST")
	cfg.Database.Port = v.GetInt("DB_PORT")
	cfg.Database.User = v.GetString("DB_USER")
	cfg.Database.Password = v.GetString("DB_PASSWORD")
	cfg.Database.Database = v.GetString("DB_NAME")
	cfg.Database.SSLMode = v.GetString("DB_SSLMODE")
	cfg.Database.MaxConns = v.GetInt("DB_MAX_CONNS")
	cfg.Database.MaxIdle = v.GetInt("DB_MAX_IDLE")
	cfg.Database.Migrate = v.GetBool("DB_MIGRATE")
	cfg.Database.SnapshotReads = v.GetBool("DB_SNAPSHOT_READS")

	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Format = v.GetString("LOG_FORMAT")

	cfg.Tree.Strategy = strings.ToLower(v.GetString("TREE_STRATEGY"))
	cfg.Tree.MaxDepth = v.GetInt("TREE_MAX_DEPTH")
	if cfg.Tree.MaxDepth <= 0 {
		return nil, fmt.Errorf("TREE_MAX_DEPTH must be positive, got %d", cfg.Tree.MaxDepth)
	}

	cfg.Events.Backend = strings.ToLower(v.GetString("EVENTS_BACKEND"))
	cfg.Events.Stream = v.GetString("EVENTS_STREAM")
	cfg.Events.TopicPrefix = v.GetString("MQTT_TOPIC_PREFIX")
	switch cfg.Events.Backend {
	case "none", "redis", "mqtt":
	default:
		return nil, fmt.Errorf("unknown EVENTS_BACKEND %q", cfg.Events.Backend)
	}

	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.MQTT.Broker = v.GetString("MQTT_BROKER")
	cfg.MQTT.ClientID = v.GetString("MQTT_CLIENT_ID")
	cfg.MQTT.Username = v.GetString("MQTT_USERNAME")
	cfg.MQTT.Password = v.GetString("MQTT_PASSWORD")
	cfg.MQTT.QoS = byte(v.GetInt("MQTT_QOS"))

	return cfg, nil
}
