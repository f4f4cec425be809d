package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Line      LineConfig      `mapstructure:"line"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	AI        AIConfig        `mapstructure:"ai"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Sheet     SheetConfig     `mapstructure:"sheet"`
	Program   ProgramConfig   `mapstructure:"program"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Push      PushConfig      `mapstructure:"push"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LineConfig struct {
	ChannelSecret string `mapstructure:"channel_secret"`
	ChannelToken  string `mapstructure:"channel_token"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type OpenAIConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	Model          string  `mapstructure:"model"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
}

type AIConfig struct {
	KnowledgeBase string        `mapstructure:"knowledge_base"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
	Timeout       time.Duration `mapstructure:"timeout"`
	TopK          int           `mapstructure:"top_k"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type SheetConfig struct {
	URL     string        `mapstructure:"url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ProgramConfig struct {
	Timezone string `mapstructure:"timezone"`
}

type KnowledgeConfig struct {
	Dir string `mapstructure:"dir"`
}

type PushConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverSheet    = "sheet"
)

func (c *Config) LineEnabled() bool {
	return c.Line.ChannelSecret != "" && c.Line.ChannelToken != ""
}

func (c *Config) TelegramEnabled() bool {
	return c.Telegram.Token != ""
}

// Validate checks what serve needs before anything is started.
func (c *Config) Validate() error {
	if !c.LineEnabled() && !c.TelegramEnabled() {
		return errors.New("no transport configured: set line.channel_secret and line.channel_token, or telegram.token")
	}
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverSheet:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == DriverSheet && c.Sheet.URL == "" {
		return errors.New("storage driver sheet needs sheet.url")
	}
	return nil
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Host == "" {
		return DatabaseConfig{}, fmt.Errorf("missing host in %q", u.Redacted())
	}

	password, _ := u.User.Password()
	port := 5432
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q: %w", p, err)
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

// LoadConfig reads path and applies environment overrides. A missing file
// is not an error so the bot can run from the environment alone.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.max_tokens", 800)
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("ai.cooldown", 20*time.Second)
	v.SetDefault("ai.timeout", 20*time.Second)
	v.SetDefault("ai.top_k", 4)
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("sqlite.path", "slimday.db")
	v.SetDefault("sheet.timeout", 10*time.Second)
	v.SetDefault("program.timezone", "Asia/Taipei")
	v.SetDefault("push.enabled", false)
	v.SetDefault("push.schedule", "0 8 * * *")
	v.SetDefault("log.development", false)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	overrides := []struct {
		env    string
		target *string
	}{
		{"LINE_CHANNEL_SECRET", &config.Line.ChannelSecret},
		{"LINE_CHANNEL_TOKEN", &config.Line.ChannelToken},
		{"TELEGRAM_TOKEN", &config.Telegram.Token},
		{"OPENAI_API_KEY", &config.OpenAI.APIKey},
		{"KNOWLEDGE_BASE", &config.AI.KnowledgeBase},
		{"SHEET_URL", &config.Sheet.URL},
		{"SHEET_SECRET", &config.Sheet.Secret},
	}
	for _, o := range overrides {
		if val := v.GetString(o.env); val != "" {
			*o.target = val
		}
	}

	return &config, nil
}
