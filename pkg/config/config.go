package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/biodoia/roundtable/pkg/database"
	"github.com/spf13/viper"
)

// Config rappresenta la configurazione completa dell'applicazione
type Config struct {
	Server       ServerConfig           `mapstructure:"server" yaml:"server"`
	Model        ModelConfig            `mapstructure:"model" yaml:"model"`
	Models       map[string]ModelConfig `mapstructure:"models" yaml:"models,omitempty"`
	Database     database.Config        `mapstructure:"database" yaml:"database"`
	SessionStore SessionStoreConfig     `mapstructure:"session_store" yaml:"session_store"`
	Redis        RedisConfig            `mapstructure:"redis" yaml:"redis"`
	Chat         ChatConfig             `mapstructure:"chat" yaml:"chat"`
	Langfuse     LangfuseConfig         `mapstructure:"langfuse" yaml:"langfuse"`
	Logging      LoggingConfig          `mapstructure:"logging" yaml:"logging"`
	Metrics      MetricsConfig          `mapstructure:"metrics" yaml:"metrics"`
}

// ServerConfig configurazione del server HTTP
type ServerConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	RateLimitRPM int    `mapstructure:"rate_limit_rpm" yaml:"rate_limit_rpm"` // 0 = disabilitato
	CORSOrigins  string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// ModelConfig descrive un endpoint OpenAI-compatible
type ModelConfig struct {
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	ID          string        `mapstructure:"id" yaml:"id"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// SessionStoreConfig seleziona il backend delle sessioni
type SessionStoreConfig struct {
	Type string `mapstructure:"type" yaml:"type"` // "sql", "redis", "memory"
}

// RedisConfig configurazione Redis
type RedisConfig struct {
	Host     string        `mapstructure:"host" yaml:"host"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
}

// ChatConfig valori di default della discussione
type ChatConfig struct {
	CharactersFile         string `mapstructure:"characters_file" yaml:"characters_file"`
	DefaultRounds          int    `mapstructure:"default_rounds" yaml:"default_rounds"`
	DefaultDurationSeconds int    `mapstructure:"default_duration_seconds" yaml:"default_duration_seconds"`
	UserID                 string `mapstructure:"user_id" yaml:"user_id"`
}

// LangfuseConfig configurazione Langfuse (tracing OTLP + API REST)
type LangfuseConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Host        string `mapstructure:"host" yaml:"host"`
	PublicKey   string `mapstructure:"public_key" yaml:"public_key"`
	SecretKey   string `mapstructure:"secret_key" yaml:"secret_key"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// LoggingConfig configurazione del logger
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "json" o "console"
}

// MetricsConfig configurazione Prometheus
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

const (
	StoreSQL    = "sql"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// envBindings collega le variabili d'ambiente "storiche" alle chiavi di config
var envBindings = map[string][]string{
	"server.host":         {"CHAT_SERVER_HOST"},
	"server.port":         {"CHAT_SERVER_PORT"},
	"model.base_url":      {"OPENAI_BASE_URL"},
	"model.api_key":       {"OPENAI_API_KEY"},
	"langfuse.host":       {"LANGFUSE_HOST"},
	"langfuse.public_key": {"LANGFUSE_PUBLIC_KEY"},
	"langfuse.secret_key": {"LANGFUSE_SECRET_KEY"},
}

// Load carica la configurazione da file, .env e variabili d'ambiente
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Read environment variables
	v.SetEnvPrefix("ROUNDTABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key, "ROUNDTABLE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, envs...)...)
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	if err := mergeDotEnv(v, ".env"); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Defaults restituisce la configurazione con i soli valori di default
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Redacted restituisce una copia con le credenziali mascherate
func (c *Config) Redacted() *Config {
	out := *c
	out.Model.APIKey = mask(out.Model.APIKey)
	out.Redis.Password = mask(out.Redis.Password)
	out.Langfuse.SecretKey = mask(out.Langfuse.SecretKey)
	out.Database.Connection = maskDSN(out.Database)

	if len(c.Models) > 0 {
		out.Models = make(map[string]ModelConfig, len(c.Models))
		for name, m := range c.Models {
			m.APIKey = mask(m.APIKey)
			out.Models[name] = m
		}
	}
	return &out
}

func mask(secret string) string {
	switch {
	case secret == "" || secret == "EMPTY":
		return secret
	case len(secret) <= 8:
		return "****"
	default:
		return secret[:4] + "****"
	}
}

// maskDSN nasconde la password di una connection string postgres
func maskDSN(db database.Config) string {
	if db.Type != "postgres" {
		return db.Connection
	}
	fields := strings.Fields(db.Connection)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=****"
		}
	}
	return strings.Join(fields, " ")
}

// mergeDotEnv legge un file .env e ne applica i valori come default di ambiente.
// Le variabili già presenti nel processo hanno la precedenza.
func mergeDotEnv(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	for key, envs := range envBindings {
		for _, name := range append([]string{"ROUNDTABLE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, envs...) {
			if _, set := os.LookupEnv(name); set {
				break
			}
			if val := env.GetString(strings.ToLower(name)); val != "" {
				v.Set(key, val)
				break
			}
		}
	}

	return nil
}

// setDefaults imposta i valori di default
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.rate_limit_rpm", 30)
	v.SetDefault("server.cors_origins", "*")

	// Model defaults (vLLM locale)
	v.SetDefault("model.base_url", "http://localhost:8000/v1")
	v.SetDefault("model.api_key", "EMPTY")
	v.SetDefault("model.id", "Qwen3-32B")
	v.SetDefault("model.max_tokens", 2048)
	v.SetDefault("model.temperature", 0.7)
	v.SetDefault("model.timeout", "120s")
	v.SetDefault("model.max_retries", 2)

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.connection", "./data/roundtable.db")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.log_level", "warn")

	// Session store defaults
	v.SetDefault("session_store.type", StoreSQL)

	// Redis defaults
	v.SetDefault("redis.host", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "168h")
	v.SetDefault("redis.prefix", "roundtable")

	// Chat defaults
	v.SetDefault("chat.characters_file", "characters_config.json")
	v.SetDefault("chat.default_rounds", 1)
	v.SetDefault("chat.default_duration_seconds", 10)
	v.SetDefault("chat.user_id", "multi-agent-forum")

	// Langfuse defaults
	v.SetDefault("langfuse.enabled", false)
	v.SetDefault("langfuse.host", "http://localhost:3000")
	v.SetDefault("langfuse.environment", "development")

	// Logging & metrics defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("metrics.enabled", true)
}

// Validate valida la configurazione
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if strings.TrimSpace(c.Model.BaseURL) == "" {
		return fmt.Errorf("model base_url is required")
	}
	if c.Model.ID == "" {
		return fmt.Errorf("model id is required")
	}
	for name, m := range c.Models {
		if m.BaseURL == "" && c.Model.BaseURL == "" {
			return fmt.Errorf("model preset %q has no base_url", name)
		}
	}

	switch c.SessionStore.Type {
	case StoreSQL, StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("unsupported session store: %s", c.SessionStore.Type)
	}

	if c.Chat.DefaultRounds < 1 || c.Chat.DefaultRounds > 10 {
		return fmt.Errorf("chat default_rounds must be between 1 and 10, got %d", c.Chat.DefaultRounds)
	}
	if c.Chat.DefaultDurationSeconds < 1 || c.Chat.DefaultDurationSeconds > 120 {
		return fmt.Errorf("chat default_duration_seconds must be between 1 and 120, got %d", c.Chat.DefaultDurationSeconds)
	}

	if c.Langfuse.Enabled && (c.Langfuse.PublicKey == "" || c.Langfuse.SecretKey == "") {
		return fmt.Errorf("langfuse enabled but public_key/secret_key missing")
	}

	return nil
}

// ResolveModel restituisce il preset richiesto, completato con i valori di model.*
func (c *Config) ResolveModel(name string) (ModelConfig, error) {
	if name == "" || name == "default" {
		return c.Model, nil
	}

	preset, ok := c.Models[name]
	if !ok {
		return ModelConfig{}, fmt.Errorf("unknown model preset: %s", name)
	}

	if preset.BaseURL == "" {
		preset.BaseURL = c.Model.BaseURL
	}
	if preset.APIKey == "" {
		preset.APIKey = c.Model.APIKey
	}
	if preset.ID == "" {
		preset.ID = name
	}
	if preset.MaxTokens == 0 {
		preset.MaxTokens = c.Model.MaxTokens
	}
	if preset.Temperature == 0 {
		preset.Temperature = c.Model.Temperature
	}
	if preset.Timeout == 0 {
		preset.Timeout = c.Model.Timeout
	}
	if preset.MaxRetries == 0 {
		preset.MaxRetries = c.Model.MaxRetries
	}

	return preset, nil
}

// Addr restituisce l'indirizzo host:port del server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
