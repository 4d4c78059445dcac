package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the process needs. It is loaded once at start-up
// and passed down explicitly.
type Config struct {
	Server    ServerConfig
	Dataverse DataverseConfig
	Audit     AuditConfig
	Queue     QueueConfig
	Mail      MailConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port               string
	FunctionKey        string
	RateLimitPerMinute int
	AllowedOrigins     []string
}

// DataverseConfig identifies the remote CRM instance and the app registration
// used to reach it.
type DataverseConfig struct {
	SecretValue string
	AppID       string
	InstanceURI string
	TenantID    string
	Timeout     time.Duration
}

type AuditConfig struct {
	DatabaseURL string
	Retention   time.Duration
}

type QueueConfig struct {
	URL string
}

type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type LoggingConfig struct {
	Level        string
	Format       string
	Output       string
	FileRotation bool
	MaxSize      int
	MaxBackups   int
	MaxAge       int
}

var ErrMissingDataverseSettings = errors.New("SecretValue, AppID and InstanceUri must be set")

// envBindings maps viper keys to the environment variables that feed them.
// The Dataverse names keep the casing the Azure Function app settings use.
var envBindings = map[string][]string{
	"server.port":            {"FUNCTIONS_CUSTOMHANDLER_PORT", "PORT"},
	"server.function_key":    {"FUNCTION_KEY"},
	"server.rate_limit":      {"RATE_LIMIT_PER_MINUTE"},
	"server.allowed_origins": {"ALLOWED_ORIGINS"},
	"dataverse.secret":       {"SecretValue"},
	"dataverse.app_id":       {"AppID"},
	"dataverse.instance_uri": {"InstanceUri"},
	"dataverse.tenant_id":    {"TenantID"},
	"dataverse.timeout":      {"DATAVERSE_TIMEOUT"},
	"audit.database_url":     {"DATABASE_URL"},
	"audit.retention":        {"AUDIT_RETENTION"},
	"queue.url":              {"RABBITMQ_URL"},
	"mail.host":              {"MAIL_HOST"},
	"mail.port":              {"MAIL_PORT"},
	"mail.user":              {"MAIL_USER"},
	"mail.password":          {"MAIL_PASS"},
	"mail.from":              {"MAIL_FROM"},
	"logging.level":          {"LOG_LEVEL"},
	"logging.format":         {"LOG_FORMAT"},
	"logging.output":         {"LOG_OUTPUT"},
	"logging.file_rotation":  {"LOG_FILE_ROTATION"},
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// .env is optional; real deployments use app settings.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               v.GetString("server.port"),
			FunctionKey:        v.GetString("server.function_key"),
			RateLimitPerMinute: v.GetInt("server.rate_limit"),
			AllowedOrigins:     splitList(v.GetString("server.allowed_origins")),
		},
		Dataverse: DataverseConfig{
			SecretValue: v.GetString("dataverse.secret"),
			AppID:       v.GetString("dataverse.app_id"),
			InstanceURI: strings.TrimRight(v.GetString("dataverse.instance_uri"), "/"),
			TenantID:    v.GetString("dataverse.tenant_id"),
			Timeout:     v.GetDuration("dataverse.timeout"),
		},
		Audit: AuditConfig{
			DatabaseURL: v.GetString("audit.database_url"),
			Retention:   v.GetDuration("audit.retention"),
		},
		Queue: QueueConfig{
			URL: v.GetString("queue.url"),
		},
		Mail: MailConfig{
			Host:     v.GetString("mail.host"),
			Port:     v.GetInt("mail.port"),
			User:     v.GetString("mail.user"),
			Password: v.GetString("mail.password"),
			From:     v.GetString("mail.from"),
		},
		Logging: LoggingConfig{
			Level:        v.GetString("logging.level"),
			Format:       v.GetString("logging.format"),
			Output:       v.GetString("logging.output"),
			FileRotation: v.GetBool("logging.file_rotation"),
			MaxSize:      100,
			MaxBackups:   3,
			MaxAge:       28,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.rate_limit", 60)
	v.SetDefault("server.allowed_origins", "*")
	v.SetDefault("dataverse.timeout", 30*time.Second)
	v.SetDefault("audit.retention", 720*time.Hour)
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.from", "no-reply@example.com")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

func (c *Config) Validate() error {
	d := c.Dataverse
	if d.SecretValue == "" || d.AppID == "" || d.InstanceURI == "" {
		return ErrMissingDataverseSettings
	}
	if !strings.HasPrefix(d.InstanceURI, "https://") && !strings.HasPrefix(d.InstanceURI, "http://") {
		return fmt.Errorf("InstanceUri must be an absolute URL, got %q", d.InstanceURI)
	}
	if d.Timeout <= 0 {
		return fmt.Errorf("DATAVERSE_TIMEOUT must be positive, got %s", d.Timeout)
	}
	if c.Audit.Retention <= 0 {
		return fmt.Errorf("AUDIT_RETENTION must be positive, got %s", c.Audit.Retention)
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	return nil
}

// String describes the Dataverse connection without the client secret.
func (d DataverseConfig) String() string {
	return fmt.Sprintf("AuthType=ClientSecret;Url=%s;ClientId=%s;Secret=***", d.InstanceURI, d.AppID)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
