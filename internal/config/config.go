package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port      int
	LogLevel  string
	LogFormat string

	DBDriver string
	DBDSN    string

	JWTSecret string
	JWTTTL    time.Duration

	WSInsecureSkipVerify bool
	WSOriginPatterns     []string
	WSEventRate          float64
	WSEventBurst         int

	UploadDir      string
	UploadBaseURL  string
	UploadMaxBytes int64
	UploadMaxFiles int

	RedisAddr     string
	RedisPassword string
	RedisChannel  string

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", 8084)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("WS_INSECURE_SKIP_VERIFY", false)
	v.SetDefault("WS_EVENT_RATE", 10.0)
	v.SetDefault("WS_EVENT_BURST", 20)
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_BASE_URL", "/uploads")
	v.SetDefault("UPLOAD_MAX_BYTES", 10<<20)
	v.SetDefault("UPLOAD_MAX_FILES", 5)
	v.SetDefault("REDIS_CHANNEL", "taskchat:rooms")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
}

// Load membaca .env (kalau ada) lalu environment variable.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Port:      v.GetInt("APP_PORT"),
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		DBDriver: strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:    v.GetString("DB_DSN"),

		JWTSecret: v.GetString("JWT_SECRET"),
		JWTTTL:    v.GetDuration("JWT_TTL"),

		WSInsecureSkipVerify: v.GetBool("WS_INSECURE_SKIP_VERIFY"),
		WSOriginPatterns:     splitList(v.GetString("WS_ORIGIN_PATTERNS")),
		WSEventRate:          v.GetFloat64("WS_EVENT_RATE"),
		WSEventBurst:         v.GetInt("WS_EVENT_BURST"),

		UploadDir:      v.GetString("UPLOAD_DIR"),
		UploadBaseURL:  strings.TrimRight(v.GetString("UPLOAD_BASE_URL"), "/"),
		UploadMaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
		UploadMaxFiles: v.GetInt("UPLOAD_MAX_FILES"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisChannel:  v.GetString("REDIS_CHANNEL"),

		OpenAIKey:     v.GetString("OPENAI_API_KEY"),
		OpenAIModel:   v.GetString("OPENAI_MODEL"),
		OpenAIBaseURL: v.GetString("OPENAI_BASE_URL"),
	}
}

// Validate juga menormalkan DSN mysql (parseTime wajib true untuk kolom time).
func (c *Config) Validate() error {
	if c.DBDSN == "" || c.JWTSecret == "" {
		return errors.New("DB_DSN dan JWT_SECRET wajib diisi")
	}
	switch c.DBDriver {
	case "mysql":
		parsed, err := mysql.ParseDSN(c.DBDSN)
		if err != nil {
			return fmt.Errorf("invalid DB_DSN: %w", err)
		}
		parsed.ParseTime = true
		c.DBDSN = parsed.FormatDSN()
	case "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.UploadMaxBytes <= 0 || c.UploadMaxFiles <= 0 {
		return errors.New("UPLOAD_MAX_BYTES dan UPLOAD_MAX_FILES harus > 0")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
