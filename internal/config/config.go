package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hongminglow/taskkez-be/internal/auth"
)

// Config holds runtime configuration sourced from env vars, optionally layered
// over a YAML file named by CONFIG_FILE.
type Config struct {
	Env         string
	Port        string
	DatabaseURL string
	JWTSecret   string
	JWTIssuer   string
	JWTTTL      time.Duration
	CORSOrigins []string

	RedisAddrs    []string
	RedisPassword string

	KafkaBrokers     []string
	KafkaNotifyTopic string

	AuthMethod        auth.Method
	EmailVerification auth.VerificationMode
	UniqueEmail       bool
	EmailConfirmTTL   time.Duration
	PasswordResetTTL  time.Duration

	IDNumberMaxLength  int
	DefaultPhoneRegion string

	MediaRoot           string
	MediaURL            string
	MaxUploadBytes      int64
	PictureMaxDimension int
	MaxImagePixels      int64

	LoginRatePerMinute int
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	src, err := newSource(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return Config{}, err
	}
	return load(src)
}

func load(src source) (Config, error) {
	var err error
	cfg := Config{
		Env:                 src.get("APP_ENV", "production"),
		Port:                src.get("PORT", "8080"),
		DatabaseURL:         src.get("DATABASE_URL", ""),
		JWTSecret:           src.get("JWT_SECRET", ""),
		JWTIssuer:           src.get("JWT_ISSUER", "taskkez"),
		JWTTTL:              time.Duration(positiveInt(src.get("JWT_TTL_MINUTES", "60"), 60)) * time.Minute,
		CORSOrigins:         parseCSV(src.get("CORS_ALLOWED_ORIGINS", "*")),
		RedisAddrs:          splitCSV(src.get("REDIS_ADDR", "")),
		RedisPassword:       src.get("REDIS_PASSWORD", ""),
		KafkaBrokers:        splitCSV(src.get("KAFKA_BROKERS", "")),
		KafkaNotifyTopic:    src.get("KAFKA_NOTIFY_TOPIC", ""),
		EmailConfirmTTL:     time.Duration(positiveInt(src.get("EMAIL_CONFIRM_TTL_HOURS", "72"), 72)) * time.Hour,
		PasswordResetTTL:    time.Duration(positiveInt(src.get("PASSWORD_RESET_TTL_MINUTES", "60"), 60)) * time.Minute,
		IDNumberMaxLength:   positiveInt(src.get("ID_NUMBER_MAX_LENGTH", "14"), 14),
		DefaultPhoneRegion:  strings.ToUpper(src.get("DEFAULT_PHONE_REGION", "EG")),
		MediaRoot:           src.get("MEDIA_ROOT", "media"),
		MediaURL:            src.get("MEDIA_URL", "/media/"),
		MaxUploadBytes:      int64(positiveInt(src.get("MAX_UPLOAD_BYTES", "5242880"), 5<<20)),
		PictureMaxDimension: positiveInt(src.get("PROFILE_PICTURE_MAX_DIMENSION", "1024"), 1024),
		MaxImagePixels:      int64(positiveInt(src.get("MAX_IMAGE_PIXELS", "40000000"), 40_000_000)),
		LoginRatePerMinute:  positiveInt(src.get("LOGIN_RATE_PER_MINUTE", "10"), 10),
	}

	if cfg.AuthMethod, err = auth.ParseMethod(src.get("AUTH_METHOD", "")); err != nil {
		return Config{}, err
	}
	if cfg.EmailVerification, err = auth.ParseVerificationMode(src.get("EMAIL_VERIFICATION", "")); err != nil {
		return Config{}, err
	}
	unique, err := strconv.ParseBool(src.get("UNIQUE_EMAIL", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("UNIQUE_EMAIL: %w", err)
	}
	cfg.UniqueEmail = unique

	if cfg.DatabaseURL == "" && !cfg.IsDevelopment() {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaNotifyTopic == "" {
		return Config{}, errors.New("KAFKA_NOTIFY_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether in-process fallbacks are acceptable.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.Env) {
	case "development", "dev", "test":
		return true
	}
	return false
}

// source resolves a key from the environment first, then the config file.
type source struct {
	file   map[string]string
	lookup func(string) (string, bool)
}

func newSource(path string) (source, error) {
	src := source{file: map[string]string{}, lookup: os.LookupEnv}
	path = strings.TrimSpace(path)
	if path == "" {
		return src, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return source{}, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return source{}, fmt.Errorf("parse config file: %w", err)
	}
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				parts = append(parts, fmt.Sprint(p))
			}
			src.file[strings.ToUpper(k)] = strings.Join(parts, ",")
		default:
			src.file[strings.ToUpper(k)] = fmt.Sprint(val)
		}
	}
	return src, nil
}

func (s source) get(key, def string) string {
	if v, ok := s.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback(s.file[key], def)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func positiveInt(raw string, def int) int {
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	return def
}

func splitCSV(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseCSV(input string) []string {
	out := splitCSV(input)
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
