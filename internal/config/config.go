// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

// Defaults shared with the services that consume them.
const (
	DefaultEntityThreshold   = 0.3
	DefaultEntityNested      = true
	DefaultCapabilityTimeout = 30 * time.Second
	DefaultResetCodeLength   = 4
	DefaultResetCodeTTL      = 10 * time.Minute
	DefaultResetMaxAttempts  = 5
	DefaultTokenTTL          = 720 * time.Hour
	DefaultRateLimit         = 20
	DefaultMaxImagePixels    = 40_000_000
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server     ServerConfig
	Log        LogConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Reset      ResetConfig
	SMTP       SMTPConfig
	Extraction ExtractionConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type AuthConfig struct {
	JWTSecret string        // HMAC key for bearer tokens
	TokenTTL  time.Duration // lifetime of issued tokens
}

type ResetConfig struct {
	CodeLength    int
	CodeTTL       time.Duration
	MaxAttempts   int
	SweepInterval time.Duration
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// Enabled reports whether enough is configured to deliver mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

type ExtractionConfig struct { //nolint:govet // fieldalignment not critical
	OCREngine         string   // tesseract, vision
	OCRLanguages      []string // tesseract language codes
	TessdataPrefix    string
	VisionCredentials string // path to a service account file, empty for ADC
	Classifier        string // gliner, gemini
	GLiNERURL         string
	GeminiAPIKey      string
	GeminiModel       string
	Threshold         float64
	Nested            bool
	Timeout           time.Duration
	MaxImageSide      int // downscale uploads beyond this edge length, 0 disables
	MaxImagePixels    int // reject uploads with more pixels, 0 disables
}

type RateLimitConfig struct {
	PerMinute int // requests per client IP on auth and reset endpoints, 0 disables
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		Auth: AuthConfig{
			JWTSecret: cmd.String("jwt-secret"),
			TokenTTL:  cmd.Duration("token-ttl"),
		},
		Reset: ResetConfig{
			CodeLength:    int(cmd.Int("reset-code-length")),
			CodeTTL:       cmd.Duration("reset-code-ttl"),
			MaxAttempts:   int(cmd.Int("reset-max-attempts")),
			SweepInterval: cmd.Duration("reset-sweep-interval"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Extraction: ExtractionConfig{
			OCREngine:         strings.ToLower(cmd.String("ocr-engine")),
			OCRLanguages:      splitList(cmd.String("ocr-languages")),
			TessdataPrefix:    cmd.String("tessdata-prefix"),
			VisionCredentials: cmd.String("vision-credentials"),
			Classifier:        strings.ToLower(cmd.String("classifier")),
			GLiNERURL:         cmd.String("gliner-url"),
			GeminiAPIKey:      cmd.String("gemini-api-key"),
			GeminiModel:       cmd.String("gemini-model"),
			Threshold:         cmd.Float("entity-threshold"),
			Nested:            cmd.Bool("entity-nested"),
			Timeout:           cmd.Duration("capability-timeout"),
			MaxImageSide:      int(cmd.Int("max-image-side")),
			MaxImagePixels:    int(cmd.Int("max-image-pixels")),
		},
		RateLimit: RateLimitConfig{
			PerMinute: int(cmd.Int("rate-limit")),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	return cfg
}

// Validate checks the settings that have no usable fallback and fills in a
// random JWT secret for local development.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		if !IsLocalhost(c.Server.Host) {
			return errors.New("jwt-secret is required when not running on localhost")
		}
		secret, err := randomHex(32)
		if err != nil {
			return err
		}
		c.Auth.JWTSecret = secret
	}

	switch c.Extraction.OCREngine {
	case "tesseract", "vision":
	default:
		return fmt.Errorf("unknown ocr-engine %q", c.Extraction.OCREngine)
	}

	switch c.Extraction.Classifier {
	case "gliner":
		if c.Extraction.GLiNERURL == "" {
			return errors.New("gliner-url is required for the gliner classifier")
		}
	case "gemini":
		if c.Extraction.GeminiAPIKey == "" {
			return errors.New("gemini-api-key is required for the gemini classifier")
		}
	default:
		return fmt.Errorf("unknown classifier %q", c.Extraction.Classifier)
	}

	if c.Extraction.Threshold < 0 || c.Extraction.Threshold > 1 {
		return fmt.Errorf("entity-threshold must be within [0,1], got %v", c.Extraction.Threshold)
	}
	if c.Reset.CodeLength < 4 || c.Reset.CodeLength > 12 {
		return fmt.Errorf("reset-code-length must be within [4,12], got %d", c.Reset.CodeLength)
	}
	return nil
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	// Hide default port in URL
	if port == 80 {
		return fmt.Sprintf("http://%s", host)
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '+' || r == ' '
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   10,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/bizcard.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		// Auth flags
		&cli.StringFlag{
			Name:    "jwt-secret",
			Usage:   "HMAC secret for bearer tokens (random if empty on localhost)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("JWT_SECRET_KEY"), toml.TOML("auth.jwt_secret", configFile)),
		},
		&cli.DurationFlag{
			Name:    "token-ttl",
			Value:   DefaultTokenTTL,
			Usage:   "Lifetime of issued bearer tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TOKEN_TTL"), toml.TOML("auth.token_ttl", configFile)),
		},
		// Reset flags
		&cli.IntFlag{
			Name:    "reset-code-length",
			Value:   DefaultResetCodeLength,
			Usage:   "Number of digits in password reset codes",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RESET_CODE_LENGTH"), toml.TOML("reset.code_length", configFile)),
		},
		&cli.DurationFlag{
			Name:    "reset-code-ttl",
			Value:   DefaultResetCodeTTL,
			Usage:   "Validity of password reset codes",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RESET_CODE_TTL"), toml.TOML("reset.code_ttl", configFile)),
		},
		&cli.IntFlag{
			Name:    "reset-max-attempts",
			Value:   DefaultResetMaxAttempts,
			Usage:   "Wrong guesses allowed before a reset code is discarded",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RESET_MAX_ATTEMPTS"), toml.TOML("reset.max_attempts", configFile)),
		},
		&cli.DurationFlag{
			Name:    "reset-sweep-interval",
			Value:   time.Minute,
			Usage:   "How often expired reset codes are purged",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RESET_SWEEP_INTERVAL"), toml.TOML("reset.sweep_interval", configFile)),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host (reset codes are logged when empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address for outgoing mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "BizCard Snap",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP (implicit TLS on port 465)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		// Extraction flags
		&cli.StringFlag{
			Name:    "ocr-engine",
			Value:   "tesseract",
			Usage:   "Text recognizer (tesseract, vision)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("OCR_ENGINE"), toml.TOML("extraction.ocr_engine", configFile)),
		},
		&cli.StringFlag{
			Name:    "ocr-languages",
			Value:   "eng",
			Usage:   "Tesseract languages, e.g. eng+deu",
			Sources: cli.NewValueSourceChain(cli.EnvVar("OCR_LANGUAGES"), toml.TOML("extraction.ocr_languages", configFile)),
		},
		&cli.StringFlag{
			Name:    "tessdata-prefix",
			Usage:   "Directory holding tesseract language data",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TESSDATA_PREFIX"), toml.TOML("extraction.tessdata_prefix", configFile)),
		},
		&cli.StringFlag{
			Name:    "vision-credentials",
			Usage:   "Google Cloud service account file for the vision engine",
			Sources: cli.NewValueSourceChain(cli.EnvVar("GOOGLE_APPLICATION_CREDENTIALS"), toml.TOML("extraction.vision_credentials", configFile)),
		},
		&cli.StringFlag{
			Name:    "classifier",
			Value:   "gliner",
			Usage:   "Entity classifier (gliner, gemini)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CLASSIFIER"), toml.TOML("extraction.classifier", configFile)),
		},
		&cli.StringFlag{
			Name:    "gliner-url",
			Value:   "http://localhost:8000",
			Usage:   "Base URL of the GLiNER inference server",
			Sources: cli.NewValueSourceChain(cli.EnvVar("GLINER_URL"), toml.TOML("extraction.gliner_url", configFile)),
		},
		&cli.StringFlag{
			Name:    "gemini-api-key",
			Usage:   "API key for the gemini classifier",
			Sources: cli.NewValueSourceChain(cli.EnvVar("GEMINI_API_KEY"), toml.TOML("extraction.gemini_api_key", configFile)),
		},
		&cli.StringFlag{
			Name:    "gemini-model",
			Value:   "gemini-2.0-flash-lite",
			Usage:   "Gemini model name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("GEMINI_MODEL"), toml.TOML("extraction.gemini_model", configFile)),
		},
		&cli.FloatFlag{
			Name:    "entity-threshold",
			Value:   DefaultEntityThreshold,
			Usage:   "Minimum classifier confidence",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ENTITY_THRESHOLD"), toml.TOML("extraction.entity_threshold", configFile)),
		},
		&cli.BoolFlag{
			Name:    "entity-nested",
			Value:   DefaultEntityNested,
			Usage:   "Allow nested and overlapping entity spans",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ENTITY_NESTED"), toml.TOML("extraction.entity_nested", configFile)),
		},
		&cli.DurationFlag{
			Name:    "capability-timeout",
			Value:   DefaultCapabilityTimeout,
			Usage:   "Timeout for each recognizer, decoder and classifier call",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CAPABILITY_TIMEOUT"), toml.TOML("extraction.capability_timeout", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-image-side",
			Value:   2400,
			Usage:   "Downscale uploads whose longer side exceeds this many pixels (0 disables)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_IMAGE_SIDE"), toml.TOML("extraction.max_image_side", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-image-pixels",
			Value:   DefaultMaxImagePixels,
			Usage:   "Reject uploads with more pixels than this (0 disables)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_IMAGE_PIXELS"), toml.TOML("extraction.max_image_pixels", configFile)),
		},
		// Rate limit flags
		&cli.IntFlag{
			Name:    "rate-limit",
			Value:   DefaultRateLimit,
			Usage:   "Requests per minute and client IP on auth and reset endpoints (0 disables)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RATE_LIMIT"), toml.TOML("ratelimit.per_minute", configFile)),
		},
	}
}
