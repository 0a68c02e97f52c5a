package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/robfig/cron"

	"airquality/internal/modules/airquality/pipeline"
)

// Export sink names accepted in EXPORT_SINKS.
const (
	SinkCSV    = "csv"
	SinkXLSX   = "xlsx"
	SinkSQLite = "sqlite"
	SinkInflux = "influx"
)

var knownSinks = []string{SinkCSV, SinkXLSX, SinkSQLite, SinkInflux}

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	HTTPAddr           string
	CORSAllowedOrigins []string

	DataPath      string
	DataDelimiter rune
	SentinelScope pipeline.SentinelScope
	WatchData     bool

	ExportDir      string
	ExportSinks    []string
	ExportSchedule string

	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteConnMaxLifetime time.Duration

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string
	MQTTUsername string
	MQTTPassword string
}

// PipelineOptions returns the loader settings derived from the config.
func (c Config) PipelineOptions(logger *slog.Logger) pipeline.Options {
	return pipeline.Options{
		Delimiter:     c.DataDelimiter,
		SentinelScope: c.SentinelScope,
		Logger:        logger,
	}
}

// HasSink reports whether name is listed in EXPORT_SINKS.
func (c Config) HasSink(name string) bool {
	return slices.Contains(c.ExportSinks, name)
}

// LoadDotEnv loads variables from the given files (".env" when none) without
// overriding the real environment. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func LoadFromEnv() (Config, error) {
	appEnv := env("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(env("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	delimiter, err := parseDelimiter(env("DATA_DELIMITER", ","))
	if err != nil {
		return Config{}, err
	}

	scope, err := pipeline.ParseSentinelScope(env("SENTINEL_SCOPE", string(pipeline.ScopeAll)))
	if err != nil {
		return Config{}, err
	}

	watch, err := parseBool("WATCH_DATA", env("WATCH_DATA", "true"))
	if err != nil {
		return Config{}, err
	}

	sinks, err := parseSinks(env("EXPORT_SINKS", "csv,xlsx"))
	if err != nil {
		return Config{}, err
	}

	schedule := env("EXPORT_SCHEDULE", "")
	if schedule != "" {
		if _, err := cron.Parse(schedule); err != nil {
			return Config{}, fmt.Errorf("invalid EXPORT_SCHEDULE %q: %w", schedule, err)
		}
	}

	maxOpenConnsStr := env("SQLITE_MAX_OPEN_CONNS", "1")
	maxOpenConns, err := strconv.Atoi(maxOpenConnsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SQLITE_MAX_OPEN_CONNS %q: %w", maxOpenConnsStr, err)
	}

	connMaxLifetimeStr := env("SQLITE_CONN_MAX_LIFETIME", "0s")
	connMaxLifetime, err := time.ParseDuration(connMaxLifetimeStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SQLITE_CONN_MAX_LIFETIME %q: %w", connMaxLifetimeStr, err)
	}

	mqttPortStr := env("MQTT_PORT", "1883")
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil || mqttPort <= 0 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q (allowed: 1-65535)", mqttPortStr)
	}

	cfg := Config{
		AppEnv:                appEnv,
		LogLevel:              level,
		HTTPAddr:              env("HTTP_ADDR", ":8080"),
		CORSAllowedOrigins:    splitList(env("CORS_ALLOWED_ORIGINS", "")),
		DataPath:              env("DATA_PATH", "cleaned_air_quality.csv"),
		DataDelimiter:         delimiter,
		SentinelScope:         scope,
		WatchData:             watch,
		ExportDir:             env("EXPORT_DIR", "out"),
		ExportSinks:           sinks,
		ExportSchedule:        schedule,
		SQLiteDSN:             env("SQLITE_DSN", ""),
		SQLitePath:            env("SQLITE_PATH", "out/airquality.db"),
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
		InfluxURL:             env("INFLUX_URL", ""),
		InfluxToken:           env("INFLUX_TOKEN", ""),
		InfluxOrg:             env("INFLUX_ORG", ""),
		InfluxBucket:          env("INFLUX_BUCKET", ""),
		MQTTBroker:            env("MQTT_BROKER", ""),
		MQTTPort:              mqttPort,
		MQTTClientID:          env("MQTT_CLIENT_ID", "airquality"),
		MQTTTopic:             env("MQTT_TOPIC", "airquality/daily"),
		MQTTUsername:          env("MQTT_USERNAME", ""),
		MQTTPassword:          os.Getenv("MQTT_PASSWORD"),
	}

	if cfg.HasSink(SinkInflux) && (cfg.InfluxURL == "" || cfg.InfluxOrg == "" || cfg.InfluxBucket == "") {
		return Config{}, errors.New("influx sink enabled but INFLUX_URL, INFLUX_ORG and INFLUX_BUCKET are not all set")
	}
	return cfg, nil
}

func env(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func parseDelimiter(s string) (rune, error) {
	if s == `\t` || strings.EqualFold(s, "tab") {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid DATA_DELIMITER %q (want a single character other than a quote or newline)", s)
	}
	return r, nil
}

func parseBool(key, s string) (bool, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q (allowed: true, false)", key, s)
	}
	return b, nil
}

func parseSinks(s string) ([]string, error) {
	var out []string
	for _, name := range splitList(strings.ToLower(s)) {
		if !slices.Contains(knownSinks, name) {
			return nil, fmt.Errorf("invalid EXPORT_SINKS entry %q (allowed: %s)", name, strings.Join(knownSinks, ", "))
		}
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
