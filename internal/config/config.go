package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	DefaultFetchURL       = "http://www.bom.gov.au/fwo/IDV60801/IDV60801.94865.json"
	DefaultUpdateInterval = 3 * time.Hour
	DefaultTimezone       = "Australia/Melbourne"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// DataDir holds the sqlite file. SQLitePath is DataDir/SQLiteFilename made absolute.
	DataDir            string
	SQLiteFilename     string
	SQLitePath         string
	SQLiteMaxOpenConns int
	SQLiteMaxIdleConns int
	SQLiteConnMaxLife  time.Duration
	SQLiteLogQueries   bool

	UpdateInterval time.Duration
	FetchURL       string
	FetchTimeout   time.Duration
	// HeadersFile optionally replaces the embedded request header bundle.
	HeadersFile string

	// Location is only used for presentation (window "now" in responses, chart labels).
	Location *time.Location

	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string
}

// LoadFromEnv reads a .env file when present, then the process environment.
func LoadFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
			if _, err := strconv.ParseUint(port, 10, 16); err != nil {
				return Config{}, fmt.Errorf("invalid PORT %q: %w", port, err)
			}
			httpAddr = ":" + port
		} else {
			httpAddr = ":12346"
		}
	}

	dataDir := strings.TrimSpace(os.Getenv("DATA_DIR"))
	if dataDir == "" {
		dataDir = strings.TrimSpace(os.Getenv("HT_DATA_VOLUME_PATH"))
	}
	if dataDir == "" {
		dataDir = "./data"
	}
	filename := strings.TrimSpace(os.Getenv("SQLITE_FILENAME"))
	if filename == "" {
		filename = "database.db"
	}
	if strings.ContainsRune(filename, os.PathSeparator) {
		return Config{}, fmt.Errorf("invalid SQLITE_FILENAME %q: must be a bare file name", filename)
	}
	sqlitePath, err := filepath.Abs(filepath.Join(dataDir, filename))
	if err != nil {
		return Config{}, fmt.Errorf("DATA_DIR %q: %w", dataDir, err)
	}

	maxOpenConns, err := intFromEnv("DB_MAX_OPEN_CONNS", 4)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := intFromEnv("DB_MAX_IDLE_CONNS", 2)
	if err != nil {
		return Config{}, err
	}
	connMaxLife, err := durationFromEnv("DB_CONN_MAX_LIFETIME", 0)
	if err != nil {
		return Config{}, err
	}
	logQueries, err := boolFromEnv("DB_LOG_QUERIES", false)
	if err != nil {
		return Config{}, err
	}

	updateInterval, err := parseInterval(strings.TrimSpace(os.Getenv("UPDATE_INTERVAL")))
	if err != nil {
		return Config{}, err
	}

	fetchURL := strings.TrimSpace(os.Getenv("FETCH_URL"))
	if fetchURL == "" {
		fetchURL = DefaultFetchURL
	}
	fetchTimeout, err := durationFromEnv("FETCH_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	if fetchTimeout <= 0 {
		return Config{}, fmt.Errorf("FETCH_TIMEOUT must be positive, got %v", fetchTimeout)
	}

	tzName := strings.TrimSpace(os.Getenv("TIMEZONE"))
	if tzName == "" {
		tzName = DefaultTimezone
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return Config{}, fmt.Errorf("invalid TIMEZONE %q: %w", tzName, err)
	}

	mqttPort, err := intFromEnv("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "ht-tracker"
	}
	topicPrefix := strings.Trim(strings.TrimSpace(os.Getenv("MQTT_TOPIC_PREFIX")), "/")
	if topicPrefix == "" {
		topicPrefix = "ht-tracker"
	}

	return Config{
		AppEnv:             appEnv,
		LogLevel:           level,
		HTTPAddr:           httpAddr,
		DataDir:            dataDir,
		SQLiteFilename:     filename,
		SQLitePath:         sqlitePath,
		SQLiteMaxOpenConns: maxOpenConns,
		SQLiteMaxIdleConns: maxIdleConns,
		SQLiteConnMaxLife:  connMaxLife,
		SQLiteLogQueries:   logQueries,
		UpdateInterval:     updateInterval,
		FetchURL:           fetchURL,
		FetchTimeout:       fetchTimeout,
		HeadersFile:        strings.TrimSpace(os.Getenv("FETCH_HEADERS_FILE")),
		Location:           loc,
		MQTTBroker:         strings.TrimSpace(os.Getenv("MQTT_BROKER")),
		MQTTPort:           mqttPort,
		MQTTClientID:       mqttClientID,
		MQTTTopicPrefix:    topicPrefix,
	}, nil
}

// parseInterval accepts whole seconds ("10800") or a Go duration ("3h").
func parseInterval(s string) (time.Duration, error) {
	if s == "" {
		return DefaultUpdateInterval, nil
	}
	var d time.Duration
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs > math.MaxInt64/int64(time.Second) || secs < math.MinInt64/int64(time.Second) {
			return 0, fmt.Errorf("invalid UPDATE_INTERVAL %q: out of range", s)
		}
		d = time.Duration(secs) * time.Second
	} else {
		d, err = time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid UPDATE_INTERVAL %q (expected seconds or duration): %w", s, err)
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("UPDATE_INTERVAL must be positive, got %v", d)
	}
	return d, nil
}

func intFromEnv(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func boolFromEnv(key string, def bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
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
