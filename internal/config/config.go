package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	defaultDataDir       = "/home/tmdnlcl"
	defaultListenAddress = ":8080"
	defaultHashTag       = "#NintendoSwitch"
	defaultArchivePrefix = "//"
	defaultInstantOpen   = ">"
	defaultInstantClose  = "<"
)

const (
	APIModeTimeline = "timeline"
	APIModeSearch   = "search"
)

type JobConfiguration map[string]any

// ReadConfig builds the configuration from, in increasing precedence, the
// built-in defaults, the YAML file named by CONFIG_FILE and the environment
// (including DATA_DIR/.env).
func ReadConfig() JobConfiguration {
	jc := Defaults()

	level := ParseLogLevel(os.Getenv("LOG_LEVEL"))
	jc["log_level"] = level.String()
	SetLogLevel(level)

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = defaultDataDir
		if err := os.Setenv("DATA_DIR", dataDir); err != nil {
			logrus.Fatalf("Failed to set DATA_DIR: %v", err)
		}
	}
	jc["data_dir"] = dataDir

	if err := godotenv.Load(filepath.Join(dataDir, ".env")); err != nil {
		logrus.Infof("No env file in %s, reading from environment variables", dataDir)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := jc.MergeFile(path); err != nil {
			logrus.WithError(err).Errorf("Failed reading config file %s", path)
		} else {
			logrus.Infof("Loaded config file %s", path)
		}
	}

	jc.mergeEnv()

	return jc
}

// Defaults returns a configuration holding only built-in values.
func Defaults() JobConfiguration {
	return JobConfiguration{
		"api_mode":               APIModeTimeline,
		"hashtag":                defaultHashTag,
		"instant_open":           defaultInstantOpen,
		"instant_close":          defaultInstantClose,
		"archive_prefix":         defaultArchivePrefix,
		"archive_delete_remote":  true,
		"workers":                4,
		"sweep_interval_seconds": 5 * time.Second,
		"worker_delay_seconds":   time.Duration(0),
		"poll_timeout_ms":        1000,
		"stats_buf_size":         uint(128),
		"listen_address":         defaultListenAddress,
		"http_timeout_seconds":   30 * time.Second,
		"x_api_rps":              1.0,
		"x_api_burst":            5,
		"user_cache_size":        1000,
		"user_cache_ttl_seconds": time.Hour,
		"profiling_enabled":      false,
	}
}

// MergeFile overlays the keys of a YAML document onto the configuration.
// Keys ending in _seconds are converted to durations.
func (jc JobConfiguration) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	values := map[string]any{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("error parsing %s: %w", path, err)
	}
	for k, v := range values {
		k = strings.ToLower(k)
		if strings.HasSuffix(k, "_seconds") {
			if secs, ok := toFloat(v); ok {
				jc[k] = time.Duration(secs * float64(time.Second))
				continue
			}
		}
		jc[k] = v
	}
	return nil
}

var stringEnv = map[string]string{
	"TWITTER_API_KEY":    "twitter_api_key",
	"TWITTER_API_SECRET": "twitter_api_secret",
	"API_MODE":           "api_mode",
	"HASH_TAG":           "hashtag",
	"SEARCH_KEYWORD":     "search_keyword",
	"INSTANT_OPEN":       "instant_open",
	"INSTANT_CLOSE":      "instant_close",
	"ARCHIVE_PREFIX":     "archive_prefix",
	"DATABASE_PATH":      "database_path",
	"BLOB_DIR":           "blob_dir",
	"LISTEN_ADDRESS":     "listen_address",
	"API_KEY":            "api_key",
	"TOKEN_KEY":          "token_key",
}

var secondsEnv = map[string]string{
	"SWEEP_INTERVAL_SECONDS": "sweep_interval_seconds",
	"WORKER_DELAY_SECONDS":   "worker_delay_seconds",
	"HTTP_TIMEOUT_SECONDS":   "http_timeout_seconds",
	"USER_CACHE_TTL_SECONDS": "user_cache_ttl_seconds",
}

var intEnv = map[string]string{
	"WORKERS":         "workers",
	"POLL_TIMEOUT_MS": "poll_timeout_ms",
	"X_API_BURST":     "x_api_burst",
	"USER_CACHE_SIZE": "user_cache_size",
}

func (jc JobConfiguration) mergeEnv() {
	for env, key := range stringEnv {
		if v := os.Getenv(env); v != "" {
			jc[key] = v
		}
	}

	for env, key := range intEnv {
		if s := os.Getenv(env); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 0 {
				logrus.Errorf("Error parsing %s: %q. Keeping %v.", env, s, jc[key])
				continue
			}
			jc[key] = v
		}
	}

	for env, key := range secondsEnv {
		if s := os.Getenv(env); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil || v < 0 {
				logrus.Errorf("Error parsing %s: %q. Keeping %v.", env, s, jc[key])
				continue
			}
			jc[key] = time.Duration(v * float64(time.Second))
		}
	}

	if s := os.Getenv("STATS_BUF_SIZE"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			jc["stats_buf_size"] = uint(v)
		} else {
			logrus.Errorf("Error parsing STATS_BUF_SIZE: %q. Setting to default.", s)
		}
	}

	if s := os.Getenv("X_API_RPS"); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil && v > 0 {
			jc["x_api_rps"] = v
		}
	}

	if s := os.Getenv("ARCHIVE_DELETE_REMOTE"); s != "" {
		jc["archive_delete_remote"] = s == "true"
	}
	if s := os.Getenv("ENABLE_PPROF"); s != "" {
		jc["profiling_enabled"] = s == "true"
	}
}

func (jc JobConfiguration) DataDir() string {
	return jc.GetString("data_dir", defaultDataDir)
}

func (jc JobConfiguration) ListenAddress() string {
	return jc.GetString("listen_address", defaultListenAddress)
}

// GetInt safely extracts an int from JobConfiguration, with a default fallback
func (jc JobConfiguration) GetInt(key string, def int) (int, error) {
	if v, ok := jc[key]; ok {
		switch val := v.(type) {
		case int:
			return val, nil
		case int64:
			return int(val), nil
		case uint:
			return int(val), nil
		case float64:
			return int(val), nil
		case float32:
			return int(val), nil
		default:
			return def, fmt.Errorf("value %v for key %q cannot be converted to int", val, key)
		}
	}
	return def, nil
}

// GetFloat safely extracts a float64 from JobConfiguration, with a default fallback
func (jc JobConfiguration) GetFloat(key string, def float64) float64 {
	if v, ok := jc[key]; ok {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return def
}

func (jc JobConfiguration) GetDuration(key string, defSecs int) time.Duration {
	if v, ok := jc[key]; ok {
		switch val := v.(type) {
		case time.Duration:
			return val
		case int:
			return time.Duration(val) * time.Second
		case float64:
			return time.Duration(val * float64(time.Second))
		}
	}
	return time.Duration(defSecs) * time.Second
}

func (jc JobConfiguration) GetString(key string, def string) string {
	if v, ok := jc[key]; ok {
		if val, ok := v.(string); ok {
			return val
		}
	}
	return def
}

// GetBool safely extracts a bool from JobConfiguration, with a default fallback
func (jc JobConfiguration) GetBool(key string, def bool) bool {
	if v, ok := jc[key]; ok {
		if val, ok := v.(bool); ok {
			return val
		}
	}
	return def
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case float32:
		return float64(val), true
	}
	return 0, false
}

// TwitterConfig holds the application credentials and request pacing for the
// social API.
type TwitterConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	APIMode        string
	SearchKeyword  string
	RequestsPerSec float64
	Burst          int
	HTTPTimeout    time.Duration
	UserCacheSize  int
	UserCacheTTL   time.Duration
}

func (jc JobConfiguration) GetTwitterConfig() TwitterConfig {
	burst, err := jc.GetInt("x_api_burst", 5)
	if err != nil {
		logrus.WithError(err).Warn("Invalid x_api_burst")
	}
	cacheSize, err := jc.GetInt("user_cache_size", 1000)
	if err != nil {
		logrus.WithError(err).Warn("Invalid user_cache_size")
	}
	mode := strings.ToLower(jc.GetString("api_mode", APIModeTimeline))
	// Search mode filters by the hashtag unless a keyword is set.
	keyword := jc.GetString("search_keyword", "")
	if keyword == "" {
		keyword = jc.GetString("hashtag", defaultHashTag)
	}
	if mode != APIModeSearch {
		mode = APIModeTimeline
	}
	return TwitterConfig{
		ConsumerKey:    jc.GetString("twitter_api_key", ""),
		ConsumerSecret: jc.GetString("twitter_api_secret", ""),
		APIMode:        mode,
		SearchKeyword:  keyword,
		RequestsPerSec: jc.GetFloat("x_api_rps", 1),
		Burst:          burst,
		HTTPTimeout:    jc.GetDuration("http_timeout_seconds", 30),
		UserCacheSize:  cacheSize,
		UserCacheTTL:   jc.GetDuration("user_cache_ttl_seconds", 3600),
	}
}

// PatternConfig holds the tweet conventions that select and rewrite content.
type PatternConfig struct {
	HashTag       string
	InstantOpen   string
	InstantClose  string
	ArchivePrefix string
}

func (jc JobConfiguration) GetPatternConfig() PatternConfig {
	return PatternConfig{
		HashTag:       jc.GetString("hashtag", defaultHashTag),
		InstantOpen:   jc.GetString("instant_open", defaultInstantOpen),
		InstantClose:  jc.GetString("instant_close", defaultInstantClose),
		ArchivePrefix: jc.GetString("archive_prefix", defaultArchivePrefix),
	}
}

// WorkerConfig sizes the polling pool.
type WorkerConfig struct {
	Workers             int
	SweepInterval       time.Duration
	Delay               time.Duration
	PollTimeout         time.Duration
	StatsBufSize        uint
	ArchiveDeleteRemote bool
}

func (jc JobConfiguration) GetWorkerConfig() WorkerConfig {
	workers, err := jc.GetInt("workers", 4)
	if err != nil || workers <= 0 {
		logrus.Infof("Invalid worker count (%d), defaulting to 1 worker.", workers)
		workers = 1
	}
	pollMs, err := jc.GetInt("poll_timeout_ms", 1000)
	if err != nil || pollMs <= 0 {
		pollMs = 1000
	}
	bufSize, ok := jc["stats_buf_size"].(uint)
	if !ok {
		bufSize = 128
	}
	return WorkerConfig{
		Workers:             workers,
		SweepInterval:       jc.GetDuration("sweep_interval_seconds", 5),
		Delay:               jc.GetDuration("worker_delay_seconds", 0),
		PollTimeout:         time.Duration(pollMs) * time.Millisecond,
		StatsBufSize:        bufSize,
		ArchiveDeleteRemote: jc.GetBool("archive_delete_remote", true),
	}
}

// StoreConfig locates the database and the media blob directory.
type StoreConfig struct {
	DatabasePath string
	BlobDir      string
	// TokenKey enables AES-GCM encryption of the stored OAuth tokens.
	TokenKey string
}

func (jc JobConfiguration) GetStoreConfig() StoreConfig {
	dataDir := jc.DataDir()
	return StoreConfig{
		DatabasePath: jc.GetString("database_path", filepath.Join(dataDir, "tmdnlcl.db")),
		BlobDir:      jc.GetString("blob_dir", filepath.Join(dataDir, "media")),
		TokenKey:     jc.GetString("token_key", ""),
	}
}

// ParseLogLevel parses a string and returns the corresponding logrus.Level.
func ParseLogLevel(logLevel string) logrus.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return logrus.DebugLevel
	case "info", "":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		logrus.Errorf("Invalid log level %q, setting to %s", logLevel, logrus.InfoLevel)
		return logrus.InfoLevel
	}
}

// SetLogLevel sets the log level for the application.
func SetLogLevel(level logrus.Level) {
	logrus.SetLevel(level)
}
