package config

import (
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds every converter setting. Values are layered: Default, then
// the YAML file, then CHATCONV_* environment variables. Flags are applied on
// top by the command.
type Config struct {
	Channel      string       `yaml:"channel"`
	Output       string       `yaml:"output"`
	SQLite       SQLiteConfig `yaml:"sqlite"`
	MetricsFile  string       `yaml:"metrics_file"`
	Watch        bool         `yaml:"watch"`
	DropLogEvery int          `yaml:"drop_log_every"`
	Log          LogConfig    `yaml:"log"`
}

type SQLiteConfig struct {
	Path      string `yaml:"path"`
	BatchSize int    `yaml:"batch_size"`
	Tuning    bool   `yaml:"tuning"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

const (
	defaultChannel      = "forsen"
	defaultBatchSize    = 100
	defaultDropLogEvery = 1
	defaultLogFormat    = "auto"
	defaultLogLevel     = "info"

	// EnvConfigPath names the YAML file when -config is not given.
	EnvConfigPath = "CHATCONV_CONFIG"
)

func Default() Config {
	return Config{
		Channel:      defaultChannel,
		SQLite:       SQLiteConfig{BatchSize: defaultBatchSize},
		DropLogEvery: defaultDropLogEvery,
		Log:          LogConfig{Format: defaultLogFormat, Level: defaultLogLevel},
	}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrapf(err, "stat %s", p)
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrapf(err, "load %s", p)
		}
	}
	return nil
}

// Load builds a Config from defaults, the YAML file at path (or
// $CHATCONV_CONFIG when path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open config")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Channel = readString("CHATCONV_CHANNEL", c.Channel)
	c.Output = readString("CHATCONV_OUTPUT", c.Output)
	c.SQLite.Path = readString("CHATCONV_SQLITE_PATH", c.SQLite.Path)
	c.SQLite.BatchSize = readInt("CHATCONV_SQLITE_BATCH_SIZE", c.SQLite.BatchSize)
	c.SQLite.Tuning = readBool("CHATCONV_SQLITE_TUNING", c.SQLite.Tuning)
	c.MetricsFile = readString("CHATCONV_METRICS_FILE", c.MetricsFile)
	c.Watch = readBool("CHATCONV_WATCH", c.Watch)
	c.DropLogEvery = readInt("CHATCONV_DROP_LOG_EVERY", c.DropLogEvery)
	c.Log.Format = readString("CHATCONV_LOG_FORMAT", c.Log.Format)
	c.Log.Level = readString("CHATCONV_LOG_LEVEL", c.Log.Level)
}

// Validate normalizes empty values back to their defaults and rejects
// settings the converter cannot honour.
func (c *Config) Validate() error {
	c.Channel = strings.TrimPrefix(strings.TrimSpace(c.Channel), "#")
	if c.Channel == "" {
		c.Channel = defaultChannel
	}
	if c.SQLite.BatchSize <= 0 {
		c.SQLite.BatchSize = defaultBatchSize
	}
	if c.DropLogEvery <= 0 {
		c.DropLogEvery = defaultDropLogEvery
	}

	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch c.Log.Format {
	case "":
		c.Log.Format = defaultLogFormat
	case "auto", "text", "json":
	default:
		return errors.Errorf("unknown log format %q", c.Log.Format)
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch c.Log.Level {
	case "":
		c.Log.Level = defaultLogLevel
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}

func readString(name, def string) string {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	return raw
}

func readInt(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n <= 0 {
		return def
	}
	return n
}

func readBool(name string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

type Summary struct {
	Channel      string `json:"channel"`
	Output       string `json:"output,omitempty"`
	SQLitePath   string `json:"sqlite_path,omitempty"`
	BatchSize    int    `json:"batch"`
	MetricsFile  string `json:"metrics_file,omitempty"`
	Watch        bool   `json:"watch"`
	DropLogEvery int    `json:"drop_log_every"`
	LogFormat    string `json:"log_format"`
	LogLevel     string `json:"log_level"`
}

func (c Config) Summary() Summary {
	return Summary{
		Channel:      c.Channel,
		Output:       c.Output,
		SQLitePath:   redactDSN(c.SQLite.Path),
		BatchSize:    c.SQLite.BatchSize,
		MetricsFile:  c.MetricsFile,
		Watch:        c.Watch,
		DropLogEvery: c.DropLogEvery,
		LogFormat:    c.Log.Format,
		LogLevel:     c.Log.Level,
	}
}

func (c Config) SummaryJSON() []byte {
	summary := struct {
		Config Summary `json:"config_summary"`
	}{Config: c.Summary()}
	data, _ := json.Marshal(summary)
	return data
}

// redactDSN hides query parameters of a file: URI, which may carry a key
// for encrypted archives.
func redactDSN(path string) string {
	base, query, ok := strings.Cut(path, "?")
	if !ok || query == "" {
		return path
	}
	return base + "?***REDACTED*** (len=" + strconv.Itoa(len(query)) + ")"
}
