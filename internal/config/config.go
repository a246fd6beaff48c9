package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// EnvConfigPath names the environment variable that points at a TOML file.
const EnvConfigPath = "PLACEMATE_CONFIG"

type Config struct {
	ListenAddr    string `toml:"listen_addr"`
	DBPath        string `toml:"db_path"`
	VisionBackend string `toml:"vision_backend"`
	OllamaHost    string `toml:"ollama_host"`
	OllamaModel   string `toml:"ollama_model"`
	ClaudeAPIKey  string `toml:"claude_api_key"`
	ClaudeModel   string `toml:"claude_model"`
	PhotoPath     string `toml:"photo_path"`
	LogLevel      string `toml:"log_level"`
	LogFile       string `toml:"log_file"`
	LogFormat     string `toml:"log_format"`
	// ScanLock guards scans with a lock file next to the database so two
	// processes never reconcile into the same catalog at once.
	ScanLock bool `toml:"scan_lock"`
}

func Default() Config {
	return Config{
		ListenAddr:    ":8080",
		DBPath:        "/data/placemate.db",
		VisionBackend: "ollama",
		OllamaHost:    "http://localhost:11434",
		OllamaModel:   "llava",
		ClaudeModel:   "claude-sonnet-4-5",
		PhotoPath:     "/data/photos",
		LogLevel:      "info",
		LogFormat:     "json",
		ScanLock:      true,
	}
}

// Load applies, in order: defaults, the TOML file at path (or at
// $PLACEMATE_CONFIG when path is empty), then environment variables. A
// missing file is an error only when it was named explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.VisionBackend = getEnv("VISION_BACKEND", c.VisionBackend)
	c.OllamaHost = getEnv("OLLAMA_HOST", c.OllamaHost)
	c.OllamaModel = getEnv("OLLAMA_MODEL", c.OllamaModel)
	c.ClaudeAPIKey = getEnv("CLAUDE_API_KEY", c.ClaudeAPIKey)
	c.ClaudeModel = getEnv("CLAUDE_MODEL", c.ClaudeModel)
	c.PhotoPath = getEnv("PHOTO_PATH", c.PhotoPath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	if v, ok := os.LookupEnv("SCAN_LOCK"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.ScanLock = b
		}
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.VisionBackend {
	case "ollama":
		if strings.TrimSpace(c.OllamaHost) == "" {
			return errors.New("ollama_host is required for the ollama backend")
		}
	case "claude":
		if strings.TrimSpace(c.ClaudeAPIKey) == "" {
			return errors.New("claude_api_key is required for the claude backend")
		}
	default:
		return fmt.Errorf("unknown vision_backend %q (want ollama or claude)", c.VisionBackend)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log_format %q (want json or text)", c.LogFormat)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("db_path is required")
	}
	if strings.TrimSpace(c.PhotoPath) == "" {
		return errors.New("photo_path is required")
	}
	return nil
}

// ScanLockPath is the lock file used when ScanLock is set.
func (c *Config) ScanLockPath() string {
	return c.DBPath + ".lock"
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}
