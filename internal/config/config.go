package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/tunez/dupes/internal/logging"
)

// Config holds tunez-dupes runtime configuration loaded from TOML.
type Config struct {
	Library LibraryConfig `toml:"library"`
	Scan    ScanConfig    `toml:"scan"`
	Log     LogConfig     `toml:"log"`
	UI      UIConfig      `toml:"ui"`
}

// LibraryConfig says where the music lives and where the index is kept.
type LibraryConfig struct {
	Roots   []string `toml:"roots"`
	IndexDB string   `toml:"index_db"` // empty means <StateDir>/library.sqlite
}

// ScanConfig tunes the filesystem scanner.
type ScanConfig struct {
	Workers     int    `toml:"workers"`
	Fingerprint bool   `toml:"fingerprint"`
	FFprobePath string `toml:"ffprobe_path"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text, json
	File   bool   `toml:"file"`
}

type UIConfig struct {
	Theme   string `toml:"theme"`
	NoColor bool   `toml:"no_color"`
}

// Default returns a configuration usable without a config file. It has no
// library roots, so it can only be used against an existing index.
func Default() Config {
	cfg := Config{
		Scan: ScanConfig{Fingerprint: true},
	}
	applyDefaults(&cfg)
	return cfg
}

// Load reads configuration from disk. If path is empty, a default OS-specific
// location is used. A .env file next to the config file is loaded first and
// LOG_LEVEL, LOG_FORMAT and NO_COLOR override the file's settings.
func Load(path string) (*Config, string, error) {
	cfgPath := path
	if cfgPath == "" {
		var err error
		cfgPath, err = DefaultPath()
		if err != nil {
			return nil, "", fmt.Errorf("resolve config path: %w", err)
		}
	}

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("read config: %w", err)
	}

	// Keys missing from the file keep their Default() values.
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, fmt.Errorf("parse config: %w", err)
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(cfgPath), ".env")); err != nil {
		return nil, cfgPath, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := Validate(cfg); err != nil {
		return nil, cfgPath, err
	}

	return &cfg, cfgPath, nil
}

// DefaultPath returns <UserConfigDir>/tunez-dupes/config.toml, creating the
// directory if needed.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	name := "tunez-dupes"
	if runtime.GOOS == "windows" {
		name = "TunezDupes"
	}
	base := filepath.Join(dir, name)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(base, "config.toml"), nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if os.Getenv("NO_COLOR") != "" {
		cfg.UI.NoColor = true
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Scan.Workers == 0 {
		cfg.Scan.Workers = runtime.NumCPU()
	}
	if cfg.Scan.FFprobePath == "" {
		cfg.Scan.FFprobePath = "ffprobe"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = "rainbow"
	}
}

// Validate performs semantic validation of config.
func Validate(cfg Config) error {
	if err := validateRoots(cfg.Library.Roots); err != nil {
		return err
	}
	if cfg.Scan.Workers < 1 {
		return fmt.Errorf("scan.workers must be at least 1, got %d", cfg.Scan.Workers)
	}
	if !logging.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}
	if !logging.ValidFormat(cfg.Log.Format) {
		return fmt.Errorf("log.format %q is not one of text, json", cfg.Log.Format)
	}
	return nil
}

func validateRoots(roots []string) error {
	if len(roots) == 0 {
		return errors.New("library.roots is required")
	}
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			return errors.New("library.roots contains empty path")
		}
		if _, err := os.Stat(r); err != nil {
			return fmt.Errorf("library root %s: %w", r, err)
		}
	}
	return nil
}

// FFprobe resolves the configured ffprobe binary. An error means durations
// and bitrates will be left unknown.
func (c Config) FFprobe() (string, error) {
	if c.Scan.FFprobePath == "" {
		return "", errors.New("scan.ffprobe_path is empty")
	}
	if _, err := os.Stat(c.Scan.FFprobePath); err == nil {
		return c.Scan.FFprobePath, nil
	}
	path, err := execLookPath(c.Scan.FFprobePath)
	if err != nil {
		return "", fmt.Errorf("ffprobe not found (%s): %w", c.Scan.FFprobePath, err)
	}
	return path, nil
}

// execLookPath is a test seam.
var execLookPath = func(file string) (string, error) {
	return exec.LookPath(file)
}
