package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "taskdash.db"
	DefaultLogName        = "taskdash.log"
	EnvConfigPath         = "TASKDASH_CONFIG"
	appDirName            = "taskdash"
)

type Keymap struct {
	Quit           string `toml:"quit"`
	Add            string `toml:"add"`
	Up             string `toml:"up"`
	Down           string `toml:"down"`
	Advance        string `toml:"advance"`
	Delete         string `toml:"delete"`
	Detail         string `toml:"detail"`
	Confirm        string `toml:"confirm"`
	Cancel         string `toml:"cancel"`
	Edit           string `toml:"edit"`
	Filter         string `toml:"filter"`
	FilterPriority string `toml:"filter_priority"`
	Search         string `toml:"search"`
	ClearFilter    string `toml:"clear_filter"`
	SortDue        string `toml:"sort_due"`
	SortPriority   string `toml:"sort_priority"`
	SortCreated    string `toml:"sort_created"`
	SortTitle      string `toml:"sort_title"`
	Reverse        string `toml:"reverse"`
	Export         string `toml:"export"`
	Import         string `toml:"import"`
	StatusPending  string `toml:"status_pending"`
	StatusProgress string `toml:"status_progress"`
	StatusDone     string `toml:"status_done"`
}

type SortConfig struct {
	Field string `toml:"field"`
	Order string `toml:"order"`
}

type FilterConfig struct {
	Status   string `toml:"status"`
	Priority string `toml:"priority"`
}

type Config struct {
	DBPath        string       `toml:"db_path"`
	LogFile       string       `toml:"log_file"`
	LogLevel      string       `toml:"log_level"`
	Locale        string       `toml:"locale"`
	ExportPath    string       `toml:"export_path"`
	DefaultSort   SortConfig   `toml:"default_sort"`
	DefaultFilter FilterConfig `toml:"default_filter"`
	Keys          Keymap       `toml:"keys"`
}

// ResolveConfigPath picks the config file: explicit flag value, then
// $TASKDASH_CONFIG, then the user config directory.
func ResolveConfigPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appDirName, DefaultConfigFileName)
	}
	return DefaultConfigFileName
}

// LoadOrCreate reads the config at path, writing defaults there first if the
// file does not exist. Relative paths inside the file are resolved against
// the config file's directory.
func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		return cfg.resolve(filepath.Dir(path)), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBName
	}
	if cfg.LogFile == "" {
		cfg.LogFile = DefaultLogName
	}
	return cfg.resolve(filepath.Dir(path)), nil
}

func (c Config) resolve(base string) Config {
	c.DBPath = resolvePath(base, c.DBPath)
	c.LogFile = resolvePath(base, c.LogFile)
	return c
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "file:") {
		return p
	}
	return filepath.Join(base, p)
}

func write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultConfig() Config {
	return Config{
		DBPath:   DefaultDBName,
		LogFile:  DefaultLogName,
		LogLevel: "info",
		Locale:   "en",
		DefaultSort: SortConfig{
			Field: "dueDate",
			Order: "asc",
		},
		Keys: Keymap{
			Quit:           "q",
			Add:            "a",
			Up:             "k",
			Down:           "j",
			Advance:        " ",
			Delete:         "d",
			Detail:         "enter",
			Confirm:        "enter",
			Cancel:         "esc",
			Edit:           "e",
			Filter:         "f",
			FilterPriority: "p",
			Search:         "/",
			ClearFilter:    "c",
			SortDue:        "1",
			SortPriority:   "2",
			SortCreated:    "3",
			SortTitle:      "4",
			Reverse:        "r",
			Export:         "x",
			Import:         "i",
			StatusPending:  "P",
			StatusProgress: "I",
			StatusDone:     "D",
		},
	}
}
