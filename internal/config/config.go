package config

import (
	"os"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/dn5s/lthread/internal/domain"
)

// Config is built once at startup and passed by reference to every component
// that needs it. It is never mutated after MustLoad returns.
type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	Boards    []domain.Board `yaml:"boards" validate:"required,min=1,dive"`
	Thread    Thread         `yaml:"thread"`
	Pruning   Pruning        `yaml:"pruning"`
	RateLimit RateLimit      `yaml:"rate_limit"`
	Storage   Storage        `yaml:"storage"`

	MaxTextLength int           `yaml:"max_text_length"`
	StoreTimeout  time.Duration `yaml:"store_timeout"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

type Thread struct {
	PageSize       int `yaml:"page_size" validate:"min=1"`
	PreviewReplies int `yaml:"preview_replies" validate:"min=0"`
}

type Pruning struct {
	// MemoryThreshold is the pressure fraction above which a sweep evicts.
	// Pressure is a heuristic proxy (thread count x assumed thread size over
	// assumed capacity), not real store memory accounting.
	MemoryThreshold float64       `yaml:"memory_threshold" validate:"gt=0,lte=1"`
	CheckInterval   time.Duration `yaml:"check_interval"`
	PruneCount      int           `yaml:"prune_count" validate:"min=1"`
	AvgThreadBytes  int64         `yaml:"avg_thread_bytes" validate:"min=1"`
	CapacityBytes   int64         `yaml:"capacity_bytes" validate:"min=1"`
}

type RateLimit struct {
	Enabled bool `yaml:"enabled"`
}

type Storage struct {
	ImagesPath       string `yaml:"images_path" validate:"required"`
	ThumbnailsSubdir string `yaml:"thumbnails_subdir"`
}

type Private struct {
	Pg Pg `yaml:"pg"`
}

type Pg struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"required"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	Dbname   string `yaml:"dbname" validate:"required"`
}

// BoardExists reports whether name is part of the configured board set.
func (c *Config) BoardExists(name domain.BoardName) bool {
	for _, b := range c.Public.Boards {
		if b.Name == name {
			return true
		}
	}
	return false
}

func (c *Config) BoardNames() []domain.BoardName {
	names := make([]domain.BoardName, len(c.Public.Boards))
	for i, b := range c.Public.Boards {
		names[i] = b.Name
	}
	return names
}

func mustLoadPath(configPath string, output interface{}) {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file")
	}

	err = yaml.Unmarshal(configFile, output)
	if err != nil {
		panic("can't unmarshal config file")
	}
}

func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	cfg := &Config{public, private}
	applyDefaults(cfg)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		panic("invalid config: " + err.Error())
	}
	return cfg
}

func applyDefaults(cfg *Config) {
	pub := &cfg.Public
	if pub.Thread.PageSize == 0 {
		pub.Thread.PageSize = 15
	}
	if pub.Thread.PreviewReplies == 0 {
		pub.Thread.PreviewReplies = 3
	}
	if pub.Pruning.MemoryThreshold == 0 {
		pub.Pruning.MemoryThreshold = 0.8
	}
	if pub.Pruning.CheckInterval == 0 {
		pub.Pruning.CheckInterval = 5 * time.Minute
	}
	if pub.Pruning.PruneCount == 0 {
		pub.Pruning.PruneCount = 10
	}
	if pub.Pruning.AvgThreadBytes == 0 {
		pub.Pruning.AvgThreadBytes = 100 * 1024
	}
	if pub.Pruning.CapacityBytes == 0 {
		pub.Pruning.CapacityBytes = 2 << 30
	}
	if pub.MaxTextLength == 0 {
		pub.MaxTextLength = 20000
	}
	if pub.StoreTimeout == 0 {
		pub.StoreTimeout = 5 * time.Second
	}
	if pub.Storage.ThumbnailsSubdir == "" {
		pub.Storage.ThumbnailsSubdir = "thumbnails"
	}
	if pub.LogLevel == "" {
		pub.LogLevel = "info"
	}
}
