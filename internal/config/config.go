// Package config loads settings from blog.yaml, BLOG_* environment variables
// (optionally seeded from .env) and command line flags, in rising priority.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ModeFlat = "flat"
	ModeDB   = "db"
)

type Site struct {
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	Author      string `mapstructure:"author"`
	BaseURL     string `mapstructure:"base_url"`
}

type Config struct {
	Mode    string `mapstructure:"mode"`
	Addr    string `mapstructure:"addr"`
	Site    Site   `mapstructure:"site"`
	Content struct {
		Dir       string `mapstructure:"dir"`
		Extension string `mapstructure:"extension"`
	} `mapstructure:"content"`
	DB struct {
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"db"`
	Session struct {
		MaxAge time.Duration `mapstructure:"max_age"`
	} `mapstructure:"session"`
	Freeze struct {
		Destination string `mapstructure:"destination"`
	} `mapstructure:"freeze"`
	Lint struct {
		Command []string `mapstructure:"command"`
	} `mapstructure:"lint"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"mode":        "mode",
	"addr":        "addr",
	"content-dir": "content.dir",
	"db-driver":   "db.driver",
	"db-dsn":      "db.dsn",
	"destination": "freeze.destination",
	"base-url":    "site.base_url",
	"log-level":   "log.level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", ModeFlat)
	v.SetDefault("site.title", "Blog")
	v.SetDefault("site.description", "Recent blog posts")
	v.SetDefault("site.author", "")
	v.SetDefault("site.base_url", "http://localhost:8080")
	v.SetDefault("content.dir", "./pages")
	v.SetDefault("content.extension", ".md")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "./data/blog.db")
	v.SetDefault("session.max_age", 24*time.Hour)
	v.SetDefault("freeze.destination", "./build")
	v.SetDefault("lint.command", []string{"gofmt", "-l", "."})
	v.SetDefault("log.level", "info")
}

// Load reads configuration. file may be empty, in which case blog.yaml is
// looked up in the working directory and skipped when absent. flags, when
// non-nil, override everything else for the flags that were set.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	// a missing .env is normal
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// addr has no default, so Unmarshal only sees it when bound explicitly
	_ = v.BindEnv("addr")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("blog")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	// PORT is honoured the way most hosting platforms set it
	if c.Addr == "" {
		c.Addr = ":8080"
		if p := os.Getenv("PORT"); p != "" {
			c.Addr = ":" + p
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeFlat, ModeDB:
	default:
		return errors.Errorf("mode must be %q or %q, got %q", ModeFlat, ModeDB, c.Mode)
	}
	if c.Session.MaxAge <= 0 {
		return errors.New("session.max_age must be positive")
	}
	return nil
}

// Logger builds the process logger at the configured level.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
