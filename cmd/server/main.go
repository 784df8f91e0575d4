package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"blog/internal/config"
	"blog/internal/db"
	"blog/internal/feed"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:           "blog",
		Short:         "A small personal blog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./blog.yaml)")
	pf.String("mode", config.ModeFlat, "variant to run: flat or db")
	pf.String("addr", "", "listen address (default :8080 or :$PORT)")
	pf.String("content-dir", "./pages", "directory holding the Markdown pages")
	pf.String("db-driver", "sqlite", "database driver: sqlite, postgres or mysql")
	pf.String("db-dsn", "./data/blog.db", "database connection string")
	pf.String("base-url", "http://localhost:8080", "absolute site URL used in the feed")
	pf.String("log-level", "info", "debug, info, warn or error")

	root.AddCommand(serveCmd(), freezeCmd(), lintCmd(), addUserCmd(), migrateCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// load resolves the configuration for cmd and the logger that goes with it.
func load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.Logger(), nil
}

func site(cfg *config.Config) feed.Site {
	return feed.Site{
		Title:       cfg.Site.Title,
		Description: cfg.Site.Description,
		Author:      cfg.Site.Author,
		BaseURL:     cfg.Site.BaseURL,
	}
}

// openDB connects and migrates. A file-backed SQLite database gets its
// directory created first.
func openDB(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	if cfg.DB.Driver == "sqlite" && cfg.DB.DSN != ":memory:" && !strings.HasPrefix(cfg.DB.DSN, "file:") {
		if err := os.MkdirAll(filepath.Dir(cfg.DB.DSN), 0o755); err != nil {
			return nil, err
		}
	}
	d, err := db.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}
