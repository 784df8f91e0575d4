package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"blog/internal/auth"
	"blog/internal/config"
	"blog/internal/content"
	"blog/internal/db"
	"blog/internal/freeze"
	"blog/internal/handlers"
	"blog/internal/lint"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var h *handlers.Handler
			switch cfg.Mode {
			case config.ModeFlat:
				store, err := content.Load(cfg.Content.Dir, cfg.Content.Extension)
				if err != nil {
					return err
				}
				log.Info("pages loaded", "count", store.Len(), "tags", len(store.Tags()), "dir", cfg.Content.Dir)
				if h, err = handlers.New(store, site(cfg), log); err != nil {
					return err
				}
			case config.ModeDB:
				d, err := openDB(ctx, cfg)
				if err != nil {
					return err
				}
				defer d.Close()

				sessions := auth.NewManager(d, cfg.Session.MaxAge, log)
				if err := sessions.CleanupExpired(ctx); err != nil {
					log.Warn("cleanup expired sessions", "err", err)
				}
				h, err = handlers.NewWritable(db.NewPostStore(d), db.NewUserStore(d), sessions, site(cfg), log)
				if err != nil {
					return err
				}
			}

			srv := &http.Server{
				Addr:         cfg.Addr,
				Handler:      h.Routes(),
				IdleTimeout:  time.Minute,
				ReadTimeout:  5 * time.Second,
				WriteTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				log.Info("listening", "addr", cfg.Addr, "mode", cfg.Mode)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func freezeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "freeze",
		Short: "Render the flat-file blog into static files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load(cmd)
			if err != nil {
				return err
			}
			store, err := content.Load(cfg.Content.Dir, cfg.Content.Extension)
			if err != nil {
				return err
			}
			h, err := handlers.New(store, site(cfg), log)
			if err != nil {
				return err
			}
			urls, err := freeze.URLs(cmd.Context(), store)
			if err != nil {
				return err
			}
			return freeze.Run(cmd.Context(), h.Routes(), urls, cfg.Freeze.Destination, log)
		},
	}
	cmd.Flags().String("destination", "./build", "output directory, wiped before writing")
	return cmd
}

func lintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Run the configured style checker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load(cmd)
			if err != nil {
				return err
			}
			return lint.Run(cmd.Context(), cfg.Lint.Command, ".", cmd.OutOrStdout())
		},
	}
}

func addUserCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user for the database variant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load(cmd)
			if err != nil {
				return err
			}
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			d, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			u, err := db.NewUserStore(d).Create(cmd.Context(), email, hash)
			if err != nil {
				return err
			}
			log.Info("user created", "id", u.ID, "email", u.Email)
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d <%s>\n", u.ID, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load(cmd)
			if err != nil {
				return err
			}
			d, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			log.Info("schema applied", "driver", d.Dialect().Driver())
			return d.Close()
		},
	}
}
