package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hashfile/internal/auth"
	"hashfile/internal/blobstore"
	"hashfile/internal/config"
	"hashfile/internal/filetype"
	"hashfile/internal/server"
	"hashfile/internal/storage"
	"hashfile/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the hashfile API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}
			if cfg.StorageRoot == "" {
				return fmt.Errorf("storage root is required")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			ttl, err := cfg.TokenTTL()
			if err != nil {
				return err
			}
			if cfg.Auth.TokenSecret == "" {
				logger.Warn("no auth.token_secret configured; tokens will not survive a restart")
			}
			tokens, err := auth.NewTokenIssuer(cfg.Auth.TokenSecret, cfg.Auth.Issuer, ttl)
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			logger.Info("opening blob store", "root", cfg.StorageRoot)
			blobs, err := blobstore.NewLocalCAS(cfg.StorageRoot)
			if err != nil {
				return err
			}

			filter := filetype.NewFilter(cfg.Uploads.AllowedExtensions)
			logger.Info("accepting file types", "extensions", filter.Extensions())

			engine := storage.NewEngine(filter, st, st, blobs, slog.Default().With("component", "storage"))
			srv := server.New(addr, server.Options{
				Engine:         engine,
				Users:          st,
				Tokens:         tokens,
				MaxUploadBytes: cfg.Uploads.MaxUploadBytes,
			}, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}
}
