package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/spice-insights/internal/api"
	"github.com/Veraticus/spice-insights/internal/certs"
	"github.com/Veraticus/spice-insights/internal/config"
	"github.com/Veraticus/spice-insights/internal/identity"
	"github.com/Veraticus/spice-insights/internal/upload"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the chat, classification and upload endpoints.

Callers authenticate with a Google OAuth access token in the Authorization
header. For local development, auth.tokens maps fixed tokens to user ids.`,
		RunE: runServe,
	}

	cmd.Flags().String("host", "0.0.0.0", "listen host")
	cmd.Flags().Int("port", 8080, "listen port")
	_ = viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed certificate kept in server.cert_dir")
	_ = viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.tls", cmd.Flags().Lookup("tls"))

	return cmd
}

func serverConfig() api.Config {
	cfg := api.DefaultConfig()
	cfg.Host = viper.GetString("server.host")
	cfg.Port = viper.GetInt("server.port")
	if d := viper.GetDuration("server.read_timeout"); d > 0 {
		cfg.ReadTimeout = d
	}
	if d := viper.GetDuration("server.write_timeout"); d > 0 {
		cfg.WriteTimeout = d
	}
	if n := viper.GetInt64("upload.max_bytes"); n > 0 {
		cfg.MaxUploadBytes = n
	}
	return cfg
}

func verifier() identity.Verifier {
	if tokens := viper.GetStringMapString("auth.tokens"); len(tokens) > 0 {
		static := make(identity.Static, len(tokens))
		for token, email := range tokens {
			static[token] = identity.User{Email: email}
		}
		slog.Warn("Using static auth tokens", "count", len(static))
		return static
	}
	return identity.NewGoogleVerifier(viper.GetString("auth.userinfo_endpoint"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	comps, err := newComponents(ctx)
	if err != nil {
		return err
	}
	defer comps.Close()

	chatService, err := comps.chatService(ctx)
	if err != nil {
		return fmt.Errorf("failed to create chat service: %w", err)
	}
	runner, err := comps.jobRunner(ctx)
	if err != nil {
		return err
	}
	types, err := fileTypes()
	if err != nil {
		return err
	}

	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()
	runner.Start(workerCtx)

	server := api.NewServer(serverConfig(), api.Deps{
		Chat:     chatService,
		Jobs:     runner,
		Uploads:  upload.NewService(comps.store, comps.store, types, runner),
		Expenses: comps.store,
		Verifier: verifier(),
		Ping:     comps.store.Ping,
		Logger:   slog.Default(),
		Version:  version,
	})

	var tlsConfig *tls.Config
	if viper.GetBool("server.tls") {
		dir := config.ResolvePath(viper.GetString("server.cert_dir"), config.DefaultConfigDir+"/certs")
		tlsConfig, err = certs.NewStore(dir, viper.GetStringSlice("server.tls_hosts")...).TLSConfig()
		if err != nil {
			return fmt.Errorf("failed to prepare TLS certificate: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server",
			"host", viper.GetString("server.host"),
			"port", viper.GetInt("server.port"),
			"tls", tlsConfig != nil,
			"version", version)
		if tlsConfig != nil {
			errCh <- server.StartTLS(tlsConfig)
			return
		}
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	slog.Info("Shutting down API server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		slog.Error("Job runner shutdown failed", "error", err)
	}
	return nil
}
