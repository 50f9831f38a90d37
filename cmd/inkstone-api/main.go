package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inkstonehq/inkstone/backend/internal/auth"
	"github.com/inkstonehq/inkstone/backend/internal/config"
	"github.com/inkstonehq/inkstone/backend/internal/database"
	"github.com/inkstonehq/inkstone/backend/internal/journal"
	"github.com/inkstonehq/inkstone/backend/internal/logging"
	"github.com/inkstonehq/inkstone/backend/internal/narrative"
	"github.com/inkstonehq/inkstone/backend/internal/profiles"
	"github.com/inkstonehq/inkstone/backend/internal/server"
	"github.com/inkstonehq/inkstone/backend/internal/shell"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "inkstone-api",
		Short: "Inkstone journaling backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("google-client-id", defaults.GetString("google.client_id"), "Google OAuth client ID")
	cmd.PersistentFlags().String("google-jwks-url", defaults.GetString("google.jwks_url"), "Google JWKS URL")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Backend token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Backend signing secret (overrides env)")
	cmd.PersistentFlags().String("narrative-base-url", defaults.GetString("narrative.base_url"), "Narrative service base URL")
	cmd.PersistentFlags().String("narrative-model", defaults.GetString("narrative.model"), "Narrative service model")
	cmd.PersistentFlags().String("timezone", defaults.GetString("journal.timezone"), "Calendar basis for day boundaries (IANA name)")
	cmd.PersistentFlags().Bool("retain-source-notes", defaults.GetBool("journal.retain_source_notes"), "Keep a day's notes after consolidation")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "google.client_id", "google-client-id")
	bindFlag(cmd, "google.jwks_url", "google-jwks-url")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "narrative.base_url", "narrative-base-url")
	bindFlag(cmd, "narrative.model", "narrative-model")
	bindFlag(cmd, "journal.timezone", "timezone")
	bindFlag(cmd, "journal.retain_source_notes", "retain-source-notes")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	location, err := time.LoadLocation(appConfig.Timezone)
	if err != nil {
		return err
	}
	dayClock := journal.NewDayClock(location, time.Now)

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "inkstone-auth",
		Audience:      "inkstone-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	googleVerifier, err := auth.NewGoogleVerifier(auth.GoogleVerifierConfig{
		Audience: appConfig.GoogleClientID,
		JWKSURL:  appConfig.GoogleJWKSURL,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	narrativeClient, err := narrative.NewClient(narrative.Config{
		BaseURL: appConfig.NarrativeBaseURL,
		APIKey:  appConfig.NarrativeAPIKey,
		Model:   appConfig.NarrativeModel,
		Timeout: appConfig.NarrativeTimeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	idProvider := journal.NewUUIDProvider()

	journalService, err := journal.NewService(journal.ServiceConfig{
		Database:   db,
		Clock:      dayClock,
		IDProvider: idProvider,
		Questions:  narrativeClient,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	consolidator, err := journal.NewConsolidator(journal.ConsolidatorConfig{
		Journal:           journalService,
		Database:          db,
		Generator:         narrativeClient,
		Clock:             dayClock,
		IDProvider:        idProvider,
		RetainSourceNotes: appConfig.RetainSourceNotes,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	profileService, err := profiles.NewService(profiles.ServiceConfig{Database: db})
	if err != nil {
		return err
	}

	shellService, err := shell.NewService(shell.ServiceConfig{
		Database:   db,
		Extractor:  narrativeClient,
		Settings:   profileService,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		GoogleVerifier: googleVerifier,
		TokenManager:   tokenManager,
		Identity:       profileService,
		Profiles:       profileService,
		Journal:        journalService,
		Consolidator:   consolidator,
		Shell:          shellService,
		Clock:          dayClock,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
