package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arimendelow/spoonjoy/backend/internal/account"
	"github.com/arimendelow/spoonjoy/backend/internal/auth"
	"github.com/arimendelow/spoonjoy/backend/internal/config"
	"github.com/arimendelow/spoonjoy/backend/internal/database"
	"github.com/arimendelow/spoonjoy/backend/internal/logging"
	"github.com/arimendelow/spoonjoy/backend/internal/oauth"
	"github.com/arimendelow/spoonjoy/backend/internal/recipes"
	"github.com/arimendelow/spoonjoy/backend/internal/server"
	"github.com/arimendelow/spoonjoy/backend/internal/storage"
	"github.com/arimendelow/spoonjoy/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "spoonjoy-api",
		Short: "Spoonjoy backend service",
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
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Database DSN")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("s3-bucket", defaults.GetString("storage.s3_bucket"), "Photo storage bucket")
	cmd.PersistentFlags().String("oauth-redirect-base-url", defaults.GetString("oauth.redirect_base_url"), "Public base URL for OAuth callbacks")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "session.signing_secret", "signing-secret")
	bindFlag(cmd, "storage.s3_bucket", "s3-bucket")
	bindFlag(cmd, "oauth.redirect_base_url", "oauth-redirect-base-url")
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

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(appConfig.DatabaseDriver, appConfig.DatabaseDSN, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	userRepository, err := users.NewGormRepository(db)
	if err != nil {
		return err
	}

	photoStore, err := storage.NewS3PhotoStore(ctx, storage.S3PhotoStoreConfig{
		Region:        appConfig.StorageRegion,
		Bucket:        appConfig.StorageBucket,
		Endpoint:      appConfig.StorageEndpoint,
		AccessKey:     appConfig.StorageAccessKey,
		SecretKey:     appConfig.StorageSecretKey,
		PublicBaseURL: appConfig.StoragePublicBaseURL,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	sessionManager, err := auth.NewSessionManager(auth.SessionManagerConfig{
		SigningSecret: []byte(appConfig.SessionSigningKey),
		Issuer:        "spoonjoy-api",
		CookieName:    appConfig.SessionCookieName,
		SessionTTL:    time.Duration(appConfig.SessionTTLMinutes) * time.Minute,
	})
	if err != nil {
		return err
	}

	oauthManager, err := oauth.NewManager(oauth.ManagerConfig{
		RedirectBaseURL: appConfig.OAuthRedirectBaseURL,
		Google: oauth.ProviderCredentials{
			ClientID:     appConfig.GoogleOAuthClientID,
			ClientSecret: appConfig.GoogleOAuthClientSecret,
		},
		GitHub: oauth.ProviderCredentials{
			ClientID:     appConfig.GitHubOAuthClientID,
			ClientSecret: appConfig.GitHubOAuthClientSecret,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	accountService, err := account.NewService(account.ServiceConfig{
		Users:        userRepository,
		Photos:       photoStore,
		IDProvider:   account.NewUUIDProvider(),
		Logger:       logger,
		AutoRegister: appConfig.OAuthAutoRegister,
	})
	if err != nil {
		return err
	}

	recipesService, err := recipes.NewService(recipes.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: recipes.NewUUIDProvider(),
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Accounts:       accountService,
		Recipes:        recipesService,
		Sessions:       sessionManager,
		OAuth:          oauthManager,
		FlowSecret:     []byte(appConfig.OAuthFlowSecret),
		AllowedOrigins: appConfig.HTTPAllowedOrigins,
		LoginURL:       appConfig.HTTPLoginURL,
		AppURL:         appConfig.HTTPAppURL,
		SecureCookies:  appConfig.HTTPSecureCookies,
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
