package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/solace/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/config"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/database"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/distress"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/engagement"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/journal"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/offline"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/realtime"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/server"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/submission"
	"github.com/MarcoPoloResearchLab/solace/backend/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "solace-agent",
		Short: "Solace journal submission agent",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context())
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
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "Loopback HTTP listen address")
	cmd.PersistentFlags().String("record-store-url", defaults.GetString("record_store.url"), "Hosted libsql record store URL")
	cmd.PersistentFlags().String("record-store-path", defaults.GetString("record_store.path"), "SQLite record store path when no URL is set")
	cmd.PersistentFlags().String("local-store-path", defaults.GetString("local_store.path"), "Device-local SQLite path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "TAuth session signing secret (overrides env)")
	cmd.PersistentFlags().Int64("free-entry-limit", defaults.GetInt64("quota.free_entry_limit"), "Lifetime entry allowance for free authors")
	cmd.PersistentFlags().Int("cooldown-days", defaults.GetInt("escalation.cooldown_days"), "Days between safety recommendations")
	cmd.PersistentFlags().String("timezone", defaults.GetString("clock.timezone"), "IANA timezone for streak day boundaries")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "record_store.url", "record-store-url")
	bindFlag(cmd, "record_store.path", "record-store-path")
	bindFlag(cmd, "local_store.path", "local-store-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "tauth.signing_secret", "signing-secret")
	bindFlag(cmd, "quota.free_entry_limit", "free-entry-limit")
	bindFlag(cmd, "escalation.cooldown_days", "cooldown-days")
	bindFlag(cmd, "clock.timezone", "timezone")
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

func runAgent(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	local, err := database.OpenLocalStore(appConfig.LocalStorePath, logger)
	if err != nil {
		return err
	}
	defer database.Close(local) //nolint:errcheck

	records, err := database.OpenRecordStore(database.RecordStoreConfig{
		URL:       appConfig.RecordStoreURL,
		AuthToken: appConfig.RecordStoreToken,
		Path:      appConfig.RecordStorePath,
	}, logger)
	if err != nil {
		return err
	}
	defer records.Close() //nolint:errcheck

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := buildPipeline(appConfig, records, local, logger)
	if err != nil {
		return err
	}

	deps.monitor.OnReconnect(func(ctx context.Context) {
		drainQueue(ctx, deps.orchestrator, logger)
	})
	go deps.monitor.Run(signalCtx)

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Pipeline:       deps.orchestrator,
		Queue:          deps.queue,
		Engagement:     deps.ledger,
		Sessions:       deps.sessions,
		Authors:        deps.authors,
		Realtime:       deps.dispatcher,
		AllowedOrigins: appConfig.AllowedOrigins,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("agent starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.Bool("sessions_enabled", appConfig.SessionsEnabled()))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type pipeline struct {
	orchestrator *submission.Orchestrator
	monitor      *offline.Monitor
	queue        *offline.SQLiteQueue
	ledger       *engagement.Ledger
	authors      *users.Service
	sessions     server.SessionValidator
	dispatcher   *realtime.Dispatcher
}

// buildPipeline wires every component without touching the record store, so the agent starts in
// offline mode when the store is unreachable and the monitor brings it online later.
func buildPipeline(appConfig config.AppConfig, recordStore *database.RecordStore, local *gorm.DB, logger *zap.Logger) (pipeline, error) {
	records := recordStore.DB()
	journalService, err := journal.NewService(journal.ServiceConfig{Database: records, Logger: logger})
	if err != nil {
		return pipeline{}, err
	}
	history, err := distress.NewHistory(records)
	if err != nil {
		return pipeline{}, err
	}
	ledger, err := engagement.NewLedger(engagement.LedgerConfig{Database: records, Logger: logger})
	if err != nil {
		return pipeline{}, err
	}
	queue, err := offline.NewSQLiteQueue(local)
	if err != nil {
		return pipeline{}, err
	}
	quota, err := submission.NewLocalQuotaCounter(local, nil)
	if err != nil {
		return pipeline{}, err
	}
	authors, err := users.NewService(users.ServiceConfig{Database: records, LocalStore: local})
	if err != nil {
		return pipeline{}, err
	}

	var sessions server.SessionValidator
	if appConfig.SessionsEnabled() {
		validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
			SigningSecret: []byte(appConfig.TAuthSigningKey),
			Issuer:        appConfig.TAuthIssuer,
			CookieName:    appConfig.TAuthCookieName,
		})
		if err != nil {
			return pipeline{}, err
		}
		sessions = validator
	}

	monitor := offline.NewMonitor(offline.MonitorConfig{
		Prober:   offline.ProberFunc(recordStore.Ready),
		Interval: appConfig.ProbeInterval,
		Timeout:  appConfig.ProbeTimeout,
		Logger:   logger,
	})
	dispatcher := realtime.NewDispatcher()

	orchestrator, err := submission.New(submission.Config{
		Entries:      journalService,
		Queue:        queue,
		Connectivity: monitor,
		History:      history,
		Ledger:       ledger,
		Quota:        quota,
		Publisher:    dispatcher,
		Cooldown: distress.CooldownPolicy{
			CooldownDays:  appConfig.CooldownDays,
			HistoryWindow: distress.DefaultHistoryWindow,
		},
		Location:       appConfig.Location,
		FreeEntryLimit: appConfig.FreeEntryLimit,
		WriteTimeout:   appConfig.WriteTimeout,
		QueueOnTimeout: appConfig.QueueOnTimeout,
		Logger:         logger,
	})
	if err != nil {
		return pipeline{}, err
	}

	return pipeline{
		orchestrator: orchestrator,
		monitor:      monitor,
		queue:        queue,
		ledger:       ledger,
		authors:      authors,
		sessions:     sessions,
		dispatcher:   dispatcher,
	}, nil
}

func drainQueue(ctx context.Context, orchestrator *submission.Orchestrator, logger *zap.Logger) {
	report, err := orchestrator.Drain(ctx)
	if err != nil {
		if !errors.Is(err, submission.ErrOffline) {
			logger.Error("offline queue drain failed", zap.Error(err))
		}
		return
	}
	if len(report.Failed) > 0 {
		logger.Warn("some queued entries stay pending", zap.Strings("entry_ids", report.Failed))
	}
}
