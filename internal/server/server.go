package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/lthummus/loginguard/internal/ainit"
	"github.com/lthummus/loginguard/internal/attempts"
	"github.com/lthummus/loginguard/internal/auth"
	"github.com/lthummus/loginguard/internal/config"
	"github.com/lthummus/loginguard/internal/db"
	"github.com/lthummus/loginguard/internal/handlers"
	"github.com/lthummus/loginguard/internal/metrics"
	"github.com/lthummus/loginguard/internal/pwmigrate"
	"github.com/lthummus/loginguard/internal/salt"
	"github.com/lthummus/loginguard/internal/token"
	"github.com/lthummus/loginguard/internal/trueip"
)

const shutdownTimeout = 5 * time.Second

// ErrInvalidConfig is returned by Run when ValidateConfig finds problems. The problems themselves have already been
// logged.
var ErrInvalidConfig = errors.New("server: invalid configuration")

// Services is everything a running instance needs, wired together from the current configuration.
type Services struct {
	Database db.DB
	Tracker  *attempts.Tracker
	Migrator *pwmigrate.Migrator
	Auth     *auth.Service
	Registry *prometheus.Registry
}

// Build opens the database and wires the tracker, token issuer and auth service. The caller owns Database and must
// close it.
func Build(ctx context.Context) (*Services, error) {
	database, err := OpenDatabase(ctx)
	if err != nil {
		return nil, err
	}

	signingKey, err := salt.SigningKeyFromConfig()
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("server: Build: could not derive signing key: %w", err)
	}

	config.Lock.RLock()
	trackerConfig := attempts.ConfigFromViper()
	config.Lock.RUnlock()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var tracker *attempts.Tracker
	m := metrics.New(reg, func() int { return tracker.TrackedIdentifiers() })
	tracker = attempts.NewTracker(trackerConfig, attempts.WithObserver(m))

	migrator := pwmigrate.New(database)

	svc := auth.NewService(tracker, database, token.NewJWTFromConfig(signingKey),
		auth.WithMigrator(migrator),
		auth.WithOutcomeRecorder(m.RecordOutcome),
	)

	return &Services{
		Database: database,
		Tracker:  tracker,
		Migrator: migrator,
		Auth:     svc,
		Registry: reg,
	}, nil
}

// Run loads and validates the configuration, then serves until ctx is cancelled.
func Run(ctx context.Context) error {
	if err := config.Init(); err != nil {
		return err
	}
	ainit.WatchDebugLogging()

	if problems := config.ValidateConfig(); len(problems) > 0 {
		for _, p := range problems {
			log.Error().Str("problem", p).Msg("configuration problem")
		}
		return ErrInvalidConfig
	}

	services, err := Build(ctx)
	if err != nil {
		return err
	}

	config.Lock.RLock()
	port := viper.GetInt(config.KeyServerPort)
	tlsEnabled := viper.GetBool(config.KeyServerTLSEnabled)
	certFile := viper.GetString(config.KeyServerTLSCertFile)
	keyFile := viper.GetString(config.KeyServerTLSKeyFile)
	adminToken := viper.GetString(config.KeyAdminToken)
	config.Lock.RUnlock()

	if port == 0 {
		log.Warn().Int("port", config.DefaultPort).Msg("no port specified, using default")
		port = config.DefaultPort
	}

	e := &handlers.Env{
		Auth:       services.Auth,
		Tracker:    services.Tracker,
		Database:   services.Database,
		IPResolver: trueip.NewResolverFromConfig(),
		AdminToken: adminToken,
		Gatherer:   services.Registry,
	}
	log.Info().Msg("services initialized")

	listenEnableDebugLogging(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", port),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  15 * time.Second,
		Handler:      e.BuildRouter(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tlsEnabled {
			log.Info().Int("port", port).Str("key_file", keyFile).Str("cert_file", certFile).Msg("starting with tls enabled")
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			log.Info().Int("port", port).Msg("starting plain HTTP server")
			err = srv.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: Run: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Warn().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("error shutting down server")
		}

		services.Migrator.Close()

		log.Info().Msg("closing database")
		if err := services.Database.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing database")
		}

		return nil
	})

	err = g.Wait()
	log.Info().Msg("shutdown complete")
	return err
}
