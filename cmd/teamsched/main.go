package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"teamsched/internal/audit"
	"teamsched/internal/auth"
	"teamsched/internal/config"
	"teamsched/internal/db"
	"teamsched/internal/events"
	"teamsched/internal/kakao"
	"teamsched/internal/notify"
	"teamsched/internal/otel"
	"teamsched/internal/schedule"
	"teamsched/internal/server"
	"teamsched/internal/team"
	"teamsched/internal/token"
	"teamsched/internal/user"
	"teamsched/internal/version"
	"teamsched/pkg/bus"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           version.Name,
		Short:         "Team scheduling backend with Kakao login and notifications",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			_ = godotenv.Load()
			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			database, err := db.Connect(ctx, cfg.DBDSN)
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close(database)
			}()
			return db.Migrate(ctx, database)
		},
	}
}

func serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cleanup, err := otel.Init(ctx, version.Name, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cleanup(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown otel")
		}
	}()

	codec, err := token.NewCodec(cfg.JWTSigningKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	database, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(database); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	if err := db.Migrate(ctx, database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	if cfg.SeedUsername != "" {
		if err := db.Seed(ctx, database, cfg.SeedUsername, cfg.SeedPassword); err != nil {
			return fmt.Errorf("seed database: %w", err)
		}
	}

	kakaoClient := kakao.New(kakao.Config{
		ClientID:     cfg.KakaoClientID,
		ClientSecret: cfg.KakaoClientSecret,
		RedirectURI:  cfg.KakaoRedirectURI,
		Timeout:      cfg.KakaoTimeout,
	}, log.Logger)

	dispatcher := notify.NewDispatcher(database, kakaoClient, log.Logger)

	// With a broker configured, events flow through JetStream and a durable
	// consumer feeds the dispatcher. Without one the dispatcher runs
	// in-process off the same post-commit hook.
	var publisher events.Publisher
	if cfg.NATSURL != "" {
		natsBus, err := bus.New(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer natsBus.Close()

		if err := natsBus.EnsureStream(events.StreamSchedules, events.SubjectScheduleAll); err != nil {
			return fmt.Errorf("ensure stream: %w", err)
		}
		sub, err := events.Consume(ctx, natsBus, version.Name+"-notify", dispatcher)
		if err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
		defer sub.Close()

		publisher = &events.NATSPublisher{Bus: natsBus}
	} else {
		publisher = &events.DirectPublisher{Handler: dispatcher}
	}

	rec := audit.NewRecorder(database, log.Logger)
	prefs := notify.NewPreferenceService(database, log.Logger)
	teams := team.NewService(database, rec, log.Logger)

	srv := server.New(server.Options{
		Codec:          codec,
		Auth:           auth.NewService(database, codec, kakaoClient, prefs, rec, log.Logger),
		Users:          user.NewService(database, log.Logger),
		Teams:          teams,
		Schedules:      schedule.NewService(database, teams, publisher, log.Logger),
		Notify:         dispatcher,
		Prefs:          prefs,
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            log.Logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("version", version.Version).Msg("starting " + version.Name)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
