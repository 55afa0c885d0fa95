package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aficare/medilink/internal/config"
	"github.com/aficare/medilink/internal/domain/access"
	"github.com/aficare/medilink/internal/domain/consultation"
	"github.com/aficare/medilink/internal/domain/patient"
	"github.com/aficare/medilink/internal/platform/audit"
	"github.com/aficare/medilink/internal/platform/auth"
	"github.com/aficare/medilink/internal/platform/db"
	"github.com/aficare/medilink/internal/platform/groq"
	"github.com/aficare/medilink/internal/platform/middleware"
	"github.com/aficare/medilink/internal/platform/mirror"
	"github.com/aficare/medilink/internal/platform/qrtoken"
	"github.com/aficare/medilink/internal/platform/sandbox"
	"github.com/aficare/medilink/internal/platform/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medilink-server",
		Short: "AfiCare MediLink API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MediLink API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			conn, err := db.Open(ctx, cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer conn.Close()

			m := db.NewMigrator(conn, "migrations")
			if err := m.EnsureMigrationsTable(ctx); err != nil {
				return err
			}
			n, err := m.Up(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("applied %d migration(s)\n", n)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			conn, err := db.Open(ctx, cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer conn.Close()

			m := db.NewMigrator(conn, "migrations")
			if err := m.EnsureMigrationsTable(ctx); err != nil {
				return err
			}
			statuses, err := m.Status(ctx)
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Printf("%03d %-30s %s\n", s.Version, s.Name, state)
			}
			return nil
		},
	}

	cmd.AddCommand(upCmd)
	cmd.AddCommand(statusCmd)
	return cmd
}

func seedCmd() *cobra.Command {
	var patients, consultations, grants int
	var seed int64

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with synthetic demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			conn, err := db.Open(ctx, cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer conn.Close()

			codec, err := qrtoken.NewCodec(cfg.AccessSecret)
			if err != nil {
				return err
			}

			patientSvc := patient.NewService(patient.NewRepoSQLite(conn))
			consultationSvc := consultation.NewService(consultation.NewRepoSQLite(conn), patientSvc)
			grantSvc := access.NewService(access.NewRepoSQLite(conn), patientSvc, consultationSvc, codec)

			seedCfg := sandbox.DefaultSeedConfig()
			seedCfg.PatientCount = patients
			seedCfg.ConsultationsPerPatient = consultations
			seedCfg.GrantsPerPatient = grants
			seedCfg.Seed = seed

			result, err := sandbox.NewSeeder(seedCfg, patientSvc, consultationSvc, grantSvc).Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("seeded %d patients, %d consultations, %d grants in %s\n",
				result.Patients, result.Consultations, result.Grants, result.Duration)
			return nil
		},
	}

	defaults := sandbox.DefaultSeedConfig()
	cmd.Flags().IntVar(&patients, "patients", defaults.PatientCount, "number of patients to generate")
	cmd.Flags().IntVar(&consultations, "consultations", defaults.ConsultationsPerPatient, "consultations per patient")
	cmd.Flags().IntVar(&grants, "grants", defaults.GrantsPerPatient, "access grants per patient")
	cmd.Flags().Int64Var(&seed, "seed", 0, "RNG seed (0 uses the current time)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject, medilinkID string
	var roles []string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is required to mint tokens")
			}
			tok, err := auth.Sign(auth.JWTConfig{
				Issuer:     "aficare-medilink",
				Audience:   "medilink-api",
				SigningKey: []byte(cfg.JWTSecret),
			}, subject, roles, medilinkID, ttl)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "dev-user", "token subject")
	cmd.Flags().StringSliceVar(&roles, "roles", []string{"clinician"}, "roles to embed")
	cmd.Flags().StringVar(&medilinkID, "medilink-id", "", "MediLink ID claim for patient tokens")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.SQLitePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer conn.Close()

	migrator := db.NewMigrator(conn, "migrations")
	if err := migrator.EnsureMigrationsTable(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare migrations table")
	}
	if n, err := migrator.Up(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply migrations")
	} else if n > 0 {
		logger.Info().Int("applied", n).Msg("migrations applied")
	}

	codec, err := qrtoken.NewCodec(cfg.AccessSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize share-token codec")
	}

	// Services
	patientSvc := patient.NewService(patient.NewRepoSQLite(conn))
	consultationSvc := consultation.NewService(consultation.NewRepoSQLite(conn), patientSvc)
	grantSvc := access.NewService(access.NewRepoSQLite(conn), patientSvc, consultationSvc, codec)

	groqClient := groq.NewClient(cfg.GroqAPIKey, cfg.GroqModel)
	if groqClient.Enabled() {
		consultationSvc.WithAssistant(groqClient)
		logger.Info().Str("model", cfg.GroqModel).Msg("groq note assistance enabled")
	}

	// Postgres mirror
	outbox := mirror.NewOutbox(conn)
	var mirrorWorker *mirror.Worker
	if cfg.MirrorEnabled() {
		pool, err := mirror.Connect(ctx, cfg.SupabaseURL, cfg.SupabaseKey, int(cfg.MirrorMaxConns))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to mirror database")
		}
		defer pool.Close()

		mirrorWorker = mirror.NewWorker(outbox, pool, logger)
		if err := mirrorWorker.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare mirror schema")
		}
		patientSvc.WithPublisher(outbox)
		consultationSvc.WithPublisher(outbox)
		mirrorWorker.Start()
		defer mirrorWorker.Stop()
		logger.Info().Msg("postgres mirror enabled")
	}

	metrics := telemetry.NewProvider()
	auditStore := audit.NewStore(conn)

	// Every audited request also bumps the per-operation counter.
	opCounter := middleware.AuditRecorderFunc(func(e middleware.AuditEntry) error {
		metrics.RecordOperation(e.Resource, e.Action)
		return nil
	})

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	// Public endpoints sit before auth so shared tokens and health checks
	// work without a bearer token.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(conn))
	e.GET("/metrics", metrics.Handler())

	accessHandler := access.NewHandler(grantSvc)
	shareGroup := e.Group("", middleware.Audit(logger, auditStore, opCounter))
	shareGroup.GET("/share/:token", accessHandler.Redeem)

	// Authenticated API
	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     "aficare-medilink",
			Audience:   "medilink-api",
			SigningKey: []byte(cfg.JWTSecret),
		}))
	}
	apiV1.Use(middleware.Audit(logger, auditStore, opCounter))

	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	consultation.NewHandler(consultationSvc).RegisterRoutes(apiV1)
	accessHandler.RegisterRoutes(apiV1)
	audit.NewHandler(auditStore).RegisterRoutes(apiV1)

	// Keep the outbox depth and patient count gauges fresh for /metrics.
	refreshGauges := func(ctx context.Context) {
		if depth, err := outbox.Depth(ctx); err == nil {
			metrics.SetOutboxDepth(int64(depth))
		}
		if _, total, err := patientSvc.List(ctx, 1, 0); err == nil {
			metrics.SetPatientsTotal(int64(total))
		}
	}
	gaugeCtx, cancelGauges := context.WithCancel(ctx)
	defer cancelGauges()
	refreshGauges(gaugeCtx)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gaugeCtx.Done():
				return
			case <-ticker.C:
				refreshGauges(gaugeCtx)
			}
		}
	}()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
