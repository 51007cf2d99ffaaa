package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gestor/internal/domain/auth"
	"gestor/internal/domain/core"
	"gestor/internal/domain/fiscal"
	"gestor/internal/domain/payroll"
	"gestor/internal/domain/reports"
	"gestor/internal/platform/config"
	"gestor/internal/platform/db"
	"gestor/internal/platform/jobs"
	"gestor/internal/platform/metrics"
	"gestor/internal/transport/http/api"
	authhandler "gestor/internal/transport/http/handlers/auth"
	corehandler "gestor/internal/transport/http/handlers/core"
	fiscalhandler "gestor/internal/transport/http/handlers/fiscal"
	payrollhandler "gestor/internal/transport/http/handlers/payroll"
	reportshandler "gestor/internal/transport/http/handlers/reports"
	"gestor/internal/transport/http/middleware"
	"gestor/migrations"
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Metrics *metrics.Collector
}

// New builds a fully wired application. Journey tests construct it the same
// way the binary does.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, migrations.FS); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		collector = metrics.New()
	}

	jobsService := jobs.New(pool)
	jobsService.Start(ctx)

	authStore := auth.NewStore(pool)
	coreStore := core.NewStore(pool)
	fiscalService := fiscal.NewService(fiscal.NewStore(pool), fiscal.DefaultRates{
		EmployeeINSS: cfg.DefaultEmployeeINSSRate,
		EmployerINSS: cfg.DefaultEmployerINSSRate,
		IVA:          cfg.DefaultIVARate,
	}, collector)
	payrollService := payroll.NewService(payroll.NewStore(pool), fiscalService, coreStore, jobsService, collector, cfg.PayslipDir)
	reportsService := reports.NewService(reports.NewStore(pool), fiscalService)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Metrics(collector))
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(authStore, cfg.JWTSecret, cfg.TokenTTL)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Get("/auth/me", authHandler.HandleMe)
		r.Post("/auth/change-password", authHandler.HandleChangePassword)

		corehandler.NewHandler(coreStore).RegisterRoutes(r)
		fiscalhandler.NewHandler(fiscalService).RegisterRoutes(r)
		payrollhandler.NewHandler(payrollService, middleware.NewIdempotencyStore(pool)).RegisterRoutes(r)
		reportshandler.NewHandler(reportsService).RegisterRoutes(r)

		if collector != nil {
			r.With(middleware.RequirePermission(auth.PermSystemAdmin)).Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
				api.Success(w, collector.Snapshot(), middleware.GetRequestID(req.Context()))
			})
		}
	})

	return &App{Config: cfg, DB: pool, Router: router, Metrics: collector}, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	app, err := New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer app.DB.Close()

	log.Printf("gestor server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, app.Router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
