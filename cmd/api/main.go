package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/clinisense/internal/application"
	appdoctors "github.com/bryanwahyu/clinisense/internal/application/doctors"
	appnotes "github.com/bryanwahyu/clinisense/internal/application/notes"
	apppatients "github.com/bryanwahyu/clinisense/internal/application/patients"
	"github.com/bryanwahyu/clinisense/internal/config"
	"github.com/bryanwahyu/clinisense/internal/domain/analysis"
	"github.com/bryanwahyu/clinisense/internal/domain/doctors"
	"github.com/bryanwahyu/clinisense/internal/domain/patients"
	"github.com/bryanwahyu/clinisense/internal/infra/ai/openai"
	rediscache "github.com/bryanwahyu/clinisense/internal/infra/cache/redis"
	mysqlp "github.com/bryanwahyu/clinisense/internal/infra/db/mysql"
	"github.com/bryanwahyu/clinisense/internal/infra/db/postgres"
	"github.com/bryanwahyu/clinisense/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/clinisense/internal/infra/storage"
	"github.com/bryanwahyu/clinisense/internal/infra/upstream"
	"github.com/bryanwahyu/clinisense/internal/logger"
	"github.com/bryanwahyu/clinisense/internal/middleware"
	"github.com/bryanwahyu/clinisense/internal/state"
)

func main() {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output); err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Log

	ctx := context.Background()
	health := &middleware.Health{Features: map[string]bool{}}

	// local patient cache
	var cache patients.LocalCache
	switch cfg.Database.Driver {
	case "mysql":
		db := mustDB(ctx, log, "mysql", func(ctx context.Context) (*sql.DB, error) { return mysqlp.Connect(ctx, cfg.MySQLDSN()) })
		defer db.Close()
		repo := mysqlp.NewPatientCacheRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			log.Fatal("mysql migrate error", zap.Error(err))
		}
		cache = repo
		health.Components = append(health.Components, middleware.Component{
			Name: "mysql", Target: fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port), Critical: true, Check: middleware.PingDB(db),
		})
	case "postgres":
		db := mustDB(ctx, log, "postgres", func(ctx context.Context) (*sql.DB, error) { return postgres.Connect(ctx, cfg.PostgresDSN()) })
		defer db.Close()
		repo := postgres.NewPatientCacheRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			log.Fatal("postgres migrate error", zap.Error(err))
		}
		cache = repo
		health.Components = append(health.Components, middleware.Component{
			Name: "postgres", Target: fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port), Critical: true, Check: middleware.PingDB(db),
		})
	default:
		log.Warn("no database configured, patient cache is in memory")
		cache = state.NewMemoryCache()
	}

	// sessions
	var sessions doctors.SessionStore
	if cfg.Redis.Addr != "" {
		client, err := rediscache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal("redis connect error", zap.Error(err))
		}
		defer client.Close()
		store := rediscache.NewSessionStore(client, cfg.Redis.SessionTTL, log)
		sessions = store
		health.Components = append(health.Components, middleware.Component{
			Name: "redis", Target: cfg.Redis.Addr, Critical: true, Check: store.Ping,
		})
	} else {
		log.Warn("no redis configured, sessions are in memory")
		sessions = state.NewMemorySessions()
	}
	st := state.New(sessions, cache)

	// upstream services
	httpClient := &http.Client{}
	analyzer := upstream.NewAnalyzer(cfg.Upstream.AnalyzeURL, httpClient)
	authURL := cfg.Upstream.AuthURL
	if authURL == "" {
		authURL = cfg.Upstream.AnalyzeURL
	}
	storeURL := cfg.Upstream.PatientStoreURL
	if storeURL == "" {
		storeURL = authURL
	}

	auth := upstream.NewAuth(authURL, httpClient)
	patientStore := upstream.NewPatientStore(storeURL, httpClient)
	health.Components = append(health.Components,
		middleware.Component{Name: "analyze", Target: cfg.Upstream.AnalyzeURL, Critical: true, Check: analyzer.Ping},
		middleware.Component{Name: "auth", Target: authURL, Check: auth.Ping},
		middleware.Component{Name: "patient_store", Target: storeURL, Check: patientStore.Ping},
	)

	patientSvc := &apppatients.Service{
		Remote:   patientStore,
		State:    st,
		Analyzer: analyzer,
		Clock:    application.SystemClock{},
		Log:      log.Named("patients"),
		MaxItems: cfg.Upstream.MaxItems,
		Location: cfg.Location(),
	}

	// report archive
	if cfg.Minio.Endpoint != "" {
		archive, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatal("minio init error", zap.Error(err))
		}
		patientSvc.Archive = archive
		health.Components = append(health.Components, middleware.Component{
			Name: "minio", Target: cfg.Minio.Endpoint, Check: archive.Ping,
		})
	}
	health.Features["archive"] = patientSvc.Archive != nil

	// clinical notes
	var writer analysis.NoteWriter
	if cfg.OpenAI.APIKey != "" {
		ai := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		ai.MaxTokens = cfg.OpenAI.MaxTokens
		writer = ai
	}
	noteSvc := appnotes.NewService(writer, patientSvc, application.SystemClock{})
	health.Features["notes"] = writer != nil

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	stopSweep := make(chan struct{})
	go limiter.Run(stopSweep)
	defer close(stopSweep)

	handler := httpserver.NewRouter(httpserver.Deps{
		Doctors:        appdoctors.NewService(auth, st, log.Named("doctors")),
		Patients:       patientSvc,
		Notes:          noteSvc,
		Health:         health,
		Registry:       middleware.NewRegistry(),
		Limiter:        limiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            log,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// analyses wait on the upstream service
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}

func mustDB(ctx context.Context, log *zap.Logger, driver string, connect func(context.Context) (*sql.DB, error)) *sql.DB {
	db, err := connect(ctx)
	if err != nil {
		log.Fatal("database connect error", zap.String("driver", driver), zap.Error(err))
	}
	return db
}
