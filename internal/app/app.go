package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/assignment-tracker/internal/config"
	"github.com/RubachokBoss/assignment-tracker/internal/delivery/httpd"
	"github.com/RubachokBoss/assignment-tracker/internal/repository"
	"github.com/RubachokBoss/assignment-tracker/internal/service"
	"github.com/RubachokBoss/assignment-tracker/internal/service/integration"
	"github.com/RubachokBoss/assignment-tracker/pkg/password"
	"github.com/RubachokBoss/assignment-tracker/pkg/token"
)

type App struct {
	server    *http.Server
	logger    zerolog.Logger
	config    *config.Config
	db        *sql.DB
	publisher integration.EventPublisher
}

func New(cfg *config.Config, log zerolog.Logger, db *sql.DB) (*App, error) {
	blobs, err := NewBlobStore(cfg, log)
	if err != nil {
		return nil, err
	}

	// Создаем интеграционные клиенты
	publisher := NewPublisher(cfg.RabbitMQ, log)
	clock := service.NewClock(cfg.Clock.Load())

	// Создаем репозитории
	userRepo := repository.NewUserRepository(db, log)
	templateRepo := repository.NewTemplateRepository(db, log)
	assignmentRepo := repository.NewAssignmentRepository(db, log)
	stageRepo := repository.NewStageRepository(db, log)
	evidenceRepo := repository.NewEvidenceRepository(db, log)

	hasher := password.NewHasher(cfg.Security.PasswordIterations)
	policy := service.EvidencePolicy{
		MaxSize:           cfg.Evidence.MaxSize,
		AllowedExtensions: cfg.Evidence.AllowedExtensions,
	}

	// Создаем сервисы
	userService := service.NewUserService(userRepo, hasher, clock, log)
	templateService := service.NewTemplateService(templateRepo, clock, log)
	assignmentService := service.NewAssignmentService(assignmentRepo, templateRepo, userRepo, blobs, publisher, clock, log)
	progressService := service.NewProgressService(stageRepo, publisher, clock, log)
	evidenceService := service.NewEvidenceService(stageRepo, evidenceRepo, blobs, publisher, policy, clock, log)
	statusService := service.NewStatusService(assignmentRepo, userRepo, clock, log)

	// Создаем обработчики
	handler := httpd.NewHandler(
		userService,
		templateService,
		assignmentService,
		progressService,
		evidenceService,
		statusService,
		token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		repository.NewPostgresRepository(db, log),
		cfg.Evidence.MaxSize,
		log,
	)

	// Создаем роутер и регистрируем маршруты
	router := NewRouter(cfg.CORS, log)
	handler.RegisterRoutes(router)

	// Создаем HTTP сервер
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		server:    server,
		logger:    log,
		config:    cfg,
		db:        db,
		publisher: publisher,
	}, nil
}

// NewRouter builds the chi router with the shared middleware stack.
func NewRouter(corsCfg config.CORSConfig, log zerolog.Logger) chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(httpd.RequestLogger(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Настраиваем CORS
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsCfg.AllowedOrigins,
		AllowedMethods:   corsCfg.AllowedMethods,
		AllowedHeaders:   corsCfg.AllowedHeaders,
		ExposedHeaders:   corsCfg.ExposedHeaders,
		AllowCredentials: corsCfg.AllowCredentials,
		MaxAge:           corsCfg.MaxAge,
	}))

	return router
}

func NewBlobStore(cfg *config.Config, log zerolog.Logger) (repository.BlobStore, error) {
	switch cfg.Storage.Provider {
	case "local":
		store, err := repository.NewLocalBlobStore(cfg.Storage.LocalRoot, log)
		if err != nil {
			return nil, err
		}
		log.Info().Str("root", cfg.Storage.LocalRoot).Msg("Using local evidence storage")
		return store, nil
	case "minio", "":
		return repository.NewMinIOBlobStore(
			cfg.MinIO.Endpoint,
			cfg.MinIO.AccessKey,
			cfg.MinIO.SecretKey,
			cfg.Storage.BucketName,
			cfg.Storage.Region,
			cfg.MinIO.UseSSL,
			cfg.MinIO.Timeout,
			log,
		)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

// NewPublisher connects to RabbitMQ when enabled. The service keeps running
// without events when the broker is unreachable.
func NewPublisher(cfg config.RabbitMQConfig, log zerolog.Logger) integration.EventPublisher {
	if !cfg.Enabled {
		return integration.NewNoopPublisher()
	}

	publisher, err := integration.NewRabbitMQPublisher(cfg.URL, cfg.Exchange, cfg.Queue, log)
	if err != nil {
		// Продолжаем без событий, сервис остается рабочим
		log.Error().Err(err).Msg("Failed to connect to RabbitMQ; integration events are disabled")
		return integration.NewNoopPublisher()
	}
	return publisher
}

func (a *App) Run() error {
	a.logger.Info().Msgf("Starting assignment tracker on %s", a.config.Server.Address)
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info().Msg("Shutting down assignment tracker...")

	// Останавливаем сервер
	if err := a.server.Shutdown(ctx); err != nil {
		return err
	}

	// Закрываем RabbitMQ соединение
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close event publisher")
		}
	}

	return nil
}
