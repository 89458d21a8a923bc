package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/assignment-tracker/internal/app"
	"github.com/RubachokBoss/assignment-tracker/internal/config"
	"github.com/RubachokBoss/assignment-tracker/internal/database"
	"github.com/RubachokBoss/assignment-tracker/internal/models"
	"github.com/RubachokBoss/assignment-tracker/internal/repository"
	"github.com/RubachokBoss/assignment-tracker/internal/service"
	"github.com/RubachokBoss/assignment-tracker/internal/worker"
	"github.com/RubachokBoss/assignment-tracker/pkg/logger"
	"github.com/RubachokBoss/assignment-tracker/pkg/password"
	"github.com/RubachokBoss/assignment-tracker/pkg/rabbitmq"
)

func main() {
	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)
	migrateDirection := migrateCmd.String("direction", "up", "direction of migration (up/down/force)")
	migrateVersion := migrateCmd.Int("version", -1, "version to force when direction is force")

	createUserCmd := flag.NewFlagSet("create-user", flag.ExitOnError)
	userEmail := createUserCmd.String("email", "", "email of the new user")
	userName := createUserCmd.String("name", "", "full name of the new user")
	userPassword := createUserCmd.String("password", "", "password of the new user")
	userAdmin := createUserCmd.Bool("admin", true, "grant administrator rights")

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			migrateCmd.Parse(os.Args[2:])
			runMigrations(*migrateDirection, *migrateVersion)
			return
		case "create-user":
			createUserCmd.Parse(os.Args[2:])
			createUser(*userEmail, *userName, *userPassword, *userAdmin)
			return
		case "consume-events":
			consumeEvents()
			return
		}
	}

	bootLog := logger.New()

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.NewWithConfig(cfg.Logging.Level, cfg.Logging.Pretty, cfg.Logging.NoColor)

	db := openDatabase(cfg, log)
	defer db.Close()

	application, err := app.New(cfg, log, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	go func() {
		if err := application.Run(); err != nil {
			log.Fatal().Err(err).Msg("Failed to run application")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown gracefully")
	}

	log.Info().Msg("Assignment tracker stopped")
}

func openDatabase(cfg *config.Config, log zerolog.Logger) *sql.DB {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}

	log.Info().Msg("Database connection established")
	return db
}

func runMigrations(direction string, version int) {
	log := logger.New()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	migrator, err := database.NewMigrator(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create migrator")
	}

	switch direction {
	case "up":
		if err := migrator.Up(); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Msg("Migrations applied successfully")
	case "down":
		if err := migrator.Down(); err != nil {
			log.Fatal().Err(err).Msg("Failed to rollback migrations")
		}
		log.Info().Msg("Migrations rolled back successfully")
	case "force":
		if version < 0 {
			log.Fatal().Msg("A -version is required to force")
		}
		if err := migrator.Force(version); err != nil {
			log.Fatal().Err(err).Msg("Failed to force migration version")
		}
		log.Info().Int("version", version).Msg("Migration version forced")
	default:
		log.Fatal().Msg("Invalid migration direction. Use 'up', 'down' or 'force'")
	}
}

func createUser(email, fullName, plain string, isAdmin bool) {
	log := logger.New()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db := openDatabase(cfg, log)
	defer db.Close()

	users := service.NewUserService(
		repository.NewUserRepository(db, log),
		password.NewHasher(cfg.Security.PasswordIterations),
		service.NewClock(cfg.Clock.Load()),
		log,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := users.Create(ctx, &models.CreateUserRequest{
		Email:    email,
		FullName: fullName,
		Password: plain,
		IsAdmin:  isAdmin,
		IsActive: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create user")
	}

	log.Info().Str("user_id", user.ID).Str("email", user.Email).Bool("is_admin", user.IsAdmin).Msg("User created")
}

// consumeEvents runs the audit consumer on the events queue until SIGINT or
// SIGTERM.
func consumeEvents() {
	bootLog := logger.New()
	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithConfig(cfg.Logging.Level, cfg.Logging.Pretty, cfg.Logging.NoColor)

	blobs, err := app.NewBlobStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create blob store")
	}

	conn, err := rabbitmq.NewConnection(cfg.RabbitMQ.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
	}
	defer conn.Close()

	channel, err := rabbitmq.NewChannel(conn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open RabbitMQ channel")
	}
	defer channel.Close()

	if err := rabbitmq.DeclareTopic(channel, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue); err != nil {
		log.Fatal().Err(err).Msg("Failed to declare event topology")
	}

	consumer := worker.NewRabbitMQConsumer(channel, cfg.RabbitMQ.Queue, "assignment-tracker-audit", cfg.RabbitMQ.Workers, log)
	defer consumer.Close()

	dispatcher := worker.NewDispatcher(
		consumer,
		worker.NewPool(cfg.RabbitMQ.Workers, log),
		worker.NewAuditHandler(blobs, log),
		log,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("queue", cfg.RabbitMQ.Queue).Msg("Event audit consumer started")
	if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Event audit consumer stopped")
		return
	}
	log.Info().Msg("Event audit consumer stopped")
}
