// Command timesheetd runs the retry processor, the deletion sweep and the
// read-only admin API over a configurable store.
//
// Environment:
//
//	TIMESHEET_CONFIG      optional YAML config file
//	STORE_DRIVER          memory | postgres | redis | mongo | dynamo
//	DATABASE_URL          postgres connection string
//	REDIS_URL             redis URL
//	MONGO_URI, MONGO_DB   mongo connection
//	DYNAMO_ENDPOINT       optional dynamodb endpoint override
//	DYNAMO_ITEMS_TABLE, DYNAMO_REQUESTS_TABLE
//	HR_BASE_URL, HR_TOKEN
//	CONVERSATIONS_BASE_URL, CONVERSATIONS_TOKEN
//	SES_FROM              enables SES notifications when set
//	KAFKA_BROKERS, KAFKA_TOPIC_AUDIT  enable the Kafka audit trail when set
//	HTTP_ADDR             admin API address, default :8080
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/action"
	"github.com/adiazcan/timesheet-speck-kit-sub001/api"
	audithook "github.com/adiazcan/timesheet-speck-kit-sub001/audit_hook"
	"github.com/adiazcan/timesheet-speck-kit-sub001/engine"
	"github.com/adiazcan/timesheet-speck-kit-sub001/notify"
	notifyhook "github.com/adiazcan/timesheet-speck-kit-sub001/notify_hook"
	"github.com/adiazcan/timesheet-speck-kit-sub001/remote"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store/dynamo"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store/memory"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store/mongo"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store/postgres"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store/redis"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("timesheetd exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg := timesheet.DefaultConfig()
	if path := os.Getenv("TIMESHEET_CONFIG"); path != "" {
		loaded, err := timesheet.LoadConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	st, err := openStore(ctx, getenv("STORE_DRIVER", "memory"), logger)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	hr, err := remote.NewHRClient(os.Getenv("HR_BASE_URL"),
		remote.WithToken(os.Getenv("HR_TOKEN")),
		remote.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	conversations, err := remote.NewConversationClient(os.Getenv("CONVERSATIONS_BASE_URL"),
		remote.WithToken(os.Getenv("CONVERSATIONS_TOKEN")),
		remote.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	notifier, err := newNotifier(ctx, logger)
	if err != nil {
		return err
	}
	recorder, closeRecorder, err := newRecorder(logger)
	if err != nil {
		return err
	}
	defer closeRecorder()

	eng, err := engine.Build(cfg, st,
		engine.WithActionExecutor(action.KindClockIn, hr),
		engine.WithActionExecutor(action.KindClockOut, hr),
		engine.WithDeletionExecutor(conversations),
		engine.WithNotifier(notifier),
		engine.WithExtension(audithook.New(recorder, audithook.WithLogger(logger))),
		engine.WithExtension(notifyhook.New(notifier, notifyhook.WithLogger(logger))),
		engine.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              getenv("HTTP_ADDR", ":8080"),
		Handler:           api.New(eng, api.WithLogger(logger)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("admin API listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("admin API failed", slog.String("error", err.Error()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("admin API shutdown", slog.String("error", err.Error()))
	}
	return eng.Stop(shutdownCtx)
}

func openStore(ctx context.Context, driver string, logger *slog.Logger) (store.Store, error) {
	switch driver {
	case "memory":
		return memory.New(), nil
	case "postgres":
		return postgres.New(ctx, os.Getenv("DATABASE_URL"), postgres.WithLogger(logger))
	case "redis":
		opts, err := goredis.ParseURL(getenv("REDIS_URL", "redis://localhost:6379/0"))
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return redis.New(goredis.NewClient(opts), redis.WithLogger(logger)), nil
	case "mongo":
		client, err := mongod.Connect(options.Client().ApplyURI(getenv("MONGO_URI", "mongodb://localhost:27017")))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		return mongo.New(client.Database(getenv("MONGO_DB", "timesheet")), mongo.WithLogger(logger)), nil
	case "dynamo":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return dynamo.NewFromConfig(awsCfg, os.Getenv("DYNAMO_ENDPOINT"),
			dynamo.WithTables(getenv("DYNAMO_ITEMS_TABLE", dynamo.DefaultItemsTable), getenv("DYNAMO_REQUESTS_TABLE", dynamo.DefaultRequestsTable)),
			dynamo.WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("%w: unknown STORE_DRIVER %q", timesheet.ErrInvalidConfig, driver)
	}
}

func newNotifier(ctx context.Context, logger *slog.Logger) (notify.Notifier, error) {
	from := os.Getenv("SES_FROM")
	if from == "" {
		return notify.NewLogNotifier(logger), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return notify.NewSESNotifier(awsCfg, from)
}

func newRecorder(logger *slog.Logger) (audithook.Recorder, func(), error) {
	brokers, topic := os.Getenv("KAFKA_BROKERS"), os.Getenv("KAFKA_TOPIC_AUDIT")
	if brokers == "" || topic == "" {
		return audithook.NewLogRecorder(logger), func() {}, nil
	}
	k, err := audithook.NewKafkaRecorder(brokers, topic)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := k.Close(); err != nil {
			logger.Warn("close audit writer", slog.String("error", err.Error()))
		}
	}
	return audithook.MultiRecorder{k, audithook.NewLogRecorder(logger)}, closeFn, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
