package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type AppProvider interface {
	Run() error
	Serve() func() error
	Stop(context.Context, context.Context) func() error
}

type App struct {
	logger         *zap.Logger
	config         *Config
	server         *http.Server
	cleanups       []func()
	queueConsumers []func(context.Context) error
}

// Backend holds the opened catalog storage and the clients behind it.
type Backend struct {
	Blobs       BlobStore
	RedisClient *redis.Client
	cleanups    []func()
}

// Close releases every client opened by OpenBackend, last opened first.
func (b *Backend) Close() {
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		b.cleanups[i]()
	}
}

// OpenBackend connects the blob store selected by the storage backend setting.
func OpenBackend(logger *zap.Logger, config *Config) (*Backend, error) {
	backend := &Backend{}
	switch config.Storage.Backend {
	case BackendRedis:
		redisClient, err := GetRedisClient(config)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis server: %s", err)
		}
		backend.RedisClient = redisClient
		backend.Blobs = NewRedisBlobStore(logger, redisClient)
		backend.cleanups = append(backend.cleanups, func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("failed to close redis client", zap.Error(err))
			}
		})
	case BackendBolt:
		boltDBClient, err := GetBoltDBClient(&config.BoltDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to boltDB server: %s", err)
		}
		backend.Blobs = NewBoltBlobStore(logger, &config.BoltDB, boltDBClient)
		backend.cleanups = append(backend.cleanups, func() {
			if err := boltDBClient.Close(); err != nil {
				logger.Error("failed to close boltdb client", zap.Error(err))
			}
		})
	default:
		backend.Blobs = NewMemoryBlobStore()
	}
	return backend, nil
}

// NewApp provides an instance of App.
func NewApp(config *Config) (AppProvider, error) {
	logFile, closer, err := OpenLogFile(config.LogFile)
	if err != nil {
		return nil, err
	}
	logger, flusher := SetupLogging(config, logFile)
	cleanups := []func(){flusher, closer}

	backend, err := OpenBackend(logger, config)
	if err != nil {
		flusher()
		closer()
		return nil, err
	}
	cleanups = append([]func(){backend.Close}, cleanups...)

	ids := NewIDsHandler()
	clock := NewClock(config.IsProduction)
	store := NewCatalogStore(logger, backend.Blobs, config.Catalog, ids)

	// Setup the optional backup of redis snapshots into boltDB.
	var queue Queuer
	var queueConsumers []func(context.Context) error
	if config.Backup.Enabled {
		boltDBClient, err := GetBoltDBClient(&config.BoltDB)
		if err != nil {
			for _, f := range cleanups {
				f()
			}
			return nil, fmt.Errorf("failed to connect to boltDB server: %s", err)
		}
		cleanups = append([]func(){func() {
			if err := boltDBClient.Close(); err != nil {
				logger.Error("failed to close boltdb client", zap.Error(err))
			}
		}}, cleanups...)
		queue = NewRedisQueue(backend.RedisClient)
		backupConsumer := NewBackupConsumer(logger, queue, NewBoltBlobStore(logger, &config.BoltDB, boltDBClient))
		queueConsumers = append(queueConsumers, func(ctx context.Context) error {
			return backupConsumer.Consume(ctx, config.Backup.Queue)
		})
	}

	catalogService := NewCatalogService(logger, config, clock, store, queue)
	apiService := NewAPIHandler(
		logger,
		config,
		&Statistics{
			version:   config.GitTag,
			container: IsAppRunningInDocker(),
			started:   clock.Now(),
			runtime:   runtime.Version(),
			platform:  runtime.GOOS + "/" + runtime.GOARCH,
		},
		clock,
		ids,
		catalogService,
	)

	// Use git commit in case the tag is not set.
	if config.GitTag == "" {
		apiService.stats.version = config.GitCommit
	}

	// Build the map of middlewares stacks.
	middlewaresPublic, middlewaresOps := apiService.MiddlewaresStacks()

	// Configure the endpoints with their handlers and middlewares.
	router := apiService.SetupRoutes(httprouter.New(),
		&MiddlewareMap{
			public: middlewaresPublic.Chain,
			ops:    middlewaresOps.Chain,
		},
	)
	// Wrap the router with the default http timeout handler.
	routerWithTimeout := http.TimeoutHandler(
		router,
		config.Server.RequestTimeout,
		"Timeout. Processing taking too long. Please reach out to support.")

	// Build the api server definition.
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port),
		Handler:        routerWithTimeout,
		ReadTimeout:    config.Server.ReadTimeout,
		WriteTimeout:   config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // Max headers size : 1MB
	}

	return &App{
		logger:         logger,
		config:         config,
		server:         srv,
		cleanups:       cleanups,
		queueConsumers: queueConsumers,
	}, nil
}

// Run starts the api web server and a goroutine which is responsible to stop it.
func (app *App) Run() error {
	defer app.Clean()
	nCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(nCtx)

	g.Go(app.ConsumeQueues(gCtx, g))
	g.Go(app.Serve())
	g.Go(app.Stop(nCtx, gCtx))

	err := g.Wait()
	app.logger.Info("api server stopped",
		zap.String("app.host", app.config.Server.Host),
		zap.String("app.port", app.config.Server.Port),
		zap.Error(err),
	)
	return err
}

// Clean calls all registered cleanups functions.
func (app *App) Clean() {
	for _, f := range app.cleanups {
		f()
	}
}

// Serve starts the api web server. It returned error
// will be caught by the errorgroup.
func (app *App) Serve() func() error {
	return func() error {
		app.logger.Info("api server starting",
			zap.String("app.host", app.config.Server.Host),
			zap.String("app.port", app.config.Server.Port),
			zap.String("storage.backend", app.config.Storage.Backend),
			zap.Bool("backup.enabled", app.config.Backup.Enabled),
		)
		err := app.server.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		return err
	}
}

// Stop listens for the group context and triggers the server graceful shutdown.
// It states the reason of its call. We proceed with a brutal shutdown if the
// the graceful did not complete successfully. We explicitly return `nil` to
// allow the errorgroup catches only the `Serve` method result.
func (app *App) Stop(nCtx, gCtx context.Context) func() error {
	return func() error {
		<-gCtx.Done()

		if nCtx.Err() != nil {
			app.logger.Info("api server stopping. reason: requested to stop")
		} else {
			app.logger.Info("api server stopping. reason: errored at running")
		}

		sCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		start := time.Now()
		err := app.server.Shutdown(sCtx)
		switch err {
		case nil, http.ErrServerClosed:
			app.logger.Info("api server graceful shutdown succeeded", zap.Duration("shutdown.duration", time.Since(start)))
		case context.DeadlineExceeded:
			app.logger.Info("api server graceful shutdown timed out")
		default:
			app.logger.Info("api server graceful shutdown failed", zap.Error(err))
		}

		if err != nil && err != http.ErrServerClosed {
			app.logger.Info("api server going to force shutdown", zap.Error(app.server.Close()))
		}
		return nil
	}
}

// ConsumeQueues runs all queue consumers into separate controlled goroutines.
func (app *App) ConsumeQueues(gCtx context.Context, g *errgroup.Group) func() error {
	return func() error {
		for _, consume := range app.queueConsumers {
			consume := consume
			f := func() error {
				return consume(gCtx)
			}
			g.Go(f)
		}
		return nil
	}
}
