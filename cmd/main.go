package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"go-event-hub/internal/infrastructure/config"
	"go-event-hub/internal/infrastructure/consumer"
	"go-event-hub/internal/infrastructure/hub"
	"go-event-hub/internal/infrastructure/logger"
	"go-event-hub/internal/infrastructure/server"
)

func main() {
	ctx := context.Background()
	sctx := WithSignal(ctx)

	dotenvErr := godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		panic("cannot load config: " + err.Error())
	}

	log := logger.NewLogrusLogger(loggerConfig(cfg))
	if dotenvErr != nil {
		log.Debugf(".env not loaded: %v", dotenvErr)
	}

	hubInstance := hub.New(hub.Config{
		ProbeInterval: cfg.Hub.ProbeInterval,
		EvictAfter:    cfg.Hub.EvictAfter,
	}, log)

	if err := hubInstance.Start(ctx); err != nil {
		log.Fatalf("failed to start hub: %v", err)
	}

	var mqConsumer *consumer.Consumer
	if cfg.AMQP.Enabled {
		mqConsumer, err = consumer.New(cfg.AMQP, hubInstance, log)
		if err != nil {
			log.Fatalf("failed to build consumer: %v", err)
		}
		if err := mqConsumer.Start(sctx); err != nil {
			log.Fatalf("failed to start consumer: %v", err)
		}
	}

	router := InitRouter(cfg, hubInstance, log)
	httpSrv := server.NewHTTPServer(cfg.HTTP, router)

	app := newApplication(log, httpSrv, hubInstance, mqConsumer)
	if err := app.Run(sctx); err != nil {
		log.Errorf("application exited with error: %v", err)
	}
}

type Application struct {
	logger     logger.Logger
	httpSrv    server.Server
	hub        *hub.Hub
	mqConsumer *consumer.Consumer
}

func newApplication(
	log logger.Logger,
	httpSrv server.Server,
	hubInstance *hub.Hub,
	mqConsumer *consumer.Consumer,
) *Application {
	return &Application{
		logger:     log.WithField("app", "event-hub"),
		httpSrv:    httpSrv,
		hub:        hubInstance,
		mqConsumer: mqConsumer,
	}
}

func (app *Application) Run(ctx context.Context) error {
	eg := errgroup.Group{}

	eg.Go(func() error {
		return app.httpSrv.Start(ctx)
	})

	eg.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if app.mqConsumer != nil {
			if err := app.mqConsumer.Close(); err != nil {
				app.logger.Errorf("failed to close consumer: %v", err)
			}
		}

		// Drain subscribers before the listener goes away so the
		// server_shutdown notice still reaches them.
		app.hub.Shutdown()

		return app.httpSrv.Stop(shutdownCtx)
	})

	return eg.Wait()
}

func loggerConfig(cfg *config.Config) *logger.Config {
	lCfg := logger.NewDefaultConfig()
	lCfg.Level = logger.ParseLevel(cfg.Log.Level)
	lCfg.Format = cfg.Log.Format
	lCfg.Output = cfg.Log.Output
	lCfg.FilePath = cfg.Log.FilePath
	return lCfg
}

func WithSignal(pctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(pctx)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

		<-sigc

		cancel()
	}()

	return ctx
}
