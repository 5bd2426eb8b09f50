package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anicoll/solax-http-integration/internal/pkg/config"
	"github.com/anicoll/solax-http-integration/internal/pkg/contxt"
	"github.com/anicoll/solax-http-integration/internal/pkg/coordinator"
	"github.com/anicoll/solax-http-integration/internal/pkg/database"
	"github.com/anicoll/solax-http-integration/internal/pkg/detector"
	"github.com/anicoll/solax-http-integration/internal/pkg/metrics"
	"github.com/anicoll/solax-http-integration/internal/pkg/model"
	"github.com/anicoll/solax-http-integration/internal/pkg/mqtt"
	"github.com/anicoll/solax-http-integration/internal/pkg/plugin"
	"github.com/anicoll/solax-http-integration/internal/pkg/publisher"
	"github.com/anicoll/solax-http-integration/internal/pkg/server"
	"github.com/anicoll/solax-http-integration/internal/pkg/transport"
)

const shutdownTimeout = 5 * time.Second

var errCron = errors.New("cron error")

func solaxConfig(ctx *cli.Context) *config.SolaxConfig {
	return &config.SolaxConfig{
		Host:            ctx.String("solax-host"),
		Password:        ctx.String("solax-password"),
		DeviceSerial:    ctx.String("device-serial"),
		UseForwardedFor: ctx.Bool("use-x-forwarded-for"),
		PollInterval:    ctx.Duration("poll-interval"),
		Timeout:         ctx.Duration("api-timeout"),
		Retries:         ctx.Uint64("retries"),
		RetryDelay:      ctx.Duration("retry-delay"),
		Cooldown:        ctx.Duration("refresh-cooldown"),
	}
}

func RunCommand(ctx *cli.Context) error {
	sinks, err := config.LoadSinks()
	if err != nil {
		return err
	}
	cfg := &config.Config{
		SolaxCfg: solaxConfig(ctx),
		SinkCfg:  sinks,
		LogLevel: ctx.String("log-level"),
	}
	if err := cfg.SolaxCfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()
	zap.ReplaceGlobals(logger)

	return run(ctx.Context, cfg, newClient(cfg.SolaxCfg))
}

// ProbeCommand detects the device once and prints what was found.
func ProbeCommand(ctx *cli.Context) error {
	cfg := solaxConfig(ctx)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := newLogger(ctx.String("log-level"))
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)

	p, err := probe(ctx.Context, cfg, newClient(cfg))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(ctx.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Plugin     string         `json:"plugin"`
		Identifier string         `json:"identifier"`
		Identity   model.Identity `json:"identity"`
	}{
		Plugin:     p.Name(),
		Identifier: publisher.Identifier(p.Identity()),
		Identity:   p.Identity(),
	})
}

func newLogger(level string) (*zap.Logger, error) {
	var err error
	logCfg := zap.NewProductionConfig()
	logCfg.Level, err = zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	return logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

func newClient(cfg *config.SolaxConfig) *transport.Client {
	options := []func(*transport.Client){
		transport.WithForwardedFor(cfg.UseForwardedFor),
		transport.WithRetries(cfg.Retries),
	}
	if cfg.Timeout > 0 {
		options = append(options, transport.WithTimeout(cfg.Timeout))
	}
	if cfg.RetryDelay > 0 {
		options = append(options, transport.WithRetryDelay(cfg.RetryDelay))
	}
	return transport.New(cfg.Host, cfg.Password, options...)
}

func probe(ctx context.Context, cfg *config.SolaxConfig, client DeviceClient) (plugin.Plugin, error) {
	p, err := detector.Probe(ctx, client, plugin.Options{
		Registration: cfg.Password,
		DeviceSerial: cfg.DeviceSerial,
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("detected device",
		zap.String("plugin", p.Name()),
		zap.String("serial", p.Identity().SerialNumber),
		zap.String("model", p.Identity().ModelName),
	)
	return p, nil
}

type app struct {
	cfg       *config.Config
	coord     *coordinator.Coordinator
	publisher *publisher.Publisher
	handler   http.Handler
	closers   []func() error
	db        cleaner
	errorChan chan error
	logger    *zap.Logger
}

// newApp detects the device and wires the poller to every configured sink.
func newApp(ctx context.Context, cfg *config.Config, client DeviceClient) (_ *app, err error) {
	a := &app{
		cfg:       cfg,
		publisher: publisher.New(),
		errorChan: make(chan error, 1000),
		logger:    zap.L(),
	}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	p, err := probe(ctx, cfg.SolaxCfg, client)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	coordOptions := []func(*coordinator.Coordinator){
		coordinator.WithObserver(m.ObserveRefresh),
		coordinator.WithDeadline(client.Deadline()),
	}
	if cfg.SolaxCfg.Cooldown > 0 {
		coordOptions = append(coordOptions, coordinator.WithCooldown(cfg.SolaxCfg.Cooldown))
	}
	a.coord = coordinator.New(client, p, coordOptions...)

	if err := a.publisher.RegisterSink("metrics", m); err != nil {
		return nil, err
	}
	srvOptions := []server.Option{
		server.WithMetrics(m.Handler()),
		server.WithJWTSecret(cfg.SinkCfg.JWTSecret),
	}

	if cfg.SinkCfg.DatabaseURL != "" {
		db, err := database.Connect(ctx, cfg.SinkCfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.db = db
		srvOptions = append(srvOptions, server.WithStore(db))
		if err := a.publisher.RegisterSink("postgres", db); err != nil {
			return nil, err
		}
	}

	if cfg.SinkCfg.MqttHost != "" {
		mqttSvc := mqtt.New(mqtt.NewClient(cfg.SinkCfg.MqttHost, cfg.SinkCfg.MqttUser, cfg.SinkCfg.MqttPass))
		if err := mqttSvc.Connect(); err != nil {
			return nil, err
		}
		if err := a.publisher.RegisterSink("mqtt", mqttSvc); err != nil {
			return nil, err
		}
	}

	srv := server.New(a.coord, srvOptions...)
	a.closers = append(a.closers, srv.Close)
	a.handler = srv.Handler()
	if err := a.publisher.RegisterSink("websocket", srv); err != nil {
		return nil, err
	}

	a.coord.Subscribe(a.publish)
	return a, nil
}

// publish runs on the poll timeline after every published refresh.
func (a *app) publish(*model.Snapshot) {
	ctx, cancel := contxt.NewContext(context.Background(), a.cfg.SinkCfg.SinkTimeout)
	defer cancel()
	if err := a.publisher.Publish(ctx, a.coord.Identity(), a.coord.Readings()); err != nil {
		a.logger.Error("failed to publish", zap.Error(err))
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
}

func run(ctx context.Context, cfg *config.Config, client DeviceClient) error {
	a, err := newApp(ctx, cfg, client)
	if err != nil {
		return err
	}
	defer a.close()
	return a.run(ctx)
}

func (a *app) run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return a.coord.Run(ctx, a.cfg.SolaxCfg.PollInterval)
	})

	if a.db != nil {
		eg.Go(func() error {
			return cronDbCleanup(ctx, a.db, a.cfg.SinkCfg.CleanupSchedule, a.errorChan)
		})
	}

	srv := &http.Server{
		Handler:      a.handler,
		Addr:         a.cfg.SinkCfg.HTTPAddr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	eg.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := contxt.NewContext(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	eg.Go(func() error {
		// handle any async errors from services
		for {
			select {
			case err := <-a.errorChan:
				if errors.Is(err, errCron) {
					a.logger.Error("cron error", zap.Error(err))
					return err
				}
				a.logger.Warn("service error", zap.Error(err))
			case <-ctx.Done():
				a.logger.Info("context done")
				return ctx.Err()
			}
		}
	})

	return eg.Wait()
}

func cronDbCleanup(ctx context.Context, db cleaner, schedule string, errChan chan error) error {
	if err := db.Cleanup(ctx); err != nil {
		return err
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := db.Cleanup(ctx); err != nil {
			zap.L().Error("error cleaning up database", zap.Error(err))
			errChan <- errCron
			return
		}
		zap.L().Info("cleaned up stale values")
	}); err != nil {
		return err
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
