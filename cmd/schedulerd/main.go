// Command schedulerd runs a task scheduler pool and serves its Prometheus
// metrics until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fasthttp/router"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"golang.org/x/sync/errgroup"

	taskscheduler "github.com/Swind/go-task-scheduler"
	"github.com/Swind/go-task-scheduler/config"
	"github.com/Swind/go-task-scheduler/core"
	"github.com/Swind/go-task-scheduler/logging"
	promexporter "github.com/Swind/go-task-scheduler/observability/prometheus"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Fail loading config %v", err)
	}

	if err = run(cfg); err != nil {
		log.WithError(err).Error("schedulerd stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger, err := logging.NewLogrusLogger(logging.Options{Level: cfg.Log.Level, ReportCaller: true})
	if err != nil {
		return err
	}

	reg := prom.NewRegistry()
	exporter, err := promexporter.NewMetricsExporter(reg, promexporter.ExporterOptions{Namespace: cfg.Metrics.Namespace})
	if err != nil {
		return fmt.Errorf("metrics exporter: %w", err)
	}
	poller, err := promexporter.NewSnapshotPoller(reg, cfg.Metrics.Namespace, cfg.Metrics.SnapshotInterval)
	if err != nil {
		return fmt.Errorf("snapshot poller: %w", err)
	}

	schedCfg := core.DefaultTaskSchedulerConfig()
	schedCfg.Name = cfg.Pool.Name
	schedCfg.Logger = logger
	schedCfg.Metrics = exporter
	schedCfg.PanicHandler = &core.DefaultPanicHandler{Logger: logger}
	schedCfg.RejectedTaskHandler = &core.DefaultRejectedTaskHandler{Logger: logger}
	pool := taskscheduler.NewGoroutineThreadPoolWithConfig(cfg.Pool.Name, cfg.Pool.Workers, schedCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Workers outlive the signal context so StopGraceful can drain them
	pool.Start(context.Background())
	poller.AddPool(pool.ID(), pool)
	poller.Start(ctx)
	defer poller.Stop()

	heartbeat := startHeartbeat(pool, logger)
	poller.AddRunner(heartbeat.Name(), heartbeat)

	metricsRouter := router.New()
	metricsRouter.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	metricsRouter.GET("/healthz", func(rc *fasthttp.RequestCtx) {
		if !pool.IsRunning() {
			rc.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		rc.SetStatusCode(fasthttp.StatusOK)
	})
	metricsServer := &fasthttp.Server{
		Handler:     metricsRouter.Handler,
		ReadTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(log.Fields{"addr": cfg.Metrics.Addr}).Info("starting metrics server")
		if err := metricsServer.ListenAndServe(cfg.Metrics.Addr); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		heartbeat.Shutdown()
		stopErr := pool.StopGraceful(cfg.Pool.ShutdownTimeout)
		if err := metricsServer.Shutdown(); err != nil {
			return errors.Join(stopErr, fmt.Errorf("metrics server shutdown: %w", err))
		}
		return stopErr
	})

	err = g.Wait()
	log.Info("goodbye")
	return err
}

// startHeartbeat posts a repeating task that fans out sample work at every
// priority so the exported metrics move.
func startHeartbeat(pool *taskscheduler.GoroutineThreadPool, logger core.Logger) *core.SequencedTaskRunner {
	runner := core.NewSequencedTaskRunner(pool)
	runner.SetName("heartbeat")
	workers := core.NewParallelTaskRunner(pool, "heartbeat-work")

	priorities := []core.TaskTraits{core.TraitsBestEffort(), core.TraitsUserVisible(), core.TraitsUserBlocking()}
	runner.PostRepeatingTask(func(ctx context.Context) {
		for _, traits := range priorities {
			work := time.Duration(rand.IntN(20)) * time.Millisecond
			workers.PostTaskWithTraits(func(ctx context.Context) {
				time.Sleep(work)
			}, traits)
		}
		workers.PostDelayedTask(func(ctx context.Context) {
			logger.Debug("delayed heartbeat fired")
		}, 500*time.Millisecond)
	}, time.Second)
	return runner
}
