package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"ypapub/internal/pub"
	"ypapub/internal/pub/metrics"
	"ypapub/internal/pub/publisher"
	"ypapub/internal/pub/tracing"
)

type Config struct {
	Publisher publisher.Config
	Metrics   metrics.ServerConfig
	Tracing   tracing.Config

	EventCount         int           `env:"EVENT_COUNT" envDefault:"100"`
	PublishInterval    time.Duration `env:"PUBLISH_INTERVAL" envDefault:"1s"`
	PublishRounds      int           `env:"PUBLISH_ROUNDS" envDefault:"1"`
	PublishWorkers     int           `env:"PUBLISH_WORKERS" envDefault:"1"`
	CloseBetweenRounds bool          `env:"CLOSE_BETWEEN_ROUNDS" envDefault:"false"`
	TracingEnabled     bool          `env:"TRACING_ENABLED" envDefault:"true"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	CPUProfile         string        `env:"CPU_PROFILE"`
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to parse environment variables: %v", err)
	}

	if cfg.CPUProfile != "" {
		cpuProfile, err := os.Create(cfg.CPUProfile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer cpuProfile.Close()
		if err := pprof.StartCPUProfile(cpuProfile); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	metricsRegistry := metrics.NewRegistry()
	metricsRegistry.SetSystemInfo("e2e", time.Now().Format(time.RFC3339))

	metricsServer := metrics.NewServer(cfg.Metrics, metricsRegistry, logger)
	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		if err := metricsServer.Run(metricsCtx); err != nil {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	select {
	case <-metricsServer.Ready():
		logger.Info("metrics server started",
			zap.String("endpoint", fmt.Sprintf("http://%s/metrics", metricsServer.Addr())),
			zap.String("health", fmt.Sprintf("http://%s/health", metricsServer.Addr())),
		)
	case <-metricsDone:
	}

	basePublisher, err := publisher.NewPublisher(cfg.Publisher, logger)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}
	var p pub.Publisher = publisher.NewMetricsPublisher(basePublisher, metricsRegistry)

	if cfg.TracingEnabled {
		tracer, tracingCleanup, err := tracing.NewTracer(cfg.Tracing)
		if err != nil {
			log.Fatalf("failed to initialize tracing: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracingCleanup(shutdownCtx); err != nil {
				logger.Error("failed to cleanup tracing", zap.Error(err))
			}
		}()

		logger.Info("tracing initialized",
			zap.String("service", cfg.Tracing.ServiceName),
			zap.String("endpoint", cfg.Tracing.Endpoint),
			zap.Float64("sample_rate", cfg.Tracing.SampleRate),
		)

		p = publisher.NewTracedPublisher(p, tracer)
	}

	logger.Info("publishing",
		zap.String("url", basePublisher.URL()),
		zap.Int("rounds", cfg.PublishRounds),
		zap.Int("workers", cfg.PublishWorkers),
	)

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
	}()

	now := time.Now()
	var published int
	for round := 0; round < cfg.PublishRounds; round++ {
		n, err := publishRound(ctx, logger, p, cfg)
		published += n
		if err != nil {
			logger.Error("publish round failed", zap.Int("round", round), zap.Error(err))
			break
		}

		if cfg.CloseBetweenRounds {
			if err := p.Close(ctx); err != nil {
				logger.Error("failed to close publisher", zap.Error(err))
			}
		}

		if round+1 < cfg.PublishRounds {
			select {
			case <-ctx.Done():
			case <-time.After(cfg.PublishInterval):
			}
		}
		if ctx.Err() != nil {
			break
		}
	}
	cancel()

	if err := p.Close(context.Background()); err != nil {
		logger.Error("failed to close publisher", zap.Error(err))
	}

	stopMetrics()
	<-metricsDone

	logger.Info("e2e complete",
		zap.Int("published", published),
		zap.Duration("elapsed", time.Since(now)),
	)
}

// publishRound has every worker publish one batch through the shared publisher.
func publishRound(ctx context.Context, logger *zap.Logger, p pub.Publisher, cfg Config) (int, error) {
	counts := make([]int, max(cfg.PublishWorkers, 1))

	g, gctx := errgroup.WithContext(ctx)
	for w := range counts {
		g.Go(func() error {
			msgs := orders(cfg.EventCount)
			res, err := p.Publish(gctx, msgs...)
			if err != nil {
				return fmt.Errorf("worker %d failed to publish messages: %w", w, err)
			}
			counts[w] = len(res.MessageIDs)
			logger.Debug("worker published batch", zap.Int("worker", w), zap.Int("count", counts[w]))
			return nil
		})
	}

	err := g.Wait()

	var total int
	for _, c := range counts {
		total += c
	}

	return total, err
}

func orders(count int) []pub.Message {
	customers := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
	products := []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "10"}
	msgs := make([]pub.Message, 0, count)

	for i := 0; i < count; i++ {
		pl := map[string]any{
			"order_id":    fmt.Sprintf("ORD-%04d", i+1),
			"customer_id": customers[rand.Intn(len(customers))],
			"product_id":  products[rand.Intn(len(products))],
			"amount":      10.0 + rand.Float64()*990.0,
			"timestamp":   time.Now().Format(time.RFC3339),
		}
		e := pub.Event{Type: "order.created", Payload: pl}

		msgs = append(msgs, e.Message(map[string]string{"event_id": uuid.NewString()}))
	}

	return msgs
}

func newLogger(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		log.Printf("invalid log level %q, defaulting to info: %v", level, err)
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	return config.Build(zap.AddCaller())
}
