package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tokenizer-service/cards"
	"tokenizer-service/config"
	"tokenizer-service/handlers"
	"tokenizer-service/logging"
	"tokenizer-service/monitoring"
	"tokenizer-service/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tokenization HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), loadConfig())
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config) error {
	logOpts := logging.Options{ServiceName: cfg.ServiceName, Debug: cfg.Debug}
	if cfg.TelemetryEnabled {
		logOpts.OTLPEndpoint = cfg.OTELEndpoint
	}
	if err := logging.InitLogger(logOpts); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logging.Sync()
	defer func() {
		if err := logging.Shutdown(context.Background()); err != nil {
			logging.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()

	tracer := otel.Tracer(cfg.ServiceName)
	if cfg.TelemetryEnabled {
		tp, t, err := monitoring.InitTracer(cfg.ServiceName, cfg.OTELEndpoint)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logging.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
		tracer = t

		mp, _, err := monitoring.InitMeter(cfg.ServiceName, cfg.OTELEndpoint, cfg.MetricsExporter)
		if err != nil {
			return fmt.Errorf("failed to initialize meter: %w", err)
		}
		defer func() {
			if err := mp.Shutdown(context.Background()); err != nil {
				logging.Error("Error shutting down meter provider", zap.Error(err))
			}
		}()
	}

	tokenizeService := service.NewTokenizeService(tracer, service.Options{
		BaseURL:           cfg.MercadoPagoURL,
		Timeout:           cfg.TokenizeTimeout,
		TransactionAmount: cfg.SampleTransactionAmount,
		PayerEmail:        cfg.SamplePayerEmail,
	})
	tokenizeHandler := handlers.NewTokenizeHandler(tokenizeService, cards.DefaultCatalog())

	r := newRouter(cfg, tokenizeHandler)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.TokenizeTimeout + 15*time.Second, // both API tiers may run to their timeout
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info("Tokenizer service starting",
			zap.String("port", cfg.Port),
			zap.String("api_url", cfg.MercadoPagoURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logging.Info("Tokenizer service shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newRouter(cfg *config.Config, h *handlers.TokenizeHandler) *gin.Engine {
	switch cfg.GinMode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.GinMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(httpMetricsMiddleware())

	h.Register(r)
	if metricsHandler := monitoring.MetricsHandler(); metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	return r
}

// httpMetricsMiddleware records the latency of every routed API call.
// Unmatched paths share one route label to keep cardinality bounded.
func httpMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		monitoring.HTTPServerDuration.Record(c.Request.Context(),
			float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(
				attribute.String("route", route),
				attribute.String("method", c.Request.Method),
				attribute.Int("status", c.Writer.Status()),
			),
		)
	}
}
