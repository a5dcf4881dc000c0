package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/email"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const serviceName = "email"

var version = "dev"

func main() {
	v := viper.New()
	v.SetDefault("port", "8083")
	v.SetDefault("log_level", "info")
	v.SetDefault("otel_exporter_otlp_endpoint", "localhost:4317")
	v.AutomaticEnv()

	logger := telemetry.NewLogger(os.Stdout, serviceName, v.GetString("log_level"))

	shutdownTracer, err := telemetry.InitTracerProvider(context.Background(), v.GetString("otel_exporter_otlp_endpoint"), serviceName, version)
	if err != nil {
		logger.Error("failed to init tracer provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	handler := email.NewHandler(logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(telemetry.RouteTagger)
	r.Post("/send", handler.HandleSend)
	r.Get("/recent", handler.HandleRecent)

	port := v.GetString("port")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      otelhttp.NewHandler(r, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting email service", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
