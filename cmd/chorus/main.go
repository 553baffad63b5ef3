// Command chorus runs the aggregation gateway: it loads the workflow
// configuration, builds the model map and recursive plan, and serves
// every HTTP Adapter endpoint until the process receives a shutdown signal.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/chorusdev/chorus/pkg/config"
	"github.com/chorusdev/chorus/pkg/httpapi"
	"github.com/chorusdev/chorus/pkg/model"
	"github.com/chorusdev/chorus/pkg/plan"
	"github.com/chorusdev/chorus/pkg/telemetry"
	"github.com/chorusdev/chorus/pkg/workflow"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	p, err := plan.Parse([]byte(cfg.WorkflowIntegration.JSON))
	if err != nil {
		return err
	}
	if err := cfg.ValidateModelRefs(p.ModelRefs()); err != nil {
		return err
	}

	models := model.NewMap(cfg.Models)

	settings, shutdown, err := setupTelemetry(context.Background())
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	engine := workflow.NewWithTelemetry(models, cfg, settings)

	srv := httpapi.New(cfg, models, p, engine)
	router := srv.Router()

	port := cfg.Server.Port
	if port == 0 {
		port = 11435
	}
	addr := cfg.Server.Host + ":" + strconv.Itoa(port)
	httpServer := &http.Server{Addr: addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("chorus listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Print("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

// setupTelemetry wires an OTLP/HTTP exporter when OTEL_EXPORTER_OTLP_ENDPOINT
// is set; otherwise telemetry stays disabled and the engine runs with a
// no-op tracer. The returned shutdown func flushes and closes the exporter,
// and is a no-op when telemetry was never enabled.
func setupTelemetry(ctx context.Context) (*telemetry.Settings, func(context.Context) error, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return telemetry.DefaultSettings(), func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	settings := telemetry.DefaultSettings().WithEnabled(true).WithTracer(tp.Tracer(telemetry.TracerName))
	return settings, tp.Shutdown, nil
}

