// Command farmcore-server runs the record-management HTTP API.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"farmcore/internal/backup"
	"farmcore/internal/blob"
	"farmcore/internal/core"
	"farmcore/internal/httpapi"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx := context.Background()

	store, err := core.OpenDocumentStore()
	if err != nil {
		log.Fatalf("open document store: %v", err)
	}
	defer func() { _ = store.Close() }()

	metrics, err := core.NewPrometheusMetricsRecorder(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("register metrics: %v", err)
	}
	service := core.NewService(store, core.WithMetrics(metrics))

	blobStore, err := blob.Open(ctx)
	if err != nil {
		log.Fatalf("open blob store: %v", err)
	}

	api := httpapi.NewHandler(service)
	api.Backups = backup.NewRunner(service, blobStore)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api)

	origins := strings.Split(env("FARMCORE_ALLOWED_ORIGINS", "*"), ",")
	addr := env("FARMCORE_HTTP_ADDR", ":8080")
	log.Printf("farmcore listening on %s (storage=%s, blob=%s)", addr, env("FARMCORE_STORAGE_DRIVER", "sqlite"), blobStore.Driver())
	if err := http.ListenAndServe(addr, httpapi.CORSMiddleware(mux, origins)); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
