// Package web hosts the bridge behind an HTML form and a small JSON API.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"textbridge/internal/bridge"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
	maxRequestBytes   = 1 << 20
)

//go:embed templates/*.html
var templatesFS embed.FS

type Options struct {
	Sender   bridge.Sender
	Endpoint string
	// Gatherer backs GET /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
	Log      *slog.Logger
}

type handler struct {
	sender   bridge.Sender
	endpoint string
	page     *template.Template
	links    *linkifier
	log      *slog.Logger
}

func NewRouter(opts Options) (http.Handler, error) {
	if opts.Sender == nil {
		return nil, errors.New("sender is nil")
	}

	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	page, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	links, err := newLinkifier()
	if err != nil {
		return nil, fmt.Errorf("create linkifier: %w", err)
	}

	h := &handler{
		sender:   opts.Sender,
		endpoint: opts.Endpoint,
		page:     page,
		links:    links,
		log:      log,
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(log),
		middleware.Recoverer,
	)

	r.Get("/", h.index)
	r.Post("/submit", h.submit)
	r.Post("/api/send", h.apiSend)
	r.Get("/health", h.health)

	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return r, nil
}

// Run serves handler on addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.InfoContext(ctx, "HTTP server is started",
		"addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.InfoContext(ctx, "HTTP server is stopped",
		"addr", addr)

	return nil
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.DebugContext(r.Context(), "HTTP request is served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"requestID", middleware.GetReqID(r.Context()),
				"durationMs", time.Since(start).Milliseconds())
		})
	}
}
