package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"adsb-xgps/internal/aircraft"
	"adsb-xgps/internal/metrics"
)

//go:embed assets/*
var embeddedAssets embed.FS

// DefaultPushInterval matches the dashboard refresh rate.
const DefaultPushInterval = time.Second

type Deps struct {
	Table   *aircraft.Table
	Tracked *aircraft.Tracked
	Status  *Status
	Logs    *LogBuffer
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// PushInterval is how often /ws clients receive the aircraft document.
	PushInterval time.Duration

	// Now is used for ages in /data; nil means time.Now.
	Now func() time.Time
}

// Server is the HTTP control surface: dashboard, aircraft JSON, tracked
// callsign selection, status, logs, metrics and a websocket feed.
type Server struct {
	deps     Deps
	log      *slog.Logger
	router   chi.Router
	assets   fs.FS
	upgrader websocket.Upgrader

	done      chan struct{}
	closeOnce sync.Once
}

func NewServer(d Deps) *Server {
	if d.Tracked == nil {
		d.Tracked = aircraft.NewTracked("")
	}
	if d.Status == nil {
		d.Status = NewStatus()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.PushInterval <= 0 {
		d.PushInterval = DefaultPushInterval
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	s := &Server{
		deps: d,
		log:  d.Logger.With("component", "web"),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 5 * time.Second,
			// The dashboard is served to a trusted local network.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}
	if sub, err := fs.Sub(embeddedAssets, "assets"); err == nil {
		s.assets = sub
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleIndex)
	r.Get("/data", s.handleData)
	r.Post("/track", s.handleTrack)
	r.Get("/ws", s.handleWS)
	r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/about", s.handleAbout)
		if s.deps.Logs != nil {
			r.Method(http.MethodGet, "/logs", s.deps.Logs.Handler())
		}
	})

	if s.assets != nil {
		fileServer := http.StripPrefix("/assets/", http.FileServer(http.FS(s.assets)))
		r.Get("/assets/*", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			fileServer.ServeHTTP(w, r)
		})
	}
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close ends open websocket streams. It does not stop the listener; cancel
// the context passed to Serve for that.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"remote", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	if s.assets == nil {
		http.Error(w, "ui unavailable", http.StatusInternalServerError)
		return
	}
	b, err := fs.ReadFile(s.assets, "index.html")
	if err != nil {
		http.Error(w, "ui unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Status.Snapshot(s.deps.Now().UTC()))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

// Serve listens on listenAddr and serves s until ctx is cancelled.
func Serve(ctx context.Context, listenAddr string, s *Server) error {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, s)
}

func ServeListener(ctx context.Context, ln net.Listener, s *Server) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	s.log.Info("web listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
