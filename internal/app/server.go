package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/klabast/wb-services/signup-calendar/internal/ledger"
	"github.com/klabast/wb-services/signup-calendar/internal/storage"
)

const maxBodyBytes = 64 << 10

// Deps are the collaborators a Server is built from. Ledger and Store are
// required; the rest fall back to open or no-op behaviour.
type Deps struct {
	Config  Config
	Ledger  *ledger.Ledger
	Store   storage.Store
	Auth    *Authenticator
	Limiter *RateLimiter
	Logger  *zap.Logger
	Clock   func() time.Time
	// ReadThrough reloads the ledger from the backend before every read,
	// for backends shared with other processes.
	ReadThrough bool
}

// Server exposes the ledger over HTTP.
type Server struct {
	cfg         Config
	ledger      *ledger.Ledger
	store       storage.Store
	auth        *Authenticator
	limiter     *RateLimiter
	log         *zap.Logger
	clock       func() time.Time
	readThrough bool
	handler     http.Handler
}

// NewServer wires the routes and middleware.
func NewServer(d Deps) (*Server, error) {
	if d.Ledger == nil || d.Store == nil {
		return nil, errors.New("app: ledger and store are required")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Config.ArtifactPrefix == "" {
		d.Config.ArtifactPrefix = DefaultConfig().ArtifactPrefix
	}
	s := &Server{
		cfg:         d.Config,
		ledger:      d.Ledger,
		store:       d.Store,
		auth:        d.Auth,
		limiter:     d.Limiter,
		log:         d.Logger,
		clock:       d.Clock,
		readThrough: d.ReadThrough,
	}
	s.handler = RequestID(s.accessLog(s.recoverPanics(s.cors(s.routes()))))
	return s, nil
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.HandleFunc("GET /api/slots", s.HandleSlots)
	mux.HandleFunc("GET /api/subscribe.ics", s.HandleSubscribe)

	mux.HandleFunc("GET /api/calendar", s.Require(s.HandleCalendar))
	mux.HandleFunc("GET /api/calendar/public", s.HandlePublicCalendar)
	mux.HandleFunc("POST /api/attendee", s.Limit(s.HandleAddAttendee))
	mux.HandleFunc("GET /api/attendees/{dateKey}", s.Require(s.HandleAttendees))

	mux.HandleFunc("GET /api/download/backend", s.Require(s.downloadJSON(ledger.Full)))
	mux.HandleFunc("GET /api/download/public", s.downloadJSON(ledger.Public))
	mux.HandleFunc("GET /api/csv/backend", s.Require(s.downloadCSV(ledger.Full)))
	mux.HandleFunc("GET /api/csv/public", s.downloadCSV(ledger.Public))
	mux.HandleFunc("POST /api/csv/write/backend", s.Require(s.writeCSV(ledger.Full)))
	mux.HandleFunc("POST /api/csv/write/public", s.Require(s.writeCSV(ledger.Public)))
	mux.HandleFunc("GET /api/csv/files", s.Require(s.HandleCSVFiles))
	mux.HandleFunc("GET /api/csv/download/{filename}", s.Require(s.HandleCSVDownload))

	mux.HandleFunc("/", s.HandleNotFound)
	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening",
			zap.Int("port", s.cfg.Port),
			zap.String("mode", s.cfg.Mode()),
			zap.String("storage", string(s.cfg.Storage.Type)),
			zap.Bool("remote_configured", s.cfg.RemoteConfigured()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
