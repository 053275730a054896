package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-backend/internal/backend"
	"github.com/sirosfoundation/go-chat-backend/internal/metrics"
	"github.com/sirosfoundation/go-chat-backend/pkg/config"
)

// DefaultShutdownTimeout bounds graceful shutdown
const DefaultShutdownTimeout = 30 * time.Second

// BindError reports that the listener could not be opened. It is fatal
// and not retried.
type BindError struct {
	Address string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Address, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// DatabaseError reports that the database connection could not be
// established after the listener was up. It is fatal.
type DatabaseError struct {
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database connection failed: %v", e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// Server drives the process lifecycle: it binds the listener, serves the
// App, connects the database in the background and shuts down on a signal
// or on any fatal condition.
type Server struct {
	cfg       *config.Config
	app       *App
	connector backend.Connector
	logger    *zap.Logger

	shutdownTimeout time.Duration

	listener   net.Listener
	httpServer *http.Server
	listening  chan struct{}
}

// Option customizes a Server
type Option func(*Server)

// WithConnector overrides the database connector, which defaults to the
// App's store
func WithConnector(c backend.Connector) Option {
	return func(s *Server) { s.connector = c }
}

// WithShutdownTimeout overrides DefaultShutdownTimeout
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) { s.shutdownTimeout = d }
}

// New creates a server for app
func New(cfg *config.Config, app *App, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:             cfg,
		app:             app,
		connector:       app.store,
		logger:          logger,
		shutdownTimeout: DefaultShutdownTimeout,
		listening:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state
func (s *Server) State() State {
	return s.app.State()
}

// Listening is closed once the listener is bound
func (s *Server) Listening() <-chan struct{} {
	return s.listening
}

// Addr returns the bound address, or nil before binding
func (s *Server) Addr() net.Addr {
	select {
	case <-s.listening:
		return s.listener.Addr()
	default:
		return nil
	}
}

func (s *Server) setState(st State) {
	s.app.state.Store(st)
	s.logger.Debug("Lifecycle state changed", zap.Stringer("state", st))
}

// Run validates configuration, binds the listener, then connects the
// database while already serving. It returns nil when ctx is cancelled and
// a non-nil error for any fatal condition: invalid configuration, bind
// failure, database failure or an unexpected serve error.
func (s *Server) Run(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		s.setState(Terminated)
		return err
	}

	s.setState(Binding)
	ln, err := s.bindListener()
	if err != nil {
		s.setState(Terminated)
		return err
	}
	s.listener = ln
	s.setState(Listening)
	close(s.listening)

	s.logger.Info("Listening",
		zap.String("address", ln.Addr().String()),
		zap.String("environment", s.cfg.Server.Environment),
		zap.String("storage", string(s.app.store.Type())),
		zap.String("mongodb_uri", s.cfg.Storage.MongoDB.RedactedURI()),
		zap.Strings("rules", s.app.Rules()),
	)

	s.httpServer = &http.Server{
		Handler:           s.app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	s.app.Start()

	s.setState(DatabaseConnecting)
	dbErr := make(chan error, 1)
	go func() {
		dbErr <- s.connectDatabase(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Shutdown signal received")
			s.awaitConnect(dbErr)
			s.shutdown()
			return nil

		case err := <-serveErr:
			s.logger.Error("HTTP server failed", zap.Error(err))
			s.shutdown()
			return fmt.Errorf("http server: %w", err)

		case err := <-dbErr:
			dbErr = nil
			if err == nil {
				s.setState(DatabaseReady)
				s.logger.Info("Database connected")
				continue
			}
			if ctx.Err() != nil {
				s.logger.Info("Shutdown signal received while connecting to database")
				s.shutdown()
				return nil
			}
			s.setState(DatabaseFailed)
			s.logger.Error("Database connection failed", zap.Error(err))
			s.shutdown()
			return &DatabaseError{Err: err}
		}
	}
}

// bindListener opens the TCP listener. Port 0 picks a free port.
func (s *Server) bindListener() (net.Listener, error) {
	addr := s.cfg.Server.Address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.logger.Error("Failed to bind listener", zap.String("address", addr), zap.Error(err))
		return nil, &BindError{Address: addr, Err: err}
	}
	return ln, nil
}

// connectDatabase runs the connector once and records the outcome
func (s *Server) connectDatabase(ctx context.Context) error {
	start := time.Now()
	err := s.connector.Connect(ctx)
	metrics.DBConnectDuration.Observe(time.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.DBConnectTotal.WithLabelValues(status).Inc()
	return err
}

// awaitConnect waits for an in-flight connectDatabase, which sees the same
// cancelled context, so the store is never closed underneath it. pending is
// nil once the outcome has been received.
func (s *Server) awaitConnect(pending <-chan error) {
	if pending == nil {
		return
	}
	select {
	case err := <-pending:
		if err != nil {
			s.logger.Debug("Database connect abandoned", zap.Error(err))
		}
	case <-time.After(s.shutdownTimeout):
		s.logger.Warn("Database connect still running at shutdown")
	}
}

func (s *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	// websocket connections are hijacked and invisible to Shutdown
	s.app.hub.Close()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("Graceful shutdown incomplete", zap.Error(err))
	}
	if err := s.app.Close(); err != nil {
		s.logger.Warn("Failed to close application", zap.Error(err))
	}

	s.setState(Terminated)
	s.logger.Info("Server stopped")
}
