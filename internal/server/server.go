// Package server accepts calculator connections and hands each one to the
// worker pool as a task.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/libp2p/go-reuseport"
	"golang.org/x/sync/errgroup"

	"github.com/jzx17/calcpool/internal/calc"
	"github.com/jzx17/calcpool/internal/config"
	"github.com/jzx17/calcpool/internal/logger"
	"github.com/jzx17/calcpool/pkg/types"
	"github.com/jzx17/calcpool/pkg/worker"
)

const (
	maxAcceptDelay        = time.Second
	metricsShutdownWindow = 5 * time.Second
)

// Submitter is the part of the worker pool the server needs
type Submitter interface {
	Submit(task types.Task) error
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics serves handler on a separate HTTP listener while Run is active
func WithMetrics(cfg config.Metrics, handler http.Handler) Option {
	return func(s *Server) {
		if !cfg.Enabled || handler == nil {
			return
		}

		mux := http.NewServeMux()
		mux.Handle(cfg.Path, handler)

		s.metricsAddress = cfg.Address
		s.metrics = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
}

// Server is the calculator listener
type Server struct {
	cfg    config.Server
	pool   Submitter
	logger *slog.Logger

	mu              sync.Mutex
	listener        net.Listener
	address         string
	metrics         *http.Server
	metricsAddress  string
	metricsListener net.Listener
}

// New creates a server submitting connections to pool
func New(cfg config.Server, pool Submitter, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		pool:   pool,
		logger: logger.Discard(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Listen binds the configured listener and, when enabled, the metrics endpoint
func (s *Server) Listen() error {
	instance := s.cfg.Listen

	var (
		address string
		ln      net.Listener
		err     error
	)

	if instance.Type == "unix" {
		address = instance.Address

		if err = removeStaleSocket(address); err != nil {
			return err
		}
	} else {
		address = net.JoinHostPort(instance.Address, strconv.Itoa(instance.Port))
	}

	if instance.Type == "tcp" && instance.ReusePort {
		ln, err = reuseport.Listen("tcp", address)
	} else {
		ln, err = net.Listen(instance.Type, address)
	}
	if err != nil {
		return fmt.Errorf("could not start server: %w", err)
	}

	if instance.Type == "unix" && instance.Mode != "" {
		s.chmodSocket(address, instance.Mode)
	}

	s.mu.Lock()
	s.listener = ln
	s.address = ln.Addr().String()
	s.mu.Unlock()

	s.logger.Info("Server is listening",
		slog.String("type", instance.Type),
		slog.String("address", s.address),
		slog.Bool("reuse_port", instance.ReusePort))

	if s.metrics != nil {
		metricsListener, err := net.Listen("tcp", s.metricsAddress)
		if err != nil {
			_ = ln.Close()

			return fmt.Errorf("could not start metrics endpoint: %w", err)
		}

		s.mu.Lock()
		s.metricsListener = metricsListener
		s.mu.Unlock()

		s.logger.Info("Metrics endpoint is listening", slog.String("address", metricsListener.Addr().String()))
	}

	return nil
}

// removeStaleSocket deletes a socket file left behind by a previous process.
// A socket that still accepts connections is reported as in use.
func removeStaleSocket(address string) error {
	fileInfo, err := os.Stat(address)
	if err != nil || fileInfo.Mode()&os.ModeSocket == 0 {
		return nil
	}

	conn, err := net.DialTimeout("unix", address, time.Second)
	if err == nil {
		_ = conn.Close()

		return fmt.Errorf("address %s is already in use", address)
	}

	return os.Remove(address)
}

func (s *Server) chmodSocket(address, mode string) {
	perm, err := strconv.ParseUint(mode, 8, 32)
	if err != nil {
		s.logger.Error("Could not parse socket mode", slog.String("error", err.Error()))

		return
	}

	if err = os.Chmod(address, os.FileMode(perm)); err != nil {
		s.logger.Error("Could not set permissions on socket", slog.String("error", err.Error()))
	}
}

// Addr returns the bound listener address, or nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// MetricsAddr returns the bound metrics address, or nil when metrics are off
func (s *Server) MetricsAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.metricsListener == nil {
		return nil
	}

	return s.metricsListener.Addr()
}

// Serve accepts connections until the listener is closed or ctx is done.
// Every connection is submitted to the pool as its own task.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	if ln == nil {
		return errors.New("server is not listening")
	}

	stop := context.AfterFunc(ctx, s.Stop)
	defer stop()

	var delay time.Duration

	for {
		conn, err := ln.Accept()
		if errors.Is(err, net.ErrClosed) {
			s.logger.Info("Server is shutting down", slog.String("address", s.address))

			return nil
		}

		if err != nil {
			delay = min(max(2*delay, 5*time.Millisecond), maxAcceptDelay)

			s.logger.Error("Error accepting connection",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", delay))

			time.Sleep(delay)

			continue
		}

		delay = 0

		s.dispatch(conn)
	}
}

func (s *Server) dispatch(conn net.Conn) {
	task := worker.NewBasicTaskWithPrefix("conn", func(ctx context.Context) error {
		return s.handleConnection(ctx, conn)
	})

	err := s.pool.Submit(task)
	if err == nil {
		return
	}

	s.logger.Warn("Connection rejected",
		slog.String("client", conn.RemoteAddr().String()),
		slog.String("task_id", task.ID()),
		slog.String("error", err.Error()))

	if s.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}

	_ = calc.WriteUnavailable(conn, err)
	_ = conn.Close()
}

func (s *Server) handleConnection(_ context.Context, conn net.Conn) error {
	clientAddr := conn.RemoteAddr().String()

	s.logger.Debug("New connection established", slog.String("client", clientAddr))

	defer func() {
		_ = conn.Close()

		s.logger.Debug("Connection closed", slog.String("client", clientAddr))
	}()

	if s.cfg.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return err
		}
	}

	req, err := calc.ReadRequest(bufio.NewReader(conn), s.cfg.MaxBodyBytes)
	if errors.Is(err, io.EOF) {
		// Client closed connection
		return nil
	}

	if err != nil {
		s.logger.Error("Error reading request", slog.String("client", clientAddr), slog.String("error", err.Error()))

		if writeErr := s.respond(conn, 0, err); writeErr != nil {
			return errors.Join(err, writeErr)
		}

		return fmt.Errorf("could not read request from %s: %w", clientAddr, err)
	}

	s.logger.Debug("Received request", slog.String("client", clientAddr), slog.String("request", req.String()))

	result, evalErr := calc.Evaluate(req)
	if err = s.respond(conn, result, evalErr); err != nil {
		return err
	}

	if evalErr != nil {
		s.logger.Debug("Request rejected", slog.String("client", clientAddr), slog.String("error", evalErr.Error()))
	} else {
		s.logger.Debug("Response sent", slog.String("client", clientAddr), slog.String("result", calc.FormatResult(result)))
	}

	return nil
}

func (s *Server) respond(conn net.Conn, result float64, evalErr error) error {
	if s.cfg.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
			return err
		}
	}

	if err := calc.WriteResponse(conn, result, evalErr); err != nil {
		return fmt.Errorf("could not write response: %w", err)
	}

	return nil
}

// Stop closes the listener; Serve returns once the accept loop notices.
// Connections already submitted are still answered by the pool.
func (s *Server) Stop() {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
}

// Run serves connections and the metrics endpoint until ctx is done or
// either of them fails.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()

		return s.Serve(ctx)
	})

	s.mu.Lock()
	metricsListener := s.metricsListener
	s.mu.Unlock()

	if s.metrics != nil && metricsListener != nil {
		g.Go(func() error {
			err := s.metrics.Serve(metricsListener)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}

			return fmt.Errorf("metrics endpoint: %w", err)
		})

		g.Go(func() error {
			<-ctx.Done()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), metricsShutdownWindow)
			defer shutdownCancel()

			return s.metrics.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
