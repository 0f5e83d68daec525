package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"

	"zipstream/pkg/config"
	"zipstream/pkg/logger"
)

const readHeaderTimeout = 10 * time.Second

// Server is the public HTTP endpoint.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *logger.Logger
}

func New(cfg *config.Config, a Archiver) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger.WithField("component", "http-server"),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           NewRouter(cfg, a),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// NewRouter maps the public routes. Anything else is a 404.
func NewRouter(cfg *config.Config, a Archiver) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /{$}", newIndexHandler(cfg.Server.IndexPage))
	mux.Handle("GET /archive/{id}/{$}", newArchiveHandler(cfg, a))
	return mux
}

// Listen opens the configured TCP address.
func (s *Server) Listen() (net.Listener, error) {
	lis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.logger.Error("failed to create listener", "address", s.httpServer.Addr, "error", err)
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return lis, nil
}

// Serve accepts connections on lis until Shutdown or Close. The connection
// ceiling from the config is applied here.
func (s *Server) Serve(lis net.Listener) error {
	if limit := s.cfg.Server.MaxConnections; limit > 0 {
		lis = netutil.LimitListener(lis, limit)
	}

	s.logger.Info("serving archives",
		"address", lis.Addr().String(),
		"storageRoot", s.cfg.Archive.StorageRoot,
		"chunkSize", s.cfg.Archive.ChunkSize,
		"delay", s.cfg.Archive.Delay,
		"maxConnections", s.cfg.Server.MaxConnections)

	err := s.httpServer.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight downloads.
// When ctx expires first the remaining connections are closed, which
// cancels their requests and kills their archive processes.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if err == nil {
		s.logger.Info("http server stopped gracefully")
		return nil
	}

	s.logger.Warn("shutdown timeout exceeded, closing active downloads", "error", err)
	if cerr := s.httpServer.Close(); cerr != nil {
		return fmt.Errorf("failed to close server: %w", cerr)
	}
	return err
}
