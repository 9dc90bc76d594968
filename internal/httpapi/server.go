package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/tagvault/internal/logger"
)

type ServerConfig struct {
	Addr string
	// MaxConnections caps concurrently accepted connections. Zero means no cap.
	MaxConnections int
	ShutdownGrace  time.Duration
}

type Server struct {
	cfg  ServerConfig
	http *http.Server
	log  *logger.Logger
}

func NewServer(cfg ServerConfig, handler http.Handler, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	return &Server{
		cfg: cfg,
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Run listens on the configured address and serves until ctx is cancelled,
// then drains in-flight requests for up to ShutdownGrace.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("http server listening", "addr", ln.Addr().String(), "max_connections", s.cfg.MaxConnections)
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
		defer cancel()
		s.log.Info("http server shutting down", "grace", s.cfg.ShutdownGrace.String())
		return s.http.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
