package remail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/net/netutil"

	"github.com/vieiralucas/remail/dns"
)

// ServerConfig contains configuration options for the SMTP server.
type ServerConfig struct {
	// Hostname appears in the 220 greeting. Required.
	Hostname string

	// Addr is the address to listen on. Default: ":2525".
	Addr string

	// MaxLineLength bounds incoming lines; zero selects the lineio default.
	MaxLineLength int

	// MaxConnections caps concurrent connections; zero means unlimited.
	MaxConnections int

	// ReadTimeout is the per-line read deadline. Default: 5 minutes.
	ReadTimeout time.Duration

	// ReverseDNS enables a PTR lookup of each peer for trace logging.
	ReverseDNS bool

	// Logger receives server logs; nil selects slog.Default.
	Logger *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with development defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:        ":2525",
		ReadTimeout: 5 * time.Minute,
	}
}

// Server accepts SMTP connections and runs one Session per connection.
// Sessions share nothing; the only shared collaborator is the Persistor,
// which must provide its own concurrency safety.
type Server struct {
	config    ServerConfig
	persistor Persistor
	listener  net.Listener

	// connections tracks in-flight sessions for graceful drain.
	connMu      sync.Mutex
	connections map[net.Conn]struct{}

	shutdownWg sync.WaitGroup
	closed     atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewServer creates an SMTP server delivering completed messages to
// persistor.
func NewServer(config ServerConfig, persistor Persistor) (*Server, error) {
	if config.Hostname == "" {
		return nil, errors.New("smtp: hostname is required")
	}
	if persistor == nil {
		return nil, errors.New("smtp: persistor is required")
	}
	if config.Addr == "" {
		config.Addr = ":2525"
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 5 * time.Minute
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		config:      config,
		persistor:   persistor,
		connections: make(map[net.Conn]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// ListenAndServe starts the server on the configured address.
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("smtp: failed to listen: %w", err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until Shutdown or Close.
func (s *Server) Serve(listener net.Listener) error {
	if s.config.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, s.config.MaxConnections)
	}
	s.listener = listener

	s.config.Logger.Info("SMTP server started",
		slog.String("addr", listener.Addr().String()),
		slog.String("hostname", s.config.Hostname),
	)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return ErrServerClosed
			}
			s.config.Logger.Error("accept error", slog.Any("error", err))
			continue
		}

		s.shutdownWg.Add(1)
		go s.handleConnection(conn)
	}
}

// Addr returns the listener address, or nil before Serve is called.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting new connections and waits for in-flight sessions
// to complete. When ctx expires, remaining connections receive a 421 and are
// force-closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closed.Store(true)
	if s.listener != nil {
		_ = s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.shutdownWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.forceClose()
		return ctx.Err()
	}
}

// Close immediately closes the server and every connection.
func (s *Server) Close() error {
	s.closed.Store(true)
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.forceClose()
	return nil
}

// forceClose sends a best-effort 421 to remaining peers and closes them.
// Per RFC 5321 a server should announce unavailability before dropping.
func (s *Server) forceClose() {
	s.cancel()

	s.connMu.Lock()
	defer s.connMu.Unlock()
	for conn := range s.connections {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		line := fmt.Sprintf("421 %s Service shutting down\r\n", s.config.Hostname)
		_, _ = conn.Write([]byte(line))
		_ = conn.Close()
	}
}

// handleConnection runs one session and maintains the connection registry.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.shutdownWg.Done()

	id := ulid.Make().String()

	s.connMu.Lock()
	s.connections[conn] = struct{}{}
	s.connMu.Unlock()

	defer func() {
		s.connMu.Lock()
		delete(s.connections, conn)
		s.connMu.Unlock()
		_ = conn.Close()
	}()

	logger := s.config.Logger.With(
		slog.String("conn_id", id),
		slog.String("remote", conn.RemoteAddr().String()),
	)
	logger.Info("client connected")

	if s.config.ReverseDNS {
		if name, err := dns.ReverseLookup(conn.RemoteAddr()); err == nil {
			logger.Info("reverse dns", slog.String("ptr", name))
		} else {
			logger.Debug("reverse dns failed", slog.Any("error", err))
		}
	}

	session := NewSession(conn, s.persistor, SessionConfig{
		Hostname:      s.config.Hostname,
		ID:            id,
		MaxLineLength: s.config.MaxLineLength,
		ReadTimeout:   s.config.ReadTimeout,
		Logger:        s.config.Logger,
	})

	if err := session.Serve(s.ctx); err != nil {
		logger.Warn("session ended with error", slog.Any("error", err))
	}

	logger.Info("client disconnected")
}
