package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/lox/shellgame/internal/game"
	"github.com/lox/shellgame/internal/gameid"
)

const shutdownTimeout = 5 * time.Second

// EngineFactory builds the engine for a newly connected client. opts carry
// per-connection settings such as a client-supplied game ID and must be
// applied last.
type EngineFactory func(opts ...game.Option) *game.Engine

// Server represents the WebSocket server. Every connection plays its own
// game; only the score store behind the factory is shared.
type Server struct {
	addr        string
	upgrader    websocket.Upgrader
	newEngine   EngineFactory
	connections map[*Connection]bool
	register    chan *Connection
	unregister  chan *Connection
	logger      *log.Logger
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	runOnce     sync.Once
	played      int
}

// NewServer creates a new WebSocket server
func NewServer(addr string, logger *log.Logger, newEngine EngineFactory) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		newEngine:   newEngine,
		connections: make(map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logger.WithPrefix("server"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Handler returns the HTTP handler serving /ws, /health and /stats. It
// starts the connection loop on first use.
func (s *Server) Handler() http.Handler {
	s.runOnce.Do(func() { go s.run() })

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

// Serve accepts connections on l until ctx is cancelled, then shuts down.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Starting WebSocket server", "addr", l.Addr().String())
		if err := httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("Shutting down server")
		_ = s.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, l)
}

// Stop closes every connection and its engine.
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.connections))
	for conn := range s.connections {
		conns = append(conns, conn)
		delete(s.connections, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close() // Ignore close errors during shutdown
		conn.release()
	}
	return nil
}

// ConnectionCount returns the number of connected clients.
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// run handles connection lifecycle
func (s *Server) run() {
	for {
		select {
		case conn := <-s.register:
			s.add(conn)

		case conn := <-s.unregister:
			s.mu.Lock()
			_, ok := s.connections[conn]
			delete(s.connections, conn)
			total := len(s.connections)
			s.mu.Unlock()

			if ok {
				_ = conn.Close() // Ignore close errors during unregistration
				conn.release()
				s.logger.Info("Client disconnected", "game", conn.engine.ID(), "total", total)
			}

		case <-s.ctx.Done():
			return
		}
	}
}

// add tracks conn, or releases it when the server has already stopped.
// Stop cancels before it takes the lock, so checking under the lock means
// every connection is either in the map Stop drains or released here.
func (s *Server) add(conn *Connection) bool {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		_ = conn.Close()
		conn.release()
		return false
	}
	s.connections[conn] = true
	s.played++
	total := len(s.connections)
	s.mu.Unlock()

	s.logger.Info("Client connected", "game", conn.engine.ID(), "total", total)
	return true
}

// handleWebSocket handles WebSocket upgrade requests. A client may resume
// its session name with ?game=<id>; the ID must be a valid UUIDv7 game ID.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var opts []game.Option
	if requested := r.URL.Query().Get("game"); requested != "" {
		id, err := gameid.Parse(requested)
		if err == nil && id.Version() != 7 {
			err = fmt.Errorf("game ID %q is not time-ordered", requested)
		}
		if err != nil {
			s.logger.Warn("Rejecting connection", "error", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		opts = append(opts, game.WithGameID(requested))
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s.newEngine(opts...), s.logger)
	select {
	case s.register <- client:
	case <-s.ctx.Done():
		_ = client.Close()
		client.release()
		return
	}
	client.Start()

	// Connection cleanup is handled by the run loop
	go func() {
		<-client.Done()
		select {
		case s.unregister <- client:
		case <-s.ctx.Done():
		}
	}()
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK") // Ignore write errors for health check
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	connected, played := len(s.connections), s.played
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Connected players: %d\nSessions started: %d\n", connected, played)
}
