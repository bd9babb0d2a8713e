package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/rentora/rentora/internal/auth/token"
	"github.com/rentora/rentora/internal/platform/timeouts"
	chatstorage "github.com/rentora/rentora/internal/services/chat/storage"
	"github.com/rentora/rentora/internal/services/chat/storage/sqlite"
	"golang.org/x/net/websocket"
)

// Config defines the inputs for the chat transport boundary.
//
// Identity verification intentionally reuses the REST login flow's signing
// key so one browser session covers both surfaces.
type Config struct {
	HTTPAddr          string
	DatabasePath      string
	TokenSigningKey   string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the chat HTTP/WebSocket process.
//
// It owns the message store connection and the per-process room registry;
// everything else about the rental domain lives behind the REST backend.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	store           *sqlite.Store
}

// messageStore is the slice of persistence the connection handler consumes.
type messageStore interface {
	AppendMessage(ctx context.Context, input chatstorage.AppendMessageInput) (chatstorage.Message, error)
}

// NewHandler creates chat routes around the given collaborators.
//
// A nil resolver admits every connection as anonymous; a nil store skips
// persistence. Both are useful for tests and offline paths.
func NewHandler(resolver identityResolver, store messageStore) http.Handler {
	registry := newRoomRegistry()
	broadcaster := newRoomBroadcaster(registry)

	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, registry, broadcaster, store)
	})

	mux.HandleFunc("/ws/{room}", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		roomID := strings.TrimSpace(r.PathValue("room"))
		if roomID == "" {
			http.Error(w, "room is required", http.StatusNotFound)
			return
		}

		// Token failures degrade to anonymous instead of rejecting the
		// handshake; admission policy belongs to the connection handler.
		ident := anonymousIdentity
		if resolver != nil {
			ident = resolver.Resolve(r.Context(), tokenFromQuery(r.URL.RawQuery))
		}
		if ident.isAnonymous() {
			log.Printf("chat: admitting anonymous connection for room=%q remote=%s", roomID, r.RemoteAddr)
		}

		ctx := context.WithValue(r.Context(), wsConnContextKey{}, wsConnContext{
			roomID:   roomID,
			identity: ident,
		})
		wsHandler.ServeHTTP(w, r.WithContext(ctx))
	})

	return mux
}

// NewServer builds a configured chat server and opens its message store.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	var store *sqlite.Store
	if strings.TrimSpace(config.DatabasePath) != "" {
		opened, err := sqlite.Open(config.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open chat store: %w", err)
		}
		store = opened
	} else {
		log.Printf("chat: no database path configured; messages will not be persisted")
	}

	var resolver identityResolver
	if signingKey := strings.TrimSpace(config.TokenSigningKey); signingKey != "" {
		var users userDirectory
		if store != nil {
			users = store
		}
		resolver = newTokenIdentityResolver(token.Config{Key: []byte(signingKey)}, users)
	} else {
		log.Printf("chat: no token signing key configured; all connections will be anonymous")
	}

	var msgStore messageStore
	if store != nil {
		msgStore = store
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           NewHandler(resolver, msgStore),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		store:           store,
	}, nil
}

// Run creates and serves a chat server until the context ends.
//
// Operators can treat this as the lifecycle boundary for the real-time surface.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init chat server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve chat: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("chat server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("chat server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close chat store: %v", err)
		}
	}
}
