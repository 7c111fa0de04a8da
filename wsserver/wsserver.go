// Package wsserver streams capture frames to browsers as compact JSON over
// WebSocket, throttled to a display rate. Attacks are latched across
// skipped frames so a one-tick attack never disappears between broadcasts.
package wsserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/cwbudde/steel-capture/capture"
	"github.com/cwbudde/steel-capture/copedant"
)

// Server owns the client set and the broadcast loop.
type Server struct {
	addr      string
	targetFPS int
	staticDir string

	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithStaticDir serves files from dir at the HTTP root, next to the /ws
// endpoint.
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// New builds a server that broadcasts at most targetFPS frames per second.
func New(addr string, targetFPS int, opts ...Option) (*Server, error) {
	if targetFPS <= 0 {
		return nil, fmt.Errorf("wsserver: target fps %d out of range", targetFPS)
	}
	s := &Server{
		addr:      addr,
		targetFPS: targetFPS,
		clients:   make(map[chan []byte]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the HTTP mux: /ws upgrades to WebSocket, everything else
// serves static files when a directory is configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	if s.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	} else {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, "steel-capture stream: connect a WebSocket client to /ws")
		})
	}
	return mux
}

// ListenAndServe starts the HTTP side. Blocks until the listener fails.
func (s *Server) ListenAndServe() error {
	slog.Info("wsserver: listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("wsserver: upgrade failed", "err", err)
		return
	}
	slog.Info("wsserver: client connected", "remote", r.RemoteAddr)

	ch := make(chan []byte, 16)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, ch)
		s.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
		slog.Info("wsserver: client disconnected", "remote", r.RemoteAddr)
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// ClientCount reports connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Run consumes frames until the channel closes, broadcasting the latest
// frame at the display rate with attacks latched in between.
func (s *Server) Run(frames <-chan capture.CaptureFrame) {
	interval := time.Second / time.Duration(s.targetFPS)
	var lastSend time.Time
	var pending [copedant.NumStrings]bool

	for f := range frames {
		for i := range pending {
			if f.Attacks[i] {
				pending[i] = true
			}
		}
		if time.Since(lastSend) < interval {
			continue
		}
		lastSend = time.Now()

		for i := range pending {
			if pending[i] {
				f.Attacks[i] = true
			}
		}
		pending = [copedant.NumStrings]bool{}

		s.Broadcast(f)
	}
	s.mu.Lock()
	for ch := range s.clients {
		close(ch)
	}
	s.clients = make(map[chan []byte]struct{})
	s.mu.Unlock()
}

// Broadcast sends one frame to every connected client without blocking.
// Slow clients miss frames rather than stalling the pipeline.
func (s *Server) Broadcast(f capture.CaptureFrame) {
	data, err := json.Marshal(f.Compact())
	if err != nil {
		slog.Warn("wsserver: marshal failed", "err", err)
		return
	}
	s.mu.Lock()
	for ch := range s.clients {
		select {
		case ch <- data:
		default:
		}
	}
	s.mu.Unlock()
}
