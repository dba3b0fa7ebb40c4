package observer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/accelagent/parkour/game"
	"github.com/accelagent/parkour/systems"
)

// clientBuffer is the number of messages queued per client before frames
// are dropped for it.
const clientBuffer = 16

// Server fans simulation messages out to websocket clients. It implements
// game.FrameSink; publishing never blocks the simulation.
type Server struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	// LoopbackOnly rejects clients that do not connect from a loopback address.
	LoopbackOnly bool

	mu      sync.Mutex
	clients map[uint64]chan []byte
	level   []byte
	dropped int
}

var _ game.FrameSink = (*Server)(nil)

// NewServer creates an observer with no clients.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[uint64]chan []byte),
	}
}

// PublishLevel sends the level to every client and keeps it for later ones.
func (s *Server) PublishLevel(episode int, level systems.LevelDescription) {
	b, err := json.Marshal(newLevel(episode, level))
	if err != nil {
		s.logger.Error("encoding level", "err", err)
		return
	}
	s.mu.Lock()
	s.level = b
	s.mu.Unlock()
	s.broadcast(b, true)
}

// PublishFrame sends the agent and asset transforms of one tick.
func (s *Server) PublishFrame(tick int, agents []game.AgentView, assets []game.AssetView) {
	s.mu.Lock()
	n := len(s.clients)
	s.mu.Unlock()
	if n == 0 {
		return
	}
	b, err := json.Marshal(newFrame(tick, agents, assets))
	if err != nil {
		s.logger.Error("encoding frame", "err", err)
		return
	}
	s.broadcast(b, false)
}

// broadcast queues b for every client. Frames are dropped for a client whose
// queue is full; when mustDeliver is set the oldest queued message makes room
// instead, so level changes always reach the client.
func (s *Server) broadcast(b []byte, mustDeliver bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.clients {
		s.dropped += enqueue(ch, b, mustDeliver)
	}
}

// enqueue returns the number of messages lost while queueing b.
func enqueue(ch chan []byte, b []byte, mustDeliver bool) int {
	lost := 0
	for {
		select {
		case ch <- b:
			return lost
		default:
		}
		if !mustDeliver {
			return 1
		}
		select {
		case <-ch:
			lost++
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Dropped returns how many messages were skipped for slow clients.
func (s *Server) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Server) join() (uint64, chan []byte) {
	id := s.nextID.Add(1)
	ch := make(chan []byte, clientBuffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.level != nil {
		ch <- s.level
	}
	s.clients[id] = ch
	return id, ch
}

func (s *Server) leave(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, id)
}

// Handler returns the websocket endpoint.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.LoopbackOnly && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		// Join before the upgrade so nothing published after the handshake is missed.
		id, out := s.join()
		defer s.leave(id)

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.logger.Info("observer connected", "client", id, "remote", r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// The stream is read-only; reading only notices the client leaving.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		s.logger.Info("observer disconnected", "client", id)
	}
}

// ListenAndServe serves the websocket endpoint on addr at /ws until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("observer listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
