// ABOUTME: WebSocket state feed for companion apps and dashboards
// ABOUTME: Pushes periodic engine snapshots to every connected client
package statefeed

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hushtone/hushtone-go/internal/engine"
)

const defaultPushInterval = 250 * time.Millisecond

// SnapshotFunc supplies the current engine state for publication.
type SnapshotFunc func() engine.Snapshot

// Config holds the feed configuration.
type Config struct {
	Addr         string
	Name         string
	EnableMDNS   bool
	PushInterval time.Duration
}

// Server publishes engine snapshots over WebSocket. Clients are read-only
// observers; the feed never carries control messages.
type Server struct {
	config   Config
	serverID string
	snapshot SnapshotFunc

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	clients   map[string]*client
	clientsMu sync.Mutex

	mdnsShutdown func()

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type client struct {
	id   string
	conn *websocket.Conn
}

// New creates a state feed server.
func New(config Config, snapshot SnapshotFunc) *Server {
	if config.PushInterval <= 0 {
		config.PushInterval = defaultPushInterval
	}

	return &Server{
		config:   config,
		serverID: uuid.NewString(),
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			// The feed is read-only and meant for trusted local networks.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux:      http.NewServeMux(),
		clients:  make(map[string]*client),
		stopChan: make(chan struct{}),
	}
}

// Start begins serving. It returns once the listener is installed; push
// and accept loops run on their own goroutines.
func (s *Server) Start() error {
	s.mux.HandleFunc("/state", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:    s.config.Addr,
		Handler: s.mux,
	}

	if s.config.EnableMDNS {
		shutdown, err := advertise(s.config.Name, s.config.Addr)
		if err != nil {
			logrus.WithField("error", err.Error()).Warn("mDNS advertisement failed")
		} else {
			s.mdnsShutdown = shutdown
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logrus.WithField("error", err.Error()).Error("state feed listener failed")
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pushLoop()
	}()

	logrus.WithFields(logrus.Fields{
		"addr":     s.config.Addr,
		"serverID": s.serverID,
	}).Info("state feed listening")

	return nil
}

// Stop disconnects clients and shuts the listener down.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)

		if s.mdnsShutdown != nil {
			s.mdnsShutdown()
		}

		s.clientsMu.Lock()
		for _, c := range s.clients {
			c.conn.Close()
		}
		s.clients = make(map[string]*client)
		s.clientsMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			logrus.WithField("error", err.Error()).Warn("state feed shutdown error")
		}

		s.wg.Wait()
	})
}

// Clients returns the current connection count.
func (s *Server) Clients() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithField("error", err.Error()).Warn("websocket upgrade failed")
		return
	}

	c := &client{id: uuid.NewString(), conn: conn}

	s.clientsMu.Lock()
	s.clients[c.id] = c
	s.clientsMu.Unlock()

	logrus.WithFields(logrus.Fields{
		"clientID": c.id,
		"remote":   r.RemoteAddr,
	}).Info("state feed client connected")

	// Immediately push the current state so the client never waits a full
	// interval for its first frame.
	s.send(c, s.snapshot())

	// Drain the connection until the client leaves. Incoming payloads are
	// ignored; the read loop only detects disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(c)
				return
			}
		}
	}()
}

func (s *Server) pushLoop() {
	ticker := time.NewTicker(s.config.PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			snap := s.snapshot()
			s.clientsMu.Lock()
			targets := make([]*client, 0, len(s.clients))
			for _, c := range s.clients {
				targets = append(targets, c)
			}
			s.clientsMu.Unlock()

			for _, c := range targets {
				s.send(c, snap)
			}
		}
	}
}

func (s *Server) send(c *client, snap engine.Snapshot) {
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if err := c.conn.WriteJSON(snap); err != nil {
		logrus.WithFields(logrus.Fields{
			"clientID": c.id,
			"error":    err.Error(),
		}).Debug("state push failed; dropping client")
		s.drop(c)
	}
}

func (s *Server) drop(c *client) {
	s.clientsMu.Lock()
	if _, ok := s.clients[c.id]; ok {
		delete(s.clients, c.id)
		c.conn.Close()
	}
	s.clientsMu.Unlock()
}

// feedPort extracts the numeric port from a listen address.
func feedPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("no port in address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("bad port in address %q: %w", addr, err)
	}
	return port, nil
}
