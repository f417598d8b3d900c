// Package status serves the local observability feed: a JSON snapshot over
// plain HTTP and a periodic push stream over websocket. Loopback only.
package status

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"spawnforge.ai/internal/protocol"
)

// Source produces the current pipeline status snapshot.
type Source interface {
	Status() protocol.StatusMsg
}

type Server struct {
	source Source
	log    *zap.Logger

	upgrader websocket.Upgrader
	interval time.Duration
}

func NewServer(source Source, interval time.Duration, log *zap.Logger) *Server {
	if interval <= 0 {
		interval = time.Second
	}
	return &Server{
		source: source,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		interval: interval,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.snapshotHandler)
	mux.HandleFunc("/ws", s.wsHandler)
	return mux
}

// Run serves until the context is canceled.
func (s *Server) Run(ctx context.Context, listen string) error {
	srv := &http.Server{Addr: listen, Handler: s.Handler()}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shctx)
		return nil
	case err := <-errc:
		return err
	}
}

func (s *Server) snapshotHandler(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(s.source.Status())
}

func (s *Server) wsHandler(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Drain client frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		msg := s.source.Status()
		msg.Type = protocol.TypeStatus
		msg.ProtocolVersion = protocol.Version
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
		<-ticker.C
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	host = strings.Trim(host, "[]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
