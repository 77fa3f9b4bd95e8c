// Package observer serves the read-only HUD surface: a bootstrap document,
// a websocket frame stream, and the designation endpoint the selection UI
// posts to.
package observer

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voxelcolony/internal/observerproto"
	"voxelcolony/internal/sim/colony"
	"voxelcolony/internal/sim/runtime"
	"voxelcolony/internal/sim/world"
)

// AuditSource answers the admin recent-audits query. Nil when the index db
// is disabled.
type AuditSource interface {
	RecentAudits(ctx context.Context, limit int) ([]runtime.AuditEntry, error)
}

type Server struct {
	sim    *runtime.Sim
	audits AuditSource
	log    *zap.SugaredLogger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(sim *runtime.Sim, audits AuditSource, logger *zap.SugaredLogger) *Server {
	return &Server{
		sim:    sim,
		audits: audits,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(s.sim.Bootstrap())
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		out := make(chan []byte, 64)
		joinCtx, joinCancel := context.WithTimeout(r.Context(), 2*time.Second)
		obsID, err := s.sim.ObserverJoin(joinCtx, out, sub.SendSurface)
		joinCancel()
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		defer s.sim.ObserverLeave(obsID)

		s.log.Infow("observer joined", "id", obsID, "remote", r.RemoteAddr, "surface", sub.SendSurface)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b, ok := <-out:
					if !ok {
						writeErr <- nil
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: nothing expected after the handshake, but reading keeps
		// ping/pong alive and notices the close.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}

		s.log.Infow("observer left", "id", obsID)
	}
}

// TasksHandler accepts designation requests and replies with the task id.
func (s *Server) TasksHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		var req observerproto.DesignateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(rw, "bad json", http.StatusBadRequest)
			return
		}

		var kind colony.TaskKind
		switch req.Kind {
		case string(colony.KindDig):
			kind = colony.KindDig
		case string(colony.KindPlace):
			kind = colony.KindPlace
		case string(colony.KindStairs):
			kind = colony.KindStairs
		default:
			http.Error(rw, "unknown kind", http.StatusBadRequest)
			return
		}

		material := world.Stone
		if req.Material != "" {
			id, ok := world.BlockIDByName(req.Material)
			if !ok {
				http.Error(rw, "unknown material", http.StatusBadRequest)
				return
			}
			material = id
		}

		pos := world.Vec3i{X: req.Pos[0], Y: req.Pos[1], Z: req.Pos[2]}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		id, err := s.sim.Designate(ctx, kind, pos, material)
		if err != nil {
			http.Error(rw, "sim unavailable", http.StatusServiceUnavailable)
			return
		}

		s.log.Infow("designation accepted", "task", id, "kind", kind, "pos", pos.ToArray())

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(observerproto.DesignateResponse{TaskID: id})
	}
}

// AuditsHandler exposes recent block mutations from the index db.
func (s *Server) AuditsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if s.audits == nil {
			http.Error(rw, "index db disabled", http.StatusNotFound)
			return
		}

		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		entries, err := s.audits.RecentAudits(r.Context(), limit)
		if err != nil {
			http.Error(rw, "query failed", http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(entries)
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
