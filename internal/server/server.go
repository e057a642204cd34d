// Package server exposes the read-only ops surface: health, metrics, the run
// state and a live tick feed.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-robots/internal/hub"
	"github.com/rxtech-lab/argo-robots/internal/logger"
	"github.com/rxtech-lab/argo-robots/internal/metrics"
	"github.com/rxtech-lab/argo-robots/internal/types"
	"github.com/rxtech-lab/argo-robots/pkg/errors"
	"go.uber.org/zap"
)

// StateReader returns the process run state.
type StateReader interface {
	Get(ctx context.Context) (types.RunState, error)
}

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Subscriptions is the hub surface the server reads and the tick feed joins.
type Subscriptions interface {
	Subscribe(ctx context.Context, key hub.Key, consumerID string, cb hub.Callback) error
	Unsubscribe(key hub.Key, consumerID string)
	Snapshot() []hub.SubscriptionInfo
}

// RobotCounter reports how many robots listen to the stream.
type RobotCounter interface {
	Subscribed() int
}

type Dependencies struct {
	State   StateReader
	Hub     Subscriptions
	Robots  RobotCounter
	Store   optional.Option[Pinger]
	Metrics *metrics.Metrics
	Log     *logger.Logger
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	IsRunning        bool                   `json:"is_running"`
	UpdatedAt        time.Time              `json:"updated_at"`
	SubscribedRobots int                    `json:"subscribed_robots"`
	Subscriptions    []hub.SubscriptionInfo `json:"subscriptions"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// tickBuffer is the per-connection queue of ticks not yet written.
const tickBuffer = 32

// Server is the ops HTTP server.
type Server struct {
	deps       Dependencies
	log        *logger.Logger
	router     *mux.Router
	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener
}

// New creates a server and registers its routes.
func New(deps Dependencies) *Server {
	s := &Server{
		deps:   deps,
		log:    deps.Log.Named("server"),
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		httpServer: nil,
		listener:   nil,
	}

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	s.router.HandleFunc("/ws/ticks/{instrument}", s.handleTicks)

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on address and serves in the background. An empty address
// picks a free port.
func (s *Server) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to listen on %s", address)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server stopped", zap.Error(err))
		}
	}()

	s.log.Info("ops server listening", zap.String("addr", listener.Addr().String()))

	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store.IsSome() {
		if err := s.deps.Store.Unwrap().Ping(r.Context()); err != nil {
			s.writeError(w, http.StatusServiceUnavailable, err)

			return
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.deps.State.Get(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)

		return
	}

	s.writeJSON(w, http.StatusOK, StateResponse{
		IsRunning:        state.IsRunning,
		UpdatedAt:        state.UpdatedAt,
		SubscribedRobots: s.deps.Robots.Subscribed(),
		Subscriptions:    s.deps.Hub.Snapshot(),
	})
}

// handleTicks joins the hub as a consumer and forwards every tick as JSON
// until the client goes away. Ticks are dropped when the client falls behind.
func (s *Server) handleTicks(w http.ResponseWriter, r *http.Request) {
	resolution := types.Resolution(r.URL.Query().Get("resolution"))
	if resolution == "" {
		resolution = types.Resolution1Min
	}

	if err := resolution.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)

		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))

		return
	}
	defer conn.Close()

	key := hub.Key{Instrument: mux.Vars(r)["instrument"], Resolution: resolution}
	consumerID := "ws-" + uuid.NewString()
	ticks := make(chan types.Candle, tickBuffer)

	err = s.deps.Hub.Subscribe(r.Context(), key, consumerID, func(candle types.Candle) {
		select {
		case ticks <- candle:
		default:
			s.deps.Metrics.TickDropped()
		}
	})
	if err != nil {
		_ = conn.WriteJSON(errorResponse{Code: int(errors.GetCode(err)), Message: err.Error()})

		return
	}
	defer s.deps.Hub.Unsubscribe(key, consumerID)

	closed := make(chan struct{})

	go func() {
		defer close(closed)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case candle := <-ticks:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(candle); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Code: int(errors.GetCode(err)), Message: err.Error()})
}
