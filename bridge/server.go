package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/engine"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const (
	DefaultPath         = "/bridge"
	DefaultReadLimit    = 1 << 20
	DefaultPingInterval = 30 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	sendBuffer          = 64
)

// Server accepts websocket connections from the game-side shim, mirrors
// what it pushes into a Snapshot and answers frames with display decisions.
type Server struct {
	ctx             context.Context
	cancel          context.CancelFunc
	config          *types.BridgeConfig
	logger          types.Logger
	metrics         types.MetricsManager
	serial          *engine.Serial
	snapshot        *Snapshot
	version         string
	upgrader        websocket.Upgrader
	httpServer      *http.Server
	listener        net.Listener
	sessions        map[string]*session
	sessionsMu      sync.RWMutex
	state           atomic.Value
	shutdownTimeout time.Duration
}

func NewServer(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager, serial *engine.Serial, snapshot *Snapshot) (*Server, error) {
	serviceConfig := config.GetConfig()
	bridgeConfig := serviceConfig.Bridge
	if bridgeConfig == nil || !bridgeConfig.Enabled {
		return nil, types.ErrBridgeIsDisabled
	}
	if serial == nil || snapshot == nil {
		return nil, types.Errorf(types.ErrInvalidParameter, "bridge needs an engine and a snapshot")
	}

	cfg := *bridgeConfig
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultReadLimit
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	serverCtx, cancel := context.WithCancel(ctx)

	server := &Server{
		ctx:             serverCtx,
		cancel:          cancel,
		config:          &cfg,
		logger:          logger,
		metrics:         metrics,
		serial:          serial,
		snapshot:        snapshot,
		version:         serviceConfig.Version,
		sessions:        make(map[string]*session),
		shutdownTimeout: 10 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     localOrigin,
		},
	}

	server.state.Store(StateStopped)
	return server, nil
}

// localOrigin only admits connections without an Origin header or from a
// loopback host, since the shim runs on the same machine.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	host, _, err := net.SplitHostPort(r.Host)
	if err != nil {
		host = r.Host
	}
	ip := net.ParseIP(host)
	return host == "localhost" || (ip != nil && ip.IsLoopback())
}

func (s *Server) Snapshot() *Snapshot {
	return s.snapshot
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.handleUpgrade)
	return mux
}

func (s *Server) Start() error {
	if !s.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.setState(StateStopped)
		return types.WrapError(types.ErrServerStartFailed, err.Error())
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Bridge server failed", zap.Error(err))
		}
	}()

	s.setState(StateRunning)
	s.logger.Info("Bridge server started",
		zap.String("addr", listener.Addr().String()),
		zap.String("path", s.config.Path))
	return nil
}

func (s *Server) Stop() error {
	if !s.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		s.setState(StateStopped)
		s.cancel()
	}()

	s.sessionsMu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessionsMu.Unlock()

	for _, sess := range sessions {
		sess.close(websocket.CloseGoingAway, "server shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("Bridge server stop timeout", zap.Error(err))
		return types.WrapError(types.ErrServerStopFailed, err.Error())
	}

	s.logger.Info("Bridge server stopped gracefully")
	return nil
}

func (s *Server) IsRunning() bool {
	return s.getState() == StateRunning
}

// Addr reports the bound listener address, useful when the port is 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Sessions() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

func (s *Server) getState() State {
	return s.state.Load().(State)
}

func (s *Server) setState(newState State) bool {
	currentState := s.getState()
	return s.state.CompareAndSwap(currentState, newState)
}

func (s *Server) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(from, to)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Bridge upgrade failed", zap.Error(err))
		return
	}

	sess := newSession(s, conn)

	s.sessionsMu.Lock()
	s.sessions[sess.id] = sess
	count := len(s.sessions)
	s.sessionsMu.Unlock()

	s.setSessionsGauge(count)
	s.logger.Info("Bridge session opened", zap.String("session_id", sess.id), zap.String("remote", r.RemoteAddr))

	sess.send(Message{Type: TypeHello, Data: mustEncode(HelloData{SessionID: sess.id, Version: s.version})})

	go sess.writePump()
	sess.readPump()

	s.sessionsMu.Lock()
	delete(s.sessions, sess.id)
	count = len(s.sessions)
	s.sessionsMu.Unlock()

	if count == 0 {
		s.snapshot.Reset()
	}

	s.setSessionsGauge(count)
	s.logger.Info("Bridge session closed", zap.String("session_id", sess.id))
}

func (s *Server) recordMessage(messageType, result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Counter("bridge_messages_total", map[string]string{
		"type":   messageType,
		"result": result,
	}).Inc()
}

func (s *Server) setSessionsGauge(count int) {
	if s.metrics == nil {
		return
	}
	s.metrics.Gauge("bridge_sessions", nil).Set(float64(count))
}

func newSessionID() string {
	return uuid.NewString()
}
