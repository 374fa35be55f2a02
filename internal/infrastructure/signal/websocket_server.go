package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/ports"
	"sketchroom/internal/core/protocol"
	"sketchroom/internal/core/services"
	apperrors "sketchroom/pkg/errors"
	"sketchroom/pkg/tracing"
	"sketchroom/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds per-connection transport settings.
type Config struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	SendBufferSize int
	MaxMessageSize int64
	AllowedOrigins []string
}

func DefaultConfig() Config {
	return Config{
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		SendBufferSize: 256,
		MaxMessageSize: 64 * 1024,
		AllowedOrigins: []string{"*"},
	}
}

// Admission gates new sessions and hands out inbound message limiters.
type Admission interface {
	Acquire(r *http.Request) (release func(), status int, ok bool)
	MessageLimiter() *rate.Limiter
}

type WebSocketServer struct {
	rooms     *services.RoomManager
	admission Admission
	metrics   ports.MetricsRecorder
	config    Config
	upgrader  websocket.Upgrader

	connections map[domain.ParticipantID]*connection
	mu          sync.RWMutex

	logger *zap.SugaredLogger
}

// session is the reader goroutine's view of one connection.
type session struct {
	conn    *connection
	room    *services.Room
	limiter *rate.Limiter
}

func NewWebSocketServer(
	rooms *services.RoomManager,
	admission Admission,
	metrics ports.MetricsRecorder,
	config Config,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	def := DefaultConfig()
	if config.PingInterval <= 0 {
		config.PingInterval = def.PingInterval
	}
	if config.PongTimeout <= 0 {
		config.PongTimeout = def.PongTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = def.SendBufferSize
	}
	if metrics == nil {
		metrics = services.NopMetrics()
	}

	s := &WebSocketServer{
		rooms:       rooms,
		admission:   admission,
		metrics:     metrics,
		config:      config,
		connections: make(map[domain.ParticipantID]*connection),
		logger:      logger,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:     s.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return s
}

func (s *WebSocketServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	release, status, ok := s.admission.Acquire(r)
	if !ok {
		s.logger.Debugw("websocket connection rejected", "status", status, "remote_addr", r.RemoteAddr)
		http.Error(w, http.StatusText(status), status)
		return
	}
	defer release()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	if s.config.MaxMessageSize > 0 {
		ws.SetReadLimit(s.config.MaxMessageSize)
	}

	conn := newConnection(domain.ParticipantID(utils.GenerateParticipantID()), ws, s.config.SendBufferSize)

	s.mu.Lock()
	s.connections[conn.id] = conn
	s.mu.Unlock()

	s.logger.Infow("participant connected", "participant_id", conn.id, "remote_addr", r.RemoteAddr)

	go conn.writePump(s.config.PingInterval, s.config.WriteTimeout)
	s.readPump(&session{conn: conn, limiter: s.admission.MessageLimiter()})
}

func (s *WebSocketServer) readPump(sess *session) {
	conn := sess.conn
	ws := conn.ws

	_ = ws.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.config.PongTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !conn.closed() {
				s.logger.Infow("error reading message from participant", "participant_id", conn.id, "error", err)
			}
			break
		}
		_ = ws.SetReadDeadline(time.Now().Add(s.config.PongTimeout))

		s.handleFrame(sess, data)
	}

	s.disconnect(sess)
}

func (s *WebSocketServer) handleFrame(sess *session, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		s.reject(sess, err)
		return
	}
	if !sess.limiter.Allow() {
		s.reject(sess, apperrors.NewRateLimitError())
		return
	}
	s.metrics.RecordMessageReceived(env.Type)

	var roomID string
	if sess.room != nil {
		roomID = string(sess.room.ID())
	}
	ctx, span := tracing.TraceWebSocketMessage(context.Background(), string(env.Type), roomID, string(sess.conn.id))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.config.WriteTimeout)
	defer cancel()

	if err := s.handleMessage(ctx, sess, env); err != nil {
		tracing.RecordError(ctx, err)
		s.reject(sess, err)
	}
}

// reject reports err to the sender only. The session stays open.
func (s *WebSocketServer) reject(sess *session, err error) {
	env := services.ErrorEnvelope(err)
	s.logger.Debugw("message rejected", "participant_id", sess.conn.id, "error", err)
	if sendErr := sess.conn.Send(env); sendErr != nil {
		s.metrics.RecordRelayDropped()
	}
}

func (s *WebSocketServer) handleMessage(ctx context.Context, sess *session, env protocol.Envelope) error {
	if env.Type == protocol.TypeJoin {
		return s.handleJoin(ctx, sess, env)
	}
	if sess.room == nil {
		return fmt.Errorf("%w: %s before join", protocol.ErrOutOfOrder, env.Type)
	}

	from := sess.conn.id
	switch env.Type {
	case protocol.TypeStrokeBegin:
		var payload protocol.StrokeBeginPayload
		if err := env.DecodePayload(&payload); err != nil {
			return err
		}
		tracing.AddSpanAttributes(ctx, tracing.StrokeIDKey.String(payload.StrokeID))
		return sess.room.BeginStroke(ctx, from, payload)

	case protocol.TypeStrokeUpdate:
		var payload protocol.StrokeUpdatePayload
		if err := env.DecodePayload(&payload); err != nil {
			return err
		}
		tracing.AddSpanAttributes(ctx,
			tracing.StrokeIDKey.String(payload.StrokeID),
			tracing.PointCountKey.Int(len(payload.Points)),
		)
		return sess.room.UpdateStroke(ctx, from, payload)

	case protocol.TypeStrokeEnd:
		var payload protocol.StrokeEndPayload
		if err := env.DecodePayload(&payload); err != nil {
			return err
		}
		tracing.AddSpanAttributes(ctx, tracing.StrokeIDKey.String(payload.StrokeID))
		return sess.room.EndStroke(ctx, from, payload)

	case protocol.TypeChat:
		var payload protocol.ChatPayload
		if err := env.DecodePayload(&payload); err != nil {
			return err
		}
		return sess.room.Chat(ctx, from, payload)

	case protocol.TypeClear:
		return sess.room.Clear(ctx, from)

	default:
		return fmt.Errorf("%w: %s is sent by the server only", protocol.ErrInvalidPayload, env.Type)
	}
}

func (s *WebSocketServer) handleJoin(ctx context.Context, sess *session, env protocol.Envelope) error {
	if sess.room != nil {
		return domain.ErrAlreadyJoined
	}

	var payload protocol.JoinPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	room, p, err := s.rooms.Join(ctx, domain.RoomID(payload.RoomID), sess.conn, payload.DisplayName, payload.Token)
	if err != nil {
		return err
	}
	sess.room = room

	s.logger.Infow("participant joined room",
		"participant_id", p.ID,
		"room_id", room.ID(),
		"display_name", p.DisplayName,
	)
	return nil
}

// disconnect is an implicit leave.
func (s *WebSocketServer) disconnect(sess *session) {
	conn := sess.conn

	if sess.room != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		if err := sess.room.Leave(ctx, conn.id); err != nil {
			s.logger.Debugw("leave on disconnect failed", "participant_id", conn.id, "error", err)
		}
		cancel()
	}

	_ = conn.Close()

	s.mu.Lock()
	delete(s.connections, conn.id)
	s.mu.Unlock()

	s.logger.Infow("participant disconnected", "participant_id", conn.id)
}

// ConnectionCount returns the number of open sessions.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

func (s *WebSocketServer) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"connections": s.ConnectionCount(),
		"rooms":       s.rooms.Count(),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// Shutdown closes every open session. Readers observe the closed sockets and
// run their normal disconnect path.
func (s *WebSocketServer) Shutdown() {
	s.mu.RLock()
	conns := make([]*connection, 0, len(s.connections))
	for _, c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
}
