package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/protocol"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrSessionClosed = errors.New("session closed")

// Session is one client connection to a room. Incoming messages are applied
// to the board by a single reader goroutine, so the board sees them in the
// order the room relayed them.
type Session struct {
	ws     *websocket.Conn
	board  *Board
	logger *zap.SugaredLogger

	writeMu      sync.Mutex
	writeTimeout time.Duration

	joined    chan error
	joinOnce  sync.Once
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial connects to a server WebSocket endpoint such as ws://host:8080/ws.
func Dial(ctx context.Context, url string, board *Board, logger *zap.SugaredLogger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	s := &Session{
		ws:           ws,
		board:        board,
		logger:       logger,
		writeTimeout: 10 * time.Second,
		joined:       make(chan error, 1),
		done:         make(chan struct{}),
	}
	go s.readPump()
	return s, nil
}

func (s *Session) Board() *Board { return s.board }

// Done is closed when the connection ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err reports why the session ended.
func (s *Session) Err() error {
	<-s.done
	return s.err
}

// Join sends the join request and waits for the server to acknowledge it.
// The roster and board sync that follow the ack are applied before any
// later message.
func (s *Session) Join(ctx context.Context, roomID domain.RoomID, displayName, token string) error {
	if err := s.send(protocol.TypeJoin, protocol.JoinPayload{
		RoomID:      string(roomID),
		DisplayName: displayName,
		Token:       token,
	}); err != nil {
		return err
	}

	select {
	case err := <-s.joined:
		return err
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) resolveJoin(err error) {
	s.joinOnce.Do(func() { s.joined <- err })
}

func (s *Session) readPump() {
	defer s.shutdown(nil)

	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warnw("Connection lost", "error", err)
				s.shutdown(err)
			}
			return
		}

		env, err := protocol.Decode(data)
		if err != nil {
			s.logger.Warnw("Ignoring malformed message", "error", err)
			continue
		}

		err = s.board.Apply(env)
		var serverErr *ServerError
		switch {
		case errors.As(err, &serverErr):
			s.logger.Warnw("Server rejected message", "code", serverErr.Code, "message", serverErr.Message)
			if s.board.Self() == "" {
				s.resolveJoin(serverErr)
			}
		case err != nil:
			s.logger.Warnw("Failed to apply message", "type", env.Type, "error", err)
		}

		if env.Type == protocol.TypeJoinAck {
			s.logger.Infow("Joined room", "room_id", s.board.RoomID(), "participant_id", s.board.Self())
		}
		// The roster and board sync come right behind the ack; the join is
		// complete once the board has been rebuilt.
		if env.Type == protocol.TypeBoardSync {
			s.resolveJoin(err)
		}
	}
}

func (s *Session) send(t protocol.MessageType, payload interface{}) error {
	env, err := protocol.NewEnvelope(t, payload)
	if err != nil {
		return err
	}
	return s.Send(env)
}

// Send writes one envelope to the server.
func (s *Session) Send(env protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}

	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.ws.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	if err := s.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send %s: %w", env.Type, err)
	}
	return nil
}

func (s *Session) BeginStroke(tool domain.Tool, p domain.Point) error {
	env, err := s.board.BeginLocalStroke(tool, p)
	if err != nil {
		return err
	}
	return s.Send(env)
}

func (s *Session) ExtendStroke(points ...domain.Point) error {
	env, err := s.board.ExtendLocalStroke(points)
	if err != nil {
		return err
	}
	return s.Send(env)
}

func (s *Session) EndStroke() error {
	env, err := s.board.EndLocalStroke()
	if err != nil {
		return err
	}
	return s.Send(env)
}

// DrawStroke sends a whole stroke: begin with the first point, one update
// carrying the rest, then end.
func (s *Session) DrawStroke(tool domain.Tool, points []domain.Point) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: stroke has no points", protocol.ErrInvalidPayload)
	}
	if err := s.BeginStroke(tool, points[0]); err != nil {
		return err
	}
	if len(points) > 1 {
		if err := s.ExtendStroke(points[1:]...); err != nil {
			return err
		}
	}
	return s.EndStroke()
}

func (s *Session) Chat(text string) error {
	return s.send(protocol.TypeChat, protocol.ChatPayload{Text: text})
}

func (s *Session) Clear() error {
	env, err := s.board.ClearLocal()
	if err != nil {
		return err
	}
	return s.Send(env)
}

func (s *Session) shutdown(err error) {
	s.closeOnce.Do(func() {
		s.err = err
		close(s.done)
		s.resolveJoin(ErrSessionClosed)
	})
}

// Close sends a close frame and waits for the reader to stop.
func (s *Session) Close() error {
	s.writeMu.Lock()
	_ = s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()

	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
	}
	s.shutdown(nil)
	return s.ws.Close()
}
