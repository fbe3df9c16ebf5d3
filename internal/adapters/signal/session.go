package signal

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

type State int32

const (
	Connecting State = iota
	Authenticating
	Authorizing
	Streaming
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticating:
		return "authenticating"
	case Authorizing:
		return "authorizing"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	}
	return "unknown"
}

type chatSession struct {
	ctl   *SignalWSController
	sid   core.SessionID
	room  domain.RoomID
	token string
	ws    *websocket.Conn
	state State

	user      *domain.User
	conn      *WsSignalConn
	closeCode atomic.Int32
}

func (s *chatSession) logger() *zerolog.Logger {
	l := log.With().Str("module", "signal").Str("sid", string(s.sid)).Str("room", string(s.room)).Logger()
	return &l
}

func (s *chatSession) transition(to State) {
	s.logger().Debug().Str("from", s.state.String()).Str("to", to.String()).Msg("session state")
	s.state = to
}

func (s *chatSession) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer s.finish()

	s.transition(Authenticating)
	user, err := s.ctl.Verifier.Verify(ctx, s.token)
	if err != nil {
		s.logger().Warn().Err(err).Msg("authentication failed")
		s.reject("unauthorized")
		return
	}
	s.user = user

	s.transition(Authorizing)
	s.conn = newWsSignalConn(s.ws, s.ctl.opts.SendBuffer)
	sess := core.NewMemberSession(domain.NewMember(user, s.room), s.conn)
	history, err := s.ctl.Orch.Join(ctx, s.sid, s.room, sess, cancel)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrForbidden) {
			s.logger().Error().Err(err).Msg("authorization lookup failed")
		} else {
			s.logger().Warn().Err(err).Str("user", user.Username).Msg("authorization failed")
		}
		s.reject("forbidden")
		return
	}

	s.transition(Streaming)
	s.closeCode.Store(websocket.CloseGoingAway)
	if err := s.replay(history); err != nil {
		s.logger().Warn().Err(err).Msg("history replay failed")
		return
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		defer cancel()
		s.ctl.writePump(ctx, s)
	})
	wg.Go(func() {
		defer cancel()
		s.ctl.readPump(ctx, s)
	})
	wg.Wait()
}

// reject ends a session that never reached Streaming.
func (s *chatSession) reject(reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	deadline := time.Now().Add(s.ctl.opts.WriteWait)
	if err := s.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !isExpectedCloseError(err) {
		s.logger().Debug().Err(err).Msg("write policy close")
	}
}

func (s *chatSession) replay(history []domain.Message) error {
	for _, m := range history {
		if err := s.ws.SetWriteDeadline(time.Now().Add(s.ctl.opts.WriteWait)); err != nil {
			return err
		}
		if err := s.ws.WriteMessage(websocket.TextMessage, []byte(m.Line())); err != nil {
			return err
		}
	}
	return nil
}

func (s *chatSession) finish() {
	if s.conn != nil {
		s.ctl.Orch.Leave(s.sid)
		s.conn.Close()
	}
	if err := s.ws.Close(); err != nil && !isExpectedCloseError(err) {
		s.logger().Debug().Err(err).Msg("close transport")
	}
	s.transition(Closed)
	s.logger().Info().Msg("session closed")
}
