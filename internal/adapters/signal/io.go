package signal

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// writePump owns every data write after replay. On exit it sends the
// session's close code and closes the socket, which also unblocks readPump.
func (ctl *SignalWSController) writePump(ctx context.Context, s *chatSession) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		ctl.closeSocket(s)
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger().Debug().Msg("writePump ctx done")
			ctl.flush(s)
			return
		case data, ok := <-s.conn.send:
			if !ok {
				s.logger().Debug().Msg("writePump channel closed")
				return
			}
			if err := s.ws.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				s.logger().Error().Err(err).Msg("writePump set deadline")
				return
			}
			if err := s.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				if !isExpectedCloseError(err) {
					s.logger().Error().Err(err).Msg("writePump write error")
				}
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(ctl.opts.WriteWait)
			if err := s.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger().Debug().Err(err).Msg("writePump ping")
				return
			}
		}
	}
}

// flush writes frames that were queued before the session ended, all under
// one write deadline so a stalled client can not hold up the close.
func (ctl *SignalWSController) flush(s *chatSession) {
	if err := s.ws.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
		return
	}
	for {
		select {
		case data, ok := <-s.conn.send:
			if !ok {
				return
			}
			if err := s.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger().Debug().Err(err).Msg("flush pending frames")
				return
			}
		default:
			return
		}
	}
}

func (ctl *SignalWSController) closeSocket(s *chatSession) {
	code := int(s.closeCode.Load())
	msg := websocket.FormatCloseMessage(code, "")
	_ = s.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(ctl.opts.WriteWait))
	if err := s.ws.Close(); err != nil && !isExpectedCloseError(err) {
		s.logger().Debug().Err(err).Msg("writePump close")
	}
}

// readPump turns every inbound text frame into a published message. It
// returns when the client goes away, the read deadline passes or the
// message can not be persisted.
func (ctl *SignalWSController) readPump(ctx context.Context, s *chatSession) {
	defer s.logger().Debug().Msg("readPump closing")

	s.ws.SetReadLimit(ctl.opts.ReadLimit)
	_ = s.ws.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		mt, data, err := s.ws.ReadMessage()
		if err != nil {
			ctl.logReadError(s, err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		if mt != websocket.TextMessage {
			s.logger().Warn().Int("type", mt).Msg("non-text frame ignored")
			continue
		}
		if ctl.Limiter != nil && !ctl.Limiter.Allow(s.user.ID) {
			s.logger().Warn().Str("user", s.user.Username).Msg("rate limit exceeded; message dropped")
			continue
		}
		if _, err := ctl.Orch.Publish(ctx, s.room, s.user.Username, string(data)); err != nil {
			s.logger().Error().Err(err).Msg("publish failed")
			s.closeCode.Store(websocket.CloseInternalServerErr)
			return
		}
	}
}

func (ctl *SignalWSController) logReadError(s *chatSession, err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		s.logger().Warn().Int64("limit", ctl.opts.ReadLimit).Msg("message exceeded read limit")
		s.closeCode.Store(websocket.CloseMessageTooBig)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		s.logger().Info().Msg("client disconnected")
	case isExpectedCloseError(err):
		s.logger().Debug().Err(err).Msg("connection closed")
	default:
		s.logger().Warn().Err(err).Msg("read error")
	}
}

func isExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure)
}
