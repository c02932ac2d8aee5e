package lobby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jason-s-yu/tschausepp/engine"
	"github.com/jason-s-yu/tschausepp/internal/auth"
	"github.com/jason-s-yu/tschausepp/internal/game"
	"github.com/jason-s-yu/tschausepp/internal/models"
)

// Handle dispatches one inbound message from conn. Failures are answered on
// the same connection; unknown message types and malformed payloads are ignored.
func (m *Manager) Handle(ctx context.Context, conn uuid.UUID, msg models.ClientMessage) {
	if ctx.Err() != nil {
		return
	}
	if !knownType(msg.Type) {
		m.log.WithField("type", msg.Type).Debug("ignoring unknown message")
		return
	}
	if m.limiter != nil {
		if d := m.limiter.Allow(conn, msg.Type); !d.Allowed {
			m.send(conn, models.MsgRateLimited, map[string]any{
				"event":              msg.Type,
				"message":            "Too many requests, slow down.",
				"remaining_requests": d.Remaining,
				"retry_after":        int(d.RetryAfter / time.Second),
			})
			return
		}
	}

	if err := m.route(conn, msg); err != nil {
		if errors.Is(err, errBadPayload) {
			m.log.WithError(err).WithField("type", msg.Type).Debug("ignoring malformed message")
			return
		}
		m.reject(conn, msg.Type, err)
	}
}

func knownType(t string) bool {
	switch t {
	case models.MsgCreateRoom, models.MsgJoinRoom, models.MsgLeaveRoom, models.MsgAddBot,
		models.MsgStartGame, models.MsgPlayCard, models.MsgDrawCard, models.MsgSelectColor,
		models.MsgCallTschau, models.MsgCallSepp, models.MsgForfeit, models.MsgRequestRematch,
		models.MsgSendChat, models.MsgSendEmote:
		return true
	}
	return false
}

// errBadPayload marks a payload that could not be decoded.
var errBadPayload = errors.New("malformed payload")

func decode(msg models.ClientMessage, v any) error {
	if err := msg.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	return nil
}

func (m *Manager) route(conn uuid.UUID, msg models.ClientMessage) error {
	// Lobby operations that do not need a seat.
	switch msg.Type {
	case models.MsgCreateRoom:
		var p models.CreateRoomPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		_, _, err := m.CreateRoom(conn, p.PlayerName)
		return err
	case models.MsgJoinRoom:
		var p models.JoinRoomPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		_, _, err := m.JoinRoom(conn, p.RoomCode, p.PlayerName)
		return err
	case models.MsgLeaveRoom:
		return m.LeaveRoom(conn)
	case models.MsgAddBot:
		var p models.AddBotPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		_, err := m.AddBot(conn, p.Difficulty, p.Name)
		return err
	case models.MsgStartGame:
		return m.StartGame(conn)
	}

	r, player, err := m.seatOf(conn)
	if err != nil {
		return err
	}
	switch msg.Type {
	case models.MsgPlayCard:
		var p models.PlayCardPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		return r.PlayCard(player, p.Card)
	case models.MsgDrawCard:
		return r.DrawCard(player)
	case models.MsgSelectColor:
		var p models.SelectColorPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		color, err := engine.ParseSuit(p.Color)
		if err != nil {
			return err
		}
		return r.SelectColor(player, color)
	case models.MsgCallTschau:
		return r.CallTschau(player)
	case models.MsgCallSepp:
		return r.CallSepp(player)
	case models.MsgForfeit:
		return r.Forfeit(player)
	case models.MsgRequestRematch:
		return r.RequestRematch(player)
	case models.MsgSendChat:
		var p models.ChatPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if text := Sanitize(p.Message, MaxChatLength); text != "" {
			return r.Chat(player, text)
		}
		return nil
	case models.MsgSendEmote:
		var p models.EmotePayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if AllowedEmote(p.Emote) {
			return r.Emote(player, p.Emote)
		}
		return nil
	}
	return nil
}

// gameMoves are answered with move_rejected rather than error.
var gameMoves = map[string]bool{
	models.MsgPlayCard:   true,
	models.MsgDrawCard:   true,
	models.MsgCallTschau: true,
	models.MsgCallSepp:   true,
}

func (m *Manager) reject(conn uuid.UUID, msgType string, err error) {
	code := ReasonCode(err)
	m.log.WithError(err).WithField("type", msgType).Debug("request rejected")
	if msgType == models.MsgSelectColor {
		// An out-of-place color choice gets no reply.
		return
	}
	if gameMoves[msgType] {
		m.send(conn, models.MsgMoveRejected, map[string]any{
			"reason": err.Error(),
			"code":   code,
		})
		return
	}
	m.send(conn, models.MsgError, models.ErrorPayload{Code: code, Message: err.Error()})
}

// ReasonCode maps lobby, room and engine errors to stable wire codes.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrAlreadySeated):
		return "already_in_room"
	case errors.Is(err, ErrNotSeated), errors.Is(err, game.ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, game.ErrRoomFull):
		return "room_full"
	case errors.Is(err, game.ErrAlreadyStarted):
		return "already_started"
	case errors.Is(err, game.ErrNotEnoughPlayers):
		return "not_enough_players"
	case errors.Is(err, game.ErrNotPlaying):
		return "not_playing"
	case errors.Is(err, game.ErrRematchUnavailable):
		return "rematch_unavailable"
	case errors.Is(err, game.ErrRoomClosed):
		return "room_closed"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid_token"
	}
	return engine.ReasonCode(err)
}
