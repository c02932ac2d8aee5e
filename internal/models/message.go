package models

import (
	"encoding/json"

	"github.com/jason-s-yu/tschausepp/engine"
)

// ClientMessage is one inbound frame: {"type": "...", "payload": {...}}.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v. An absent payload leaves v untouched.
func (m ClientMessage) Decode(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

// ServerMessage is one outbound frame.
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Client message types.
const (
	MsgCreateRoom     = "create_room"
	MsgJoinRoom       = "join_room"
	MsgLeaveRoom      = "leave_room"
	MsgAddBot         = "add_bot"
	MsgStartGame      = "start_game"
	MsgPlayCard       = "play_card"
	MsgDrawCard       = "draw_card"
	MsgSelectColor    = "select_color"
	MsgCallTschau     = "call_tschau"
	MsgCallSepp       = "call_sepp"
	MsgForfeit        = "forfeit"
	MsgRequestRematch = "request_rematch"
	MsgSendChat       = "send_chat"
	MsgSendEmote      = "send_emote"
)

// Server message types.
const (
	MsgConnected          = "connected"
	MsgReconnected        = "reconnected"
	MsgRoomCreated        = "room_created"
	MsgRoomJoined         = "room_joined"
	MsgPlayerJoined       = "player_joined"
	MsgPlayerLeft         = "player_left"
	MsgGameStarted        = "game_started"
	MsgGameUpdate         = "game_update"
	MsgTurnStarted        = "turn_started"
	MsgTurnTimeout        = "turn_timeout"
	MsgMoveRejected       = "move_rejected"
	MsgGameWon            = "game_won"
	MsgTschauCalled       = "tschau_called"
	MsgSeppCalled         = "sepp_called"
	MsgSeppFailed         = "sepp_failed"
	MsgRematchRequested   = "rematch_requested"
	MsgRematchAccepted    = "rematch_accepted"
	MsgGamePaused         = "game_paused"
	MsgGameResumed        = "game_resumed"
	MsgPlayerDisconnected = "player_disconnected"
	MsgPlayerReconnected  = "player_reconnected"
	MsgStoreToken         = "store_reconnect_token"
	MsgChatMessage        = "chat_message"
	MsgEmoteReceived      = "emote_received"
	MsgRateLimited        = "rate_limited"
	MsgError              = "error"
)

// Inbound payloads.

type CreateRoomPayload struct {
	PlayerName string `json:"player_name"`
}

type JoinRoomPayload struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
}

type AddBotPayload struct {
	Difficulty string `json:"difficulty"`
	Name       string `json:"name"`
}

type PlayCardPayload struct {
	Card engine.Card `json:"card"`
}

type SelectColorPayload struct {
	Color string `json:"color"`
}

type ChatPayload struct {
	Message string `json:"message"`
}

type EmotePayload struct {
	Emote string `json:"emote"`
}

// ErrorPayload answers a request that could not be honored.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
