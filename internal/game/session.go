package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/jason-s-yu/tschausepp/internal/models"
)

// DisconnectOutcome tells the caller what a lost connection did to the seat.
type DisconnectOutcome struct {
	Removed         bool // seat dropped; nothing to reconnect to
	Reconnectable   bool // seat held for the grace period
	ConnectedHumans int
}

// Disconnect handles a lost transport for playerID. A waiting room drops the
// seat; otherwise the seat is held and a running game pauses.
func (r *Room) Disconnect(playerID uuid.UUID) (DisconnectOutcome, error) {
	r.mu.Lock()
	defer r.unlockAndFlush()

	idx := r.indexOf(playerID)
	if idx < 0 {
		return DisconnectOutcome{ConnectedHumans: r.connectedHumans()}, ErrNotInRoom
	}
	p := r.players[idx]
	if !p.Connected {
		return DisconnectOutcome{Reconnectable: true, ConnectedHumans: r.connectedHumans()}, nil
	}

	if r.status == StatusWaiting || r.closed {
		r.removeAt(idx)
		return DisconnectOutcome{Removed: true, ConnectedHumans: r.connectedHumans()}, nil
	}

	p.Connected = false
	p.ConnID = uuid.Nil
	p.DisconnectedAt = r.now()
	grace := int(r.gracePeriod / time.Second)
	r.log.WithField("player", p.ID).Infof("%s disconnected", p.Name)

	if r.status == StatusPlaying {
		r.status = StatusPaused
		r.turnID++
		r.stopTimers()
		r.logAction(p.ID, "pause", nil)
		r.broadcast(models.MsgGamePaused, map[string]any{
			"player_name":  p.Name,
			"grace_period": grace,
		})
	}
	r.broadcast(models.MsgPlayerDisconnected, map[string]any{
		"player_id":     p.ID,
		"player_name":   p.Name,
		"can_reconnect": true,
		"grace_period":  grace,
	})
	return DisconnectOutcome{Reconnectable: true, ConnectedHumans: r.connectedHumans()}, nil
}

// Reconnect binds connID to a held seat. A paused game resumes once every
// human seat is connected again.
func (r *Room) Reconnect(playerID, connID uuid.UUID) error {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if r.closed {
		return ErrRoomClosed
	}
	p := r.player(playerID)
	if p == nil {
		return ErrNotInRoom
	}
	if p.Connected {
		return ErrNotDisconnected
	}
	p.Connected = true
	p.ConnID = connID
	p.DisconnectedAt = time.Time{}
	r.log.WithField("player", p.ID).Infof("%s reconnected", p.Name)

	payload := map[string]any{
		"room_code": r.Code,
		"player_id": p.ID,
		"players":   r.roster(),
		"status":    r.status,
	}
	if r.game != nil {
		if v, err := r.viewFor(p.ID); err == nil {
			payload["game"] = v
		}
	}
	r.queue(connID, models.MsgReconnected, payload)
	r.broadcastExcept(p.ID, models.MsgPlayerReconnected, map[string]any{
		"player_id":   p.ID,
		"player_name": p.Name,
	})

	if r.status == StatusPaused && r.allHumansConnected() {
		r.status = StatusPlaying
		r.lastActor = uuid.Nil
		r.logAction(p.ID, "resume", nil)
		r.broadcast(models.MsgGameResumed, map[string]any{"player_name": p.Name})
		r.broadcastViews(models.MsgGameUpdate)
		r.startTurn()
	}
	return nil
}

func (r *Room) allHumansConnected() bool {
	for _, p := range r.players {
		if !p.IsAI() && !p.Connected {
			return false
		}
	}
	return true
}

// ExpireDisconnected resolves seats whose grace period ran out at now. A
// paused game is forfeited by the absent player. It reports whether the room
// is left without any human, connected or held, and should be destroyed.
func (r *Room) ExpireDisconnected(now time.Time) bool {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if r.closed {
		return true
	}
	for i := len(r.players) - 1; i >= 0; i-- {
		p := r.players[i]
		if p.IsAI() || p.Connected || now.Sub(p.DisconnectedAt) < r.gracePeriod {
			continue
		}
		if r.status == StatusPaused && r.game != nil {
			if res, err := r.game.Forfeit(p.ID.String()); err == nil {
				r.log.WithField("player", p.ID).Infof("%s did not return, forfeiting", p.Name)
				r.logAction(p.ID, "forfeit", map[string]any{"reason": "timeout"})
				r.finish(res.Winner, "abandoned")
			}
		}
		if r.status == StatusFinished {
			r.removeAt(i)
		}
	}
	return r.vacant(now)
}

// Vacant reports whether no human is connected or within their grace period.
func (r *Room) Vacant() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed || r.vacant(r.now())
}

func (r *Room) vacant(now time.Time) bool {
	for _, p := range r.players {
		if p.IsAI() {
			continue
		}
		if p.Connected || now.Sub(p.DisconnectedAt) < r.gracePeriod {
			return false
		}
	}
	return true
}

// RequestRematch records playerID's vote. Once every human in a finished room
// has voted the room returns to waiting with the same seats.
func (r *Room) RequestRematch(playerID uuid.UUID) error {
	r.mu.Lock()
	defer r.unlockAndFlush()

	p := r.player(playerID)
	if p == nil {
		return ErrNotInRoom
	}
	if r.closed || r.status != StatusFinished {
		return ErrRematchUnavailable
	}
	r.rematch[playerID] = true

	needed := 0
	for _, s := range r.players {
		if !s.IsAI() {
			needed++
		}
	}
	r.broadcast(models.MsgRematchRequested, map[string]any{
		"player_name": p.Name,
		"requests":    len(r.rematch),
		"needed":      needed,
	})
	if len(r.rematch) < needed {
		return nil
	}

	r.status = StatusWaiting
	r.game = nil
	r.gameID = uuid.Nil
	clear(r.rematch)
	r.log.Info("rematch accepted")
	r.broadcast(models.MsgRematchAccepted, map[string]any{
		"room_code":      r.Code,
		"players":        r.roster(),
		"ready_to_start": len(r.players) == MaxPlayers,
	})
	return nil
}

// Chat relays an already sanitized message to the room.
func (r *Room) Chat(playerID uuid.UUID, text string) error {
	return r.relay(playerID, models.MsgChatMessage, "message", text)
}

// Emote relays an allow-listed emote to the room.
func (r *Room) Emote(playerID uuid.UUID, emote string) error {
	return r.relay(playerID, models.MsgEmoteReceived, "emote", emote)
}

func (r *Room) relay(playerID uuid.UUID, msgType, field, value string) error {
	r.mu.Lock()
	defer r.unlockAndFlush()

	p := r.player(playerID)
	if p == nil {
		return ErrNotInRoom
	}
	r.broadcast(msgType, map[string]any{
		"player_id":   p.ID,
		"player_name": p.Name,
		field:         value,
		"timestamp":   r.now().Unix(),
	})
	return nil
}
