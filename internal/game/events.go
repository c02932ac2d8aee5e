package game

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jason-s-yu/tschausepp/engine"
	"github.com/jason-s-yu/tschausepp/internal/cache"
	"github.com/jason-s-yu/tschausepp/internal/models"
)

// GameView is the per-player game state sent in game_started, game_update
// and reconnected messages.
type GameView struct {
	engine.PlayerView
	RoomCode      string `json:"room_code"`
	Status        Status `json:"status"`
	TurnTimeLimit int    `json:"turn_time_limit"` // seconds
}

// queue adds a message for one connection. Assumes lock is held by caller.
func (r *Room) queue(conn uuid.UUID, msgType string, payload any) {
	if conn == uuid.Nil {
		return
	}
	r.outbox = append(r.outbox, delivery{conn: conn, msg: models.ServerMessage{Type: msgType, Payload: payload}})
}

// sendTo queues a message for a seat if it is a connected human.
func (r *Room) sendTo(p *models.Player, msgType string, payload any) {
	if p == nil || p.IsAI() || !p.Connected {
		return
	}
	r.queue(p.ConnID, msgType, payload)
}

// broadcast queues a message for every connected human.
func (r *Room) broadcast(msgType string, payload any) {
	for _, p := range r.players {
		r.sendTo(p, msgType, payload)
	}
}

func (r *Room) broadcastExcept(skip uuid.UUID, msgType string, payload any) {
	for _, p := range r.players {
		if p.ID != skip {
			r.sendTo(p, msgType, payload)
		}
	}
}

// viewFor builds a GameView. Assumes lock is held and a game exists.
func (r *Room) viewFor(playerID uuid.UUID) (GameView, error) {
	v, err := r.game.View(playerID.String())
	if err != nil {
		return GameView{}, ErrNotInRoom
	}
	return GameView{
		PlayerView:    v,
		RoomCode:      r.Code,
		Status:        r.status,
		TurnTimeLimit: int(r.turnDuration / time.Second),
	}, nil
}

// broadcastViews sends each connected human their own view.
func (r *Room) broadcastViews(msgType string) {
	if r.game == nil {
		return
	}
	for _, p := range r.players {
		if p.IsAI() || !p.Connected {
			continue
		}
		v, err := r.viewFor(p.ID)
		if err != nil {
			r.log.WithError(err).WithField("player", p.ID).Warn("building view")
			continue
		}
		r.queue(p.ConnID, msgType, v)
	}
}

// logAction offers an accepted action to the historian without blocking the room.
func (r *Room) logAction(actor uuid.UUID, actionType string, payload map[string]any) {
	r.actionIndex++
	if r.actions == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]any)
	}
	rec := cache.GameActionRecord{
		GameID:        r.gameID,
		RoomCode:      r.Code,
		ActionIndex:   r.actionIndex,
		ActorUserID:   actor,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     r.now().UnixMilli(),
	}
	log := r.log
	go func(rec cache.GameActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.actions.Publish(ctx, rec); err != nil {
			log.WithError(err).Warnf("publishing action %d (%s)", rec.ActionIndex, rec.ActionType)
		}
	}(rec)
}
