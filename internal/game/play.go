package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/tschausepp/engine"
	"github.com/jason-s-yu/tschausepp/internal/database"
	"github.com/jason-s-yu/tschausepp/internal/models"
)

// Start deals a new game. Requires a full room in the waiting state.
func (r *Room) Start() error {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if r.closed {
		return ErrRoomClosed
	}
	if r.status != StatusWaiting {
		return ErrAlreadyStarted
	}
	if len(r.players) < MaxPlayers {
		return ErrNotEnoughPlayers
	}

	var seats [engine.NumPlayers]engine.PlayerInfo
	for i, p := range r.players {
		seats[i] = engine.PlayerInfo{ID: p.ID.String(), Name: p.Name}
	}
	g, err := engine.NewGame(r.rng.Uint64(), r.rules, seats)
	if err != nil {
		return fmt.Errorf("creating game: %w", err)
	}
	if err := g.Start(); err != nil {
		return fmt.Errorf("starting game: %w", err)
	}

	r.game = g
	r.gameID = uuid.New()
	r.status = StatusPlaying
	r.startedAt = r.now()
	r.actionIndex = 0
	r.lastActor = uuid.Nil
	clear(r.rematch)

	r.log.WithField("game", r.gameID).Infof("game started, first card %s", g.DiscardTop())
	r.logAction(uuid.Nil, "game_start", map[string]any{"first_card": g.DiscardTop().String()})
	r.broadcastViews(models.MsgGameStarted)
	r.startTurn()
	return nil
}

// PlayCard plays card for playerID.
func (r *Room) PlayCard(playerID uuid.UUID, card engine.Card) error {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if err := r.checkPlaying(playerID); err != nil {
		return err
	}
	res, err := r.game.PlayCard(playerID.String(), card)
	if err != nil {
		return err
	}
	r.logAction(playerID, "play_card", map[string]any{"card": card.String(), "penalty": res.Penalty})
	r.afterTurnAction(playerID, res)
	return nil
}

// DrawCard draws for playerID, resolving any pending draw chain.
func (r *Room) DrawCard(playerID uuid.UUID) error {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if err := r.checkPlaying(playerID); err != nil {
		return err
	}
	res, err := r.game.DrawCard(playerID.String())
	if err != nil {
		return err
	}
	r.logAction(playerID, "draw_card", map[string]any{"drawn": res.Drawn})
	r.afterTurnAction(playerID, res)
	return nil
}

// SelectColor resolves a pending Under for playerID.
func (r *Room) SelectColor(playerID uuid.UUID, color engine.Suit) error {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if err := r.checkPlaying(playerID); err != nil {
		return err
	}
	res, err := r.game.SelectColor(playerID.String(), color)
	if err != nil {
		return err
	}
	r.logAction(playerID, "select_color", map[string]any{"color": color.String()})
	r.afterTurnAction(playerID, res)
	return nil
}

// CallTschau announces Tschau for playerID. A wrong call is not an error:
// it is broadcast with success=false after the penalty is applied.
func (r *Room) CallTschau(playerID uuid.UUID) error {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if err := r.checkPlaying(playerID); err != nil {
		return err
	}
	res, err := r.game.CallTschau(playerID.String())
	if err != nil {
		return err
	}
	r.announceTschau(playerID, res)
	return nil
}

func (r *Room) announceTschau(playerID uuid.UUID, res engine.Result) {
	r.logAction(playerID, "call_tschau", map[string]any{"success": res.Called, "penalty": res.Penalty})
	r.broadcast(models.MsgTschauCalled, map[string]any{
		"player_id":   playerID,
		"player_name": r.nameOf(playerID),
		"success":     res.Called,
		"message":     res.Message,
	})
	r.broadcastViews(models.MsgGameUpdate)
}

// CallSepp announces Sepp for playerID; with an empty hand it wins the game.
func (r *Room) CallSepp(playerID uuid.UUID) error {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if err := r.checkPlaying(playerID); err != nil {
		return err
	}
	res, err := r.game.CallSepp(playerID.String())
	if err != nil {
		return err
	}
	r.announceSepp(playerID, res)
	return nil
}

func (r *Room) announceSepp(playerID uuid.UUID, res engine.Result) {
	r.logAction(playerID, "call_sepp", map[string]any{"success": res.Called, "penalty": res.Penalty})
	switch {
	case res.Winner != "":
		r.finish(res.Winner, "sepp")
	case res.Called:
		r.broadcast(models.MsgSeppCalled, map[string]any{
			"player_id":   playerID,
			"player_name": r.nameOf(playerID),
			"message":     res.Message,
		})
		r.broadcastViews(models.MsgGameUpdate)
	default:
		r.broadcast(models.MsgSeppFailed, map[string]any{
			"player_id":   playerID,
			"player_name": r.nameOf(playerID),
			"message":     res.Message,
		})
		r.broadcastViews(models.MsgGameUpdate)
	}
}

// Forfeit concedes the running game.
func (r *Room) Forfeit(playerID uuid.UUID) error {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if r.player(playerID) == nil {
		return ErrNotInRoom
	}
	if r.game == nil || (r.status != StatusPlaying && r.status != StatusPaused) {
		return ErrNotPlaying
	}
	res, err := r.game.Forfeit(playerID.String())
	if err != nil {
		return err
	}
	r.logAction(playerID, "forfeit", nil)
	r.finish(res.Winner, "forfeit")
	return nil
}

// checkPlaying validates room-level preconditions for a game action.
func (r *Room) checkPlaying(playerID uuid.UUID) error {
	if r.closed {
		return ErrRoomClosed
	}
	if r.player(playerID) == nil {
		return ErrNotInRoom
	}
	if r.status != StatusPlaying || r.game == nil {
		return ErrNotPlaying
	}
	return nil
}

// afterTurnAction broadcasts fresh views and moves the turn machinery along
// after an accepted play, draw or color choice. Assumes lock is held.
func (r *Room) afterTurnAction(actor uuid.UUID, res engine.Result) {
	r.lastActor = actor
	if res.Winner != "" {
		r.finish(res.Winner, "sepp")
		return
	}
	r.broadcastViews(models.MsgGameUpdate)
	r.startTurn()
}

// startTurn bumps the freshness token, announces the turn and arms the turn
// timer plus, for AI seats, the AI driver. Assumes lock is held.
func (r *Room) startTurn() {
	r.turnID++
	cur := r.currentPlayer()
	if cur == nil {
		return
	}
	r.broadcast(models.MsgTurnStarted, map[string]any{
		"player_id":   cur.ID,
		"player_name": cur.Name,
		"time_limit":  int(r.turnDuration / time.Second),
	})
	// The turn timer also covers AI seats, so a failed AI step still ends
	// in a forced move.
	r.scheduleTurnTimer(r.turnID)
	if !cur.IsAI() {
		r.stopAITimer()
		return
	}
	delay := r.aiStepDelay
	if cur.ID != r.lastActor {
		if s := r.strategies[cur.ID]; s != nil {
			delay = s.ThinkingDelay()
		}
	}
	r.scheduleAI(r.turnID, delay)
}

// finish ends the game with winnerID (engine string form). Assumes lock is held.
func (r *Room) finish(winnerID string, reason string) {
	r.status = StatusFinished
	r.turnID++
	r.stopTimers()

	winner, _ := uuid.Parse(winnerID)
	name := r.nameOf(winner)
	r.log.WithFields(logrus.Fields{"game": r.gameID, "winner": winner, "reason": reason}).Info("game finished")
	r.logAction(winner, "game_end", map[string]any{"reason": reason})

	r.broadcastViews(models.MsgGameUpdate)
	r.broadcast(models.MsgGameWon, map[string]any{
		"winner":      winner,
		"player_name": name,
		"room_code":   r.Code,
		"reason":      reason,
	})
	r.recordResult(winner, name, reason)
}

func (r *Room) recordResult(winner uuid.UUID, name, reason string) {
	if r.results == nil || r.game == nil {
		return
	}
	res := database.GameResult{
		GameID:     r.gameID,
		RoomCode:   r.Code,
		WinnerID:   winner,
		WinnerName: name,
		Reason:     reason,
		Turns:      r.game.TurnNumber,
		StartedAt:  r.startedAt,
		FinishedAt: r.now(),
	}
	for _, p := range r.players {
		cards := 0
		if i := r.game.PlayerIndex(p.ID.String()); i >= 0 {
			cards = len(r.game.Players[i].Hand)
		}
		res.Players = append(res.Players, database.ResultPlayer{
			PlayerID: p.ID, Name: p.Name, IsAI: p.IsAI(), CardsLeft: cards,
		})
	}
	log := r.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.results.Record(ctx, res); err != nil {
			log.WithError(err).WithField("game", res.GameID).Error("recording game result")
		}
	}()
}

func (r *Room) nameOf(id uuid.UUID) string {
	if p := r.player(id); p != nil {
		return p.Name
	}
	return ""
}
