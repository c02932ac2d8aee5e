package game

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/tschausepp/engine"
	"github.com/jason-s-yu/tschausepp/internal/ai"
	"github.com/jason-s-yu/tschausepp/internal/models"
)

// ---------------------------------------------------------------------------
// Timer plumbing. All helpers assume the room lock is held.
// ---------------------------------------------------------------------------

func (r *Room) stopTurnTimer() {
	if r.turnTimer != nil {
		r.turnTimer.Stop()
		r.turnTimer = nil
	}
}

func (r *Room) stopAITimer() {
	if r.aiTimer != nil {
		r.aiTimer.Stop()
		r.aiTimer = nil
	}
}

func (r *Room) stopTimers() {
	r.stopTurnTimer()
	r.stopAITimer()
}

// scheduleTurnTimer arms the idle timer for the human on turn gen.
func (r *Room) scheduleTurnTimer(gen uint64) {
	r.stopTurnTimer()
	r.turnTimer = time.AfterFunc(r.turnDuration, func() {
		r.onTurnTimeout(gen)
	})
}

// scheduleAI arms the AI driver for turn gen.
func (r *Room) scheduleAI(gen uint64, delay time.Duration) {
	r.stopAITimer()
	r.aiTimer = time.AfterFunc(delay, func() {
		r.runAIStep(gen)
	})
}

// fresh reports whether a callback captured at gen may still act.
func (r *Room) fresh(gen uint64) bool {
	return !r.closed && r.status == StatusPlaying && r.game != nil && r.turnID == gen
}

// recoverCallback keeps a panicking timer callback from taking the process down.
func (r *Room) recoverCallback(what string) {
	if rec := recover(); rec != nil {
		r.log.WithField("panic", rec).Errorf("%s callback panicked", what)
	}
}

// ---------------------------------------------------------------------------
// Turn timeout
// ---------------------------------------------------------------------------

// onTurnTimeout plays for an idle seat, human or AI: a pending color choice
// is resolved with their most common suit, otherwise they draw.
func (r *Room) onTurnTimeout(gen uint64) {
	r.mu.Lock()
	defer r.unlockAndFlush()
	defer r.recoverCallback("turn timer")

	if !r.fresh(gen) {
		return
	}
	cur := r.currentPlayer()
	if cur == nil {
		return
	}
	if cur.IsAI() {
		r.stopAITimer()
	}

	var (
		res    engine.Result
		err    error
		action string
	)
	if r.game.WaitingForColor {
		color := dominantSuit(r.game.Current().Hand)
		res, err = r.game.SelectColor(cur.ID.String(), color)
		action = "select_color"
		r.logAction(cur.ID, "timeout_select_color", map[string]any{"color": color.String()})
	} else {
		res, err = r.game.DrawCard(cur.ID.String())
		action = "draw_card"
		r.logAction(cur.ID, "timeout_draw", map[string]any{"drawn": res.Drawn})
	}
	if err != nil {
		r.log.WithError(err).WithField("player", cur.ID).Error("applying timeout action")
		return
	}

	r.log.WithFields(logrus.Fields{"player": cur.ID, "turn": gen}).Infof("%s timed out", cur.Name)
	r.broadcast(models.MsgTurnTimeout, map[string]any{
		"player_id":   cur.ID,
		"player_name": cur.Name,
		"action":      action,
	})
	r.afterTurnAction(cur.ID, res)
}

func dominantSuit(hand []engine.Card) engine.Suit {
	var counts [engine.NumSuits]int
	for _, c := range hand {
		counts[c.Suit()]++
	}
	best := engine.SuitRosen
	for _, s := range engine.AllSuits() {
		if counts[s] > counts[best] {
			best = s
		}
	}
	return best
}

// ---------------------------------------------------------------------------
// AI driver
// ---------------------------------------------------------------------------

// runAIStep makes one move for the AI seat on turn gen. afterTurnAction
// reschedules the driver while the AI stays on turn.
func (r *Room) runAIStep(gen uint64) {
	r.mu.Lock()
	defer r.unlockAndFlush()
	defer r.recoverCallback("ai step")

	if !r.fresh(gen) {
		return
	}
	cur := r.currentPlayer()
	if cur == nil || !cur.IsAI() {
		return
	}
	strat := r.strategies[cur.ID]
	if strat == nil {
		r.log.WithField("player", cur.ID).Error("ai seat without strategy")
		return
	}
	id := cur.ID.String()
	caller, _ := strat.(ai.Caller)

	if r.game.WaitingForColor {
		color := strat.ChooseColor(r.game.Current().Hand)
		res, err := r.game.SelectColor(id, color)
		if err != nil {
			r.log.WithError(err).Error("ai color choice")
			return
		}
		r.logAction(cur.ID, "select_color", map[string]any{"color": color.String()})
		r.afterTurnAction(cur.ID, res)
		return
	}

	legal := r.game.LegalPlays(id)
	hand := r.game.Current().Hand
	card, play := strat.ChooseCard(ai.Situation{
		Hand:     append([]engine.Card(nil), hand...),
		Legal:    legal,
		Color:    r.game.CurrentColor,
		Value:    r.game.CurrentValue,
		MustDraw: r.game.MustDraw,
		Effect:   r.game.Effect,
	})
	if play && !containsCard(legal, card) {
		r.log.WithField("card", card).Warn("ai chose an unplayable card, drawing")
		play = false
	}

	if play {
		// Announce before the card leaves the hand.
		switch {
		case len(hand) == 2 && (caller == nil || caller.CallsTschau()):
			if res, err := r.game.CallTschau(id); err == nil {
				r.announceTschau(cur.ID, res)
			}
		case len(hand) == 1 && r.rules.SeppAtOneCard && (caller == nil || caller.CallsSepp()):
			if res, err := r.game.CallSepp(id); err == nil {
				r.announceSepp(cur.ID, res)
			}
		}

		res, err := r.game.PlayCard(id, card)
		if err == nil {
			r.logAction(cur.ID, "play_card", map[string]any{"card": card.String(), "penalty": res.Penalty})
			if res.Winner == "" && len(r.game.Players[r.game.PlayerIndex(id)].Hand) == 0 {
				// Only reachable when the penalty draw found no cards.
				if sres, serr := r.game.CallSepp(id); serr == nil {
					r.lastActor = cur.ID
					r.announceSepp(cur.ID, sres)
					if sres.Winner != "" {
						return
					}
				}
			}
			r.afterTurnAction(cur.ID, res)
			return
		}
		r.log.WithError(err).WithField("card", card).Warn("ai play rejected, drawing")
	}

	res, err := r.game.DrawCard(id)
	if err != nil {
		r.log.WithError(err).Error("ai draw")
		return
	}
	r.logAction(cur.ID, "draw_card", map[string]any{"drawn": res.Drawn})
	r.afterTurnAction(cur.ID, res)
}

func containsCard(cards []engine.Card, c engine.Card) bool {
	for _, x := range cards {
		if x == c {
			return true
		}
	}
	return false
}
