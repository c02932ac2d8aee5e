package engine

import "fmt"

// Result describes an accepted engine operation.
type Result struct {
	Drawn   int    // cards added to the acting player's hand, penalties included
	Penalty int    // penalty cards among Drawn
	Called  bool   // Tschau/Sepp call accepted
	Winner  string // set when this operation decided the game
	Message string
}

// PlayCard plays card from the player's hand.
func (g *GameState) PlayCard(playerID string, card Card) (Result, error) {
	idx, err := g.checkTurn(playerID)
	if err != nil {
		return Result{}, err
	}
	p := &g.Players[idx]
	pos := handIndex(p.Hand, card)
	if pos < 0 {
		return Result{}, ErrCardNotInHand
	}
	if !g.CanPlay(card) {
		if g.MustDraw > 0 {
			return Result{}, ErrMustDraw
		}
		return Result{}, ErrIllegalCard
	}

	// Stack onto a running draw chain before effects are re-resolved.
	if g.MustDraw > 0 {
		switch {
		case card.Rank() == RankSeven && g.Effect == EffectSeven:
			g.MustDraw += 2
		case card.IsRoseOber() && g.Effect == EffectOber:
			g.MustDraw += 4
		}
	}

	p.Hand = append(p.Hand[:pos], p.Hand[pos+1:]...)
	g.DiscardPile = append(g.DiscardPile, card)
	g.CurrentColor = card.Suit()
	g.CurrentValue = card.Rank()

	// Calls cover only the play that follows them.
	calledTschau, calledSepp := p.CalledTschau, p.CalledSepp
	p.CalledTschau = false
	p.CalledSepp = false

	g.applyEffect(card, false)
	msg := fmt.Sprintf("%s plays %s", p.Name, card)
	g.addMessage(msg)
	res := Result{Message: msg}

	if len(p.Hand) == 1 && !calledTschau {
		n := g.drawInto(idx, g.Rules.PenaltyDrawCount)
		res.Drawn += n
		res.Penalty += n
		g.addMessage(fmt.Sprintf("%s forgot to call TSCHAU! +%d penalty cards", p.Name, n))
	}

	if len(p.Hand) == 0 {
		if calledSepp {
			g.declareWinner(idx)
			res.Winner = p.ID
			return res, nil
		}
		n := g.drawInto(idx, g.Rules.PenaltyDrawCount)
		res.Drawn += n
		res.Penalty += n
		g.addMessage(fmt.Sprintf("%s forgot to call SEPP! +%d penalty cards", p.Name, n))
	}

	if !g.WaitingForColor {
		g.nextTurn()
	}
	return res, nil
}

// DrawCard draws max(1, MustDraw) cards, resolving any draw chain, and ends the turn.
func (g *GameState) DrawCard(playerID string) (Result, error) {
	idx, err := g.checkTurn(playerID)
	if err != nil {
		return Result{}, err
	}
	p := &g.Players[idx]

	want := max(1, g.MustDraw)
	n := g.drawInto(idx, want)
	g.MustDraw = 0
	g.Effect = EffectNone
	p.CalledTschau = false
	p.CalledSepp = false

	msg := fmt.Sprintf("%s draws %d card(s)", p.Name, n)
	g.addMessage(msg)
	g.nextTurn()
	return Result{Drawn: n, Message: msg}, nil
}

// SelectColor resolves the color choice opened by an Under.
func (g *GameState) SelectColor(playerID string, color Suit) (Result, error) {
	if !g.Started {
		return Result{}, ErrGameNotStarted
	}
	if g.IsGameOver() {
		return Result{}, ErrGameOver
	}
	idx := g.PlayerIndex(playerID)
	if idx < 0 {
		return Result{}, ErrNotFound
	}
	if !g.WaitingForColor {
		return Result{}, ErrNoSelectionPending
	}
	if idx != g.CurrentPlayer {
		return Result{}, ErrNotYourTurn
	}
	if !color.Valid() {
		return Result{}, ErrInvalidColor
	}

	g.CurrentColor = color
	g.WaitingForColor = false
	msg := fmt.Sprintf("%s chooses %s", g.Players[idx].Name, color)
	g.addMessage(msg)
	g.nextTurn()
	return Result{Message: msg}, nil
}

// CallTschau announces Tschau. Only valid with exactly two cards in hand;
// a wrong call costs PenaltyDrawCount cards and is reported with Called false.
// It does not require the caller's turn.
func (g *GameState) CallTschau(playerID string) (Result, error) {
	idx, err := g.checkCaller(playerID)
	if err != nil {
		return Result{}, err
	}
	p := &g.Players[idx]

	if len(p.Hand) == 2 {
		p.CalledTschau = true
		msg := fmt.Sprintf("%s calls TSCHAU!", p.Name)
		g.addMessage(msg)
		return Result{Called: true, Message: msg}, nil
	}
	return g.wrongCall(idx, "TSCHAU"), nil
}

// CallSepp announces Sepp. With an empty hand the caller wins. With
// SeppAtOneCard the call may also be made holding one card, and the
// caller then wins by playing it.
func (g *GameState) CallSepp(playerID string) (Result, error) {
	idx, err := g.checkCaller(playerID)
	if err != nil {
		return Result{}, err
	}
	p := &g.Players[idx]

	switch {
	case len(p.Hand) == 0:
		p.CalledSepp = true
		msg := fmt.Sprintf("%s calls SEPP and wins!", p.Name)
		g.addMessage(msg)
		g.declareWinner(idx)
		return Result{Called: true, Winner: p.ID, Message: msg}, nil
	case len(p.Hand) == 1 && g.Rules.SeppAtOneCard:
		p.CalledSepp = true
		msg := fmt.Sprintf("%s calls SEPP!", p.Name)
		g.addMessage(msg)
		return Result{Called: true, Message: msg}, nil
	}
	return g.wrongCall(idx, "SEPP"), nil
}

// Forfeit ends the game in favor of the other seat.
func (g *GameState) Forfeit(playerID string) (Result, error) {
	idx, err := g.checkCaller(playerID)
	if err != nil {
		return Result{}, err
	}
	winner := g.OpponentOf(idx)
	msg := fmt.Sprintf("%s forfeits", g.Players[idx].Name)
	g.addMessage(msg)
	g.declareWinner(winner)
	return Result{Winner: g.Players[winner].ID, Message: msg}, nil
}

func (g *GameState) checkCaller(playerID string) (int, error) {
	if !g.Started {
		return -1, ErrGameNotStarted
	}
	if g.IsGameOver() {
		return -1, ErrGameOver
	}
	idx := g.PlayerIndex(playerID)
	if idx < 0 {
		return -1, ErrNotFound
	}
	return idx, nil
}

func (g *GameState) wrongCall(idx int, call string) Result {
	n := g.drawInto(idx, g.Rules.PenaltyDrawCount)
	msg := fmt.Sprintf("%s calls %s at the wrong time! +%d penalty cards", g.Players[idx].Name, call, n)
	g.addMessage(msg)
	return Result{Drawn: n, Penalty: n, Message: msg}
}

func (g *GameState) declareWinner(idx int) {
	g.Winner = g.Players[idx].ID
	g.MustDraw = 0
	g.WaitingForColor = false
	g.SkipNext = false
}

// applyEffect resolves the special effect of a freshly played card. Every
// play clears the previous effect, skip flag and ace lock first.
func (g *GameState) applyEffect(card Card, isStart bool) {
	g.Effect = EffectNone
	g.SkipNext = false
	g.AceLock = false

	switch card.Rank() {
	case RankSeven:
		if g.MustDraw == 0 {
			g.MustDraw = 2
		}
		g.Effect = EffectSeven
	case RankEight:
		g.SkipNext = true
		g.Effect = EffectEight
	case RankUnder:
		g.Effect = EffectUnder
		if !isStart {
			g.WaitingForColor = true
		}
	case RankOber:
		if card.IsRoseOber() {
			if g.MustDraw == 0 {
				g.MustDraw = 4
			}
			g.Effect = EffectOber
		}
	case RankAce:
		g.AceLock = true
		g.Effect = EffectAce
	}
}

// nextTurn advances one seat, or two when a skip is pending. No-op once decided.
func (g *GameState) nextTurn() {
	if !g.Started || g.IsGameOver() {
		return
	}
	step := 1
	if g.SkipNext {
		step = 2
		g.SkipNext = false
		skipped := (g.CurrentPlayer + g.Direction + NumPlayers) % NumPlayers
		g.addMessage(fmt.Sprintf("%s is skipped", g.Players[skipped].Name))
	}
	g.CurrentPlayer = ((g.CurrentPlayer+step*g.Direction)%NumPlayers + NumPlayers) % NumPlayers
	g.TurnNumber++
	g.addMessage(fmt.Sprintf("%s's turn", g.Current().Name))
}

// drawInto moves up to n cards from the stockpile into a hand, reshuffling
// the discard pile when the stockpile runs dry. Returns the number drawn.
func (g *GameState) drawInto(idx, n int) int {
	drawn := 0
	for ; drawn < n; drawn++ {
		if len(g.Stockpile) == 0 {
			g.attemptReshuffle()
		}
		if len(g.Stockpile) == 0 {
			break
		}
		g.Players[idx].Hand = append(g.Players[idx].Hand, g.pop())
	}
	return drawn
}

// attemptReshuffle moves all discard cards (except the top) back into the stockpile and shuffles.
func (g *GameState) attemptReshuffle() {
	// Need at least 2 cards in discard (one stays, rest go to stockpile).
	if len(g.DiscardPile) <= 1 {
		return
	}
	top := g.DiscardPile[len(g.DiscardPile)-1]
	g.Stockpile = append(g.Stockpile[:0], g.DiscardPile[:len(g.DiscardPile)-1]...)
	g.DiscardPile = append(g.DiscardPile[:0], top)
	g.shuffle(g.Stockpile)
	g.addMessage("Discard pile reshuffled")
}
