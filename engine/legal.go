package engine

// CanPlay reports whether card may be placed on the discard pile right now.
// Priority: a pending draw chain, then the ace lock, then suit or value match.
func (g *GameState) CanPlay(card Card) bool {
	if !g.Started || !card.Valid() {
		return false
	}

	if g.MustDraw > 0 {
		switch g.Effect {
		case EffectSeven:
			return card.Rank() == RankSeven
		case EffectOber:
			return card.IsRoseOber()
		}
		return false
	}

	if g.AceLock {
		return card.Suit() == g.CurrentColor || card.Rank() == RankAce
	}

	return card.Suit() == g.CurrentColor || card.Rank() == g.CurrentValue
}

// LegalPlays returns the cards in the player's hand that CanPlay accepts.
// It returns nil when it is not that player's turn or a color choice is pending.
func (g *GameState) LegalPlays(playerID string) []Card {
	idx := g.PlayerIndex(playerID)
	if idx < 0 || idx != g.CurrentPlayer || g.WaitingForColor || g.IsGameOver() {
		return nil
	}
	var out []Card
	for _, c := range g.Players[idx].Hand {
		if g.CanPlay(c) {
			out = append(out, c)
		}
	}
	return out
}

// checkTurn runs the shared validation for actions taken on one's own turn.
func (g *GameState) checkTurn(playerID string) (int, error) {
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
	if idx != g.CurrentPlayer {
		return -1, ErrNotYourTurn
	}
	if g.WaitingForColor {
		return -1, ErrAwaitingColorSelection
	}
	return idx, nil
}

func handIndex(hand []Card, card Card) int {
	for i, c := range hand {
		if c == card {
			return i
		}
	}
	return -1
}
