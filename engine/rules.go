package engine

// HouseRules holds configurable game rule settings.
type HouseRules struct {
	CardsPerPlayer   int
	PenaltyDrawCount int
	MessageLogSize   int  // messages kept in the game log
	VisibleMessages  int  // messages surfaced in a player view
	SeppAtOneCard    bool // if true, Sepp may be announced with one card left
}

// DefaultHouseRules returns the standard Tschau Sepp rules.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		CardsPerPlayer:   7,
		PenaltyDrawCount: 2,
		MessageLogSize:   20,
		VisibleMessages:  5,
		SeppAtOneCard:    false,
	}
}

func (r *HouseRules) normalize() {
	d := DefaultHouseRules()
	if r.CardsPerPlayer <= 0 || r.CardsPerPlayer*NumPlayers >= DeckSize {
		r.CardsPerPlayer = d.CardsPerPlayer
	}
	if r.PenaltyDrawCount <= 0 {
		r.PenaltyDrawCount = d.PenaltyDrawCount
	}
	if r.MessageLogSize <= 0 {
		r.MessageLogSize = d.MessageLogSize
	}
	if r.VisibleMessages <= 0 || r.VisibleMessages > r.MessageLogSize {
		r.VisibleMessages = min(d.VisibleMessages, r.MessageLogSize)
	}
}
