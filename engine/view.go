package engine

// OpponentView is what a player may see about another seat.
type OpponentView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CardCount    int    `json:"card_count"`
	CalledTschau bool   `json:"has_called_tschau"`
	CalledSepp   bool   `json:"has_called_sepp"`
}

// PlayerView is the per-player projection of the game. It exposes the
// viewer's own hand and only card counts for everyone else.
type PlayerView struct {
	PlayerID          string         `json:"player_id"`
	Hand              []Card         `json:"hand"`
	OtherPlayers      []OpponentView `json:"other_players"`
	CurrentPlayerID   string         `json:"current_player_id"`
	CurrentPlayerName string         `json:"current_player_name"`
	DiscardTop        Card           `json:"discard_top"`
	CurrentColor      string         `json:"current_color"`
	CurrentValue      string         `json:"current_value"`
	DeckCount         int            `json:"deck_count"`
	WaitingForColor   bool           `json:"waiting_for_color"`
	MustDrawCards     int            `json:"must_draw_cards"`
	SpecialEffect     Effect         `json:"special_effect"`
	Messages          []string       `json:"messages"`
	Winner            string         `json:"winner,omitempty"`
	MyTurn            bool           `json:"my_turn"`
}

// View builds the projection for playerID.
func (g *GameState) View(playerID string) (PlayerView, error) {
	idx := g.PlayerIndex(playerID)
	if idx < 0 {
		return PlayerView{}, ErrNotFound
	}
	self := &g.Players[idx]
	cur := g.Current()

	v := PlayerView{
		PlayerID:          self.ID,
		Hand:              append([]Card{}, self.Hand...),
		CurrentPlayerID:   cur.ID,
		CurrentPlayerName: cur.Name,
		DiscardTop:        g.DiscardTop(),
		DeckCount:         len(g.Stockpile),
		WaitingForColor:   g.WaitingForColor,
		MustDrawCards:     g.MustDraw,
		SpecialEffect:     g.Effect,
		Winner:            g.Winner,
		MyTurn:            g.Started && !g.IsGameOver() && cur.ID == self.ID,
	}
	if g.Started {
		v.CurrentColor = g.CurrentColor.String()
		v.CurrentValue = g.CurrentValue.String()
	}
	for i := range g.Players {
		if i == idx {
			continue
		}
		o := &g.Players[i]
		v.OtherPlayers = append(v.OtherPlayers, OpponentView{
			ID:           o.ID,
			Name:         o.Name,
			CardCount:    len(o.Hand),
			CalledTschau: o.CalledTschau,
			CalledSepp:   o.CalledSepp,
		})
	}

	from := max(0, len(g.Messages)-g.Rules.VisibleMessages)
	v.Messages = append([]string{}, g.Messages[from:]...)
	return v, nil
}
