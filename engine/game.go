// Package engine implements the Tschau Sepp card game rules.
//
// The engine is a plain state machine with no I/O and no goroutines. It is
// not safe for concurrent use: callers (the service's room layer) serialize
// every mutation. Randomness comes from an inline xorshift generator seeded
// at construction, so a seed fully determines a game.
package engine

import (
	"errors"
	"fmt"
)

const (
	NumPlayers = 2
	DeckSize   = NumSuits * NumRanks // 32
)

// PlayerInfo identifies a seat at construction time.
type PlayerInfo struct {
	ID   string
	Name string
}

// PlayerState holds one seat's hand and call flags.
type PlayerState struct {
	ID           string
	Name         string
	Hand         []Card
	CalledTschau bool
	CalledSepp   bool
}

// GameState holds the complete state of one Tschau Sepp game.
type GameState struct {
	Players         [NumPlayers]PlayerState
	Stockpile       []Card // drawn from the end
	DiscardPile     []Card // top is the last element
	CurrentPlayer   int
	Direction       int // always +1 with two seats
	CurrentColor    Suit
	CurrentValue    Rank
	MustDraw        int
	Effect          Effect
	AceLock         bool
	SkipNext        bool
	WaitingForColor bool
	Winner          string // player ID once decided; terminal
	Started         bool
	TurnNumber      int
	Messages        []string
	RNG             uint64
	Rules           HouseRules
}

// ---------------------------------------------------------------------------
// xorshift64 RNG
// ---------------------------------------------------------------------------

func (g *GameState) nextRand() uint64 {
	x := g.RNG
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	g.RNG = x
	return x
}

// randN returns a random number in [0, n).
func (g *GameState) randN(n uint64) uint64 {
	return g.nextRand() % n
}

func (g *GameState) shuffle(cards []Card) {
	for i := len(cards) - 1; i > 0; i-- {
		j := int(g.randN(uint64(i + 1)))
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// ---------------------------------------------------------------------------
// NewGame and Start
// ---------------------------------------------------------------------------

// NewGame initializes a game for two seats with the given seed and rules.
// The deck is built but not yet shuffled or dealt.
func NewGame(seed uint64, rules HouseRules, players [NumPlayers]PlayerInfo) (*GameState, error) {
	for i, p := range players {
		if p.ID == "" {
			return nil, fmt.Errorf("seat %d has no player id", i)
		}
	}
	if players[0].ID == players[1].ID {
		return nil, errors.New("both seats have the same player id")
	}

	rules.normalize()
	g := &GameState{
		Direction: 1,
		RNG:       seed,
		Rules:     rules,
		Stockpile: NewDeck(),
	}
	if g.RNG == 0 {
		g.RNG = 1 // xorshift can't start at 0
	}
	for i, p := range players {
		g.Players[i] = PlayerState{ID: p.ID, Name: p.Name}
	}
	return g, nil
}

// NewDeck returns the 32 cards in suit-major order.
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for suit := Suit(0); suit < NumSuits; suit++ {
		for rank := Rank(0); rank < NumRanks; rank++ {
			deck = append(deck, NewCard(suit, rank))
		}
	}
	return deck
}

// Start shuffles, deals CardsPerPlayer cards to each seat and flips the
// starting card. Seat 0 moves first unless the starting card skips it.
func (g *GameState) Start() error {
	if g.Started {
		return errors.New("game already started")
	}
	g.shuffle(g.Stockpile)

	// Deal alternately, one card at a time.
	for c := 0; c < g.Rules.CardsPerPlayer; c++ {
		for p := range g.Players {
			g.Players[p].Hand = append(g.Players[p].Hand, g.pop())
		}
	}

	start := g.pop()
	g.DiscardPile = append(g.DiscardPile, start)
	g.CurrentColor = start.Suit()
	g.CurrentValue = start.Rank()
	g.CurrentPlayer = 0
	g.Started = true

	g.applyEffect(start, true)
	g.addMessage(fmt.Sprintf("Game started! First card: %s", start))

	// The starting card counts as played by a virtual seat before seat 0,
	// so an 8 skips seat 0.
	if g.SkipNext {
		g.SkipNext = false
		g.CurrentPlayer = g.OpponentOf(0)
		g.addMessage(fmt.Sprintf("%s is skipped", g.Players[0].Name))
	}
	return nil
}

// pop removes the top stockpile card. Callers guarantee it is non-empty.
func (g *GameState) pop() Card {
	n := len(g.Stockpile) - 1
	c := g.Stockpile[n]
	g.Stockpile = g.Stockpile[:n]
	return c
}

// ---------------------------------------------------------------------------
// Query methods
// ---------------------------------------------------------------------------

// IsGameOver returns true once a winner has been declared.
func (g *GameState) IsGameOver() bool { return g.Winner != "" }

// PlayerIndex returns the seat of id, or -1.
func (g *GameState) PlayerIndex(id string) int {
	for i := range g.Players {
		if g.Players[i].ID == id {
			return i
		}
	}
	return -1
}

// Current returns the seat whose turn it is.
func (g *GameState) Current() *PlayerState { return &g.Players[g.CurrentPlayer] }

// OpponentOf returns the other seat.
func (g *GameState) OpponentOf(seat int) int { return (seat + 1) % NumPlayers }

// DiscardTop returns the top of the discard pile, or NoCard.
func (g *GameState) DiscardTop() Card {
	if len(g.DiscardPile) == 0 {
		return NoCard
	}
	return g.DiscardPile[len(g.DiscardPile)-1]
}

// CardCount returns the number of cards across stockpile, discard and hands.
// It is DeckSize for every reachable state.
func (g *GameState) CardCount() int {
	n := len(g.Stockpile) + len(g.DiscardPile)
	for i := range g.Players {
		n += len(g.Players[i].Hand)
	}
	return n
}

// AllCards returns every card the game holds, in no particular order.
func (g *GameState) AllCards() []Card {
	out := make([]Card, 0, DeckSize)
	out = append(out, g.Stockpile...)
	out = append(out, g.DiscardPile...)
	for i := range g.Players {
		out = append(out, g.Players[i].Hand...)
	}
	return out
}

// addMessage appends to the bounded game log, dropping the oldest entries.
func (g *GameState) addMessage(msg string) {
	g.Messages = append(g.Messages, msg)
	if over := len(g.Messages) - g.Rules.MessageLogSize; over > 0 {
		g.Messages = append(g.Messages[:0], g.Messages[over:]...)
	}
}
