package engine

import (
	"encoding/json"
	"fmt"
)

// Suit is one of the four Swiss suits. Packed into the upper 4 bits of Card.
type Suit uint8

const (
	SuitRosen    Suit = 0
	SuitSchellen Suit = 1
	SuitSchilten Suit = 2
	SuitEichel   Suit = 3

	NumSuits = 4
)

// Rank is one of the eight Swiss ranks. Packed into the lower 4 bits of Card.
type Rank uint8

const (
	RankSix   Rank = 0
	RankSeven Rank = 1
	RankEight Rank = 2
	RankNine  Rank = 3
	RankUnder Rank = 4 // U, the jack equivalent
	RankOber  Rank = 5 // O, the queen equivalent
	RankKing  Rank = 6
	RankAce   Rank = 7

	NumRanks = 8
)

var suitNames = [NumSuits]string{"rosen", "schellen", "schilten", "eichel"}

var rankNames = [NumRanks]string{"6", "7", "8", "9", "U", "O", "K", "A"}

func (s Suit) String() string {
	if int(s) < NumSuits {
		return suitNames[s]
	}
	return fmt.Sprintf("suit(%d)", uint8(s))
}

// Valid reports whether s is one of the four suits.
func (s Suit) Valid() bool { return int(s) < NumSuits }

func (r Rank) String() string {
	if int(r) < NumRanks {
		return rankNames[r]
	}
	return fmt.Sprintf("rank(%d)", uint8(r))
}

// ParseSuit maps a wire name ("rosen", ...) to a Suit.
func ParseSuit(name string) (Suit, error) {
	for i, n := range suitNames {
		if n == name {
			return Suit(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidColor, name)
}

// ParseRank maps a wire value ("6" .. "A") to a Rank.
func ParseRank(value string) (Rank, error) {
	for i, n := range rankNames {
		if n == value {
			return Rank(i), nil
		}
	}
	return 0, fmt.Errorf("unknown card value %q", value)
}

// AllSuits lists the suits in deck order.
func AllSuits() []Suit {
	return []Suit{SuitRosen, SuitSchellen, SuitSchilten, SuitEichel}
}

// Card is a packed uint8: upper 4 bits = suit, lower 4 bits = rank.
type Card uint8

// NoCard represents the absence of a card.
const NoCard Card = 0xFF

// NewCard constructs a Card from suit and rank.
func NewCard(suit Suit, rank Rank) Card {
	return Card((uint8(suit) << 4) | (uint8(rank) & 0x0F))
}

// Suit returns the suit bits (upper 4).
func (c Card) Suit() Suit { return Suit(uint8(c) >> 4) }

// Rank returns the rank bits (lower 4).
func (c Card) Rank() Rank { return Rank(uint8(c) & 0x0F) }

// Valid reports whether c encodes one of the 32 deck cards.
func (c Card) Valid() bool {
	return c != NoCard && c.Suit().Valid() && int(c.Rank()) < NumRanks
}

// IsRoseOber reports whether c is the Ober of rosen, the only draw-four card.
func (c Card) IsRoseOber() bool {
	return c.Suit() == SuitRosen && c.Rank() == RankOber
}

func (c Card) String() string {
	if !c.Valid() {
		return "none"
	}
	return c.Rank().String() + " " + c.Suit().String()
}

type cardJSON struct {
	Suit  string `json:"suit"`
	Value string `json:"value"`
}

// MarshalJSON encodes a card as {"suit":"rosen","value":"7"}.
func (c Card) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(cardJSON{Suit: c.Suit().String(), Value: c.Rank().String()})
}

// UnmarshalJSON decodes the {"suit","value"} form.
func (c *Card) UnmarshalJSON(data []byte) error {
	var cj cardJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}
	s, err := ParseSuit(cj.Suit)
	if err != nil {
		return err
	}
	r, err := ParseRank(cj.Value)
	if err != nil {
		return err
	}
	*c = NewCard(s, r)
	return nil
}

// Effect is the special effect left behind by the most recent play.
type Effect uint8

const (
	EffectNone  Effect = iota // 0
	EffectSeven               // 1: draw two, stackable with sevens
	EffectOber                // 2: draw four, stackable with the rose Ober
	EffectEight               // 3: skip the next player
	EffectUnder               // 4: player picks the color
	EffectAce                 // 5: cover with same suit or another ace
)

var effectNames = [...]string{"", "7", "O", "8", "U", "A"}

func (e Effect) String() string {
	if int(e) < len(effectNames) {
		return effectNames[e]
	}
	return fmt.Sprintf("effect(%d)", uint8(e))
}

// MarshalJSON encodes EffectNone as null and others by their card symbol.
func (e Effect) MarshalJSON() ([]byte, error) {
	if e == EffectNone {
		return []byte("null"), nil
	}
	return json.Marshal(e.String())
}
