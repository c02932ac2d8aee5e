package ai

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/tschausepp/engine"
)

func c(s engine.Suit, r engine.Rank) engine.Card { return engine.NewCard(s, r) }

func newStrategy(t *testing.T, level Difficulty) Strategy {
	t.Helper()
	s, err := New(level, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	return s
}

func TestNewRejectsUnknownDifficulty(t *testing.T) {
	_, err := New("impossible", nil)
	assert.Error(t, err)

	d, err := ParseDifficulty("")
	require.NoError(t, err)
	assert.Equal(t, Medium, d)
	_, err = ParseDifficulty("godlike")
	assert.Error(t, err)
}

func TestChooseCardDrawsWithoutLegalMoves(t *testing.T) {
	for _, level := range []Difficulty{Easy, Medium, Hard} {
		s := newStrategy(t, level)
		_, ok := s.ChooseCard(Situation{Hand: []engine.Card{c(engine.SuitRosen, engine.RankSix)}})
		assert.False(t, ok, level)
	}
}

func TestChooseCardStaysWithinLegal(t *testing.T) {
	hand := []engine.Card{
		c(engine.SuitRosen, engine.RankSix), c(engine.SuitRosen, engine.RankSeven),
		c(engine.SuitEichel, engine.RankKing), c(engine.SuitSchellen, engine.RankUnder),
		c(engine.SuitSchilten, engine.RankNine), c(engine.SuitRosen, engine.RankAce),
	}
	legal := []engine.Card{hand[0], hand[1], hand[5]}
	for _, level := range []Difficulty{Easy, Medium, Hard} {
		s := newStrategy(t, level)
		for i := 0; i < 50; i++ {
			card, ok := s.ChooseCard(Situation{Hand: hand, Legal: legal, Color: engine.SuitRosen, Value: engine.RankNine})
			require.True(t, ok)
			assert.Contains(t, legal, card, level)
		}
	}
}

func TestMediumSavesSpecialsWithLongHand(t *testing.T) {
	s := newStrategy(t, Medium)
	hand := []engine.Card{
		c(engine.SuitRosen, engine.RankSix), c(engine.SuitRosen, engine.RankSeven),
		c(engine.SuitEichel, engine.RankKing), c(engine.SuitSchellen, engine.RankNine),
		c(engine.SuitSchilten, engine.RankNine),
	}
	legal := []engine.Card{hand[0], hand[1]}
	for i := 0; i < 20; i++ {
		card, _ := s.ChooseCard(Situation{Hand: hand, Legal: legal})
		assert.Equal(t, hand[0], card)
	}
}

func TestHardPlaysRoseOberLate(t *testing.T) {
	s := newStrategy(t, Hard)
	hand := []engine.Card{c(engine.SuitRosen, engine.RankOber), c(engine.SuitRosen, engine.RankSix), c(engine.SuitEichel, engine.RankSix)}
	card, ok := s.ChooseCard(Situation{Hand: hand, Legal: hand[:2], Color: engine.SuitRosen})
	require.True(t, ok)
	assert.Equal(t, hand[0], card)
}

func TestHardShedsShortestSuitEarly(t *testing.T) {
	s := newStrategy(t, Hard)
	hand := []engine.Card{
		c(engine.SuitRosen, engine.RankNine), c(engine.SuitEichel, engine.RankNine),
		c(engine.SuitEichel, engine.RankSix), c(engine.SuitEichel, engine.RankKing),
		c(engine.SuitSchellen, engine.RankSix), c(engine.SuitSchellen, engine.RankKing),
	}
	legal := []engine.Card{hand[0], hand[1]} // both nines on a nine
	card, _ := s.ChooseCard(Situation{Hand: hand, Legal: legal, Value: engine.RankNine})
	assert.Equal(t, hand[0], card, "rosen has one card, eichel three")
}

func TestChooseColorPicksLongestSuit(t *testing.T) {
	s := newStrategy(t, Medium)
	hand := []engine.Card{
		c(engine.SuitSchilten, engine.RankSix), c(engine.SuitSchilten, engine.RankKing),
		c(engine.SuitEichel, engine.RankSix),
	}
	assert.Equal(t, engine.SuitSchilten, s.ChooseColor(hand))

	easy := newStrategy(t, Easy)
	for i := 0; i < 20; i++ {
		assert.True(t, easy.ChooseColor(hand).Valid())
	}
}

func TestThinkingDelayWithinRange(t *testing.T) {
	ranges := map[Difficulty][2]time.Duration{
		Easy:   {time.Second, 2500 * time.Millisecond},
		Medium: {800 * time.Millisecond, 2 * time.Second},
		Hard:   {500 * time.Millisecond, 1500 * time.Millisecond},
	}
	for level, r := range ranges {
		s := newStrategy(t, level)
		for i := 0; i < 20; i++ {
			d := s.ThinkingDelay()
			assert.GreaterOrEqual(t, d, r[0], level)
			assert.Less(t, d, r[1], level)
		}
	}
}

func TestHardNeverForgetsCalls(t *testing.T) {
	s := newStrategy(t, Hard)
	caller, ok := s.(Caller)
	require.True(t, ok)
	for i := 0; i < 50; i++ {
		assert.True(t, caller.CallsTschau())
		assert.True(t, caller.CallsSepp())
	}
}
