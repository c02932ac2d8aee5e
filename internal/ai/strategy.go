// Package ai holds the decision makers for computer-controlled seats.
package ai

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/jason-s-yu/tschausepp/engine"
)

// Situation is what a strategy sees when it is asked to move.
type Situation struct {
	Hand     []engine.Card
	Legal    []engine.Card // subset of Hand the engine would accept
	Color    engine.Suit
	Value    engine.Rank
	MustDraw int
	Effect   engine.Effect
}

// Strategy decides moves for an AI seat. Implementations are called with the
// room lock held and must not block.
type Strategy interface {
	// ChooseCard returns the card to play, or false to draw instead.
	ChooseCard(s Situation) (engine.Card, bool)
	// ChooseColor picks the suit after playing an Under.
	ChooseColor(hand []engine.Card) engine.Suit
	// ThinkingDelay is how long the seat appears to deliberate before a step.
	ThinkingDelay() time.Duration
}

// Caller is implemented by strategies that may forget their Tschau or Sepp call.
// Seats whose strategy does not implement it always call on time.
type Caller interface {
	CallsTschau() bool
	CallsSepp() bool
}

// Difficulty names a stock strategy.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ParseDifficulty accepts the wire names; an empty string means Medium.
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(s) {
	case "":
		return Medium, nil
	case Easy, Medium, Hard:
		return Difficulty(s), nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// New creates a stock strategy for the given difficulty.
func New(level Difficulty, rng *rand.Rand) (Strategy, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	switch level {
	case Easy:
		return &basic{level: Easy, rng: rng, minDelay: 1000 * time.Millisecond, maxDelay: 2500 * time.Millisecond, forgetTschau: 0.3, forgetSepp: 0.2}, nil
	case Medium:
		return &basic{level: Medium, rng: rng, minDelay: 800 * time.Millisecond, maxDelay: 2000 * time.Millisecond, forgetTschau: 0.1, forgetSepp: 0.05}, nil
	case Hard:
		return &basic{level: Hard, rng: rng, minDelay: 500 * time.Millisecond, maxDelay: 1500 * time.Millisecond}, nil
	default:
		return nil, fmt.Errorf("unknown difficulty %q", level)
	}
}

var botNames = []string{"Max", "Lisa", "Tom", "Anna", "Felix", "Emma"}

// RandomName returns a display name for a bot seat.
func RandomName(rng *rand.Rand) string {
	return "Bot-" + botNames[rng.Intn(len(botNames))]
}
