package ai

import (
	"math/rand"
	"time"

	"github.com/jason-s-yu/tschausepp/engine"
)

// basic implements the three stock difficulty levels.
type basic struct {
	level    Difficulty
	rng      *rand.Rand
	minDelay time.Duration
	maxDelay time.Duration

	// Probabilities of forgetting a call.
	forgetTschau float64
	forgetSepp   float64
}

func (b *basic) ThinkingDelay() time.Duration {
	span := b.maxDelay - b.minDelay
	if span <= 0 {
		return b.minDelay
	}
	return b.minDelay + time.Duration(b.rng.Int63n(int64(span)))
}

func (b *basic) CallsTschau() bool { return b.rng.Float64() >= b.forgetTschau }
func (b *basic) CallsSepp() bool   { return b.rng.Float64() >= b.forgetSepp }

func (b *basic) ChooseCard(s Situation) (engine.Card, bool) {
	if len(s.Legal) == 0 {
		return engine.NoCard, false
	}
	switch b.level {
	case Easy:
		return b.pick(s.Legal), true
	case Medium:
		return b.medium(s), true
	default:
		return b.hard(s), true
	}
}

func (b *basic) ChooseColor(hand []engine.Card) engine.Suit {
	if b.level == Easy {
		return engine.Suit(b.rng.Intn(engine.NumSuits))
	}
	counts := suitCounts(hand)
	best := engine.SuitRosen
	for _, s := range engine.AllSuits() {
		if counts[s] > counts[best] {
			best = s
		}
	}
	return best
}

// medium keeps specials while the hand is long and spends them when it is short.
func (b *basic) medium(s Situation) engine.Card {
	n := len(s.Hand)
	if n > 4 {
		if normal := filter(s.Legal, func(c engine.Card) bool { return !isSpecial(c) }); len(normal) > 0 {
			return b.pick(normal)
		}
	}
	if n <= 3 {
		if attack := filter(s.Legal, isAttack); len(attack) > 0 {
			return b.pick(attack)
		}
		if special := filter(s.Legal, isSpecial); len(special) > 0 {
			return b.pick(special)
		}
	}
	return b.pick(s.Legal)
}

// hard sheds short suits early, attacks late and uses Unders to switch into
// its longest suit.
func (b *basic) hard(s Situation) engine.Card {
	n := len(s.Hand)
	counts := suitCounts(s.Hand)
	normal := filter(s.Legal, func(c engine.Card) bool { return !isSpecial(c) })
	unders := filter(s.Legal, func(c engine.Card) bool { return c.Rank() == engine.RankUnder })

	switch {
	case n > 5:
		if len(normal) > 0 {
			best := normal[0]
			for _, c := range normal[1:] {
				if counts[c.Suit()] < counts[best.Suit()] {
					best = c
				}
			}
			return best
		}
		if eights := filter(s.Legal, rankIs(engine.RankEight)); len(eights) > 0 {
			return b.pick(eights)
		}
		if sevens := filter(s.Legal, rankIs(engine.RankSeven)); len(sevens) > 0 {
			return b.pick(sevens)
		}
	case n <= 3:
		for _, c := range s.Legal {
			if c.IsRoseOber() {
				return c
			}
		}
		if sevens := filter(s.Legal, rankIs(engine.RankSeven)); len(sevens) > 0 {
			return b.pick(sevens)
		}
		if eights := filter(s.Legal, rankIs(engine.RankEight)); len(eights) > 0 {
			return b.pick(eights)
		}
		if len(unders) > 0 && n > 1 && maxCount(counts) > 1 {
			return unders[0]
		}
	case n == 4:
		if len(unders) > 0 {
			best := b.ChooseColor(s.Hand)
			if best != s.Color && counts[best] >= 2 {
				return unders[0]
			}
		}
	}

	if len(normal) > 0 {
		return b.pick(normal)
	}
	return b.pick(s.Legal)
}

func (b *basic) pick(cards []engine.Card) engine.Card {
	return cards[b.rng.Intn(len(cards))]
}

func isSpecial(c engine.Card) bool {
	switch c.Rank() {
	case engine.RankSeven, engine.RankEight, engine.RankUnder, engine.RankAce:
		return true
	}
	return c.IsRoseOber()
}

func isAttack(c engine.Card) bool {
	return c.Rank() == engine.RankSeven || c.Rank() == engine.RankEight
}

func rankIs(r engine.Rank) func(engine.Card) bool {
	return func(c engine.Card) bool { return c.Rank() == r }
}

func filter(cards []engine.Card, keep func(engine.Card) bool) []engine.Card {
	var out []engine.Card
	for _, c := range cards {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func suitCounts(hand []engine.Card) [engine.NumSuits]int {
	var counts [engine.NumSuits]int
	for _, c := range hand {
		if c.Suit().Valid() {
			counts[c.Suit()]++
		}
	}
	return counts
}

func maxCount(counts [engine.NumSuits]int) int {
	m := 0
	for _, n := range counts {
		m = max(m, n)
	}
	return m
}
