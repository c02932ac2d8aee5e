package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerKind distinguishes human seats from AI seats.
type PlayerKind uint8

const (
	KindHuman PlayerKind = iota
	KindAI
)

func (k PlayerKind) String() string {
	if k == KindAI {
		return "ai"
	}
	return "human"
}

// Player is a seat in a room. The engine owns the hand; this struct carries
// the session-level identity and connection state.
type Player struct {
	ID     uuid.UUID  `json:"id"`   // Persistent for the lifetime of the room.
	ConnID uuid.UUID  `json:"-"`    // Current transport connection; uuid.Nil for AI or while disconnected.
	Name   string     `json:"name"` // Sanitized display name.
	Kind   PlayerKind `json:"-"`

	// Difficulty is set for AI seats only.
	Difficulty string `json:"difficulty,omitempty"`

	Connected      bool      `json:"connected"`
	DisconnectedAt time.Time `json:"-"`
}

// NewHuman creates a connected human seat bound to connID.
func NewHuman(connID uuid.UUID, name string) *Player {
	return &Player{
		ID:        uuid.New(),
		ConnID:    connID,
		Name:      name,
		Kind:      KindHuman,
		Connected: true,
	}
}

// NewAI creates an AI seat. AI seats are always connected.
func NewAI(name, difficulty string) *Player {
	return &Player{
		ID:         uuid.New(),
		Name:       name,
		Kind:       KindAI,
		Difficulty: difficulty,
		Connected:  true,
	}
}

// IsAI reports whether the seat is driven by a strategy.
func (p *Player) IsAI() bool { return p.Kind == KindAI }

// PlayerSummary is the public roster entry.
type PlayerSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Connected bool      `json:"connected"`
	IsAI      bool      `json:"is_ai,omitempty"`
}

// Summary returns the public roster entry for p.
func (p *Player) Summary() PlayerSummary {
	return PlayerSummary{ID: p.ID, Name: p.Name, Connected: p.Connected, IsAI: p.IsAI()}
}
