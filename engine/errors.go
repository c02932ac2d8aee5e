package engine

import (
	"errors"
	"fmt"
)

// Rejections returned by the engine. A rejected operation leaves the state untouched.
var (
	ErrNotFound               = errors.New("player not found")
	ErrNotYourTurn            = errors.New("not your turn")
	ErrAwaitingColorSelection = errors.New("waiting for color selection")
	ErrCardNotInHand          = errors.New("card not in hand")
	ErrIllegalCard            = errors.New("card cannot be played")
	ErrNoSelectionPending     = errors.New("no color selection pending")
	ErrInvalidColor           = errors.New("invalid color")
	ErrGameOver               = errors.New("game is already over")
	ErrGameNotStarted         = errors.New("game has not started")

	// ErrMustDraw is an ErrIllegalCard raised while a draw chain is pending.
	ErrMustDraw = fmt.Errorf("%w: must draw or continue the draw chain", ErrIllegalCard)
)

var reasonCodes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "not_found"},
	{ErrNotYourTurn, "not_your_turn"},
	{ErrAwaitingColorSelection, "awaiting_color_selection"},
	{ErrCardNotInHand, "card_not_in_hand"},
	{ErrMustDraw, "must_draw"},
	{ErrIllegalCard, "illegal_card"},
	{ErrNoSelectionPending, "no_selection_pending"},
	{ErrInvalidColor, "invalid_color"},
	{ErrGameOver, "game_over"},
	{ErrGameNotStarted, "game_not_started"},
}

// ReasonCode maps an engine error to its stable wire code.
// Unknown errors map to "rejected".
func ReasonCode(err error) string {
	for _, rc := range reasonCodes {
		if errors.Is(err, rc.err) {
			return rc.code
		}
	}
	return "rejected"
}
