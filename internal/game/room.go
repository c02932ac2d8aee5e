// Package game runs one Tschau Sepp room: its roster, status transitions,
// turn timer, AI seats and per-player broadcasts around an engine.GameState.
package game

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/tschausepp/engine"
	"github.com/jason-s-yu/tschausepp/internal/ai"
	"github.com/jason-s-yu/tschausepp/internal/cache"
	"github.com/jason-s-yu/tschausepp/internal/database"
	"github.com/jason-s-yu/tschausepp/internal/models"
)

// Status is the room lifecycle state.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusPaused   Status = "paused"
	StatusFinished Status = "finished"
)

// MaxPlayers is the seat count of a room.
const MaxPlayers = engine.NumPlayers

var (
	ErrRoomFull           = errors.New("room is full")
	ErrAlreadyStarted     = errors.New("game already in progress")
	ErrNotEnoughPlayers   = errors.New("not enough players")
	ErrNotPlaying         = errors.New("no game in progress")
	ErrNotInRoom          = errors.New("player not in room")
	ErrNotDisconnected    = errors.New("player is connected")
	ErrRematchUnavailable = errors.New("rematch not possible")
	ErrRoomClosed         = errors.New("room closed")
)

// Sender delivers a message to one transport connection. Implementations
// must not block; the room calls Send after releasing its lock.
type Sender interface {
	Send(connID uuid.UUID, msg models.ServerMessage)
}

// ActionLogger receives every accepted action, e.g. the Redis historian.
type ActionLogger interface {
	Publish(ctx context.Context, rec cache.GameActionRecord) error
}

// ResultRecorder receives finished games, e.g. the Postgres recorder.
type ResultRecorder interface {
	Record(ctx context.Context, res database.GameResult) error
}

// Options configures a Room.
type Options struct {
	TurnDuration time.Duration
	GracePeriod  time.Duration
	AIStepDelay  time.Duration
	Rules        engine.HouseRules

	Sender  Sender
	Actions ActionLogger   // optional
	Results ResultRecorder // optional
	Logger  logrus.FieldLogger
	Rand    *rand.Rand       // seeds games and bots; time-seeded when nil
	Now     func() time.Time // time.Now when nil
}

type delivery struct {
	conn uuid.UUID
	msg  models.ServerMessage
}

// Room is a single room's mutation domain. Every exported method takes the
// room lock, so callers never hold it themselves.
type Room struct {
	Code string

	mu      sync.Mutex
	players []*models.Player
	status  Status
	game    *engine.GameState
	gameID  uuid.UUID
	closed  bool

	// Turn management
	turnID     uint64 // freshness token; bumped whenever a new turn starts
	lastActor  uuid.UUID
	turnTimer  *time.Timer
	aiTimer    *time.Timer
	strategies map[uuid.UUID]ai.Strategy
	rematch    map[uuid.UUID]bool

	startedAt   time.Time
	actionIndex int
	outbox      []delivery

	turnDuration time.Duration
	gracePeriod  time.Duration
	aiStepDelay  time.Duration
	rules        engine.HouseRules

	sender  Sender
	actions ActionLogger
	results ResultRecorder
	log     logrus.FieldLogger
	rng     *rand.Rand
	now     func() time.Time
}

// NewRoom creates an empty room in the waiting state.
func NewRoom(code string, opts Options) *Room {
	r := &Room{
		Code:         code,
		status:       StatusWaiting,
		strategies:   make(map[uuid.UUID]ai.Strategy),
		rematch:      make(map[uuid.UUID]bool),
		turnDuration: opts.TurnDuration,
		gracePeriod:  opts.GracePeriod,
		aiStepDelay:  opts.AIStepDelay,
		rules:        opts.Rules,
		sender:       opts.Sender,
		actions:      opts.Actions,
		results:      opts.Results,
		rng:          opts.Rand,
		now:          opts.Now,
	}
	if r.turnDuration <= 0 {
		r.turnDuration = 60 * time.Second
	}
	if r.gracePeriod <= 0 {
		r.gracePeriod = 120 * time.Second
	}
	if r.aiStepDelay <= 0 {
		r.aiStepDelay = 500 * time.Millisecond
	}
	if r.rules == (engine.HouseRules{}) {
		r.rules = engine.DefaultHouseRules()
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if r.now == nil {
		r.now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	r.log = log.WithField("room", code)
	return r
}

// unlockAndFlush releases the lock and then delivers queued messages.
func (r *Room) unlockAndFlush() {
	out := r.outbox
	r.outbox = nil
	r.mu.Unlock()
	if r.sender == nil {
		return
	}
	for _, d := range out {
		r.sender.Send(d.conn, d.msg)
	}
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Status returns the current lifecycle state.
func (r *Room) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Roster returns the public seat list.
func (r *Room) Roster() []models.PlayerSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roster()
}

func (r *Room) roster() []models.PlayerSummary {
	out := make([]models.PlayerSummary, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.Summary())
	}
	return out
}

// ConnectedHumans counts human seats with a live connection.
func (r *Room) ConnectedHumans() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectedHumans()
}

func (r *Room) connectedHumans() int {
	n := 0
	for _, p := range r.players {
		if !p.IsAI() && p.Connected {
			n++
		}
	}
	return n
}

// TurnID returns the current freshness token.
func (r *Room) TurnID() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turnID
}

// View returns playerID's projection of the running game.
func (r *Room) View(playerID uuid.UUID) (GameView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.game == nil {
		return GameView{}, ErrNotPlaying
	}
	return r.viewFor(playerID)
}

// Close stops timers; late callbacks become no-ops.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.stopTimers()
}

func (r *Room) player(id uuid.UUID) *models.Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) indexOf(id uuid.UUID) int {
	for i, p := range r.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// currentPlayer maps the engine's current seat back to the roster.
func (r *Room) currentPlayer() *models.Player {
	if r.game == nil {
		return nil
	}
	id, err := uuid.Parse(r.game.Current().ID)
	if err != nil {
		return nil
	}
	return r.player(id)
}

// ---------------------------------------------------------------------------
// Roster changes
// ---------------------------------------------------------------------------

// AddPlayer seats a human. reply is sent to the new player (room_created or
// room_joined); everyone else receives player_joined.
func (r *Room) AddPlayer(p *models.Player, reply string) error {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if r.closed {
		return ErrRoomClosed
	}
	if len(r.players) >= MaxPlayers {
		return ErrRoomFull
	}
	if r.status != StatusWaiting {
		return ErrAlreadyStarted
	}
	r.players = append(r.players, p)
	r.log.WithField("player", p.ID).Infof("%s joined", p.Name)

	r.queue(p.ConnID, reply, map[string]any{
		"room_code":      r.Code,
		"player_id":      p.ID,
		"players":        r.roster(),
		"ready_to_start": len(r.players) == MaxPlayers,
	})
	r.broadcastExcept(p.ID, models.MsgPlayerJoined, r.lobbyPayload())
	return nil
}

// AddAI seats a computer player with a stock strategy.
func (r *Room) AddAI(difficulty ai.Difficulty, name string) (*models.Player, error) {
	r.mu.Lock()
	defer r.unlockAndFlush()

	if r.closed {
		return nil, ErrRoomClosed
	}
	if len(r.players) >= MaxPlayers {
		return nil, ErrRoomFull
	}
	if r.status != StatusWaiting {
		return nil, ErrAlreadyStarted
	}
	strat, err := ai.New(difficulty, rand.New(rand.NewSource(r.rng.Int63())))
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = ai.RandomName(r.rng)
	}
	p := models.NewAI(name, string(difficulty))
	r.players = append(r.players, p)
	r.strategies[p.ID] = strat
	r.log.WithField("difficulty", difficulty).Infof("bot %s seated", name)

	r.broadcast(models.MsgPlayerJoined, r.lobbyPayload())
	return p, nil
}

// Leave removes a seat at the player's request. Leaving a running game
// forfeits it. Returns the number of connected humans left.
func (r *Room) Leave(playerID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.unlockAndFlush()

	idx := r.indexOf(playerID)
	if idx < 0 {
		return r.connectedHumans(), ErrNotInRoom
	}
	if r.status == StatusPlaying || r.status == StatusPaused {
		if res, err := r.game.Forfeit(playerID.String()); err == nil {
			r.logAction(playerID, "forfeit", map[string]any{"reason": "left"})
			r.finish(res.Winner, "forfeit")
		}
	}
	r.removeAt(idx)
	return r.connectedHumans(), nil
}

func (r *Room) removeAt(idx int) {
	p := r.players[idx]
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	delete(r.strategies, p.ID)
	delete(r.rematch, p.ID)
	r.log.WithField("player", p.ID).Infof("%s left", p.Name)
	r.broadcast(models.MsgPlayerLeft, map[string]any{
		"player_id": p.ID,
		"players":   r.roster(),
	})
}

func (r *Room) lobbyPayload() map[string]any {
	return map[string]any{
		"players":        r.roster(),
		"ready_to_start": len(r.players) == MaxPlayers,
	}
}
