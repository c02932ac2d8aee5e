package game

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/tschausepp/engine"
	"github.com/jason-s-yu/tschausepp/internal/ai"
	"github.com/jason-s-yu/tschausepp/internal/cache"
	"github.com/jason-s-yu/tschausepp/internal/database"
	"github.com/jason-s-yu/tschausepp/internal/models"
)

// mockSender captures outbound messages per connection.
type mockSender struct {
	mu   sync.Mutex
	msgs map[uuid.UUID][]models.ServerMessage
}

func newMockSender() *mockSender {
	return &mockSender{msgs: make(map[uuid.UUID][]models.ServerMessage)}
}

func (s *mockSender) Send(conn uuid.UUID, msg models.ServerMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[conn] = append(s.msgs[conn], msg)
}

func (s *mockSender) count(conn uuid.UUID, msgType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.msgs[conn] {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

func (s *mockSender) last(conn uuid.UUID, msgType string) (models.ServerMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.msgs[conn]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Type == msgType {
			return list[i], true
		}
	}
	return models.ServerMessage{}, false
}

func (s *mockSender) first(conn uuid.UUID, msgType string) (models.ServerMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs[conn] {
		if m.Type == msgType {
			return m, true
		}
	}
	return models.ServerMessage{}, false
}

func (s *mockSender) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = make(map[uuid.UUID][]models.ServerMessage)
}

// mockActions records historian publishes.
type mockActions struct {
	mu   sync.Mutex
	recs []cache.GameActionRecord
}

func (m *mockActions) Publish(_ context.Context, rec cache.GameActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *mockActions) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r.ActionType)
	}
	return out
}

type mockResults struct {
	mu  sync.Mutex
	got []database.GameResult
}

func (m *mockResults) Record(_ context.Context, res database.GameResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, res)
	return nil
}

func (m *mockResults) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.got)
}

// fastStrategy removes the thinking delay from a stock strategy. It does not
// implement ai.Caller, so the seat never forgets a call.
type fastStrategy struct{ ai.Strategy }

func (fastStrategy) ThinkingDelay() time.Duration { return 0 }

type testRoom struct {
	*Room
	sender  *mockSender
	actions *mockActions
	results *mockResults
	a, b    *models.Player
}

// setupRoom builds a room with two seated humans. mutate may adjust options.
func setupRoom(t *testing.T, mutate func(*Options)) *testRoom {
	t.Helper()
	tr := &testRoom{sender: newMockSender(), actions: &mockActions{}, results: &mockResults{}}
	opts := Options{
		TurnDuration: time.Minute,
		GracePeriod:  time.Minute,
		AIStepDelay:  time.Millisecond,
		Sender:       tr.sender,
		Actions:      tr.actions,
		Results:      tr.results,
		Rand:         rand.New(rand.NewSource(7)),
	}
	if mutate != nil {
		mutate(&opts)
	}
	tr.Room = NewRoom("ABC123", opts)
	t.Cleanup(tr.Close)

	tr.a = models.NewHuman(uuid.New(), "Anna")
	tr.b = models.NewHuman(uuid.New(), "Beat")
	require.NoError(t, tr.AddPlayer(tr.a, models.MsgRoomCreated))
	require.NoError(t, tr.AddPlayer(tr.b, models.MsgRoomJoined))
	return tr
}

// withGame runs fn against the engine state under the room lock.
func (tr *testRoom) withGame(fn func(g *engine.GameState)) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	fn(tr.game)
}

// current returns the seat on turn.
func (tr *testRoom) current() *models.Player {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.currentPlayer()
}

func (tr *testRoom) other(p *models.Player) *models.Player {
	if p.ID == tr.a.ID {
		return tr.b
	}
	return tr.a
}

func (tr *testRoom) handSize(p *models.Player) int {
	n := 0
	tr.withGame(func(g *engine.GameState) {
		n = len(g.Players[g.PlayerIndex(p.ID.String())].Hand)
	})
	return n
}

func payloadOf(t *testing.T, msg models.ServerMessage) map[string]any {
	t.Helper()
	m, ok := msg.Payload.(map[string]any)
	require.True(t, ok, "payload of %s is %T", msg.Type, msg.Payload)
	return m
}

// ---------------------------------------------------------------------------
// Roster
// ---------------------------------------------------------------------------

func TestAddPlayerRepliesAndNotifies(t *testing.T) {
	tr := setupRoom(t, nil)

	created, ok := tr.sender.last(tr.a.ConnID, models.MsgRoomCreated)
	require.True(t, ok)
	assert.Equal(t, "ABC123", payloadOf(t, created)["room_code"])
	assert.Equal(t, false, payloadOf(t, created)["ready_to_start"])

	joined, ok := tr.sender.last(tr.b.ConnID, models.MsgRoomJoined)
	require.True(t, ok)
	assert.Equal(t, true, payloadOf(t, joined)["ready_to_start"])

	assert.Equal(t, 1, tr.sender.count(tr.a.ConnID, models.MsgPlayerJoined))
	assert.Zero(t, tr.sender.count(tr.b.ConnID, models.MsgPlayerJoined))

	err := tr.AddPlayer(models.NewHuman(uuid.New(), "Carla"), models.MsgRoomJoined)
	assert.ErrorIs(t, err, ErrRoomFull)
	_, err = tr.AddAI(ai.Easy, "")
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestStartRequiresTwoSeats(t *testing.T) {
	r := NewRoom("XYZ999", Options{Sender: newMockSender()})
	defer r.Close()
	require.NoError(t, r.AddPlayer(models.NewHuman(uuid.New(), "Solo"), models.MsgRoomCreated))
	assert.ErrorIs(t, r.Start(), ErrNotEnoughPlayers)

	p, err := r.AddAI(ai.Medium, "")
	require.NoError(t, err)
	assert.True(t, p.IsAI())
	assert.Contains(t, p.Name, "Bot-")
	assert.Len(t, r.Roster(), 2)
}

func TestLeaveWhileWaiting(t *testing.T) {
	tr := setupRoom(t, nil)
	left, err := tr.Leave(tr.b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, left)
	assert.Equal(t, 1, tr.sender.count(tr.a.ConnID, models.MsgPlayerLeft))

	_, err = tr.Leave(tr.b.ID)
	assert.ErrorIs(t, err, ErrNotInRoom)
}

// ---------------------------------------------------------------------------
// Game flow
// ---------------------------------------------------------------------------

func TestStartSendsPrivateViews(t *testing.T) {
	tr := setupRoom(t, nil)
	require.NoError(t, tr.Start())
	assert.Equal(t, StatusPlaying, tr.Status())
	assert.ErrorIs(t, tr.Start(), ErrAlreadyStarted)

	for _, p := range []*models.Player{tr.a, tr.b} {
		msg, ok := tr.sender.last(p.ConnID, models.MsgGameStarted)
		require.True(t, ok, "game_started for %s", p.Name)
		v, ok := msg.Payload.(GameView)
		require.True(t, ok)
		assert.Equal(t, p.ID.String(), v.PlayerID)
		assert.Len(t, v.Hand, 7)
		require.Len(t, v.OtherPlayers, 1)
		assert.Equal(t, 7, v.OtherPlayers[0].CardCount)
		assert.Equal(t, "ABC123", v.RoomCode)
		assert.Equal(t, 60, v.TurnTimeLimit)

		turn, ok := tr.sender.last(p.ConnID, models.MsgTurnStarted)
		require.True(t, ok)
		assert.Equal(t, tr.current().ID, payloadOf(t, turn)["player_id"])
	}
	assert.Contains(t, tr.actions.typesEventually(t), "game_start")
}

func (m *mockActions) typesEventually(t *testing.T) []string {
	t.Helper()
	require.Eventually(t, func() bool { return len(m.types()) > 0 }, time.Second, 5*time.Millisecond)
	return m.types()
}

func TestActionsBeforeStart(t *testing.T) {
	tr := setupRoom(t, nil)
	assert.ErrorIs(t, tr.DrawCard(tr.a.ID), ErrNotPlaying)
	assert.ErrorIs(t, tr.CallTschau(tr.a.ID), ErrNotPlaying)
	assert.ErrorIs(t, tr.DrawCard(uuid.New()), ErrNotInRoom)
	assert.ErrorIs(t, tr.Forfeit(tr.a.ID), ErrNotPlaying)
	_, err := tr.View(tr.a.ID)
	assert.ErrorIs(t, err, ErrNotPlaying)
}

func TestDrawAdvancesTurn(t *testing.T) {
	tr := setupRoom(t, nil)
	require.NoError(t, tr.Start())
	tr.sender.reset()

	cur := tr.current()
	before := tr.handSize(cur)
	gen := tr.TurnID()

	require.NoError(t, tr.DrawCard(cur.ID))
	assert.Greater(t, tr.handSize(cur), before)
	assert.Greater(t, tr.TurnID(), gen)
	assert.Equal(t, tr.other(cur).ID, tr.current().ID)

	for _, p := range []*models.Player{tr.a, tr.b} {
		assert.Equal(t, 1, tr.sender.count(p.ConnID, models.MsgGameUpdate))
		assert.Equal(t, 1, tr.sender.count(p.ConnID, models.MsgTurnStarted))
	}

	err := tr.DrawCard(cur.ID)
	assert.ErrorIs(t, err, engine.ErrNotYourTurn)
}

func TestRejectedMoveKeepsTurn(t *testing.T) {
	tr := setupRoom(t, nil)
	require.NoError(t, tr.Start())
	tr.sender.reset()

	cur := tr.current()
	gen := tr.TurnID()

	// A card held by the opponent is never in the current hand.
	var foreign engine.Card
	tr.withGame(func(g *engine.GameState) {
		foreign = g.Players[g.PlayerIndex(tr.other(cur).ID.String())].Hand[0]
	})
	err := tr.PlayCard(cur.ID, foreign)
	assert.ErrorIs(t, err, engine.ErrCardNotInHand)
	assert.Equal(t, gen, tr.TurnID())
	assert.Zero(t, tr.sender.count(cur.ConnID, models.MsgGameUpdate))
}

func TestPlayLegalCard(t *testing.T) {
	tr := setupRoom(t, nil)
	require.NoError(t, tr.Start())

	// Draw until someone holds a legal card, then play it.
	for i := 0; i < 40; i++ {
		cur := tr.current()
		var legal []engine.Card
		tr.withGame(func(g *engine.GameState) { legal = g.LegalPlays(cur.ID.String()) })
		if len(legal) == 0 {
			require.NoError(t, tr.DrawCard(cur.ID))
			continue
		}
		before := tr.handSize(cur)
		tr.sender.reset()
		require.NoError(t, tr.PlayCard(cur.ID, legal[0]))

		msg, ok := tr.sender.last(tr.other(cur).ConnID, models.MsgGameUpdate)
		require.True(t, ok)
		v := msg.Payload.(GameView)
		assert.Equal(t, legal[0], v.DiscardTop)
		assert.LessOrEqual(t, tr.handSize(cur), before+1, "at most a play plus penalty")
		return
	}
	t.Fatal("no legal play found")
}

func TestTschauCallBroadcast(t *testing.T) {
	tr := setupRoom(t, nil)
	require.NoError(t, tr.Start())
	tr.sender.reset()

	// Seven cards: the call is wrong and costs two.
	require.NoError(t, tr.CallTschau(tr.a.ID))
	msg, ok := tr.sender.last(tr.b.ConnID, models.MsgTschauCalled)
	require.True(t, ok)
	assert.Equal(t, false, payloadOf(t, msg)["success"])
	assert.Equal(t, 9, tr.handSize(tr.a))

	require.NoError(t, tr.CallSepp(tr.b.ID))
	_, ok = tr.sender.last(tr.a.ConnID, models.MsgSeppFailed)
	assert.True(t, ok)
	assert.Equal(t, 9, tr.handSize(tr.b))
}

func TestSeppWinFinishesRoom(t *testing.T) {
	tr := setupRoom(t, nil)
	require.NoError(t, tr.Start())

	// Empty a hand with no cards left to penalize.
	tr.withGame(func(g *engine.GameState) {
		i := g.PlayerIndex(tr.a.ID.String())
		g.Players[i].Hand = nil
		g.Stockpile = nil
	})
	require.NoError(t, tr.CallSepp(tr.a.ID))
	assert.Equal(t, StatusFinished, tr.Status())

	msg, ok := tr.sender.last(tr.b.ConnID, models.MsgGameWon)
	require.True(t, ok)
	assert.Equal(t, tr.a.ID, payloadOf(t, msg)["winner"])
	assert.Equal(t, "sepp", payloadOf(t, msg)["reason"])
	require.Eventually(t, func() bool { return tr.results.len() == 1 }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, tr.DrawCard(tr.b.ID), ErrNotPlaying)
}

func TestLeaveRunningGameForfeits(t *testing.T) {
	tr := setupRoom(t, nil)
	require.NoError(t, tr.Start())

	_, err := tr.Leave(tr.a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, tr.Status())
	msg, ok := tr.sender.last(tr.b.ConnID, models.MsgGameWon)
	require.True(t, ok)
	assert.Equal(t, tr.b.ID, payloadOf(t, msg)["winner"])
	assert.Equal(t, 1, tr.sender.count(tr.b.ConnID, models.MsgPlayerLeft))
}

// ---------------------------------------------------------------------------
// Timers
// ---------------------------------------------------------------------------

func TestTurnTimeoutForcesDraw(t *testing.T) {
	tr := setupRoom(t, func(o *Options) { o.TurnDuration = 30 * time.Millisecond })
	require.NoError(t, tr.Start())
	first := tr.current()

	require.Eventually(t, func() bool {
		return tr.sender.count(tr.a.ConnID, models.MsgTurnTimeout) > 0
	}, 2*time.Second, 5*time.Millisecond)

	msg, _ := tr.sender.first(tr.a.ConnID, models.MsgTurnTimeout)
	p := payloadOf(t, msg)
	assert.Equal(t, first.ID, p["player_id"])
	assert.Equal(t, "draw_card", p["action"])
}

func TestStaleTimerIsIgnored(t *testing.T) {
	tr := setupRoom(t, nil)
	require.NoError(t, tr.Start())

	cur := tr.current()
	stale := tr.TurnID()
	require.NoError(t, tr.DrawCard(cur.ID))

	sizeA, sizeB := tr.handSize(tr.a), tr.handSize(tr.b)
	tr.onTurnTimeout(stale)
	tr.runAIStep(stale)

	assert.Zero(t, tr.sender.count(tr.a.ConnID, models.MsgTurnTimeout))
	assert.Equal(t, sizeA, tr.handSize(tr.a))
	assert.Equal(t, sizeB, tr.handSize(tr.b))
}

func TestTimeoutResolvesPendingColor(t *testing.T) {
	tr := setupRoom(t, nil)
	require.NoError(t, tr.Start())

	cur := tr.current()
	tr.withGame(func(g *engine.GameState) {
		i := g.PlayerIndex(cur.ID.String())
		g.Players[i].Hand = []engine.Card{
			engine.NewCard(engine.SuitEichel, engine.RankSix),
			engine.NewCard(engine.SuitEichel, engine.RankNine),
			engine.NewCard(engine.SuitRosen, engine.RankKing),
		}
		g.WaitingForColor = true
	})
	tr.onTurnTimeout(tr.TurnID())

	msg, ok := tr.sender.last(cur.ConnID, models.MsgTurnTimeout)
	require.True(t, ok)
	assert.Equal(t, "select_color", payloadOf(t, msg)["action"])
	tr.withGame(func(g *engine.GameState) {
		assert.Equal(t, engine.SuitEichel, g.CurrentColor)
		assert.False(t, g.WaitingForColor)
	})
	assert.Equal(t, 3, tr.handSize(cur))
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

func TestDisconnectPausesAndReconnectResumes(t *testing.T) {
	tr := setupRoom(t, nil)
	require.NoError(t, tr.Start())
	gen := tr.TurnID()

	out, err := tr.Disconnect(tr.b.ID)
	require.NoError(t, err)
	assert.True(t, out.Reconnectable)
	assert.Equal(t, 1, out.ConnectedHumans)
	assert.Equal(t, StatusPaused, tr.Status())
	assert.Greater(t, tr.TurnID(), gen)
	assert.Equal(t, 1, tr.sender.count(tr.a.ConnID, models.MsgGamePaused))
	assert.Equal(t, 1, tr.sender.count(tr.a.ConnID, models.MsgPlayerDisconnected))

	assert.ErrorIs(t, tr.DrawCard(tr.a.ID), ErrNotPlaying)

	conn := uuid.New()
	require.NoError(t, tr.Reconnect(tr.b.ID, conn))
	assert.Equal(t, StatusPlaying, tr.Status())

	msg, ok := tr.sender.last(conn, models.MsgReconnected)
	require.True(t, ok)
	p := payloadOf(t, msg)
	assert.Equal(t, tr.b.ID, p["player_id"])
	v, ok := p["game"].(GameView)
	require.True(t, ok)
	assert.Len(t, v.Hand, 7)

	assert.Equal(t, 1, tr.sender.count(tr.a.ConnID, models.MsgGameResumed))
	assert.Equal(t, 1, tr.sender.count(tr.a.ConnID, models.MsgPlayerReconnected))
	assert.ErrorIs(t, tr.Reconnect(tr.b.ID, uuid.New()), ErrNotDisconnected)
}

func TestDisconnectWhileWaitingRemovesSeat(t *testing.T) {
	tr := setupRoom(t, nil)
	out, err := tr.Disconnect(tr.a.ID)
	require.NoError(t, err)
	assert.True(t, out.Removed)
	assert.Len(t, tr.Roster(), 1)
}

func TestExpireDisconnectedForfeits(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	var clock sync.Mutex
	tr := setupRoom(t, func(o *Options) {
		o.GracePeriod = 2 * time.Minute
		o.Now = func() time.Time {
			clock.Lock()
			defer clock.Unlock()
			return now
		}
	})
	require.NoError(t, tr.Start())
	_, err := tr.Disconnect(tr.b.ID)
	require.NoError(t, err)

	assert.False(t, tr.ExpireDisconnected(now.Add(time.Minute)))
	assert.Equal(t, StatusPaused, tr.Status())

	assert.False(t, tr.ExpireDisconnected(now.Add(2*time.Minute)))
	assert.Equal(t, StatusFinished, tr.Status())
	msg, ok := tr.sender.last(tr.a.ConnID, models.MsgGameWon)
	require.True(t, ok)
	assert.Equal(t, tr.a.ID, payloadOf(t, msg)["winner"])
	assert.Len(t, tr.Roster(), 1)

	_, err = tr.Disconnect(tr.a.ID)
	require.NoError(t, err)
	assert.True(t, tr.ExpireDisconnected(now.Add(10*time.Minute)))
}

func TestRematch(t *testing.T) {
	tr := setupRoom(t, nil)
	require.NoError(t, tr.Start())
	assert.ErrorIs(t, tr.RequestRematch(tr.a.ID), ErrRematchUnavailable)

	require.NoError(t, tr.Forfeit(tr.a.ID))
	require.NoError(t, tr.RequestRematch(tr.a.ID))
	assert.Equal(t, StatusFinished, tr.Status())

	msg, ok := tr.sender.last(tr.b.ConnID, models.MsgRematchRequested)
	require.True(t, ok)
	assert.Equal(t, 1, payloadOf(t, msg)["requests"])
	assert.Equal(t, 2, payloadOf(t, msg)["needed"])

	require.NoError(t, tr.RequestRematch(tr.b.ID))
	assert.Equal(t, StatusWaiting, tr.Status())
	assert.Equal(t, 1, tr.sender.count(tr.a.ConnID, models.MsgRematchAccepted))

	require.NoError(t, tr.Start())
	assert.Equal(t, StatusPlaying, tr.Status())
}

func TestChatAndEmote(t *testing.T) {
	tr := setupRoom(t, nil)
	require.NoError(t, tr.Chat(tr.a.ID, "hoi"))
	require.NoError(t, tr.Emote(tr.b.ID, "🎉"))

	msg, ok := tr.sender.last(tr.b.ConnID, models.MsgChatMessage)
	require.True(t, ok)
	assert.Equal(t, "hoi", payloadOf(t, msg)["message"])
	assert.Equal(t, "Anna", payloadOf(t, msg)["player_name"])

	msg, ok = tr.sender.last(tr.a.ConnID, models.MsgEmoteReceived)
	require.True(t, ok)
	assert.Equal(t, "🎉", payloadOf(t, msg)["emote"])

	assert.ErrorIs(t, tr.Chat(uuid.New(), "x"), ErrNotInRoom)
}

// ---------------------------------------------------------------------------
// AI seats
// ---------------------------------------------------------------------------

func TestAIGamePlaysToCompletion(t *testing.T) {
	sender := newMockSender()
	rules := engine.DefaultHouseRules()
	rules.SeppAtOneCard = true
	r := NewRoom("BOTS01", Options{
		AIStepDelay: time.Millisecond,
		Rules:       rules,
		Sender:      sender,
		Rand:        rand.New(rand.NewSource(3)),
	})
	defer r.Close()

	for range 2 {
		p, err := r.AddAI(ai.Hard, "")
		require.NoError(t, err)
		r.mu.Lock()
		r.strategies[p.ID] = fastStrategy{r.strategies[p.ID]}
		r.mu.Unlock()
	}
	require.NoError(t, r.Start())

	require.Eventually(t, func() bool { return r.Status() == StatusFinished }, 10*time.Second, 10*time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.True(t, r.game.IsGameOver())
	assert.Len(t, r.game.AllCards(), engine.DeckSize)
}

func TestAIAnswersHuman(t *testing.T) {
	sender := newMockSender()
	r := NewRoom("MIX001", Options{
		AIStepDelay: time.Millisecond,
		Sender:      sender,
		Rand:        rand.New(rand.NewSource(11)),
	})
	defer r.Close()

	human := models.NewHuman(uuid.New(), "Anna")
	require.NoError(t, r.AddPlayer(human, models.MsgRoomCreated))
	bot, err := r.AddAI(ai.Medium, "Bot-Test")
	require.NoError(t, err)
	r.mu.Lock()
	r.strategies[bot.ID] = fastStrategy{r.strategies[bot.ID]}
	r.mu.Unlock()

	require.NoError(t, r.Start())
	r.mu.Lock()
	humanFirst := r.currentPlayer().ID == human.ID
	r.mu.Unlock()
	if humanFirst {
		require.NoError(t, r.DrawCard(human.ID))
	}

	// The bot moves on its own and hands the turn back.
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		cur := r.currentPlayer()
		return r.status == StatusPlaying && cur != nil && cur.ID == human.ID && r.lastActor == bot.ID
	}, 5*time.Second, 5*time.Millisecond)
}

// panicOnce blows up on its first card choice and behaves normally afterwards.
type panicOnce struct {
	ai.Strategy
	fired atomic.Bool
}

func (p *panicOnce) ThinkingDelay() time.Duration { return 0 }

func (p *panicOnce) ChooseCard(s ai.Situation) (engine.Card, bool) {
	if p.fired.CompareAndSwap(false, true) {
		panic("strategy failure")
	}
	return p.Strategy.ChooseCard(s)
}

func TestFailedAIStepFallsBackToTimeout(t *testing.T) {
	sender := newMockSender()
	r := NewRoom("STUCK1", Options{
		TurnDuration: 50 * time.Millisecond,
		AIStepDelay:  time.Millisecond,
		Sender:       sender,
		Rand:         rand.New(rand.NewSource(5)),
	})
	defer r.Close()

	human := models.NewHuman(uuid.New(), "Anna")
	require.NoError(t, r.AddPlayer(human, models.MsgRoomCreated))
	bot, err := r.AddAI(ai.Medium, "Bot-Test")
	require.NoError(t, err)
	strat := &panicOnce{}
	r.mu.Lock()
	strat.Strategy = r.strategies[bot.ID]
	r.strategies[bot.ID] = strat
	r.mu.Unlock()

	require.NoError(t, r.Start())
	r.mu.Lock()
	humanFirst := r.currentPlayer().ID == human.ID
	r.mu.Unlock()
	if humanFirst {
		require.NoError(t, r.DrawCard(human.ID))
	}

	botTimedOut := func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		for _, m := range sender.msgs[human.ConnID] {
			if m.Type != models.MsgTurnTimeout {
				continue
			}
			if p, ok := m.Payload.(map[string]any); ok && p["player_id"] == bot.ID {
				return true
			}
		}
		return false
	}
	require.Eventually(t, botTimedOut, 2*time.Second, 5*time.Millisecond)
	assert.True(t, strat.fired.Load())

	// The room keeps moving: the turn comes back to the human.
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		cur := r.currentPlayer()
		return r.status != StatusPlaying || (cur != nil && cur.ID == human.ID)
	}, 2*time.Second, 5*time.Millisecond)
}
