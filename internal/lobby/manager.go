// Package lobby owns every room of the process: it creates and looks up rooms
// by code, binds transport connections to seats, hands out reconnect tokens
// and sweeps abandoned rooms.
package lobby

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	mrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/tschausepp/internal/ai"
	"github.com/jason-s-yu/tschausepp/internal/auth"
	"github.com/jason-s-yu/tschausepp/internal/game"
	"github.com/jason-s-yu/tschausepp/internal/models"
	"github.com/jason-s-yu/tschausepp/internal/ratelimit"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrAlreadySeated = errors.New("connection already in a room")
	ErrNotSeated     = errors.New("connection not in a room")
)

// Options configures a Manager.
type Options struct {
	// Room is the template for every room. Sender, Logger and Rand are set
	// by the manager.
	Room game.Options

	Sender        game.Sender
	Signer        *auth.Signer       // a random-secret signer when nil
	Limiter       *ratelimit.Limiter // optional
	SweepInterval time.Duration
	Logger        logrus.FieldLogger
	Now           func() time.Time
}

// seat binds a live connection to a player in a room.
type seat struct {
	room   string
	player uuid.UUID
}

// issued is the registry entry of a reconnect token, keyed by its jti. A
// token only opens its seat while the seat is held: heldSince is set when the
// connection drops and the grace period runs from there.
type issued struct {
	room      string
	player    uuid.UUID
	issuedAt  time.Time
	heldSince time.Time
}

// Manager is the process-wide room registry.
type Manager struct {
	mu     sync.Mutex
	rooms  map[string]*game.Room
	seats  map[uuid.UUID]seat // conn -> seat
	tokens map[uuid.UUID]issued
	rng    *mrand.Rand

	roomOpts game.Options
	grace    time.Duration
	sender   game.Sender
	signer   *auth.Signer
	limiter  *ratelimit.Limiter
	log      logrus.FieldLogger
	now      func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a manager and starts its sweep loop.
func NewManager(opts Options) (*Manager, error) {
	m := &Manager{
		rooms:    make(map[string]*game.Room),
		seats:    make(map[uuid.UUID]seat),
		tokens:   make(map[uuid.UUID]issued),
		rng:      mrand.New(mrand.NewSource(time.Now().UnixNano())),
		roomOpts: opts.Room,
		sender:   opts.Sender,
		signer:   opts.Signer,
		limiter:  opts.Limiter,
		log:      opts.Logger,
		now:      opts.Now,
		stopCh:   make(chan struct{}),
	}
	if m.log == nil {
		m.log = logrus.StandardLogger()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.roomOpts.GracePeriod <= 0 {
		m.roomOpts.GracePeriod = 120 * time.Second
	}
	if m.roomOpts.Now == nil {
		m.roomOpts.Now = m.now
	}
	m.grace = m.roomOpts.GracePeriod
	m.roomOpts.Sender = m.sender
	m.roomOpts.Logger = m.log

	if m.signer == nil {
		s, err := auth.NewSigner(nil, m.now)
		if err != nil {
			return nil, err
		}
		m.signer = s
	}

	interval := opts.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	m.wg.Add(1)
	go m.sweepLoop(interval)
	return m, nil
}

// Stop ends the sweep loop and closes every room.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()

		m.mu.Lock()
		defer m.mu.Unlock()
		for code, r := range m.rooms {
			r.Close()
			delete(m.rooms, code)
		}
		m.log.Info("lobby stopped")
	})
}

// Stats reports counts for health checks.
func (m *Manager) Stats() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"rooms":       len(m.rooms),
		"connections": len(m.seats),
		"tokens":      len(m.tokens),
	}
}

// Room returns the room with code.
func (m *Manager) Room(code string) (*game.Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[normalizeCode(code)]
	return r, ok
}

// seatOf resolves conn to its room and player.
func (m *Manager) seatOf(conn uuid.UUID) (*game.Room, uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.seats[conn]
	if !ok {
		return nil, uuid.Nil, ErrNotSeated
	}
	r, ok := m.rooms[s.room]
	if !ok {
		delete(m.seats, conn)
		return nil, uuid.Nil, ErrRoomNotFound
	}
	return r, s.player, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ---------------------------------------------------------------------------
// Room lifecycle
// ---------------------------------------------------------------------------

// CreateRoom opens a room with a fresh code and seats conn in it.
func (m *Manager) CreateRoom(conn uuid.UUID, name string) (*game.Room, *models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seats[conn]; ok {
		return nil, nil, ErrAlreadySeated
	}
	code, err := m.newCode()
	if err != nil {
		return nil, nil, err
	}
	opts := m.roomOpts
	opts.Rand = mrand.New(mrand.NewSource(m.rng.Int63()))
	r := game.NewRoom(code, opts)

	p := models.NewHuman(conn, SanitizeName(name, "Spieler 1"))
	if err := r.AddPlayer(p, models.MsgRoomCreated); err != nil {
		r.Close()
		return nil, nil, err
	}
	m.rooms[code] = r
	m.seats[conn] = seat{room: code, player: p.ID}
	m.log.WithFields(logrus.Fields{"room": code, "player": p.ID}).Info("room created")
	return r, p, nil
}

// newCode draws a unique room code. Assumes lock is held.
func (m *Manager) newCode() (string, error) {
	size := big.NewInt(int64(len(codeAlphabet)))
	for {
		b := make([]byte, codeLength)
		for i := range b {
			n, err := rand.Int(rand.Reader, size)
			if err != nil {
				return "", fmt.Errorf("generating room code: %w", err)
			}
			b[i] = codeAlphabet[n.Int64()]
		}
		if _, taken := m.rooms[string(b)]; !taken {
			return string(b), nil
		}
	}
}

// JoinRoom seats conn in the room with code.
func (m *Manager) JoinRoom(conn uuid.UUID, code, name string) (*game.Room, *models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seats[conn]; ok {
		return nil, nil, ErrAlreadySeated
	}
	r, ok := m.rooms[normalizeCode(code)]
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	p := models.NewHuman(conn, SanitizeName(name, "Spieler 2"))
	if err := r.AddPlayer(p, models.MsgRoomJoined); err != nil {
		return nil, nil, err
	}
	m.seats[conn] = seat{room: r.Code, player: p.ID}
	m.log.WithFields(logrus.Fields{"room": r.Code, "player": p.ID}).Info("player joined")
	return r, p, nil
}

// LeaveRoom vacates conn's seat. A room left without humans is destroyed.
func (m *Manager) LeaveRoom(conn uuid.UUID) error {
	r, player, err := m.seatOf(conn)
	if err != nil {
		return err
	}
	if _, err := r.Leave(player); err != nil && !errors.Is(err, game.ErrNotInRoom) {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seats, conn)
	m.dropSeatTokens(r.Code, player)
	if r.Vacant() {
		m.destroy(r.Code, "empty")
	}
	return nil
}

// AddBot seats an AI in conn's room.
func (m *Manager) AddBot(conn uuid.UUID, difficulty, name string) (*models.Player, error) {
	r, _, err := m.seatOf(conn)
	if err != nil {
		return nil, err
	}
	level, err := ai.ParseDifficulty(difficulty)
	if err != nil {
		return nil, err
	}
	if name != "" {
		name = Sanitize(name, MaxNameLength)
	}
	return r.AddAI(level, name)
}

// StartGame deals in conn's room and hands every seated connection a
// reconnect token for its seat.
func (m *Manager) StartGame(conn uuid.UUID) error {
	r, _, err := m.seatOf(conn)
	if err != nil {
		return err
	}
	if err := r.Start(); err != nil {
		return err
	}

	m.mu.Lock()
	held := make(map[uuid.UUID]uuid.UUID)
	for c, s := range m.seats {
		if s.room == r.Code {
			held[c] = s.player
			m.dropSeatTokens(r.Code, s.player)
		}
	}
	m.mu.Unlock()
	for c, player := range held {
		m.issueToken(c, r.Code, player, time.Time{})
	}
	return nil
}

// destroy closes and forgets a room. Assumes lock is held.
func (m *Manager) destroy(code, reason string) {
	r, ok := m.rooms[code]
	if !ok {
		return
	}
	r.Close()
	delete(m.rooms, code)
	for conn, s := range m.seats {
		if s.room == code {
			delete(m.seats, conn)
		}
	}
	for id, t := range m.tokens {
		if t.room == code {
			delete(m.tokens, id)
		}
	}
	m.log.WithFields(logrus.Fields{"room": code, "reason": reason}).Info("room destroyed")
}

// ---------------------------------------------------------------------------
// Connections
// ---------------------------------------------------------------------------

// Disconnect handles a closed transport. A held seat gets a reconnect token,
// delivered on the departing connection as store_reconnect_token.
func (m *Manager) Disconnect(conn uuid.UUID) {
	if m.limiter != nil {
		m.limiter.Forget(conn)
	}
	r, player, err := m.seatOf(conn)
	if err != nil {
		return
	}

	m.mu.Lock()
	delete(m.seats, conn)
	m.mu.Unlock()

	out, err := r.Disconnect(player)
	if err != nil {
		m.log.WithError(err).WithField("conn", conn).Debug("disconnect")
		return
	}

	if out.Removed {
		m.mu.Lock()
		m.dropSeatTokens(r.Code, player)
		if r.Vacant() {
			m.destroy(r.Code, "empty")
		}
		m.mu.Unlock()
		return
	}
	if !out.Reconnectable {
		return
	}

	// Tokens handed out earlier start their grace period now.
	now := m.now()
	m.mu.Lock()
	for id, t := range m.tokens {
		if t.room == r.Code && t.player == player && t.heldSince.IsZero() {
			t.heldSince = now
			m.tokens[id] = t
		}
	}
	m.mu.Unlock()

	// Best effort: the peer is usually gone already.
	m.issueToken(conn, r.Code, player, now)
}

// issueToken signs a reconnect token for a seat, registers it and sends it to
// conn. A zero held leaves the token dormant until the seat is held.
func (m *Manager) issueToken(conn uuid.UUID, room string, player uuid.UUID, held time.Time) {
	now := m.now()
	var ttl time.Duration
	if !held.IsZero() {
		ttl = m.grace
	}
	token, id, err := m.signer.Issue(room, player, now, ttl)
	if err != nil {
		m.log.WithError(err).WithField("room", room).Error("issuing reconnect token")
		return
	}
	m.mu.Lock()
	m.tokens[id] = issued{room: room, player: player, issuedAt: now, heldSince: held}
	m.mu.Unlock()

	m.send(conn, models.MsgStoreToken, map[string]any{
		"token":      token,
		"expires_in": int(m.grace / time.Second),
	})
}

// dropSeatTokens forgets every token of one seat. Assumes lock is held.
func (m *Manager) dropSeatTokens(room string, player uuid.UUID) {
	for id, t := range m.tokens {
		if t.room == room && t.player == player {
			delete(m.tokens, id)
		}
	}
}

// Connect greets a new connection. With a valid, unused reconnect token for
// a seat held less than the grace period, the connection takes over the
// seat; otherwise it is greeted as a fresh connection and the returned error
// says why the token was refused.
func (m *Manager) Connect(conn uuid.UUID, token string) error {
	if token == "" {
		m.greet(conn)
		return nil
	}
	err := m.reconnect(conn, token)
	if err != nil {
		m.log.WithError(err).WithField("conn", conn).Info("reconnect refused")
		m.greet(conn)
	}
	return err
}

func (m *Manager) greet(conn uuid.UUID) {
	m.send(conn, models.MsgConnected, map[string]any{"connection_id": conn})
}

func (m *Manager) reconnect(conn uuid.UUID, token string) error {
	tok, err := m.signer.Parse(token)
	if err != nil {
		return err
	}

	m.mu.Lock()
	entry, ok := m.tokens[tok.ID]
	if !ok || entry.room != tok.Room || entry.player != tok.PlayerID {
		m.mu.Unlock()
		return fmt.Errorf("%w: unknown or used", auth.ErrInvalidToken)
	}
	if entry.heldSince.IsZero() {
		m.mu.Unlock()
		return fmt.Errorf("%w: seat is not held", auth.ErrInvalidToken)
	}
	delete(m.tokens, tok.ID)
	if m.now().Sub(entry.heldSince) >= m.grace {
		m.mu.Unlock()
		return fmt.Errorf("%w: expired", auth.ErrInvalidToken)
	}
	if _, seated := m.seats[conn]; seated {
		m.mu.Unlock()
		return ErrAlreadySeated
	}
	r, ok := m.rooms[entry.room]
	m.mu.Unlock()
	if !ok {
		return ErrRoomNotFound
	}

	if err := r.Reconnect(entry.player, conn); err != nil {
		return err
	}
	m.mu.Lock()
	m.seats[conn] = seat{room: entry.room, player: entry.player}
	m.dropSeatTokens(entry.room, entry.player)
	m.mu.Unlock()

	m.issueToken(conn, entry.room, entry.player, time.Time{})
	return nil
}

func (m *Manager) send(conn uuid.UUID, msgType string, payload any) {
	if m.sender == nil {
		return
	}
	m.sender.Send(conn, models.ServerMessage{Type: msgType, Payload: payload})
}

// ---------------------------------------------------------------------------
// Sweep
// ---------------------------------------------------------------------------

func (m *Manager) sweepLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stopCh:
			return
		}
	}
}

// Sweep drops expired tokens, forfeits games whose absent player outlived
// the grace period and destroys rooms no human can return to.
func (m *Manager) Sweep() {
	now := m.now()

	m.mu.Lock()
	for id, t := range m.tokens {
		if !t.heldSince.IsZero() && now.Sub(t.heldSince) >= m.grace {
			delete(m.tokens, id)
		}
	}
	rooms := make([]*game.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	for _, r := range rooms {
		if !r.ExpireDisconnected(now) {
			continue
		}
		m.mu.Lock()
		m.destroy(r.Code, "abandoned")
		m.mu.Unlock()
	}
}
