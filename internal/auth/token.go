// Package auth signs and verifies the reconnect tokens handed to players
// whose connection dropped mid-game.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "tschausepp"

// ReconnectClaims binds a token to one seat in one room.
type ReconnectClaims struct {
	Room     string `json:"room"`
	PlayerID string `json:"pid"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 reconnect tokens.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner returns a signer for secret. An empty secret is replaced with 32
// random bytes, which invalidates outstanding tokens on restart.
func NewSigner(secret []byte, now func() time.Time) (*Signer, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generating token secret: %w", err)
		}
	}
	if now == nil {
		now = time.Now
	}
	return &Signer{secret: secret, now: now}, nil
}

// Issue signs a token for (room, player) valid for ttl from issuedAt. A ttl
// of zero leaves out the exp claim; the caller's registry then bounds it.
// The returned id is the token's jti, used for single-use bookkeeping.
func (s *Signer) Issue(room string, player uuid.UUID, issuedAt time.Time, ttl time.Duration) (string, uuid.UUID, error) {
	id := uuid.New()
	claims := ReconnectClaims{
		Room:     room,
		PlayerID: player.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       id.String(),
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(ttl))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("signing reconnect token: %w", err)
	}
	return token, id, nil
}

// ErrInvalidToken covers malformed, forged and expired tokens.
var ErrInvalidToken = errors.New("invalid reconnect token")

// Token is a verified reconnect token.
type Token struct {
	ID       uuid.UUID
	Room     string
	PlayerID uuid.UUID
	IssuedAt time.Time
}

// Parse verifies the signature and expiry. NumericDate truncates to seconds,
// so expiry is checked with one second of leeway; the caller's registry holds
// the precise issue time.
func (s *Signer) Parse(token string) (Token, error) {
	claims := &ReconnectClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(time.Second),
	)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return Token{}, fmt.Errorf("%w: bad jti", ErrInvalidToken)
	}
	player, err := uuid.Parse(claims.PlayerID)
	if err != nil {
		return Token{}, fmt.Errorf("%w: bad player id", ErrInvalidToken)
	}
	t := Token{ID: id, Room: claims.Room, PlayerID: player}
	if claims.IssuedAt != nil {
		t.IssuedAt = claims.IssuedAt.Time
	}
	return t, nil
}
