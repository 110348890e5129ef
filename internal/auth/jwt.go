package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTicketTTL is how long a console stream ticket stays valid.
const DefaultTicketTTL = 60 * time.Second

const ticketAudience = "console-stream"

// Claims defines the JWT claims structure of a console stream ticket.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TicketIssuer signs short-lived HS256 tickets that let a browser open the
// console websocket, which cannot carry the session header.
type TicketIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTicketIssuer creates an issuer. An empty key is replaced with a random
// one, so tickets do not survive a restart.
func NewTicketIssuer(key []byte, ttl time.Duration) (*TicketIssuer, error) {
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate ticket key: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	return &TicketIssuer{key: key, ttl: ttl, now: time.Now}, nil
}

// GenerateTicket creates a new ticket for username.
func (t *TicketIssuer) GenerateTicket(username string) (string, error) {
	now := t.now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Audience:  jwt.ClaimStrings{ticketAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.key)
}

// ValidateTicket parses and validates a ticket string.
func (t *TicketIssuer) ValidateTicket(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, errors.New("missing ticket")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(ticketAudience),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Username == "" {
		return nil, fmt.Errorf("invalid ticket")
	}
	return claims, nil
}
