package api

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// ticketLifetime bounds how long an issued WebSocket ticket stays
	// redeemable.
	ticketLifetime = time.Minute

	// defaultTokenTTL is the access token lifetime in minutes when the
	// config leaves it unset.
	defaultTokenTTL = 15
)

// tokenRequest is the body of POST /auth/token.
type tokenRequest struct {
	Secret string `json:"secret"`
}

// tokenResponse carries the minted bearer token.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleToken exchanges the configured API secret for a short-lived JWT.
// Every other endpoint expects the result as "Authorization: Bearer <token>".
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "request body is not valid JSON")
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.cfg.Auth.Secret)) != 1 {
		writeUnauthorized(w, "secret does not match")
		return
	}

	ttl := s.cfg.Auth.AccessTokenTTL
	if ttl == 0 {
		ttl = defaultTokenTTL
	}

	signed, err := s.mintToken(time.Duration(ttl) * time.Minute)
	if err != nil {
		writeInternalError(w, "token signing failed")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   ttl * 60,
	})
}

// mintToken signs an HS256 JWT carrying issue and expiry times.
func (s *Server) mintToken(ttl time.Duration) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "pi4jd-client",
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return tok.SignedString([]byte(s.cfg.Auth.Secret))
}

// verifyToken checks a bearer token minted by mintToken.
func (s *Server) verifyToken(token string) error {
	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return []byte(s.cfg.Auth.Secret), nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("parsing token: %w", err)
	}
	if !parsed.Valid {
		return fmt.Errorf("token invalid")
	}
	return nil
}

// handleWSTicket hands out a single-use ticket for opening the WebSocket
// stream, so the JWT never appears in a URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     s.tickets.issue(),
		"expires_in": int(ticketLifetime.Seconds()),
	})
}

// ticketStore tracks unredeemed WebSocket tickets by expiry deadline.
type ticketStore struct {
	mu      sync.Mutex
	pending map[string]time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{pending: make(map[string]time.Time)}
}

// randText mirrors crypto/rand.Text from Go 1.24+, which is unavailable on
// older toolchains: 26 characters of the standard RFC 4648 base32 alphabet,
// carrying at least 128 bits of randomness.
func randText() string {
	const base32alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"
	src := make([]byte, 26)
	if _, err := rand.Read(src); err != nil {
		panic("api: reading crypto/rand failed: " + err.Error())
	}
	for i := range src {
		src[i] = base32alphabet[src[i]%32]
	}
	return string(src)
}

// issue mints a ticket valid for ticketLifetime. Expired leftovers are
// swept here, which keeps the map bounded without a background goroutine.
func (ts *ticketStore) issue() string {
	ticket := randText()

	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := time.Now()
	for t, deadline := range ts.pending {
		if now.After(deadline) {
			delete(ts.pending, t)
		}
	}
	ts.pending[ticket] = now.Add(ticketLifetime)
	return ticket
}

// validate redeems a ticket. Each ticket works at most once.
func (ts *ticketStore) validate(ticket string) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	deadline, ok := ts.pending[ticket]
	if !ok {
		return false
	}
	delete(ts.pending, ticket)
	return time.Now().Before(deadline)
}
