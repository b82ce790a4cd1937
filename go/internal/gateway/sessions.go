package gateway

import (
	"sync"

	"github.com/google/uuid"
)

// sessionStore maps resume tokens to player ids. Player ids appear in every room view, so
// they cannot double as the secret that resumes a session.
type sessionStore struct {
	mu       sync.Mutex
	byToken  map[string]string
	byPlayer map[string]string
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		byToken:  make(map[string]string),
		byPlayer: make(map[string]string),
	}
}

// issue creates a player id and its resume token.
func (s *sessionStore) issue() (playerID, token string) {
	playerID = uuid.NewString()
	token = uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byToken[token] = playerID
	s.byPlayer[playerID] = token
	return playerID, token
}

// resolve returns the player a token belongs to.
func (s *sessionStore) resolve(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	playerID, ok := s.byToken[token]
	return playerID, ok
}

// forget drops the player's token. Resuming with it afterwards starts a new session.
func (s *sessionStore) forget(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token, ok := s.byPlayer[playerID]; ok {
		delete(s.byToken, token)
		delete(s.byPlayer, playerID)
	}
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken)
}
