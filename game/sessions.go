package game

import (
	"time"

	"github.com/google/uuid"
)

const DefaultMaxPlayersPerSession = 20

// GameSession is a capacity-bounded grouping of connected players. Sessions
// only gate admission; world state is shared across all of them.
type GameSession struct {
	ID         string
	MaxPlayers int
	CreatedAt  time.Time
	players    map[string]struct{}
}

// AddPlayer admits a player, refusing without mutation once the cap is
// reached. Capacity is enforced here and only here, never at eviction.
func (s *GameSession) AddPlayer(playerID string) bool {
	if len(s.players) >= s.MaxPlayers {
		return false
	}
	s.players[playerID] = struct{}{}
	return true
}

func (s *GameSession) RemovePlayer(playerID string) {
	delete(s.players, playerID)
}

func (s *GameSession) PlayerCount() int { return len(s.players) }
func (s *GameSession) IsFull() bool     { return len(s.players) >= s.MaxPlayers }
func (s *GameSession) IsEmpty() bool    { return len(s.players) == 0 }

type sessionManager struct {
	sessions   map[string]*GameSession
	maxPlayers int
}

func newSessionManager(maxPlayers int) *sessionManager {
	return &sessionManager{
		sessions:   make(map[string]*GameSession),
		maxPlayers: maxPlayers,
	}
}

// FindOrCreate returns any session with free capacity, creating one when all
// are full.
func (m *sessionManager) FindOrCreate() *GameSession {
	for _, s := range m.sessions {
		if !s.IsFull() {
			return s
		}
	}

	s := &GameSession{
		ID:         "session_" + uuid.NewString(),
		MaxPlayers: m.maxPlayers,
		CreatedAt:  time.Now(),
		players:    make(map[string]struct{}),
	}
	m.sessions[s.ID] = s
	return s
}

func (m *sessionManager) Get(id string) (*GameSession, bool) {
	s, ok := m.sessions[id]
	return s, ok
}

// RemovePlayer takes a player out of its session and deletes the session once
// it empties; no orphan sessions are retained.
func (m *sessionManager) RemovePlayer(sessionID, playerID string) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	s.RemovePlayer(playerID)
	if s.IsEmpty() {
		delete(m.sessions, sessionID)
	}
}

func (m *sessionManager) Count() int { return len(m.sessions) }
