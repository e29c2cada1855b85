package devserver

import (
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"
)

// sessionConn is the part of *websocket.Conn the manager needs.
type sessionConn interface {
	Close(code websocket.StatusCode, reason string) error
}

// SessionManager tracks the one live chat socket per user and each user's
// message rate limiter.
type SessionManager struct {
	perMinute int

	mu       sync.RWMutex
	active   map[string]sessionConn
	limiters map[string]*rate.Limiter
}

// NewSessionManager creates a manager allowing perMinute messages per user.
func NewSessionManager(perMinute int) *SessionManager {
	if perMinute <= 0 {
		perMinute = 20
	}
	return &SessionManager{
		perMinute: perMinute,
		active:    make(map[string]sessionConn),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// GetActive returns the live connection for a user.
func (m *SessionManager) GetActive(userID string) sessionConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[userID]
}

// Register makes conn the user's live connection. A previous one is closed.
func (m *SessionManager) Register(userID string, conn sessionConn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.active[userID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
		slog.Info("Chat session replaced", "user_id", userID)
	}

	m.active[userID] = conn
	slog.Info("Chat session registered", "user_id", userID)
}

// Unregister removes conn if it is still the user's live connection.
func (m *SessionManager) Unregister(userID string, conn sessionConn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.active[userID]; exists && current == conn {
		delete(m.active, userID)
		slog.Info("Chat session unregistered", "user_id", userID)
	}
}

// Allow reports whether the user may send another message now.
func (m *SessionManager) Allow(userID string) bool {
	return m.limiter(userID).Allow()
}

func (m *SessionManager) limiter(userID string) *rate.Limiter {
	m.mu.RLock()
	l, ok := m.limiters[userID]
	m.mu.RUnlock()
	if ok {
		return l
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.limiters[userID]; ok {
		return l
	}
	l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.perMinute)), m.perMinute)
	m.limiters[userID] = l
	return l
}

// CloseAll closes every live connection with reason.
func (m *SessionManager) CloseAll(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, conn := range m.active {
		_ = conn.Close(websocket.StatusGoingAway, reason)
		slog.Info("Chat session closed", "user_id", userID)
	}
	m.active = make(map[string]sessionConn)
}

// Count returns the number of live connections.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}
