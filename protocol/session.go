package protocol

import (
	"sync"
	"sync/atomic"
	"time"
)

// ConnectionSession represents per-connection state
type ConnectionSession struct {
	ConnID      uint64
	RemoteAddr  string
	User        string
	ConnectedAt time.Time

	mu              sync.RWMutex
	currentDatabase string

	queries atomic.Uint64
}

// NewConnectionSession creates a session for a freshly accepted connection.
func NewConnectionSession(connID uint64, remoteAddr, database string) *ConnectionSession {
	return &ConnectionSession{
		ConnID:          connID,
		RemoteAddr:      remoteAddr,
		ConnectedAt:     time.Now(),
		currentDatabase: database,
	}
}

// CurrentDatabase returns the database selected with USE or COM_INIT_DB.
func (s *ConnectionSession) CurrentDatabase() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentDatabase
}

// SetCurrentDatabase switches the session database.
func (s *ConnectionSession) SetCurrentDatabase(db string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentDatabase = db
}

// SessionInfo is a point-in-time view of a session.
type SessionInfo struct {
	ConnID      uint64    `json:"conn_id"`
	RemoteAddr  string    `json:"remote_addr"`
	User        string    `json:"user"`
	Database    string    `json:"database"`
	ConnectedAt time.Time `json:"connected_at"`
	Queries     uint64    `json:"queries"`
}

// Info snapshots the session.
func (s *ConnectionSession) Info() SessionInfo {
	return SessionInfo{
		ConnID:      s.ConnID,
		RemoteAddr:  s.RemoteAddr,
		User:        s.User,
		Database:    s.CurrentDatabase(),
		ConnectedAt: s.ConnectedAt,
		Queries:     s.queries.Load(),
	}
}
