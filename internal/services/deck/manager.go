package deck

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leorifa93/desires-backend/internal/domain/enums"
	"github.com/leorifa93/desires-backend/internal/domain/model"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session closed")
	ErrUnknownTarget   = errors.New("unknown target")
	ErrForbidden       = errors.New("session belongs to another user")
)

type LedgerView interface {
	ListSentTargetIDs(ctx context.Context, actorID int64) ([]int64, error)
}

type CandidateSource interface {
	FetchForUser(ctx context.Context, userID int64, radiusKM float64, excludeIDs map[int64]struct{}) ([]model.Profile, error)
}

type SwipeProcessor interface {
	Process(ctx context.Context, actorID, targetID int64, decision enums.Decision) error
}

type Config struct {
	RadiusKM      float64
	FetchAttempts int
	RetryBackoff  time.Duration
}

// Manager owns the live discovery sessions. Each user drives at most a
// handful of sessions (one per device); sessions are memory-only and die
// with the process.
type Manager struct {
	ledger LedgerView
	source CandidateSource
	swipes SwipeProcessor
	logger *zap.Logger
	cfg    Config

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(ledger LedgerView, source CandidateSource, swipes SwipeProcessor, logger *zap.Logger, cfg Config) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RadiusKM <= 0 {
		cfg.RadiusKM = 25
	}
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}

	return &Manager{
		ledger:   ledger,
		source:   source,
		swipes:   swipes,
		logger:   logger,
		cfg:      cfg,
		sessions: map[string]*Session{},
	}
}

// StartSession allocates a session and kicks off its first fill cycle in
// the background. The returned session is usually not ready yet; the
// client polls Snapshot.
func (m *Manager) StartSession(_ context.Context, userID int64) (*Session, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}

	s := newSession(uuid.NewString(), userID, m)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	s.startInitialFill()

	return s, nil
}

// Session looks a session up and checks ownership: a session id leaked to
// another user must behave as if it did not exist for writes.
func (m *Manager) Session(sessionID string, userID int64) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.userID != userID {
		return nil, ErrForbidden
	}
	return s, nil
}

func (m *Manager) CloseSession(sessionID string, userID int64) error {
	s, err := m.Session(sessionID, userID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	s.Close()
	return nil
}
