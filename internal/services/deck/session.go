package deck

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leorifa93/desires-backend/internal/domain/enums"
	"github.com/leorifa93/desires-backend/internal/domain/model"
)

type sessionState int

const (
	stateIdle sessionState = iota
	stateLoadingLedger
	stateLoadingCandidates
	stateReady
)

// Session is a per-user discovery deck. All mutation goes through the state
// machine below: Idle -> LoadingLedger -> LoadingCandidates -> Ready, with
// in-place Used transitions and a guard so only one fill cycle runs at a
// time. Entries are never removed or reordered once delivered, so the
// client's card indices stay stable.
type Session struct {
	ID string

	userID int64
	mgr    *Manager

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       sessionState
	ready       bool
	failed      bool
	closed      bool
	filling     bool
	entries     []model.DeckEntry
	exclude     map[int64]struct{}
	onExhausted func()
}

func newSession(id string, userID int64, mgr *Manager) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:      id,
		userID:  userID,
		mgr:     mgr,
		ctx:     ctx,
		cancel:  cancel,
		state:   stateIdle,
		exclude: map[int64]struct{}{},
	}
}

func (s *Session) UserID() int64 {
	return s.userID
}

// Snapshot returns a copy of the deck plus its readiness. Ready stays false
// until the first ledger load and candidate fetch have both completed, so a
// premature render can never flash an already-decided profile.
func (s *Session) Snapshot() ([]model.DeckEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]model.DeckEntry, len(s.entries))
	copy(entries, s.entries)
	return entries, s.ready
}

// LoadFailed reports whether the last fill cycle gave up without merging
// anything, so the client can offer a retry instead of spinning forever.
func (s *Session) LoadFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Refill restarts loading for a deck with nothing left to show. It recovers
// a session whose fill failed; a deck that still holds unused entries, or
// one already filling, is left alone.
func (s *Session) Refill() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	unused := 0
	for i := range s.entries {
		if !s.entries[i].Used {
			unused++
		}
	}
	if s.filling || (!s.failed && unused > 0) {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.triggerRefill()
	return nil
}

// OnExhausted registers a callback fired when a fill cycle completes with
// no new entries.
func (s *Session) OnExhausted(fn func()) {
	s.mu.Lock()
	s.onExhausted = fn
	s.mu.Unlock()
}

// Swipe marks the target's entry used immediately, then settles the
// decision through the swipe processor. The entry stays used even when the
// processor fails: re-showing a decided profile is the worse failure mode,
// and the caller can retry the write in the background. Using up the last
// entry triggers a refill.
func (s *Session) Swipe(ctx context.Context, targetID int64, decision enums.Decision) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}

	found := false
	allUsed := true
	for i := range s.entries {
		if s.entries[i].Profile.UserID == targetID {
			s.entries[i].Used = true
			found = true
		}
		if !s.entries[i].Used {
			allUsed = false
		}
	}
	s.mu.Unlock()

	if !found {
		return ErrUnknownTarget
	}

	err := s.mgr.swipes.Process(ctx, s.userID, targetID, decision)

	if allUsed {
		s.triggerRefill()
	}

	return err
}

// Close cancels any in-flight fetch; results arriving afterwards are
// discarded rather than merged into a stale deck.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) startInitialFill() {
	s.mu.Lock()
	s.filling = true
	s.state = stateLoadingLedger
	s.mu.Unlock()

	go func() {
		defer s.finishFill()

		ids, err := s.mgr.ledger.ListSentTargetIDs(s.ctx, s.userID)
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			s.mgr.logger.Error("ledger load failed",
				zap.String("session_id", s.ID),
				zap.Int64("user_id", s.userID),
				zap.Error(err),
			)
			s.markFailed()
			return
		}

		s.mu.Lock()
		for _, id := range ids {
			s.exclude[id] = struct{}{}
		}
		s.state = stateLoadingCandidates
		s.mu.Unlock()

		s.fetchAndMerge()
	}()
}

// triggerRefill starts a fill cycle unless one is already in flight. The
// refill re-reads the ledger first so decisions made on another device
// since the last load join the exclude set.
func (s *Session) triggerRefill() {
	s.mu.Lock()
	if s.closed || s.filling {
		s.mu.Unlock()
		return
	}
	s.filling = true
	s.failed = false
	s.state = stateLoadingCandidates
	s.mu.Unlock()

	go func() {
		defer s.finishFill()

		ids, err := s.mgr.ledger.ListSentTargetIDs(s.ctx, s.userID)
		if s.ctx.Err() != nil {
			return
		}
		if err == nil {
			s.mu.Lock()
			for _, id := range ids {
				s.exclude[id] = struct{}{}
			}
			s.mu.Unlock()
		} else {
			s.mgr.logger.Warn("ledger refresh failed, refilling with the session exclude set",
				zap.String("session_id", s.ID),
				zap.Error(err),
			)
		}

		s.fetchAndMerge()
	}()
}

func (s *Session) finishFill() {
	s.mu.Lock()
	s.filling = false
	s.mu.Unlock()
}

func (s *Session) markFailed() {
	s.mu.Lock()
	if !s.closed {
		s.failed = true
		s.state = stateIdle
	}
	s.mu.Unlock()
}

func (s *Session) fetchAndMerge() {
	s.mu.Lock()
	excludes := make(map[int64]struct{}, len(s.exclude))
	for id := range s.exclude {
		excludes[id] = struct{}{}
	}
	s.mu.Unlock()

	profiles, err := s.fetchWithRetry(excludes)
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		s.mgr.logger.Error("candidate fetch failed",
			zap.String("session_id", s.ID),
			zap.Int64("user_id", s.userID),
			zap.Error(err),
		)
		s.markFailed()
		return
	}

	s.merge(profiles)
}

func (s *Session) fetchWithRetry(excludes map[int64]struct{}) ([]model.Profile, error) {
	backoff := s.mgr.cfg.RetryBackoff

	var lastErr error
	for attempt := 0; attempt < s.mgr.cfg.FetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-s.ctx.Done():
				return nil, s.ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		profiles, err := s.mgr.source.FetchForUser(s.ctx, s.userID, s.mgr.cfg.RadiusKM, excludes)
		if err == nil {
			return profiles, nil
		}
		lastErr = err
	}

	return nil, lastErr
}

// merge appends new candidates, skipping any id already dealt or excluded.
// Ready flips true exactly once, after the first cycle completes; later
// refills extend the deck without resetting it.
func (s *Session) merge(profiles []model.Profile) {
	var exhausted func()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	added := 0
	for _, p := range profiles {
		if _, seen := s.exclude[p.UserID]; seen {
			continue
		}
		s.entries = append(s.entries, model.DeckEntry{Profile: p})
		s.exclude[p.UserID] = struct{}{}
		added++
	}

	s.ready = true
	s.failed = false
	s.state = stateReady
	if added == 0 {
		exhausted = s.onExhausted
	}
	s.mu.Unlock()

	if exhausted != nil {
		exhausted()
	}
}
