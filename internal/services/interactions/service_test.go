package interactions

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leorifa93/desires-backend/internal/domain/enums"
	pgrepo "github.com/leorifa93/desires-backend/internal/repo/postgres"
)

type pairKey struct {
	actor  int64
	target int64
}

type ledgerStub struct {
	records  map[pairKey]pgrepo.InteractionRecord
	received map[int64]int
	upserts  int
}

func newLedgerStub() *ledgerStub {
	return &ledgerStub{
		records:  make(map[pairKey]pgrepo.InteractionRecord),
		received: make(map[int64]int),
	}
}

func (s *ledgerStub) Get(_ context.Context, _ pgx.Tx, actorID, targetID int64) (pgrepo.InteractionRecord, error) {
	rec, ok := s.records[pairKey{actorID, targetID}]
	if !ok {
		return pgrepo.InteractionRecord{}, pgrepo.ErrInteractionNotFound
	}
	return rec, nil
}

func (s *ledgerStub) Upsert(_ context.Context, _ pgx.Tx, actorID, targetID int64, decision string, now time.Time) (pgrepo.InteractionRecord, error) {
	s.upserts++
	key := pairKey{actorID, targetID}
	rec, ok := s.records[key]
	if !ok {
		rec = pgrepo.InteractionRecord{
			ActorID:   actorID,
			TargetID:  targetID,
			CreatedAt: now,
		}
	}
	rec.Decision = decision
	s.records[key] = rec
	return rec, nil
}

func (s *ledgerStub) AdjustReceivedLikes(_ context.Context, _ pgx.Tx, targetID int64, delta int, _ time.Time) error {
	s.received[targetID] += delta
	return nil
}

func (s *ledgerStub) ListSentTargetIDs(_ context.Context, actorID int64) ([]int64, error) {
	var ids []int64
	for key := range s.records {
		if key.actor == actorID {
			ids = append(ids, key.target)
		}
	}
	return ids, nil
}

func (s *ledgerStub) ListReceived(_ context.Context, targetID int64, _ int) ([]pgrepo.InteractionRecord, error) {
	var out []pgrepo.InteractionRecord
	for key, rec := range s.records {
		if key.target == targetID && rec.Decision == string(enums.DecisionLike) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *ledgerStub) GetReceivedLikeCount(_ context.Context, targetID int64) (int, error) {
	return s.received[targetID], nil
}

func newTestService(store Store) *Service {
	svc := NewService(nil, store)
	svc.runTx = func(ctx context.Context, _ *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
		return fn(ctx, nil)
	}
	return svc
}

func TestRecordDecisionIsIdempotent(t *testing.T) {
	store := newLedgerStub()
	svc := newTestService(store)
	ctx := context.Background()

	if err := svc.RecordDecision(ctx, 101, 202, enums.DecisionLike); err != nil {
		t.Fatalf("first decision: %v", err)
	}
	if err := svc.RecordDecision(ctx, 101, 202, enums.DecisionLike); err != nil {
		t.Fatalf("repeat decision: %v", err)
	}

	if len(store.records) != 1 {
		t.Fatalf("expected exactly one record per pair, got %d", len(store.records))
	}
	if store.received[202] != 1 {
		t.Fatalf("repeat like must not double the badge counter, got %d", store.received[202])
	}
}

func TestRecordDecisionLastWriteWins(t *testing.T) {
	store := newLedgerStub()
	svc := newTestService(store)
	ctx := context.Background()

	if err := svc.RecordDecision(ctx, 101, 202, enums.DecisionLike); err != nil {
		t.Fatalf("like: %v", err)
	}
	if err := svc.RecordDecision(ctx, 101, 202, enums.DecisionDislike); err != nil {
		t.Fatalf("overwrite with dislike: %v", err)
	}

	rec := store.records[pairKey{101, 202}]
	if rec.Decision != string(enums.DecisionDislike) {
		t.Fatalf("last write must win, got %s", rec.Decision)
	}
	if len(store.records) != 1 {
		t.Fatalf("overwrite must not create a second record, got %d", len(store.records))
	}
	if store.received[202] != 0 {
		t.Fatalf("like->dislike must release the badge counter, got %d", store.received[202])
	}
}

func TestRecordDecisionValidation(t *testing.T) {
	svc := newTestService(newLedgerStub())
	ctx := context.Background()

	if err := svc.RecordDecision(ctx, 0, 202, enums.DecisionLike); err != ErrValidation {
		t.Fatalf("zero actor must fail validation, got %v", err)
	}
	if err := svc.RecordDecision(ctx, 101, 101, enums.DecisionLike); err != ErrValidation {
		t.Fatalf("self-decision must fail validation, got %v", err)
	}
	if err := svc.RecordDecision(ctx, 101, 202, enums.Decision("SUPERLIKE")); err != ErrUnsupportedDecision {
		t.Fatalf("unknown decision must be rejected, got %v", err)
	}
}

func TestListSentTargetIDs(t *testing.T) {
	store := newLedgerStub()
	svc := newTestService(store)
	ctx := context.Background()

	_ = svc.RecordDecision(ctx, 101, 202, enums.DecisionLike)
	_ = svc.RecordDecision(ctx, 101, 203, enums.DecisionDislike)
	_ = svc.RecordDecision(ctx, 999, 204, enums.DecisionLike)

	ids, err := svc.ListSentTargetIDs(ctx, 101)
	if err != nil {
		t.Fatalf("list sent: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 sent targets for actor 101, got %d", len(ids))
	}
	seen := map[int64]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen[202] || !seen[203] {
		t.Fatalf("unexpected sent targets: %v", ids)
	}
}

func TestReceivedLikeCountTracksDecisionChanges(t *testing.T) {
	store := newLedgerStub()
	svc := newTestService(store)
	ctx := context.Background()

	_ = svc.RecordDecision(ctx, 101, 500, enums.DecisionLike)
	_ = svc.RecordDecision(ctx, 102, 500, enums.DecisionLike)
	_ = svc.RecordDecision(ctx, 103, 500, enums.DecisionDislike)
	_ = svc.RecordDecision(ctx, 102, 500, enums.DecisionDislike)

	count, err := svc.ReceivedLikeCount(ctx, 500)
	if err != nil {
		t.Fatalf("received like count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 net received like, got %d", count)
	}
}
