package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leorifa93/desires-backend/internal/domain/enums"
	"github.com/leorifa93/desires-backend/internal/domain/model"
	pgrepo "github.com/leorifa93/desires-backend/internal/repo/postgres"
	authsvc "github.com/leorifa93/desires-backend/internal/services/auth"
	decksvc "github.com/leorifa93/desires-backend/internal/services/deck"
	swipesvc "github.com/leorifa93/desires-backend/internal/services/swipes"
)

type deckLedgerStub struct{}

func (deckLedgerStub) ListSentTargetIDs(context.Context, int64) ([]int64, error) {
	return nil, nil
}

type deckSourceStub struct {
	mu       sync.Mutex
	profiles []model.Profile
	failures int
}

func (s *deckSourceStub) FetchForUser(context.Context, int64, float64, map[int64]struct{}) ([]model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("profile store unavailable")
	}
	return s.profiles, nil
}

type deckProcessorStub struct {
	err error
}

func (p *deckProcessorStub) Process(context.Context, int64, int64, enums.Decision) error {
	return p.err
}

type deckProfileSourceStub struct{}

func (deckProfileSourceStub) GetByID(_ context.Context, userID int64) (pgrepo.ProfileRecord, error) {
	return pgrepo.ProfileRecord{UserID: userID}, pgrepo.ErrProfileNotFound
}

func identityMiddleware(userID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := authsvc.WithIdentity(r.Context(), authsvc.Identity{UserID: userID, SID: "sid"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newDeckTestServer(t *testing.T, userID int64, proc *deckProcessorStub, profiles ...model.Profile) *httptest.Server {
	t.Helper()
	return newDeckServerWith(t, userID, proc, &deckSourceStub{profiles: profiles})
}

func newDeckServerWith(t *testing.T, userID int64, proc *deckProcessorStub, source *deckSourceStub) *httptest.Server {
	t.Helper()

	manager := decksvc.NewManager(deckLedgerStub{}, source, proc, nil, decksvc.Config{
		RetryBackoff: time.Millisecond,
	})
	handler := NewDeckHandler(manager, deckProfileSourceStub{}, nil)

	r := chi.NewRouter()
	r.Route("/v1/deck/sessions", func(r chi.Router) {
		r.Use(identityMiddleware(userID))
		r.Post("/", handler.Start)
		r.Get("/{sessionID}", handler.Snapshot)
		r.Post("/{sessionID}/swipes", handler.Swipe)
		r.Post("/{sessionID}/refill", handler.Refill)
		r.Delete("/{sessionID}", handler.Close)
	})

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

type deckSessionPayload struct {
	SessionID  string `json:"session_id"`
	Ready      bool   `json:"ready"`
	LoadFailed bool   `json:"load_failed"`
	Entries    []struct {
		UserID int64 `json:"user_id"`
		Used   bool  `json:"used"`
	} `json:"entries"`
}

func startDeckSession(t *testing.T, ts *httptest.Server) deckSessionPayload {
	t.Helper()

	resp, err := http.Post(ts.URL+"/v1/deck/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected start status: %d", resp.StatusCode)
	}

	var payload deckSessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	if payload.SessionID == "" {
		t.Fatalf("missing session id")
	}
	return payload
}

func waitSessionReady(t *testing.T, ts *httptest.Server, sessionID string) deckSessionPayload {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.URL + "/v1/deck/sessions/" + sessionID)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}

		var payload deckSessionPayload
		err = json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if payload.Ready {
			return payload
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s never became ready", sessionID)
	return deckSessionPayload{}
}

func postSwipe(t *testing.T, ts *httptest.Server, sessionID string, targetID int64, decision string) *http.Response {
	t.Helper()

	body, _ := json.Marshal(map[string]any{"target_id": targetID, "decision": decision})
	resp, err := http.Post(
		ts.URL+"/v1/deck/sessions/"+sessionID+"/swipes",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		t.Fatalf("post swipe: %v", err)
	}
	return resp
}

func TestDeckSessionLifecycle(t *testing.T) {
	ts := newDeckTestServer(t, 100, &deckProcessorStub{},
		model.Profile{UserID: 1, DisplayName: "a"},
		model.Profile{UserID: 2, DisplayName: "b"},
	)

	started := startDeckSession(t, ts)
	snapshot := waitSessionReady(t, ts, started.SessionID)
	if len(snapshot.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(snapshot.Entries))
	}

	resp := postSwipe(t, ts, started.SessionID, 1, "like")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected swipe status: %d", resp.StatusCode)
	}

	after := waitSessionReady(t, ts, started.SessionID)
	if !after.Entries[0].Used || after.Entries[1].Used {
		t.Fatalf("used flags wrong after swipe: %+v", after.Entries)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/deck/sessions/"+started.SessionID, nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("close session: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected close status: %d", delResp.StatusCode)
	}

	getResp, err := http.Get(ts.URL + "/v1/deck/sessions/" + started.SessionID)
	if err != nil {
		t.Fatalf("snapshot after close: %v", err)
	}
	getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Fatalf("closed session must 404, got %d", getResp.StatusCode)
	}
}

func TestDeckSwipeUnknownTarget(t *testing.T) {
	ts := newDeckTestServer(t, 100, &deckProcessorStub{}, model.Profile{UserID: 1})

	started := startDeckSession(t, ts)
	waitSessionReady(t, ts, started.SessionID)

	resp := postSwipe(t, ts, started.SessionID, 999, "like")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown target, got %d", resp.StatusCode)
	}
}

func TestDeckSwipeMapsQuotaExceeded(t *testing.T) {
	ts := newDeckTestServer(t, 100, &deckProcessorStub{err: swipesvc.ErrQuotaExceeded}, model.Profile{UserID: 1})

	started := startDeckSession(t, ts)
	waitSessionReady(t, ts, started.SessionID)

	resp := postSwipe(t, ts, started.SessionID, 1, "like")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for exhausted quota, got %d", resp.StatusCode)
	}

	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Code != "QUOTA_EXCEEDED" {
		t.Fatalf("unexpected error code: %s", payload.Code)
	}

	after := waitSessionReady(t, ts, started.SessionID)
	if !after.Entries[0].Used {
		t.Fatalf("rejected swipe must leave the entry used")
	}
}

func TestDeckRefillRecoversFailedLoad(t *testing.T) {
	source := &deckSourceStub{profiles: []model.Profile{{UserID: 1, DisplayName: "a"}}, failures: 3}
	ts := newDeckServerWith(t, 100, &deckProcessorStub{}, source)

	started := startDeckSession(t, ts)

	deadline := time.Now().Add(2 * time.Second)
	var snapshot deckSessionPayload
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.URL + "/v1/deck/sessions/" + started.SessionID)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		err = json.NewDecoder(resp.Body).Decode(&snapshot)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if snapshot.LoadFailed {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !snapshot.LoadFailed {
		t.Fatalf("snapshot never reported the failed load")
	}
	if snapshot.Ready {
		t.Fatalf("a failed load must not report ready")
	}

	resp, err := http.Post(ts.URL+"/v1/deck/sessions/"+started.SessionID+"/refill", "application/json", nil)
	if err != nil {
		t.Fatalf("refill: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("unexpected refill status: %d", resp.StatusCode)
	}

	after := waitSessionReady(t, ts, started.SessionID)
	if after.LoadFailed {
		t.Fatalf("failed flag must clear after a successful refill")
	}
	if len(after.Entries) != 1 || after.Entries[0].UserID != 1 {
		t.Fatalf("unexpected deck after recovery: %+v", after.Entries)
	}
}

func TestDeckSessionMissing(t *testing.T) {
	ts := newDeckTestServer(t, 100, &deckProcessorStub{})

	resp := postSwipe(t, ts, "does-not-exist", 1, "like")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing session, got %d", resp.StatusCode)
	}
}
