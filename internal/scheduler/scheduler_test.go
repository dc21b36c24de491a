package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"index_bot/internal/model"
	"index_bot/internal/publisher"
	"index_bot/internal/storage"
)

type mockFetcher struct {
	mu      sync.Mutex
	calls   int
	err     error
	gate    chan struct{} // when non-nil, Fetch blocks until the gate closes
	threads []model.ThreadSummary
}

func (m *mockFetcher) Fetch(ctx context.Context, _ *model.IndexConfig) ([]model.ThreadSummary, error) {
	m.mu.Lock()
	m.calls++
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.threads, m.err
}

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockPublisher struct {
	mu      sync.Mutex
	calls   int
	outcome model.Outcome
	err     error
}

func (m *mockPublisher) Publish(_ context.Context, _ *model.IndexConfig, _ []string) (model.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.outcome, m.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedConfig(t *testing.T, store storage.Storage, guildID, forumID string) {
	t.Helper()
	cfg := &model.IndexConfig{
		GuildID:   guildID,
		ForumID:   forumID,
		IndexName: "OC Characters",
	}
	cfg.ApplyDefaults()
	if err := store.UpsertIndex(context.Background(), cfg); err != nil {
		t.Fatalf("seed config: %v", err)
	}
}

func TestRefreshRunsPipeline(t *testing.T) {
	store := newTestStore(t)
	seedConfig(t, store, "g1", "f1")

	fetch := &mockFetcher{threads: []model.ThreadSummary{{ThreadID: "1", Title: "Anna"}}}
	pub := &mockPublisher{outcome: model.OutcomeDone}
	sched := New(store, fetch, pub, testLogger())

	result := sched.Refresh(context.Background(), "g1", "f1")

	if diff := cmp.Diff(model.OutcomeDone, result.Outcome); diff != "" {
		t.Errorf("outcome mismatch (-want +got):\n%s", diff)
	}
	if result.FailedChunk != -1 {
		t.Errorf("failed chunk = %d, want -1", result.FailedChunk)
	}
	if fetch.callCount() != 1 || pub.calls != 1 {
		t.Errorf("pipeline not run exactly once: fetch=%d publish=%d", fetch.callCount(), pub.calls)
	}

	last, ok := sched.LastResult("g1", "f1")
	if !ok {
		t.Fatal("result not recorded")
	}
	if diff := cmp.Diff(model.OutcomeDone, last.Outcome); diff != "" {
		t.Errorf("recorded outcome mismatch (-want +got):\n%s", diff)
	}
}

func TestRefreshCoalescesConcurrentPasses(t *testing.T) {
	store := newTestStore(t)
	seedConfig(t, store, "g1", "f1")

	gate := make(chan struct{})
	fetch := &mockFetcher{gate: gate}
	pub := &mockPublisher{outcome: model.OutcomeDone}
	sched := New(store, fetch, pub, testLogger())

	started := make(chan struct{})
	done := make(chan model.PassResult, 1)
	go func() {
		close(started)
		done <- sched.Refresh(context.Background(), "g1", "f1")
	}()
	<-started

	// Wait for the first pass to reach Fetch so the lock is held.
	deadline := time.After(2 * time.Second)
	for fetch.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("first pass never reached Fetch")
		case <-time.After(time.Millisecond):
		}
	}

	second := sched.Refresh(context.Background(), "g1", "f1")
	if diff := cmp.Diff(model.OutcomeSkipped, second.Outcome); diff != "" {
		t.Errorf("second pass outcome mismatch (-want +got):\n%s", diff)
	}

	close(gate)
	first := <-done
	if diff := cmp.Diff(model.OutcomeDone, first.Outcome); diff != "" {
		t.Errorf("first pass outcome mismatch (-want +got):\n%s", diff)
	}

	if fetch.callCount() != 1 {
		t.Errorf("skipped pass touched the pipeline: fetch calls = %d", fetch.callCount())
	}

	// Skipped outcomes are never recorded.
	last, ok := sched.LastResult("g1", "f1")
	if !ok || last.Outcome != model.OutcomeDone {
		t.Errorf("recorded result = %+v, want done", last)
	}
}

func TestRefreshDistinctTargetsDoNotBlock(t *testing.T) {
	store := newTestStore(t)
	seedConfig(t, store, "g1", "f1")
	seedConfig(t, store, "g1", "f2")

	gate := make(chan struct{})
	fetch := &mockFetcher{gate: gate}
	pub := &mockPublisher{outcome: model.OutcomeDone}
	sched := New(store, fetch, pub, testLogger())

	done := make(chan model.PassResult, 1)
	go func() {
		done <- sched.Refresh(context.Background(), "g1", "f1")
	}()

	deadline := time.After(2 * time.Second)
	for fetch.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("first pass never reached Fetch")
		case <-time.After(time.Millisecond):
		}
	}

	// The second target acquires its own lock while the first is held.
	other := make(chan model.PassResult, 1)
	go func() {
		other <- sched.Refresh(context.Background(), "g1", "f2")
	}()

	close(gate)
	second := <-other
	if diff := cmp.Diff(model.OutcomeDone, second.Outcome); diff != "" {
		t.Errorf("second target outcome mismatch (-want +got):\n%s", diff)
	}
	first := <-done
	if diff := cmp.Diff(model.OutcomeDone, first.Outcome); diff != "" {
		t.Errorf("first target outcome mismatch (-want +got):\n%s", diff)
	}
}

func TestRefreshUnknownTargetFails(t *testing.T) {
	store := newTestStore(t)
	sched := New(store, &mockFetcher{}, &mockPublisher{}, testLogger())

	result := sched.Refresh(context.Background(), "g1", "missing")
	if diff := cmp.Diff(model.OutcomeFailed, result.Outcome); diff != "" {
		t.Errorf("outcome mismatch (-want +got):\n%s", diff)
	}
	if result.Err == "" {
		t.Error("expected error message on unknown target")
	}
}

func TestRefreshFetchErrorRetainsConfig(t *testing.T) {
	store := newTestStore(t)
	seedConfig(t, store, "g1", "f1")

	fetch := &mockFetcher{err: errors.New("forum f1 unreachable")}
	pub := &mockPublisher{}
	sched := New(store, fetch, pub, testLogger())

	result := sched.Refresh(context.Background(), "g1", "f1")
	if diff := cmp.Diff(model.OutcomeFailed, result.Outcome); diff != "" {
		t.Errorf("outcome mismatch (-want +got):\n%s", diff)
	}
	if pub.calls != 0 {
		t.Errorf("publish called despite fetch failure: %d", pub.calls)
	}

	// The config survives a degraded pass.
	if _, err := store.GetIndex(context.Background(), "g1", "f1"); err != nil {
		t.Errorf("config dropped after fetch failure: %v", err)
	}
}

func TestRefreshRecordsFailedChunk(t *testing.T) {
	store := newTestStore(t)
	seedConfig(t, store, "g1", "f1")

	fetch := &mockFetcher{}
	pub := &mockPublisher{
		outcome: model.OutcomePartialFailed,
		err:     &publisher.PartialError{Chunk: 2, Err: errors.New("edit refused")},
	}
	sched := New(store, fetch, pub, testLogger())

	result := sched.Refresh(context.Background(), "g1", "f1")
	if diff := cmp.Diff(model.OutcomePartialFailed, result.Outcome); diff != "" {
		t.Errorf("outcome mismatch (-want +got):\n%s", diff)
	}
	if result.FailedChunk != 2 {
		t.Errorf("failed chunk = %d, want 2", result.FailedChunk)
	}
}

func TestStatusFiltersByGuild(t *testing.T) {
	store := newTestStore(t)
	seedConfig(t, store, "g1", "f1")
	seedConfig(t, store, "g2", "f9")

	fetch := &mockFetcher{}
	pub := &mockPublisher{outcome: model.OutcomeDone}
	sched := New(store, fetch, pub, testLogger())

	sched.Refresh(context.Background(), "g1", "f1")
	sched.Refresh(context.Background(), "g2", "f9")

	results := sched.Status("g1")
	if len(results) != 1 {
		t.Fatalf("expected 1 result for g1, got %d", len(results))
	}
	if results[0].ForumID != "f1" {
		t.Errorf("unexpected target in status: %+v", results[0])
	}
}

func TestRequestRefreshAll(t *testing.T) {
	store := newTestStore(t)
	seedConfig(t, store, "g1", "f1")
	seedConfig(t, store, "g1", "f2")

	fetch := &mockFetcher{}
	pub := &mockPublisher{outcome: model.OutcomeDone}
	sched := New(store, fetch, pub, testLogger())

	reply := make(chan []model.PassResult, 1)
	sched.handle(context.Background(), Request{GuildID: "g1", All: true, Reply: reply})

	results := <-reply
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Outcome != model.OutcomeDone {
			t.Errorf("target %s outcome = %s, want done", r.ForumID, r.Outcome)
		}
	}
	if pub.calls != 2 {
		t.Errorf("publish calls = %d, want 2", pub.calls)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	sched := New(store, &mockFetcher{}, &mockPublisher{outcome: model.OutcomeDone}, testLogger())
	sched.SetInterval(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestRunSweepsConfiguredIndexes(t *testing.T) {
	store := newTestStore(t)
	seedConfig(t, store, "g1", "f1")

	fetch := &mockFetcher{}
	pub := &mockPublisher{outcome: model.OutcomeDone}
	sched := New(store, fetch, pub, testLogger())
	sched.SetInterval(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for fetch.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("initial sweep never ran")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestTryLockTargetExcludesRefresh(t *testing.T) {
	store := newTestStore(t)
	seedConfig(t, store, "g1", "f1")

	fetch := &mockFetcher{}
	sched := New(store, fetch, &mockPublisher{outcome: model.OutcomeDone}, testLogger())

	release, ok := sched.TryLockTarget("g1", "f1")
	if !ok {
		t.Fatal("lock acquisition failed on idle target")
	}

	// A pass for the held target is skipped without touching the pipeline.
	result := sched.Refresh(context.Background(), "g1", "f1")
	if diff := cmp.Diff(model.OutcomeSkipped, result.Outcome); diff != "" {
		t.Errorf("outcome mismatch (-want +got):\n%s", diff)
	}
	if fetch.callCount() != 0 {
		t.Errorf("fetch called under admin lock: %d", fetch.callCount())
	}

	if _, ok := sched.TryLockTarget("g1", "f1"); ok {
		t.Error("second admin lock on held target succeeded")
	}

	release()
	result = sched.Refresh(context.Background(), "g1", "f1")
	if diff := cmp.Diff(model.OutcomeDone, result.Outcome); diff != "" {
		t.Errorf("outcome after release mismatch (-want +got):\n%s", diff)
	}
}

func TestLocks(t *testing.T) {
	locks := NewLocks()

	if !locks.TryAcquire("a") {
		t.Fatal("first acquire failed")
	}
	if locks.TryAcquire("a") {
		t.Error("second acquire of held lock succeeded")
	}
	if !locks.TryAcquire("b") {
		t.Error("distinct key blocked by held lock")
	}

	locks.Release("a")
	if !locks.TryAcquire("a") {
		t.Error("acquire after release failed")
	}
}
