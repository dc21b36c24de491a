// Package scheduler orchestrates reconciliation passes: periodic sweeps
// over all configured indexes plus on-demand refresh requests.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"index_bot/internal/model"
	"index_bot/internal/publisher"
	"index_bot/internal/render"
	"index_bot/internal/storage"
)

// Fetcher produces a fresh forum snapshot.
type Fetcher interface {
	Fetch(ctx context.Context, cfg *model.IndexConfig) ([]model.ThreadSummary, error)
}

// Publisher writes rendered chunks to the index thread.
type Publisher interface {
	Publish(ctx context.Context, cfg *model.IndexConfig, chunks []string) (model.Outcome, error)
}

// Request asks for an immediate refresh of one target, or of every target
// in a guild when All is set. Reply, when non-nil, receives the results.
type Request struct {
	GuildID string
	ForumID string
	All     bool
	Reply   chan []model.PassResult
}

// Scheduler runs the Fetch → Render → Publish pipeline for configured
// indexes, serializing passes per target and bounding total fan-out.
type Scheduler struct {
	store     storage.Storage
	fetcher   Fetcher
	publisher Publisher
	locks     *Locks
	log       *slog.Logger

	interval      time.Duration
	maxConcurrent int
	requests      chan Request

	mu     sync.Mutex
	status map[string]model.PassResult
}

// New creates a Scheduler with the default 6-hour sweep interval.
func New(store storage.Storage, fetcher Fetcher, publisher Publisher, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:         store,
		fetcher:       fetcher,
		publisher:     publisher,
		locks:         NewLocks(),
		log:           log,
		interval:      6 * time.Hour,
		maxConcurrent: 2,
		requests:      make(chan Request, 16),
		status:        make(map[string]model.PassResult),
	}
}

// SetInterval overrides the sweep interval.
func (s *Scheduler) SetInterval(d time.Duration) {
	s.interval = d
}

// SetMaxConcurrent overrides how many targets may refresh at once.
func (s *Scheduler) SetMaxConcurrent(n int) {
	if n > 0 {
		s.maxConcurrent = n
	}
}

// Requests returns the channel on which refresh requests are submitted.
func (s *Scheduler) Requests() chan<- Request {
	return s.requests
}

// TryLockTarget claims the refresh lock for one target so configuration
// writes never interleave with an in-flight pass. It does not block; the
// caller retries later when the lock is held. The returned release func
// must be called once the mutation is done.
func (s *Scheduler) TryLockTarget(guildID, forumID string) (func(), bool) {
	key := guildID + ":" + forumID
	if !s.locks.TryAcquire(key) {
		return nil, false
	}
	return func() { s.locks.Release(key) }, true
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		case req := <-s.requests:
			s.handle(ctx, req)
		}
	}
}

// sweep refreshes every configured index across all guilds.
func (s *Scheduler) sweep(ctx context.Context) {
	configs, err := s.store.ListAllIndexes(ctx)
	if err != nil {
		s.log.Error("list indexes", "error", err)
		return
	}
	s.refreshConfigs(ctx, configs)
}

func (s *Scheduler) handle(ctx context.Context, req Request) {
	var results []model.PassResult
	if req.All {
		configs, err := s.store.ListIndexes(ctx, req.GuildID)
		if err != nil {
			s.log.Error("list indexes", "guild_id", req.GuildID, "error", err)
		} else {
			results = s.refreshConfigs(ctx, configs)
		}
	} else {
		results = []model.PassResult{s.Refresh(ctx, req.GuildID, req.ForumID)}
	}
	if req.Reply != nil {
		req.Reply <- results
	}
}

// refreshConfigs runs passes for the given targets with bounded fan-out.
func (s *Scheduler) refreshConfigs(ctx context.Context, configs []model.IndexConfig) []model.PassResult {
	results := make([]model.PassResult, len(configs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for i, cfg := range configs {
		g.Go(func() error {
			results[i] = s.Refresh(gctx, cfg.GuildID, cfg.ForumID)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Refresh runs one reconciliation pass synchronously and returns its
// outcome. Concurrent calls for the same target coalesce: the loser
// observes Skipped without touching the pipeline.
func (s *Scheduler) Refresh(ctx context.Context, guildID, forumID string) model.PassResult {
	key := guildID + ":" + forumID
	if !s.locks.TryAcquire(key) {
		s.log.Debug("refresh already in flight", "key", key)
		return model.PassResult{
			GuildID: guildID, ForumID: forumID,
			Outcome: model.OutcomeSkipped, FailedChunk: -1,
			FinishedAt: time.Now().UTC(),
		}
	}
	defer s.locks.Release(key)

	result := s.runPass(ctx, guildID, forumID)
	s.record(result)
	return result
}

// runPass executes Fetch → Render → Publish for one target. The config is
// read fresh after the lock is held so the pass never acts on a stale copy.
func (s *Scheduler) runPass(ctx context.Context, guildID, forumID string) model.PassResult {
	result := model.PassResult{
		GuildID: guildID, ForumID: forumID,
		Outcome: model.OutcomeFailed, FailedChunk: -1,
	}
	defer func() {
		result.FinishedAt = time.Now().UTC()
	}()

	cfg, err := s.store.GetIndex(ctx, guildID, forumID)
	if err != nil {
		result.Err = err.Error()
		s.log.Error("load config", "key", guildID+":"+forumID, "error", err)
		return result
	}

	snapshot, err := s.fetcher.Fetch(ctx, cfg)
	if err != nil {
		result.Err = err.Error()
		s.log.Warn("fetch failed, index degraded", "key", cfg.Key(), "error", err)
		return result
	}

	chunks := render.Render(snapshot, render.FromConfig(cfg))

	outcome, err := s.publisher.Publish(ctx, cfg, chunks)
	result.Outcome = outcome
	if err != nil {
		result.Err = err.Error()
		var partial *publisher.PartialError
		if errors.As(err, &partial) {
			result.FailedChunk = partial.Chunk
		}
		s.log.Warn("publish failed", "key", cfg.Key(), "outcome", outcome, "error", err)
		return result
	}

	s.log.Info("pass complete", "key", cfg.Key(), "outcome", outcome, "threads", len(snapshot), "chunks", len(chunks))
	return result
}

func (s *Scheduler) record(result model.PassResult) {
	if result.Outcome == model.OutcomeSkipped {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[result.GuildID+":"+result.ForumID] = result
}

// Status returns the recorded outcome of the last pass per target in the
// guild. Targets that never ran are absent.
func (s *Scheduler) Status(guildID string) []model.PassResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.PassResult
	for _, r := range s.status {
		if r.GuildID == guildID {
			out = append(out, r)
		}
	}
	return out
}

// LastResult returns the recorded outcome for one target.
func (s *Scheduler) LastResult(guildID, forumID string) (model.PassResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.status[guildID+":"+forumID]
	return r, ok
}
