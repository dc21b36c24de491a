// Package fetcher builds a fresh snapshot of a forum's thread membership.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"index_bot/internal/discord"
	"index_bot/internal/model"
)

// Thread names that are never listed in a generated index, in addition to
// the configured index thread itself.
var defaultExcludeNames = map[string]struct{}{
	"index":               {},
	"📜 character index":   {},
	"📚 encyclopedia index": {},
	"📂 resources index":   {},
}

// Platform is the slice of the Discord client the fetcher needs.
type Platform interface {
	Forum(ctx context.Context, forumID string) (discord.Forum, error)
	ActiveThreads(ctx context.Context, forum discord.Forum) ([]model.ThreadSummary, error)
	ArchivedThreads(ctx context.Context, forum discord.Forum, before *time.Time) (discord.ArchivedPage, error)
}

// FetchError means the forum could not be read. Permanent is set when the
// forum is gone or inaccessible and retrying within the pass is pointless;
// the config is retained either way and retried on the next cycle.
type FetchError struct {
	ForumID   string
	Permanent bool
	Err       error
}

func (e *FetchError) Error() string {
	if e.Permanent {
		return fmt.Sprintf("forum %s unreachable: %v", e.ForumID, e.Err)
	}
	return fmt.Sprintf("fetch forum %s: %v", e.ForumID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher reads the full thread membership of a forum, active and archived.
type Fetcher struct {
	platform Platform
	log      *slog.Logger
}

// New creates a Fetcher.
func New(platform Platform, log *slog.Logger) *Fetcher {
	return &Fetcher{platform: platform, log: log}
}

// Fetch returns the snapshot for one configured index: all active threads
// followed by all archived threads, paged until exhausted, with the index
// thread itself filtered out.
func (f *Fetcher) Fetch(ctx context.Context, cfg *model.IndexConfig) ([]model.ThreadSummary, error) {
	forum, err := f.platform.Forum(ctx, cfg.ForumID)
	if err != nil {
		return nil, wrap(cfg.ForumID, err)
	}

	active, err := f.platform.ActiveThreads(ctx, forum)
	if err != nil {
		return nil, wrap(cfg.ForumID, err)
	}

	snapshot := make([]model.ThreadSummary, 0, len(active))
	snapshot = append(snapshot, active...)

	var before *time.Time
	for {
		page, err := f.platform.ArchivedThreads(ctx, forum, before)
		if err != nil {
			return nil, wrap(cfg.ForumID, err)
		}
		snapshot = append(snapshot, page.Threads...)
		if !page.HasMore {
			break
		}
		before = page.NextBefore
	}

	filtered := snapshot[:0]
	for _, th := range snapshot {
		if excluded(th, cfg) {
			continue
		}
		filtered = append(filtered, th)
	}

	f.log.Debug("fetched snapshot",
		"forum_id", cfg.ForumID, "threads", len(filtered), "raw", len(snapshot))
	return filtered, nil
}

func wrap(forumID string, err error) error {
	return &FetchError{ForumID: forumID, Permanent: discord.Permanent(err), Err: err}
}

// excluded filters out the generated index thread so an index never lists
// itself, matching by id when known and by name otherwise.
func excluded(th model.ThreadSummary, cfg *model.IndexConfig) bool {
	if cfg.IndexThreadID != "" && th.ThreadID == cfg.IndexThreadID {
		return true
	}
	title := strings.ToLower(th.Title)
	if title == strings.ToLower(cfg.IndexThreadName) {
		return true
	}
	_, ok := defaultExcludeNames[title]
	return ok
}
