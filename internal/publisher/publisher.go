// Package publisher reconciles rendered index chunks against the messages
// of the generated index thread, performing the minimal set of writes.
package publisher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"

	"index_bot/internal/model"
)

// Platform is the slice of the Discord client the publisher needs.
type Platform interface {
	CreateThread(ctx context.Context, forumID, name, body, thumbURL string) (threadID, messageID string, err error)
	PostMessage(ctx context.Context, threadID, body string) (string, error)
	EditMessage(ctx context.Context, threadID, messageID, body string) error
	DeleteMessage(ctx context.Context, threadID, messageID string) error
	ThreadExists(ctx context.Context, threadID string) (bool, error)
}

// Store is the slice of storage the publisher mutates.
type Store interface {
	SetPublishState(ctx context.Context, guildID, forumID, threadID string, messageIDs []string, hash string) error
}

// PartialError reports that a chunk write failed after the pass had already
// mutated earlier chunks. The stored hash is left untouched so the next
// pass retries the whole set.
type PartialError struct {
	Chunk int
	Err   error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("publish chunk %d: %v", e.Chunk, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Publisher writes rendered chunks to the index thread.
type Publisher struct {
	platform Platform
	store    Store
	log      *slog.Logger
}

// New creates a Publisher.
func New(platform Platform, store Store, log *slog.Logger) *Publisher {
	return &Publisher{platform: platform, store: store, log: log}
}

// Hash computes the content hash over an ordered chunk set.
func Hash(chunks []string) string {
	h := sha256.New()
	for _, c := range chunks {
		h.Write([]byte(c))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil))
}

// Publish diffs chunks against the last published state and writes the
// difference. It mutates cfg's publish-state fields in place on success.
func (p *Publisher) Publish(ctx context.Context, cfg *model.IndexConfig, chunks []string) (model.Outcome, error) {
	if len(chunks) == 0 {
		return model.OutcomeFailed, fmt.Errorf("no chunks to publish")
	}

	hash := Hash(chunks)
	if cfg.IndexThreadID != "" && hash == cfg.LastPublishedHash {
		p.log.Debug("index unchanged", "key", cfg.Key(), "hash", hash)
		return model.OutcomeNoChange, nil
	}

	threadID := cfg.IndexThreadID
	messageIDs := cfg.MessageIDs

	// A thread deleted out-of-band is detected up front; stale ids are
	// purged eagerly and the thread recreated within the same pass.
	if threadID != "" {
		ok, err := p.platform.ThreadExists(ctx, threadID)
		if err != nil {
			return model.OutcomeFailed, fmt.Errorf("check index thread: %w", err)
		}
		if !ok {
			p.log.Info("index thread gone, recreating", "key", cfg.Key(), "thread_id", threadID)
			if err := p.store.SetPublishState(ctx, cfg.GuildID, cfg.ForumID, "", nil, ""); err != nil {
				return model.OutcomeFailed, fmt.Errorf("clear publish state: %w", err)
			}
			threadID = ""
			messageIDs = nil
			cfg.IndexThreadID = ""
			cfg.MessageIDs = nil
			cfg.LastPublishedHash = ""
		}
	}

	var err error
	if threadID == "" {
		threadID, messageIDs, err = p.create(ctx, cfg, chunks)
	} else {
		messageIDs, err = p.edit(ctx, cfg, threadID, messageIDs, chunks)
	}
	if err != nil {
		// Keep whatever ids we do have so the next pass edits in place
		// instead of duplicating messages; the hash stays at its previous
		// value, forcing a full retry.
		if threadID != "" {
			if stateErr := p.store.SetPublishState(ctx, cfg.GuildID, cfg.ForumID, threadID, messageIDs, cfg.LastPublishedHash); stateErr != nil {
				p.log.Error("record partial publish state", "key", cfg.Key(), "error", stateErr)
			}
			cfg.IndexThreadID = threadID
			cfg.MessageIDs = messageIDs
		}
		var partial *PartialError
		if errors.As(err, &partial) {
			return model.OutcomePartialFailed, err
		}
		return model.OutcomeFailed, err
	}

	if err := p.store.SetPublishState(ctx, cfg.GuildID, cfg.ForumID, threadID, messageIDs, hash); err != nil {
		return model.OutcomeFailed, fmt.Errorf("record publish state: %w", err)
	}
	cfg.IndexThreadID = threadID
	cfg.MessageIDs = messageIDs
	cfg.LastPublishedHash = hash

	p.log.Info("index published", "key", cfg.Key(), "chunks", len(chunks), "thread_id", threadID)
	return model.OutcomeDone, nil
}

// create starts a fresh index thread with chunk 0 as the starter message
// and posts the remaining chunks behind it.
func (p *Publisher) create(ctx context.Context, cfg *model.IndexConfig, chunks []string) (string, []string, error) {
	threadID, firstID, err := p.platform.CreateThread(ctx, cfg.ForumID, cfg.IndexThreadName, chunks[0], cfg.ThumbURL)
	if err != nil {
		return "", nil, &PartialError{Chunk: 0, Err: err}
	}

	ids := []string{firstID}
	for i, chunk := range chunks[1:] {
		if err := ctx.Err(); err != nil {
			return threadID, ids, err
		}
		id, err := p.platform.PostMessage(ctx, threadID, chunk)
		if err != nil {
			return threadID, ids, &PartialError{Chunk: i + 1, Err: err}
		}
		ids = append(ids, id)
	}
	return threadID, ids, nil
}

// edit rewrites existing chunk messages positionally, appends messages when
// the chunk count grew, and deletes surplus trailing messages when it shrank.
func (p *Publisher) edit(ctx context.Context, cfg *model.IndexConfig, threadID string, messageIDs []string, chunks []string) ([]string, error) {
	ids := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return keepIDs(ids, messageIDs), err
		}
		if i < len(messageIDs) {
			if err := p.platform.EditMessage(ctx, threadID, messageIDs[i], chunk); err != nil {
				return keepIDs(ids, messageIDs), &PartialError{Chunk: i, Err: err}
			}
			ids = append(ids, messageIDs[i])
			continue
		}
		id, err := p.platform.PostMessage(ctx, threadID, chunk)
		if err != nil {
			return keepIDs(ids, messageIDs), &PartialError{Chunk: i, Err: err}
		}
		ids = append(ids, id)
	}

	for i := len(chunks); i < len(messageIDs); i++ {
		if err := ctx.Err(); err != nil {
			return append(ids, messageIDs[i:]...), err
		}
		if err := p.platform.DeleteMessage(ctx, threadID, messageIDs[i]); err != nil {
			return append(ids, messageIDs[i:]...), &PartialError{Chunk: i, Err: err}
		}
	}
	return ids, nil
}

// keepIDs merges the ids written so far with the untouched remainder of the
// stored set, so a partial pass never orphans live messages.
func keepIDs(written, stored []string) []string {
	if len(stored) > len(written) {
		return append(written, stored[len(written):]...)
	}
	return written
}
