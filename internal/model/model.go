// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// IndexConfig describes one generated index: which forum it summarizes,
// how entries are grouped, and where the generated thread lives.
// At most one config exists per (GuildID, ForumID).
type IndexConfig struct {
	GuildID          string
	ForumID          string
	IndexName        string
	SortByTags       bool
	PreferredTags    []string
	IndexThreadName  string
	IntroText        string
	ThumbURL         string
	CharacterSorting bool

	// Publish state, owned by the publisher. IndexThreadID and
	// LastPublishedHash are empty until the first successful publish;
	// MessageIDs holds the chunk message ids in positional order.
	IndexThreadID     string
	MessageIDs        []string
	LastPublishedHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageChunkLimit is the maximum body length of one published index
// message. Discord caps messages at 2000 characters; the margin absorbs
// trailing edits.
const MessageChunkLimit = 1900

// ConfigError reports a malformed or contradictory index configuration.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid index config: " + e.Reason
}

// Validate checks the config for contradictions. It is called at the
// storage boundary so bad configs are rejected before they persist.
func (c *IndexConfig) Validate() error {
	if c.GuildID == "" {
		return &ConfigError{Reason: "guild id is required"}
	}
	if c.ForumID == "" {
		return &ConfigError{Reason: "forum id is required"}
	}
	if strings.TrimSpace(c.IndexName) == "" {
		return &ConfigError{Reason: "index name is required"}
	}
	if len(c.IntroText) > MessageChunkLimit {
		return &ConfigError{Reason: fmt.Sprintf("intro text exceeds %d characters", MessageChunkLimit)}
	}
	if len(c.PreferredTags) > 0 && !c.SortByTags {
		return &ConfigError{Reason: "preferred tags require sort_by_tags"}
	}
	seen := make(map[string]bool, len(c.PreferredTags))
	for _, tag := range c.PreferredTags {
		if strings.TrimSpace(tag) == "" {
			return &ConfigError{Reason: "preferred tags must not be empty"}
		}
		lower := strings.ToLower(tag)
		if seen[lower] {
			return &ConfigError{Reason: fmt.Sprintf("duplicate preferred tag %q", tag)}
		}
		seen[lower] = true
	}
	return nil
}

// ApplyDefaults fills in the derived thread name and intro text when the
// administrator left them blank.
func (c *IndexConfig) ApplyDefaults() {
	if c.IndexThreadName == "" {
		c.IndexThreadName = fmt.Sprintf("📜 %s Index", c.IndexName)
	}
	if c.IntroText == "" {
		c.IntroText = fmt.Sprintf("📚 Index of %s", c.IndexName)
	}
}

// Key returns the scheduler lock key for this config.
func (c *IndexConfig) Key() string {
	return c.GuildID + ":" + c.ForumID
}

// ThreadSummary is the ephemeral view of one live forum thread. It is
// recomputed on every reconciliation pass and never persisted.
type ThreadSummary struct {
	ThreadID  string
	Title     string
	Tags      []string
	CreatedAt time.Time
	Archived  bool
}

// Outcome classifies the terminal state of a reconciliation pass.
type Outcome string

// Pass outcomes.
const (
	OutcomeDone          Outcome = "done"
	OutcomeNoChange      Outcome = "no_change"
	OutcomeFailed        Outcome = "failed"
	OutcomePartialFailed Outcome = "partial_failed"
	OutcomeSkipped       Outcome = "skipped"
)

// PassResult records how the last reconciliation pass for a target ended.
type PassResult struct {
	GuildID     string
	ForumID     string
	Outcome     Outcome
	FailedChunk int // index of the chunk that failed, -1 when not applicable
	Err         string
	FinishedAt  time.Time
}
