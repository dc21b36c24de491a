// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"index_bot/internal/model"
)

// ErrNotFound is returned when no config exists for the requested key.
var ErrNotFound = errors.New("index config not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	UpsertIndex(ctx context.Context, cfg *model.IndexConfig) error
	GetIndex(ctx context.Context, guildID, forumID string) (*model.IndexConfig, error)
	ListIndexes(ctx context.Context, guildID string) ([]model.IndexConfig, error)
	ListAllIndexes(ctx context.Context) ([]model.IndexConfig, error)
	DeleteIndex(ctx context.Context, guildID, forumID string) error

	// SetPublishState records where the generated index lives and the hash
	// of what was last fully published. Passing empty values clears the
	// state, detaching the config from a deleted index thread.
	SetPublishState(ctx context.Context, guildID, forumID, threadID string, messageIDs []string, hash string) error

	Close() error
}
