package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"index_bot/internal/model"
	"index_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// UpsertIndex validates and inserts or replaces the config for its
// (guild, forum) key. Publish state of an existing row is preserved.
func (s *SQLite) UpsertIndex(ctx context.Context, cfg *model.IndexConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC().Format(timeLayout)
	tags, err := json.Marshal(orEmpty(cfg.PreferredTags))
	if err != nil {
		return fmt.Errorf("marshal preferred tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO indexes (guild_id, forum_id, index_name, sort_by_tags, preferred_tags,
		                      index_thread_name, intro_text, thumb_url, character_sorting,
		                      created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (guild_id, forum_id) DO UPDATE SET
		   index_name = excluded.index_name,
		   sort_by_tags = excluded.sort_by_tags,
		   preferred_tags = excluded.preferred_tags,
		   index_thread_name = excluded.index_thread_name,
		   intro_text = excluded.intro_text,
		   thumb_url = excluded.thumb_url,
		   character_sorting = excluded.character_sorting,
		   updated_at = excluded.updated_at`,
		cfg.GuildID, cfg.ForumID, cfg.IndexName, boolToInt(cfg.SortByTags), string(tags),
		cfg.IndexThreadName, cfg.IntroText, cfg.ThumbURL, boolToInt(cfg.CharacterSorting),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert index: %w", err)
	}
	return nil
}

const selectColumns = `guild_id, forum_id, index_name, sort_by_tags, preferred_tags,
	index_thread_name, intro_text, thumb_url, character_sorting,
	index_thread_id, message_ids, last_published_hash, created_at, updated_at`

// GetIndex returns the config for one (guild, forum) pair.
func (s *SQLite) GetIndex(ctx context.Context, guildID, forumID string) (*model.IndexConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM indexes WHERE guild_id = ? AND forum_id = ?`,
		guildID, forumID,
	)
	cfg, err := scanIndex(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return cfg, err
}

// ListIndexes returns all configs belonging to the given guild.
func (s *SQLite) ListIndexes(ctx context.Context, guildID string) ([]model.IndexConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM indexes WHERE guild_id = ? ORDER BY created_at, forum_id`,
		guildID,
	)
	if err != nil {
		return nil, fmt.Errorf("query indexes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanIndexes(rows)
}

// ListAllIndexes returns every config across all guilds.
func (s *SQLite) ListAllIndexes(ctx context.Context) ([]model.IndexConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM indexes ORDER BY guild_id, created_at, forum_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query all indexes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanIndexes(rows)
}

// DeleteIndex removes a config. Returns ErrNotFound if no row matched.
func (s *SQLite) DeleteIndex(ctx context.Context, guildID, forumID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM indexes WHERE guild_id = ? AND forum_id = ?`,
		guildID, forumID,
	)
	if err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPublishState updates the publish bookkeeping for one config in a
// single atomic row write.
func (s *SQLite) SetPublishState(ctx context.Context, guildID, forumID, threadID string, messageIDs []string, hash string) error {
	ids, err := json.Marshal(orEmpty(messageIDs))
	if err != nil {
		return fmt.Errorf("marshal message ids: %w", err)
	}
	now := time.Now().UTC().Format(timeLayout)

	res, err := s.db.ExecContext(ctx,
		`UPDATE indexes
		 SET index_thread_id = ?, message_ids = ?, last_published_hash = ?, updated_at = ?
		 WHERE guild_id = ? AND forum_id = ?`,
		threadID, string(ids), hash, now, guildID, forumID,
	)
	if err != nil {
		return fmt.Errorf("set publish state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanIndex(row scannable) (*model.IndexConfig, error) {
	var cfg model.IndexConfig
	var sortByTags, characterSorting int
	var tagsJSON, idsJSON, created, updated string
	err := row.Scan(
		&cfg.GuildID, &cfg.ForumID, &cfg.IndexName, &sortByTags, &tagsJSON,
		&cfg.IndexThreadName, &cfg.IntroText, &cfg.ThumbURL, &characterSorting,
		&cfg.IndexThreadID, &idsJSON, &cfg.LastPublishedHash, &created, &updated,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan index: %w", err)
	}
	cfg.SortByTags = sortByTags == 1
	cfg.CharacterSorting = characterSorting == 1
	if err := json.Unmarshal([]byte(tagsJSON), &cfg.PreferredTags); err != nil {
		return nil, fmt.Errorf("unmarshal preferred tags: %w", err)
	}
	if err := json.Unmarshal([]byte(idsJSON), &cfg.MessageIDs); err != nil {
		return nil, fmt.Errorf("unmarshal message ids: %w", err)
	}
	if len(cfg.PreferredTags) == 0 {
		cfg.PreferredTags = nil
	}
	if len(cfg.MessageIDs) == 0 {
		cfg.MessageIDs = nil
	}
	cfg.CreatedAt, _ = time.Parse(timeLayout, created)
	cfg.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &cfg, nil
}

func scanIndexes(rows *sql.Rows) ([]model.IndexConfig, error) {
	var configs []model.IndexConfig
	for rows.Next() {
		cfg, err := scanIndex(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *cfg)
	}
	return configs, rows.Err()
}
