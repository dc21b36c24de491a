package bot

import (
	"context"
	"errors"
	"fmt"

	"index_bot/internal/model"
	"index_bot/internal/scheduler"
	"index_bot/internal/storage"
)

func (b *Bot) handleAdd(ctx context.Context, guildID string, args AddArgs) string {
	// Config writes hold the same lock as a refresh pass so an admin edit
	// never interleaves with an in-flight publish for the target.
	release, ok := b.sched.TryLockTarget(guildID, args.ForumID)
	if !ok {
		return fmt.Sprintf("A refresh for <#%s> is running; try again shortly.", args.ForumID)
	}
	defer release()

	cfg := &model.IndexConfig{
		GuildID:          guildID,
		ForumID:          args.ForumID,
		IndexName:        args.IndexName,
		SortByTags:       args.SortByTags,
		PreferredTags:    args.PreferredTags,
		IndexThreadName:  args.IndexThreadName,
		IntroText:        args.IntroText,
		ThumbURL:         args.ThumbURL,
		CharacterSorting: args.CharacterSorting,
	}
	cfg.ApplyDefaults()

	if err := b.store.UpsertIndex(ctx, cfg); err != nil {
		var cfgErr *model.ConfigError
		if errors.As(err, &cfgErr) {
			return fmt.Sprintf("❌ %s", cfgErr.Reason)
		}
		b.log.Error("upsert index", "guild_id", guildID, "forum_id", args.ForumID, "error", err)
		return "Failed to save the index configuration."
	}

	return fmt.Sprintf("Index \"%s\" configured for <#%s>. It will build on the next refresh; use /index refresh to build it now.",
		cfg.IndexName, cfg.ForumID)
}

func (b *Bot) handleRemove(ctx context.Context, guildID, forumID string) string {
	if forumID == "" {
		return "A forum channel is required."
	}
	release, ok := b.sched.TryLockTarget(guildID, forumID)
	if !ok {
		return fmt.Sprintf("A refresh for <#%s> is running; try again shortly.", forumID)
	}
	defer release()

	if err := b.store.DeleteIndex(ctx, guildID, forumID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Sprintf("No index configured for <#%s>.", forumID)
		}
		b.log.Error("delete index", "guild_id", guildID, "forum_id", forumID, "error", err)
		return "Failed to remove the index configuration."
	}
	return fmt.Sprintf("Index for <#%s> removed. The generated thread is left in place.", forumID)
}

func (b *Bot) handleList(ctx context.Context, guildID string) string {
	configs, err := b.store.ListIndexes(ctx, guildID)
	if err != nil {
		b.log.Error("list indexes", "guild_id", guildID, "error", err)
		return "Failed to list indexes."
	}
	return FormatIndexList(configs)
}

func (b *Bot) handleRefresh(ctx context.Context, guildID, forumID string) string {
	if forumID == "" {
		select {
		case b.sched.Requests() <- scheduler.Request{GuildID: guildID, All: true}:
			return "Refresh of all indexes in this guild queued. Check /index status for results."
		default:
			return "The scheduler is busy; try again shortly."
		}
	}

	result := b.sched.Refresh(ctx, guildID, forumID)
	return FormatResult(result)
}

func (b *Bot) handleStatus(guildID string) string {
	return FormatStatus(b.sched.Status(guildID))
}
