// Package discord wraps the Discord REST API behind small typed calls
// with error classification and bounded retry.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sethvargo/go-retry"

	"index_bot/internal/model"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 2 * time.Second
	defaultMaxDelay    = 60 * time.Second

	archivedPageSize = 100
)

// restAPI is the slice of discordgo.Session the client needs.
type restAPI interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ThreadsActive(channelID string, options ...discordgo.RequestOption) (*discordgo.ThreadsList, error)
	ThreadsArchived(channelID string, before *time.Time, limit int, options ...discordgo.RequestOption) (*discordgo.ThreadsList, error)
	ForumThreadStartComplex(channelID string, threadData *discordgo.ThreadStart, messageData *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (st *discordgo.Message, err error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// Forum identifies a forum channel together with its tag id to name mapping.
// Discord stores applied tags on threads as tag ids; names live on the forum.
type Forum struct {
	ID       string
	Name     string
	TagNames map[string]string
}

// ArchivedPage is one page of archived threads.
type ArchivedPage struct {
	Threads    []model.ThreadSummary
	NextBefore *time.Time
	HasMore    bool
}

// Client performs Discord REST calls with retry on transient failures.
type Client struct {
	api         restAPI
	log         *slog.Logger
	maxAttempts uint64
	baseDelay   time.Duration
}

// New creates a Client around an opened discordgo session.
func New(session *discordgo.Session, log *slog.Logger) *Client {
	return NewWithAPI(session, log)
}

// NewWithAPI creates a Client around any restAPI implementation (useful for testing).
func NewWithAPI(api restAPI, log *slog.Logger) *Client {
	return &Client{
		api:         api,
		log:         log,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}
}

// SetRetryPolicy overrides the default attempt count and backoff base.
func (c *Client) SetRetryPolicy(maxAttempts uint64, baseDelay time.Duration) {
	c.maxAttempts = maxAttempts
	c.baseDelay = baseDelay
}

// do runs fn with exponential backoff. Rate limits and transient errors
// are retried; ErrNotFound and ErrForbidden fail immediately.
func (c *Client) do(ctx context.Context, op string, fn func() error) error {
	backoff := retry.WithMaxRetries(c.maxAttempts-1,
		retry.WithCappedDuration(defaultMaxDelay, retry.NewExponential(c.baseDelay)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := classify(fn())
		if err == nil {
			return nil
		}
		if Permanent(err) {
			return err
		}
		c.log.Warn("retrying discord call", "op", op, "error", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Forum fetches a forum channel and its available tags.
func (c *Client) Forum(ctx context.Context, forumID string) (Forum, error) {
	var ch *discordgo.Channel
	err := c.do(ctx, "get forum", func() error {
		var err error
		ch, err = c.api.Channel(forumID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return Forum{}, err
	}

	tags := make(map[string]string, len(ch.AvailableTags))
	for _, tag := range ch.AvailableTags {
		tags[tag.ID] = tag.Name
	}
	return Forum{ID: ch.ID, Name: ch.Name, TagNames: tags}, nil
}

// ActiveThreads lists all non-archived threads of the forum.
func (c *Client) ActiveThreads(ctx context.Context, forum Forum) ([]model.ThreadSummary, error) {
	var list *discordgo.ThreadsList
	err := c.do(ctx, "list active threads", func() error {
		var err error
		list, err = c.api.ThreadsActive(forum.ID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return nil, err
	}
	return summarize(list.Threads, forum, false), nil
}

// ArchivedThreads lists one page of archived threads older than before
// (nil for the newest page). The returned cursor feeds the next call.
func (c *Client) ArchivedThreads(ctx context.Context, forum Forum, before *time.Time) (ArchivedPage, error) {
	var list *discordgo.ThreadsList
	err := c.do(ctx, "list archived threads", func() error {
		var err error
		list, err = c.api.ThreadsArchived(forum.ID, before, archivedPageSize, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return ArchivedPage{}, err
	}

	page := ArchivedPage{
		Threads: summarize(list.Threads, forum, true),
		HasMore: list.HasMore,
	}
	if n := len(list.Threads); n > 0 {
		last := list.Threads[n-1]
		if last.ThreadMetadata != nil {
			ts := last.ThreadMetadata.ArchiveTimestamp
			page.NextBefore = &ts
		}
	}
	if page.NextBefore == nil {
		page.HasMore = false
	}
	return page, nil
}

// CreateThread starts a forum thread whose first message carries body and,
// optionally, a thumbnail embed. The starter message shares the thread's id.
func (c *Client) CreateThread(ctx context.Context, forumID, name, body, thumbURL string) (threadID, messageID string, err error) {
	msg := &discordgo.MessageSend{Content: body}
	if thumbURL != "" {
		msg.Embeds = []*discordgo.MessageEmbed{
			{Thumbnail: &discordgo.MessageEmbedThumbnail{URL: thumbURL}},
		}
	}

	var thread *discordgo.Channel
	err = c.do(ctx, "create thread", func() error {
		var err error
		thread, err = c.api.ForumThreadStartComplex(forumID, &discordgo.ThreadStart{
			Name:                name,
			AutoArchiveDuration: 10080,
		}, msg, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return "", "", err
	}
	return thread.ID, thread.ID, nil
}

// PostMessage appends a message to a thread.
func (c *Client) PostMessage(ctx context.Context, threadID, body string) (string, error) {
	var msg *discordgo.Message
	err := c.do(ctx, "post message", func() error {
		var err error
		msg, err = c.api.ChannelMessageSend(threadID, body, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// EditMessage replaces the content of an existing message.
func (c *Client) EditMessage(ctx context.Context, threadID, messageID, body string) error {
	return c.do(ctx, "edit message", func() error {
		_, err := c.api.ChannelMessageEdit(threadID, messageID, body, discordgo.WithContext(ctx))
		return err
	})
}

// DeleteMessage removes a message. Deleting an already-gone message is not
// an error; a forbidden delete is, so the caller never forgets a message
// that is still live.
func (c *Client) DeleteMessage(ctx context.Context, threadID, messageID string) error {
	err := c.do(ctx, "delete message", func() error {
		return c.api.ChannelMessageDelete(threadID, messageID, discordgo.WithContext(ctx))
	})
	if err != nil && errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ThreadExists reports whether a thread is still reachable.
func (c *Client) ThreadExists(ctx context.Context, threadID string) (bool, error) {
	err := c.do(ctx, "get thread", func() error {
		_, err := c.api.Channel(threadID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		if Permanent(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func summarize(threads []*discordgo.Channel, forum Forum, archived bool) []model.ThreadSummary {
	out := make([]model.ThreadSummary, 0, len(threads))
	for _, th := range threads {
		tags := make([]string, 0, len(th.AppliedTags))
		for _, tagID := range th.AppliedTags {
			if name, ok := forum.TagNames[tagID]; ok {
				tags = append(tags, name)
			}
		}
		if len(tags) == 0 {
			tags = nil
		}

		createdAt, err := discordgo.SnowflakeTimestamp(th.ID)
		if err != nil {
			createdAt = time.Time{}
		}

		isArchived := archived
		if th.ThreadMetadata != nil {
			isArchived = th.ThreadMetadata.Archived
		}

		out = append(out, model.ThreadSummary{
			ThreadID:  th.ID,
			Title:     th.Name,
			Tags:      tags,
			CreatedAt: createdAt,
			Archived:  isArchived,
		})
	}
	return out
}
