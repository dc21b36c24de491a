// Package bot exposes the index administration commands over Discord
// slash commands. It is a thin layer: all reconciliation logic lives in
// the scheduler, publisher, and storage packages.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"index_bot/internal/config"
	"index_bot/internal/scheduler"
	"index_bot/internal/storage"
)

// discordSession is the slice of discordgo.Session the bot needs.
type discordSession interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Bot handles the /index command group.
type Bot struct {
	session discordSession
	appID   string
	store   storage.Storage
	sched   *scheduler.Scheduler
	cfg     *config.Config
	log     *slog.Logger
}

// New creates a Bot around an unopened discordgo session. appID may be
// empty, in which case it is resolved from the gateway session on Run.
func New(session *discordgo.Session, appID string, store storage.Storage, sched *scheduler.Scheduler, cfg *config.Config, log *slog.Logger) *Bot {
	return &Bot{
		session: session,
		appID:   appID,
		store:   store,
		sched:   sched,
		cfg:     cfg,
		log:     log,
	}
}

// Run opens the gateway connection, registers the command set, and blocks
// until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		b.handleInteraction(ctx, i)
	})

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	defer func() { _ = b.session.Close() }()

	if b.appID == "" {
		if s, ok := b.session.(*discordgo.Session); ok && s.State != nil && s.State.User != nil {
			b.appID = s.State.User.ID
		}
	}

	if _, err := b.session.ApplicationCommandBulkOverwrite(b.appID, "", Commands()); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}

	b.log.Info("command surface ready")
	<-ctx.Done()
	return nil
}

func (b *Bot) handleInteraction(ctx context.Context, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != "index" || len(data.Options) == 0 {
		return
	}

	userID := interactionUserID(i)
	if !b.cfg.IsUserAllowed(userID) {
		b.reply(i.Interaction, "Access denied.")
		return
	}

	sub := data.Options[0]
	opts := optionMap(sub.Options)

	b.log.Debug("command", "sub", sub.Name, "guild_id", i.GuildID, "user_id", userID)

	// Acknowledge immediately: a refresh pass with backoff can outlast the
	// initial response window, so the outcome goes out as a follow-up.
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		b.log.Error("acknowledge interaction", "error", err)
		return
	}

	var text string
	switch sub.Name {
	case "add":
		text = b.handleAdd(ctx, i.GuildID, parseAddArgs(opts))
	case "remove":
		text = b.handleRemove(ctx, i.GuildID, channelOption(opts, "forum"))
	case "list":
		text = b.handleList(ctx, i.GuildID)
	case "refresh":
		text = b.handleRefresh(ctx, i.GuildID, channelOption(opts, "forum"))
	case "status":
		text = b.handleStatus(i.GuildID)
	default:
		text = "Unknown subcommand."
	}

	b.followUp(i.Interaction, text)
}

func (b *Bot) followUp(interaction *discordgo.Interaction, text string) {
	_, err := b.session.FollowupMessageCreate(interaction, true, &discordgo.WebhookParams{
		Content: text,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		b.log.Error("respond to interaction", "error", err)
	}
}

func (b *Bot) reply(interaction *discordgo.Interaction, text string) {
	err := b.session.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.log.Error("respond to interaction", "error", err)
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func channelOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := opts[name]; ok {
		// Channel options carry the channel id as their value.
		if s, ok := o.Value.(string); ok {
			return s
		}
	}
	return ""
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := opts[name]; ok {
		if s, ok := o.Value.(string); ok {
			return s
		}
	}
	return ""
}

func boolOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) bool {
	if o, ok := opts[name]; ok {
		if v, ok := o.Value.(bool); ok {
			return v
		}
	}
	return false
}
