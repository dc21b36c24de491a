package bot

import "github.com/bwmarrin/discordgo"

// Commands returns the /index application command tree.
func Commands() []*discordgo.ApplicationCommand {
	adminOnly := int64(discordgo.PermissionAdministrator)
	forumChannels := []discordgo.ChannelType{discordgo.ChannelTypeGuildForum}

	return []*discordgo.ApplicationCommand{
		{
			Name:                     "index",
			Description:              "Manage forum indexes",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Add a forum to the index system",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "forum",
							Description:  "The forum channel to index",
							ChannelTypes: forumChannels,
							Required:     true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "index_name",
							Description: "Name for this index (e.g. 'Characters', 'Resources')",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Name:        "sort_by_tags",
							Description: "Group entries by tags",
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "preferred_tags",
							Description: "Comma-separated tag order (requires sort_by_tags)",
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "index_thread_name",
							Description: "Name for the index thread",
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "intro_text",
							Description: "Intro text for the index thread",
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "thumb_url",
							Description: "Thumbnail URL for the index thread",
						},
						{
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Name:        "character_sorting",
							Description: "Ignore leading articles and honorifics when sorting titles",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove a forum from the index system",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "forum",
							Description:  "The indexed forum channel",
							ChannelTypes: forumChannels,
							Required:     true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "Show all configured indexes",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "refresh",
					Description: "Rebuild one index now, or all when no forum is given",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionChannel,
							Name:         "forum",
							Description:  "The indexed forum channel",
							ChannelTypes: forumChannels,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "status",
					Description: "Show the outcome of the last refresh per index",
				},
			},
		},
	}
}
