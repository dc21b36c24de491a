package bot

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// AddArgs carries the options of /index add.
type AddArgs struct {
	ForumID          string
	IndexName        string
	SortByTags       bool
	PreferredTags    []string
	IndexThreadName  string
	IntroText        string
	ThumbURL         string
	CharacterSorting bool
}

func parseAddArgs(opts map[string]*discordgo.ApplicationCommandInteractionDataOption) AddArgs {
	return AddArgs{
		ForumID:          channelOption(opts, "forum"),
		IndexName:        stringOption(opts, "index_name"),
		SortByTags:       boolOption(opts, "sort_by_tags"),
		PreferredTags:    ParseTagList(stringOption(opts, "preferred_tags")),
		IndexThreadName:  stringOption(opts, "index_thread_name"),
		IntroText:        stringOption(opts, "intro_text"),
		ThumbURL:         stringOption(opts, "thumb_url"),
		CharacterSorting: boolOption(opts, "character_sorting"),
	}
}

// ParseTagList splits a comma-separated tag string into trimmed tags,
// dropping empty segments. An all-whitespace input yields nil.
func ParseTagList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var tags []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
