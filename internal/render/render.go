// Package render turns a forum snapshot into size-bounded index chunks.
// It is a pure transformation with no I/O.
package render

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"index_bot/internal/model"
)

// ChunkLimit is the default maximum chunk body length.
const ChunkLimit = model.MessageChunkLimit

const emptyBody = "No entries found."

// otherGroup is the trailing group for threads matching no preferred tag.
const otherGroup = "Other"

// Options controls grouping, sorting, and chunk layout.
type Options struct {
	SortByTags      bool
	PreferredTags   []string
	IntroText       string
	NormalizeTitles bool
	GuildID         string
	ChunkLimit      int
}

// FromConfig derives render options from an index configuration.
func FromConfig(cfg *model.IndexConfig) Options {
	return Options{
		SortByTags:      cfg.SortByTags,
		PreferredTags:   cfg.PreferredTags,
		IntroText:       cfg.IntroText,
		NormalizeTitles: cfg.CharacterSorting,
		GuildID:         cfg.GuildID,
	}
}

// Render produces the ordered chunk bodies for a snapshot. Chunk 0 starts
// with the intro text; every chunk stays within the configured limit.
func Render(snapshot []model.ThreadSummary, opts Options) []string {
	limit := opts.ChunkLimit
	if limit <= 0 {
		limit = ChunkLimit
	}

	var lines []string
	if opts.SortByTags {
		lines = tagGroupedLines(snapshot, opts)
	} else {
		lines = flatLines(snapshot, opts)
	}

	if len(lines) == 0 {
		lines = []string{emptyBody}
	}
	return chunk(lines, opts.IntroText, limit)
}

// tagGroupedLines partitions threads by the first preferred tag each one
// carries, emits groups in preferred order, and appends the Other group.
func tagGroupedLines(snapshot []model.ThreadSummary, opts Options) []string {
	groups := make(map[string][]model.ThreadSummary)
	for _, th := range snapshot {
		g := groupFor(th, opts.PreferredTags)
		groups[g] = append(groups[g], th)
	}

	order := make([]string, 0, len(opts.PreferredTags)+1)
	order = append(order, opts.PreferredTags...)
	order = append(order, otherGroup)

	var lines []string
	for _, tag := range order {
		members := groups[tag]
		if len(members) == 0 {
			continue
		}
		sortThreads(members, opts.NormalizeTitles)
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, "# "+tag)
		for _, th := range members {
			lines = append(lines, entryLine(th, opts.GuildID))
		}
	}
	return lines
}

func flatLines(snapshot []model.ThreadSummary, opts Options) []string {
	threads := make([]model.ThreadSummary, len(snapshot))
	copy(threads, snapshot)
	sortThreads(threads, opts.NormalizeTitles)

	lines := make([]string, 0, len(threads))
	for _, th := range threads {
		lines = append(lines, entryLine(th, opts.GuildID))
	}
	return lines
}

// groupFor returns the earliest preferred tag the thread carries, or the
// Other group. Matching is case-insensitive; preference order wins over
// the order of tags on the thread.
func groupFor(th model.ThreadSummary, preferred []string) string {
	for _, pref := range preferred {
		for _, tag := range th.Tags {
			if strings.EqualFold(tag, pref) {
				return pref
			}
		}
	}
	return otherGroup
}

func sortThreads(threads []model.ThreadSummary, normalize bool) {
	sort.SliceStable(threads, func(i, j int) bool {
		return sortTitle(threads[i].Title, normalize) < sortTitle(threads[j].Title, normalize)
	})
}

// Leading articles and honorifics ignored when sorting character-style
// forums, longest first so compound titles strip fully.
var titlePrefixes = []string{
	"high lord ", "high lady ", "lady ", "lord ", "dame ", "sir ",
	"the ", "an ", "a ",
}

func sortTitle(title string, normalize bool) string {
	t := strings.ToLower(strings.TrimSpace(title))
	if !normalize {
		return t
	}
	for stripped := true; stripped; {
		stripped = false
		for _, prefix := range titlePrefixes {
			if strings.HasPrefix(t, prefix) {
				t = strings.TrimSpace(t[len(prefix):])
				stripped = true
			}
		}
	}
	return t
}

func entryLine(th model.ThreadSummary, guildID string) string {
	return fmt.Sprintf("- [%s](https://discord.com/channels/%s/%s)", th.Title, guildID, th.ThreadID)
}

// chunk packs lines greedily: a line that would push the current chunk past
// the limit starts a new one. The intro is prepended to chunk 0 and counts
// toward its size; an intro longer than the limit is split across leading
// chunks so no chunk ever exceeds it.
func chunk(lines []string, intro string, limit int) []string {
	var chunks []string
	var b strings.Builder

	if intro != "" {
		parts := splitByLimit(intro, limit)
		chunks = append(chunks, parts[:len(parts)-1]...)
		b.WriteString(parts[len(parts)-1])
		b.WriteString("\n")
	}

	for _, line := range lines {
		need := len(line)
		if b.Len() > 0 {
			need++ // joining newline
		}
		if b.Len() > 0 && b.Len()+need > limit {
			chunks = append(chunks, strings.TrimSpace(b.String()))
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(line)
	}
	if b.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(b.String()))
	}
	if len(chunks) == 0 {
		chunks = []string{emptyBody}
	}
	return chunks
}

// splitByLimit breaks s into pieces of at most limit bytes, cutting only at
// rune boundaries. Always returns at least one piece.
func splitByLimit(s string, limit int) []string {
	var parts []string
	for len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		parts = append(parts, s[:cut])
		s = s[cut:]
	}
	return append(parts, s)
}
