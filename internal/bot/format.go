package bot

import (
	"fmt"
	"strings"

	"index_bot/internal/model"
)

// FormatIndexList renders the guild's configured indexes for /index list.
func FormatIndexList(configs []model.IndexConfig) string {
	if len(configs) == 0 {
		return "No indexes configured in this guild."
	}

	var sb strings.Builder
	sb.WriteString("Configured indexes:\n")
	for _, cfg := range configs {
		sb.WriteString(fmt.Sprintf("- <#%s> — \"%s\"", cfg.ForumID, cfg.IndexName))
		if cfg.SortByTags {
			sb.WriteString(", grouped by tags")
			if len(cfg.PreferredTags) > 0 {
				sb.WriteString(fmt.Sprintf(" (%s)", strings.Join(cfg.PreferredTags, ", ")))
			}
		}
		if cfg.IndexThreadID != "" {
			sb.WriteString(fmt.Sprintf(", thread <#%s>", cfg.IndexThreadID))
		} else {
			sb.WriteString(", not yet published")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatResult renders one pass result for /index refresh.
func FormatResult(r model.PassResult) string {
	switch r.Outcome {
	case model.OutcomeDone:
		return fmt.Sprintf("Index for <#%s> rebuilt.", r.ForumID)
	case model.OutcomeNoChange:
		return fmt.Sprintf("Index for <#%s> is already up to date.", r.ForumID)
	case model.OutcomeSkipped:
		return fmt.Sprintf("A refresh for <#%s> is already running; skipped.", r.ForumID)
	case model.OutcomePartialFailed:
		return fmt.Sprintf("Index for <#%s> partially published: chunk %d failed (%s). It will be retried on the next refresh.",
			r.ForumID, r.FailedChunk, r.Err)
	default:
		return fmt.Sprintf("Refresh of <#%s> failed: %s", r.ForumID, r.Err)
	}
}

// FormatStatus renders the last recorded pass per target for /index status.
func FormatStatus(results []model.PassResult) string {
	if len(results) == 0 {
		return "No refresh has run in this guild yet."
	}

	var sb strings.Builder
	sb.WriteString("Last refresh per forum:\n")
	for _, r := range results {
		sb.WriteString(fmt.Sprintf("- <#%s>: %s at %s", r.ForumID, r.Outcome, r.FinishedAt.Format("2006-01-02 15:04:05 UTC")))
		if r.Err != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", r.Err))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
