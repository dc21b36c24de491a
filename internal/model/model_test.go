package model

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() IndexConfig {
	return IndexConfig{
		GuildID:   "g1",
		ForumID:   "f1",
		IndexName: "OC Characters",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*IndexConfig)
		wantReason string
	}{
		{"valid", func(*IndexConfig) {}, ""},
		{"missing guild", func(c *IndexConfig) { c.GuildID = "" }, "guild id"},
		{"missing forum", func(c *IndexConfig) { c.ForumID = "" }, "forum id"},
		{"blank name", func(c *IndexConfig) { c.IndexName = "   " }, "index name"},
		{
			"intro too long",
			func(c *IndexConfig) { c.IntroText = strings.Repeat("i", MessageChunkLimit+1) },
			"intro text",
		},
		{
			"tags without sorting",
			func(c *IndexConfig) { c.PreferredTags = []string{"Elves"} },
			"sort_by_tags",
		},
		{
			"empty tag",
			func(c *IndexConfig) {
				c.SortByTags = true
				c.PreferredTags = []string{"Elves", " "}
			},
			"must not be empty",
		},
		{
			"duplicate tag case-insensitive",
			func(c *IndexConfig) {
				c.SortByTags = true
				c.PreferredTags = []string{"Elves", "elves"}
			},
			"duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantReason == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if !strings.Contains(cfgErr.Reason, tt.wantReason) {
				t.Errorf("reason %q does not mention %q", cfgErr.Reason, tt.wantReason)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if cfg.IndexThreadName != "📜 OC Characters Index" {
		t.Errorf("thread name = %q", cfg.IndexThreadName)
	}
	if cfg.IntroText != "📚 Index of OC Characters" {
		t.Errorf("intro = %q", cfg.IntroText)
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := validConfig()
	cfg.IndexThreadName = "Custom Thread"
	cfg.IntroText = "Custom intro"
	cfg.ApplyDefaults()

	if cfg.IndexThreadName != "Custom Thread" || cfg.IntroText != "Custom intro" {
		t.Errorf("explicit values overwritten: %+v", cfg)
	}
}

func TestKey(t *testing.T) {
	cfg := validConfig()
	if got := cfg.Key(); got != "g1:f1" {
		t.Errorf("key = %q, want g1:f1", got)
	}
}
