package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeExperiments(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "experiments.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write experiments file: %v", err)
	}
	return path
}

func TestLoadExperiments(t *testing.T) {
	path := writeExperiments(t, `
chatroom_context = "a city chatroom"
agent_names = ["Alice", "Bob"]

[groups.control]
treatment = "be civil"

[groups.seeded]
treatment = "be civil"
scenario = "news_article"
article_sender = "Newsroom"
article_content = "big news"
article_hold_ticks = 30
`)

	exp, err := LoadExperiments(path)
	if err != nil {
		t.Fatalf("LoadExperiments failed: %v", err)
	}
	if exp.HumanName != "user" {
		t.Fatalf("expected default human name, got %q", exp.HumanName)
	}
	if len(exp.AgentNames) != 2 {
		t.Fatalf("unexpected roster: %v", exp.AgentNames)
	}

	g, err := exp.Group("seeded")
	if err != nil {
		t.Fatalf("Group failed: %v", err)
	}
	if g.Scenario != "news_article" || g.ArticleHoldTicks != 30 {
		t.Fatalf("unexpected group: %+v", g)
	}

	if _, err := exp.Group("missing"); err == nil {
		t.Fatalf("expected error for unknown group")
	}
}

func TestLoadExperimentsValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"no agents", "[groups.control]\ntreatment = \"x\"\n"},
		{"no groups", `agent_names = ["Alice"]`},
		{"empty treatment", "agent_names = [\"Alice\"]\n[groups.control]\nscenario = \"news_article\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadExperiments(writeExperiments(t, tc.content)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.PerformerMaxAttempts != 3 {
		t.Fatalf("expected default retry limit 3, got %d", cfg.PerformerMaxAttempts)
	}
	if cfg.MessagesPerMinute != 6 {
		t.Fatalf("expected default pace 6/min, got %v", cfg.MessagesPerMinute)
	}
	if cfg.Director.Provider != "mock" {
		t.Fatalf("expected default mock provider, got %q", cfg.Director.Provider)
	}
}
