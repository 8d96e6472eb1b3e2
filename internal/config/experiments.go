package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Experiments is the experiment definition file: the shared chatroom context,
// the agent roster, and one group per treatment condition.
type Experiments struct {
	ChatroomContext string           `toml:"chatroom_context"`
	AgentNames      []string         `toml:"agent_names"`
	HumanName       string           `toml:"human_name"`
	Groups          map[string]Group `toml:"groups"`
}

// Group is one treatment condition.
type Group struct {
	Treatment        string `toml:"treatment"`
	Scenario         string `toml:"scenario"`
	ArticleSender    string `toml:"article_sender"`
	ArticleContent   string `toml:"article_content"`
	ArticleHoldTicks uint64 `toml:"article_hold_ticks"`
}

// LoadExperiments reads and validates the experiments TOML file.
func LoadExperiments(path string) (*Experiments, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read experiments file %s: %w", path, err)
	}
	var exp Experiments
	if _, err := toml.Decode(string(raw), &exp); err != nil {
		return nil, fmt.Errorf("decode experiments file: %w", err)
	}
	if exp.HumanName == "" {
		exp.HumanName = "user"
	}
	if len(exp.AgentNames) == 0 {
		return nil, fmt.Errorf("experiments file %s defines no agent_names", path)
	}
	if len(exp.Groups) == 0 {
		return nil, fmt.Errorf("experiments file %s defines no groups", path)
	}
	for name, g := range exp.Groups {
		if g.Treatment == "" {
			return nil, fmt.Errorf("group %q has no treatment description", name)
		}
	}
	return &exp, nil
}

// Group resolves a treatment group by name.
func (e *Experiments) Group(name string) (Group, error) {
	g, ok := e.Groups[name]
	if !ok {
		return Group{}, fmt.Errorf("treatment group %q not found in experiments file", name)
	}
	return g, nil
}
