package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed rituals.yaml
var defaultRituals []byte

type WeeklyTheme struct {
	Theme  string `yaml:"theme"`
	Prompt string `yaml:"prompt"`
}

// RitualBank is the static pool of daily prompts and weekly challenge themes.
type RitualBank struct {
	DailyPrompts []string      `yaml:"daily_prompts"`
	WeeklyThemes []WeeklyTheme `yaml:"weekly_themes"`
}

// LoadRitualBank parses the bank at path, or the embedded default when path is empty.
func LoadRitualBank(path string) (*RitualBank, error) {
	raw := defaultRituals
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read ritual bank: %w", err)
		}
		raw = b
	}
	return ParseRitualBank(raw)
}

func ParseRitualBank(raw []byte) (*RitualBank, error) {
	var bank RitualBank
	if err := yaml.Unmarshal(raw, &bank); err != nil {
		return nil, fmt.Errorf("parse ritual bank: %w", err)
	}
	if len(bank.DailyPrompts) == 0 {
		return nil, errors.New("ritual bank has no daily prompts")
	}
	if len(bank.WeeklyThemes) == 0 {
		return nil, errors.New("ritual bank has no weekly themes")
	}
	return &bank, nil
}
