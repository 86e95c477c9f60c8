package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/vkazmirchuk/tagmate/bot/registry"
	"github.com/vkazmirchuk/tagmate/core/cmd"
	coreconfig "github.com/vkazmirchuk/tagmate/core/config"
	coredatabase "github.com/vkazmirchuk/tagmate/core/database"
)

// DefaultCancelLabel is the keyboard button that aborts an open dialog.
const DefaultCancelLabel = "❌ Cancel"

// GroupsConfig tunes the group registry.
type GroupsConfig struct {
	// PerChatLimit caps groups per chat; 0 -> registry.DefaultGroupLimit.
	PerChatLimit int `yaml:"per_chat_limit" envconfig:"GROUPS_PER_CHAT_LIMIT"`
	// CancelLabel is the text of the dialog cancel button.
	CancelLabel string `yaml:"cancel_label" envconfig:"GROUPS_CANCEL_LABEL"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Groups   GroupsConfig        `yaml:"groups"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads the YAML file, applies environment overrides, and validates.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := normalizeGroups(&cfg.Groups); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalizeGroups(g *GroupsConfig) error {
	if g.PerChatLimit < 0 {
		return fmt.Errorf("groups.per_chat_limit must be >= 0")
	}
	if g.PerChatLimit == 0 {
		g.PerChatLimit = registry.DefaultGroupLimit
	}
	if strings.TrimSpace(g.CancelLabel) == "" {
		g.CancelLabel = DefaultCancelLabel
	}
	return nil
}

// LoadConfig adapts Load to the cmd runner signature.
func LoadConfig(path string) (cmd.ConfigCarrier, error) {
	return Load(path)
}
