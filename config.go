package rosscope

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// Config is the optional TOML file configuration applied over the
// environment variables read at startup: a non-empty file value replaces
// the environment value.
type Config struct {
	Engine EngineConfig `toml:"engine"`
	MQTT   MQTTConfig   `toml:"mqtt"`
	Fleet  FleetConfig  `toml:"fleet"`
}

type EngineConfig struct {
	BaseDir           string `toml:"base_dir"`
	MinPollIntervalMs int    `toml:"min_poll_interval_ms"`
	PollIntervalMs    int    `toml:"poll_interval_ms"`
	SnapshotCron      string `toml:"snapshot_cron"`
}

type MQTTConfig struct {
	URL         string `toml:"url"`
	ClientID    string `toml:"client_id"`
	TopicPrefix string `toml:"topic_prefix"`
	QoS         int    `toml:"qos"`
	TimeoutMs   int    `toml:"timeout_ms"`
}

type FleetConfig struct {
	TargetsFile string `toml:"targets_file"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}
