// Package config handles loading and validation of deploygate.yaml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	ddbledger "github.com/dwsmith1983/deploygate/internal/ledger/dynamodb"
	"github.com/dwsmith1983/deploygate/pkg/types"
)

// FileName is the project configuration file deploygate looks for.
const FileName = "deploygate.yaml"

// ledgerConfigs is a helper struct used for a second YAML unmarshal pass
// to decode ledger-specific config sections into their concrete types.
type ledgerConfigs struct {
	DynamoDB *ddbledger.Config `yaml:"dynamodb,omitempty"`
}

// Load reads and parses deploygate.yaml from the given directory.
func Load(dir string) (*types.ProjectConfig, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Second pass: decode ledger-specific sections into concrete types.
	var raw ledgerConfigs
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing ledger config: %w", err)
	}
	if raw.DynamoDB != nil {
		cfg.DynamoDB = raw.DynamoDB
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *types.ProjectConfig) error {
	if cfg.Ledger == "" {
		return fmt.Errorf("ledger is required")
	}
	if cfg.Ledger != "memory" && cfg.Ledger != "dynamodb" {
		return fmt.Errorf("unknown ledger %q", cfg.Ledger)
	}
	if cfg.Ledger == "dynamodb" {
		dc, _ := cfg.DynamoDB.(*ddbledger.Config)
		if dc == nil {
			return fmt.Errorf("dynamodb config is required when ledger is dynamodb")
		}
		if dc.TableName == "" {
			return fmt.Errorf("dynamodb.tableName is required")
		}
	}
	if cfg.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(cfg.Policy.AllowedRefs) == 0 {
		return fmt.Errorf("at least one policy.allowedRefs entry is required")
	}
	if len(cfg.Secrets.Refs) == 0 {
		return fmt.Errorf("at least one secrets.refs entry is required")
	}
	switch cfg.Secrets.Source {
	case "aws", "env":
	default:
		return fmt.Errorf("unknown secrets.source %q", cfg.Secrets.Source)
	}
	if cfg.Tool.Command == "" {
		return fmt.Errorf("tool.command is required")
	}
	return nil
}
