package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/deploygate/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [project-name]",
		Short: "Initialize a new deploygate project",
		Long:  "Creates project scaffolding with a starter deploygate.yaml and deploy script.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runInit(args[0])
		},
	}
}

func runInit(projectName string) error {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("Initializing deploygate project: %s\n", projectName)

	if err := os.MkdirAll(projectName, 0o755); err != nil {
		return fmt.Errorf("creating project directory: %w", err)
	}

	configPath := filepath.Join(projectName, config.FileName)
	configContent := `ledger: memory
environment: staging
policy:
  allowedRefs:
    - main
secrets:
  source: env
  refs:
    - db-password
tool:
  command: ./deploy.sh
  args: ["--config", "{artifact}"]
  artifactEnv: DEPLOY_CONFIG
  timeoutSeconds: 600
alerts:
  - type: console

# For production, switch to the DynamoDB ledger:
# ledger: dynamodb
# dynamodb:
#   tableName: deploygate
#   region: us-east-1
#   createTable: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	deployPath := filepath.Join(projectName, "deploy.sh")
	deployContent := `#!/bin/bash
# Example deploy tool. Reads credentials from the artifact passed via
# --config / $DEPLOY_CONFIG and exits 0 on success.
# Replace with your real deployment command.
echo "deploying with config at $DEPLOY_CONFIG"
`
	if err := os.WriteFile(deployPath, []byte(deployContent), 0o755); err != nil {
		return fmt.Errorf("writing example deploy script: %w", err)
	}

	color.Green("  ✓ Project scaffolded")
	fmt.Println()
	_, _ = bold.Println("Next steps:")
	fmt.Printf("  cd %s\n", projectName)
	fmt.Println("  export DEPLOYGATE_SECRET_DB_PASSWORD=changeme")
	fmt.Println("  deploygate run --ref main --sha $(git rev-parse HEAD)")
	return nil
}
