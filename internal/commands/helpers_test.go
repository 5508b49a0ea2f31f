package commands

import (
	"context"
	"testing"
	"time"

	"github.com/dwsmith1983/deploygate/pkg/types"
)

func TestNewLedger_Memory(t *testing.T) {
	cfg := &types.ProjectConfig{Ledger: "memory"}
	l, err := newLedger(cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if l == nil {
		t.Fatal("expected non-nil ledger")
	}
}

func TestNewLedger_Unknown(t *testing.T) {
	cfg := &types.ProjectConfig{Ledger: "etcd"}
	_, err := newLedger(cfg)
	if err == nil {
		t.Fatal("expected error for unknown ledger")
	}
}

func TestNewLedger_DynamoDBMissingConfig(t *testing.T) {
	cfg := &types.ProjectConfig{Ledger: "dynamodb"}
	_, err := newLedger(cfg)
	if err == nil {
		t.Fatal("expected error when dynamodb section is missing")
	}
}

func TestNewStore_Env(t *testing.T) {
	cfg := &types.ProjectConfig{Secrets: types.SecretsConfig{Source: "env"}}
	s, err := newStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if s == nil {
		t.Fatal("expected non-nil store")
	}
}

func TestNewStore_Unknown(t *testing.T) {
	cfg := &types.ProjectConfig{Secrets: types.SecretsConfig{Source: "vault"}}
	_, err := newStore(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for unknown secret source")
	}
}

func TestToolSpec_Defaults(t *testing.T) {
	cfg := &types.ProjectConfig{Tool: types.ToolConfig{Command: "/bin/true"}}
	spec, timeout := toolSpec(cfg)
	if spec.Path != "/bin/true" {
		t.Errorf("expected path /bin/true, got %q", spec.Path)
	}
	if timeout != defaultToolTimeout {
		t.Errorf("expected default timeout, got %v", timeout)
	}
}

func TestToolSpec_ExplicitTimeout(t *testing.T) {
	cfg := &types.ProjectConfig{Tool: types.ToolConfig{Command: "/bin/true", TimeoutSeconds: 90}}
	_, timeout := toolSpec(cfg)
	if timeout != 90*time.Second {
		t.Errorf("expected 90s timeout, got %v", timeout)
	}
}
