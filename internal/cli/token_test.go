package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"quiz-battle-service/internal/auth"
)

func TestTokenCmdMintsVerifiableToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--config", missing, "--user", "player-7", "--ttl", "1h"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("token: %v", err)
	}

	userID, err := auth.NewTokens("cli-secret").Verify(strings.TrimSpace(out.String()))
	if err != nil || userID != "player-7" {
		t.Fatalf("expected player-7, got %q %v", userID, err)
	}
}

func TestTokenCmdRequiresSecretAndUser(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")

	t.Setenv("JWT_SECRET", "")
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "--config", missing, "--user", "player-7"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Fatalf("expected missing secret error, got %v", err)
	}

	t.Setenv("JWT_SECRET", "cli-secret")
	cmd = newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "--config", missing})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "--user") {
		t.Fatalf("expected missing user error, got %v", err)
	}
}
