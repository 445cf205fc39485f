package cmd

import (
	"bytes"
	"testing"
	"time"

	"budget/config"
	"budget/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "预算助手 v"+Version+"\n", out.String())
}

func TestIssueToken(t *testing.T) {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "cli-secret", ExpireTime: time.Hour}}

	token, expiresAt, err := issueToken(cfg, 42)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	tokens, err := middleware.NewTokenService(cfg.JWT)
	require.NoError(t, err)
	claims, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
}

func TestTokenCommandRequiresUser(t *testing.T) {
	var out bytes.Buffer
	tokenCmd.SetOut(&out)
	t.Cleanup(func() { tokenCmd.SetOut(nil) })

	err := runToken(tokenCmd, nil)
	assert.Error(t, err)
	assert.Empty(t, out.String())
}
