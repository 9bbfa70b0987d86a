package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pumpspares/src_project/internal/auth"
)

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CALC_BASE_URL", "http://calc:9000")
	t.Setenv("WIZARD_TTL", "30m")
	t.Setenv("CB_OPEN_MS", "1500")
	t.Setenv("AUTH_MODE", "STATIC")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://calc:9000", cfg.CalcURL)
	assert.Equal(t, 30*time.Minute, cfg.WizardTTL)
	assert.Equal(t, 1500*time.Millisecond, cfg.CBOpen)
	assert.Equal(t, "static", cfg.AuthMode)
}

func TestSessionProvider(t *testing.T) {
	_, err := Config{AuthMode: "static"}.sessionProvider()
	assert.Error(t, err, "static mode without tokens")

	p, err := Config{AuthMode: "static", StaticTokens: []string{"t1=a@example.com", " t2 = b@example.com"}}.sessionProvider()
	require.NoError(t, err)
	s, err := p.GetSession(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", s.Email)

	p, err = Config{AuthMode: "none"}.sessionProvider()
	require.NoError(t, err)
	assert.IsType(t, auth.OpenProvider{}, p)

	p, err = Config{AuthMode: "remote", AccountsURL: "http://accounts"}.sessionProvider()
	require.NoError(t, err)
	assert.IsType(t, &auth.RemoteProvider{}, p)

	_, err = Config{AuthMode: "ldap"}.sessionProvider()
	assert.Error(t, err)
}
