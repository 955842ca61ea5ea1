package config

import (
	"testing"

	"github.com/caarlos0/env/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGmailSyncConfig_EnvDefaultsMatchDefaults(t *testing.T) {
	var cfg GmailSyncConfig
	require.NoError(t, env.Parse(&cfg))

	assert.Equal(t, *DefaultGmailSyncConfig(), cfg)
}

func TestGmailSyncConfig_Overrides(t *testing.T) {
	t.Setenv("GMAIL_FULL_MESSAGE_BATCH_SIZE", "50")
	t.Setenv("GMAIL_UNREAD_LABEL", "IS_UNREAD")

	var cfg GmailSyncConfig
	require.NoError(t, env.Parse(&cfg))

	assert.Equal(t, 50, cfg.FullMessageBatchSize)
	assert.Equal(t, "IS_UNREAD", cfg.UnreadLabel)
	assert.Equal(t, 500, cfg.LabelUpdateBatchSize)
}
