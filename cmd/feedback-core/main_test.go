package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptroom/feedback-core/internal/core/domain"
)

func TestParseServiceKeys(t *testing.T) {
	keys, err := parseServiceKeys("review-bot:$2a$04$abc, exporter:$2a$04$def")
	require.NoError(t, err)
	assert.Equal(t, []domain.ServiceKey{
		{Name: "review-bot", Hash: "$2a$04$abc"},
		{Name: "exporter", Hash: "$2a$04$def"},
	}, keys)

	keys, err = parseServiceKeys("")
	require.NoError(t, err)
	assert.Empty(t, keys)

	for _, bad := range []string{"no-hash", ":$2a$04$abc", "bot:"} {
		_, err := parseServiceKeys(bad)
		assert.Error(t, err, bad)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("FEEDBACK_TEST_INT", "42")
	t.Setenv("FEEDBACK_TEST_BAD_INT", "forty")
	t.Setenv("FEEDBACK_TEST_BOOL", "yes")

	assert.Equal(t, 42, getEnvInt("FEEDBACK_TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("FEEDBACK_TEST_BAD_INT", 1))
	assert.Equal(t, 7, getEnvInt("FEEDBACK_TEST_UNSET", 7))
	assert.True(t, getEnvBool("FEEDBACK_TEST_BOOL", false))
	assert.True(t, getEnvBool("FEEDBACK_TEST_UNSET", true))
	assert.Equal(t, "fallback", getEnv("FEEDBACK_TEST_UNSET", "fallback"))

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, splitList(" https://a.example.com,,https://b.example.com "))
	assert.Equal(t, slog.LevelDebug, logLevel("debug"))
	assert.Equal(t, slog.LevelInfo, logLevel("chatty"))
}
