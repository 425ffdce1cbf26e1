package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_RedactsSensitiveKeys(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := FromZap(zap.New(core))

	log.Info("waitlist signup", "email", "ann@example.com", "name", "Ann", "session_id", "abc123")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()

	assert.Equal(t, "[REDACTED]", fields["email"])
	assert.Equal(t, "Ann", fields["name"])
	assert.True(t, strings.HasPrefix(fields["session_id"].(string), "hash:"))
}

func TestLogger_WithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := FromZap(zap.New(core)).With("component", "mailer")

	log.Warn("send failed", "attempt", 2)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "mailer", entries[0].ContextMap()["component"])
	assert.EqualValues(t, 2, entries[0].ContextMap()["attempt"])
}

func TestSanitizeKVs_OddLength(t *testing.T) {
	out := sanitizeKVs([]any{"name", "Bo", "dangling"})
	assert.Equal(t, []any{"name", "Bo", "dangling"}, out)
}

func TestHashValue_Stable(t *testing.T) {
	a := hashValue("user-1")
	b := hashValue("user-1")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, hashValue("user-2"))
	assert.Empty(t, hashValue(""))
}

func TestNew_Modes(t *testing.T) {
	for _, mode := range []string{"dev", "prod", ""} {
		t.Run(mode, func(t *testing.T) {
			log, err := New(mode)
			require.NoError(t, err)
			require.NotNil(t, log)
		})
	}
}
