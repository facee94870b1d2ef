package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestKeyValueFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core))

	log.With(KeySite, "sheitc").Warn("page skipped",
		KeyPage, 3,
		KeyError, errors.New("boom"),
		zap.String("extra", "x"),
		"dangling",
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "page skipped", entry.Message)
	assert.Equal(t, zapcore.WarnLevel, entry.Level)

	ctx := entry.ContextMap()
	assert.Equal(t, "sheitc", ctx[KeySite])
	assert.EqualValues(t, 3, ctx[KeyPage])
	assert.Equal(t, "boom", ctx[KeyError])
	assert.Equal(t, "x", ctx["extra"])
	assert.Contains(t, ctx, "dangling")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	l, err := New(Config{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNopIsSilent(t *testing.T) {
	n := NewNop()
	assert.NotPanics(t, func() {
		n.With("a", 1).Error("ignored", "k", "v")
	})
}
