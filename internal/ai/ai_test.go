package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "cinebot/pkg/logx"
)

func TestNewDisabledWithoutKey(t *testing.T) {
	for _, opt := range []Options{{}, {Enabled: true}, {Enabled: false, APIKey: "k"}} {
		g, err := New(context.Background(), opt, logx.Nop())
		require.NoError(t, err)
		_, err = g.Complete(context.Background(), "hi")
		assert.ErrorIs(t, err, ErrDisabled)
	}
}

func TestPrompts(t *testing.T) {
	assert.Contains(t, CorrectionPrompt("Incepton", "Inception"), "'Inception'")
	assert.Contains(t, UnknownTitlePrompt("Zzz"), "'Zzz'")
	assert.Contains(t, FunFactPrompt("Heat"), "Heat")
	assert.Contains(t, QuestionPrompt("best heist movie?"), "best heist movie?")
}
