package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_String(t *testing.T) {
	assert.Equal(t, "Disconnected", StateDisconnected.String())
	assert.Equal(t, "Connecting", StateConnecting.String())
	assert.Equal(t, "Streaming", StateStreaming.String())
	assert.Equal(t, "Closing", StateClosing.String())
	assert.Equal(t, "Error", StateError.String())
	assert.Equal(t, "Unknown", State(99).String())
}

func TestState_LegalTransitions(t *testing.T) {
	legal := []struct{ from, to State }{
		{StateDisconnected, StateConnecting},
		{StateConnecting, StateStreaming},
		{StateConnecting, StateClosing},
		{StateConnecting, StateError},
		{StateStreaming, StateClosing},
		{StateStreaming, StateError},
		{StateClosing, StateDisconnected},
		{StateError, StateDisconnected},
	}
	for _, tc := range legal {
		assert.True(t, tc.from.CanTransition(tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}
}

func TestState_IllegalTransitions(t *testing.T) {
	illegal := []struct{ from, to State }{
		{StateDisconnected, StateStreaming},
		{StateDisconnected, StateError},
		{StateStreaming, StateConnecting},
		{StateClosing, StateStreaming},
		{StateClosing, StateError},
		{StateError, StateConnecting},
		{StateError, StateStreaming},
	}
	for _, tc := range illegal {
		assert.False(t, tc.from.CanTransition(tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}
}
