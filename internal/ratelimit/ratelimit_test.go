package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow_WithinBurst(t *testing.T) {
	krl := New(1, 3)

	// Burst of 3 should allow three immediate requests.
	assert.True(t, krl.Allow("notesInfo"))
	assert.True(t, krl.Allow("notesInfo"))
	assert.True(t, krl.Allow("notesInfo"))
	assert.False(t, krl.Allow("notesInfo"))
}

func TestAllow_IndependentKeys(t *testing.T) {
	krl := New(1, 1)

	assert.True(t, krl.Allow("addNote"))
	assert.False(t, krl.Allow("addNote"))
	// Different key has its own bucket.
	assert.True(t, krl.Allow("updateNoteFields"))
}

func TestWait_RespectsContext(t *testing.T) {
	krl := New(0.001, 1)
	require.True(t, krl.Allow("version"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := krl.Wait(ctx, "version")
	assert.Error(t, err)
}

func TestWait_AllowsWhenTokenAvailable(t *testing.T) {
	krl := New(100, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, krl.Wait(ctx, "version"))
}
