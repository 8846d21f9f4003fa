package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottleAvailableBeforeFirstSend(t *testing.T) {
	th := NewThrottleAdapter(NewMockAdapter(""), time.Second)

	av := th.CheckAvailability()
	assert.True(t, av.Available)
	assert.Zero(t, av.RetryAfter)
}

func TestThrottleCooldownAfterSend(t *testing.T) {
	th := NewThrottleAdapter(NewMockAdapter(""), time.Second)

	_, err := th.SendMessage(context.Background(), "hi", "")
	require.NoError(t, err)

	av := th.CheckAvailability()
	assert.False(t, av.Available)
	assert.Greater(t, av.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, av.RetryAfter, time.Second)
}

func TestThrottleCheckDoesNotConsume(t *testing.T) {
	th := NewThrottleAdapter(NewMockAdapter(""), time.Second)

	// Repeated probes must not burn the token.
	for i := 0; i < 10; i++ {
		av := th.CheckAvailability()
		require.True(t, av.Available, "probe %d consumed the token", i)
	}
}

func TestThrottleSendNeverBlocks(t *testing.T) {
	mock := NewMockAdapter("")
	th := NewThrottleAdapter(mock, time.Hour)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := th.SendMessage(context.Background(), "hi", "")
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), time.Second, "sends must not block on the limiter")
	assert.Equal(t, 3, mock.Calls())
}

func TestThrottleConsumesTokenOnFailure(t *testing.T) {
	mock := NewMockAdapter("")
	mock.Err = assert.AnError
	th := NewThrottleAdapter(mock, time.Second)

	_, err := th.SendMessage(context.Background(), "hi", "")
	require.Error(t, err)

	av := th.CheckAvailability()
	assert.False(t, av.Available, "cooldown must start even on a failed send")
}

func TestThrottleRecoversAfterInterval(t *testing.T) {
	th := NewThrottleAdapter(NewMockAdapter(""), 20*time.Millisecond)

	_, err := th.SendMessage(context.Background(), "hi", "")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	av := th.CheckAvailability()
	assert.True(t, av.Available)
}
