package summary

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClient struct {
	mu    sync.Mutex
	calls int
	texts []string
}

func (c *countingClient) Summarize(ctx context.Context, text string, summaryType Type) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.texts = append(c.texts, text)
	return &Result{Summary: "done", Type: summaryType}, nil
}

func (c *countingClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestTrigger_FiresOnceAfterQuietPeriod(t *testing.T) {
	client := &countingClient{}
	trigger := NewTrigger(10*time.Millisecond, client, zerolog.Nop())

	result := trigger.Settle(context.Background(), func() string { return "the transcript" })
	require.NotNil(t, result)
	assert.Equal(t, "done", result.Summary)
	assert.Equal(t, TypeMeeting, result.Type)
	assert.Equal(t, 1, client.callCount())
	assert.True(t, trigger.Fired())
}

func TestTrigger_AtMostOnce(t *testing.T) {
	client := &countingClient{}
	trigger := NewTrigger(5*time.Millisecond, client, zerolog.Nop())

	first := trigger.Settle(context.Background(), func() string { return "text" })
	second := trigger.Settle(context.Background(), func() string { return "text" })

	require.NotNil(t, first)
	assert.Nil(t, second)
	assert.Equal(t, 1, client.callCount())
}

func TestTrigger_ConcurrentSettleFiresOnce(t *testing.T) {
	client := &countingClient{}
	trigger := NewTrigger(5*time.Millisecond, client, zerolog.Nop())

	var wg sync.WaitGroup
	results := make([]*Result, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = trigger.Settle(context.Background(), func() string { return "text" })
		}(i)
	}
	wg.Wait()

	fired := 0
	for _, r := range results {
		if r != nil {
			fired++
		}
	}
	assert.Equal(t, 1, fired)
	assert.Equal(t, 1, client.callCount())
}

func TestTrigger_EmptyTranscriptSkipsSummary(t *testing.T) {
	client := &countingClient{}
	trigger := NewTrigger(5*time.Millisecond, client, zerolog.Nop())

	result := trigger.Settle(context.Background(), func() string { return "" })
	assert.Nil(t, result)
	assert.Equal(t, 0, client.callCount())
	// The trigger still fired; a later retry must not summarize either
	assert.True(t, trigger.Fired())
}

func TestTrigger_SnapshotTakenAtFireTime(t *testing.T) {
	client := &countingClient{}
	trigger := NewTrigger(30*time.Millisecond, client, zerolog.Nop())

	var mu sync.Mutex
	text := "early"
	go func() {
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		text = "late"
		mu.Unlock()
	}()

	trigger.Settle(context.Background(), func() string {
		mu.Lock()
		defer mu.Unlock()
		return text
	})

	// Trailing updates inside the quiet period are included
	require.Equal(t, 1, client.callCount())
	assert.Equal(t, "late", client.texts[0])
}

func TestTrigger_ContextCancellation(t *testing.T) {
	client := &countingClient{}
	trigger := NewTrigger(time.Second, client, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := trigger.Settle(ctx, func() string { return "text" })
	assert.Nil(t, result)
	assert.Equal(t, 0, client.callCount())
}
