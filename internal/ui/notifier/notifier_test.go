package notifier

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_Subscribe_Unsubscribe(t *testing.T) {
	n := New()

	ch := n.Subscribe()
	require.NotNil(t, ch)
	assert.Equal(t, 1, n.Len())

	n.Unsubscribe(ch)
	assert.Equal(t, 0, n.Len())

	_, open := <-ch
	assert.False(t, open, "channel should be closed after unsubscribe")
}

func TestNotifier_Broadcast(t *testing.T) {
	n := New()

	ch1 := n.Subscribe()
	ch2 := n.Subscribe()
	defer n.Unsubscribe(ch1)
	defer n.Unsubscribe(ch2)

	n.Broadcast(TopicExamples)

	for i, ch := range []chan Topic{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, TopicExamples, got)
		case <-time.After(100 * time.Millisecond):
			t.Errorf("ch%d did not receive broadcast", i+1)
		}
	}
}

func TestNotifier_Broadcast_FiltersTopics(t *testing.T) {
	n := New()

	examplesOnly := n.Subscribe(TopicExamples)
	defer n.Unsubscribe(examplesOnly)

	n.Broadcast(TopicShutdown)

	select {
	case got := <-examplesOnly:
		t.Fatalf("unexpected topic %q", got)
	case <-time.After(50 * time.Millisecond):
	}

	n.Broadcast(TopicExamples)

	select {
	case got := <-examplesOnly:
		assert.Equal(t, TopicExamples, got)
	case <-time.After(100 * time.Millisecond):
		t.Error("subscriber did not receive its topic")
	}
}

func TestNotifier_Broadcast_NonBlocking(t *testing.T) {
	n := New()

	ch := n.Subscribe()
	defer n.Unsubscribe(ch)

	// Fill the channel buffer
	ch <- TopicExamples

	done := make(chan bool)
	go func() {
		n.Broadcast(TopicExamples)
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Error("Broadcast blocked on full channel")
	}
}

func TestNotifier_Concurrent(t *testing.T) {
	n := New()

	var wg sync.WaitGroup
	const numGoroutines = 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := n.Subscribe()
			n.Broadcast(TopicExamples)
			n.Unsubscribe(ch)
		}()
	}

	wg.Wait()
	assert.Equal(t, 0, n.Len())
}
