package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster()
	a := b.Subscribe()
	c := b.Subscribe()
	defer b.Unsubscribe(a)
	defer b.Unsubscribe(c)

	b.Publish(Job{ID: "job1", Status: StatusProcessing})

	got := <-a
	assert.Equal(t, "job1", got.ID)
	got = <-c
	assert.Equal(t, "job1", got.ID)
}

func TestBroadcaster_OrderPreservedPerSubscriber(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for _, p := range []int{10, 30, 40, 70, 80, 100} {
		b.Publish(Job{ID: "job1", Progress: p})
	}

	last := -1
	for range 6 {
		snap := <-ch
		assert.Greater(t, snap.Progress, last)
		last = snap.Progress
	}
}

func TestBroadcaster_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Publish more than the buffer holds without draining; Publish must
	// not block.
	for i := range subscriberBuffer * 2 {
		b.Publish(Job{ID: "job1", Progress: i})
	}

	assert.Len(t, ch, subscriberBuffer)
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()

	b.Unsubscribe(ch)

	_, open := <-ch
	require.False(t, open)

	// Double unsubscribe must not panic.
	b.Unsubscribe(ch)

	// Publishing after unsubscribe reaches nobody.
	b.Publish(Job{ID: "job1"})
}

func TestBroadcaster_NoReplayForLateSubscribers(t *testing.T) {
	b := NewBroadcaster()
	b.Publish(Job{ID: "early"})

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	assert.Empty(t, ch)
}
